package models

import (
	"time"

	"github.com/google/uuid"
)

// ProductKind is what a review is about.
type ProductKind string

const (
	ProductCourse ProductKind = "course"
	ProductEvent  ProductKind = "event"
)

// Review is a course or event review. Rating is set for courses only.
type Review struct {
	ID          uuid.UUID   `json:"id"`
	ProductKind ProductKind `json:"product_kind"`
	ProductID   uuid.UUID   `json:"product_id"`
	StudentID   uuid.UUID   `json:"student_id"`
	StudentName string      `json:"student_name,omitempty"`
	Rating      *int        `json:"rating,omitempty"`
	Body        string      `json:"body"`
	IsApproved  bool        `json:"is_approved"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}
