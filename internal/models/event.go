package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/learnhub/backend/pkg/fsm"
	"github.com/learnhub/backend/pkg/money"
)

// Event is a scheduled workshop or seminar. A nil or zero Price means free.
type Event struct {
	ID           uuid.UUID        `json:"id"`
	Title        string           `json:"title"`
	Slug         string           `json:"slug"`
	Description  string           `json:"description"`
	ThumbnailURL *string          `json:"thumbnail_url,omitempty"`
	Price        *decimal.Decimal `json:"price,omitempty"`
	Location     string           `json:"location"`
	StartsAt     time.Time        `json:"starts_at"`
	EndsAt       *time.Time       `json:"ends_at,omitempty"`
	IsPublished  bool             `json:"is_published"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// IsFree reports whether registration needs no payment.
func (e *Event) IsFree() bool { return money.IsZeroOrNil(e.Price) }

// RegistrantStatus is the status of an event registration.
type RegistrantStatus string

const (
	RegistrantPending   RegistrantStatus = "pending"
	RegistrantPaid      RegistrantStatus = "paid"
	RegistrantRejected  RegistrantStatus = "rejected"
	RegistrantCancelled RegistrantStatus = "cancelled"
)

// RegistrantTransitions is the closed status table of event registrations.
var RegistrantTransitions = fsm.Table[RegistrantStatus]{
	RegistrantPending:   {RegistrantPaid, RegistrantRejected, RegistrantCancelled},
	RegistrantPaid:      {RegistrantCancelled},
	RegistrantRejected:  {},
	RegistrantCancelled: {},
}

// EventRegistrant is a student's registration for an event.
type EventRegistrant struct {
	ID              uuid.UUID        `json:"id"`
	EventID         uuid.UUID        `json:"event_id"`
	EventTitle      string           `json:"event_title,omitempty"`
	StudentID       uuid.UUID        `json:"student_id"`
	StudentName     string           `json:"student_name,omitempty"`
	Phone           string           `json:"phone"`
	PaymentProofURL *string          `json:"payment_proof_url,omitempty"`
	PaymentProofID  *string          `json:"payment_proof_id,omitempty"`
	Status          RegistrantStatus `json:"status"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}
