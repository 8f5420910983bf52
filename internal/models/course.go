package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Taxonomy is the shape shared by course categories, course types,
// article categories and tags.
type Taxonomy struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Tool is software taught in a course.
type Tool struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	LogoURL   *string   `json:"logo_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Course is a purchasable course.
type Course struct {
	ID           uuid.UUID       `json:"id"`
	Title        string          `json:"title"`
	Slug         string          `json:"slug"`
	Description  string          `json:"description"`
	ThumbnailURL *string         `json:"thumbnail_url,omitempty"`
	Price        decimal.Decimal `json:"price"`
	CategoryID   *uuid.UUID      `json:"category_id,omitempty"`
	CategoryName *string         `json:"category_name,omitempty"`
	TypeID       *uuid.UUID      `json:"type_id,omitempty"`
	TypeName     *string         `json:"type_name,omitempty"`
	MentorID     *uuid.UUID      `json:"mentor_id,omitempty"`
	MentorName   *string         `json:"mentor_name,omitempty"`
	IsPublished  bool            `json:"is_published"`
	Tools        []Tool          `json:"tools,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Article is a blog post.
type Article struct {
	ID           uuid.UUID  `json:"id"`
	Title        string     `json:"title"`
	Slug         string     `json:"slug"`
	Content      string     `json:"content,omitempty"`
	ThumbnailURL *string    `json:"thumbnail_url,omitempty"`
	CategoryID   *uuid.UUID `json:"category_id,omitempty"`
	CategoryName *string    `json:"category_name,omitempty"`
	WriterID     *uuid.UUID `json:"writer_id,omitempty"`
	WriterName   *string    `json:"writer_name,omitempty"`
	IsPublished  bool       `json:"is_published"`
	PublishedAt  *time.Time `json:"published_at,omitempty"`
	Tags         []Taxonomy `json:"tags,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}
