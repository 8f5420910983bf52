package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/learnhub/backend/pkg/money"
)

// PromoCode is a one-time discount code.
type PromoCode struct {
	ID           uuid.UUID          `json:"id"`
	Code         string             `json:"code"`
	DiscountType money.DiscountType `json:"discount_type"`
	Discount     decimal.Decimal    `json:"discount"`
	ValidUntil   time.Time          `json:"valid_until"`
	IsUsed       bool               `json:"is_used"`
	CreatedAt    time.Time          `json:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at"`
	DeletedAt    *time.Time         `json:"-"`
}

// Redeemable reports whether the code can be used at now.
func (p *PromoCode) Redeemable(now time.Time) bool {
	return p.DeletedAt == nil && !p.IsUsed && !p.ValidUntil.Before(now)
}
