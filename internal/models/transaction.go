package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/learnhub/backend/pkg/fsm"
	"github.com/learnhub/backend/pkg/money"
)

// TransactionStatus is the status of a course purchase.
type TransactionStatus string

const (
	TransactionUnpaid    TransactionStatus = "unpaid"
	TransactionPending   TransactionStatus = "pending"
	TransactionPaid      TransactionStatus = "paid"
	TransactionFailed    TransactionStatus = "failed"
	TransactionCancelled TransactionStatus = "cancelled"
	TransactionExpired   TransactionStatus = "expired"
	TransactionRefunded  TransactionStatus = "refunded"
)

// TransactionTransitions is the closed status table of course transactions.
var TransactionTransitions = fsm.Table[TransactionStatus]{
	TransactionUnpaid:    {TransactionPending, TransactionPaid, TransactionFailed, TransactionCancelled, TransactionExpired},
	TransactionPending:   {TransactionPaid, TransactionFailed, TransactionCancelled, TransactionExpired},
	TransactionFailed:    {TransactionPending, TransactionCancelled},
	TransactionPaid:      {TransactionRefunded},
	TransactionCancelled: {},
	TransactionExpired:   {},
	TransactionRefunded:  {},
}

// ReleasesPromo reports whether entering s returns the claimed promo code to
// the pool. Leaving such a status claims it again.
func (s TransactionStatus) ReleasesPromo() bool {
	switch s {
	case TransactionFailed, TransactionCancelled, TransactionExpired:
		return true
	}
	return false
}

// CourseTransaction is a course purchase.
type CourseTransaction struct {
	ID                 uuid.UUID         `json:"id"`
	CourseID           uuid.UUID         `json:"course_id"`
	CourseTitle        string            `json:"course_title,omitempty"`
	StudentID          uuid.UUID         `json:"student_id"`
	StudentName        string            `json:"student_name,omitempty"`
	OriginalPrice      decimal.Decimal   `json:"original_price"`
	Discount           decimal.Decimal   `json:"discount"`
	FinalPrice         decimal.Decimal   `json:"final_price"`
	Status             TransactionStatus `json:"status"`
	PromoCodeID        *uuid.UUID        `json:"promo_code_id,omitempty"`
	PaymentToken       *string           `json:"payment_token,omitempty"`
	PaymentRedirectURL *string           `json:"payment_redirect_url,omitempty"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`
}

// Breakdown returns the stored price fields.
func (t *CourseTransaction) Breakdown() money.Breakdown {
	return money.Breakdown{OriginalPrice: t.OriginalPrice, Discount: t.Discount, FinalPrice: t.FinalPrice}
}

// Subject kinds recorded in status audits.
const (
	SubjectCourseTransaction = "course_transaction"
	SubjectEventRegistrant   = "event_registrant"
)

// ActorKind is who caused a status change.
type ActorKind string

const (
	ActorAdmin   ActorKind = "admin"
	ActorGateway ActorKind = "gateway"
	ActorSystem  ActorKind = "system"
)

// Actor identifies the originator of a status change.
type Actor struct {
	Kind ActorKind
	ID   *uuid.UUID
}

// AdminActor returns an Actor for an authenticated admin user.
func AdminActor(userID uuid.UUID) Actor { return Actor{Kind: ActorAdmin, ID: &userID} }

// StatusAudit records one accepted transition.
type StatusAudit struct {
	ID          uuid.UUID  `json:"id"`
	SubjectKind string     `json:"subject_kind"`
	SubjectID   uuid.UUID  `json:"subject_id"`
	FromStatus  string     `json:"from_status"`
	ToStatus    string     `json:"to_status"`
	ActorKind   ActorKind  `json:"actor_kind"`
	ActorID     *uuid.UUID `json:"actor_id,omitempty"`
	Note        string     `json:"note,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}
