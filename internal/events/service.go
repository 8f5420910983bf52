// Package events manages events and the student registrations for them.
package events

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/learnhub/backend/internal/media"
	"github.com/learnhub/backend/internal/models"
	"github.com/learnhub/backend/pkg/apperr"
	"github.com/learnhub/backend/pkg/broker"
	"github.com/learnhub/backend/pkg/fsm"
	"github.com/learnhub/backend/pkg/metrics"
	"github.com/learnhub/backend/pkg/pagination"
	"github.com/learnhub/backend/pkg/storage"
	"github.com/learnhub/backend/pkg/validation"
)

var (
	ErrAlreadyRegistered = apperr.Conflict("already registered for this event")
	ErrInvalidPhone      = apperr.Validation("phone must be a valid Indonesian mobile number")
	ErrEventNotFound     = apperr.NotFound("event not found")
	ErrIllegalTransition = apperr.Conflict("status transition not allowed")
	ErrUnknownStatus     = apperr.Validation("unknown registration status")
	ErrConcurrentUpdate  = apperr.Conflict("registration changed concurrently, reload and retry")
)

// Store persists events and registrations.
type Store interface {
	GetPublished(ctx context.Context, id uuid.UUID) (*models.Event, error)
	InsertRegistrant(ctx context.Context, reg *models.EventRegistrant) (bool, error)
	GetRegistrant(ctx context.Context, id uuid.UUID) (*models.EventRegistrant, error)
	ListRegistrants(ctx context.Context, f RegistrantFilter) ([]models.EventRegistrant, int64, error)
	TransitionRegistrant(ctx context.Context, id uuid.UUID, from, to models.RegistrantStatus, actor models.Actor, note string) (bool, error)
}

// ProofUploader stores payment proof images.
type ProofUploader interface {
	Upload(ctx context.Context, folder, data string) (*media.Asset, error)
	Remove(ctx context.Context, publicID string)
}

// RegisterInput is a registration request.
type RegisterInput struct {
	EventID      uuid.UUID
	StudentID    uuid.UUID
	Phone        string
	PaymentProof string // base64 image, optional
}

// Service implements event registration and registrant status changes.
type Service struct {
	store   Store
	proofs  ProofUploader
	events  broker.Publisher
	metrics *metrics.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

// NewService creates a registration service.
func NewService(store Store, proofs ProofUploader, pub broker.Publisher, m *metrics.Metrics, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if pub == nil {
		pub = broker.Nop{}
	}
	return &Service{store: store, proofs: proofs, events: pub, metrics: m, logger: logger, now: time.Now}
}

// Register signs a student up for a published event. Free events are paid on
// creation; priced events start pending with the optional proof attached.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*models.EventRegistrant, error) {
	phone := strings.TrimSpace(in.Phone)
	if !validation.ValidPhone(phone) {
		s.metrics.Registration("invalid_phone")
		return nil, ErrInvalidPhone
	}
	event, err := s.store.GetPublished(ctx, in.EventID)
	if err != nil {
		if apperr.IsKind(err, apperr.KindNotFound) {
			s.metrics.Registration("event_not_found")
			return nil, apperr.WithCause(ErrEventNotFound, err)
		}
		return nil, err
	}

	reg := &models.EventRegistrant{
		EventID:    event.ID,
		EventTitle: event.Title,
		StudentID:  in.StudentID,
		Phone:      phone,
		Status:     models.RegistrantPending,
	}
	if event.IsFree() {
		reg.Status = models.RegistrantPaid
	} else if strings.TrimSpace(in.PaymentProof) != "" {
		asset, err := s.proofs.Upload(ctx, storage.FolderPaymentProofs, in.PaymentProof)
		if err != nil {
			s.metrics.Registration("proof_rejected")
			return nil, err
		}
		reg.PaymentProofURL = &asset.SecureURL
		reg.PaymentProofID = &asset.PublicID
	}

	created, err := s.store.InsertRegistrant(ctx, reg)
	if err != nil || !created {
		if reg.PaymentProofID != nil {
			s.proofs.Remove(ctx, *reg.PaymentProofID)
		}
		if err != nil {
			s.logger.Error("insert registration failed", zap.String("event_id", in.EventID.String()), zap.Error(err))
			return nil, err
		}
		s.metrics.Registration("already_registered")
		return nil, ErrAlreadyRegistered
	}

	s.metrics.Registration(string(reg.Status))
	s.logger.Info("student registered for event",
		zap.String("registrant_id", reg.ID.String()),
		zap.String("event_id", reg.EventID.String()),
		zap.String("student_id", reg.StudentID.String()),
		zap.String("status", string(reg.Status)))
	_ = s.events.Publish(ctx, broker.KeyEventRegistered, broker.EventRegistered{
		RegistrantID: reg.ID, EventID: reg.EventID, StudentID: reg.StudentID, Status: string(reg.Status), At: s.now().UTC(),
	})
	return reg, nil
}

// UpdateStatus applies an admin status change following RegistrantTransitions.
// Writing the current status again is a no-op.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, to models.RegistrantStatus, actor models.Actor, note string) (*models.EventRegistrant, error) {
	if !models.RegistrantTransitions.Known(to) {
		return nil, ErrUnknownStatus
	}
	reg, err := s.store.GetRegistrant(ctx, id)
	if err != nil {
		return nil, err
	}
	from := reg.Status
	if from == to {
		return reg, nil
	}
	if err := models.RegistrantTransitions.Check(from, to); err != nil {
		var te *fsm.TransitionError[models.RegistrantStatus]
		if errors.As(err, &te) {
			return nil, apperr.WithCause(ErrIllegalTransition, err)
		}
		return nil, apperr.Wrap(apperr.KindValidation, "invalid registration status", err)
	}
	moved, err := s.store.TransitionRegistrant(ctx, id, from, to, actor, note)
	if err != nil {
		return nil, err
	}
	if !moved {
		return nil, ErrConcurrentUpdate
	}

	s.metrics.Transition(models.SubjectEventRegistrant, string(from), string(to))
	s.logger.Info("registration status changed",
		zap.String("registrant_id", id.String()),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
		zap.String("actor_kind", string(actor.Kind)))
	_ = s.events.Publish(ctx, broker.KeyRegistrantStatusChanged, broker.StatusChanged{
		SubjectID: id, From: string(from), To: string(to), ActorKind: string(actor.Kind), ActorID: actor.ID, At: s.now().UTC(),
	})
	return s.store.GetRegistrant(ctx, id)
}

// ListForStudent returns the caller's registrations.
func (s *Service) ListForStudent(ctx context.Context, studentID uuid.UUID, p pagination.Params) ([]models.EventRegistrant, int64, error) {
	return s.store.ListRegistrants(ctx, RegistrantFilter{StudentID: &studentID, Page: p})
}
