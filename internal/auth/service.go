package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/learnhub/backend/internal/models"
	"github.com/learnhub/backend/pkg/apperr"
	"github.com/learnhub/backend/pkg/utils"
)

var (
	ErrInvalidCredentials = apperr.Unauthorized("invalid email or password")
	ErrEmailTaken         = apperr.Conflict("email already registered")
)

// Store is the persistence the auth service needs.
type Store interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	RegisterStudent(ctx context.Context, u NewUser, institution string) (*models.User, error)
}

// TokenIssuer signs session tokens.
type TokenIssuer interface {
	Generate(userID uuid.UUID, email, role string) (string, error)
}

// Session is a logged-in user with their token.
type Session struct {
	Token string            `json:"token"`
	User  models.UserPublic `json:"user"`
}

// Service implements login, self-registration and profile lookup.
type Service struct {
	store  Store
	tokens TokenIssuer
	logger *zap.Logger
}

// NewService creates an auth service.
func NewService(store Store, tokens TokenIssuer, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, tokens: tokens, logger: logger}
}

// Login verifies credentials and issues a token. Unknown emails and wrong
// passwords are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	user, err := s.store.GetByEmail(ctx, email)
	if err != nil {
		if apperr.IsKind(err, apperr.KindNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !utils.CheckPassword(password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	return s.session(user)
}

// RegisterInput is a student self-signup.
type RegisterInput struct {
	Email       string
	Password    string
	FullName    string
	Phone       string
	Institution string
}

// Register creates a student account and logs it in.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	hash, err := utils.HashPassword(in.Password)
	if err != nil {
		if errors.Is(err, utils.ErrPasswordTooLong) {
			return nil, apperr.Validation("password must be at most 72 bytes")
		}
		return nil, err
	}
	var phone *string
	if p := strings.TrimSpace(in.Phone); p != "" {
		phone = &p
	}
	user, err := s.store.RegisterStudent(ctx, NewUser{
		Email:        in.Email,
		PasswordHash: hash,
		FullName:     strings.TrimSpace(in.FullName),
		Phone:        phone,
		Role:         models.RoleStudent,
	}, strings.TrimSpace(in.Institution))
	if err != nil {
		return nil, err
	}
	s.logger.Info("student registered", zap.String("user_id", user.ID.String()))
	return s.session(user)
}

// Me returns the public profile of userID.
func (s *Service) Me(ctx context.Context, userID uuid.UUID) (models.UserPublic, error) {
	user, err := s.store.GetByID(ctx, userID)
	if err != nil {
		return models.UserPublic{}, err
	}
	return user.ToPublic(), nil
}

func (s *Service) session(user *models.User) (*Session, error) {
	token, err := s.tokens.Generate(user.ID, user.Email, user.RoleName)
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, User: user.ToPublic()}, nil
}
