package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alva-alumni/apiserver/internal/apperr"
	"github.com/alva-alumni/apiserver/internal/auth"
	"github.com/alva-alumni/apiserver/internal/events"
	"github.com/alva-alumni/apiserver/internal/store"
	"github.com/alva-alumni/apiserver/types"
)

var (
	ErrEmailTaken         = apperr.Conflict("Email already registered")
	ErrUSNTaken           = apperr.Conflict("USN already registered")
	ErrInvalidCredentials = apperr.Unauthenticated("Invalid email or password")
	ErrPendingApproval    = apperr.Forbidden("Your account is pending approval")
)

// AuthRepository defines the persistence operations used by registration and login.
type AuthRepository interface {
	GetByEmail(ctx context.Context, email string) (types.Alumni, error)
	GetByUSN(ctx context.Context, usn string) (types.Alumni, error)
	Create(ctx context.Context, alumni types.Alumni) (types.Alumni, error)
	TouchLastLogin(ctx context.Context, id string, at time.Time) error
}

// EventPublisher emits account lifecycle events.
type EventPublisher interface {
	Publish(ctx context.Context, event events.AccountEvent)
}

// Registration is a validated sign-up request.
type Registration struct {
	Email           string
	Password        string
	Name            string
	USN             string
	Batch           string
	Course          string
	Branch          string
	City            string
	State           string
	Country         string
	Pincode         string
	Phone           string
	CurrentPosition *string
	CurrentCompany  *string
}

// LoginResult is returned by a successful login.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	Alumni    types.Alumni
}

// AuthService implements registration and login.
type AuthService struct {
	repo            AuthRepository
	hasher          *auth.Hasher
	tokens          *auth.TokenService
	events          EventPublisher
	defaultApproved bool
	now             func() time.Time
}

func NewAuthService(repo AuthRepository, hasher *auth.Hasher, tokens *auth.TokenService, publisher EventPublisher, defaultApproved bool) *AuthService {
	return &AuthService{
		repo:            repo,
		hasher:          hasher,
		tokens:          tokens,
		events:          publisher,
		defaultApproved: defaultApproved,
		now:             time.Now,
	}
}

// Register creates an account awaiting approval. Email is checked before USN.
func (s *AuthService) Register(ctx context.Context, reg Registration) (types.Alumni, error) {
	if _, err := s.repo.GetByEmail(ctx, reg.Email); err == nil {
		return types.Alumni{}, ErrEmailTaken
	} else if !errors.Is(err, store.ErrNotFound) {
		return types.Alumni{}, apperr.Internal(fmt.Errorf("lookup email: %w", err))
	}

	if _, err := s.repo.GetByUSN(ctx, reg.USN); err == nil {
		return types.Alumni{}, ErrUSNTaken
	} else if !errors.Is(err, store.ErrNotFound) {
		return types.Alumni{}, apperr.Internal(fmt.Errorf("lookup usn: %w", err))
	}

	digest, err := s.hasher.Hash(ctx, reg.Password)
	if err != nil {
		return types.Alumni{}, apperr.Internal(fmt.Errorf("hash password: %w", err))
	}

	alumni, err := s.repo.Create(ctx, types.Alumni{
		Email:           reg.Email,
		PasswordHash:    digest,
		Name:            reg.Name,
		USN:             reg.USN,
		Batch:           reg.Batch,
		Course:          reg.Course,
		Branch:          reg.Branch,
		City:            reg.City,
		State:           reg.State,
		Country:         reg.Country,
		Pincode:         reg.Pincode,
		Phone:           reg.Phone,
		CurrentPosition: reg.CurrentPosition,
		CurrentCompany:  reg.CurrentCompany,
		IsApproved:      s.defaultApproved,
	})
	switch {
	case errors.Is(err, store.ErrDuplicateEmail):
		return types.Alumni{}, ErrEmailTaken.Wrap(err)
	case errors.Is(err, store.ErrDuplicateUSN):
		return types.Alumni{}, ErrUSNTaken.Wrap(err)
	case err != nil:
		return types.Alumni{}, apperr.Internal(fmt.Errorf("create alumni: %w", err))
	}

	s.events.Publish(ctx, events.NewAccountEvent(events.ChannelRegistered, alumni))
	return alumni, nil
}

// Login checks credentials and issues a session token. Approval is checked
// before the password, so a pending account is reported even when the
// password is wrong.
func (s *AuthService) Login(ctx context.Context, email, password string) (LoginResult, error) {
	alumni, err := s.repo.GetByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return LoginResult{}, ErrInvalidCredentials
	}
	if err != nil {
		return LoginResult{}, apperr.Internal(fmt.Errorf("lookup email: %w", err))
	}

	if !alumni.IsApproved {
		return LoginResult{}, ErrPendingApproval
	}
	if !s.hasher.Verify(ctx, password, alumni.PasswordHash) {
		return LoginResult{}, ErrInvalidCredentials
	}

	now := s.now().UTC()
	if err := s.repo.TouchLastLogin(ctx, alumni.ID, now); err != nil {
		return LoginResult{}, apperr.Internal(fmt.Errorf("record login: %w", err))
	}
	alumni.LastLogin = &now

	token, expiresAt, err := s.tokens.Issue(alumni.ID, alumni.Email)
	if err != nil {
		return LoginResult{}, apperr.Internal(fmt.Errorf("issue token: %w", err))
	}
	return LoginResult{Token: token, ExpiresAt: expiresAt, Alumni: alumni}, nil
}
