package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"

	"github.com/alva-alumni/apiserver/internal/apperr"
	"github.com/alva-alumni/apiserver/internal/auth"
	"github.com/alva-alumni/apiserver/internal/events"
	"github.com/alva-alumni/apiserver/internal/storage"
	"github.com/alva-alumni/apiserver/internal/store"
	"github.com/alva-alumni/apiserver/types"
	"github.com/rs/zerolog"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

var (
	ErrAlumniNotFound   = apperr.NotFound("Alumni not found")
	ErrNoFieldsToUpdate = apperr.Validation("No valid fields to update")
	ErrTokenRejected    = apperr.Unauthenticated("Invalid or expired token")
	ErrPhotoStorageOff  = apperr.New(http.StatusServiceUnavailable, "Photo uploads are not configured")
	ErrPhotoTooLarge    = apperr.Validation("Photo exceeds 5 MiB")
	ErrPhotoType        = apperr.Validation("Photo must be a JPEG, PNG or WebP image")
	ErrPageOutOfRange   = apperr.Validation("Invalid page")
)

// AlumniRepository defines the persistence operations behind profile access.
type AlumniRepository interface {
	GetByID(ctx context.Context, id string) (types.Alumni, error)
	UpdateProfile(ctx context.Context, id string, update types.ProfileUpdate) (types.Alumni, error)
	SetApproved(ctx context.Context, email string, approved bool) (types.Alumni, error)
	ListApproved(ctx context.Context, filter types.DirectoryFilter) ([]types.DirectoryEntry, int, error)
}

// PhotoStore keeps uploaded profile photos.
type PhotoStore interface {
	PutPhoto(ctx context.Context, alumniID string, data []byte) (string, error)
	DeleteByURL(ctx context.Context, alumniID, url string) error
}

// DirectoryQuery is a directory request. Page and Limit are one-based and
// already validated as positive; Limit is capped at MaxPageSize.
type DirectoryQuery struct {
	Search string
	Batch  string
	Course string
	Branch string
	Page   int
	Limit  int
}

// AlumniService implements profile reads, updates and the directory.
type AlumniService struct {
	repo   AlumniRepository
	tokens *auth.TokenService
	photos PhotoStore
	events EventPublisher
}

// NewAlumniService constructs the service. photos may be nil, in which case
// UploadPhoto fails.
func NewAlumniService(repo AlumniRepository, tokens *auth.TokenService, photos PhotoStore, publisher EventPublisher) *AlumniService {
	return &AlumniService{repo: repo, tokens: tokens, photos: photos, events: publisher}
}

func (s *AlumniService) GetProfile(ctx context.Context, id string) (types.Alumni, error) {
	alumni, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return types.Alumni{}, ErrAlumniNotFound
	}
	if err != nil {
		return types.Alumni{}, apperr.Internal(fmt.Errorf("get alumni: %w", err))
	}
	return alumni, nil
}

// GetProfileByToken resolves a session token carried in a request body rather
// than a header. Expiry is re-checked explicitly after verification.
func (s *AlumniService) GetProfileByToken(ctx context.Context, token string) (types.Alumni, error) {
	claims, err := s.tokens.Verify(token)
	if err != nil {
		zerolog.Ctx(ctx).Debug().Err(err).Msg("profile token rejected")
		return types.Alumni{}, ErrTokenRejected.Wrap(err)
	}
	if s.tokens.Expired(claims) {
		return types.Alumni{}, ErrTokenRejected.Wrap(auth.ErrTokenExpired)
	}
	return s.GetProfile(ctx, claims.ID)
}

// UpdateProfile applies a partial update of the allow-listed fields.
func (s *AlumniService) UpdateProfile(ctx context.Context, id string, update types.ProfileUpdate) (types.Alumni, error) {
	if update.Empty() {
		return types.Alumni{}, ErrNoFieldsToUpdate
	}
	alumni, err := s.repo.UpdateProfile(ctx, id, update)
	if errors.Is(err, store.ErrNotFound) {
		return types.Alumni{}, ErrAlumniNotFound
	}
	if err != nil {
		return types.Alumni{}, apperr.Internal(fmt.Errorf("update profile: %w", err))
	}
	return alumni, nil
}

// ListApproved returns one page of approved alumni, newest first.
func (s *AlumniService) ListApproved(ctx context.Context, q DirectoryQuery) (types.DirectoryPage, error) {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = DefaultPageSize
	}
	if q.Limit > MaxPageSize {
		q.Limit = MaxPageSize
	}
	if q.Page-1 > math.MaxInt/q.Limit {
		return types.DirectoryPage{}, ErrPageOutOfRange
	}

	entries, total, err := s.repo.ListApproved(ctx, types.DirectoryFilter{
		Search: q.Search,
		Batch:  q.Batch,
		Course: q.Course,
		Branch: q.Branch,
		Offset: (q.Page - 1) * q.Limit,
		Limit:  q.Limit,
	})
	if err != nil {
		return types.DirectoryPage{}, apperr.Internal(fmt.Errorf("list alumni: %w", err))
	}
	if entries == nil {
		entries = []types.DirectoryEntry{}
	}

	return types.DirectoryPage{
		Data: entries,
		Pagination: types.Pagination{
			Page:  q.Page,
			Limit: q.Limit,
			Total: total,
			Pages: (total + q.Limit - 1) / q.Limit,
		},
	}, nil
}

// UploadPhoto stores a new profile photo and points the profile at it. The
// previous photo is removed once the profile no longer references it.
func (s *AlumniService) UploadPhoto(ctx context.Context, id string, data []byte) (types.Alumni, error) {
	if s.photos == nil {
		return types.Alumni{}, ErrPhotoStorageOff
	}
	current, err := s.GetProfile(ctx, id)
	if err != nil {
		return types.Alumni{}, err
	}

	url, err := s.photos.PutPhoto(ctx, id, data)
	switch {
	case errors.Is(err, storage.ErrPhotoTooLarge):
		return types.Alumni{}, ErrPhotoTooLarge.Wrap(err)
	case errors.Is(err, storage.ErrUnsupportedType):
		return types.Alumni{}, ErrPhotoType.Wrap(err)
	case err != nil:
		return types.Alumni{}, apperr.Internal(fmt.Errorf("store photo: %w", err))
	}

	log := zerolog.Ctx(ctx)
	updated, err := s.UpdateProfile(ctx, id, types.ProfileUpdate{ProfilePhotoURL: &url})
	if err != nil {
		if delErr := s.photos.DeleteByURL(ctx, id, url); delErr != nil {
			log.Warn().Err(delErr).Str("url", url).Msg("remove orphaned photo")
		}
		return types.Alumni{}, err
	}

	if current.ProfilePhotoURL != nil && *current.ProfilePhotoURL != url {
		if err := s.photos.DeleteByURL(ctx, id, *current.ProfilePhotoURL); err != nil {
			log.Warn().Err(err).Str("url", *current.ProfilePhotoURL).Msg("remove previous photo")
		}
	}
	return updated, nil
}

// SetApproved grants or revokes login access for the account with the given
// email and announces the change.
func (s *AlumniService) SetApproved(ctx context.Context, email string, approved bool) (types.Alumni, error) {
	alumni, err := s.repo.SetApproved(ctx, email, approved)
	if errors.Is(err, store.ErrNotFound) {
		return types.Alumni{}, ErrAlumniNotFound
	}
	if err != nil {
		return types.Alumni{}, apperr.Internal(fmt.Errorf("set approval: %w", err))
	}
	s.events.Publish(ctx, events.NewAccountEvent(events.ChannelApproved, alumni))
	return alumni, nil
}
