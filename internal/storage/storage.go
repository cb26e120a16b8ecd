// Package storage keeps profile photos in an object store (MinIO, GCS or S3)
// and turns stored objects into public URLs.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/alva-alumni/apiserver/config"
	"github.com/google/uuid"
)

const (
	BackendMinio = "minio"
	BackendGCS   = "gcs"
	BackendS3    = "s3"

	// MaxPhotoSize bounds an uploaded profile photo.
	MaxPhotoSize = 5 << 20

	photoPrefix = "profile-photos"
)

var (
	ErrPhotoTooLarge   = errors.New("photo exceeds 5 MiB")
	ErrUnsupportedType = errors.New("photo must be a JPEG, PNG or WebP image")
)

var photoExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

// ObjectStorage defines the object operations every backend provides.
type ObjectStorage interface {
	EnsureBucket(ctx context.Context) error
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	Bucket() string
}

// Storage stores profile photos in a backend.
type Storage struct {
	backend ObjectStorage
	baseURL string
}

// NewStorage wraps a backend. baseURL prefixes object keys in returned URLs;
// when empty, URLs take the form /<bucket>/<key>.
func NewStorage(backend ObjectStorage, baseURL string) *Storage {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = "/" + backend.Bucket()
	}
	return &Storage{backend: backend, baseURL: baseURL}
}

// Open connects to the backend named in cfg and makes sure its bucket exists.
// It returns nil when no backend is configured.
func Open(ctx context.Context, cfg config.StorageConfig) (*Storage, error) {
	var (
		backend ObjectStorage
		err     error
	)
	switch cfg.Backend {
	case "":
		return nil, nil
	case BackendMinio:
		backend, err = NewMinioClient(cfg.Minio)
	case BackendGCS:
		backend, err = NewGCSClient(ctx, cfg.GCS)
	case BackendS3:
		backend, err = NewS3Client(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", cfg.Backend, err)
	}
	if err := backend.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("%s: ensure bucket: %w", cfg.Backend, err)
	}
	return NewStorage(backend, cfg.PublicBaseURL), nil
}

// PutPhoto validates an image and stores it under a fresh key for the
// account, returning the public URL of the object.
func (s *Storage) PutPhoto(ctx context.Context, alumniID string, data []byte) (string, error) {
	if len(data) > MaxPhotoSize {
		return "", ErrPhotoTooLarge
	}
	contentType := http.DetectContentType(data)
	ext, ok := photoExtensions[contentType]
	if !ok {
		return "", ErrUnsupportedType
	}

	key := PhotoKey(alumniID, uuid.NewString()+ext)
	if err := s.backend.Put(ctx, key, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
		return "", err
	}
	return s.URL(key), nil
}

// DeleteByURL removes a photo previously returned by PutPhoto for alumniID.
// URLs that do not point at one of that account's objects are ignored.
func (s *Storage) DeleteByURL(ctx context.Context, alumniID, url string) error {
	key, ok := strings.CutPrefix(url, s.baseURL+"/")
	if !ok || alumniID == "" || key != path.Clean(key) {
		return nil
	}
	if !strings.HasPrefix(key, PhotoKey(alumniID, "")+"/") {
		return nil
	}
	return s.backend.Delete(ctx, key)
}

// Get opens a stored object.
func (s *Storage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	return s.backend.Get(ctx, key)
}

func (s *Storage) URL(key string) string {
	return s.baseURL + "/" + key
}

// PhotoKey returns the object key for a photo owned by an account.
func PhotoKey(alumniID, name string) string {
	return path.Join(photoPrefix, alumniID, name)
}
