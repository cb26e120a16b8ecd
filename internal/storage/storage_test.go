package storage

import (
	"bytes"
	"context"
	"io"
	"path"
	"strings"
	"testing"

	"github.com/alva-alumni/apiserver/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memBackend struct {
	objects      map[string][]byte
	contentTypes map[string]string
	deleted      []string
}

func newMemBackend() *memBackend {
	return &memBackend{objects: map[string][]byte{}, contentTypes: map[string]string{}}
}

func (m *memBackend) EnsureBucket(context.Context) error { return nil }

func (m *memBackend) Put(_ context.Context, key string, r io.Reader, _ int64, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.objects[key] = data
	m.contentTypes[key] = contentType
	return nil
}

func (m *memBackend) Get(_ context.Context, key string) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(m.objects[key])), nil
}

func (m *memBackend) Delete(_ context.Context, key string) error {
	m.deleted = append(m.deleted, key)
	delete(m.objects, key)
	return nil
}

func (m *memBackend) Bucket() string { return "photos" }

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func TestPutPhoto(t *testing.T) {
	backend := newMemBackend()
	s := NewStorage(backend, "https://cdn.example.com/")

	url, err := s.PutPhoto(context.Background(), "a-1", pngHeader)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(url, "https://cdn.example.com/profile-photos/a-1/"))
	assert.True(t, strings.HasSuffix(url, ".png"))

	key := strings.TrimPrefix(url, "https://cdn.example.com/")
	assert.Equal(t, "image/png", backend.contentTypes[key])

	rc, err := s.Get(context.Background(), key)
	require.NoError(t, err)
	data, _ := io.ReadAll(rc)
	assert.Equal(t, pngHeader, data)
}

func TestPutPhoto_Rejects(t *testing.T) {
	s := NewStorage(newMemBackend(), "")

	_, err := s.PutPhoto(context.Background(), "a-1", []byte("plain text, not an image"))
	assert.ErrorIs(t, err, ErrUnsupportedType)

	big := append(append([]byte{}, pngHeader...), make([]byte, MaxPhotoSize)...)
	_, err = s.PutPhoto(context.Background(), "a-1", big)
	assert.ErrorIs(t, err, ErrPhotoTooLarge)
}

func TestDeleteByURL(t *testing.T) {
	backend := newMemBackend()
	s := NewStorage(backend, "")

	url, err := s.PutPhoto(context.Background(), "a-1", pngHeader)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "/photos/profile-photos/a-1/"))

	require.NoError(t, s.DeleteByURL(context.Background(), "a-1", "https://elsewhere.example/me.png"))
	assert.Empty(t, backend.deleted)

	require.NoError(t, s.DeleteByURL(context.Background(), "a-1", url))
	assert.Len(t, backend.deleted, 1)
	assert.Empty(t, backend.objects)
}

func TestDeleteByURL_OtherAccount(t *testing.T) {
	backend := newMemBackend()
	s := NewStorage(backend, "")
	ctx := context.Background()

	victimURL, err := s.PutPhoto(ctx, "victim", pngHeader)
	require.NoError(t, err)
	victimKey := strings.TrimPrefix(victimURL, "/photos/")

	for _, url := range []string{
		victimURL,
		"/photos/profile-photos/attacker/../victim/" + path.Base(victimKey),
		"/photos/profile-photos/attackerx/" + path.Base(victimKey),
	} {
		require.NoError(t, s.DeleteByURL(ctx, "attacker", url))
	}
	require.NoError(t, s.DeleteByURL(ctx, "", victimURL))

	assert.Empty(t, backend.deleted)
	assert.Contains(t, backend.objects, victimKey)
}

func TestOpen(t *testing.T) {
	s, err := Open(context.Background(), config.StorageConfig{})
	require.NoError(t, err)
	assert.Nil(t, s)

	_, err = Open(context.Background(), config.StorageConfig{Backend: "ftp"})
	assert.ErrorContains(t, err, "unknown storage backend")

	_, err = Open(context.Background(), config.StorageConfig{Backend: BackendMinio})
	assert.ErrorContains(t, err, "MINIO_ENDPOINT is required")

	_, err = Open(context.Background(), config.StorageConfig{Backend: BackendS3})
	assert.ErrorContains(t, err, "S3_BUCKET is required")
}
