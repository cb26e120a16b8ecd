package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/alva-alumni/apiserver/internal/apperr"
	"github.com/alva-alumni/apiserver/internal/auth"
	"github.com/alva-alumni/apiserver/internal/events"
	"github.com/alva-alumni/apiserver/internal/storage"
	"github.com/alva-alumni/apiserver/internal/store"
	"github.com/alva-alumni/apiserver/internal/store/storetest"
	"github.com/alva-alumni/apiserver/types"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "test-secret"

type recordingPublisher struct {
	events []events.AccountEvent
}

func (p *recordingPublisher) Publish(_ context.Context, event events.AccountEvent) {
	p.events = append(p.events, event)
}

type fixture struct {
	repo   *storetest.Memory
	hasher *auth.Hasher
	tokens *auth.TokenService
	pub    *recordingPublisher
	auth   *AuthService
	alumni *AlumniService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		repo:   storetest.NewMemory(),
		hasher: auth.NewHasher(bcrypt.MinCost),
		tokens: auth.NewTokenService(testSecret, time.Hour),
		pub:    &recordingPublisher{},
	}
	f.auth = NewAuthService(f.repo, f.hasher, f.tokens, f.pub, false)
	f.alumni = NewAlumniService(f.repo, f.tokens, nil, f.pub)
	return f
}

func registration(email, usn string) Registration {
	return Registration{
		Email: email, Password: "secret123", Name: "Asha Rao", USN: usn,
		Batch: "2019", Course: "BE", Branch: "CSE", City: "Mysuru", State: "Karnataka",
		Country: "India", Pincode: "570001", Phone: "9876543210",
	}
}

func requireAppErr(t *testing.T, err error, status int, message string) {
	t.Helper()
	appErr, ok := apperr.As(err)
	require.True(t, ok, "expected *apperr.Error, got %v", err)
	assert.Equal(t, status, appErr.Status)
	assert.Equal(t, message, appErr.Message)
}

func (f *fixture) approvedAccount(t *testing.T, email, usn string) types.Alumni {
	t.Helper()
	created, err := f.auth.Register(context.Background(), registration(email, usn))
	require.NoError(t, err)
	approved, err := f.repo.SetApproved(context.Background(), created.Email, true)
	require.NoError(t, err)
	return approved
}

func TestRegister(t *testing.T) {
	f := newFixture(t)

	alumni, err := f.auth.Register(context.Background(), registration("asha@example.com", "4MC19CS001"))
	require.NoError(t, err)

	assert.NotEmpty(t, alumni.ID)
	assert.False(t, alumni.IsApproved)
	assert.Nil(t, alumni.LastLogin)
	assert.NotEqual(t, "secret123", alumni.PasswordHash)
	assert.True(t, f.hasher.Verify(context.Background(), "secret123", alumni.PasswordHash))

	require.Len(t, f.pub.events, 1)
	assert.Equal(t, events.ChannelRegistered, f.pub.events[0].Type)
	assert.Equal(t, alumni.ID, f.pub.events[0].AlumniID)
}

func TestRegister_DefaultApproved(t *testing.T) {
	f := newFixture(t)
	svc := NewAuthService(f.repo, f.hasher, f.tokens, f.pub, true)

	alumni, err := svc.Register(context.Background(), registration("asha@example.com", "4MC19CS001"))
	require.NoError(t, err)
	assert.True(t, alumni.IsApproved)
}

func TestRegister_Duplicates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.auth.Register(ctx, registration("asha@example.com", "4MC19CS001"))
	require.NoError(t, err)

	_, err = f.auth.Register(ctx, registration("asha@example.com", "4MC19CS002"))
	requireAppErr(t, err, http.StatusConflict, "Email already registered")

	_, err = f.auth.Register(ctx, registration("other@example.com", "4MC19CS001"))
	requireAppErr(t, err, http.StatusConflict, "USN already registered")

	// Email is reported first when both collide.
	_, err = f.auth.Register(ctx, registration("asha@example.com", "4MC19CS001"))
	requireAppErr(t, err, http.StatusConflict, "Email already registered")

	assert.Len(t, f.pub.events, 1)
}

// lookupBlindRepo simulates a concurrent insert that lands between the
// existence checks and the insert.
type lookupBlindRepo struct {
	*storetest.Memory
}

func (lookupBlindRepo) GetByEmail(context.Context, string) (types.Alumni, error) {
	return types.Alumni{}, store.ErrNotFound
}

func (lookupBlindRepo) GetByUSN(context.Context, string) (types.Alumni, error) {
	return types.Alumni{}, store.ErrNotFound
}

func TestRegister_ConcurrentInsertConflict(t *testing.T) {
	f := newFixture(t)
	svc := NewAuthService(lookupBlindRepo{f.repo}, f.hasher, f.tokens, f.pub, false)
	ctx := context.Background()

	_, err := svc.Register(ctx, registration("asha@example.com", "4MC19CS001"))
	require.NoError(t, err)

	_, err = svc.Register(ctx, registration("asha@example.com", "4MC19CS009"))
	requireAppErr(t, err, http.StatusConflict, "Email already registered")
	assert.ErrorIs(t, err, store.ErrDuplicateEmail)

	_, err = svc.Register(ctx, registration("other@example.com", "4MC19CS001"))
	requireAppErr(t, err, http.StatusConflict, "USN already registered")
}

func TestRegister_StoreFailure(t *testing.T) {
	f := newFixture(t)
	f.repo.Err = errors.New("connection refused")

	_, err := f.auth.Register(context.Background(), registration("asha@example.com", "4MC19CS001"))
	requireAppErr(t, err, http.StatusInternalServerError, "Internal server error")
	assert.ErrorContains(t, err, "connection refused")
}

func TestLogin(t *testing.T) {
	f := newFixture(t)
	account := f.approvedAccount(t, "asha@example.com", "4MC19CS001")

	before := time.Now().UTC().Add(-time.Second)
	result, err := f.auth.Login(context.Background(), "asha@example.com", "secret123")
	require.NoError(t, err)

	claims, err := f.tokens.Verify(result.Token)
	require.NoError(t, err)
	assert.Equal(t, account.ID, claims.ID)
	assert.Equal(t, "asha@example.com", claims.Email)

	require.NotNil(t, result.Alumni.LastLogin)
	assert.True(t, result.Alumni.LastLogin.After(before))

	stored, err := f.repo.GetByID(context.Background(), account.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.LastLogin)
	assert.Equal(t, *result.Alumni.LastLogin, *stored.LastLogin)
}

func TestLogin_Failures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.approvedAccount(t, "asha@example.com", "4MC19CS001")
	_, err := f.auth.Register(ctx, registration("pending@example.com", "4MC19CS002"))
	require.NoError(t, err)

	_, unknownErr := f.auth.Login(ctx, "nobody@example.com", "secret123")
	requireAppErr(t, unknownErr, http.StatusUnauthorized, "Invalid email or password")

	_, wrongErr := f.auth.Login(ctx, "asha@example.com", "wrong-password")
	requireAppErr(t, wrongErr, http.StatusUnauthorized, "Invalid email or password")
	assert.Equal(t, unknownErr.Error(), wrongErr.Error())

	_, err = f.auth.Login(ctx, "pending@example.com", "wrong-password")
	requireAppErr(t, err, http.StatusForbidden, "Your account is pending approval")

	pending, err := f.repo.GetByEmail(ctx, "pending@example.com")
	require.NoError(t, err)
	assert.Nil(t, pending.LastLogin)
}

func signedToken(t *testing.T, secret string, claims auth.Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func TestGetProfileByToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	account := f.approvedAccount(t, "asha@example.com", "4MC19CS001")

	token, _, err := f.tokens.Issue(account.ID, account.Email)
	require.NoError(t, err)
	alumni, err := f.alumni.GetProfileByToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, account.ID, alumni.ID)

	expired := signedToken(t, testSecret, auth.Claims{
		ID: account.ID, Email: account.Email,
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute))},
	})
	_, err = f.alumni.GetProfileByToken(ctx, expired)
	requireAppErr(t, err, http.StatusUnauthorized, "Invalid or expired token")

	forged := signedToken(t, "other-secret", auth.Claims{
		ID: account.ID, Email: account.Email,
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	})
	_, err = f.alumni.GetProfileByToken(ctx, forged)
	requireAppErr(t, err, http.StatusUnauthorized, "Invalid or expired token")

	ghost, _, err := f.tokens.Issue("00000000-0000-0000-0000-000000000000", "ghost@example.com")
	require.NoError(t, err)
	_, err = f.alumni.GetProfileByToken(ctx, ghost)
	requireAppErr(t, err, http.StatusNotFound, "Alumni not found")
}

func TestUpdateProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	account := f.approvedAccount(t, "asha@example.com", "4MC19CS001")

	_, err := f.alumni.UpdateProfile(ctx, account.ID, types.ProfileUpdate{})
	requireAppErr(t, err, http.StatusBadRequest, "No valid fields to update")

	city, company := "Bengaluru", "Acme"
	updated, err := f.alumni.UpdateProfile(ctx, account.ID, types.ProfileUpdate{City: &city, CurrentCompany: &company})
	require.NoError(t, err)
	assert.Equal(t, "Bengaluru", updated.City)
	require.NotNil(t, updated.CurrentCompany)
	assert.Equal(t, "Acme", *updated.CurrentCompany)
	assert.Equal(t, account.Email, updated.Email)
	assert.Equal(t, account.Name, updated.Name)

	_, err = f.alumni.UpdateProfile(ctx, "missing", types.ProfileUpdate{City: &city})
	requireAppErr(t, err, http.StatusNotFound, "Alumni not found")
}

func TestListApproved(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range 25 {
		f.repo.Put(types.Alumni{
			ID:         fmt.Sprintf("a-%02d", i),
			Email:      fmt.Sprintf("user%02d@example.com", i),
			Name:       fmt.Sprintf("User %02d", i),
			USN:        fmt.Sprintf("USN%02d", i),
			Batch:      "2019",
			IsApproved: i != 0,
			CreatedAt:  base.Add(time.Duration(i) * time.Hour),
		})
	}

	page, err := f.alumni.ListApproved(ctx, DirectoryQuery{Page: 3, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, types.Pagination{Page: 3, Limit: 10, Total: 24, Pages: 3}, page.Pagination)
	require.Len(t, page.Data, 4)
	assert.Equal(t, "a-04", page.Data[0].ID)
	assert.Equal(t, "a-01", page.Data[3].ID)

	page, err = f.alumni.ListApproved(ctx, DirectoryQuery{})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Pagination.Page)
	assert.Equal(t, DefaultPageSize, page.Pagination.Limit)
	assert.Equal(t, "a-24", page.Data[0].ID)

	page, err = f.alumni.ListApproved(ctx, DirectoryQuery{Page: 1, Limit: 500})
	require.NoError(t, err)
	assert.Equal(t, MaxPageSize, page.Pagination.Limit)
	assert.Equal(t, 1, page.Pagination.Pages)

	page, err = f.alumni.ListApproved(ctx, DirectoryQuery{Page: 9, Limit: 10})
	require.NoError(t, err)
	assert.NotNil(t, page.Data)
	assert.Empty(t, page.Data)

	_, err = f.alumni.ListApproved(ctx, DirectoryQuery{Page: math.MaxInt, Limit: 10})
	requireAppErr(t, err, http.StatusBadRequest, "Invalid page")

	page, err = f.alumni.ListApproved(ctx, DirectoryQuery{Search: "user00", Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 0, page.Pagination.Total)
	assert.Equal(t, 0, page.Pagination.Pages)
}

type fakePhotos struct {
	puts    int
	deleted []string
	err     error
}

func (p *fakePhotos) PutPhoto(_ context.Context, id string, _ []byte) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	p.puts++
	return fmt.Sprintf("https://cdn.example.com/profile-photos/%s/%d.png", id, p.puts), nil
}

func (p *fakePhotos) DeleteByURL(_ context.Context, _ string, url string) error {
	p.deleted = append(p.deleted, url)
	return nil
}

func TestUploadPhoto(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	account := f.approvedAccount(t, "asha@example.com", "4MC19CS001")

	_, err := f.alumni.UploadPhoto(ctx, account.ID, []byte("img"))
	requireAppErr(t, err, http.StatusServiceUnavailable, "Photo uploads are not configured")

	photos := &fakePhotos{}
	svc := NewAlumniService(f.repo, f.tokens, photos, f.pub)

	first, err := svc.UploadPhoto(ctx, account.ID, []byte("img"))
	require.NoError(t, err)
	require.NotNil(t, first.ProfilePhotoURL)
	assert.Empty(t, photos.deleted)

	second, err := svc.UploadPhoto(ctx, account.ID, []byte("img"))
	require.NoError(t, err)
	assert.NotEqual(t, *first.ProfilePhotoURL, *second.ProfilePhotoURL)
	assert.Equal(t, []string{*first.ProfilePhotoURL}, photos.deleted)

	photos.err = storage.ErrUnsupportedType
	_, err = svc.UploadPhoto(ctx, account.ID, []byte("img"))
	requireAppErr(t, err, http.StatusBadRequest, "Photo must be a JPEG, PNG or WebP image")
}

type memObjects struct {
	objects map[string][]byte
}

func (m *memObjects) EnsureBucket(context.Context) error { return nil }

func (m *memObjects) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.objects[key] = data
	return nil
}

func (m *memObjects) Get(_ context.Context, key string) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(m.objects[key])), nil
}

func (m *memObjects) Delete(_ context.Context, key string) error {
	delete(m.objects, key)
	return nil
}

func (m *memObjects) Bucket() string { return "photos" }

func TestUploadPhoto_KeepsOtherAccountsPhoto(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.approvedAccount(t, "asha@example.com", "4MC19CS001")
	other := f.approvedAccount(t, "ravi@example.com", "4MC19CS002")

	objects := &memObjects{objects: map[string][]byte{}}
	svc := NewAlumniService(f.repo, f.tokens, storage.NewStorage(objects, ""), f.pub)
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

	owned, err := svc.UploadPhoto(ctx, owner.ID, png)
	require.NoError(t, err)
	ownerURL := *owned.ProfilePhotoURL

	_, err = svc.UpdateProfile(ctx, other.ID, types.ProfileUpdate{ProfilePhotoURL: &ownerURL})
	require.NoError(t, err)
	_, err = svc.UploadPhoto(ctx, other.ID, png)
	require.NoError(t, err)

	assert.Contains(t, objects.objects, strings.TrimPrefix(ownerURL, "/photos/"))
	assert.Len(t, objects.objects, 2)
}

func TestSetApproved(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.auth.Register(ctx, registration("asha@example.com", "4MC19CS001"))
	require.NoError(t, err)

	alumni, err := f.alumni.SetApproved(ctx, "asha@example.com", true)
	require.NoError(t, err)
	assert.True(t, alumni.IsApproved)

	last := f.pub.events[len(f.pub.events)-1]
	assert.Equal(t, events.ChannelApproved, last.Type)
	assert.True(t, last.Approved)

	_, err = f.auth.Login(ctx, "asha@example.com", "secret123")
	require.NoError(t, err)

	_, err = f.alumni.SetApproved(ctx, "nobody@example.com", true)
	requireAppErr(t, err, http.StatusNotFound, "Alumni not found")
}
