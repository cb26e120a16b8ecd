// Package storetest provides an in-memory alumni repository for tests.
package storetest

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/alva-alumni/apiserver/internal/store"
	"github.com/alva-alumni/apiserver/types"
	"github.com/google/uuid"
)

// Memory mirrors store.AlumniRepository, including its unique constraints
// and sentinel errors.
type Memory struct {
	mu   sync.Mutex
	rows map[string]types.Alumni
	// Err, when set, is returned by every call.
	Err error
}

func NewMemory() *Memory {
	return &Memory{rows: map[string]types.Alumni{}}
}

// Put stores a row verbatim, bypassing uniqueness checks.
func (m *Memory) Put(alumni types.Alumni) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[alumni.ID] = alumni
}

func (m *Memory) GetByID(_ context.Context, id string) (types.Alumni, error) {
	return m.find(func(a types.Alumni) bool { return a.ID == id })
}

func (m *Memory) GetByEmail(_ context.Context, email string) (types.Alumni, error) {
	return m.find(func(a types.Alumni) bool { return a.Email == email })
}

func (m *Memory) GetByUSN(_ context.Context, usn string) (types.Alumni, error) {
	return m.find(func(a types.Alumni) bool { return a.USN == usn })
}

func (m *Memory) Create(_ context.Context, alumni types.Alumni) (types.Alumni, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return types.Alumni{}, m.Err
	}
	for _, row := range m.rows {
		if row.Email == alumni.Email {
			return types.Alumni{}, store.ErrDuplicateEmail
		}
		if row.USN == alumni.USN {
			return types.Alumni{}, store.ErrDuplicateUSN
		}
	}
	if alumni.ID == "" {
		alumni.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	alumni.CreatedAt, alumni.UpdatedAt, alumni.LastLogin = now, now, nil
	m.rows[alumni.ID] = alumni
	return alumni, nil
}

func (m *Memory) UpdateProfile(_ context.Context, id string, u types.ProfileUpdate) (types.Alumni, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return types.Alumni{}, m.Err
	}
	if u.Empty() {
		return types.Alumni{}, errors.New("empty profile update")
	}
	row, ok := m.rows[id]
	if !ok {
		return types.Alumni{}, store.ErrNotFound
	}
	set := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
		}
	}
	set(&row.Name, u.Name)
	set(&row.Phone, u.Phone)
	set(&row.City, u.City)
	set(&row.State, u.State)
	set(&row.Country, u.Country)
	set(&row.Pincode, u.Pincode)
	if u.CurrentPosition != nil {
		row.CurrentPosition = u.CurrentPosition
	}
	if u.CurrentCompany != nil {
		row.CurrentCompany = u.CurrentCompany
	}
	if u.ProfilePhotoURL != nil {
		row.ProfilePhotoURL = u.ProfilePhotoURL
	}
	row.UpdatedAt = time.Now().UTC()
	m.rows[id] = row
	return row, nil
}

func (m *Memory) TouchLastLogin(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	row, ok := m.rows[id]
	if !ok {
		return store.ErrNotFound
	}
	row.LastLogin = &at
	m.rows[id] = row
	return nil
}

func (m *Memory) SetApproved(_ context.Context, email string, approved bool) (types.Alumni, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return types.Alumni{}, m.Err
	}
	for id, row := range m.rows {
		if row.Email == email {
			row.IsApproved = approved
			row.UpdatedAt = time.Now().UTC()
			m.rows[id] = row
			return row, nil
		}
	}
	return types.Alumni{}, store.ErrNotFound
}

func (m *Memory) ListApproved(_ context.Context, f types.DirectoryFilter) ([]types.DirectoryEntry, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, 0, m.Err
	}

	search := strings.ToLower(f.Search)
	var matched []types.Alumni
	for _, row := range m.rows {
		switch {
		case !row.IsApproved,
			f.Batch != "" && row.Batch != f.Batch,
			f.Course != "" && row.Course != f.Course,
			f.Branch != "" && row.Branch != f.Branch:
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(row.Name), search) &&
			!strings.Contains(strings.ToLower(row.Email), search) &&
			!strings.Contains(strings.ToLower(row.USN), search) {
			continue
		}
		matched = append(matched, row)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })

	total := len(matched)
	if f.Offset >= total {
		return []types.DirectoryEntry{}, total, nil
	}
	end := min(f.Offset+f.Limit, total)

	entries := make([]types.DirectoryEntry, 0, end-f.Offset)
	for _, a := range matched[f.Offset:end] {
		entries = append(entries, types.DirectoryEntry{
			ID: a.ID, Email: a.Email, Name: a.Name, USN: a.USN,
			Batch: a.Batch, Course: a.Course, Branch: a.Branch,
			City: a.City, State: a.State, Country: a.Country,
			CurrentPosition: a.CurrentPosition, CurrentCompany: a.CurrentCompany,
			ProfilePhotoURL: a.ProfilePhotoURL, CreatedAt: a.CreatedAt,
		})
	}
	return entries, total, nil
}

func (m *Memory) find(match func(types.Alumni) bool) (types.Alumni, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return types.Alumni{}, m.Err
	}
	for _, row := range m.rows {
		if match(row) {
			return row, nil
		}
	}
	return types.Alumni{}, store.ErrNotFound
}
