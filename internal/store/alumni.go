package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/alva-alumni/apiserver/types"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

const (
	uniqueViolation     = pq.ErrorCode("23505")
	emailConstraintName = "alumni_email_key"
	usnConstraintName   = "alumni_usn_key"
)

const alumniColumns = `id, email, password_hash, name, usn, batch, course, branch, city, state, country, pincode, phone,
		current_position, current_company, profile_photo_url, is_approved, created_at, updated_at, last_login`

type rowScanner interface {
	Scan(dest ...any) error
}

// AlumniRepository handles persistence for alumni accounts.
type AlumniRepository struct {
	db *sql.DB
}

func NewAlumniRepository(db *sql.DB) *AlumniRepository {
	return &AlumniRepository{db: db}
}

func (r *AlumniRepository) GetByID(ctx context.Context, id string) (types.Alumni, error) {
	const query = `
		SELECT ` + alumniColumns + `
		FROM alumni
		WHERE id = $1`
	return scanAlumni(r.db.QueryRowContext(ctx, query, id))
}

func (r *AlumniRepository) GetByEmail(ctx context.Context, email string) (types.Alumni, error) {
	const query = `
		SELECT ` + alumniColumns + `
		FROM alumni
		WHERE email = $1`
	return scanAlumni(r.db.QueryRowContext(ctx, query, email))
}

func (r *AlumniRepository) GetByUSN(ctx context.Context, usn string) (types.Alumni, error) {
	const query = `
		SELECT ` + alumniColumns + `
		FROM alumni
		WHERE usn = $1`
	return scanAlumni(r.db.QueryRowContext(ctx, query, usn))
}

// Create inserts a new account. Unique violations on email or USN are
// reported as ErrDuplicateEmail or ErrDuplicateUSN.
func (r *AlumniRepository) Create(ctx context.Context, alumni types.Alumni) (types.Alumni, error) {
	if alumni.ID == "" {
		alumni.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	alumni.CreatedAt = now
	alumni.UpdatedAt = now
	alumni.LastLogin = nil

	const query = `
		INSERT INTO alumni (id, email, password_hash, name, usn, batch, course, branch, city, state, country, pincode, phone,
			current_position, current_company, profile_photo_url, is_approved, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`
	_, err := r.db.ExecContext(
		ctx,
		query,
		alumni.ID,
		alumni.Email,
		alumni.PasswordHash,
		alumni.Name,
		alumni.USN,
		alumni.Batch,
		alumni.Course,
		alumni.Branch,
		alumni.City,
		alumni.State,
		alumni.Country,
		alumni.Pincode,
		alumni.Phone,
		alumni.CurrentPosition,
		alumni.CurrentCompany,
		alumni.ProfilePhotoURL,
		alumni.IsApproved,
		alumni.CreatedAt,
		alumni.UpdatedAt,
	)
	if err != nil {
		return types.Alumni{}, translateInsertError(err)
	}
	return alumni, nil
}

// UpdateProfile applies a partial update and returns the refreshed row.
func (r *AlumniRepository) UpdateProfile(ctx context.Context, id string, update types.ProfileUpdate) (types.Alumni, error) {
	if update.Empty() {
		return types.Alumni{}, errors.New("empty profile update")
	}

	var (
		sets []string
		args []any
	)
	set := func(column string, value *string) {
		if value == nil {
			return
		}
		args = append(args, *value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	set("name", update.Name)
	set("phone", update.Phone)
	set("city", update.City)
	set("state", update.State)
	set("country", update.Country)
	set("pincode", update.Pincode)
	set("current_position", update.CurrentPosition)
	set("current_company", update.CurrentCompany)
	set("profile_photo_url", update.ProfilePhotoURL)

	args = append(args, time.Now().UTC())
	sets = append(sets, fmt.Sprintf("updated_at = $%d", len(args)))
	args = append(args, id)

	query := fmt.Sprintf(`
		UPDATE alumni
		SET %s
		WHERE id = $%d
		RETURNING %s`, strings.Join(sets, ", "), len(args), alumniColumns)
	return scanAlumni(r.db.QueryRowContext(ctx, query, args...))
}

// TouchLastLogin records a successful login.
func (r *AlumniRepository) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	const query = `UPDATE alumni SET last_login = $1 WHERE id = $2`
	result, err := r.db.ExecContext(ctx, query, at, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// SetApproved flips the approval flag of the account with the given email.
func (r *AlumniRepository) SetApproved(ctx context.Context, email string, approved bool) (types.Alumni, error) {
	const query = `
		UPDATE alumni
		SET is_approved = $1, updated_at = $2
		WHERE email = $3
		RETURNING ` + alumniColumns
	return scanAlumni(r.db.QueryRowContext(ctx, query, approved, time.Now().UTC(), email))
}

// ListApproved returns a page of approved alumni, newest first, and the total
// number of approved alumni matching the filter.
func (r *AlumniRepository) ListApproved(ctx context.Context, filter types.DirectoryFilter) ([]types.DirectoryEntry, int, error) {
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	if filter.Limit < 1 {
		filter.Limit = 10
	}

	where, args := directoryWhere(filter)

	countQuery := `SELECT COUNT(1) FROM alumni WHERE ` + where
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, filter.Offset, filter.Limit)
	listQuery := fmt.Sprintf(`
		SELECT id, email, name, usn, batch, course, branch, city, state, country,
			current_position, current_company, profile_photo_url, created_at
		FROM alumni
		WHERE %s
		ORDER BY created_at DESC
		OFFSET $%d LIMIT $%d`, where, len(args)-1, len(args))
	rows, err := r.db.QueryContext(ctx, listQuery, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	entries := make([]types.DirectoryEntry, 0, filter.Limit)
	for rows.Next() {
		var entry types.DirectoryEntry
		if err := rows.Scan(
			&entry.ID,
			&entry.Email,
			&entry.Name,
			&entry.USN,
			&entry.Batch,
			&entry.Course,
			&entry.Branch,
			&entry.City,
			&entry.State,
			&entry.Country,
			&entry.CurrentPosition,
			&entry.CurrentCompany,
			&entry.ProfilePhotoURL,
			&entry.CreatedAt,
		); err != nil {
			return nil, 0, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return entries, total, nil
}

func directoryWhere(filter types.DirectoryFilter) (string, []any) {
	clauses := []string{"is_approved = TRUE"}
	var args []any

	if search := strings.TrimSpace(filter.Search); search != "" {
		args = append(args, "%"+escapeLike(search)+"%")
		n := len(args)
		clauses = append(clauses, fmt.Sprintf("(name ILIKE $%d OR email ILIKE $%d OR usn ILIKE $%d)", n, n, n))
	}
	exact := func(column, value string) {
		if value == "" {
			return
		}
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	exact("batch", filter.Batch)
	exact("course", filter.Course)
	exact("branch", filter.Branch)

	return strings.Join(clauses, " AND "), args
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func scanAlumni(row rowScanner) (types.Alumni, error) {
	var alumni types.Alumni
	err := row.Scan(
		&alumni.ID,
		&alumni.Email,
		&alumni.PasswordHash,
		&alumni.Name,
		&alumni.USN,
		&alumni.Batch,
		&alumni.Course,
		&alumni.Branch,
		&alumni.City,
		&alumni.State,
		&alumni.Country,
		&alumni.Pincode,
		&alumni.Phone,
		&alumni.CurrentPosition,
		&alumni.CurrentCompany,
		&alumni.ProfilePhotoURL,
		&alumni.IsApproved,
		&alumni.CreatedAt,
		&alumni.UpdatedAt,
		&alumni.LastLogin,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Alumni{}, ErrNotFound
		}
		return types.Alumni{}, err
	}
	return alumni, nil
}

func translateInsertError(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != uniqueViolation {
		return err
	}
	switch pqErr.Constraint {
	case emailConstraintName:
		return ErrDuplicateEmail
	case usnConstraintName:
		return ErrDuplicateUSN
	}
	return err
}
