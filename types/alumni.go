package types

import "time"

// Alumni is a single alumnus' stored identity, credential and profile record.
type Alumni struct {
	// ID is the unique identifier (UUID) of the alumnus.
	ID string `json:"id" db:"id"`

	// Email is the unique login address.
	Email string `json:"email" db:"email"`

	// PasswordHash stores the bcrypt digest of the password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	Name    string `json:"name" db:"name"`
	USN     string `json:"usn" db:"usn"`
	Batch   string `json:"batch" db:"batch"`
	Course  string `json:"course" db:"course"`
	Branch  string `json:"branch" db:"branch"`
	City    string `json:"city" db:"city"`
	State   string `json:"state" db:"state"`
	Country string `json:"country" db:"country"`
	Pincode string `json:"pincode" db:"pincode"`
	Phone   string `json:"phone" db:"phone"`

	CurrentPosition *string `json:"current_position" db:"current_position"`
	CurrentCompany  *string `json:"current_company" db:"current_company"`
	ProfilePhotoURL *string `json:"profile_photo_url" db:"profile_photo_url"`

	// IsApproved gates login. It starts false and is flipped by an administrator.
	IsApproved bool `json:"is_approved" db:"is_approved"`

	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
	LastLogin *time.Time `json:"last_login" db:"last_login"`
}

// DirectoryEntry is the public projection of an approved alumnus shown in the directory.
type DirectoryEntry struct {
	ID              string    `json:"id"`
	Email           string    `json:"email"`
	Name            string    `json:"name"`
	USN             string    `json:"usn"`
	Batch           string    `json:"batch"`
	Course          string    `json:"course"`
	Branch          string    `json:"branch"`
	City            string    `json:"city"`
	State           string    `json:"state"`
	Country         string    `json:"country"`
	CurrentPosition *string   `json:"current_position"`
	CurrentCompany  *string   `json:"current_company"`
	ProfilePhotoURL *string   `json:"profile_photo_url"`
	CreatedAt       time.Time `json:"created_at"`
}

// ProfileUpdate carries the mutable profile fields. Nil fields are left untouched.
type ProfileUpdate struct {
	Name            *string
	Phone           *string
	City            *string
	State           *string
	Country         *string
	Pincode         *string
	CurrentPosition *string
	CurrentCompany  *string
	ProfilePhotoURL *string
}

// Empty reports whether the update would change nothing.
func (u ProfileUpdate) Empty() bool {
	return u.Name == nil && u.Phone == nil && u.City == nil && u.State == nil &&
		u.Country == nil && u.Pincode == nil && u.CurrentPosition == nil &&
		u.CurrentCompany == nil && u.ProfilePhotoURL == nil
}

// DirectoryFilter narrows the approved-alumni listing.
type DirectoryFilter struct {
	Search string
	Batch  string
	Course string
	Branch string
	Offset int
	Limit  int
}

// Pagination describes one page of a listing.
type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

// DirectoryPage is a page of the approved-alumni directory.
type DirectoryPage struct {
	Data       []DirectoryEntry `json:"data"`
	Pagination Pagination       `json:"pagination"`
}
