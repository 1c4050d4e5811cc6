package models

import "time"

// TeacherProfile extends a TEACHER account with instructor state. Classes the
// teacher offers hang off this profile, not off the account.
type TeacherProfile struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// TeacherDetail joins profile and account columns for listings.
type TeacherDetail struct {
	TeacherProfile
	FullName string `db:"full_name" json:"full_name"`
	Email    string `db:"email" json:"email"`
}

// TeacherFilter captures filtering options for listing teachers.
// IncludeAll disables the default active-only scoping.
type TeacherFilter struct {
	Search     string
	Active     *bool
	IncludeAll bool
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  string
}
