package models

import "time"

// ParentProfile extends a PARENT account with guardian details.
type ParentProfile struct {
	ID           string    `db:"id" json:"id"`
	UserID       string    `db:"user_id" json:"user_id"`
	Phone        *string   `db:"phone" json:"phone,omitempty"`
	Relationship *string   `db:"relationship" json:"relationship,omitempty"`
	Active       bool      `db:"active" json:"active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// ParentDetail joins profile and account columns for listings.
type ParentDetail struct {
	ParentProfile
	FullName string `db:"full_name" json:"full_name"`
	Email    string `db:"email" json:"email"`
}

// ParentStudentLink joins a guardian to a student. The pair is unique and the
// link carries no state of its own.
type ParentStudentLink struct {
	ParentID  string    `db:"parent_id" json:"parent_id"`
	StudentID string    `db:"student_id" json:"student_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// ParentFilter captures filtering options for listing parents.
// IncludeAll disables the default active-only scoping.
type ParentFilter struct {
	Search     string
	Active     *bool
	IncludeAll bool
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  string
}
