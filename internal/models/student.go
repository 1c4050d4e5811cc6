package models

import "time"

// Student represents a learner registered in the institution. Students are
// soft-deleted through the active flag so their grade history survives.
type Student struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	BirthDate time.Time `db:"birth_date" json:"birth_date"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// StudentDetail contains a student with its guardians and current classes.
type StudentDetail struct {
	Student
	Parents []ParentDetail `json:"parents,omitempty"`
	Classes []Class        `json:"classes,omitempty"`
}

// StudentFilter encapsulates allowed search parameters for listing students.
// IncludeAll disables the default active-only scoping.
type StudentFilter struct {
	Search     string
	ParentID   string
	ClassID    string
	Active     *bool
	IncludeAll bool
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  string
}
