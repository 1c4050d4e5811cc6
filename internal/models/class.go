package models

import "time"

// Class represents a class offering (materia) owned by exactly one teacher.
// Schedule is a free-form time-slot label; conflict detection compares it
// verbatim against the teacher's other active offerings.
type Class struct {
	ID        string    `db:"id" json:"id"`
	TeacherID string    `db:"teacher_id" json:"teacher_id"`
	Name      string    `db:"name" json:"name"`
	Location  string    `db:"location" json:"location"`
	Schedule  string    `db:"schedule" json:"schedule"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// ClassDetail extends Class with the owning teacher's display name.
type ClassDetail struct {
	Class
	TeacherName string `db:"teacher_name" json:"teacher_name"`
}

// ClassFilter defines filter criteria for listing class offerings.
// IncludeAll disables the default active-only scoping.
type ClassFilter struct {
	Search     string
	TeacherID  string
	Active     *bool
	IncludeAll bool
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  string
}

// Enrollment joins a student to a class offering; unique per pair.
type Enrollment struct {
	ID        string    `db:"id" json:"id"`
	StudentID string    `db:"student_id" json:"student_id"`
	ClassID   string    `db:"class_id" json:"class_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// RosterEntry is one student row on a class roster.
type RosterEntry struct {
	StudentID   string  `db:"student_id" json:"student_id"`
	StudentName string  `db:"student_name" json:"student_name"`
	Active      bool    `db:"active" json:"active"`
	Grades      []Grade `json:"grades"`
}
