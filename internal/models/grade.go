package models

import "time"

// DefaultPeriod is applied to legacy grade rows recorded before periods
// existed.
const DefaultPeriod = 1

// Grade is a single grade entry for a student in a class. Type is a free-form
// category label (Evaluación, Quiz, Trabajo...).
type Grade struct {
	ID          string    `db:"id" json:"id"`
	StudentID   string    `db:"student_id" json:"student_id"`
	ClassID     string    `db:"class_id" json:"class_id"`
	Value       float64   `db:"value" json:"value"`
	Description *string   `db:"description" json:"description,omitempty"`
	Type        *string   `db:"type" json:"type,omitempty"`
	Period      int       `db:"period" json:"period"`
	Date        time.Time `db:"date" json:"date"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// GradeFilter allows querying of grade entries.
type GradeFilter struct {
	StudentID string
	ClassID   string
	Period    int
	Type      string
}
