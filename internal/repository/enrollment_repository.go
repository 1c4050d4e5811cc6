package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/coem-edu/sga-api/internal/models"
)

// EnrollmentRepository handles persistence of student-class memberships.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// ListByStudent returns the student's enrollments.
func (r *EnrollmentRepository) ListByStudent(ctx context.Context, studentID string) ([]models.Enrollment, error) {
	const query = `SELECT id, student_id, class_id, created_at FROM enrollments WHERE student_id = $1 ORDER BY created_at ASC`
	var enrollments []models.Enrollment
	if err := r.db.SelectContext(ctx, &enrollments, query, studentID); err != nil {
		return nil, fmt.Errorf("list student enrollments: %w", err)
	}
	return enrollments, nil
}

// ListClassesByStudent returns the classes the student is enrolled in.
func (r *EnrollmentRepository) ListClassesByStudent(ctx context.Context, studentID string) ([]models.Class, error) {
	const query = `SELECT c.id, c.teacher_id, c.name, c.location, c.schedule, c.active, c.created_at, c.updated_at
        FROM enrollments e
        JOIN classes c ON c.id = e.class_id
        WHERE e.student_id = $1
        ORDER BY c.name ASC`
	var classes []models.Class
	if err := r.db.SelectContext(ctx, &classes, query, studentID); err != nil {
		return nil, fmt.Errorf("list student classes: %w", err)
	}
	return classes, nil
}

// ReplaceForStudent atomically swaps the student's enrollment set. Delete and
// insert run in one transaction; grades tied to removed classes are left
// untouched so history survives unenrollment.
func (r *EnrollmentRepository) ReplaceForStudent(ctx context.Context, studentID string, classIDs []string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace enrollments: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM enrollments WHERE student_id = $1`, studentID); err != nil {
		return fmt.Errorf("delete enrollments: %w", err)
	}

	now := time.Now().UTC()
	const enrollQuery = `INSERT INTO enrollments (id, student_id, class_id, created_at) VALUES ($1, $2, $3, $4)`
	for _, classID := range classIDs {
		if _, err = tx.ExecContext(ctx, enrollQuery, uuid.NewString(), studentID, classID, now); err != nil {
			return fmt.Errorf("insert enrollment: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit replace enrollments: %w", err)
	}
	return nil
}

// Roster returns the students enrolled in a class.
func (r *EnrollmentRepository) Roster(ctx context.Context, classID string) ([]models.RosterEntry, error) {
	const query = `SELECT s.id AS student_id, s.name AS student_name, s.active
        FROM enrollments e
        JOIN students s ON s.id = e.student_id
        WHERE e.class_id = $1
        ORDER BY s.name ASC`
	var roster []models.RosterEntry
	if err := r.db.SelectContext(ctx, &roster, query, classID); err != nil {
		return nil, fmt.Errorf("list class roster: %w", err)
	}
	return roster, nil
}
