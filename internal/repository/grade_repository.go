package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/coem-edu/sga-api/internal/models"
)

// GradeRepository handles persistence of grade entries.
type GradeRepository struct {
	db *sqlx.DB
}

// NewGradeRepository constructs the repository.
func NewGradeRepository(db *sqlx.DB) *GradeRepository {
	return &GradeRepository{db: db}
}

// Create persists a new grade entry.
func (r *GradeRepository) Create(ctx context.Context, grade *models.Grade) error {
	if grade.ID == "" {
		grade.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if grade.Date.IsZero() {
		grade.Date = now
	}
	if grade.Period < 1 {
		grade.Period = models.DefaultPeriod
	}
	grade.CreatedAt = now
	grade.UpdatedAt = now
	const query = `INSERT INTO grades (id, student_id, class_id, value, description, type, period, date, created_at, updated_at)
        VALUES (:id, :student_id, :class_id, :value, :description, :type, :period, :date, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, grade); err != nil {
		return fmt.Errorf("create grade: %w", err)
	}
	return nil
}

// FindByID returns a grade entry by its ID.
func (r *GradeRepository) FindByID(ctx context.Context, id string) (*models.Grade, error) {
	const query = `SELECT id, student_id, class_id, value, description, type, period, date, created_at, updated_at FROM grades WHERE id = $1`
	var grade models.Grade
	if err := r.db.GetContext(ctx, &grade, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find grade by id: %w", err)
	}
	return &grade, nil
}

// Update rewrites the mutable fields of a grade entry.
func (r *GradeRepository) Update(ctx context.Context, grade *models.Grade) error {
	grade.UpdatedAt = time.Now().UTC()
	const query = `UPDATE grades SET value = :value, description = :description, type = :type, period = :period, date = :date, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, grade); err != nil {
		return fmt.Errorf("update grade: %w", err)
	}
	return nil
}

// Delete removes a grade entry permanently.
func (r *GradeRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM grades WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete grade: %w", err)
	}
	return nil
}

// ListByStudent returns all of a student's grades, newest first, optionally
// narrowed by class, period or category.
func (r *GradeRepository) ListByStudent(ctx context.Context, studentID string, filter models.GradeFilter) ([]models.Grade, error) {
	query := `SELECT id, student_id, class_id, value, description, type, period, date, created_at, updated_at FROM grades WHERE student_id = $1`
	args := []interface{}{studentID}

	if filter.ClassID != "" {
		query += fmt.Sprintf(" AND class_id = $%d", len(args)+1)
		args = append(args, filter.ClassID)
	}
	if filter.Period > 0 {
		query += fmt.Sprintf(" AND period = $%d", len(args)+1)
		args = append(args, filter.Period)
	}
	if filter.Type != "" {
		query += fmt.Sprintf(" AND LOWER(type) = $%d", len(args)+1)
		args = append(args, strings.ToLower(filter.Type))
	}
	query += " ORDER BY date DESC"

	var grades []models.Grade
	if err := r.db.SelectContext(ctx, &grades, query, args...); err != nil {
		return nil, fmt.Errorf("list student grades: %w", err)
	}
	return grades, nil
}

// ListByClass returns every grade recorded in a class, newest first.
func (r *GradeRepository) ListByClass(ctx context.Context, classID string) ([]models.Grade, error) {
	const query = `SELECT id, student_id, class_id, value, description, type, period, date, created_at, updated_at FROM grades WHERE class_id = $1 ORDER BY date DESC`
	var grades []models.Grade
	if err := r.db.SelectContext(ctx, &grades, query, classID); err != nil {
		return nil, fmt.Errorf("list class grades: %w", err)
	}
	return grades, nil
}
