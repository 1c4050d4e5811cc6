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

// StudentRepository handles persistence of students and their guardian links.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs the repository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// CreateWithLinks inserts the student, its guardian links and optional
// enrollments as a single transaction. A student is never persisted without
// at least one parent link.
func (r *StudentRepository) CreateWithLinks(ctx context.Context, student *models.Student, parentIDs, classIDs []string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create student: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	student.CreatedAt = now
	student.UpdatedAt = now
	const studentQuery = `INSERT INTO students (id, name, birth_date, active, created_at, updated_at)
        VALUES (:id, :name, :birth_date, :active, :created_at, :updated_at)`
	if _, err = tx.NamedExecContext(ctx, studentQuery, student); err != nil {
		return fmt.Errorf("insert student: %w", err)
	}

	const linkQuery = `INSERT INTO parent_students (parent_id, student_id, created_at) VALUES ($1, $2, $3)`
	for _, parentID := range parentIDs {
		if _, err = tx.ExecContext(ctx, linkQuery, parentID, student.ID, now); err != nil {
			return fmt.Errorf("insert parent link: %w", err)
		}
	}

	const enrollQuery = `INSERT INTO enrollments (id, student_id, class_id, created_at) VALUES ($1, $2, $3, $4)`
	for _, classID := range classIDs {
		if _, err = tx.ExecContext(ctx, enrollQuery, uuid.NewString(), student.ID, classID, now); err != nil {
			return fmt.Errorf("insert enrollment: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit create student: %w", err)
	}
	return nil
}

// FindByID returns a student by its ID.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.Student, error) {
	const query = `SELECT id, name, birth_date, active, created_at, updated_at FROM students WHERE id = $1`
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find student by id: %w", err)
	}
	return &student, nil
}

// List returns students filtered by the provided criteria.
func (r *StudentRepository) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	base := `FROM students s`
	var conditions []string
	var args []interface{}

	if filter.ParentID != "" {
		base += ` JOIN parent_students ps ON ps.student_id = s.id`
		conditions = append(conditions, fmt.Sprintf("ps.parent_id = $%d", len(args)+1))
		args = append(args, filter.ParentID)
	}
	if filter.ClassID != "" {
		base += ` JOIN enrollments e ON e.student_id = s.id`
		conditions = append(conditions, fmt.Sprintf("e.class_id = $%d", len(args)+1))
		args = append(args, filter.ClassID)
	}
	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("s.active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("LOWER(s.name) LIKE $%d", len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"name":       "s.name",
		"birth_date": "s.birth_date",
		"created_at": "s.created_at",
	}
	orderBy := allowedSorts[filter.SortBy]
	if orderBy == "" {
		orderBy = "s.name"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT s.id, s.name, s.birth_date, s.active, s.created_at, s.updated_at
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base+clause, orderBy, order, size, offset)

	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list students: %w", err)
	}

	countQuery := "SELECT COUNT(*) " + base + clause
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count students: %w", err)
	}
	return students, total, nil
}

// Update changes the student's mutable fields.
func (r *StudentRepository) Update(ctx context.Context, id, name string, birthDate time.Time) error {
	const query = `UPDATE students SET name = $2, birth_date = $3, updated_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, name, birthDate, time.Now().UTC()); err != nil {
		return fmt.Errorf("update student: %w", err)
	}
	return nil
}

// SetActive flips the student's active flag to the given value.
func (r *StudentRepository) SetActive(ctx context.Context, id string, active bool) error {
	const query = `UPDATE students SET active = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, active, time.Now().UTC()); err != nil {
		return fmt.Errorf("set student active: %w", err)
	}
	return nil
}

// ListParents returns the guardians linked to a student.
func (r *StudentRepository) ListParents(ctx context.Context, studentID string) ([]models.ParentDetail, error) {
	const query = `SELECT pp.id, pp.user_id, pp.phone, pp.relationship, pp.active, pp.created_at, pp.updated_at, u.full_name, u.email
        FROM parent_students ps
        JOIN parent_profiles pp ON pp.id = ps.parent_id
        JOIN users u ON u.id = pp.user_id
        WHERE ps.student_id = $1
        ORDER BY u.full_name ASC`
	var parents []models.ParentDetail
	if err := r.db.SelectContext(ctx, &parents, query, studentID); err != nil {
		return nil, fmt.Errorf("list student parents: %w", err)
	}
	return parents, nil
}

// ReplaceParentLinks atomically swaps the student's guardian set: existing
// links are deleted and the new set inserted inside one transaction, so a
// crash can never persist a student with zero links.
func (r *StudentRepository) ReplaceParentLinks(ctx context.Context, studentID string, parentIDs []string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace parent links: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM parent_students WHERE student_id = $1`, studentID); err != nil {
		return fmt.Errorf("delete parent links: %w", err)
	}

	now := time.Now().UTC()
	const linkQuery = `INSERT INTO parent_students (parent_id, student_id, created_at) VALUES ($1, $2, $3)`
	for _, parentID := range parentIDs {
		if _, err = tx.ExecContext(ctx, linkQuery, parentID, studentID, now); err != nil {
			return fmt.Errorf("insert parent link: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit replace parent links: %w", err)
	}
	return nil
}

// ValidateIDs ensures all student ids exist, returning the found set.
func (r *StudentRepository) ValidateIDs(ctx context.Context, ids []string) (map[string]bool, error) {
	if len(ids) == 0 {
		return map[string]bool{}, nil
	}
	placeholders := make([]string, len(ids))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}
	query := fmt.Sprintf("SELECT id FROM students WHERE id IN (%s)", strings.Join(placeholders, ","))
	rows, err := r.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("validate student ids: %w", err)
	}
	defer rows.Close()

	existing := make(map[string]bool, len(ids))
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan student id: %w", err)
		}
		existing[id] = true
	}
	return existing, nil
}

// CountActive returns the number of active students.
func (r *StudentRepository) CountActive(ctx context.Context) (int, error) {
	const query = `SELECT COUNT(*) FROM students WHERE active = TRUE`
	var count int
	if err := r.db.GetContext(ctx, &count, query); err != nil {
		return 0, fmt.Errorf("count active students: %w", err)
	}
	return count, nil
}
