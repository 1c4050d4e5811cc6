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

// ParentRepository handles persistence of parent profiles and their accounts.
type ParentRepository struct {
	db *sqlx.DB
}

// NewParentRepository constructs the repository.
func NewParentRepository(db *sqlx.DB) *ParentRepository {
	return &ParentRepository{db: db}
}

// CreateWithAccount inserts the account and its parent profile in one
// transaction.
func (r *ParentRepository) CreateWithAccount(ctx context.Context, user *models.User, profile *models.ParentProfile) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create parent: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	user.Role = models.RoleParent
	user.CreatedAt = now
	user.UpdatedAt = now
	const userQuery = `INSERT INTO users (id, email, password_hash, full_name, role, active, created_at, updated_at)
        VALUES (:id, :email, :password_hash, :full_name, :role, :active, :created_at, :updated_at)`
	if _, err = tx.NamedExecContext(ctx, userQuery, user); err != nil {
		return fmt.Errorf("insert parent account: %w", err)
	}

	if profile.ID == "" {
		profile.ID = uuid.NewString()
	}
	profile.UserID = user.ID
	profile.CreatedAt = now
	profile.UpdatedAt = now
	const profileQuery = `INSERT INTO parent_profiles (id, user_id, phone, relationship, active, created_at, updated_at)
        VALUES (:id, :user_id, :phone, :relationship, :active, :created_at, :updated_at)`
	if _, err = tx.NamedExecContext(ctx, profileQuery, profile); err != nil {
		return fmt.Errorf("insert parent profile: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit create parent: %w", err)
	}
	return nil
}

// FindByID returns a parent profile with account columns.
func (r *ParentRepository) FindByID(ctx context.Context, id string) (*models.ParentDetail, error) {
	const query = `SELECT pp.id, pp.user_id, pp.phone, pp.relationship, pp.active, pp.created_at, pp.updated_at, u.full_name, u.email
        FROM parent_profiles pp
        JOIN users u ON u.id = pp.user_id
        WHERE pp.id = $1`
	var detail models.ParentDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find parent by id: %w", err)
	}
	return &detail, nil
}

// FindByUserID resolves the profile owned by an account.
func (r *ParentRepository) FindByUserID(ctx context.Context, userID string) (*models.ParentProfile, error) {
	const query = `SELECT id, user_id, phone, relationship, active, created_at, updated_at FROM parent_profiles WHERE user_id = $1`
	var profile models.ParentProfile
	if err := r.db.GetContext(ctx, &profile, query, userID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find parent by user id: %w", err)
	}
	return &profile, nil
}

// List returns parent profiles filtered by the provided criteria.
func (r *ParentRepository) List(ctx context.Context, filter models.ParentFilter) ([]models.ParentDetail, int, error) {
	base := `FROM parent_profiles pp JOIN users u ON u.id = pp.user_id`
	var conditions []string
	var args []interface{}

	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("pp.active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(u.full_name) LIKE $%d OR LOWER(u.email) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"full_name":  "u.full_name",
		"email":      "u.email",
		"created_at": "pp.created_at",
	}
	orderBy := allowedSorts[filter.SortBy]
	if orderBy == "" {
		orderBy = "u.full_name"
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

	query := fmt.Sprintf(`SELECT pp.id, pp.user_id, pp.phone, pp.relationship, pp.active, pp.created_at, pp.updated_at, u.full_name, u.email
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base+clause, orderBy, order, size, offset)

	var parents []models.ParentDetail
	if err := r.db.SelectContext(ctx, &parents, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list parents: %w", err)
	}

	countQuery := "SELECT COUNT(*) " + base + clause
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count parents: %w", err)
	}
	return parents, total, nil
}

// UpdateProfile updates guardian fields and account display columns.
func (r *ParentRepository) UpdateProfile(ctx context.Context, profile *models.ParentProfile, fullName, email string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update parent: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	const profileQuery = `UPDATE parent_profiles SET phone = $2, relationship = $3, updated_at = $4 WHERE id = $1`
	if _, err = tx.ExecContext(ctx, profileQuery, profile.ID, profile.Phone, profile.Relationship, now); err != nil {
		return fmt.Errorf("update parent profile: %w", err)
	}
	const userQuery = `UPDATE users SET full_name = $2, email = $3, updated_at = $4 WHERE id = $1`
	if _, err = tx.ExecContext(ctx, userQuery, profile.UserID, fullName, email, now); err != nil {
		return fmt.Errorf("update parent account: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit update parent: %w", err)
	}
	return nil
}

// SetActive flips the profile's active flag to the given value.
func (r *ParentRepository) SetActive(ctx context.Context, id string, active bool) error {
	const query = `UPDATE parent_profiles SET active = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, active, time.Now().UTC()); err != nil {
		return fmt.Errorf("set parent active: %w", err)
	}
	return nil
}

// CountStudentLinks returns how many students are linked to the parent.
// Deletion is refused while this is non-zero.
func (r *ParentRepository) CountStudentLinks(ctx context.Context, parentID string) (int, error) {
	const query = `SELECT COUNT(*) FROM parent_students WHERE parent_id = $1`
	var count int
	if err := r.db.GetContext(ctx, &count, query, parentID); err != nil {
		return 0, fmt.Errorf("count parent student links: %w", err)
	}
	return count, nil
}

// LinkExists reports whether a parent-student link is present.
func (r *ParentRepository) LinkExists(ctx context.Context, parentID, studentID string) (bool, error) {
	const query = `SELECT 1 FROM parent_students WHERE parent_id = $1 AND student_id = $2 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, parentID, studentID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check parent student link: %w", err)
	}
	return true, nil
}

// Delete removes the profile and its account in one transaction. Callers must
// verify there are no student links first.
func (r *ParentRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete parent: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var userID string
	if err = tx.GetContext(ctx, &userID, `SELECT user_id FROM parent_profiles WHERE id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return err
		}
		return fmt.Errorf("resolve parent account: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM parent_profiles WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete parent profile: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, userID); err != nil {
		return fmt.Errorf("delete parent account: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit delete parent: %w", err)
	}
	return nil
}

// ValidateIDs ensures all profile ids exist, returning the found set.
func (r *ParentRepository) ValidateIDs(ctx context.Context, ids []string) (map[string]bool, error) {
	if len(ids) == 0 {
		return map[string]bool{}, nil
	}
	placeholders := make([]string, len(ids))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}
	query := fmt.Sprintf("SELECT id FROM parent_profiles WHERE id IN (%s)", strings.Join(placeholders, ","))
	rows, err := r.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("validate parent ids: %w", err)
	}
	defer rows.Close()

	existing := make(map[string]bool, len(ids))
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan parent id: %w", err)
		}
		existing[id] = true
	}
	return existing, nil
}

// CountActive returns the number of active parent profiles.
func (r *ParentRepository) CountActive(ctx context.Context) (int, error) {
	const query = `SELECT COUNT(*) FROM parent_profiles WHERE active = TRUE`
	var count int
	if err := r.db.GetContext(ctx, &count, query); err != nil {
		return 0, fmt.Errorf("count active parents: %w", err)
	}
	return count, nil
}
