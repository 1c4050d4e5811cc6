package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/coem-edu/sga-api/internal/models"
	appErrors "github.com/coem-edu/sga-api/pkg/errors"
)

// CreateTeacherRequest registers a teacher together with its login account.
type CreateTeacherRequest struct {
	FullName string `json:"full_name" validate:"required,min=2"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

// UpdateTeacherRequest rewrites the teacher's account fields.
type UpdateTeacherRequest struct {
	FullName string `json:"full_name" validate:"required,min=2"`
	Email    string `json:"email" validate:"required,email"`
}

type teacherRepository interface {
	CreateWithAccount(ctx context.Context, user *models.User, profile *models.TeacherProfile) error
	FindByID(ctx context.Context, id string) (*models.TeacherDetail, error)
	List(ctx context.Context, filter models.TeacherFilter) ([]models.TeacherDetail, int, error)
	UpdateAccount(ctx context.Context, userID, fullName, email string) error
	SetActive(ctx context.Context, id string, active bool) error
}

type emailChecker interface {
	ExistsByEmail(ctx context.Context, email, excludeID string) (bool, error)
}

type auditWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// TeacherService manages teacher profiles and their accounts.
type TeacherService struct {
	teachers  teacherRepository
	emails    emailChecker
	audits    auditWriter
	validator *validator.Validate
	logger    *zap.Logger
}

// NewTeacherService constructs a TeacherService.
func NewTeacherService(teachers teacherRepository, emails emailChecker, audits auditWriter, logger *zap.Logger) *TeacherService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TeacherService{
		teachers:  teachers,
		emails:    emails,
		audits:    audits,
		validator: validator.New(),
		logger:    logger,
	}
}

// Create registers a teacher account and profile, both active.
func (s *TeacherService) Create(ctx context.Context, actorID string, req CreateTeacherRequest) (*models.TeacherDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid teacher payload")
	}

	taken, err := s.emails.ExistsByEmail(ctx, req.Email, "")
	if err != nil {
		return nil, storeError(err, "failed to check email uniqueness")
	}
	if taken {
		return nil, appErrors.Clone(appErrors.ErrConflict, "email is already registered")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	user := &models.User{
		Email:        req.Email,
		PasswordHash: string(hash),
		FullName:     req.FullName,
		Active:       true,
	}
	profile := &models.TeacherProfile{Active: true}
	if err := s.teachers.CreateWithAccount(ctx, user, profile); err != nil {
		return nil, storeError(err, "failed to create teacher")
	}

	s.auditAction(ctx, actorID, models.AuditActionCreate, "teacher", profile.ID)
	s.logger.Info("teacher created", zap.String("teacher_id", profile.ID))
	return s.GetByID(ctx, profile.ID)
}

// GetByID returns one teacher profile.
func (s *TeacherService) GetByID(ctx context.Context, id string) (*models.TeacherDetail, error) {
	detail, err := s.teachers.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return nil, storeError(err, "failed to load teacher")
	}
	return detail, nil
}

// List returns teachers matching the filter. Unless the caller asks for a
// specific status, only active profiles are returned.
func (s *TeacherService) List(ctx context.Context, filter models.TeacherFilter) ([]models.TeacherDetail, int, error) {
	if filter.Active == nil && !filter.IncludeAll {
		active := true
		filter.Active = &active
	}
	teachers, total, err := s.teachers.List(ctx, filter)
	if err != nil {
		return nil, 0, storeError(err, "failed to list teachers")
	}
	return teachers, total, nil
}

// Update rewrites the teacher's display name and email.
func (s *TeacherService) Update(ctx context.Context, actorID, id string, req UpdateTeacherRequest) (*models.TeacherDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid teacher payload")
	}

	detail, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	taken, err := s.emails.ExistsByEmail(ctx, req.Email, detail.UserID)
	if err != nil {
		return nil, storeError(err, "failed to check email uniqueness")
	}
	if taken {
		return nil, appErrors.Clone(appErrors.ErrConflict, "email is already registered")
	}

	if err := s.teachers.UpdateAccount(ctx, detail.UserID, req.FullName, req.Email); err != nil {
		return nil, storeError(err, "failed to update teacher")
	}

	s.auditAction(ctx, actorID, models.AuditActionUpdate, "teacher", id)
	return s.GetByID(ctx, id)
}

// ToggleActive flips the profile's active flag. The flip is pure: classes the
// teacher owns keep their own status.
func (s *TeacherService) ToggleActive(ctx context.Context, actorID, id string) (*models.TeacherDetail, error) {
	detail, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.teachers.SetActive(ctx, id, !detail.Active); err != nil {
		return nil, storeError(err, "failed to toggle teacher status")
	}

	s.auditAction(ctx, actorID, models.AuditActionToggleStatus, "teacher", id)
	s.logger.Info("teacher status toggled", zap.String("teacher_id", id), zap.Bool("active", !detail.Active))
	return s.GetByID(ctx, id)
}

func (s *TeacherService) auditAction(ctx context.Context, actorID, action, resource, resourceID string) {
	log := &models.AuditLog{Action: action, Resource: resource, ResourceID: &resourceID}
	if actorID != "" {
		log.UserID = &actorID
	}
	if err := s.audits.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to write audit log", zap.String("action", action), zap.Error(err))
	}
}
