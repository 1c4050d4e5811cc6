package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/coem-edu/sga-api/internal/authz"
	"github.com/coem-edu/sga-api/internal/models"
	appErrors "github.com/coem-edu/sga-api/pkg/errors"
)

// CreateParentRequest registers a guardian together with its login account.
type CreateParentRequest struct {
	FullName     string  `json:"full_name" validate:"required,min=2"`
	Email        string  `json:"email" validate:"required,email"`
	Password     string  `json:"password" validate:"required,min=8"`
	Phone        *string `json:"phone,omitempty"`
	Relationship *string `json:"relationship,omitempty"`
}

// UpdateParentRequest rewrites guardian and account fields.
type UpdateParentRequest struct {
	FullName     string  `json:"full_name" validate:"required,min=2"`
	Email        string  `json:"email" validate:"required,email"`
	Phone        *string `json:"phone,omitempty"`
	Relationship *string `json:"relationship,omitempty"`
}

type parentRepository interface {
	CreateWithAccount(ctx context.Context, user *models.User, profile *models.ParentProfile) error
	FindByID(ctx context.Context, id string) (*models.ParentDetail, error)
	List(ctx context.Context, filter models.ParentFilter) ([]models.ParentDetail, int, error)
	UpdateProfile(ctx context.Context, profile *models.ParentProfile, fullName, email string) error
	SetActive(ctx context.Context, id string, active bool) error
	CountStudentLinks(ctx context.Context, parentID string) (int, error)
	Delete(ctx context.Context, id string) error
}

type profileUpdateGuard interface {
	CanUpdateParentProfile(p authz.Principal, profileID string) error
}

// ParentService manages guardian profiles and their accounts.
type ParentService struct {
	parents   parentRepository
	emails    emailChecker
	audits    auditWriter
	guard     profileUpdateGuard
	validator *validator.Validate
	logger    *zap.Logger
}

// NewParentService constructs a ParentService.
func NewParentService(parents parentRepository, emails emailChecker, audits auditWriter, guard profileUpdateGuard, logger *zap.Logger) *ParentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ParentService{
		parents:   parents,
		emails:    emails,
		audits:    audits,
		guard:     guard,
		validator: validator.New(),
		logger:    logger,
	}
}

// Create registers a parent account and profile, both active.
func (s *ParentService) Create(ctx context.Context, actorID string, req CreateParentRequest) (*models.ParentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid parent payload")
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
	profile := &models.ParentProfile{
		Phone:        req.Phone,
		Relationship: req.Relationship,
		Active:       true,
	}
	if err := s.parents.CreateWithAccount(ctx, user, profile); err != nil {
		return nil, storeError(err, "failed to create parent")
	}

	s.auditAction(ctx, actorID, models.AuditActionCreate, "parent", profile.ID)
	s.logger.Info("parent created", zap.String("parent_id", profile.ID))
	return s.GetByID(ctx, profile.ID)
}

// GetByID returns one parent profile.
func (s *ParentService) GetByID(ctx context.Context, id string) (*models.ParentDetail, error) {
	detail, err := s.parents.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "parent not found")
		}
		return nil, storeError(err, "failed to load parent")
	}
	return detail, nil
}

// List returns parents matching the filter, defaulting to active profiles.
func (s *ParentService) List(ctx context.Context, filter models.ParentFilter) ([]models.ParentDetail, int, error) {
	if filter.Active == nil && !filter.IncludeAll {
		active := true
		filter.Active = &active
	}
	parents, total, err := s.parents.List(ctx, filter)
	if err != nil {
		return nil, 0, storeError(err, "failed to list parents")
	}
	return parents, total, nil
}

// Update rewrites the parent's guardian fields and account columns. Admins may
// edit any profile; a parent may edit only its own.
func (s *ParentService) Update(ctx context.Context, principal authz.Principal, id string, req UpdateParentRequest) (*models.ParentDetail, error) {
	if err := s.guard.CanUpdateParentProfile(principal, id); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid parent payload")
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

	profile := &models.ParentProfile{
		ID:           detail.ID,
		UserID:       detail.UserID,
		Phone:        req.Phone,
		Relationship: req.Relationship,
	}
	if err := s.parents.UpdateProfile(ctx, profile, req.FullName, req.Email); err != nil {
		return nil, storeError(err, "failed to update parent")
	}

	s.auditAction(ctx, principal.AccountID, models.AuditActionUpdate, "parent", id)
	return s.GetByID(ctx, id)
}

// ToggleActive flips the profile's active flag. Links to students survive the
// flip untouched.
func (s *ParentService) ToggleActive(ctx context.Context, actorID, id string) (*models.ParentDetail, error) {
	detail, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.parents.SetActive(ctx, id, !detail.Active); err != nil {
		return nil, storeError(err, "failed to toggle parent status")
	}

	s.auditAction(ctx, actorID, models.AuditActionToggleStatus, "parent", id)
	s.logger.Info("parent status toggled", zap.String("parent_id", id), zap.Bool("active", !detail.Active))
	return s.GetByID(ctx, id)
}

// Delete removes the parent and its account. The delete is refused while any
// student link remains so every student keeps at least its linked guardians.
func (s *ParentService) Delete(ctx context.Context, actorID, id string) error {
	if _, err := s.GetByID(ctx, id); err != nil {
		return err
	}

	links, err := s.parents.CountStudentLinks(ctx, id)
	if err != nil {
		return storeError(err, "failed to count student links")
	}
	if links > 0 {
		return appErrors.Clone(appErrors.ErrReferentialIntegrity, "parent still linked to students")
	}

	if err := s.parents.Delete(ctx, id); err != nil {
		return storeError(err, "failed to delete parent")
	}

	s.auditAction(ctx, actorID, models.AuditActionDelete, "parent", id)
	s.logger.Info("parent deleted", zap.String("parent_id", id))
	return nil
}

func (s *ParentService) auditAction(ctx context.Context, actorID, action, resource, resourceID string) {
	log := &models.AuditLog{Action: action, Resource: resource, ResourceID: &resourceID}
	if actorID != "" {
		log.UserID = &actorID
	}
	if err := s.audits.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to write audit log", zap.String("action", action), zap.Error(err))
	}
}
