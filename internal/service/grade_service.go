package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/coem-edu/sga-api/internal/authz"
	"github.com/coem-edu/sga-api/internal/models"
	"github.com/coem-edu/sga-api/pkg/config"
	appErrors "github.com/coem-edu/sga-api/pkg/errors"
)

// CreateGradeRequest records one grade entry for a student in a class.
type CreateGradeRequest struct {
	StudentID   string    `json:"student_id" validate:"required"`
	ClassID     string    `json:"class_id" validate:"required"`
	Value       float64   `json:"value"`
	Description *string   `json:"description,omitempty"`
	Type        *string   `json:"type,omitempty"`
	Period      int       `json:"period,omitempty"`
	Date        time.Time `json:"date,omitempty"`
}

// UpdateGradeRequest rewrites a grade entry's mutable fields. Student and
// class bindings are immutable; record a new entry instead.
type UpdateGradeRequest struct {
	Value       float64   `json:"value"`
	Description *string   `json:"description,omitempty"`
	Type        *string   `json:"type,omitempty"`
	Period      int       `json:"period,omitempty"`
	Date        time.Time `json:"date,omitempty"`
}

type gradeRepository interface {
	Create(ctx context.Context, grade *models.Grade) error
	FindByID(ctx context.Context, id string) (*models.Grade, error)
	Update(ctx context.Context, grade *models.Grade) error
	Delete(ctx context.Context, id string) error
	ListByStudent(ctx context.Context, studentID string, filter models.GradeFilter) ([]models.Grade, error)
}

type studentFinder interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

type gradeWriteGuard interface {
	CanWriteGrades(ctx context.Context, p authz.Principal, classID string) error
	CanReadStudent(ctx context.Context, p authz.Principal, studentID string) error
}

// GradeService records and maintains grade entries. Every write re-checks
// class ownership against the store.
type GradeService struct {
	grades    gradeRepository
	students  studentFinder
	guard     gradeWriteGuard
	audits    auditWriter
	scale     config.GradesConfig
	validator *validator.Validate
	logger    *zap.Logger
}

// NewGradeService constructs a GradeService.
func NewGradeService(grades gradeRepository, students studentFinder, guard gradeWriteGuard, audits auditWriter, scale config.GradesConfig, logger *zap.Logger) *GradeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GradeService{
		grades:    grades,
		students:  students,
		guard:     guard,
		audits:    audits,
		scale:     scale,
		validator: validator.New(),
		logger:    logger,
	}
}

// Create records a grade. Only the owning teacher (or an admin) may write to
// the class; the student must exist but an active enrollment is not required,
// so late entries for unenrolled students remain possible.
func (s *GradeService) Create(ctx context.Context, principal authz.Principal, req CreateGradeRequest) (*models.Grade, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid grade payload")
	}
	if err := s.checkValue(req.Value); err != nil {
		return nil, err
	}
	if req.Period < 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "period must be positive")
	}

	if err := s.guard.CanWriteGrades(ctx, principal, req.ClassID); err != nil {
		return nil, err
	}

	if _, err := s.students.FindByID(ctx, req.StudentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, storeError(err, "failed to load student")
	}

	grade := &models.Grade{
		StudentID:   req.StudentID,
		ClassID:     req.ClassID,
		Value:       req.Value,
		Description: req.Description,
		Type:        req.Type,
		Period:      req.Period,
		Date:        req.Date,
	}
	if err := s.grades.Create(ctx, grade); err != nil {
		return nil, storeError(err, "failed to create grade")
	}

	s.auditAction(ctx, principal.AccountID, models.AuditActionCreate, "grade", grade.ID)
	s.logger.Info("grade recorded",
		zap.String("grade_id", grade.ID),
		zap.String("student_id", grade.StudentID),
		zap.String("class_id", grade.ClassID),
		zap.Float64("value", grade.Value))
	return grade, nil
}

// Update rewrites a grade entry. Ownership is re-checked against the grade's
// class, not anything the caller claims.
func (s *GradeService) Update(ctx context.Context, principal authz.Principal, id string, req UpdateGradeRequest) (*models.Grade, error) {
	if err := s.checkValue(req.Value); err != nil {
		return nil, err
	}
	if req.Period < 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "period must be positive")
	}

	grade, err := s.findGrade(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.guard.CanWriteGrades(ctx, principal, grade.ClassID); err != nil {
		return nil, err
	}

	grade.Value = req.Value
	grade.Description = req.Description
	grade.Type = req.Type
	if req.Period > 0 {
		grade.Period = req.Period
	}
	if !req.Date.IsZero() {
		grade.Date = req.Date
	}
	if err := s.grades.Update(ctx, grade); err != nil {
		return nil, storeError(err, "failed to update grade")
	}

	s.auditAction(ctx, principal.AccountID, models.AuditActionUpdate, "grade", id)
	return grade, nil
}

// Delete removes a grade entry permanently.
func (s *GradeService) Delete(ctx context.Context, principal authz.Principal, id string) error {
	grade, err := s.findGrade(ctx, id)
	if err != nil {
		return err
	}

	if err := s.guard.CanWriteGrades(ctx, principal, grade.ClassID); err != nil {
		return err
	}

	if err := s.grades.Delete(ctx, id); err != nil {
		return storeError(err, "failed to delete grade")
	}

	s.auditAction(ctx, principal.AccountID, models.AuditActionDelete, "grade", id)
	s.logger.Info("grade deleted", zap.String("grade_id", id))
	return nil
}

// ListByStudent returns a student's grades, newest first. Read access follows
// the same rule as the student record itself.
func (s *GradeService) ListByStudent(ctx context.Context, principal authz.Principal, studentID string, filter models.GradeFilter) ([]models.Grade, error) {
	if err := s.guard.CanReadStudent(ctx, principal, studentID); err != nil {
		return nil, err
	}

	grades, err := s.grades.ListByStudent(ctx, studentID, filter)
	if err != nil {
		return nil, storeError(err, "failed to list grades")
	}
	return grades, nil
}

func (s *GradeService) findGrade(ctx context.Context, id string) (*models.Grade, error) {
	grade, err := s.grades.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "grade not found")
		}
		return nil, storeError(err, "failed to load grade")
	}
	return grade, nil
}

func (s *GradeService) checkValue(value float64) error {
	max := s.scale.ScaleMax
	if max <= 0 {
		max = 10
	}
	if value < 0 || value > max {
		return appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("grade value must be between 0 and %g", max))
	}
	return nil
}

func (s *GradeService) auditAction(ctx context.Context, actorID, action, resource, resourceID string) {
	log := &models.AuditLog{Action: action, Resource: resource, ResourceID: &resourceID}
	if actorID != "" {
		log.UserID = &actorID
	}
	if err := s.audits.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to write audit log", zap.String("action", action), zap.Error(err))
	}
}
