package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/coem-edu/sga-api/internal/authz"
	"github.com/coem-edu/sga-api/internal/models"
	appErrors "github.com/coem-edu/sga-api/pkg/errors"
)

// CreateStudentRequest registers a student. At least one guardian link is
// required at creation time.
type CreateStudentRequest struct {
	Name      string    `json:"name" validate:"required,min=2"`
	BirthDate time.Time `json:"birth_date" validate:"required"`
	ParentIDs []string  `json:"parent_ids" validate:"required,min=1"`
	ClassIDs  []string  `json:"class_ids,omitempty"`
}

// UpdateStudentRequest rewrites the student's own fields. Guardian links and
// enrollments change through their dedicated set operations.
type UpdateStudentRequest struct {
	Name      string    `json:"name" validate:"required,min=2"`
	BirthDate time.Time `json:"birth_date" validate:"required"`
}

// SetParentsRequest replaces the student's entire guardian set.
type SetParentsRequest struct {
	ParentIDs []string `json:"parent_ids" validate:"required,min=1"`
}

// SetEnrollmentsRequest replaces the student's entire enrollment set. An empty
// set is valid and clears every enrollment.
type SetEnrollmentsRequest struct {
	ClassIDs []string `json:"class_ids"`
}

type studentRepository interface {
	CreateWithLinks(ctx context.Context, student *models.Student, parentIDs, classIDs []string) error
	FindByID(ctx context.Context, id string) (*models.Student, error)
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error)
	Update(ctx context.Context, id, name string, birthDate time.Time) error
	SetActive(ctx context.Context, id string, active bool) error
	ListParents(ctx context.Context, studentID string) ([]models.ParentDetail, error)
	ReplaceParentLinks(ctx context.Context, studentID string, parentIDs []string) error
}

type parentIDValidator interface {
	ValidateIDs(ctx context.Context, ids []string) (map[string]bool, error)
}

type classIDValidator interface {
	ValidateIDs(ctx context.Context, ids []string) (map[string]bool, error)
}

type enrollmentReplacer interface {
	ListClassesByStudent(ctx context.Context, studentID string) ([]models.Class, error)
	ReplaceForStudent(ctx context.Context, studentID string, classIDs []string) error
}

type studentReadGuard interface {
	CanReadStudent(ctx context.Context, p authz.Principal, studentID string) error
}

// StudentService manages students, their guardian links and enrollments.
type StudentService struct {
	students    studentRepository
	parents     parentIDValidator
	classes     classIDValidator
	enrollments enrollmentReplacer
	audits      auditWriter
	guard       studentReadGuard
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewStudentService constructs a StudentService.
func NewStudentService(students studentRepository, parents parentIDValidator, classes classIDValidator, enrollments enrollmentReplacer, audits auditWriter, guard studentReadGuard, logger *zap.Logger) *StudentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{
		students:    students,
		parents:     parents,
		classes:     classes,
		enrollments: enrollments,
		audits:      audits,
		guard:       guard,
		validator:   validator.New(),
		logger:      logger,
	}
}

// Create registers a student with its guardian links and optional initial
// enrollments, all inside one transaction.
func (s *StudentService) Create(ctx context.Context, actorID string, req CreateStudentRequest) (*models.StudentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}

	parentIDs := dedupIDs(req.ParentIDs)
	if err := s.requireParents(ctx, parentIDs); err != nil {
		return nil, err
	}

	classIDs := dedupIDs(req.ClassIDs)
	if err := s.requireClasses(ctx, classIDs); err != nil {
		return nil, err
	}

	student := &models.Student{
		Name:      req.Name,
		BirthDate: req.BirthDate,
		Active:    true,
	}
	if err := s.students.CreateWithLinks(ctx, student, parentIDs, classIDs); err != nil {
		return nil, storeError(err, "failed to create student")
	}

	s.auditAction(ctx, actorID, models.AuditActionCreate, "student", student.ID)
	s.logger.Info("student created", zap.String("student_id", student.ID), zap.Int("parents", len(parentIDs)), zap.Int("classes", len(classIDs)))
	return s.detail(ctx, student)
}

// GetByID returns a student with guardians and enrolled classes. The guard
// runs first so a parent without a link sees the same not-found as a missing
// id.
func (s *StudentService) GetByID(ctx context.Context, principal authz.Principal, id string) (*models.StudentDetail, error) {
	if err := s.guard.CanReadStudent(ctx, principal, id); err != nil {
		return nil, err
	}

	student, err := s.students.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, storeError(err, "failed to load student")
	}
	return s.detail(ctx, student)
}

// List returns students matching the filter. Parents are automatically scoped
// to their linked students; the default is active students only.
func (s *StudentService) List(ctx context.Context, principal authz.Principal, filter models.StudentFilter) ([]models.Student, int, error) {
	if principal.Role == models.RoleParent {
		if principal.ParentProfileID == "" {
			return []models.Student{}, 0, nil
		}
		filter.ParentID = principal.ParentProfileID
	}
	if filter.Active == nil && !filter.IncludeAll {
		active := true
		filter.Active = &active
	}
	students, total, err := s.students.List(ctx, filter)
	if err != nil {
		return nil, 0, storeError(err, "failed to list students")
	}
	return students, total, nil
}

// Update rewrites the student's name and birth date.
func (s *StudentService) Update(ctx context.Context, actorID, id string, req UpdateStudentRequest) (*models.StudentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}

	student, err := s.findStudent(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.students.Update(ctx, student.ID, req.Name, req.BirthDate); err != nil {
		return nil, storeError(err, "failed to update student")
	}

	s.auditAction(ctx, actorID, models.AuditActionUpdate, "student", id)
	student.Name = req.Name
	student.BirthDate = req.BirthDate
	return s.detail(ctx, student)
}

// SetParents replaces the student's guardian set as a whole. An empty set is
// rejected before anything is written, so the existing links survive a bad
// request untouched.
func (s *StudentService) SetParents(ctx context.Context, actorID, studentID string, req SetParentsRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "at least one parent is required")
	}

	if _, err := s.findStudent(ctx, studentID); err != nil {
		return err
	}

	parentIDs := dedupIDs(req.ParentIDs)
	if err := s.requireParents(ctx, parentIDs); err != nil {
		return err
	}

	if err := s.students.ReplaceParentLinks(ctx, studentID, parentIDs); err != nil {
		return storeError(err, "failed to replace parent links")
	}

	s.auditAction(ctx, actorID, models.AuditActionUpdate, "student_parents", studentID)
	s.logger.Info("student guardians replaced", zap.String("student_id", studentID), zap.Int("parents", len(parentIDs)))
	return nil
}

// SetEnrollments replaces the student's enrollment set as a whole. Submitting
// the current set is a no-op in effect, and an empty set unenrolls the student
// from everything. Grades recorded in removed classes are kept.
func (s *StudentService) SetEnrollments(ctx context.Context, actorID, studentID string, req SetEnrollmentsRequest) error {
	if _, err := s.findStudent(ctx, studentID); err != nil {
		return err
	}

	classIDs := dedupIDs(req.ClassIDs)
	if err := s.requireClasses(ctx, classIDs); err != nil {
		return err
	}

	if err := s.enrollments.ReplaceForStudent(ctx, studentID, classIDs); err != nil {
		return storeError(err, "failed to replace enrollments")
	}

	s.auditAction(ctx, actorID, models.AuditActionUpdate, "student_enrollments", studentID)
	s.logger.Info("student enrollments replaced", zap.String("student_id", studentID), zap.Int("classes", len(classIDs)))
	return nil
}

// ToggleActive flips the student's active flag. Links and enrollments are left
// untouched so re-activation restores the previous state.
func (s *StudentService) ToggleActive(ctx context.Context, actorID, id string) (*models.StudentDetail, error) {
	student, err := s.findStudent(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.students.SetActive(ctx, id, !student.Active); err != nil {
		return nil, storeError(err, "failed to toggle student status")
	}

	s.auditAction(ctx, actorID, models.AuditActionToggleStatus, "student", id)
	s.logger.Info("student status toggled", zap.String("student_id", id), zap.Bool("active", !student.Active))
	student.Active = !student.Active
	return s.detail(ctx, student)
}

func (s *StudentService) findStudent(ctx context.Context, id string) (*models.Student, error) {
	student, err := s.students.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, storeError(err, "failed to load student")
	}
	return student, nil
}

func (s *StudentService) detail(ctx context.Context, student *models.Student) (*models.StudentDetail, error) {
	parents, err := s.students.ListParents(ctx, student.ID)
	if err != nil {
		return nil, storeError(err, "failed to load student guardians")
	}
	classes, err := s.enrollments.ListClassesByStudent(ctx, student.ID)
	if err != nil {
		return nil, storeError(err, "failed to load student classes")
	}
	return &models.StudentDetail{Student: *student, Parents: parents, Classes: classes}, nil
}

func (s *StudentService) requireParents(ctx context.Context, parentIDs []string) error {
	existing, err := s.parents.ValidateIDs(ctx, parentIDs)
	if err != nil {
		return storeError(err, "failed to validate parent ids")
	}
	for _, id := range parentIDs {
		if !existing[id] {
			return appErrors.Clone(appErrors.ErrValidation, "unknown parent id: "+id)
		}
	}
	return nil
}

func (s *StudentService) requireClasses(ctx context.Context, classIDs []string) error {
	existing, err := s.classes.ValidateIDs(ctx, classIDs)
	if err != nil {
		return storeError(err, "failed to validate class ids")
	}
	for _, id := range classIDs {
		if !existing[id] {
			return appErrors.Clone(appErrors.ErrValidation, "unknown class id: "+id)
		}
	}
	return nil
}

func (s *StudentService) auditAction(ctx context.Context, actorID, action, resource, resourceID string) {
	log := &models.AuditLog{Action: action, Resource: resource, ResourceID: &resourceID}
	if actorID != "" {
		log.UserID = &actorID
	}
	if err := s.audits.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to write audit log", zap.String("action", action), zap.Error(err))
	}
}

// dedupIDs removes duplicates while preserving the first occurrence order.
func dedupIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	result := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		result = append(result, id)
	}
	return result
}
