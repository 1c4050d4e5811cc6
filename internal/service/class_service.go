package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/coem-edu/sga-api/internal/authz"
	"github.com/coem-edu/sga-api/internal/models"
	"github.com/coem-edu/sga-api/pkg/export"
	appErrors "github.com/coem-edu/sga-api/pkg/errors"
)

// CreateClassRequest registers a class offering under one teacher.
type CreateClassRequest struct {
	TeacherID string `json:"teacher_id" validate:"required"`
	Name      string `json:"name" validate:"required,min=2"`
	Location  string `json:"location,omitempty"`
	Schedule  string `json:"schedule,omitempty"`
}

// UpdateClassRequest rewrites the class's mutable fields, including handing it
// over to another teacher.
type UpdateClassRequest struct {
	TeacherID string `json:"teacher_id" validate:"required"`
	Name      string `json:"name" validate:"required,min=2"`
	Location  string `json:"location,omitempty"`
	Schedule  string `json:"schedule,omitempty"`
}

type classRepository interface {
	Create(ctx context.Context, class *models.Class) error
	FindByID(ctx context.Context, id string) (*models.Class, error)
	FindDetailByID(ctx context.Context, id string) (*models.ClassDetail, error)
	List(ctx context.Context, filter models.ClassFilter) ([]models.ClassDetail, int, error)
	Update(ctx context.Context, class *models.Class) error
	SetActive(ctx context.Context, id string, active bool) error
	FindActiveBySchedule(ctx context.Context, teacherID, schedule, excludeID string) (*models.Class, error)
	ListByTeacher(ctx context.Context, teacherID string, activeOnly bool) ([]models.Class, error)
}

type teacherFinder interface {
	FindByID(ctx context.Context, id string) (*models.TeacherDetail, error)
}

type rosterReader interface {
	Roster(ctx context.Context, classID string) ([]models.RosterEntry, error)
}

type classGradesReader interface {
	ListByClass(ctx context.Context, classID string) ([]models.Grade, error)
}

type rosterGuard interface {
	CanReadRoster(ctx context.Context, p authz.Principal, classID string) error
}

// ClassService manages class offerings, schedule conflicts and rosters.
type ClassService struct {
	classes     classRepository
	teachers    teacherFinder
	enrollments rosterReader
	grades      classGradesReader
	audits      auditWriter
	guard       rosterGuard
	csv         *export.CSVExporter
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewClassService constructs a ClassService.
func NewClassService(classes classRepository, teachers teacherFinder, enrollments rosterReader, grades classGradesReader, audits auditWriter, guard rosterGuard, logger *zap.Logger) *ClassService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClassService{
		classes:     classes,
		teachers:    teachers,
		enrollments: enrollments,
		grades:      grades,
		audits:      audits,
		guard:       guard,
		csv:         export.NewCSVExporter(),
		validator:   validator.New(),
		logger:      logger,
	}
}

// Create registers an active class offering after checking the assigned
// teacher exists and is not double-booked on the schedule slot.
func (s *ClassService) Create(ctx context.Context, actorID string, req CreateClassRequest) (*models.ClassDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid class payload")
	}

	if _, err := s.teachers.FindByID(ctx, req.TeacherID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "unknown teacher id: "+req.TeacherID)
		}
		return nil, storeError(err, "failed to load teacher")
	}

	if err := s.checkScheduleConflict(ctx, req.TeacherID, req.Schedule, ""); err != nil {
		return nil, err
	}

	class := &models.Class{
		TeacherID: req.TeacherID,
		Name:      req.Name,
		Location:  req.Location,
		Schedule:  req.Schedule,
		Active:    true,
	}
	if err := s.classes.Create(ctx, class); err != nil {
		return nil, storeError(err, "failed to create class")
	}

	s.auditAction(ctx, actorID, models.AuditActionCreate, "class", class.ID)
	s.logger.Info("class created", zap.String("class_id", class.ID), zap.String("teacher_id", class.TeacherID))
	return s.detail(ctx, class.ID)
}

// GetByID returns one class offering with the owning teacher's name.
// Teachers may only read classes they own; denial mirrors not-found so the
// lookup never confirms another teacher's class id.
func (s *ClassService) GetByID(ctx context.Context, principal authz.Principal, id string) (*models.ClassDetail, error) {
	if err := s.guard.CanReadRoster(ctx, principal, id); err != nil {
		return nil, err
	}
	return s.detail(ctx, id)
}

func (s *ClassService) detail(ctx context.Context, id string) (*models.ClassDetail, error) {
	detail, err := s.classes.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, storeError(err, "failed to load class")
	}
	return detail, nil
}

// List returns class offerings matching the filter, defaulting to active ones.
// Teachers are automatically scoped to their own offerings.
func (s *ClassService) List(ctx context.Context, principal authz.Principal, filter models.ClassFilter) ([]models.ClassDetail, int, error) {
	if principal.Role == models.RoleTeacher {
		if principal.TeacherProfileID == "" {
			return []models.ClassDetail{}, 0, nil
		}
		filter.TeacherID = principal.TeacherProfileID
	}
	if filter.Active == nil && !filter.IncludeAll {
		active := true
		filter.Active = &active
	}
	classes, total, err := s.classes.List(ctx, filter)
	if err != nil {
		return nil, 0, storeError(err, "failed to list classes")
	}
	return classes, total, nil
}

// Update rewrites the class's fields, re-running the double-booking check
// against the (possibly new) teacher while ignoring the class itself.
func (s *ClassService) Update(ctx context.Context, actorID, id string, req UpdateClassRequest) (*models.ClassDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid class payload")
	}

	class, err := s.classes.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, storeError(err, "failed to load class")
	}

	if req.TeacherID != class.TeacherID {
		if _, err := s.teachers.FindByID(ctx, req.TeacherID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrValidation, "unknown teacher id: "+req.TeacherID)
			}
			return nil, storeError(err, "failed to load teacher")
		}
	}

	if err := s.checkScheduleConflict(ctx, req.TeacherID, req.Schedule, id); err != nil {
		return nil, err
	}

	class.TeacherID = req.TeacherID
	class.Name = req.Name
	class.Location = req.Location
	class.Schedule = req.Schedule
	if err := s.classes.Update(ctx, class); err != nil {
		return nil, storeError(err, "failed to update class")
	}

	s.auditAction(ctx, actorID, models.AuditActionUpdate, "class", id)
	return s.detail(ctx, id)
}

// ToggleActive flips the class's active flag. Enrollments and grades are left
// untouched; an inactive class simply stops counting for conflict detection.
func (s *ClassService) ToggleActive(ctx context.Context, actorID, id string) (*models.ClassDetail, error) {
	class, err := s.classes.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, storeError(err, "failed to load class")
	}

	if err := s.classes.SetActive(ctx, id, !class.Active); err != nil {
		return nil, storeError(err, "failed to toggle class status")
	}

	s.auditAction(ctx, actorID, models.AuditActionToggleStatus, "class", id)
	s.logger.Info("class status toggled", zap.String("class_id", id), zap.Bool("active", !class.Active))
	return s.detail(ctx, id)
}

// Roster returns the enrolled students with their grades in this class.
// Teachers may only read rosters of classes they own.
func (s *ClassService) Roster(ctx context.Context, principal authz.Principal, classID string) ([]models.RosterEntry, error) {
	if err := s.guard.CanReadRoster(ctx, principal, classID); err != nil {
		return nil, err
	}

	roster, err := s.enrollments.Roster(ctx, classID)
	if err != nil {
		return nil, storeError(err, "failed to load roster")
	}

	grades, err := s.grades.ListByClass(ctx, classID)
	if err != nil {
		return nil, storeError(err, "failed to load class grades")
	}

	byStudent := make(map[string][]models.Grade, len(roster))
	for _, grade := range grades {
		byStudent[grade.StudentID] = append(byStudent[grade.StudentID], grade)
	}
	for i := range roster {
		entries := byStudent[roster[i].StudentID]
		if entries == nil {
			entries = []models.Grade{}
		}
		roster[i].Grades = entries
	}
	return roster, nil
}

// ExportRosterCSV renders the roster as a CSV attachment.
func (s *ClassService) ExportRosterCSV(ctx context.Context, principal authz.Principal, classID string) ([]byte, error) {
	roster, err := s.Roster(ctx, principal, classID)
	if err != nil {
		return nil, err
	}

	dataset := export.Dataset{
		Headers: []string{"student_id", "student_name", "active", "grade_count"},
	}
	for _, entry := range roster {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"student_id":   entry.StudentID,
			"student_name": entry.StudentName,
			"active":       strconv.FormatBool(entry.Active),
			"grade_count":  strconv.Itoa(len(entry.Grades)),
		})
	}

	payload, err := s.csv.Render(dataset)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render roster csv")
	}
	return payload, nil
}

// ListByTeacher returns the offerings owned by a teacher profile.
func (s *ClassService) ListByTeacher(ctx context.Context, teacherID string, activeOnly bool) ([]models.Class, error) {
	classes, err := s.classes.ListByTeacher(ctx, teacherID, activeOnly)
	if err != nil {
		return nil, storeError(err, "failed to list teacher classes")
	}
	return classes, nil
}

// checkScheduleConflict rejects a save that would double-book the teacher on
// the same slot. Empty schedules never conflict; the conflicting offering is
// named in the error so the caller can fix the overlap.
func (s *ClassService) checkScheduleConflict(ctx context.Context, teacherID, schedule, excludeID string) error {
	if schedule == "" {
		return nil
	}
	conflict, err := s.classes.FindActiveBySchedule(ctx, teacherID, schedule, excludeID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return storeError(err, "failed to check schedule conflict")
	}
	return appErrors.Clone(appErrors.ErrScheduleConflict,
		fmt.Sprintf("teacher already has %q scheduled at %q", conflict.Name, schedule))
}

func (s *ClassService) auditAction(ctx context.Context, actorID, action, resource, resourceID string) {
	log := &models.AuditLog{Action: action, Resource: resource, ResourceID: &resourceID}
	if actorID != "" {
		log.UserID = &actorID
	}
	if err := s.audits.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to write audit log", zap.String("action", action), zap.Error(err))
	}
}
