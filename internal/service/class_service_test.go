package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coem-edu/sga-api/internal/authz"
	"github.com/coem-edu/sga-api/internal/models"
	appErrors "github.com/coem-edu/sga-api/pkg/errors"
)

type stubClassRepo struct {
	classes     map[string]models.Class
	nextID      string
	activeFlips []bool
}

func (m *stubClassRepo) Create(ctx context.Context, class *models.Class) error {
	if m.nextID == "" {
		m.nextID = "class-new"
	}
	class.ID = m.nextID
	if m.classes == nil {
		m.classes = make(map[string]models.Class)
	}
	m.classes[class.ID] = *class
	return nil
}

func (m *stubClassRepo) FindByID(ctx context.Context, id string) (*models.Class, error) {
	if c, ok := m.classes[id]; ok {
		return &c, nil
	}
	return nil, sql.ErrNoRows
}

func (m *stubClassRepo) FindDetailByID(ctx context.Context, id string) (*models.ClassDetail, error) {
	if c, ok := m.classes[id]; ok {
		return &models.ClassDetail{Class: c, TeacherName: "Prof. Rivas"}, nil
	}
	return nil, sql.ErrNoRows
}

func (m *stubClassRepo) List(ctx context.Context, filter models.ClassFilter) ([]models.ClassDetail, int, error) {
	return nil, 0, nil
}

func (m *stubClassRepo) Update(ctx context.Context, class *models.Class) error {
	m.classes[class.ID] = *class
	return nil
}

func (m *stubClassRepo) SetActive(ctx context.Context, id string, active bool) error {
	c := m.classes[id]
	c.Active = active
	m.classes[id] = c
	m.activeFlips = append(m.activeFlips, active)
	return nil
}

func (m *stubClassRepo) FindActiveBySchedule(ctx context.Context, teacherID, schedule, excludeID string) (*models.Class, error) {
	for _, c := range m.classes {
		if c.ID == excludeID || !c.Active {
			continue
		}
		if c.TeacherID == teacherID && c.Schedule == schedule {
			return &c, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *stubClassRepo) ListByTeacher(ctx context.Context, teacherID string, activeOnly bool) ([]models.Class, error) {
	var out []models.Class
	for _, c := range m.classes {
		if c.TeacherID != teacherID {
			continue
		}
		if activeOnly && !c.Active {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

type stubTeacherFinder struct {
	known map[string]bool
}

func (m *stubTeacherFinder) FindByID(ctx context.Context, id string) (*models.TeacherDetail, error) {
	if m.known[id] {
		return &models.TeacherDetail{}, nil
	}
	return nil, sql.ErrNoRows
}

type stubRoster struct {
	entries map[string][]models.RosterEntry
}

func (m *stubRoster) Roster(ctx context.Context, classID string) ([]models.RosterEntry, error) {
	return m.entries[classID], nil
}

type stubClassGrades struct {
	grades map[string][]models.Grade
}

func (m *stubClassGrades) ListByClass(ctx context.Context, classID string) ([]models.Grade, error) {
	return m.grades[classID], nil
}

type allowAllRosterGuard struct{}

func (allowAllRosterGuard) CanReadRoster(ctx context.Context, p authz.Principal, classID string) error {
	return nil
}

func newClassServiceFixture() (*ClassService, *stubClassRepo) {
	repo := &stubClassRepo{classes: map[string]models.Class{
		"class-1": {ID: "class-1", TeacherID: "teacher-1", Name: "Matematicas", Schedule: "LUN 08:00-10:00", Active: true},
	}}
	teachers := &stubTeacherFinder{known: map[string]bool{"teacher-1": true, "teacher-2": true}}
	svc := NewClassService(repo, teachers, &stubRoster{}, &stubClassGrades{}, &stubAudit{}, allowAllRosterGuard{}, nil)
	return svc, repo
}

func TestClassCreateRejectsScheduleConflict(t *testing.T) {
	svc, _ := newClassServiceFixture()

	_, err := svc.Create(context.Background(), "admin-1", CreateClassRequest{
		TeacherID: "teacher-1",
		Name:      "Fisica",
		Schedule:  "LUN 08:00-10:00",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrScheduleConflict))
	// The conflicting offering is named so the caller can fix the overlap.
	assert.Contains(t, err.Error(), "Matematicas")
}

func TestClassCreateAllowsDifferentSlot(t *testing.T) {
	svc, repo := newClassServiceFixture()

	detail, err := svc.Create(context.Background(), "admin-1", CreateClassRequest{
		TeacherID: "teacher-1",
		Name:      "Fisica",
		Schedule:  "MAR 10:00-12:00",
	})
	require.NoError(t, err)
	assert.True(t, detail.Active)
	assert.Len(t, repo.classes, 2)
}

func TestClassCreateAllowsSameSlotForOtherTeacher(t *testing.T) {
	svc, _ := newClassServiceFixture()

	_, err := svc.Create(context.Background(), "admin-1", CreateClassRequest{
		TeacherID: "teacher-2",
		Name:      "Fisica",
		Schedule:  "LUN 08:00-10:00",
	})
	require.NoError(t, err)
}

func TestClassCreateEmptyScheduleNeverConflicts(t *testing.T) {
	svc, repo := newClassServiceFixture()

	_, err := svc.Create(context.Background(), "admin-1", CreateClassRequest{
		TeacherID: "teacher-1",
		Name:      "Taller",
	})
	require.NoError(t, err)

	// A second unscheduled offering for the same teacher is fine too.
	repo.nextID = "class-other"
	_, err = svc.Create(context.Background(), "admin-1", CreateClassRequest{
		TeacherID: "teacher-1",
		Name:      "Tutoria",
	})
	require.NoError(t, err)
}

func TestClassCreateUnknownTeacher(t *testing.T) {
	svc, _ := newClassServiceFixture()

	_, err := svc.Create(context.Background(), "admin-1", CreateClassRequest{
		TeacherID: "teacher-404",
		Name:      "Fisica",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestClassUpdateIgnoresOwnScheduleSlot(t *testing.T) {
	svc, _ := newClassServiceFixture()

	// Re-saving the class on its current slot must not conflict with itself.
	detail, err := svc.Update(context.Background(), "admin-1", "class-1", UpdateClassRequest{
		TeacherID: "teacher-1",
		Name:      "Matematicas II",
		Schedule:  "LUN 08:00-10:00",
	})
	require.NoError(t, err)
	assert.Equal(t, "Matematicas II", detail.Name)
}

func TestClassUpdateConflictsWithSiblingClass(t *testing.T) {
	svc, repo := newClassServiceFixture()
	repo.classes["class-2"] = models.Class{ID: "class-2", TeacherID: "teacher-1", Name: "Quimica", Schedule: "MIE 08:00-10:00", Active: true}

	_, err := svc.Update(context.Background(), "admin-1", "class-2", UpdateClassRequest{
		TeacherID: "teacher-1",
		Name:      "Quimica",
		Schedule:  "LUN 08:00-10:00",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrScheduleConflict))
}

func TestClassUpdateInactiveSiblingDoesNotConflict(t *testing.T) {
	svc, repo := newClassServiceFixture()
	c := repo.classes["class-1"]
	c.Active = false
	repo.classes["class-1"] = c
	repo.classes["class-2"] = models.Class{ID: "class-2", TeacherID: "teacher-1", Name: "Quimica", Schedule: "MIE 08:00-10:00", Active: true}

	_, err := svc.Update(context.Background(), "admin-1", "class-2", UpdateClassRequest{
		TeacherID: "teacher-1",
		Name:      "Quimica",
		Schedule:  "LUN 08:00-10:00",
	})
	require.NoError(t, err)
}

func TestClassToggleActiveIsPureFlip(t *testing.T) {
	svc, repo := newClassServiceFixture()

	first, err := svc.ToggleActive(context.Background(), "admin-1", "class-1")
	require.NoError(t, err)
	assert.False(t, first.Active)

	second, err := svc.ToggleActive(context.Background(), "admin-1", "class-1")
	require.NoError(t, err)
	assert.True(t, second.Active)
	assert.Equal(t, []bool{false, true}, repo.activeFlips)
}

func TestClassRosterAttachesGradesPerStudent(t *testing.T) {
	repo := &stubClassRepo{classes: map[string]models.Class{
		"class-1": {ID: "class-1", TeacherID: "teacher-1", Name: "Matematicas", Active: true},
	}}
	roster := &stubRoster{entries: map[string][]models.RosterEntry{
		"class-1": {
			{StudentID: "stu-1", StudentName: "Alice", Active: true},
			{StudentID: "stu-2", StudentName: "Bruno", Active: true},
		},
	}}
	grades := &stubClassGrades{grades: map[string][]models.Grade{
		"class-1": {
			{ID: "g-1", StudentID: "stu-1", ClassID: "class-1", Value: 8.5},
			{ID: "g-2", StudentID: "stu-1", ClassID: "class-1", Value: 7},
		},
	}}
	svc := NewClassService(repo, &stubTeacherFinder{}, roster, grades, &stubAudit{}, allowAllRosterGuard{}, nil)

	entries, err := svc.Roster(context.Background(), authz.Principal{Role: models.RoleAdmin}, "class-1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Len(t, entries[0].Grades, 2)
	// Ungraded students get an empty slice, not nil.
	require.NotNil(t, entries[1].Grades)
	assert.Empty(t, entries[1].Grades)
}

func TestClassListScopesTeacherToOwnOfferings(t *testing.T) {
	repo := &capturingClassList{inner: &stubClassRepo{}}
	svc := NewClassService(repo, &stubTeacherFinder{}, &stubRoster{}, &stubClassGrades{}, &stubAudit{}, allowAllRosterGuard{}, nil)

	p := authz.Principal{Role: models.RoleTeacher, TeacherProfileID: "teacher-1"}
	_, _, err := svc.List(context.Background(), p, models.ClassFilter{})
	require.NoError(t, err)
	require.NotNil(t, repo.filter)
	assert.Equal(t, "teacher-1", repo.filter.TeacherID)
	require.NotNil(t, repo.filter.Active)
	assert.True(t, *repo.filter.Active)
}

func TestClassListIncludeAllSkipsActiveDefault(t *testing.T) {
	repo := &capturingClassList{inner: &stubClassRepo{}}
	svc := NewClassService(repo, &stubTeacherFinder{}, &stubRoster{}, &stubClassGrades{}, &stubAudit{}, allowAllRosterGuard{}, nil)

	_, _, err := svc.List(context.Background(), authz.Principal{Role: models.RoleAdmin}, models.ClassFilter{IncludeAll: true})
	require.NoError(t, err)
	require.NotNil(t, repo.filter)
	assert.Nil(t, repo.filter.Active)
}

type ownerRosterGuard struct {
	classOwners map[string]string
}

func (g ownerRosterGuard) CanReadRoster(ctx context.Context, p authz.Principal, classID string) error {
	if p.IsAdmin() {
		return nil
	}
	if p.Role == models.RoleTeacher && g.classOwners[classID] == p.TeacherProfileID {
		return nil
	}
	return appErrors.Clone(appErrors.ErrNotFound, "class not found")
}

func TestClassGetByIDScopedToOwningTeacher(t *testing.T) {
	repo := &stubClassRepo{classes: map[string]models.Class{
		"class-1": {ID: "class-1", TeacherID: "teacher-1", Name: "Matematicas", Active: true},
		"class-2": {ID: "class-2", TeacherID: "teacher-2", Name: "Quimica", Active: true},
	}}
	guard := ownerRosterGuard{classOwners: map[string]string{
		"class-1": "teacher-1",
		"class-2": "teacher-2",
	}}
	svc := NewClassService(repo, &stubTeacherFinder{}, &stubRoster{}, &stubClassGrades{}, &stubAudit{}, guard, nil)

	teacher := authz.Principal{Role: models.RoleTeacher, TeacherProfileID: "teacher-1"}

	own, err := svc.GetByID(context.Background(), teacher, "class-1")
	require.NoError(t, err)
	assert.Equal(t, "Matematicas", own.Name)

	// Another teacher's class reads as not-found, never as forbidden, so the
	// lookup does not confirm the id exists.
	_, err = svc.GetByID(context.Background(), teacher, "class-2")
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))

	admin := authz.Principal{Role: models.RoleAdmin}
	other, err := svc.GetByID(context.Background(), admin, "class-2")
	require.NoError(t, err)
	assert.Equal(t, "Quimica", other.Name)
}

type capturingClassList struct {
	inner  *stubClassRepo
	filter *models.ClassFilter
}

func (c *capturingClassList) Create(ctx context.Context, class *models.Class) error {
	return c.inner.Create(ctx, class)
}

func (c *capturingClassList) FindByID(ctx context.Context, id string) (*models.Class, error) {
	return c.inner.FindByID(ctx, id)
}

func (c *capturingClassList) FindDetailByID(ctx context.Context, id string) (*models.ClassDetail, error) {
	return c.inner.FindDetailByID(ctx, id)
}

func (c *capturingClassList) List(ctx context.Context, filter models.ClassFilter) ([]models.ClassDetail, int, error) {
	c.filter = &filter
	return c.inner.List(ctx, filter)
}

func (c *capturingClassList) Update(ctx context.Context, class *models.Class) error {
	return c.inner.Update(ctx, class)
}

func (c *capturingClassList) SetActive(ctx context.Context, id string, active bool) error {
	return c.inner.SetActive(ctx, id, active)
}

func (c *capturingClassList) FindActiveBySchedule(ctx context.Context, teacherID, schedule, excludeID string) (*models.Class, error) {
	return c.inner.FindActiveBySchedule(ctx, teacherID, schedule, excludeID)
}

func (c *capturingClassList) ListByTeacher(ctx context.Context, teacherID string, activeOnly bool) ([]models.Class, error) {
	return c.inner.ListByTeacher(ctx, teacherID, activeOnly)
}
