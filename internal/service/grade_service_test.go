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
	"github.com/coem-edu/sga-api/pkg/config"
	appErrors "github.com/coem-edu/sga-api/pkg/errors"
)

type stubGradeRepo struct {
	grades  map[string]models.Grade
	created *models.Grade
	deleted []string
}

func (m *stubGradeRepo) Create(ctx context.Context, grade *models.Grade) error {
	grade.ID = "g-new"
	if grade.Period == 0 {
		grade.Period = models.DefaultPeriod
	}
	m.created = grade
	return nil
}

func (m *stubGradeRepo) FindByID(ctx context.Context, id string) (*models.Grade, error) {
	if g, ok := m.grades[id]; ok {
		return &g, nil
	}
	return nil, sql.ErrNoRows
}

func (m *stubGradeRepo) Update(ctx context.Context, grade *models.Grade) error {
	m.grades[grade.ID] = *grade
	return nil
}

func (m *stubGradeRepo) Delete(ctx context.Context, id string) error {
	m.deleted = append(m.deleted, id)
	delete(m.grades, id)
	return nil
}

func (m *stubGradeRepo) ListByStudent(ctx context.Context, studentID string, filter models.GradeFilter) ([]models.Grade, error) {
	var out []models.Grade
	for _, g := range m.grades {
		if g.StudentID == studentID {
			out = append(out, g)
		}
	}
	return out, nil
}

// ownershipGuard mirrors the real guard's outcomes: teachers may only write to
// classes they own, unknown classes read as missing.
type ownershipGuard struct {
	classOwners map[string]string
}

func (g ownershipGuard) CanWriteGrades(ctx context.Context, p authz.Principal, classID string) error {
	owner, ok := g.classOwners[classID]
	if !ok {
		return appErrors.Clone(appErrors.ErrNotFound, "class not found")
	}
	if p.IsAdmin() {
		return nil
	}
	if p.Role == models.RoleTeacher && p.TeacherProfileID == owner {
		return nil
	}
	return appErrors.Clone(appErrors.ErrForbidden, "class belongs to another teacher")
}

func (g ownershipGuard) CanReadStudent(ctx context.Context, p authz.Principal, studentID string) error {
	return nil
}

func newGradeServiceFixture() (*GradeService, *stubGradeRepo) {
	repo := &stubGradeRepo{grades: map[string]models.Grade{
		"g-1": {ID: "g-1", StudentID: "stu-1", ClassID: "class-1", Value: 6, Period: 1},
	}}
	students := &stubStudentRepo{students: map[string]models.Student{
		"stu-1": {ID: "stu-1", Name: "Alice", Active: true},
	}}
	guard := ownershipGuard{classOwners: map[string]string{
		"class-1": "teacher-1",
		"class-2": "teacher-2",
	}}
	svc := NewGradeService(repo, students, guard, &stubAudit{}, config.GradesConfig{ScaleMax: 10, PassThreshold: 6}, nil)
	return svc, repo
}

func teacherPrincipal(profileID string) authz.Principal {
	return authz.Principal{AccountID: "user-t", Role: models.RoleTeacher, TeacherProfileID: profileID}
}

func TestGradeCreateByOwningTeacher(t *testing.T) {
	svc, repo := newGradeServiceFixture()

	grade, err := svc.Create(context.Background(), teacherPrincipal("teacher-1"), CreateGradeRequest{
		StudentID: "stu-1",
		ClassID:   "class-1",
		Value:     8.5,
	})
	require.NoError(t, err)
	assert.Equal(t, models.DefaultPeriod, grade.Period)
	assert.NotNil(t, repo.created)
}

func TestGradeCreateForeignClassForbidden(t *testing.T) {
	svc, repo := newGradeServiceFixture()

	_, err := svc.Create(context.Background(), teacherPrincipal("teacher-1"), CreateGradeRequest{
		StudentID: "stu-1",
		ClassID:   "class-2",
		Value:     8,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))
	assert.Nil(t, repo.created)
}

func TestGradeCreateValueOutOfScale(t *testing.T) {
	svc, _ := newGradeServiceFixture()

	_, err := svc.Create(context.Background(), teacherPrincipal("teacher-1"), CreateGradeRequest{
		StudentID: "stu-1",
		ClassID:   "class-1",
		Value:     10.5,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = svc.Create(context.Background(), teacherPrincipal("teacher-1"), CreateGradeRequest{
		StudentID: "stu-1",
		ClassID:   "class-1",
		Value:     -1,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestGradeCreateUnknownStudent(t *testing.T) {
	svc, _ := newGradeServiceFixture()

	_, err := svc.Create(context.Background(), teacherPrincipal("teacher-1"), CreateGradeRequest{
		StudentID: "stu-404",
		ClassID:   "class-1",
		Value:     8,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestGradeUpdateRechecksStoredClassOwnership(t *testing.T) {
	svc, repo := newGradeServiceFixture()
	repo.grades["g-2"] = models.Grade{ID: "g-2", StudentID: "stu-1", ClassID: "class-2", Value: 7}

	// teacher-1 does not own class-2, even though they can name the grade id.
	_, err := svc.Update(context.Background(), teacherPrincipal("teacher-1"), "g-2", UpdateGradeRequest{Value: 9})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))

	updated, err := svc.Update(context.Background(), teacherPrincipal("teacher-2"), "g-2", UpdateGradeRequest{Value: 9})
	require.NoError(t, err)
	assert.Equal(t, 9.0, updated.Value)
}

func TestGradeUpdateKeepsPeriodWhenUnset(t *testing.T) {
	svc, repo := newGradeServiceFixture()

	updated, err := svc.Update(context.Background(), teacherPrincipal("teacher-1"), "g-1", UpdateGradeRequest{Value: 7})
	require.NoError(t, err)
	assert.Equal(t, 1, updated.Period)
	assert.Equal(t, 7.0, repo.grades["g-1"].Value)
}

func TestGradeDeleteForeignClassForbidden(t *testing.T) {
	svc, repo := newGradeServiceFixture()
	repo.grades["g-2"] = models.Grade{ID: "g-2", StudentID: "stu-1", ClassID: "class-2", Value: 7}

	err := svc.Delete(context.Background(), teacherPrincipal("teacher-1"), "g-2")
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))
	assert.Empty(t, repo.deleted)

	require.NoError(t, svc.Delete(context.Background(), authz.Principal{Role: models.RoleAdmin}, "g-2"))
	assert.Equal(t, []string{"g-2"}, repo.deleted)
}

func TestGradeDeleteUnknownGrade(t *testing.T) {
	svc, _ := newGradeServiceFixture()

	err := svc.Delete(context.Background(), authz.Principal{Role: models.RoleAdmin}, "g-404")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}
