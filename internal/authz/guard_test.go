package authz

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coem-edu/sga-api/internal/models"
	appErrors "github.com/coem-edu/sga-api/pkg/errors"
)

type mockClassReader struct {
	classes map[string]*models.Class
}

func (m *mockClassReader) FindByID(ctx context.Context, id string) (*models.Class, error) {
	if class, ok := m.classes[id]; ok {
		return class, nil
	}
	return nil, sql.ErrNoRows
}

type mockLinkReader struct {
	links map[string]bool
}

func (m *mockLinkReader) LinkExists(ctx context.Context, parentID, studentID string) (bool, error) {
	return m.links[parentID+"/"+studentID], nil
}

func newTestGuard() *Guard {
	classes := &mockClassReader{classes: map[string]*models.Class{
		"class-1": {ID: "class-1", TeacherID: "teacher-1"},
		"class-2": {ID: "class-2", TeacherID: "teacher-2"},
	}}
	links := &mockLinkReader{links: map[string]bool{
		"parent-1/student-1": true,
	}}
	return NewGuard(classes, links)
}

func TestCanManageAdminOnly(t *testing.T) {
	guard := newTestGuard()

	require.NoError(t, guard.CanManage(Principal{Role: models.RoleAdmin}))

	err := guard.CanManage(Principal{Role: models.RoleTeacher, TeacherProfileID: "teacher-1"})
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))
}

func TestCanReadStudentLinkedParent(t *testing.T) {
	guard := newTestGuard()
	p := Principal{Role: models.RoleParent, ParentProfileID: "parent-1"}

	require.NoError(t, guard.CanReadStudent(context.Background(), p, "student-1"))
}

func TestCanReadStudentUnlinkedParentGetsNotFound(t *testing.T) {
	guard := newTestGuard()
	p := Principal{Role: models.RoleParent, ParentProfileID: "parent-1"}

	err := guard.CanReadStudent(context.Background(), p, "student-2")
	require.Error(t, err)
	// Denial must be indistinguishable from a missing student.
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
	assert.False(t, errors.Is(err, appErrors.ErrForbidden))
}

func TestCanReadStudentAdminBypassesLinks(t *testing.T) {
	guard := newTestGuard()

	require.NoError(t, guard.CanReadStudent(context.Background(), Principal{Role: models.RoleAdmin}, "student-2"))
}

func TestCanWriteGradesOwnClass(t *testing.T) {
	guard := newTestGuard()
	p := Principal{Role: models.RoleTeacher, TeacherProfileID: "teacher-1"}

	require.NoError(t, guard.CanWriteGrades(context.Background(), p, "class-1"))
}

func TestCanWriteGradesForeignClassForbidden(t *testing.T) {
	guard := newTestGuard()
	p := Principal{Role: models.RoleTeacher, TeacherProfileID: "teacher-1"}

	err := guard.CanWriteGrades(context.Background(), p, "class-2")
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))
}

func TestCanWriteGradesMissingClass(t *testing.T) {
	guard := newTestGuard()
	p := Principal{Role: models.RoleTeacher, TeacherProfileID: "teacher-1"}

	err := guard.CanWriteGrades(context.Background(), p, "class-404")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestCanWriteGradesParentForbidden(t *testing.T) {
	guard := newTestGuard()
	p := Principal{Role: models.RoleParent, ParentProfileID: "parent-1"}

	err := guard.CanWriteGrades(context.Background(), p, "class-1")
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))
}

func TestCanReadRosterForeignClassMirrorsNotFound(t *testing.T) {
	guard := newTestGuard()
	p := Principal{Role: models.RoleTeacher, TeacherProfileID: "teacher-1"}

	require.NoError(t, guard.CanReadRoster(context.Background(), p, "class-1"))

	err := guard.CanReadRoster(context.Background(), p, "class-2")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestCanUpdateParentProfileSelf(t *testing.T) {
	guard := newTestGuard()

	self := Principal{Role: models.RoleParent, ParentProfileID: "parent-1"}
	require.NoError(t, guard.CanUpdateParentProfile(self, "parent-1"))

	other := Principal{Role: models.RoleParent, ParentProfileID: "parent-2"}
	err := guard.CanUpdateParentProfile(other, "parent-1")
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))
}
