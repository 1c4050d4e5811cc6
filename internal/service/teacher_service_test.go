package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/coem-edu/sga-api/internal/models"
	appErrors "github.com/coem-edu/sga-api/pkg/errors"
)

type stubTeacherRepo struct {
	teachers   map[string]models.TeacherDetail
	takenEmail string
	lastFilter *models.TeacherFilter
}

func (m *stubTeacherRepo) CreateWithAccount(ctx context.Context, user *models.User, profile *models.TeacherProfile) error {
	user.ID = "user-new"
	profile.ID = "teacher-new"
	profile.UserID = user.ID
	if m.teachers == nil {
		m.teachers = make(map[string]models.TeacherDetail)
	}
	m.teachers[profile.ID] = models.TeacherDetail{
		TeacherProfile: *profile,
		FullName:       user.FullName,
		Email:          user.Email,
	}
	return nil
}

func (m *stubTeacherRepo) FindByID(ctx context.Context, id string) (*models.TeacherDetail, error) {
	if d, ok := m.teachers[id]; ok {
		return &d, nil
	}
	return nil, sql.ErrNoRows
}

func (m *stubTeacherRepo) List(ctx context.Context, filter models.TeacherFilter) ([]models.TeacherDetail, int, error) {
	m.lastFilter = &filter
	return nil, 0, nil
}

func (m *stubTeacherRepo) UpdateAccount(ctx context.Context, userID, fullName, email string) error {
	for id, d := range m.teachers {
		if d.UserID == userID {
			d.FullName = fullName
			d.Email = email
			m.teachers[id] = d
		}
	}
	return nil
}

func (m *stubTeacherRepo) SetActive(ctx context.Context, id string, active bool) error {
	d := m.teachers[id]
	d.Active = active
	m.teachers[id] = d
	return nil
}

func (m *stubTeacherRepo) ExistsByEmail(ctx context.Context, email, excludeID string) (bool, error) {
	return email == m.takenEmail, nil
}

func newTeacherServiceFixture() (*TeacherService, *stubTeacherRepo) {
	repo := &stubTeacherRepo{teachers: map[string]models.TeacherDetail{
		"teacher-1": {
			TeacherProfile: models.TeacherProfile{ID: "teacher-1", UserID: "user-1", Active: true},
			FullName:       "Prof. Rivas",
			Email:          "rivas@coem.edu",
		},
	}}
	svc := NewTeacherService(repo, repo, &stubAudit{}, nil)
	return svc, repo
}

func TestTeacherCreateActiveByDefault(t *testing.T) {
	svc, _ := newTeacherServiceFixture()

	detail, err := svc.Create(context.Background(), "admin-1", CreateTeacherRequest{
		FullName: "Prof. Sosa",
		Email:    "sosa@coem.edu",
		Password: "chalk dust",
	})
	require.NoError(t, err)
	assert.True(t, detail.Active)
}

func TestTeacherCreatePasswordNeverStoredPlaintext(t *testing.T) {
	repo := &stubTeacherRepo{}
	var capturedHash string
	capture := &hashCapturingTeacherRepo{inner: repo, onCreate: func(u *models.User) { capturedHash = u.PasswordHash }}
	svc := NewTeacherService(capture, repo, &stubAudit{}, nil)

	_, err := svc.Create(context.Background(), "admin-1", CreateTeacherRequest{
		FullName: "Prof. Sosa",
		Email:    "sosa@coem.edu",
		Password: "chalk dust",
	})
	require.NoError(t, err)
	require.NotEmpty(t, capturedHash)
	assert.NotEqual(t, "chalk dust", capturedHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(capturedHash), []byte("chalk dust")))
}

func TestTeacherCreateDuplicateEmail(t *testing.T) {
	svc, repo := newTeacherServiceFixture()
	repo.takenEmail = "rivas@coem.edu"

	_, err := svc.Create(context.Background(), "admin-1", CreateTeacherRequest{
		FullName: "Impostor",
		Email:    "rivas@coem.edu",
		Password: "whatever1",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrConflict))
}

func TestTeacherCreateShortPassword(t *testing.T) {
	svc, _ := newTeacherServiceFixture()

	_, err := svc.Create(context.Background(), "admin-1", CreateTeacherRequest{
		FullName: "Prof. Sosa",
		Email:    "sosa@coem.edu",
		Password: "short",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestTeacherToggleActiveIsPureFlip(t *testing.T) {
	svc, _ := newTeacherServiceFixture()

	first, err := svc.ToggleActive(context.Background(), "admin-1", "teacher-1")
	require.NoError(t, err)
	assert.False(t, first.Active)

	second, err := svc.ToggleActive(context.Background(), "admin-1", "teacher-1")
	require.NoError(t, err)
	assert.True(t, second.Active)
}

func TestTeacherListDefaultsToActive(t *testing.T) {
	svc, repo := newTeacherServiceFixture()

	_, _, err := svc.List(context.Background(), models.TeacherFilter{})
	require.NoError(t, err)
	require.NotNil(t, repo.lastFilter)
	require.NotNil(t, repo.lastFilter.Active)
	assert.True(t, *repo.lastFilter.Active)
}

func TestTeacherListIncludeAll(t *testing.T) {
	svc, repo := newTeacherServiceFixture()

	_, _, err := svc.List(context.Background(), models.TeacherFilter{IncludeAll: true})
	require.NoError(t, err)
	require.NotNil(t, repo.lastFilter)
	assert.Nil(t, repo.lastFilter.Active)
}

func TestTeacherUpdateUnknownID(t *testing.T) {
	svc, _ := newTeacherServiceFixture()

	_, err := svc.Update(context.Background(), "admin-1", "teacher-404", UpdateTeacherRequest{
		FullName: "Nobody",
		Email:    "nobody@coem.edu",
	})
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

type hashCapturingTeacherRepo struct {
	inner    *stubTeacherRepo
	onCreate func(u *models.User)
}

func (c *hashCapturingTeacherRepo) CreateWithAccount(ctx context.Context, user *models.User, profile *models.TeacherProfile) error {
	c.onCreate(user)
	return c.inner.CreateWithAccount(ctx, user, profile)
}

func (c *hashCapturingTeacherRepo) FindByID(ctx context.Context, id string) (*models.TeacherDetail, error) {
	return c.inner.FindByID(ctx, id)
}

func (c *hashCapturingTeacherRepo) List(ctx context.Context, filter models.TeacherFilter) ([]models.TeacherDetail, int, error) {
	return c.inner.List(ctx, filter)
}

func (c *hashCapturingTeacherRepo) UpdateAccount(ctx context.Context, userID, fullName, email string) error {
	return c.inner.UpdateAccount(ctx, userID, fullName, email)
}

func (c *hashCapturingTeacherRepo) SetActive(ctx context.Context, id string, active bool) error {
	return c.inner.SetActive(ctx, id, active)
}
