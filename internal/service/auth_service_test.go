package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/coem-edu/sga-api/internal/models"
	"github.com/coem-edu/sga-api/pkg/config"
	appErrors "github.com/coem-edu/sga-api/pkg/errors"
)

type stubAuthUsers struct {
	users         map[string]models.User
	refreshTokens map[string]models.RefreshToken
	revoked       []string
	revokedUsers  []string
	passwordSet   string
	auditActions  []string
}

func (m *stubAuthUsers) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *stubAuthUsers) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := m.users[id]; ok {
		return &u, nil
	}
	return nil, sql.ErrNoRows
}

func (m *stubAuthUsers) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	return nil
}

func (m *stubAuthUsers) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	m.passwordSet = passwordHash
	return nil
}

func (m *stubAuthUsers) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	token.ID = "rt-" + token.Token[:6]
	if m.refreshTokens == nil {
		m.refreshTokens = make(map[string]models.RefreshToken)
	}
	m.refreshTokens[token.Token] = *token
	return nil
}

func (m *stubAuthUsers) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	if rt, ok := m.refreshTokens[token]; ok {
		return &rt, nil
	}
	return nil, sql.ErrNoRows
}

func (m *stubAuthUsers) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	m.revoked = append(m.revoked, id)
	for token, rt := range m.refreshTokens {
		if rt.ID == id {
			rt.Revoked = true
			m.refreshTokens[token] = rt
		}
	}
	return nil
}

func (m *stubAuthUsers) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	m.revokedUsers = append(m.revokedUsers, userID)
	return nil
}

func (m *stubAuthUsers) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.auditActions = append(m.auditActions, log.Action)
	return nil
}

type stubTeacherResolver struct {
	byUser map[string]string
}

func (m *stubTeacherResolver) FindByUserID(ctx context.Context, userID string) (*models.TeacherProfile, error) {
	if id, ok := m.byUser[userID]; ok {
		return &models.TeacherProfile{ID: id, UserID: userID}, nil
	}
	return nil, sql.ErrNoRows
}

type stubParentResolver struct {
	byUser map[string]string
}

func (m *stubParentResolver) FindByUserID(ctx context.Context, userID string) (*models.ParentProfile, error) {
	if id, ok := m.byUser[userID]; ok {
		return &models.ParentProfile{ID: id, UserID: userID}, nil
	}
	return nil, sql.ErrNoRows
}

func hashPassword(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func newAuthFixture(t *testing.T) (*AuthService, *stubAuthUsers) {
	t.Helper()
	users := &stubAuthUsers{users: map[string]models.User{
		"user-1": {ID: "user-1", Email: "admin@coem.edu", PasswordHash: hashPassword(t, "correct horse"), FullName: "Admin", Role: models.RoleAdmin, Active: true},
		"user-2": {ID: "user-2", Email: "prof@coem.edu", PasswordHash: hashPassword(t, "chalk dust"), FullName: "Prof. Rivas", Role: models.RoleTeacher, Active: true},
		"user-3": {ID: "user-3", Email: "gone@coem.edu", PasswordHash: hashPassword(t, "old news"), FullName: "Inactive", Role: models.RoleAdmin, Active: false},
	}}
	teachers := &stubTeacherResolver{byUser: map[string]string{"user-2": "teacher-1"}}
	parents := &stubParentResolver{byUser: map[string]string{}}
	cfg := config.JWTConfig{Secret: "test-secret", Expiration: 15 * time.Minute, RefreshExpiration: 24 * time.Hour}
	return NewAuthService(users, teachers, parents, cfg, nil), users
}

func TestLoginSuccessIssuesTokenPair(t *testing.T) {
	svc, users := newAuthFixture(t)

	resp, err := svc.Login(context.Background(), models.LoginRequest{Email: "admin@coem.edu", Password: "correct horse"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.Equal(t, models.RoleAdmin, resp.User.Role)
	assert.Contains(t, users.refreshTokens, resp.RefreshToken)
	assert.Contains(t, users.auditActions, models.AuditActionLogin)
}

func TestLoginUnknownEmailAndWrongPasswordLookAlike(t *testing.T) {
	svc, _ := newAuthFixture(t)

	_, errUnknown := svc.Login(context.Background(), models.LoginRequest{Email: "nobody@coem.edu", Password: "whatever1"})
	_, errWrong := svc.Login(context.Background(), models.LoginRequest{Email: "admin@coem.edu", Password: "wrong"})

	require.Error(t, errUnknown)
	require.Error(t, errWrong)
	assert.True(t, errors.Is(errUnknown, appErrors.ErrInvalidCredentials))
	assert.True(t, errors.Is(errWrong, appErrors.ErrInvalidCredentials))
	assert.Equal(t, errUnknown.Error(), errWrong.Error())
}

func TestLoginInactiveAccountRejected(t *testing.T) {
	svc, _ := newAuthFixture(t)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "gone@coem.edu", Password: "old news"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrInactiveAccount))
}

func TestLoginEmbedsTeacherProfileInClaims(t *testing.T) {
	svc, _ := newAuthFixture(t)

	resp, err := svc.Login(context.Background(), models.LoginRequest{Email: "prof@coem.edu", Password: "chalk dust"})
	require.NoError(t, err)
	require.NotNil(t, resp.User.TeacherProfileID)
	assert.Equal(t, "teacher-1", *resp.User.TeacherProfileID)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-2", claims.UserID)
	assert.Equal(t, models.RoleTeacher, claims.Role)
	require.NotNil(t, claims.TeacherProfileID)
	assert.Equal(t, "teacher-1", *claims.TeacherProfileID)
	assert.Nil(t, claims.ParentProfileID)
}

func TestRefreshTokenRotates(t *testing.T) {
	svc, users := newAuthFixture(t)

	login, err := svc.Login(context.Background(), models.LoginRequest{Email: "admin@coem.edu", Password: "correct horse"})
	require.NoError(t, err)

	refreshed, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: login.RefreshToken})
	require.NoError(t, err)
	assert.NotEqual(t, login.RefreshToken, refreshed.RefreshToken)
	assert.NotEmpty(t, users.revoked)

	// The rotated-out token must not work a second time.
	_, err = svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: login.RefreshToken})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))
}

func TestRefreshTokenExpired(t *testing.T) {
	svc, users := newAuthFixture(t)
	users.refreshTokens = map[string]models.RefreshToken{
		"stale": {ID: "rt-stale", UserID: "user-1", Token: "stale", ExpiresAt: time.Now().Add(-time.Hour)},
	}

	_, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "stale"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))
}

func TestLogoutIsIdempotent(t *testing.T) {
	svc, _ := newAuthFixture(t)

	require.NoError(t, svc.Logout(context.Background(), "user-1", "never-issued", "", ""))
	require.NoError(t, svc.Logout(context.Background(), "user-1", "", "", ""))
}

func TestChangePasswordRevokesSessions(t *testing.T) {
	svc, users := newAuthFixture(t)

	err := svc.ChangePassword(context.Background(), "user-1", models.ChangePasswordRequest{
		OldPassword: "correct horse",
		NewPassword: "battery staple",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, users.passwordSet)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(users.passwordSet), []byte("battery staple")))
	assert.Equal(t, []string{"user-1"}, users.revokedUsers)
}

func TestChangePasswordWrongCurrent(t *testing.T) {
	svc, users := newAuthFixture(t)

	err := svc.ChangePassword(context.Background(), "user-1", models.ChangePasswordRequest{
		OldPassword: "not it",
		NewPassword: "battery staple",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrInvalidCredentials))
	assert.Empty(t, users.passwordSet)
}

func TestValidateTokenRejectsTampering(t *testing.T) {
	svc, _ := newAuthFixture(t)

	login, err := svc.Login(context.Background(), models.LoginRequest{Email: "admin@coem.edu", Password: "correct horse"})
	require.NoError(t, err)

	_, err = svc.ValidateToken(login.AccessToken + "x")
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))

	_, err = svc.ValidateToken("not-a-token")
	require.Error(t, err)
}
