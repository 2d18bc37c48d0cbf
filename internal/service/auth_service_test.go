package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/campuskit/campus-core-api/internal/models"
	appErrors "github.com/campuskit/campus-core-api/pkg/errors"
)

type authUserRepoMock struct {
	byEmailFn        func(context.Context, string) (*models.User, error)
	byIDFn           func(context.Context, string) (*models.User, error)
	lastLoginFn      func(context.Context, string, time.Time) error
	updatePasswordFn func(context.Context, string, string, time.Time) error
}

func (m *authUserRepoMock) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.byEmailFn != nil {
		return m.byEmailFn(ctx, email)
	}
	return nil, errNoRows()
}

func (m *authUserRepoMock) FindByID(ctx context.Context, id string) (*models.User, error) {
	if m.byIDFn != nil {
		return m.byIDFn(ctx, id)
	}
	return nil, errNoRows()
}

func (m *authUserRepoMock) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	if m.lastLoginFn != nil {
		return m.lastLoginFn(ctx, id, ts)
	}
	return nil
}

func (m *authUserRepoMock) UpdatePassword(ctx context.Context, id, hash string, ts time.Time) error {
	if m.updatePasswordFn != nil {
		return m.updatePasswordFn(ctx, id, hash, ts)
	}
	return nil
}

func testUser(t *testing.T, password string) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return &models.User{
		ID:           "user-1",
		Email:        "teacher@example.com",
		PasswordHash: string(hash),
		FullName:     "Pat Teacher",
		Role:         models.RoleTeacher,
		Active:       true,
	}
}

func newAuthServiceForTest(users AuthUserRepo) *AuthService {
	return NewAuthService(users, AuthConfig{Secret: "test-secret", Expiration: time.Hour}, zap.NewNop())
}

func TestAuthServiceLogin(t *testing.T) {
	user := testUser(t, "s3cret!")
	repo := &authUserRepoMock{
		byEmailFn: func(_ context.Context, email string) (*models.User, error) {
			if email == user.Email {
				return user, nil
			}
			return nil, errNoRows()
		},
	}
	svc := newAuthServiceForTest(repo)

	resp, err := svc.Login(context.Background(), models.LoginRequest{Email: user.Email, Password: "s3cret!"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, user.ID, resp.User.ID)
	assert.Equal(t, int64(3600), resp.ExpiresIn)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, models.RoleTeacher, claims.Role)
}

func TestAuthServiceLoginRejectsBadCredentials(t *testing.T) {
	user := testUser(t, "s3cret!")
	repo := &authUserRepoMock{
		byEmailFn: func(context.Context, string) (*models.User, error) { return user, nil },
	}
	svc := newAuthServiceForTest(repo)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: user.Email, Password: "wrong"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)

	_, err = svc.Login(context.Background(), models.LoginRequest{Email: "nobody@example.com", Password: "x"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceLoginRejectsInactiveAccount(t *testing.T) {
	user := testUser(t, "s3cret!")
	user.Active = false
	repo := &authUserRepoMock{
		byEmailFn: func(context.Context, string) (*models.User, error) { return user, nil },
	}
	svc := newAuthServiceForTest(repo)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: user.Email, Password: "s3cret!"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceValidateTokenRejectsForgedToken(t *testing.T) {
	user := testUser(t, "s3cret!")
	repo := &authUserRepoMock{
		byEmailFn: func(context.Context, string) (*models.User, error) { return user, nil },
	}

	issuer := newAuthServiceForTest(repo)
	resp, err := issuer.Login(context.Background(), models.LoginRequest{Email: user.Email, Password: "s3cret!"})
	require.NoError(t, err)

	verifier := NewAuthService(repo, AuthConfig{Secret: "different-secret", Expiration: time.Hour}, zap.NewNop())
	_, err = verifier.ValidateToken(resp.AccessToken)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceChangePassword(t *testing.T) {
	user := testUser(t, "old-pass")
	var storedHash string
	repo := &authUserRepoMock{
		byIDFn: func(context.Context, string) (*models.User, error) { return user, nil },
		updatePasswordFn: func(_ context.Context, _ string, hash string, _ time.Time) error {
			storedHash = hash
			return nil
		},
	}
	svc := newAuthServiceForTest(repo)
	ctx := context.Background()

	err := svc.ChangePassword(ctx, user.ID, models.ChangePasswordRequest{OldPassword: "wrong", NewPassword: "new-pass"})
	require.Error(t, err)

	err = svc.ChangePassword(ctx, user.ID, models.ChangePasswordRequest{OldPassword: "old-pass", NewPassword: "new-pass"})
	require.NoError(t, err)
	require.NotEmpty(t, storedHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(storedHash), []byte("new-pass")))
}
