package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/campuskit/campus-core-api/internal/models"
	appErrors "github.com/campuskit/campus-core-api/pkg/errors"
)

type userAdminRepoMock struct {
	listFn    func(context.Context, models.UserFilter) ([]models.User, int, error)
	findFn    func(context.Context, string) (*models.User, error)
	byEmailFn func(context.Context, string) (*models.User, error)
	createFn  func(context.Context, *models.User) error
	updateFn  func(context.Context, *models.User) error
	deleteFn  func(context.Context, string) error
}

func (m *userAdminRepoMock) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	if m.listFn != nil {
		return m.listFn(ctx, filter)
	}
	return nil, 0, nil
}

func (m *userAdminRepoMock) FindByID(ctx context.Context, id string) (*models.User, error) {
	if m.findFn != nil {
		return m.findFn(ctx, id)
	}
	return nil, sql.ErrNoRows
}

func (m *userAdminRepoMock) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.byEmailFn != nil {
		return m.byEmailFn(ctx, email)
	}
	return nil, sql.ErrNoRows
}

func (m *userAdminRepoMock) Create(ctx context.Context, user *models.User) error {
	if m.createFn != nil {
		return m.createFn(ctx, user)
	}
	return nil
}

func (m *userAdminRepoMock) Update(ctx context.Context, user *models.User) error {
	if m.updateFn != nil {
		return m.updateFn(ctx, user)
	}
	return nil
}

func (m *userAdminRepoMock) Delete(ctx context.Context, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

func TestUserServiceCreateHashesPassword(t *testing.T) {
	var stored *models.User
	repo := &userAdminRepoMock{
		createFn: func(_ context.Context, user *models.User) error {
			stored = user
			return nil
		},
	}
	svc := NewUserService(repo, nil)

	user, err := svc.Create(context.Background(), CreateUserRequest{
		Email:    "Teacher@Campus.Edu",
		FullName: "Teacher One",
		Role:     models.RoleTeacher,
		Active:   true,
		Password: "sup3rsecret",
	})
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "teacher@campus.edu", user.Email)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("sup3rsecret")))
}

func TestUserServiceCreateDuplicateEmail(t *testing.T) {
	repo := &userAdminRepoMock{
		byEmailFn: func(_ context.Context, email string) (*models.User, error) {
			return &models.User{ID: "u-1", Email: email}, nil
		},
	}
	svc := NewUserService(repo, nil)

	_, err := svc.Create(context.Background(), CreateUserRequest{
		Email:    "teacher@campus.edu",
		FullName: "Teacher One",
		Role:     models.RoleTeacher,
		Password: "sup3rsecret",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestUserServiceCreateRejectsShortPassword(t *testing.T) {
	svc := NewUserService(&userAdminRepoMock{}, nil)

	_, err := svc.Create(context.Background(), CreateUserRequest{
		Email:    "teacher@campus.edu",
		FullName: "Teacher One",
		Role:     models.RoleTeacher,
		Password: "short",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestUserServiceUpdateTogglesActive(t *testing.T) {
	var updated *models.User
	repo := &userAdminRepoMock{
		findFn: func(_ context.Context, id string) (*models.User, error) {
			return &models.User{ID: id, Email: "teacher@campus.edu", FullName: "Teacher One", Role: models.RoleTeacher, Active: true}, nil
		},
		updateFn: func(_ context.Context, user *models.User) error {
			updated = user
			return nil
		},
	}
	svc := NewUserService(repo, nil)

	inactive := false
	user, err := svc.Update(context.Background(), "u-1", UpdateUserRequest{
		FullName: "Teacher Renamed",
		Role:     models.RoleAdmin,
		Active:   &inactive,
	})
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.Equal(t, "Teacher Renamed", user.FullName)
	assert.Equal(t, models.RoleAdmin, user.Role)
	assert.False(t, user.Active)
}

func TestUserServiceGetNotFound(t *testing.T) {
	svc := NewUserService(&userAdminRepoMock{}, nil)

	_, err := svc.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestUserServiceDeleteMissing(t *testing.T) {
	svc := NewUserService(&userAdminRepoMock{}, nil)

	err := svc.Delete(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
