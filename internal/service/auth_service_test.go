package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"golang.org/x/crypto/bcrypt"

	"github.com/ignatzorin/escrow-backend/internal/models"
	"github.com/ignatzorin/escrow-backend/internal/pkg/apperror"
	"github.com/ignatzorin/escrow-backend/internal/repository"
)

type mockAuthRepo struct {
	mock.Mock
}

func (m *mockAuthRepo) Create(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *mockAuthRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *mockAuthRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *mockAuthRepo) CreateSession(ctx context.Context, session *models.Session) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

func (m *mockAuthRepo) DeleteSession(ctx context.Context, refreshToken string) error {
	args := m.Called(ctx, refreshToken)
	return args.Error(0)
}

func (m *mockAuthRepo) UpdateLastLoginAt(ctx context.Context, userID uuid.UUID) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func newAuthService() (*AuthService, *mockAuthRepo) {
	repo := new(mockAuthRepo)
	tm := NewTokenManager("test-access-secret", "test-refresh-secret", 15*time.Minute, 720*time.Hour)
	return NewAuthService(repo, tm), repo
}

func TestAuthService_Register_Success(t *testing.T) {
	svc, repo := newAuthService()
	ctx := context.Background()

	repo.On("GetByEmail", ctx, "client@example.com").Return(nil, repository.ErrUserNotFound)
	repo.On("Create", ctx, mock.AnythingOfType("*models.User")).
		Run(func(args mock.Arguments) {
			args.Get(1).(*models.User).ID = uuid.New()
		}).Return(nil)
	repo.On("CreateSession", ctx, mock.AnythingOfType("*models.Session")).Return(nil)

	res, err := svc.Register(ctx, RegisterInput{
		Email:    "client@example.com",
		Password: "password123",
		Role:     models.RoleClient,
	}, nil)
	assert.NoError(t, err)
	assert.Equal(t, "client", res.User.Username)
	assert.Equal(t, models.RoleClient, res.User.Role)
	assert.NotEmpty(t, res.TokenPair.AccessToken)
	assert.NotEmpty(t, res.TokenPair.RefreshToken)
	repo.AssertExpectations(t)
}

func TestAuthService_Register_DuplicateEmail(t *testing.T) {
	svc, repo := newAuthService()
	ctx := context.Background()

	existing := &models.User{ID: uuid.New(), Email: "client@example.com"}
	repo.On("GetByEmail", ctx, "client@example.com").Return(existing, nil)

	_, err := svc.Register(ctx, RegisterInput{
		Email:    "client@example.com",
		Password: "password123",
		Role:     models.RoleClient,
	}, nil)
	assert.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.ErrCodeConflict))
}

func TestAuthService_Register_Validation(t *testing.T) {
	svc, _ := newAuthService()
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterInput{Email: "not-an-email", Password: "password123", Role: models.RoleClient}, nil)
	assert.True(t, apperror.IsValidation(err))

	_, err = svc.Register(ctx, RegisterInput{Email: "a@example.com", Password: "short", Role: models.RoleClient}, nil)
	assert.True(t, apperror.IsValidation(err))

	_, err = svc.Register(ctx, RegisterInput{Email: "a@example.com", Password: "password123", Role: "admin"}, nil)
	assert.True(t, apperror.IsValidation(err))
}

func TestAuthService_Login_Success(t *testing.T) {
	svc, repo := newAuthService()
	ctx := context.Background()

	hash, _ := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	user := &models.User{
		ID:           uuid.New(),
		Email:        "client@example.com",
		PasswordHash: string(hash),
		Role:         models.RoleClient,
		IsActive:     true,
	}
	repo.On("GetByEmail", ctx, "client@example.com").Return(user, nil)
	repo.On("UpdateLastLoginAt", ctx, user.ID).Return(nil)
	repo.On("CreateSession", ctx, mock.AnythingOfType("*models.Session")).Return(nil)

	res, err := svc.Login(ctx, LoginInput{Email: "client@example.com", Password: "password123"}, map[string]string{"ip": "127.0.0.1"})
	assert.NoError(t, err)
	assert.Equal(t, user.ID, res.User.ID)
	assert.NotEmpty(t, res.TokenPair.AccessToken)
}

func TestAuthService_Login_WrongPassword(t *testing.T) {
	svc, repo := newAuthService()
	ctx := context.Background()

	hash, _ := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	user := &models.User{ID: uuid.New(), Email: "client@example.com", PasswordHash: string(hash), IsActive: true}
	repo.On("GetByEmail", ctx, "client@example.com").Return(user, nil)

	_, err := svc.Login(ctx, LoginInput{Email: "client@example.com", Password: "wrong-password"}, nil)
	assert.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.ErrCodeUnauthorized))
}

func TestAuthService_Login_InactiveAccount(t *testing.T) {
	svc, repo := newAuthService()
	ctx := context.Background()

	user := &models.User{ID: uuid.New(), Email: "client@example.com", IsActive: false}
	repo.On("GetByEmail", ctx, "client@example.com").Return(user, nil)

	_, err := svc.Login(ctx, LoginInput{Email: "client@example.com", Password: "password123"}, nil)
	assert.Error(t, err)
	assert.True(t, apperror.IsForbidden(err))
}

func TestAuthService_Refresh_RotatesSession(t *testing.T) {
	svc, repo := newAuthService()
	ctx := context.Background()

	user := &models.User{ID: uuid.New(), Email: "client@example.com", Role: models.RoleClient, IsActive: true}
	pair, _, err := svc.tokenManager.GeneratePair(user)
	assert.NoError(t, err)

	repo.On("GetByID", ctx, user.ID).Return(user, nil)
	repo.On("DeleteSession", ctx, pair.RefreshToken).Return(nil)
	repo.On("CreateSession", ctx, mock.AnythingOfType("*models.Session")).Return(nil)

	newPair, err := svc.Refresh(ctx, pair.RefreshToken, nil)
	assert.NoError(t, err)
	assert.NotEmpty(t, newPair.AccessToken)
	repo.AssertCalled(t, "DeleteSession", ctx, pair.RefreshToken)
}

func TestAuthService_Refresh_InvalidToken(t *testing.T) {
	svc, _ := newAuthService()

	_, err := svc.Refresh(context.Background(), "garbage-token", nil)
	assert.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.ErrCodeUnauthorized))
}

func TestAuthService_Logout(t *testing.T) {
	svc, repo := newAuthService()
	ctx := context.Background()

	repo.On("DeleteSession", ctx, "some-refresh-token").Return(nil)

	assert.NoError(t, svc.Logout(ctx, "some-refresh-token"))
	repo.AssertExpectations(t)
}
