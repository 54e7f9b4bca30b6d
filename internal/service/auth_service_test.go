package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"expense-tracker/internal/dto"
	"expense-tracker/internal/models"
	"expense-tracker/internal/repository"
	"expense-tracker/pkg/auth"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type MockUserStore struct {
	mock.Mock
}

func (m *MockUserStore) Create(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserStore) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func newTestAuthService(users UserStore) (*AuthService, *auth.JWTManager) {
	jwtManager := auth.NewJWTManager("test-secret", time.Hour, 24*time.Hour)
	return NewAuthService(users, jwtManager, zap.NewNop()), jwtManager
}

func TestAuthService_Register(t *testing.T) {
	ctx := context.Background()
	users := new(MockUserStore)
	svc, jwtManager := newTestAuthService(users)

	users.On("GetByEmail", ctx, "alice@example.com").Return(nil, repository.ErrNotFound)
	users.On("Create", ctx, mock.MatchedBy(func(u *models.User) bool {
		return u.Email == "alice@example.com" && u.Username == "alice" && auth.CheckPasswordHash("pw", u.PasswordHash)
	})).Return(nil)

	resp, err := svc.Register(ctx, &dto.RegisterRequest{Username: "alice", Email: " Alice@Example.com ", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, "Bearer", resp.TokenType)
	assert.Equal(t, int64(3600), resp.ExpiresIn)
	assert.Equal(t, "alice@example.com", resp.User.Email)

	claims, err := jwtManager.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, claims.UserID)
	assert.Equal(t, "alice@example.com", claims.Email)

	users.AssertExpectations(t)
}

func TestAuthService_RegisterExisting(t *testing.T) {
	ctx := context.Background()
	users := new(MockUserStore)
	svc, _ := newTestAuthService(users)

	users.On("GetByEmail", ctx, "alice@example.com").Return(&models.User{ID: uuid.New()}, nil)

	_, err := svc.Register(ctx, &dto.RegisterRequest{Username: "alice", Email: "alice@example.com", Password: "pw"})
	assert.ErrorIs(t, err, ErrUserExists)
	users.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestAuthService_RegisterInvalid(t *testing.T) {
	svc, _ := newTestAuthService(new(MockUserStore))

	_, err := svc.Register(context.Background(), &dto.RegisterRequest{Email: "a@b.c"})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestAuthService_Login(t *testing.T) {
	ctx := context.Background()
	hash, err := auth.HashPassword("pw")
	require.NoError(t, err)
	user := &models.User{ID: uuid.New(), Username: "alice", Email: "alice@example.com", PasswordHash: hash}

	tests := []struct {
		name     string
		found    *models.User
		findErr  error
		password string
		wantErr  error
	}{
		{name: "ok", found: user, password: "pw"},
		{name: "wrong password", found: user, password: "nope", wantErr: ErrInvalidCredentials},
		{name: "unknown email", findErr: repository.ErrNotFound, password: "pw", wantErr: ErrInvalidCredentials},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			users := new(MockUserStore)
			svc, _ := newTestAuthService(users)
			users.On("GetByEmail", ctx, "alice@example.com").Return(tt.found, tt.findErr)

			resp, err := svc.Login(ctx, &dto.LoginRequest{Email: "alice@example.com", Password: tt.password})
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, user.ID.String(), resp.User.ID)
		})
	}
}

func TestAuthService_LoginStoreFailure(t *testing.T) {
	ctx := context.Background()
	users := new(MockUserStore)
	svc, _ := newTestAuthService(users)
	dbErr := errors.New("connection refused")
	users.On("GetByEmail", ctx, "alice@example.com").Return(nil, dbErr)

	_, err := svc.Login(ctx, &dto.LoginRequest{Email: "alice@example.com", Password: "pw"})
	assert.ErrorIs(t, err, dbErr)
	assert.NotErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthService_RefreshToken(t *testing.T) {
	ctx := context.Background()
	users := new(MockUserStore)
	svc, jwtManager := newTestAuthService(users)
	user := &models.User{ID: uuid.New(), Username: "alice", Email: "alice@example.com"}
	users.On("GetByID", ctx, user.ID).Return(user, nil)

	refresh, err := jwtManager.GenerateRefreshToken(user.ID.String())
	require.NoError(t, err)

	resp, err := svc.RefreshToken(ctx, refresh)
	require.NoError(t, err)
	assert.Equal(t, "alice", resp.User.Username)

	access, err := jwtManager.GenerateToken(user.ID.String(), user.Username, user.Email)
	require.NoError(t, err)
	_, err = svc.RefreshToken(ctx, access)
	assert.ErrorIs(t, err, ErrInvalidCredentials, "access tokens cannot be used to refresh")
}
