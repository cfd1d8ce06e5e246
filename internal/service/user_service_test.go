package service

import (
	"context"
	"testing"
	"time"

	"social-feed-backend/internal/errors"
	"social-feed-backend/internal/model"
	"social-feed-backend/internal/repository/interfaces"
	"social-feed-backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestUserService(repo *MockUserRepository) *UserService {
	return NewUserService(repo, util.NewTokenManager("test-secret", 2*time.Hour))
}

// TestRegister 测试用户注册功能
func TestRegister(t *testing.T) {
	mockRepo := new(MockUserRepository)
	service := newTestUserService(mockRepo)
	ctx := context.Background()

	// 测试成功注册
	mockRepo.On("FindByEmail", mock.Anything, "test@example.com").Return(nil, nil).Once()
	mockRepo.On("Create", mock.Anything, mock.AnythingOfType("*model.User")).
		Run(func(args mock.Arguments) {
			args.Get(1).(*model.User).ID = 1
		}).
		Return(nil).Once()

	user, err := service.Register(ctx, " testuser ", "test@example.com", "password123")
	require.NoError(t, err)
	assert.Equal(t, 1, user.ID)
	assert.Equal(t, "testuser", user.Name)
	assert.NotEqual(t, "password123", user.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("password123")))
	mockRepo.AssertExpectations(t)

	// 测试邮箱已存在
	mockRepo.On("FindByEmail", mock.Anything, "existing@example.com").Return(&model.User{ID: 2}, nil).Once()
	_, err = service.Register(ctx, "existing", "existing@example.com", "password123")
	assert.True(t, errors.Is(err, errors.ErrUserExists))
	assert.Equal(t, "User Already Exist", err.(*errors.AppError).Message)
}

// TestRegisterConcurrentDuplicate 并发注册时由唯一索引发现重复
func TestRegisterConcurrentDuplicate(t *testing.T) {
	mockRepo := new(MockUserRepository)
	service := newTestUserService(mockRepo)

	mockRepo.On("FindByEmail", mock.Anything, "race@example.com").Return(nil, nil)
	mockRepo.On("Create", mock.Anything, mock.Anything).Return(interfaces.ErrDuplicateEmail)

	_, err := service.Register(context.Background(), "race", "race@example.com", "pw")
	assert.True(t, errors.Is(err, errors.ErrUserExists))
}

func TestRegisterMissingFields(t *testing.T) {
	mockRepo := new(MockUserRepository)
	service := newTestUserService(mockRepo)

	cases := [][3]string{
		{"", "a@example.com", "pw"},
		{"alice", "   ", "pw"},
		{"alice", "a@example.com", ""},
	}
	for _, c := range cases {
		_, err := service.Register(context.Background(), c[0], c[1], c[2])
		assert.True(t, errors.Is(err, errors.ErrValidation))
	}
	mockRepo.AssertNotCalled(t, "FindByEmail", mock.Anything, mock.Anything)
}

// TestAuthenticate 测试登录和令牌校验
func TestAuthenticate(t *testing.T) {
	mockRepo := new(MockUserRepository)
	service := newTestUserService(mockRepo)
	ctx := context.Background()

	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	require.NoError(t, err)
	stored := &model.User{ID: 7, Name: "alice", Email: "alice@example.com", PasswordHash: string(hash)}
	mockRepo.On("FindByEmail", mock.Anything, "alice@example.com").Return(stored, nil)
	mockRepo.On("FindByEmail", mock.Anything, "nobody@example.com").Return(nil, nil)

	token, user, err := service.Authenticate(ctx, "alice@example.com", "password123")
	require.NoError(t, err)
	assert.Equal(t, 7, user.ID)

	claims, err := service.VerifyToken(token)
	require.NoError(t, err)
	assert.Equal(t, 7, claims.UserID)
	assert.Equal(t, "alice@example.com", claims.Email)

	// 密码错误
	_, _, err = service.Authenticate(ctx, "alice@example.com", "wrong")
	assert.True(t, errors.Is(err, errors.ErrInvalidCredentials))

	// 用户不存在
	_, _, err = service.Authenticate(ctx, "nobody@example.com", "password123")
	assert.True(t, errors.Is(err, errors.ErrUserNotFound))

	_, _, err = service.Authenticate(ctx, "", "")
	assert.True(t, errors.Is(err, errors.ErrValidation))
}

func TestVerifyTokenRejectsGarbage(t *testing.T) {
	service := newTestUserService(new(MockUserRepository))

	_, err := service.VerifyToken("not-a-token")
	assert.True(t, errors.Is(err, errors.ErrInvalidToken))

	other := util.NewTokenManager("other-secret", time.Hour)
	token, err := other.GenerateToken(1, "a@example.com")
	require.NoError(t, err)
	_, err = service.VerifyToken(token)
	assert.True(t, errors.Is(err, errors.ErrInvalidToken))
}

func TestGetUserByID(t *testing.T) {
	mockRepo := new(MockUserRepository)
	service := newTestUserService(mockRepo)

	mockRepo.On("FindByID", mock.Anything, 1).Return(&model.User{ID: 1}, nil)
	mockRepo.On("FindByID", mock.Anything, 999).Return(nil, nil)

	user, err := service.GetUserByID(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, user.ID)

	_, err = service.GetUserByID(context.Background(), 999)
	assert.True(t, errors.Is(err, errors.ErrUserNotFound))
}
