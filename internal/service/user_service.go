package service

import (
	"context"
	stderrors "errors"
	"strings"
	"time"

	"social-feed-backend/internal/errors"
	"social-feed-backend/internal/model"
	"social-feed-backend/internal/repository/interfaces"
	"social-feed-backend/internal/util"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// UserService 处理注册、登录和令牌校验
type UserService struct {
	userRepo interfaces.UserRepository
	tokens   *util.TokenManager
	now      func() time.Time
}

// NewUserService 创建一个新的 UserService 实例
func NewUserService(userRepo interfaces.UserRepository, tokens *util.TokenManager) *UserService {
	return &UserService{
		userRepo: userRepo,
		tokens:   tokens,
		now:      time.Now,
	}
}

type UserServiceInterface interface {
	Register(ctx context.Context, name, email, password string) (*model.User, error)
	Authenticate(ctx context.Context, email, password string) (string, *model.User, error)
	VerifyToken(token string) (*util.Claims, error)
	GetUserByID(ctx context.Context, id int) (*model.User, error)
}

// 确保 UserService 实现了 UserServiceInterface
var _ UserServiceInterface = (*UserService)(nil)

// Register 注册新用户
func (s *UserService) Register(ctx context.Context, name, email, password string) (*model.User, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)
	if name == "" || email == "" || password == "" {
		return nil, errors.New(errors.ErrValidation, "Please fill all the details")
	}

	// 检查邮箱是否已被注册，唯一索引兜底并发注册
	existing, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, errors.Wrap(errors.ErrDatabase, "failed to query user", err)
	}
	if existing != nil {
		return nil, errors.New(errors.ErrUserExists, "User Already Exist")
	}

	// 生成密码哈希
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		util.Logger.Error("生成密码哈希失败", zap.Error(err))
		return nil, errors.Wrap(errors.ErrInternal, "failed to hash password", err)
	}

	now := s.now()
	user := &model.User{
		Name:         name,
		Email:        email,
		PasswordHash: string(hashedPassword),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if stderrors.Is(err, interfaces.ErrDuplicateEmail) {
			return nil, errors.New(errors.ErrUserExists, "User Already Exist")
		}
		return nil, errors.Wrap(errors.ErrDatabase, "failed to create user", err)
	}

	util.Logger.Info("用户注册成功", zap.Int("user_id", user.ID))
	return user, nil
}

// Authenticate 校验邮箱和密码，成功时签发令牌
func (s *UserService) Authenticate(ctx context.Context, email, password string) (string, *model.User, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return "", nil, errors.New(errors.ErrValidation, "Please fill all the details")
	}

	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return "", nil, errors.Wrap(errors.ErrDatabase, "failed to query user", err)
	}
	if user == nil {
		util.Logger.Info("用户登录失败，未找到用户", zap.String("email", email))
		return "", nil, errors.New(errors.ErrUserNotFound, "User is Not registered")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		util.Logger.Info("用户登录失败，密码不正确", zap.Int("user_id", user.ID))
		return "", nil, errors.New(errors.ErrInvalidCredentials, "Password incorrect")
	}

	token, err := s.tokens.GenerateToken(user.ID, user.Email)
	if err != nil {
		util.Logger.Error("生成令牌失败", zap.Error(err), zap.Int("user_id", user.ID))
		return "", nil, errors.Wrap(errors.ErrInternal, "failed to generate token", err)
	}

	util.Logger.Info("用户登录成功", zap.Int("user_id", user.ID))
	return token, user, nil
}

// VerifyToken 校验令牌，不查询存储
func (s *UserService) VerifyToken(token string) (*util.Claims, error) {
	claims, err := s.tokens.ValidateToken(token)
	if err != nil {
		return nil, errors.Wrap(errors.ErrInvalidToken, "Token is invalid", err)
	}
	return claims, nil
}

// GetUserByID 通过ID获取用户信息
func (s *UserService) GetUserByID(ctx context.Context, id int) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		return nil, errors.Wrap(errors.ErrDatabase, "failed to query user", err)
	}
	if user == nil {
		return nil, errors.New(errors.ErrUserNotFound, "user not found")
	}
	return user, nil
}
