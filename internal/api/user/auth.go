package user

import (
	"net/http"

	"social-feed-backend/internal/errors"
	"social-feed-backend/internal/middleware"
	"social-feed-backend/internal/service"
	"social-feed-backend/internal/util"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// tokenCookieMaxAge 是登录 cookie 的有效期（3天），令牌本身的有效期更短
const tokenCookieMaxAge = 3 * 24 * 60 * 60

// AuthHandler 处理与认证相关的HTTP请求
type AuthHandler struct {
	userService service.UserServiceInterface
}

// NewAuthHandler 创建一个新的 AuthHandler 实例
func NewAuthHandler(userService service.UserServiceInterface) *AuthHandler {
	return &AuthHandler{userService}
}

// Signup 处理用户注册请求
func (h *AuthHandler) Signup(c *gin.Context) {
	var signupData struct {
		Name     string `json:"name" binding:"required,notblank"`
		Email    string `json:"email" binding:"required,notblank"`
		Password string `json:"password" binding:"required"`
	}

	if err := c.ShouldBindJSON(&signupData); err != nil {
		util.Logger.Warn("注册失败，无效的请求数据", zap.Error(err))
		errors.HandleError(c, errors.Wrap(errors.ErrValidation, "Please fill all the details", err))
		return
	}

	if _, err := h.userService.Register(c.Request.Context(), signupData.Name, signupData.Email, signupData.Password); err != nil {
		if errors.Is(err, errors.ErrUserExists) {
			util.Logger.Warn("注册失败，邮箱已存在", zap.String("email", signupData.Email))
		}
		errors.HandleError(c, err)
		return
	}

	errors.HandleSuccess(c, http.StatusOK, "User created successfully", nil)
}

// Login 处理用户登录请求
func (h *AuthHandler) Login(c *gin.Context) {
	var loginData struct {
		Email    string `json:"email" binding:"required,notblank"`
		Password string `json:"password" binding:"required"`
	}

	if err := c.ShouldBindJSON(&loginData); err != nil {
		errors.HandleError(c, errors.Wrap(errors.ErrValidation, "Please fill all the details", err))
		return
	}

	token, user, err := h.userService.Authenticate(c.Request.Context(), loginData.Email, loginData.Password)
	if err != nil {
		// 客户端依赖这两个状态码区分未注册和密码错误
		switch {
		case errors.Is(err, errors.ErrUserNotFound):
			errors.HandleError(c, errors.New(errors.ErrUnauthorized, "User is Not registered"))
		case errors.Is(err, errors.ErrInvalidCredentials):
			errors.HandleError(c, errors.New(errors.ErrForbidden, "Password incorrect"))
		default:
			errors.HandleError(c, err)
		}
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.TokenCookie, token, tokenCookieMaxAge, "/", "", false, true)

	errors.HandleSuccess(c, http.StatusOK, "User logged in successfully", gin.H{
		"token": token,
		"user":  user,
	})
}
