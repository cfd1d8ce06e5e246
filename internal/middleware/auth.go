package middleware

import (
	"context"
	"strings"
	"time"

	"social-feed-backend/internal/errors"
	"social-feed-backend/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"go.uber.org/zap"
)

const (
	// ContextUserID 和 ContextUserEmail 是认证后写入 gin.Context 的键
	ContextUserID    = "user_id"
	ContextUserEmail = "user_email"

	// TokenCookie 是登录时写入的令牌 cookie 名
	TokenCookie = "token"
)

// TokenVerifier 校验令牌并返回其中的用户信息
type TokenVerifier interface {
	VerifyToken(token string) (*util.Claims, error)
}

type tokenBody struct {
	Token string `json:"token"`
}

// AuthMiddleware 依次从 Authorization 头、token cookie 和 JSON 请求体的 token 字段读取令牌
func AuthMiddleware(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		util.Logger.Debug("进入认证中间件",
			zap.String("path", c.Request.URL.Path),
			zap.String("method", c.Request.Method))

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		c.Request = c.Request.WithContext(ctx)

		token, err := extractToken(c)
		if err != nil {
			errors.HandleError(c, err)
			c.Abort()
			return
		}
		if token == "" {
			errors.HandleError(c, errors.New(errors.ErrUnauthorized, "Token Missing"))
			c.Abort()
			return
		}

		claims, err := verifier.VerifyToken(token)
		if err != nil {
			errors.HandleError(c, errors.Wrap(errors.ErrInvalidToken, "Token is invalid", err))
			c.Abort()
			return
		}

		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextUserEmail, claims.Email)

		select {
		case <-ctx.Done():
			errors.HandleError(c, errors.New(errors.ErrTimeout, "请求超时"))
			c.Abort()
			return
		default:
			c.Next()
		}
	}
}

func extractToken(c *gin.Context) (string, error) {
	if authHeader := c.GetHeader("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if !(len(parts) == 2 && parts[0] == "Bearer") {
			return "", errors.New(errors.ErrUnauthorized, "无效的认证格式")
		}
		return strings.TrimSpace(parts[1]), nil
	}

	if cookie, err := c.Cookie(TokenCookie); err == nil && cookie != "" {
		return cookie, nil
	}

	// 请求体会被缓存，处理函数需要用 ShouldBindBodyWith 再次读取
	if c.Request.Body != nil && c.Request.ContentLength != 0 {
		var body tokenBody
		if err := c.ShouldBindBodyWith(&body, binding.JSON); err == nil {
			return strings.TrimSpace(body.Token), nil
		}
	}
	return "", nil
}

// UserID 返回认证中间件写入的用户ID
func UserID(c *gin.Context) (int, bool) {
	value, exists := c.Get(ContextUserID)
	if !exists {
		return 0, false
	}
	id, ok := value.(int)
	return id, ok
}
