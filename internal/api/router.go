package api

import (
	"context"
	"database/sql"
	"net/http"
	"strings"
	"time"

	"social-feed-backend/config"
	"social-feed-backend/internal/api/post"
	"social-feed-backend/internal/api/user"
	"social-feed-backend/internal/errors"
	"social-feed-backend/internal/metrics"
	"social-feed-backend/internal/middleware"
	"social-feed-backend/internal/repository/sqlstore"
	"social-feed-backend/internal/service"
	"social-feed-backend/internal/util"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// NewRouter 组装存储库、服务和处理器，注册全部路由
func NewRouter(cfg config.Config, db *sql.DB) *gin.Engine {
	// 注册自定义验证器
	util.RegisterValidators()

	// 初始化存储库、服务和处理器
	userRepo := sqlstore.NewUserRepository(db)
	postRepo := sqlstore.NewPostRepository(db)

	tokens := util.NewTokenManager(cfg.JWTSecret, cfg.TokenTTL)
	userService := service.NewUserService(userRepo, tokens)
	postService := service.NewPostService(postRepo, userRepo, service.WithMaxRetries(cfg.LikeRetries))

	authHandler := user.NewAuthHandler(userService)
	postHandler := post.NewPostHandler(postService)

	// 初始化错误监控
	analytics := errors.NewErrorAnalytics()

	r := gin.New()

	// 添加中间件，ErrorMonitor 必须在 Recovery 外层才能统计 panic
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.LoggerMiddleware())
	r.Use(metrics.Middleware())
	r.Use(middleware.ErrorMonitorMiddleware(analytics))
	r.Use(middleware.RecoveryMiddleware())
	r.Use(cors.New(corsConfig(cfg.FrontendURL)))

	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "Backend is running...")
	})
	r.GET("/healthz", healthHandler(db, analytics))
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	auth := middleware.AuthMiddleware(userService)

	// 定义 API 路由
	v1 := r.Group("/api/v1")
	{
		// 用户相关路由
		v1.POST("/signup", authHandler.Signup)
		v1.POST("/login", authHandler.Login)

		// 帖子相关路由，/user/:userId 与 /:postId 同级
		posts := v1.Group("/post")
		{
			posts.GET("", postHandler.GetAllPosts)
			posts.GET("/user/:userId", postHandler.GetUserPosts)
			posts.GET("/:postId", postHandler.GetPost)

			posts.POST("", auth, postHandler.CreatePost)
			posts.POST("/:postId/like", auth, postHandler.ToggleLike)
			posts.POST("/:postId/comment", auth, postHandler.AddComment)
			posts.DELETE("/:postId", auth, postHandler.DeletePost)
		}
	}

	r.NoRoute(func(c *gin.Context) {
		errors.HandleError(c, errors.New(errors.ErrResourceNotFound, "Route not found"))
	})

	if cfg.Debug {
		util.Logger.Info("已注册的路由列表：")
		for _, route := range r.Routes() {
			util.Logger.Info("路由",
				util.String("method", route.Method),
				util.String("path", route.Path))
		}
	}
	return r
}

// corsConfig 允许前端地址跨域访问。FRONTEND_URL 可以是逗号分隔的多个地址，"*" 表示任意来源。
func corsConfig(frontendURL string) cors.Config {
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowCredentials = true
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{
		"Origin",
		"Content-Length",
		"Content-Type",
		"Authorization",
		middleware.RequestIDHeader,
	}
	corsConfig.ExposeHeaders = []string{
		"Content-Length",
		"Content-Type",
		middleware.RequestIDHeader,
	}

	var origins []string
	for _, origin := range strings.Split(frontendURL, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		// 带 cookie 的请求不能使用 "*"，回显请求来源
		corsConfig.AllowOriginFunc = func(string) bool { return true }
		return corsConfig
	}
	corsConfig.AllowOrigins = origins
	return corsConfig
}

func healthHandler(db *sql.DB, analytics *errors.ErrorAnalytics) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		database := "up"
		if err := db.PingContext(ctx); err != nil {
			util.Logger.Error("健康检查失败", util.Error(err))
			status = http.StatusServiceUnavailable
			database = "down"
		}

		c.JSON(status, gin.H{
			"success":  status == http.StatusOK,
			"database": database,
			"errors":   analytics.GetStats(),
		})
	}
}
