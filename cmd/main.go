package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"social-feed-backend/config"
	"social-feed-backend/internal/api"
	"social-feed-backend/internal/database"
	"social-feed-backend/internal/util"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			util.Logger.Error("程序发生严重错误", zap.Any("error", r))
			os.Exit(2)
		}
	}()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "social-feed",
		Short:         "Social feed backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context())
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server (default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context())
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return migrate(cmd.Context())
		},
	})
	return cmd
}

// setup 加载配置、初始化日志并连接数据库
func setup(ctx context.Context) (config.Config, *sql.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, nil, err
	}

	// 初始化日志
	util.InitLogger(cfg.LogLevel)
	util.Logger.Info("应用程序启动", zap.String("driver", cfg.DBDriver))

	// 连接数据库
	db, err := database.Open(ctx, cfg.DBDriver, cfg.DSN())
	if err != nil {
		util.Logger.Fatal("连接数据库失败", zap.Error(err))
	}
	return cfg, db, nil
}

func migrate(ctx context.Context) error {
	cfg, db, err := setup(ctx)
	if err != nil {
		return err
	}
	defer util.Logger.Sync()
	defer db.Close()

	if err := database.Migrate(ctx, db, cfg.DBDriver); err != nil {
		return fmt.Errorf("数据库迁移失败: %w", err)
	}
	util.Logger.Info("数据库迁移完成")
	return nil
}

func serve(ctx context.Context) error {
	cfg, db, err := setup(ctx)
	if err != nil {
		return err
	}
	defer util.Logger.Sync()
	defer db.Close()

	if cfg.AutoMigrate {
		if err := database.Migrate(ctx, db, cfg.DBDriver); err != nil {
			return fmt.Errorf("数据库迁移失败: %w", err)
		}
	}

	r := api.NewRouter(cfg, db)

	// 创建 http.Server
	srv := &http.Server{
		Addr:    cfg.Addr(),
		Handler: r,
	}

	// 在一个新的 goroutine 中启动服务器
	go func() {
		util.Logger.Info("服务器正在启动", zap.String("addr", cfg.Addr()))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			util.Logger.Fatal("启动服务器失败", zap.Error(err))
		}
	}()

	// 等待中断信号以优雅地关闭服务器
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	util.Logger.Info("正在关闭服务器...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownWait)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		util.Logger.Error("服务器强制关闭", zap.Error(err))
		return err
	}

	util.Logger.Info("服务器已优雅关闭")
	return nil
}
