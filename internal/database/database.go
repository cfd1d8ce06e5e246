package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"social-feed-backend/config"
	"social-feed-backend/internal/util"

	_ "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// Open 按驱动打开数据库连接池并确认连接可用
func Open(ctx context.Context, driver, dsn string) (*sql.DB, error) {
	var driverName string
	switch driver {
	case config.DriverMySQL:
		driverName = "mysql"
	case config.DriverSQLite:
		driverName = "sqlite"
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if driver == config.DriverSQLite {
		// SQLite 只允许一个写连接，所有访问共用一个连接避免 SQLITE_BUSY
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(25)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	util.Logger.Info("数据库连接成功", zap.String("driver", driver))
	return db, nil
}
