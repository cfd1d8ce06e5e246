// Package testdb 为测试提供已迁移的临时 SQLite 数据库
package testdb

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"social-feed-backend/config"
	"social-feed-backend/internal/database"

	"github.com/stretchr/testify/require"
)

// Open 在 t.TempDir() 下创建数据库并执行全部迁移，测试结束时关闭
func Open(t *testing.T) *sql.DB {
	t.Helper()

	dsn := config.SQLiteDSN(filepath.Join(t.TempDir(), "feed.db"))
	db, err := database.Open(context.Background(), config.DriverSQLite, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, database.Migrate(context.Background(), db, config.DriverSQLite))
	return db
}
