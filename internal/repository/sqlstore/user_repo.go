package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"social-feed-backend/internal/model"
	"social-feed-backend/internal/repository/interfaces"
	"social-feed-backend/internal/util"

	"go.uber.org/zap"
)

const userColumns = `id, name, email, password_hash, created_at, updated_at`

// userRepository 实现了 UserRepository 接口
type userRepository struct {
	db *sql.DB
}

// NewUserRepository 创建一个新的 userRepository 实例
func NewUserRepository(db *sql.DB) *userRepository {
	return &userRepository{db}
}

var _ interfaces.UserRepository = (*userRepository)(nil)

// Create 创建一个新用户
func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	util.Logger.Info("尝试创建新用户", zap.String("email", user.Email))

	query := `INSERT INTO users (name, email, password_hash, created_at, updated_at)
              VALUES (?, ?, ?, ?, ?)`
	result, err := r.db.ExecContext(ctx, query,
		user.Name, user.Email, user.PasswordHash,
		toMillis(user.CreatedAt), toMillis(user.UpdatedAt))
	if err != nil {
		if isDuplicateKey(err) {
			return interfaces.ErrDuplicateEmail
		}
		util.Logger.Error("创建用户失败", zap.Error(err))
		return fmt.Errorf("failed to insert user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		util.Logger.Error("获取新用户ID失败", zap.Error(err))
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	user.ID = int(id)

	util.Logger.Info("用户创建成功", zap.Int("user_id", user.ID))
	return nil
}

// FindByID 通过ID查找用户
func (r *userRepository) FindByID(ctx context.Context, id int) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ?`
	return scanUser(r.db.QueryRowContext(ctx, query, id))
}

// FindByEmail 通过邮箱查找用户，邮箱区分大小写
func (r *userRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = ?`
	return scanUser(r.db.QueryRowContext(ctx, query, email))
}

// FindByIDs 批量查找用户
func (r *userRepository) FindByIDs(ctx context.Context, ids []int) ([]*model.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	marks, args := placeholders(ids)
	query := `SELECT ` + userColumns + ` FROM users WHERE id IN (` + marks + `)`
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		util.Logger.Error("批量查询用户失败", zap.Error(err), zap.Ints("user_ids", ids))
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	users := make([]*model.User, 0, len(ids))
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}
	return users, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row scanner) (*model.User, error) {
	var (
		user                 model.User
		createdAt, updatedAt int64
	)
	err := row.Scan(&user.ID, &user.Name, &user.Email, &user.PasswordHash, &createdAt, &updatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	user.CreatedAt = fromMillis(createdAt)
	user.UpdatedAt = fromMillis(updatedAt)
	return &user, nil
}
