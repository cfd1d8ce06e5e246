package interfaces

import (
	"context"

	"social-feed-backend/internal/model"
)

// UserRepository 接口定义了用户仓库应该实现的方法
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	// FindByID 和 FindByEmail 在用户不存在时返回 (nil, nil)
	FindByID(ctx context.Context, id int) (*model.User, error)
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	// FindByIDs 批量查询，不存在的ID被忽略
	FindByIDs(ctx context.Context, ids []int) ([]*model.User, error)
}
