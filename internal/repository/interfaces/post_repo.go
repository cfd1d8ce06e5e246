package interfaces

import (
	"context"
	"time"

	"social-feed-backend/internal/model"
)

// PostRepository 定义了帖子及其点赞、评论的存储操作。
// 所有写操作都在单个事务内完成，并递增帖子的 version。
type PostRepository interface {
	CreatePost(ctx context.Context, post *model.Post) error
	// GetPostByID 在帖子不存在时返回 (nil, nil)
	GetPostByID(ctx context.Context, id int) (*model.Post, error)
	// ListPosts 按创建时间倒序返回帖子，包含点赞和评论
	ListPosts(ctx context.Context, filter model.PostFilter) ([]*model.Post, error)
	// DeletePost 删除帖子及其点赞、评论，只有作者可以删除
	DeletePost(ctx context.Context, id, authorID int) error

	// AddLike 和 RemoveLike 仅在帖子 version 等于 expectedVersion 时生效，
	// 否则返回 ErrVersionConflict
	AddLike(ctx context.Context, expectedVersion int, like *model.Like) error
	RemoveLike(ctx context.Context, postID, expectedVersion, likeID int, at time.Time) error

	// AddComment 追加评论并回填 comment.ID
	AddComment(ctx context.Context, comment *model.Comment) error
}
