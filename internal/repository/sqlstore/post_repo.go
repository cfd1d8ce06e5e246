package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"social-feed-backend/internal/model"
	"social-feed-backend/internal/repository/interfaces"
	"social-feed-backend/internal/util"

	"go.uber.org/zap"
)

const postColumns = `id, author_id, content, image, version, created_at, updated_at`

type postRepository struct {
	db *sql.DB
}

func NewPostRepository(db *sql.DB) *postRepository {
	return &postRepository{db: db}
}

var _ interfaces.PostRepository = (*postRepository)(nil)

func (r *postRepository) CreatePost(ctx context.Context, post *model.Post) error {
	query := `INSERT INTO posts (author_id, content, image, version, created_at, updated_at)
              VALUES (?, ?, ?, 0, ?, ?)`
	result, err := r.db.ExecContext(ctx, query,
		post.AuthorID, post.Content, nullString(post.Image),
		toMillis(post.CreatedAt), toMillis(post.UpdatedAt))
	if err != nil {
		util.Logger.Error("创建帖子失败", zap.Error(err))
		return fmt.Errorf("failed to insert post: %w", err)
	}

	postID, err := result.LastInsertId()
	if err != nil {
		util.Logger.Error("获取新帖子ID失败", zap.Error(err))
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	post.ID = int(postID)
	post.Version = 0
	post.Likes = []model.Like{}
	post.Comments = []model.Comment{}

	util.Logger.Info("帖子创建成功", zap.Int("post_id", post.ID))
	return nil
}

// GetPostByID 先读帖子行（含 version），再读点赞和评论。
// 之后的任何写入都会递增 version，因此基于这次读取的 CAS 不会覆盖更新的状态。
func (r *postRepository) GetPostByID(ctx context.Context, id int) (*model.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE id = ?`
	post, err := scanPost(r.db.QueryRowContext(ctx, query, id))
	if err != nil || post == nil {
		return nil, err
	}

	if err := r.loadChildren(ctx, r.db, []*model.Post{post}); err != nil {
		return nil, err
	}
	return post, nil
}

func (r *postRepository) ListPosts(ctx context.Context, filter model.PostFilter) ([]*model.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts`
	var args []interface{}
	if filter.AuthorID != nil {
		query += ` WHERE author_id = ?`
		args = append(args, *filter.AuthorID)
	}
	query += ` ORDER BY created_at DESC, id DESC`

	posts, err := r.queryPosts(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	if err := r.loadChildren(ctx, r.db, posts); err != nil {
		return nil, err
	}
	return posts, nil
}

// queryPosts 读取帖子行，返回前关闭 rows，之后才能在同一连接上继续查询
func (r *postRepository) queryPosts(ctx context.Context, query string, args ...interface{}) ([]*model.Post, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		util.Logger.Error("查询帖子列表失败", zap.Error(err))
		return nil, fmt.Errorf("failed to query posts: %w", err)
	}
	defer rows.Close()

	posts := make([]*model.Post, 0)
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate posts: %w", err)
	}
	return posts, nil
}

// DeletePost 在一个事务内删除帖子、点赞和评论
func (r *postRepository) DeletePost(ctx context.Context, id, authorID int) error {
	util.Logger.Info("开始删除帖子", zap.Int("post_id", id))

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `DELETE FROM posts WHERE id = ? AND author_id = ?`, id, authorID)
	if err != nil {
		util.Logger.Error("删除帖子失败", zap.Error(err), zap.Int("post_id", id))
		return fmt.Errorf("failed to delete post: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		exists, err := postExists(ctx, tx, id)
		if err != nil {
			return err
		}
		if exists {
			return interfaces.ErrNotPostAuthor
		}
		return interfaces.ErrPostNotFound
	}

	// 外键级联之外再显式删除，保证未开启外键约束的连接也不会留下孤儿记录
	if _, err := tx.ExecContext(ctx, `DELETE FROM post_likes WHERE post_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete likes: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM post_comments WHERE post_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete comments: %w", err)
	}

	if err := tx.Commit(); err != nil {
		util.Logger.Error("提交事务失败", zap.Error(err))
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	util.Logger.Info("帖子删除成功", zap.Int("post_id", id))
	return nil
}

func (r *postRepository) AddLike(ctx context.Context, expectedVersion int, like *model.Like) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := bumpVersion(ctx, tx, like.PostID, &expectedVersion, like.CreatedAt); err != nil {
		return err
	}

	result, err := tx.ExecContext(ctx,
		`INSERT INTO post_likes (post_id, user_id, created_at) VALUES (?, ?, ?)`,
		like.PostID, like.UserID, toMillis(like.CreatedAt))
	if err != nil {
		util.Logger.Error("插入点赞失败", zap.Error(err), zap.Int("post_id", like.PostID))
		return fmt.Errorf("failed to insert like: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	like.ID = int(id)
	return nil
}

func (r *postRepository) RemoveLike(ctx context.Context, postID, expectedVersion, likeID int, at time.Time) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := bumpVersion(ctx, tx, postID, &expectedVersion, at); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM post_likes WHERE id = ? AND post_id = ?`, likeID, postID); err != nil {
		util.Logger.Error("删除点赞失败", zap.Error(err), zap.Int("post_id", postID))
		return fmt.Errorf("failed to delete like: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// AddComment 追加评论。帖子行的更新把同一帖子的并发写入串行化。
func (r *postRepository) AddComment(ctx context.Context, comment *model.Comment) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := bumpVersion(ctx, tx, comment.PostID, nil, comment.CreatedAt); err != nil {
		return err
	}

	result, err := tx.ExecContext(ctx,
		`INSERT INTO post_comments (post_id, user_id, content, created_at) VALUES (?, ?, ?, ?)`,
		comment.PostID, comment.UserID, comment.Content, toMillis(comment.CreatedAt))
	if err != nil {
		util.Logger.Error("创建评论失败", zap.Error(err), zap.Int("post_id", comment.PostID))
		return fmt.Errorf("failed to insert comment: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	comment.ID = int(id)

	util.Logger.Info("评论创建成功",
		zap.Int("comment_id", comment.ID),
		zap.Int("post_id", comment.PostID))
	return nil
}

// bumpVersion 递增帖子 version 并刷新 updated_at。
// expected 不为空时作为 CAS 条件；未更新任何行时区分帖子不存在和版本冲突。
func bumpVersion(ctx context.Context, tx *sql.Tx, postID int, expected *int, at time.Time) error {
	query := `UPDATE posts SET version = version + 1, updated_at = ? WHERE id = ?`
	args := []interface{}{toMillis(at), postID}
	if expected != nil {
		query += ` AND version = ?`
		args = append(args, *expected)
	}

	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update post version: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 1 {
		return nil
	}

	exists, err := postExists(ctx, tx, postID)
	if err != nil {
		return err
	}
	if !exists {
		return interfaces.ErrPostNotFound
	}
	return interfaces.ErrVersionConflict
}

func postExists(ctx context.Context, q queryer, postID int) (bool, error) {
	var exists bool
	err := q.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM posts WHERE id = ?)`, postID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check post existence: %w", err)
	}
	return exists, nil
}

// loadChildren 批量加载帖子的点赞和评论，均按插入顺序排列
func (r *postRepository) loadChildren(ctx context.Context, q queryer, posts []*model.Post) error {
	if len(posts) == 0 {
		return nil
	}

	byID := make(map[int]*model.Post, len(posts))
	ids := make([]int, 0, len(posts))
	for _, post := range posts {
		post.Likes = []model.Like{}
		post.Comments = []model.Comment{}
		byID[post.ID] = post
		ids = append(ids, post.ID)
	}

	if err := loadLikes(ctx, q, ids, byID); err != nil {
		return err
	}
	return loadComments(ctx, q, ids, byID)
}

func loadLikes(ctx context.Context, q queryer, ids []int, byID map[int]*model.Post) error {
	marks, args := placeholders(ids)
	rows, err := q.QueryContext(ctx,
		`SELECT id, post_id, user_id, created_at FROM post_likes
         WHERE post_id IN (`+marks+`) ORDER BY id ASC`, args...)
	if err != nil {
		return fmt.Errorf("failed to query likes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			like      model.Like
			createdAt int64
		)
		if err := rows.Scan(&like.ID, &like.PostID, &like.UserID, &createdAt); err != nil {
			return fmt.Errorf("failed to scan like: %w", err)
		}
		like.CreatedAt = fromMillis(createdAt)
		if post, ok := byID[like.PostID]; ok {
			post.Likes = append(post.Likes, like)
		}
	}
	return rows.Err()
}

func loadComments(ctx context.Context, q queryer, ids []int, byID map[int]*model.Post) error {
	marks, args := placeholders(ids)
	rows, err := q.QueryContext(ctx,
		`SELECT id, post_id, user_id, content, created_at FROM post_comments
         WHERE post_id IN (`+marks+`) ORDER BY id ASC`, args...)
	if err != nil {
		return fmt.Errorf("failed to query comments: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			comment   model.Comment
			createdAt int64
		)
		if err := rows.Scan(&comment.ID, &comment.PostID, &comment.UserID, &comment.Content, &createdAt); err != nil {
			return fmt.Errorf("failed to scan comment: %w", err)
		}
		comment.CreatedAt = fromMillis(createdAt)
		if post, ok := byID[comment.PostID]; ok {
			post.Comments = append(post.Comments, comment)
		}
	}
	return rows.Err()
}

func scanPost(row scanner) (*model.Post, error) {
	var (
		post                 model.Post
		image                sql.NullString
		createdAt, updatedAt int64
	)
	err := row.Scan(&post.ID, &post.AuthorID, &post.Content, &image, &post.Version, &createdAt, &updatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan post: %w", err)
	}
	if image.Valid {
		post.Image = &image.String
	}
	post.CreatedAt = fromMillis(createdAt)
	post.UpdatedAt = fromMillis(updatedAt)
	return &post, nil
}
