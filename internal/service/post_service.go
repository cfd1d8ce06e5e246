package service

import (
	"context"
	stderrors "errors"
	"strings"
	"time"

	"social-feed-backend/internal/common"
	"social-feed-backend/internal/errors"
	"social-feed-backend/internal/metrics"
	"social-feed-backend/internal/model"
	"social-feed-backend/internal/repository/interfaces"
	"social-feed-backend/internal/util"

	"go.uber.org/zap"
)

// DefaultLikeRetries 是点赞遇到版本冲突时的默认尝试次数
const DefaultLikeRetries = 5

// PostService 处理帖子、点赞和评论的业务逻辑
type PostService struct {
	postRepo   interfaces.PostRepository
	userRepo   interfaces.UserRepository
	maxRetries int
	now        func() time.Time
}

type PostServiceOption func(*PostService)

// WithMaxRetries 设置点赞冲突时的最大尝试次数
func WithMaxRetries(n int) PostServiceOption {
	return func(s *PostService) {
		if n > 0 {
			s.maxRetries = n
		}
	}
}

func NewPostService(postRepo interfaces.PostRepository, userRepo interfaces.UserRepository, opts ...PostServiceOption) *PostService {
	s := &PostService{
		postRepo:   postRepo,
		userRepo:   userRepo,
		maxRetries: DefaultLikeRetries,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type PostServiceInterface interface {
	CreatePost(ctx context.Context, authorID int, content string, image *string) (*model.PostView, error)
	ListPosts(ctx context.Context, filter model.PostFilter) ([]*model.PostView, error)
	GetPost(ctx context.Context, postID int) (*model.PostView, error)
	DeletePost(ctx context.Context, postID, requesterID int) error
	ToggleLike(ctx context.Context, postID, userID int) (*model.PostView, bool, error)
	AddComment(ctx context.Context, postID, userID int, content string) (*model.PostView, *model.CommentView, error)
}

var _ PostServiceInterface = (*PostService)(nil)

// CreatePost 创建帖子。内容和图片去除首尾空白后不能同时为空。
func (s *PostService) CreatePost(ctx context.Context, authorID int, content string, image *string) (*model.PostView, error) {
	content = strings.TrimSpace(content)
	if image != nil {
		trimmed := strings.TrimSpace(*image)
		image = &trimmed
		if trimmed == "" {
			image = nil
		}
	}
	if content == "" && image == nil {
		return nil, errors.New(errors.ErrValidation, "Post content is required")
	}

	if err := s.requireUser(ctx, authorID); err != nil {
		return nil, err
	}

	now := s.now()
	post := &model.Post{
		AuthorID:  authorID,
		Content:   content,
		Image:     image,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.postRepo.CreatePost(ctx, post); err != nil {
		return nil, postError(err)
	}
	metrics.RecordPostCreated()

	util.Logger.Info("用户发布帖子", zap.Int("post_id", post.ID), zap.Int("author_id", authorID))
	return s.view(ctx, post)
}

// ListPosts 按创建时间倒序返回帖子
func (s *PostService) ListPosts(ctx context.Context, filter model.PostFilter) ([]*model.PostView, error) {
	posts, err := s.postRepo.ListPosts(ctx, filter)
	if err != nil {
		return nil, postError(err)
	}
	return s.resolve(ctx, posts)
}

func (s *PostService) GetPost(ctx context.Context, postID int) (*model.PostView, error) {
	post, err := s.postRepo.GetPostByID(ctx, postID)
	if err != nil {
		return nil, postError(err)
	}
	if post == nil {
		return nil, postError(interfaces.ErrPostNotFound)
	}
	return s.view(ctx, post)
}

// DeletePost 删除帖子，只有作者本人可以删除
func (s *PostService) DeletePost(ctx context.Context, postID, requesterID int) error {
	if err := s.postRepo.DeletePost(ctx, postID, requesterID); err != nil {
		if stderrors.Is(err, interfaces.ErrNotPostAuthor) {
			util.Logger.Warn("非作者尝试删除帖子",
				zap.Int("post_id", postID),
				zap.Int("requester_id", requesterID))
		}
		return postError(err)
	}
	return nil
}

// ToggleLike 切换点赞状态，返回更新后的帖子和切换后的状态。
// 读取帖子后以 version 做 CAS 写入，冲突时重新读取并重试。
func (s *PostService) ToggleLike(ctx context.Context, postID, userID int) (*model.PostView, bool, error) {
	if err := s.requireUser(ctx, userID); err != nil {
		return nil, false, err
	}

	var (
		post  *model.Post
		liked bool
	)
	err := common.WithRetry(ctx, s.maxRetries, func(attempt int) error {
		if attempt > 0 {
			metrics.RecordMutationRetry()
			util.Logger.Debug("点赞版本冲突，重试",
				zap.Int("post_id", postID),
				zap.Int("attempt", attempt))
		}

		current, err := s.postRepo.GetPostByID(ctx, postID)
		if err != nil {
			return err
		}
		if current == nil {
			return interfaces.ErrPostNotFound
		}

		expected := current.Version
		now := s.now()
		isLiked, like := current.ToggleLike(userID, now)
		if isLiked {
			if err := s.postRepo.AddLike(ctx, expected, &like); err != nil {
				return err
			}
			current.Likes[len(current.Likes)-1].ID = like.ID
		} else {
			if err := s.postRepo.RemoveLike(ctx, postID, expected, like.ID, now); err != nil {
				return err
			}
		}
		current.Version = expected + 1

		post, liked = current, isLiked
		return nil
	}, func(err error) bool {
		return stderrors.Is(err, interfaces.ErrVersionConflict)
	})
	if err != nil {
		return nil, false, postError(err)
	}
	metrics.RecordLikeToggle(liked)

	view, err := s.view(ctx, post)
	if err != nil {
		return nil, false, err
	}
	return view, liked, nil
}

// AddComment 追加评论，返回更新后的帖子和新评论
func (s *PostService) AddComment(ctx context.Context, postID, userID int, content string) (*model.PostView, *model.CommentView, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, nil, errors.New(errors.ErrValidation, "Comment content is required")
	}
	if err := s.requireUser(ctx, userID); err != nil {
		return nil, nil, err
	}

	comment := &model.Comment{
		PostID:    postID,
		UserID:    userID,
		Content:   content,
		CreatedAt: s.now(),
	}
	if err := s.postRepo.AddComment(ctx, comment); err != nil {
		return nil, nil, postError(err)
	}
	metrics.RecordCommentAdded()

	view, err := s.GetPost(ctx, postID)
	if err != nil {
		return nil, nil, err
	}
	added, ok := view.Comment(comment.ID)
	if !ok {
		// 评论写入后帖子被删除
		return nil, nil, postError(interfaces.ErrPostNotFound)
	}
	return view, added, nil
}

// requireUser 确认令牌中的用户仍然存在
func (s *PostService) requireUser(ctx context.Context, userID int) error {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return errors.Wrap(errors.ErrDatabase, "failed to query user", err)
	}
	if user == nil {
		return errors.New(errors.ErrUnauthorized, "User not found")
	}
	return nil
}

func (s *PostService) view(ctx context.Context, post *model.Post) (*model.PostView, error) {
	views, err := s.resolve(ctx, []*model.Post{post})
	if err != nil {
		return nil, err
	}
	return views[0], nil
}

// resolve 一次查询展开所有帖子引用的用户
func (s *PostService) resolve(ctx context.Context, posts []*model.Post) ([]*model.PostView, error) {
	seen := make(map[int]struct{})
	var ids []int
	for _, post := range posts {
		for _, id := range post.UserIDs() {
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				ids = append(ids, id)
			}
		}
	}

	users := make(map[int]*model.PublicUser, len(ids))
	if len(ids) > 0 {
		found, err := s.userRepo.FindByIDs(ctx, ids)
		if err != nil {
			return nil, errors.Wrap(errors.ErrDatabase, "failed to query users", err)
		}
		for _, user := range found {
			users[user.ID] = user.Public()
		}
	}

	views := make([]*model.PostView, 0, len(posts))
	for _, post := range posts {
		views = append(views, model.NewPostView(post, users))
	}
	return views, nil
}

// postError 把存储层的错误转换为 AppError
func postError(err error) error {
	if _, ok := errors.As(err); ok {
		return err
	}
	switch {
	case stderrors.Is(err, interfaces.ErrPostNotFound):
		return errors.New(errors.ErrPostNotFound, "Post not found")
	case stderrors.Is(err, interfaces.ErrNotPostAuthor):
		return errors.New(errors.ErrForbidden, "You are not authorized to delete this post")
	case stderrors.Is(err, interfaces.ErrVersionConflict):
		return errors.Wrap(errors.ErrInternal, "Post is busy, please try again", err)
	case stderrors.Is(err, context.DeadlineExceeded), stderrors.Is(err, context.Canceled):
		return errors.Wrap(errors.ErrTimeout, "Request timed out", err)
	default:
		util.Logger.Error("帖子存储操作失败", zap.Error(err))
		return errors.Wrap(errors.ErrDatabase, "Database error", err)
	}
}
