package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"social-feed-backend/internal/database/testdb"
	"social-feed-backend/internal/errors"
	"social-feed-backend/internal/model"
	"social-feed-backend/internal/repository/interfaces"
	"social-feed-backend/internal/repository/sqlstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type postFixture struct {
	service *PostService
	users   interfaces.UserRepository
}

func newPostFixture(t *testing.T, opts ...PostServiceOption) *postFixture {
	db := testdb.Open(t)
	users := sqlstore.NewUserRepository(db)
	posts := sqlstore.NewPostRepository(db)
	return &postFixture{
		service: NewPostService(posts, users, opts...),
		users:   users,
	}
}

func (f *postFixture) createUser(t *testing.T, name string) *model.User {
	t.Helper()
	now := time.Now()
	user := &model.User{
		Name:         name,
		Email:        name + "@example.com",
		PasswordHash: "hash",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, f.users.Create(context.Background(), user))
	return user
}

// TestPostScenario 发帖、点赞、取消点赞、评论的完整流程
func TestPostScenario(t *testing.T) {
	ctx := context.Background()
	f := newPostFixture(t)
	alice := f.createUser(t, "alice")
	bob := f.createUser(t, "bob")

	post, err := f.service.CreatePost(ctx, alice.ID, "  hello  ", nil)
	require.NoError(t, err)
	assert.Equal(t, "hello", post.Content)
	assert.Equal(t, "alice", post.Author.Name)
	assert.Empty(t, post.Likes)
	assert.Empty(t, post.Comments)
	assert.Equal(t, post.CreatedAt, post.UpdatedAt)

	liked, isLiked, err := f.service.ToggleLike(ctx, post.ID, bob.ID)
	require.NoError(t, err)
	assert.True(t, isLiked)
	require.Len(t, liked.Likes, 1)
	assert.Equal(t, "bob", liked.Likes[0].User.Name)
	assert.Positive(t, liked.Likes[0].ID)

	unliked, isLiked, err := f.service.ToggleLike(ctx, post.ID, bob.ID)
	require.NoError(t, err)
	assert.False(t, isLiked)
	assert.Empty(t, unliked.Likes)

	commented, comment, err := f.service.AddComment(ctx, post.ID, alice.ID, " nice ")
	require.NoError(t, err)
	require.Len(t, commented.Comments, 1)
	assert.Equal(t, "nice", comment.Content)
	assert.Equal(t, alice.ID, comment.User.ID)
	assert.Equal(t, commented.Comments[0], *comment)

	fetched, err := f.service.GetPost(ctx, post.ID)
	require.NoError(t, err)
	assert.Empty(t, fetched.Likes)
	assert.Len(t, fetched.Comments, 1)
}

func TestCreatePostValidation(t *testing.T) {
	ctx := context.Background()
	f := newPostFixture(t)
	alice := f.createUser(t, "alice")

	blank := "   "
	_, err := f.service.CreatePost(ctx, alice.ID, "  ", &blank)
	assert.True(t, errors.Is(err, errors.ErrValidation))

	_, err = f.service.CreatePost(ctx, alice.ID, "", nil)
	assert.True(t, errors.Is(err, errors.ErrValidation))

	// 只有图片的帖子是允许的
	image := "https://img.example.com/cat.png"
	post, err := f.service.CreatePost(ctx, alice.ID, "", &image)
	require.NoError(t, err)
	require.NotNil(t, post.Image)
	assert.Equal(t, image, *post.Image)

	// 令牌中的用户已不存在
	_, err = f.service.CreatePost(ctx, 999, "hello", nil)
	assert.True(t, errors.Is(err, errors.ErrUnauthorized))
}

// TestToggleLikeTwiceRestores 连续两次切换恢复原状态
func TestToggleLikeTwiceRestores(t *testing.T) {
	ctx := context.Background()
	f := newPostFixture(t)
	alice := f.createUser(t, "alice")
	bob := f.createUser(t, "bob")

	post, err := f.service.CreatePost(ctx, alice.ID, "hello", nil)
	require.NoError(t, err)
	_, _, err = f.service.ToggleLike(ctx, post.ID, alice.ID)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, _, err = f.service.ToggleLike(ctx, post.ID, bob.ID)
		require.NoError(t, err)
		view, _, err := f.service.ToggleLike(ctx, post.ID, bob.ID)
		require.NoError(t, err)
		require.Len(t, view.Likes, 1)
		assert.Equal(t, alice.ID, view.Likes[0].User.ID)
	}

	_, _, err = f.service.ToggleLike(ctx, 999, bob.ID)
	assert.True(t, errors.Is(err, errors.ErrPostNotFound))
}

// TestConcurrentToggleSameUser 同一用户并发切换，点赞最多一条
func TestConcurrentToggleSameUser(t *testing.T) {
	const workers = 7
	ctx := context.Background()
	// 每次冲突都意味着另一个 worker 已成功，尝试次数大于 worker 数即可保证全部成功
	f := newPostFixture(t, WithMaxRetries(workers+1))
	alice := f.createUser(t, "alice")

	post, err := f.service.CreatePost(ctx, alice.ID, "hello", nil)
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			view, _, err := f.service.ToggleLike(ctx, post.ID, alice.ID)
			if err == nil && len(view.Likes) > 1 {
				err = fmt.Errorf("duplicate likes: %d", len(view.Likes))
			}
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}

	final, err := f.service.GetPost(ctx, post.ID)
	require.NoError(t, err)
	assert.Len(t, final.Likes, workers%2)
}

// TestConcurrentLikesDistinctUsers 不同用户并发点赞，不丢失任何点赞
func TestConcurrentLikesDistinctUsers(t *testing.T) {
	const workers = 6
	ctx := context.Background()
	f := newPostFixture(t, WithMaxRetries(workers+1))
	author := f.createUser(t, "author")

	var likers []*model.User
	for i := 0; i < workers; i++ {
		likers = append(likers, f.createUser(t, fmt.Sprintf("user%d", i)))
	}

	post, err := f.service.CreatePost(ctx, author.ID, "hello", nil)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for _, liker := range likers {
		wg.Add(1)
		go func(userID int) {
			defer wg.Done()
			_, liked, err := f.service.ToggleLike(ctx, post.ID, userID)
			assert.NoError(t, err)
			assert.True(t, liked)
		}(liker.ID)
	}
	wg.Wait()

	final, err := f.service.GetPost(ctx, post.ID)
	require.NoError(t, err)
	require.Len(t, final.Likes, workers)

	seen := make(map[int]bool)
	for _, like := range final.Likes {
		assert.False(t, seen[like.User.ID])
		seen[like.User.ID] = true
	}
}

// TestListPostsOrdering 帖子按创建时间倒序
func TestListPostsOrdering(t *testing.T) {
	ctx := context.Background()
	f := newPostFixture(t)
	alice := f.createUser(t, "alice")
	bob := f.createUser(t, "bob")

	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	f.service.now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}

	for i, author := range []*model.User{alice, bob, alice, bob} {
		_, err := f.service.CreatePost(ctx, author.ID, fmt.Sprintf("post %d", i), nil)
		require.NoError(t, err)
	}

	all, err := f.service.ListPosts(ctx, model.AllPosts())
	require.NoError(t, err)
	require.Len(t, all, 4)
	for i := 1; i < len(all); i++ {
		assert.False(t, all[i].CreatedAt.After(all[i-1].CreatedAt))
	}
	assert.Equal(t, "post 3", all[0].Content)

	mine, err := f.service.ListPosts(ctx, model.PostsByAuthor(alice.ID))
	require.NoError(t, err)
	require.Len(t, mine, 2)
	for _, post := range mine {
		assert.Equal(t, alice.ID, post.Author.ID)
	}
}

// TestAddCommentAppends 每次评论使评论数加一，返回的评论是最后一条
func TestAddCommentAppends(t *testing.T) {
	ctx := context.Background()
	f := newPostFixture(t)
	alice := f.createUser(t, "alice")
	bob := f.createUser(t, "bob")

	post, err := f.service.CreatePost(ctx, alice.ID, "hello", nil)
	require.NoError(t, err)

	for i := 1; i <= 3; i++ {
		view, comment, err := f.service.AddComment(ctx, post.ID, bob.ID, fmt.Sprintf("comment %d", i))
		require.NoError(t, err)
		require.Len(t, view.Comments, i)
		assert.Equal(t, view.Comments[i-1].ID, comment.ID)
		assert.Equal(t, "bob", comment.User.Name)
	}

	_, _, err = f.service.AddComment(ctx, post.ID, bob.ID, "   ")
	assert.True(t, errors.Is(err, errors.ErrValidation))

	_, _, err = f.service.AddComment(ctx, 999, bob.ID, "hi")
	assert.True(t, errors.Is(err, errors.ErrPostNotFound))
}

// TestDeletePostAuthorOnly 非作者删除被拒绝，帖子仍可读取
func TestDeletePostAuthorOnly(t *testing.T) {
	ctx := context.Background()
	f := newPostFixture(t)
	alice := f.createUser(t, "alice")
	bob := f.createUser(t, "bob")

	post, err := f.service.CreatePost(ctx, alice.ID, "hello", nil)
	require.NoError(t, err)

	err = f.service.DeletePost(ctx, post.ID, bob.ID)
	assert.True(t, errors.Is(err, errors.ErrForbidden))

	_, err = f.service.GetPost(ctx, post.ID)
	require.NoError(t, err)

	require.NoError(t, f.service.DeletePost(ctx, post.ID, alice.ID))

	_, err = f.service.GetPost(ctx, post.ID)
	assert.True(t, errors.Is(err, errors.ErrPostNotFound))

	err = f.service.DeletePost(ctx, post.ID, alice.ID)
	assert.True(t, errors.Is(err, errors.ErrPostNotFound))
}

// TestToggleLikeRetriesOnConflict 版本冲突后重新读取并重试
func TestToggleLikeRetriesOnConflict(t *testing.T) {
	postRepo := new(MockPostRepository)
	userRepo := new(MockUserRepository)
	service := NewPostService(postRepo, userRepo)
	ctx := context.Background()

	user := &model.User{ID: 2, Name: "bob"}
	userRepo.On("FindByID", mock.Anything, 2).Return(user, nil)
	userRepo.On("FindByIDs", mock.Anything, mock.Anything).Return([]*model.User{{ID: 1, Name: "alice"}, user}, nil)

	postRepo.On("GetPostByID", mock.Anything, 10).Return(&model.Post{ID: 10, AuthorID: 1, Version: 3}, nil).Once()
	postRepo.On("GetPostByID", mock.Anything, 10).Return(&model.Post{ID: 10, AuthorID: 1, Version: 4}, nil).Once()
	postRepo.On("AddLike", mock.Anything, 3, mock.Anything).Return(interfaces.ErrVersionConflict).Once()
	postRepo.On("AddLike", mock.Anything, 4, mock.Anything).
		Run(func(args mock.Arguments) {
			args.Get(2).(*model.Like).ID = 99
		}).
		Return(nil).Once()

	view, liked, err := service.ToggleLike(ctx, 10, 2)
	require.NoError(t, err)
	assert.True(t, liked)
	require.Len(t, view.Likes, 1)
	assert.Equal(t, 99, view.Likes[0].ID)
	assert.Equal(t, "bob", view.Likes[0].User.Name)
	postRepo.AssertExpectations(t)
}

func TestToggleLikeRetriesExhausted(t *testing.T) {
	postRepo := new(MockPostRepository)
	userRepo := new(MockUserRepository)
	service := NewPostService(postRepo, userRepo, WithMaxRetries(3))

	userRepo.On("FindByID", mock.Anything, 2).Return(&model.User{ID: 2}, nil)
	// ToggleLike 会修改读到的帖子，每次尝试返回新的实例
	for i := 0; i < 3; i++ {
		postRepo.On("GetPostByID", mock.Anything, 10).Return(&model.Post{ID: 10, AuthorID: 1}, nil).Once()
	}
	postRepo.On("AddLike", mock.Anything, 0, mock.Anything).Return(interfaces.ErrVersionConflict)

	_, _, err := service.ToggleLike(context.Background(), 10, 2)
	assert.True(t, errors.Is(err, errors.ErrInternal))
	postRepo.AssertNumberOfCalls(t, "AddLike", 3)
}
