package post

import (
	"net/http"
	"strconv"

	"social-feed-backend/internal/errors"
	"social-feed-backend/internal/middleware"
	"social-feed-backend/internal/model"
	"social-feed-backend/internal/service"
	"social-feed-backend/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"go.uber.org/zap"
)

type PostHandler struct {
	postService service.PostServiceInterface
}

func NewPostHandler(postService service.PostServiceInterface) *PostHandler {
	return &PostHandler{postService: postService}
}

type createPostRequest struct {
	Content string  `json:"content"`
	Image   *string `json:"image"`
}

type commentRequest struct {
	Content string `json:"content"`
}

// CreatePost 发布帖子
func (h *PostHandler) CreatePost(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		errors.HandleError(c, errors.New(errors.ErrUnauthorized, "Token Missing"))
		return
	}

	// 认证中间件可能已读取请求体，这里必须用 ShouldBindBodyWith
	var req createPostRequest
	if err := c.ShouldBindBodyWith(&req, binding.JSON); err != nil {
		errors.HandleError(c, errors.Wrap(errors.ErrValidation, "Post content is required", err))
		return
	}

	post, err := h.postService.CreatePost(c.Request.Context(), userID, req.Content, req.Image)
	if err != nil {
		errors.HandleError(c, err)
		return
	}

	errors.HandleSuccess(c, http.StatusCreated, "Post created successfully", gin.H{"data": post})
}

// GetAllPosts 返回全部帖子，最新的在前
func (h *PostHandler) GetAllPosts(c *gin.Context) {
	posts, err := h.postService.ListPosts(c.Request.Context(), model.AllPosts())
	if err != nil {
		errors.HandleError(c, err)
		return
	}

	errors.HandleSuccess(c, http.StatusOK, "Posts fetched successfully", gin.H{
		"count": len(posts),
		"data":  posts,
	})
}

// GetUserPosts 返回某个用户的帖子。无法解析的用户ID视为没有帖子的用户。
func (h *PostHandler) GetUserPosts(c *gin.Context) {
	posts := []*model.PostView{}
	if userID, err := strconv.Atoi(c.Param("userId")); err == nil {
		posts, err = h.postService.ListPosts(c.Request.Context(), model.PostsByAuthor(userID))
		if err != nil {
			errors.HandleError(c, err)
			return
		}
	}

	errors.HandleSuccess(c, http.StatusOK, "User posts fetched successfully", gin.H{
		"count": len(posts),
		"data":  posts,
	})
}

func (h *PostHandler) GetPost(c *gin.Context) {
	postID, ok := parsePostID(c)
	if !ok {
		return
	}

	post, err := h.postService.GetPost(c.Request.Context(), postID)
	if err != nil {
		errors.HandleError(c, err)
		return
	}

	errors.HandleSuccess(c, http.StatusOK, "Post fetched successfully", gin.H{"data": post})
}

// ToggleLike 点赞或取消点赞
func (h *PostHandler) ToggleLike(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		errors.HandleError(c, errors.New(errors.ErrUnauthorized, "Token Missing"))
		return
	}
	postID, ok := parsePostID(c)
	if !ok {
		return
	}

	post, liked, err := h.postService.ToggleLike(c.Request.Context(), postID, userID)
	if err != nil {
		errors.HandleError(c, err)
		return
	}

	message := "Post unliked successfully"
	if liked {
		message = "Post liked successfully"
	}
	util.Logger.Info("点赞状态已切换",
		zap.Int("post_id", postID),
		zap.Int("user_id", userID),
		zap.Bool("liked", liked))
	errors.HandleSuccess(c, http.StatusOK, message, gin.H{"data": post})
}

func (h *PostHandler) AddComment(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		errors.HandleError(c, errors.New(errors.ErrUnauthorized, "Token Missing"))
		return
	}
	postID, ok := parsePostID(c)
	if !ok {
		return
	}

	var req commentRequest
	if err := c.ShouldBindBodyWith(&req, binding.JSON); err != nil {
		errors.HandleError(c, errors.Wrap(errors.ErrValidation, "Comment content is required", err))
		return
	}

	post, comment, err := h.postService.AddComment(c.Request.Context(), postID, userID, req.Content)
	if err != nil {
		errors.HandleError(c, err)
		return
	}

	errors.HandleSuccess(c, http.StatusCreated, "Comment added successfully", gin.H{
		"data": gin.H{
			"post":    post,
			"comment": comment,
		},
	})
}

// DeletePost 删除帖子，只有作者可以删除
func (h *PostHandler) DeletePost(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		errors.HandleError(c, errors.New(errors.ErrUnauthorized, "Token Missing"))
		return
	}
	postID, ok := parsePostID(c)
	if !ok {
		return
	}

	if err := h.postService.DeletePost(c.Request.Context(), postID, userID); err != nil {
		errors.HandleError(c, err)
		return
	}

	errors.HandleSuccess(c, http.StatusOK, "Post deleted successfully", nil)
}

// parsePostID 解析路径中的帖子ID，无法解析时按帖子不存在处理
func parsePostID(c *gin.Context) (int, bool) {
	postID, err := strconv.Atoi(c.Param("postId"))
	if err != nil {
		errors.HandleError(c, errors.New(errors.ErrPostNotFound, "Post not found"))
		return 0, false
	}
	return postID, true
}
