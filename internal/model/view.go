package model

import "time"

// PostView 是返回给客户端的帖子，用户引用已展开为公开信息
type PostView struct {
	ID        int           `json:"_id"`
	Author    *PublicUser   `json:"author"`
	Content   string        `json:"content"`
	Image     *string       `json:"image"`
	Likes     []LikeView    `json:"likes"`
	Comments  []CommentView `json:"comments"`
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

type LikeView struct {
	ID        int         `json:"_id"`
	User      *PublicUser `json:"user"`
	CreatedAt time.Time   `json:"createdAt"`
}

type CommentView struct {
	ID        int         `json:"_id"`
	User      *PublicUser `json:"user"`
	Content   string      `json:"content"`
	CreatedAt time.Time   `json:"createdAt"`
}

// NewPostView 用 users 展开帖子中的用户引用。找不到的用户序列化为 null。
func NewPostView(post *Post, users map[int]*PublicUser) *PostView {
	view := &PostView{
		ID:        post.ID,
		Author:    users[post.AuthorID],
		Content:   post.Content,
		Image:     post.Image,
		Likes:     make([]LikeView, 0, len(post.Likes)),
		Comments:  make([]CommentView, 0, len(post.Comments)),
		CreatedAt: post.CreatedAt,
		UpdatedAt: post.UpdatedAt,
	}

	for _, like := range post.Likes {
		view.Likes = append(view.Likes, LikeView{
			ID:        like.ID,
			User:      users[like.UserID],
			CreatedAt: like.CreatedAt,
		})
	}
	for _, comment := range post.Comments {
		view.Comments = append(view.Comments, CommentView{
			ID:        comment.ID,
			User:      users[comment.UserID],
			Content:   comment.Content,
			CreatedAt: comment.CreatedAt,
		})
	}
	return view
}

// Comment 按ID查找评论视图
func (v *PostView) Comment(id int) (*CommentView, bool) {
	for i := range v.Comments {
		if v.Comments[i].ID == id {
			return &v.Comments[i], true
		}
	}
	return nil, false
}
