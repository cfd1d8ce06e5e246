package model

import "time"

// Post 帖子，点赞和评论都归属于帖子
type Post struct {
	ID        int
	AuthorID  int
	Content   string
	Image     *string
	Likes     []Like
	Comments  []Comment
	Version   int
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Like struct {
	ID        int
	PostID    int
	UserID    int
	CreatedAt time.Time
}

type Comment struct {
	ID        int
	PostID    int
	UserID    int
	Content   string
	CreatedAt time.Time
}

// PostFilter 帖子列表过滤条件，AuthorID 为空时返回全部帖子
type PostFilter struct {
	AuthorID *int
}

// AllPosts 返回不带过滤条件的 PostFilter
func AllPosts() PostFilter {
	return PostFilter{}
}

// PostsByAuthor 返回按作者过滤的 PostFilter
func PostsByAuthor(authorID int) PostFilter {
	return PostFilter{AuthorID: &authorID}
}

// LikeIndex 返回用户点赞记录的下标，未点赞时返回 -1
func (p *Post) LikeIndex(userID int) int {
	for i, like := range p.Likes {
		if like.UserID == userID {
			return i
		}
	}
	return -1
}

// ToggleLike 切换用户的点赞状态。
// 已点赞则移除并返回被移除的记录，未点赞则追加新记录。liked 表示操作后的状态。
func (p *Post) ToggleLike(userID int, now time.Time) (liked bool, like Like) {
	p.UpdatedAt = now
	if idx := p.LikeIndex(userID); idx >= 0 {
		like = p.Likes[idx]
		p.Likes = append(p.Likes[:idx:idx], p.Likes[idx+1:]...)
		return false, like
	}

	like = Like{
		PostID:    p.ID,
		UserID:    userID,
		CreatedAt: now,
	}
	p.Likes = append(p.Likes, like)
	return true, like
}

// AppendComment 在评论列表末尾追加评论
func (p *Post) AppendComment(comment Comment) {
	p.UpdatedAt = comment.CreatedAt
	p.Comments = append(p.Comments, comment)
}

// UserIDs 返回帖子引用的所有用户ID（作者、点赞用户、评论用户），已去重
func (p *Post) UserIDs() []int {
	seen := make(map[int]struct{}, 1+len(p.Likes)+len(p.Comments))
	ids := make([]int, 0, 1+len(p.Likes)+len(p.Comments))
	add := func(id int) {
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	add(p.AuthorID)
	for _, like := range p.Likes {
		add(like.UserID)
	}
	for _, comment := range p.Comments {
		add(comment.UserID)
	}
	return ids
}
