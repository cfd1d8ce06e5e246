package model

import "time"

// User 结构体表示用户模型
type User struct {
	ID           int       `json:"_id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // 密码哈希不应在JSON中暴露
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// PublicUser 是可以展示给其他用户的用户信息
type PublicUser struct {
	ID    int    `json:"_id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Public 返回用户的公开信息
func (u *User) Public() *PublicUser {
	if u == nil {
		return nil
	}
	return &PublicUser{
		ID:    u.ID,
		Name:  u.Name,
		Email: u.Email,
	}
}
