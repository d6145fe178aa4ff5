package models

import "time"

// DeletedBody replaces the body of a soft-deleted comment.
const DeletedBody = "[deleted]"

type Comment struct {
	ID        int       `gorm:"primaryKey" json:"id"`
	PostID    int       `gorm:"index;not null" json:"post_id"`
	AuthorID  int       `gorm:"index;not null" json:"author_id"`
	Author    User      `gorm:"foreignKey:AuthorID" json:"author"`
	ParentID  *int      `gorm:"index" json:"parent_id,omitempty"`
	Body      string    `gorm:"type:text;not null" json:"body"`
	Deleted   bool      `gorm:"not null;default:false" json:"deleted"`
	Points    int       `gorm:"not null;default:0" json:"points"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type CreateCommentRequest struct {
	Body     string `json:"body" binding:"required"`
	ParentID *int   `json:"parent_id,omitempty"`
}

type UpdateCommentRequest struct {
	Body string `json:"body" binding:"required"`
}
