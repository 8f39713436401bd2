package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Comment represents a comment on a post
type Comment struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Content   string    `json:"content"`
	PostID    string    `json:"postId" gorm:"index"`   // MongoDB post id
	AuthorID  string    `json:"authorId" gorm:"index"` // ID of the user who made the comment
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (c *Comment) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

// CreateCommentRequest defines the request body for creating a new comment
type CreateCommentRequest struct {
	Content  string `json:"content" validate:"required,min=1,max=500"`
	AuthorID string `json:"authorId" validate:"required"`
}
