package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Like represents a like on a post
type Like struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	PostID    string    `json:"postId" gorm:"index;uniqueIndex:idx_like_post_user"` // MongoDB post id
	UserID    string    `json:"userId" gorm:"index;uniqueIndex:idx_like_post_user"`
	CreatedAt time.Time `json:"createdAt"`
}

func (l *Like) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	return nil
}

// CreateLikeRequest defines the request body for liking a post
type CreateLikeRequest struct {
	UserID string `json:"userId" validate:"required"`
}
