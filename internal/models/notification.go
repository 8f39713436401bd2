package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// NotificationType identifies what caused a notification
type NotificationType string

const (
	NotificationPostLike    NotificationType = "POST_LIKE"
	NotificationPostComment NotificationType = "POST_COMMENT"
)

// Notification represents a user notification (PostgreSQL).
// Rows are only ever inserted by the event translator; the one permitted
// mutation is IsRead going from false to true.
type Notification struct {
	ID        string           `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Type      NotificationType `json:"type" gorm:"size:30;index"`
	UserID    string           `json:"userId" gorm:"type:varchar(36);index;not null"` // recipient
	TargetID  string           `json:"targetId"`                                      // like or comment id
	Message   string           `json:"message"`
	IsRead    bool             `json:"isRead" gorm:"index"`
	CreatedAt time.Time        `json:"createdAt" gorm:"index"`

	Recipient *User `json:"-" gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
}

func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	return nil
}
