package repositories

import (
	"context"

	"github.com/anonto42/feedpulse/backend/internal/models"
	"gorm.io/gorm"
)

// NotificationRepository is the notification store. Notifications are only
// created by the event translator and only ever marked read afterwards.
type NotificationRepository interface {
	Create(ctx context.Context, typ models.NotificationType, userID, targetID, message string) (*models.Notification, error)
	ListByUser(ctx context.Context, userID string) ([]models.Notification, error)
	MarkRead(ctx context.Context, id string) (*models.Notification, error)
	CountUnread(ctx context.Context, userID string) (int64, error)
}

type postgresNotificationRepository struct {
	db *gorm.DB
}

func NewPostgresNotificationRepository(db *gorm.DB) NotificationRepository {
	return &postgresNotificationRepository{db: db}
}

// Create inserts an unread notification. The id and creation time are
// assigned here, never by the caller.
func (r *postgresNotificationRepository) Create(ctx context.Context, typ models.NotificationType, userID, targetID, message string) (*models.Notification, error) {
	n := &models.Notification{
		Type:     typ,
		UserID:   userID,
		TargetID: targetID,
		Message:  message,
	}
	if err := r.db.WithContext(ctx).Create(n).Error; err != nil {
		return nil, storeErr("create notification", err)
	}
	return n, nil
}

// ListByUser returns the user's notifications, newest first. A user with no
// notifications gets an empty slice.
func (r *postgresNotificationRepository) ListByUser(ctx context.Context, userID string) ([]models.Notification, error) {
	notifications := make([]models.Notification, 0)
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&notifications).Error
	if err != nil {
		return nil, &StoreError{Op: "list notifications", Err: err}
	}
	if notifications == nil {
		notifications = []models.Notification{}
	}
	return notifications, nil
}

// MarkRead flips IsRead to true and returns the updated record. Marking an
// already read notification succeeds without writing.
func (r *postgresNotificationRepository) MarkRead(ctx context.Context, id string) (*models.Notification, error) {
	var n models.Notification
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&n).Error; err != nil {
		return nil, storeErr("find notification", err)
	}
	if n.IsRead {
		return &n, nil
	}
	if err := r.db.WithContext(ctx).Model(&n).Update("is_read", true).Error; err != nil {
		return nil, storeErr("mark notification read", err)
	}
	n.IsRead = true
	return &n, nil
}

func (r *postgresNotificationRepository) CountUnread(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&count).Error
	if err != nil {
		return 0, &StoreError{Op: "count unread notifications", Err: err}
	}
	return count, nil
}
