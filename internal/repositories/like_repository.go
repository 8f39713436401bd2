package repositories

import (
	"context"

	"github.com/anonto42/feedpulse/backend/internal/models"
	"gorm.io/gorm"
)

// LikeRepository defines the interface for like data operations
type LikeRepository interface {
	CreateLike(ctx context.Context, like *models.Like) error
	HasUserLikedPost(ctx context.Context, postID, userID string) (bool, error)
	GetLikesByPostID(ctx context.Context, postID string) ([]models.Like, error)
}

// PostgresLikeRepository implements LikeRepository for PostgreSQL
type PostgresLikeRepository struct {
	db *gorm.DB
}

// NewPostgresLikeRepository creates a new PostgresLikeRepository
func NewPostgresLikeRepository(db *gorm.DB) *PostgresLikeRepository {
	return &PostgresLikeRepository{db: db}
}

// CreateLike creates a new like. A second like of the same post by the same
// user yields ErrDuplicate.
func (r *PostgresLikeRepository) CreateLike(ctx context.Context, like *models.Like) error {
	return storeErr("create like", r.db.WithContext(ctx).Create(like).Error)
}

// HasUserLikedPost checks if a user has liked a specific post
func (r *PostgresLikeRepository) HasUserLikedPost(ctx context.Context, postID, userID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Like{}).
		Where("post_id = ? AND user_id = ?", postID, userID).
		Count(&count).Error
	if err != nil {
		return false, storeErr("check like", err)
	}
	return count > 0, nil
}

// GetLikesByPostID retrieves the likes of a post, oldest first
func (r *PostgresLikeRepository) GetLikesByPostID(ctx context.Context, postID string) ([]models.Like, error) {
	likes := make([]models.Like, 0)
	err := r.db.WithContext(ctx).Where("post_id = ?", postID).Order("created_at ASC").Find(&likes).Error
	if err != nil {
		return nil, storeErr("list likes", err)
	}
	return likes, nil
}
