package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/anonto42/feedpulse/backend/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// PostRepository defines the interface for post data operations
type PostRepository interface {
	CreatePost(ctx context.Context, post *models.Post) error
	GetPostByID(ctx context.Context, id string) (*models.Post, error)
	GetAllPosts(ctx context.Context, skip, limit int64) ([]models.Post, error)
	IncrementLikesCount(ctx context.Context, postID string) error
	IncrementCommentsCount(ctx context.Context, postID string) error
}

// MongoPostRepository implements PostRepository for MongoDB
type MongoPostRepository struct {
	collection *mongo.Collection
}

// NewMongoPostRepository creates a new MongoPostRepository
func NewMongoPostRepository(db *mongo.Database) *MongoPostRepository {
	return &MongoPostRepository{collection: db.Collection("posts")}
}

// CreatePost stores a new post. Ids are ObjectID hex strings so they travel
// as plain strings in events and notifications.
func (r *MongoPostRepository) CreatePost(ctx context.Context, post *models.Post) error {
	now := time.Now().UTC()
	post.ID = primitive.NewObjectID().Hex()
	post.CreatedAt = now
	post.UpdatedAt = now
	if _, err := r.collection.InsertOne(ctx, post); err != nil {
		return &StoreError{Op: "create post", Err: err}
	}
	return nil
}

// GetPostByID retrieves a post by ID from MongoDB
func (r *MongoPostRepository) GetPostByID(ctx context.Context, id string) (*models.Post, error) {
	var post models.Post
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&post)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, &StoreError{Op: "get post", Err: err}
	}
	return &post, nil
}

// GetAllPosts retrieves posts newest first with pagination
func (r *MongoPostRepository) GetAllPosts(ctx context.Context, skip, limit int64) ([]models.Post, error) {
	posts := make([]models.Post, 0)
	findOptions := options.Find().SetSkip(skip).SetLimit(limit).SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := r.collection.Find(ctx, bson.D{}, findOptions)
	if err != nil {
		return nil, &StoreError{Op: "list posts", Err: err}
	}
	defer cursor.Close(ctx)

	if err = cursor.All(ctx, &posts); err != nil {
		return nil, &StoreError{Op: "list posts", Err: err}
	}
	return posts, nil
}

// IncrementLikesCount increments the likes count of a post
func (r *MongoPostRepository) IncrementLikesCount(ctx context.Context, postID string) error {
	return r.increment(ctx, postID, "likes_count")
}

// IncrementCommentsCount increments the comments count of a post
func (r *MongoPostRepository) IncrementCommentsCount(ctx context.Context, postID string) error {
	return r.increment(ctx, postID, "comments_count")
}

func (r *MongoPostRepository) increment(ctx context.Context, postID, field string) error {
	update := bson.M{
		"$inc": bson.M{field: 1},
		"$set": bson.M{"updated_at": time.Now().UTC()},
	}
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": postID}, update)
	if err != nil {
		return &StoreError{Op: "increment " + field, Err: err}
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
