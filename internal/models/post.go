package models

import "time"

// Post represents a social media post stored in MongoDB
type Post struct {
	ID            string    `json:"id" bson:"_id"`
	Content       string    `json:"content" bson:"content"`
	AuthorID      string    `json:"authorId" bson:"author_id"` // ID of the user who created the post
	LikesCount    int       `json:"likesCount" bson:"likes_count"`
	CommentsCount int       `json:"commentsCount" bson:"comments_count"`
	CreatedAt     time.Time `json:"createdAt" bson:"created_at"`
	UpdatedAt     time.Time `json:"updatedAt" bson:"updated_at"`
}

// CreatePostRequest defines the request body for creating a new post
type CreatePostRequest struct {
	Content  string `json:"content" validate:"required,min=1,max=280"`
	AuthorID string `json:"authorId" validate:"required"`
}

// PostView is a post as shown in the feed, with its author, comments and
// likes resolved. Authors or likers that no longer exist are left nil.
type PostView struct {
	Post
	Author   *User         `json:"author"`
	Comments []CommentView `json:"comments"`
	Likes    []LikeView    `json:"likes"`
}

// CommentView is a comment with its author resolved
type CommentView struct {
	Comment
	Author *User `json:"author"`
}

// LikeView is a like with the liking user resolved
type LikeView struct {
	Like
	User *User `json:"user"`
}
