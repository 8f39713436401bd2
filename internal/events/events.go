// Package events carries domain events between the write path and the
// notification pipeline.
//
// Every event travels inside an Envelope on a single broadcast channel.
// Payloads form a closed set: the four domain events below plus
// Unrecognized, which only the decoder produces for tags it does not know.
package events

import (
	"errors"
	"fmt"

	"github.com/anonto42/feedpulse/backend/internal/models"
)

// EventType is the wire tag of an envelope.
type EventType string

const (
	PostCreatedType   EventType = "POST_CREATED"
	PostLikedType     EventType = "POST_LIKED"
	PostCommentedType EventType = "POST_COMMENTED"
	UserCreatedType   EventType = "USER_CREATED"
)

// SchemaVersion is stamped on every envelope this process publishes.
const SchemaVersion = "1.0"

// DefaultChannel is the pub/sub channel (Redis) or subject (NATS) shared by
// all event types.
const DefaultChannel = "events"

var (
	// ErrInvalidEnvelope marks messages that cannot be published or consumed:
	// bad JSON, missing envelope fields, or payload invariants violated.
	ErrInvalidEnvelope = errors.New("invalid event envelope")

	// ErrBusClosed is returned by operations on a closed bus.
	ErrBusClosed = errors.New("event bus closed")
)

// TransportError reports that the underlying pub/sub transport failed.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("event transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Payload is implemented only by the event types in this package.
type Payload interface {
	EventType() EventType
	validate() error
}

// PostCreated is published after a post has been stored.
type PostCreated struct {
	Post models.Post `json:"post"`
}

// PostLiked is published after a like has been stored.
type PostLiked struct {
	Like models.Like `json:"like"`
	Post models.Post `json:"post"`
	User models.User `json:"user"`
}

// PostCommented is published after a comment has been stored.
type PostCommented struct {
	Comment models.Comment `json:"comment"`
	Post    models.Post    `json:"post"`
	Author  models.User    `json:"author"`
}

// UserCreated is published after a user has been stored.
type UserCreated struct {
	User models.User `json:"user"`
}

// Unrecognized holds an envelope whose tag this build does not understand.
// It can be received but never published.
type Unrecognized struct {
	Tag  EventType
	Data []byte
}

func (PostCreated) EventType() EventType    { return PostCreatedType }
func (PostLiked) EventType() EventType      { return PostLikedType }
func (PostCommented) EventType() EventType  { return PostCommentedType }
func (UserCreated) EventType() EventType    { return UserCreatedType }
func (u Unrecognized) EventType() EventType { return u.Tag }

func (p PostCreated) validate() error {
	if p.Post.ID == "" || p.Post.AuthorID == "" {
		return invalid("post created: post id and author id are required")
	}
	return nil
}

func (p PostLiked) validate() error {
	switch {
	case p.Like.ID == "" || p.Post.ID == "" || p.User.ID == "":
		return invalid("post liked: like, post and user ids are required")
	case p.Like.PostID != p.Post.ID:
		return invalid("post liked: like.postId %q does not match post.id %q", p.Like.PostID, p.Post.ID)
	case p.Like.UserID != p.User.ID:
		return invalid("post liked: like.userId %q does not match user.id %q", p.Like.UserID, p.User.ID)
	}
	return nil
}

func (p PostCommented) validate() error {
	switch {
	case p.Comment.ID == "" || p.Post.ID == "" || p.Author.ID == "":
		return invalid("post commented: comment, post and author ids are required")
	case p.Comment.PostID != p.Post.ID:
		return invalid("post commented: comment.postId %q does not match post.id %q", p.Comment.PostID, p.Post.ID)
	case p.Comment.AuthorID != p.Author.ID:
		return invalid("post commented: comment.authorId %q does not match author.id %q", p.Comment.AuthorID, p.Author.ID)
	}
	return nil
}

func (p UserCreated) validate() error {
	if p.User.ID == "" {
		return invalid("user created: user id is required")
	}
	return nil
}

func (u Unrecognized) validate() error {
	return invalid("unrecognized event type %q", u.Tag)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidEnvelope, fmt.Sprintf(format, args...))
}
