package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/anonto42/feedpulse/backend/internal/models"
)

func TestCreateLikeDuplicate(t *testing.T) {
	db, mock := newMockGorm(t)
	repo := NewPostgresLikeRepository(db)

	mock.ExpectExec(`INSERT INTO "likes"`).
		WillReturnError(&pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint"})

	err := repo.CreateLike(context.Background(), &models.Like{PostID: "P1", UserID: "U2"})
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("err = %v, want ErrDuplicate", err)
	}
}

func TestHasUserLikedPost(t *testing.T) {
	for _, tc := range []struct {
		count int
		want  bool
	}{
		{0, false},
		{1, true},
	} {
		db, mock := newMockGorm(t)
		repo := NewPostgresLikeRepository(db)

		mock.ExpectQuery(`SELECT count\(\*\) FROM "likes" WHERE post_id = \$1 AND user_id = \$2`).
			WithArgs("P1", "U2").
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(tc.count))

		got, err := repo.HasUserLikedPost(context.Background(), "P1", "U2")
		if err != nil {
			t.Fatalf("HasUserLikedPost: %v", err)
		}
		if got != tc.want {
			t.Errorf("count %d: HasUserLikedPost = %v, want %v", tc.count, got, tc.want)
		}
	}
}

func TestGetLikesByPostID(t *testing.T) {
	db, mock := newMockGorm(t)
	repo := NewPostgresLikeRepository(db)

	rows := sqlmock.NewRows([]string{"id", "post_id", "user_id", "created_at"}).
		AddRow("L1", "P1", "U2", time.Now().Add(-time.Minute)).
		AddRow("L2", "P1", "U3", time.Now())
	mock.ExpectQuery(`SELECT \* FROM "likes" WHERE post_id = \$1 ORDER BY created_at ASC`).
		WithArgs("P1").
		WillReturnRows(rows)

	likes, err := repo.GetLikesByPostID(context.Background(), "P1")
	if err != nil {
		t.Fatalf("GetLikesByPostID: %v", err)
	}
	if len(likes) != 2 || likes[0].ID != "L1" || likes[1].UserID != "U3" {
		t.Fatalf("likes = %+v", likes)
	}
}
