package sqlstore

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"social-feed-backend/internal/model"
	"social-feed-backend/internal/repository/interfaces"

	"github.com/DATA-DOG/go-sqlmock"
	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateUserMapsMySQLDuplicate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
		WillReturnError(&mysqldriver.MySQLError{Number: 1062, Message: "Duplicate entry"})

	repo := NewUserRepository(db)
	err = repo.Create(context.Background(), &model.User{Name: "a", Email: "a@example.com"})
	assert.ErrorIs(t, err, interfaces.ErrDuplicateEmail)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAddLikeVersionConflict(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE posts SET version = version + 1")).
		WithArgs(sqlmock.AnyArg(), 7, 3).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS")).
		WithArgs(7).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectRollback()

	repo := NewPostRepository(db)
	like := &model.Like{PostID: 7, UserID: 1, CreatedAt: time.Now()}
	err = repo.AddLike(context.Background(), 3, like)
	assert.ErrorIs(t, err, interfaces.ErrVersionConflict)
	assert.Zero(t, like.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeletePostRollsBackOnError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM posts")).
		WithArgs(5, 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM post_likes")).
		WithArgs(5).
		WillReturnError(errors.New("connection lost"))
	mock.ExpectRollback()

	repo := NewPostRepository(db)
	err = repo.DeletePost(context.Background(), 5, 1)
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIsDuplicateKey(t *testing.T) {
	assert.True(t, isDuplicateKey(&mysqldriver.MySQLError{Number: 1062}))
	assert.False(t, isDuplicateKey(&mysqldriver.MySQLError{Number: 1452}))
	assert.True(t, isDuplicateKey(errors.New("constraint failed: UNIQUE constraint failed: users.email (2067)")))
	assert.False(t, isDuplicateKey(errors.New("disk full")))
}
