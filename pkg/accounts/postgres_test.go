package accounts

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	return db, mock
}

func accountRows(emails ...string) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{
		"id", "email", "display_name", "role", "status", "login_method",
		"password_hash", "created_at", "updated_at", "last_login_at",
	})
	now := time.Now()
	for i, email := range emails {
		rows.AddRow(int64(i+1), email, "Name", "student", "active", "password",
			sql.NullString{String: "$2a$10$hash", Valid: true}, now, now, nil)
	}
	return rows
}

func TestPostgresStore_FindByEmail(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		db, mock := setupMockDB(t)
		defer db.Close()
		store := NewPostgresStore(db)

		mock.ExpectQuery("SELECT (.+) FROM accounts WHERE email").
			WithArgs("a@uni.edu").
			WillReturnRows(accountRows("a@uni.edu"))

		account, err := store.FindByEmail(context.Background(), "a@uni.edu")
		require.NoError(t, err)
		assert.Equal(t, "a@uni.edu", account.Email)
		assert.NotNil(t, account.PasswordHash)
		assert.Nil(t, account.LastLoginAt)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		db, mock := setupMockDB(t)
		defer db.Close()
		store := NewPostgresStore(db)

		mock.ExpectQuery("SELECT (.+) FROM accounts WHERE email").
			WithArgs("missing@uni.edu").
			WillReturnError(sql.ErrNoRows)

		_, err := store.FindByEmail(context.Background(), "missing@uni.edu")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("query failure wraps", func(t *testing.T) {
		db, mock := setupMockDB(t)
		defer db.Close()
		store := NewPostgresStore(db)

		mock.ExpectQuery("SELECT (.+) FROM accounts WHERE email").
			WillReturnError(errors.New("connection refused"))

		_, err := store.FindByEmail(context.Background(), "a@uni.edu")
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrNotFound)
	})
}

func TestPostgresStore_Create(t *testing.T) {
	t.Run("success returns populated account", func(t *testing.T) {
		db, mock := setupMockDB(t)
		defer db.Close()
		store := NewPostgresStore(db)

		mock.ExpectQuery("INSERT INTO accounts").
			WillReturnRows(accountRows("new@uni.edu"))

		hash := "$2a$10$hash"
		created, err := store.Create(context.Background(), &Account{
			Email:        "new@uni.edu",
			Role:         RoleStudent,
			Status:       StatusActive,
			LoginMethod:  LoginMethodPassword,
			PasswordHash: &hash,
		})
		require.NoError(t, err)
		assert.Equal(t, int64(1), created.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unique violation maps to ErrDuplicate", func(t *testing.T) {
		db, mock := setupMockDB(t)
		defer db.Close()
		store := NewPostgresStore(db)

		mock.ExpectQuery("INSERT INTO accounts").
			WillReturnError(&pq.Error{Code: "23505"})

		_, err := store.Create(context.Background(), &Account{
			Email:       "dup@uni.edu",
			Role:        RoleStudent,
			Status:      StatusActive,
			LoginMethod: LoginMethodGoogle,
		})
		assert.ErrorIs(t, err, ErrDuplicate)
	})

	t.Run("other database errors are not duplicates", func(t *testing.T) {
		db, mock := setupMockDB(t)
		defer db.Close()
		store := NewPostgresStore(db)

		mock.ExpectQuery("INSERT INTO accounts").
			WillReturnError(&pq.Error{Code: "53300"})

		_, err := store.Create(context.Background(), &Account{Email: "x@uni.edu"})
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrDuplicate)
	})
}

func TestPostgresStore_UpdateStatus(t *testing.T) {
	t.Run("updates an existing account", func(t *testing.T) {
		db, mock := setupMockDB(t)
		defer db.Close()
		store := NewPostgresStore(db)

		mock.ExpectExec("UPDATE accounts SET status").
			WithArgs("inactive", "a@uni.edu").
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := store.UpdateStatus(context.Background(), "a@uni.edu", StatusInactive)
		assert.NoError(t, err)
	})

	t.Run("zero rows means not found", func(t *testing.T) {
		db, mock := setupMockDB(t)
		defer db.Close()
		store := NewPostgresStore(db)

		mock.ExpectExec("UPDATE accounts SET status").
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := store.UpdateStatus(context.Background(), "ghost@uni.edu", StatusInactive)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestPostgresStore_List(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	store := NewPostgresStore(db)

	mock.ExpectQuery("SELECT (.+) FROM accounts ORDER BY created_at").
		WillReturnRows(accountRows("a@uni.edu", "b@uni.edu"))

	all, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestPostgresStore_Delete(t *testing.T) {
	t.Run("deletes an existing account", func(t *testing.T) {
		db, mock := setupMockDB(t)
		defer db.Close()
		store := NewPostgresStore(db)

		mock.ExpectExec("DELETE FROM accounts").
			WithArgs("a@uni.edu").
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, store.Delete(context.Background(), "a@uni.edu"))
	})

	t.Run("zero rows means not found", func(t *testing.T) {
		db, mock := setupMockDB(t)
		defer db.Close()
		store := NewPostgresStore(db)

		mock.ExpectExec("DELETE FROM accounts").
			WillReturnResult(sqlmock.NewResult(0, 0))

		assert.ErrorIs(t, store.Delete(context.Background(), "ghost@uni.edu"), ErrNotFound)
	})
}

func TestPostgresStore_TouchLastLogin(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	store := NewPostgresStore(db)

	mock.ExpectExec("UPDATE accounts SET last_login_at").
		WithArgs("a@uni.edu").
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, store.TouchLastLogin(context.Background(), "a@uni.edu"))
}
