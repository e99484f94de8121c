package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// uniqueViolation is the PostgreSQL error code for unique_violation
const uniqueViolation = "23505"

// PostgresStore implements Store on PostgreSQL
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed account store
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const accountColumns = `id, email, display_name, role, status, login_method, password_hash, created_at, updated_at, last_login_at`

// scanAccount scans a single account row
func scanAccount(row interface{ Scan(...interface{}) error }) (*Account, error) {
	a := &Account{}
	var hash sql.NullString
	var lastLogin sql.NullTime
	err := row.Scan(&a.ID, &a.Email, &a.DisplayName, &a.Role, &a.Status,
		&a.LoginMethod, &hash, &a.CreatedAt, &a.UpdatedAt, &lastLogin)
	if err != nil {
		return nil, err
	}
	if hash.Valid {
		a.PasswordHash = &hash.String
	}
	if lastLogin.Valid {
		a.LastLoginAt = &lastLogin.Time
	}
	return a, nil
}

// FindByEmail returns the account for the email, or ErrNotFound
func (s *PostgresStore) FindByEmail(ctx context.Context, email string) (*Account, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+accountColumns+`
		FROM accounts WHERE email = $1
	`, email)

	account, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query account: %w", err)
	}
	return account, nil
}

// ExistsByEmail reports whether an account exists for the email
func (s *PostgresStore) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM accounts WHERE email = $1)
	`, email).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check account existence: %w", err)
	}
	return exists, nil
}

// Create inserts a new account. The accounts table carries a UNIQUE
// constraint on email; a unique violation surfaces as ErrDuplicate so
// concurrent provisioning attempts can fall back to a lookup.
func (s *PostgresStore) Create(ctx context.Context, account *Account) (*Account, error) {
	var hash sql.NullString
	if account.PasswordHash != nil {
		hash = sql.NullString{String: *account.PasswordHash, Valid: true}
	}

	row := s.db.QueryRowContext(ctx, `
		INSERT INTO accounts (email, display_name, role, status, login_method, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		RETURNING `+accountColumns+`
	`, account.Email, account.DisplayName, account.Role, account.Status, account.LoginMethod, hash)

	created, err := scanAccount(row)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("failed to create account: %w", err)
	}
	return created, nil
}

// UpdateStatus transitions an account's lifecycle state
func (s *PostgresStore) UpdateStatus(ctx context.Context, email string, status Status) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE accounts SET status = $1, updated_at = NOW() WHERE email = $2
	`, status, email)
	if err != nil {
		return fmt.Errorf("failed to update account status: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// TouchLastLogin records a successful login timestamp
func (s *PostgresStore) TouchLastLogin(ctx context.Context, email string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE accounts SET last_login_at = NOW(), updated_at = NOW() WHERE email = $1
	`, email)
	if err != nil {
		return fmt.Errorf("failed to record login time: %w", err)
	}
	return nil
}

// List returns all accounts ordered by creation time
func (s *PostgresStore) List(ctx context.Context) ([]*Account, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+accountColumns+`
		FROM accounts ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var result []*Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		result = append(result, account)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate accounts: %w", err)
	}
	return result, nil
}

// Delete removes an account permanently
func (s *PostgresStore) Delete(ctx context.Context, email string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM accounts WHERE email = $1`, email)
	if err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read delete result: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}
