package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"budget/internal/core"
)

const userColumns = `id, username, password_hash, email_hash, created_at, last_login`

// CreateUser inserts a user and seeds the default categories in the same
// transaction. Usernames are unique regardless of case.
func (r *SQLiteRepository) CreateUser(ctx context.Context, username, passwordHash, emailHash string) (int64, error) {
	var id int64
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO users (username, password_hash, email_hash) VALUES (?, ?, ?)`,
			username, passwordHash, nullString(emailHash))
		if err != nil {
			if isUniqueViolation(err) {
				return ErrDuplicate
			}
			return fmt.Errorf("insert user: %w", err)
		}
		if id, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("user id: %w", err)
		}
		return insertDefaultCategories(ctx, tx, id)
	})
	if err != nil {
		return 0, err
	}

	slog.InfoContext(ctx, "User created", "user_id", id, "username", username)
	return id, nil
}

func scanUser(row interface{ Scan(...any) error }) (core.User, error) {
	var (
		u         core.User
		emailHash sql.NullString
		created   int64
		lastLogin sql.NullInt64
	)
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &emailHash, &created, &lastLogin); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return u, ErrNotFound
		}
		return u, fmt.Errorf("scan user: %w", err)
	}
	u.EmailHash = emailHash.String
	u.CreatedAt = time.Unix(created, 0)
	if lastLogin.Valid {
		u.LastLogin = time.Unix(lastLogin.Int64, 0)
	}
	return u, nil
}

func (r *SQLiteRepository) GetUserByUsername(ctx context.Context, username string) (core.User, error) {
	return scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = ?`, username))
}

func (r *SQLiteRepository) GetUserByID(ctx context.Context, id int64) (core.User, error) {
	return scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id))
}

func (r *SQLiteRepository) GetUserByEmailHash(ctx context.Context, emailHash string) (core.User, error) {
	if emailHash == "" {
		return core.User{}, ErrNotFound
	}
	return scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email_hash = ? ORDER BY id LIMIT 1`, emailHash))
}

// UpdateUserEmailHash sets the recovery email hash. An empty hash clears it.
func (r *SQLiteRepository) UpdateUserEmailHash(ctx context.Context, userID int64, emailHash string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET email_hash = ? WHERE id = ?`, nullString(emailHash), userID)
	if err != nil {
		return fmt.Errorf("update email hash: %w", err)
	}
	if n, err := affected(res); err != nil || n == 0 {
		if err != nil {
			return err
		}
		return ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) UpdateUserPassword(ctx context.Context, userID int64, passwordHash string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET password_hash = ? WHERE id = ?`, passwordHash, userID)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if n, err := affected(res); err != nil || n == 0 {
		if err != nil {
			return err
		}
		return ErrNotFound
	}
	slog.InfoContext(ctx, "Password updated", "user_id", userID)
	return nil
}

func (r *SQLiteRepository) UpdateLastLogin(ctx context.Context, userID int64, at time.Time) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE users SET last_login = ? WHERE id = ?`, at.Unix(), userID); err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) CountUsers(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

// ListUserIDs returns every registered user id in ascending order.
func (r *SQLiteRepository) ListUserIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan user id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
