package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"budget/internal/core"
)

// CreateResetToken stores a hashed reset token and invalidates any earlier
// token of the same user.
func (r *SQLiteRepository) CreateResetToken(ctx context.Context, userID int64, tokenHash string, expiresAt time.Time) (int64, error) {
	var id int64
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`UPDATE password_reset_tokens SET used = 1 WHERE user_id = ?`, userID); err != nil {
			return fmt.Errorf("invalidate reset tokens: %w", err)
		}
		res, err := tx.ExecContext(ctx,
			`INSERT INTO password_reset_tokens (user_id, token_hash, expires_at) VALUES (?, ?, ?)`,
			userID, tokenHash, expiresAt.Unix())
		if err != nil {
			if isUniqueViolation(err) {
				return ErrDuplicate
			}
			return fmt.Errorf("insert reset token: %w", err)
		}
		id, err = res.LastInsertId()
		return err
	})
	return id, err
}

// GetValidResetToken returns an unused token that has not expired at now.
func (r *SQLiteRepository) GetValidResetToken(ctx context.Context, tokenHash string, now time.Time) (core.PasswordResetToken, error) {
	var (
		t       core.PasswordResetToken
		expires int64
		used    int
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, token_hash, expires_at, used FROM password_reset_tokens
		 WHERE token_hash = ? AND used = 0 AND expires_at > ?`,
		tokenHash, now.Unix()).Scan(&t.ID, &t.UserID, &t.TokenHash, &expires, &used)
	if errors.Is(err, sql.ErrNoRows) {
		return t, ErrNotFound
	}
	if err != nil {
		return t, fmt.Errorf("get reset token: %w", err)
	}
	t.ExpiresAt = time.Unix(expires, 0)
	t.Used = used != 0
	return t, nil
}

// MarkResetTokenUsed consumes the token. A token that was already used
// yields ErrNotFound so concurrent redemptions cannot both succeed.
func (r *SQLiteRepository) MarkResetTokenUsed(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE password_reset_tokens SET used = 1 WHERE id = ? AND used = 0`, id)
	if err != nil {
		return fmt.Errorf("mark reset token used: %w", err)
	}
	n, err := affected(res)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
