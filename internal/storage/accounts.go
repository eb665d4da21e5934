package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"budget/internal/core"
)

func (r *SQLiteRepository) ListAccounts(ctx context.Context, userID int64) ([]core.Account, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, name FROM accounts WHERE user_id = ? ORDER BY name`, userID)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var out []core.Account
	for rows.Next() {
		var a core.Account
		if err := rows.Scan(&a.ID, &a.UserID, &a.Name); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) GetAccount(ctx context.Context, id, userID int64) (core.Account, error) {
	var a core.Account
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, name FROM accounts WHERE id = ? AND user_id = ?`, id, userID).
		Scan(&a.ID, &a.UserID, &a.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return a, ErrNotFound
	}
	if err != nil {
		return a, fmt.Errorf("get account: %w", err)
	}
	return a, nil
}

func (r *SQLiteRepository) AddAccount(ctx context.Context, a core.Account) (int64, error) {
	res, err := r.db.ExecContext(ctx, `INSERT INTO accounts (user_id, name) VALUES (?, ?)`, a.UserID, a.Name)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, ErrDuplicate
		}
		return 0, fmt.Errorf("add account: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("account id: %w", err)
	}
	slog.InfoContext(ctx, "Account created", "id", id, "user_id", a.UserID, "name", a.Name)
	return id, nil
}

// UpdateAccount renames the account and the expenses assigned to it.
// It returns how many expenses were renamed.
func (r *SQLiteRepository) UpdateAccount(ctx context.Context, a core.Account) (int64, error) {
	var renamed int64
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		var oldName string
		err := tx.QueryRowContext(ctx,
			`SELECT name FROM accounts WHERE id = ? AND user_id = ?`, a.ID, a.UserID).Scan(&oldName)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("load account: %w", err)
		}
		if oldName == a.Name {
			return nil
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE accounts SET name = ? WHERE id = ? AND user_id = ?`, a.Name, a.ID, a.UserID); err != nil {
			if isUniqueViolation(err) {
				return ErrDuplicate
			}
			return fmt.Errorf("update account: %w", err)
		}
		res, err := tx.ExecContext(ctx,
			`UPDATE expenses SET account = ? WHERE user_id = ? AND account = ?`, a.Name, a.UserID, oldName)
		if err != nil {
			return fmt.Errorf("rename expenses: %w", err)
		}
		renamed, err = affected(res)
		return err
	})
	if err != nil {
		return 0, err
	}

	slog.InfoContext(ctx, "Account updated", "id", a.ID, "user_id", a.UserID, "renamed_expenses", renamed)
	return renamed, nil
}

// DeleteAccount removes an account no expense is assigned to.
func (r *SQLiteRepository) DeleteAccount(ctx context.Context, id, userID int64) error {
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		var name string
		err := tx.QueryRowContext(ctx,
			`SELECT name FROM accounts WHERE id = ? AND user_id = ?`, id, userID).Scan(&name)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("load account: %w", err)
		}

		var count int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM expenses WHERE user_id = ? AND account = ?`, userID, name).Scan(&count); err != nil {
			return fmt.Errorf("count account usage: %w", err)
		}
		if count > 0 {
			return ErrInUse
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM accounts WHERE id = ? AND user_id = ?`, id, userID); err != nil {
			return fmt.Errorf("delete account: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "Account deleted", "id", id, "user_id", userID)
	return nil
}

// AccountUsage counts expenses per account name for userID.
func (r *SQLiteRepository) AccountUsage(ctx context.Context, userID int64) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT a.name, COUNT(e.id)
		 FROM accounts a
		 LEFT JOIN expenses e ON e.user_id = a.user_id AND e.account = a.name
		 WHERE a.user_id = ?
		 GROUP BY a.id, a.name`, userID)
	if err != nil {
		return nil, fmt.Errorf("account usage: %w", err)
	}
	defer rows.Close()

	usage := make(map[string]int)
	for rows.Next() {
		var (
			name  string
			count int
		)
		if err := rows.Scan(&name, &count); err != nil {
			return nil, fmt.Errorf("scan account usage: %w", err)
		}
		usage[name] = count
	}
	return usage, rows.Err()
}
