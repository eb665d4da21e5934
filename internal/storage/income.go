package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"budget/internal/core"
)

func (r *SQLiteRepository) ListIncome(ctx context.Context, userID int64) ([]core.Income, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, person, amount_cents, frequency FROM income WHERE user_id = ? ORDER BY person`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("list income: %w", err)
	}
	defer rows.Close()

	var out []core.Income
	for rows.Next() {
		var (
			inc  core.Income
			freq string
		)
		if err := rows.Scan(&inc.ID, &inc.UserID, &inc.Person, &inc.Amount.Cents, &freq); err != nil {
			return nil, fmt.Errorf("scan income: %w", err)
		}
		inc.Frequency = core.Frequency(freq)
		out = append(out, inc)
	}
	return out, rows.Err()
}

// UpsertIncome inserts the income or replaces amount and frequency of the
// existing row with the same person label.
func (r *SQLiteRepository) UpsertIncome(ctx context.Context, inc core.Income) error {
	return upsertIncome(ctx, r.db, inc)
}

func upsertIncome(ctx context.Context, ex execer, inc core.Income) error {
	_, err := ex.ExecContext(ctx,
		`INSERT INTO income (user_id, person, amount_cents, frequency) VALUES (?, ?, ?, ?)
		 ON CONFLICT(user_id, person) DO UPDATE SET amount_cents = excluded.amount_cents, frequency = excluded.frequency`,
		inc.UserID, inc.Person, inc.Amount.Cents, string(inc.Frequency))
	if err != nil {
		return fmt.Errorf("upsert income: %w", err)
	}
	return nil
}

// ReplaceIncome clears the user's income and inserts incomes atomically.
// Repeated labels keep the last submitted values.
func (r *SQLiteRepository) ReplaceIncome(ctx context.Context, userID int64, incomes []core.Income) error {
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM income WHERE user_id = ?`, userID); err != nil {
			return fmt.Errorf("clear income: %w", err)
		}
		for _, inc := range incomes {
			inc.UserID = userID
			if err := upsertIncome(ctx, tx, inc); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "Income replaced", "user_id", userID, "count", len(incomes))
	return nil
}
