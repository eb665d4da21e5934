package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"budget/internal/core"
)

const expenseColumns = `id, user_id, name, category, amount_cents, frequency, account, months`

func scanExpense(row interface{ Scan(...any) error }) (core.Expense, error) {
	var (
		e       core.Expense
		freq    string
		account sql.NullString
		months  sql.NullString
	)
	if err := row.Scan(&e.ID, &e.UserID, &e.Name, &e.Category, &e.Amount.Cents, &freq, &account, &months); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return e, ErrNotFound
		}
		return e, fmt.Errorf("scan expense: %w", err)
	}
	e.Frequency = core.Frequency(freq)
	e.Account = account.String
	if months.Valid && months.String != "" {
		if err := json.Unmarshal([]byte(months.String), &e.Months); err != nil {
			return e, fmt.Errorf("decode months for expense %d: %w", e.ID, err)
		}
		if len(e.Months) == 0 {
			e.Months = nil
		}
	}
	return e, nil
}

func encodeMonths(months []int) (sql.NullString, error) {
	if len(months) == 0 {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(months)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("encode months: %w", err)
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

// ListExpenses returns the user's expenses ordered by category and name.
func (r *SQLiteRepository) ListExpenses(ctx context.Context, userID int64) ([]core.Expense, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+expenseColumns+` FROM expenses WHERE user_id = ? ORDER BY category, name`, userID)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	var out []core.Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) GetExpense(ctx context.Context, id, userID int64) (core.Expense, error) {
	return scanExpense(r.db.QueryRowContext(ctx,
		`SELECT `+expenseColumns+` FROM expenses WHERE id = ? AND user_id = ?`, id, userID))
}

// AddExpense stores e and links it to the user's category of the same name
// when one exists.
func (r *SQLiteRepository) AddExpense(ctx context.Context, e core.Expense) (int64, error) {
	months, err := encodeMonths(e.Months)
	if err != nil {
		return 0, err
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO expenses (user_id, name, category, category_id, amount_cents, frequency, account, months)
		 VALUES (?, ?, ?, (SELECT id FROM categories WHERE user_id = ? AND name = ?), ?, ?, ?, ?)`,
		e.UserID, e.Name, e.Category, e.UserID, e.Category, e.Amount.Cents, string(e.Frequency), nullString(e.Account), months)
	if err != nil {
		return 0, fmt.Errorf("create expense: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("expense id: %w", err)
	}

	slog.InfoContext(ctx, "Expense saved to SQLite",
		"id", id,
		"user_id", e.UserID,
		"name", e.Name,
		"amount_cents", e.Amount.Cents,
		"frequency", e.Frequency)
	return id, nil
}

func (r *SQLiteRepository) UpdateExpense(ctx context.Context, e core.Expense) error {
	months, err := encodeMonths(e.Months)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE expenses
		 SET name = ?, category = ?, category_id = (SELECT id FROM categories WHERE user_id = ? AND name = ?),
		     amount_cents = ?, frequency = ?, account = ?, months = ?
		 WHERE id = ? AND user_id = ?`,
		e.Name, e.Category, e.UserID, e.Category, e.Amount.Cents, string(e.Frequency), nullString(e.Account), months,
		e.ID, e.UserID)
	if err != nil {
		return fmt.Errorf("update expense: %w", err)
	}
	n, err := affected(res)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}

	slog.InfoContext(ctx, "Expense updated", "id", e.ID, "user_id", e.UserID)
	return nil
}

func (r *SQLiteRepository) DeleteExpense(ctx context.Context, id, userID int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM expenses WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	n, err := affected(res)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}

	slog.InfoContext(ctx, "Expense deleted", "id", id, "user_id", userID)
	return nil
}
