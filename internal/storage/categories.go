package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"budget/internal/core"
)

func insertDefaultCategories(ctx context.Context, ex execer, userID int64) error {
	for _, c := range core.DefaultCategories {
		if _, err := ex.ExecContext(ctx,
			`INSERT OR IGNORE INTO categories (user_id, name, icon) VALUES (?, ?, ?)`,
			userID, c.Name, c.Icon); err != nil {
			return fmt.Errorf("seed category %s: %w", c.Name, err)
		}
	}
	return nil
}

// EnsureDefaultCategories adds any missing default category for userID.
func (r *SQLiteRepository) EnsureDefaultCategories(ctx context.Context, userID int64) error {
	return insertDefaultCategories(ctx, r.db, userID)
}

func (r *SQLiteRepository) ListCategories(ctx context.Context, userID int64) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, name, icon FROM categories WHERE user_id = ? ORDER BY name`, userID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		var c core.Category
		if err := rows.Scan(&c.ID, &c.UserID, &c.Name, &c.Icon); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) GetCategory(ctx context.Context, id, userID int64) (core.Category, error) {
	var c core.Category
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, name, icon FROM categories WHERE id = ? AND user_id = ?`, id, userID).
		Scan(&c.ID, &c.UserID, &c.Name, &c.Icon)
	if errors.Is(err, sql.ErrNoRows) {
		return c, ErrNotFound
	}
	if err != nil {
		return c, fmt.Errorf("get category: %w", err)
	}
	return c, nil
}

func (r *SQLiteRepository) AddCategory(ctx context.Context, c core.Category) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO categories (user_id, name, icon) VALUES (?, ?, ?)`, c.UserID, c.Name, c.Icon)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, ErrDuplicate
		}
		return 0, fmt.Errorf("add category: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("category id: %w", err)
	}
	slog.InfoContext(ctx, "Category created", "id", id, "user_id", c.UserID, "name", c.Name)
	return id, nil
}

// UpdateCategory renames the category and every expense still carrying
// the old name. It returns how many expenses were renamed.
func (r *SQLiteRepository) UpdateCategory(ctx context.Context, c core.Category) (int64, error) {
	var renamed int64
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		var oldName string
		err := tx.QueryRowContext(ctx,
			`SELECT name FROM categories WHERE id = ? AND user_id = ?`, c.ID, c.UserID).Scan(&oldName)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("load category: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE categories SET name = ?, icon = ? WHERE id = ? AND user_id = ?`,
			c.Name, c.Icon, c.ID, c.UserID); err != nil {
			if isUniqueViolation(err) {
				return ErrDuplicate
			}
			return fmt.Errorf("update category: %w", err)
		}

		if oldName != c.Name {
			res, err := tx.ExecContext(ctx,
				`UPDATE expenses SET category = ?, category_id = ? WHERE user_id = ? AND (category = ? OR category_id = ?)`,
				c.Name, c.ID, c.UserID, oldName, c.ID)
			if err != nil {
				return fmt.Errorf("rename expenses: %w", err)
			}
			if renamed, err = affected(res); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	slog.InfoContext(ctx, "Category updated", "id", c.ID, "user_id", c.UserID, "renamed_expenses", renamed)
	return renamed, nil
}

// DeleteCategory removes an unused category. Usage is matched by name and
// by category_id. Returns ErrInUse when any expense still refers to it.
func (r *SQLiteRepository) DeleteCategory(ctx context.Context, id, userID int64) error {
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		var name string
		err := tx.QueryRowContext(ctx,
			`SELECT name FROM categories WHERE id = ? AND user_id = ?`, id, userID).Scan(&name)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("load category: %w", err)
		}

		var count int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM expenses WHERE user_id = ? AND (category_id = ? OR category = ?)`,
			userID, id, name).Scan(&count); err != nil {
			return fmt.Errorf("count category usage: %w", err)
		}
		if count > 0 {
			return ErrInUse
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM categories WHERE id = ? AND user_id = ?`, id, userID); err != nil {
			return fmt.Errorf("delete category: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "Category deleted", "id", id, "user_id", userID)
	return nil
}

// CategoryUsage counts expenses per category name for userID.
func (r *SQLiteRepository) CategoryUsage(ctx context.Context, userID int64) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT c.name, COUNT(e.id)
		 FROM categories c
		 LEFT JOIN expenses e ON e.user_id = c.user_id AND (e.category = c.name OR e.category_id = c.id)
		 WHERE c.user_id = ?
		 GROUP BY c.id, c.name`, userID)
	if err != nil {
		return nil, fmt.Errorf("category usage: %w", err)
	}
	defer rows.Close()

	usage := make(map[string]int)
	for rows.Next() {
		var (
			name  string
			count int
		)
		if err := rows.Scan(&name, &count); err != nil {
			return nil, fmt.Errorf("scan category usage: %w", err)
		}
		usage[name] = count
	}
	return usage, rows.Err()
}
