// store.go
package categories

import (
	"context"
	"database/sql"
)

type Store struct{ db *sql.DB }

func NewStore(db *sql.DB) *Store { return &Store{db: db} }

// GET /categories?all=1
func (s *Store) ListCategories(ctx context.Context, includeDisabled bool) ([]AssetCategory, error) {
	q := `
		SELECT category_id, category_name, category_code, is_disabled
		FROM asset_categories
	`
	var args []any
	if !includeDisabled {
		q += ` WHERE is_disabled = 0`
	}
	q += ` ORDER BY category_id`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	res := make([]AssetCategory, 0, 16)
	for rows.Next() {
		var ac AssetCategory
		if err := rows.Scan(&ac.CategoryID, &ac.CategoryName, &ac.CategoryCode, &ac.IsDisabled); err != nil {
			return nil, err
		}
		res = append(res, ac)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *Store) GetCategoryByID(ctx context.Context, id uint) (*AssetCategory, error) {
	const q = `
		SELECT category_id, category_name, category_code, is_disabled
		FROM asset_categories
		WHERE category_id = ?
	`
	var ac AssetCategory
	err := s.db.QueryRowContext(ctx, q, id).Scan(&ac.CategoryID, &ac.CategoryName, &ac.CategoryCode, &ac.IsDisabled)
	if err != nil {
		return nil, err
	}
	return &ac, nil
}

func (s *Store) CreateCategory(ctx context.Context, name string, code string) (*AssetCategory, error) {
	const q = `
		INSERT INTO asset_categories (category_name, category_code, is_disabled)
		VALUES (?, ?, 0)
	`
	r, err := s.db.ExecContext(ctx, q, name, code)
	if err != nil {
		return nil, err
	}
	lastID, err := r.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &AssetCategory{
		CategoryID:   uint(lastID),
		CategoryName: name,
		CategoryCode: code,
		IsDisabled:   false,
	}, nil
}

func (s *Store) UpdateCategory(ctx context.Context, id uint, name string, code string, disabled bool) error {
	const q = `
		UPDATE asset_categories
		SET category_name = ?, category_code = ?, is_disabled = ?
		WHERE category_id = ?
	`
	r, err := s.db.ExecContext(ctx, q, name, code, disabled, id)
	if err != nil {
		return err
	}
	aff, err := r.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DELETE: is_disabled=1 にする（資産側の category_id 参照を壊さない）
func (s *Store) DisableCategory(ctx context.Context, id uint) error {
	const q = `
		UPDATE asset_categories
		SET is_disabled = 1
		WHERE category_id = ?
	`
	r, err := s.db.ExecContext(ctx, q, id)
	if err != nil {
		return err
	}
	aff, err := r.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return sql.ErrNoRows
	}
	return nil
}
