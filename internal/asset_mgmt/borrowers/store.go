package borrowers

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

type Store struct{ conn *sql.DB }

func NewStore(conn *sql.DB) *Store { return &Store{conn: conn} }

const borrowerColumns = `borrower_id, borrower_ulid, name, contact, created_at, updated_at`

func (s *Store) Insert(ctx context.Context, ulid, name, contact string) (int64, error) {
	const q = `
	INSERT INTO borrowers (borrower_ulid, name, contact, created_at, updated_at)
	VALUES (?, ?, ?, NOW(6), NOW(6))`
	res, err := s.conn.ExecContext(ctx, q, ulid, name, contact)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *Store) GetByID(ctx context.Context, id int64) (*borrowerRow, error) {
	q := fmt.Sprintf(`SELECT %s FROM borrowers WHERE borrower_id = ?`, borrowerColumns)
	var r borrowerRow
	if err := s.conn.QueryRowContext(ctx, q, id).Scan(
		&r.BorrowerID, &r.BorrowerULID, &r.Name, &r.Contact, &r.CreatedAt, &r.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *Store) List(ctx context.Context, f ListQuery) ([]borrowerRow, int64, error) {
	sb := strings.Builder{}
	sb.WriteString(`WHERE 1=1`)
	args := []any{}
	if f.Name != nil {
		sb.WriteString(` AND name LIKE ?`)
		args = append(args, "%"+*f.Name+"%")
	}
	where := sb.String()

	order := "DESC"
	if strings.ToLower(f.Order) == "asc" {
		order = "ASC"
	}
	if f.Limit <= 0 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	q := fmt.Sprintf(`SELECT %s FROM borrowers %s ORDER BY borrower_id %s LIMIT ? OFFSET ?`,
		borrowerColumns, where, order)

	rows, err := s.conn.QueryContext(ctx, q, append(args, f.Limit, f.Offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []borrowerRow
	for rows.Next() {
		var r borrowerRow
		if err := rows.Scan(&r.BorrowerID, &r.BorrowerULID, &r.Name, &r.Contact, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var total int64
	if err := s.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM borrowers `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (s *Store) Update(ctx context.Context, id int64, name, contact *string) (int64, error) {
	sets := []string{}
	args := []any{}
	if name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *name)
	}
	if contact != nil {
		sets = append(sets, "contact = ?")
		args = append(args, *contact)
	}
	if len(sets) == 0 {
		return 1, nil
	}
	sets = append(sets, "updated_at = NOW(6)")

	q := fmt.Sprintf(`UPDATE borrowers SET %s WHERE borrower_id = ?`, strings.Join(sets, ", "))
	res, err := s.conn.ExecContext(ctx, q, append(args, id)...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *Store) Delete(ctx context.Context, id int64) (int64, error) {
	const q = `DELETE FROM borrowers WHERE borrower_id = ?`
	res, err := s.conn.ExecContext(ctx, q, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
