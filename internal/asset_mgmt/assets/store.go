package assets

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"ATLAS-backend/internal/asset_mgmt/lending"
	"ATLAS-backend/internal/platform/db"
)

type Store struct{ conn *sql.DB }

func NewStore(conn *sql.DB) *Store { return &Store{conn: conn} }

const assetColumns = `asset_id, asset_ulid, name, category_id, description, status, created_at, updated_at`

func scanAsset(row interface{ Scan(...any) error }) (*AssetResponse, error) {
	var out AssetResponse
	var desc sql.NullString
	var st uint8
	if err := row.Scan(
		&out.AssetID, &out.AssetULID, &out.Name, &out.CategoryID,
		&desc, &st, &out.CreatedAt, &out.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if desc.Valid {
		out.Description = &desc.String
	}
	out.Status = lending.Status(st)
	return &out, nil
}

func (s *Store) InsertAsset(ctx context.Context, in CreateAssetRequest, assetULID string) (int64, error) {
	const q = `
	INSERT INTO assets (asset_ulid, name, category_id, description, status, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, NOW(6), NOW(6))`
	res, err := s.conn.ExecContext(ctx, q,
		assetULID, in.Name, in.CategoryID, nullStrOrNil(in.Description), uint8(lending.StatusAvailable))
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *Store) GetAssetByID(ctx context.Context, id int64) (*AssetResponse, error) {
	q := fmt.Sprintf(`SELECT %s FROM assets WHERE asset_id = ?`, assetColumns)
	return scanAsset(s.conn.QueryRowContext(ctx, q, id))
}

func (s *Store) ListAssets(ctx context.Context, f AssetSearchQuery, p Page) ([]AssetResponse, int64, error) {
	where, args := buildAssetWhere(f)

	order := "DESC"
	if strings.ToLower(p.Order) == "asc" {
		order = "ASC"
	}
	if p.Limit <= 0 {
		p.Limit = 50
	}
	if p.Offset < 0 {
		p.Offset = 0
	}

	q := fmt.Sprintf(`SELECT %s FROM assets %s ORDER BY asset_id %s LIMIT ? OFFSET ?`, assetColumns, where, order)
	args = append(args, p.Limit, p.Offset)

	rows, err := s.conn.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []AssetResponse
	for rows.Next() {
		item, err := scanAsset(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	whereCnt, argsCnt := buildAssetWhere(f)
	var total int64
	if err := s.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM assets `+whereCnt, argsCnt...).Scan(&total); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// 動的アップデート（status は対象外）
func (s *Store) UpdateAssetByID(ctx context.Context, id int64, in UpdateAssetRequest) (*AssetResponse, error) {
	sets := []string{}
	args := []any{}
	if in.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *in.Name)
	}
	if in.CategoryID != nil {
		sets = append(sets, "category_id = ?")
		args = append(args, *in.CategoryID)
	}
	if in.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, *in.Description)
	}
	if len(sets) == 0 {
		return s.GetAssetByID(ctx, id)
	}
	sets = append(sets, "updated_at = NOW(6)")

	q := fmt.Sprintf(`UPDATE assets SET %s WHERE asset_id = ?`, strings.Join(sets, ", "))
	args = append(args, id)
	res, err := s.conn.ExecContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	if aff, _ := res.RowsAffected(); aff == 0 {
		// 変更なし更新もあり得るので存在確認で判定する
		if _, err := s.GetAssetByID(ctx, id); err != nil {
			return nil, err
		}
	}
	return s.GetAssetByID(ctx, id)
}

// lockAssetRowTx は削除パス用の行ロック。Lend側も同じ行をロックするので
// 並行する貸出と削除はここで直列化される。
func (s *Store) lockAssetRowTx(ctx context.Context, tx db.DBTX, id int64) error {
	const q = `SELECT asset_id FROM assets WHERE asset_id = ? FOR UPDATE`
	var got int64
	if err := tx.QueryRowContext(ctx, q, id).Scan(&got); err != nil {
		return err
	}
	return nil
}

func (s *Store) deleteAssetTx(ctx context.Context, tx db.DBTX, id int64) error {
	const q = `DELETE FROM assets WHERE asset_id = ?`
	res, err := tx.ExecContext(ctx, q, id)
	if err != nil {
		return err
	}
	if aff, _ := res.RowsAffected(); aff != 1 {
		return ErrInternal("failed to delete asset")
	}
	return nil
}

func buildAssetWhere(f AssetSearchQuery) (string, []any) {
	sb := strings.Builder{}
	sb.WriteString(`WHERE 1=1`)
	args := []any{}
	if f.Name != nil {
		sb.WriteString(` AND name LIKE ?`)
		args = append(args, "%"+*f.Name+"%")
	}
	if f.CategoryID != nil {
		sb.WriteString(` AND category_id = ?`)
		args = append(args, *f.CategoryID)
	}
	if f.Status != nil {
		sb.WriteString(` AND status = ?`)
		args = append(args, uint8(*f.Status))
	}
	return sb.String(), args
}

func nullStrOrNil(p *string) any {
	if p != nil && *p != "" {
		return *p
	}
	return nil
}
