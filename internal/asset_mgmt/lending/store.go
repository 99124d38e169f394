package lending

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"
	"time"

	"ATLAS-backend/internal/platform/db"
)

type Store struct {
	conn *sql.DB
}

func NewStore(conn *sql.DB) *Store { return &Store{conn: conn} }

// lockAssetRow は対象資産の行を FOR UPDATE で取得する。
// 以降の状態チェックと書き込みは同じTx内で行うこと（ロック越しに見えた
// 状態がコミット済みの最新状態になる）。
func (s *Store) lockAssetRow(ctx context.Context, tx db.DBTX, assetID int64) (*AssetState, error) {
	const q = `SELECT asset_id, asset_ulid, name, status FROM assets WHERE asset_id = ? FOR UPDATE`
	var a AssetState
	var st uint8
	if err := tx.QueryRowContext(ctx, q, assetID).Scan(&a.AssetID, &a.AssetULID, &a.Name, &st); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound("asset not found")
		}
		return nil, err
	}
	a.Status = Status(st)
	return &a, nil
}

// setAssetStatus は from → to の遷移を CAS 的に適用する。
// 行ロック下で事前チェック済みなので、0行更新は不変条件の破れ。
func (s *Store) setAssetStatus(ctx context.Context, tx db.DBTX, assetID int64, from, to Status) error {
	const q = `UPDATE assets SET status = ?, updated_at = NOW(6) WHERE asset_id = ? AND status = ?`
	res, err := tx.ExecContext(ctx, q, uint8(to), assetID, uint8(from))
	if err != nil {
		return err
	}
	if aff, _ := res.RowsAffected(); aff != 1 {
		log.Printf("[ERROR] lending: status transition %s -> %s did not apply (asset_id=%d)", from, to, assetID)
		return ErrInconsist("asset status out of sync")
	}
	return nil
}

func (s *Store) readBorrowerTx(ctx context.Context, tx db.DBTX, borrowerID int64) (name, contact string, err error) {
	const q = `SELECT name, contact FROM borrowers WHERE borrower_id = ?`
	if err = tx.QueryRowContext(ctx, q, borrowerID).Scan(&name, &contact); err != nil {
		if err == sql.ErrNoRows {
			return "", "", ErrNotFound("borrower not found")
		}
		return "", "", err
	}
	return name, contact, nil
}

// ---- Transactional Methods ----

// ExecLend は貸出の全手順を1Txで行う：
//  1. asset行ロック＆状態チェック（Available 以外は Conflict）
//  2. borrower 読み取り → スナップショットを rec に複写
//  3. lends へ INSERT（returned_at IS NULL の「開いた」行）
//  4. assets.status を Lent へ
// どこかで失敗したら全てロールバックされる（孤児レコードを残さない）。
func (s *Store) ExecLend(ctx context.Context, rec *LendingRecord) (*AssetState, error) {
	var state *AssetState
	err := db.RunInTx(ctx, s.conn, &sql.TxOptions{}, func(ctx context.Context, tx db.DBTX) error {
		a, err := s.lockAssetRow(ctx, tx, rec.AssetID)
		if err != nil {
			return err
		}
		if !a.Status.lendable() {
			switch a.Status {
			case StatusLent:
				return ErrConflict("already lent")
			case StatusMaintenance:
				return ErrConflict("unavailable: under maintenance")
			default:
				log.Printf("[ERROR] lending: asset %d has invalid status %d", a.AssetID, uint8(a.Status))
				return ErrInconsist("asset status out of sync")
			}
		}

		name, contact, err := s.readBorrowerTx(ctx, tx, rec.BorrowerID)
		if err != nil {
			return err
		}
		rec.BorrowerName = name
		rec.BorrowerContact = contact

		const q = `
		INSERT INTO lends
		(lend_ulid, asset_id, borrower_id, borrower_name, borrower_contact, lent_at, note)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
		res, err := tx.ExecContext(ctx, q,
			rec.LendULID, rec.AssetID, rec.BorrowerID,
			rec.BorrowerName, rec.BorrowerContact, rec.LentAt,
			nullStrOrNil(rec.Note),
		)
		if err != nil {
			return err
		}
		id, _ := res.LastInsertId()
		rec.LendID = id

		if err := s.setAssetStatus(ctx, tx, rec.AssetID, StatusAvailable, StatusLent); err != nil {
			return err
		}
		a.Status = StatusLent
		state = a
		return nil
	})
	if err != nil {
		return nil, wrapDBError(err)
	}
	return state, nil
}

// ExecReturn は返却の全手順を1Txで行う：
//  1. asset行ロック＆状態チェック（Lent 以外は Conflict）
//  2. 開いた貸出行をロック取得。0件や複数件なら台帳破損として中断
//  3. returned_at を1度だけ確定、返却メモがあれば追記
//  4. assets.status を Available へ
func (s *Store) ExecReturn(ctx context.Context, assetID int64, note *string, at time.Time) (*AssetState, *LendingRecord, error) {
	var state *AssetState
	var rec *LendingRecord
	err := db.RunInTx(ctx, s.conn, &sql.TxOptions{}, func(ctx context.Context, tx db.DBTX) error {
		a, err := s.lockAssetRow(ctx, tx, assetID)
		if err != nil {
			return err
		}
		if !a.Status.returnable() {
			switch a.Status {
			case StatusAvailable:
				return ErrConflict("not currently lent")
			case StatusMaintenance:
				return ErrConflict("cannot return from maintenance")
			default:
				log.Printf("[ERROR] lending: asset %d has invalid status %d", a.AssetID, uint8(a.Status))
				return ErrInconsist("asset status out of sync")
			}
		}

		open, err := s.lockOpenRecords(ctx, tx, assetID)
		if err != nil {
			return err
		}
		if len(open) != 1 {
			// statusはLentなのに開いた行が1件でない：コアの不変条件の破れ。
			// 自動修復はせず、操作を止めて大きくログに残す。
			log.Printf("[ERROR] lending: ledger out of sync: asset_id=%d status=lent open_records=%d", assetID, len(open))
			return ErrInconsist("lending ledger out of sync")
		}
		rec = &open[0]

		merged := rec.Note
		if note != nil && *note != "" {
			if merged.Valid && merged.String != "" {
				merged.String = merged.String + "\n" + *note
			} else {
				merged = sql.NullString{String: *note, Valid: true}
			}
		}

		const q = `UPDATE lends SET returned_at = ?, note = ? WHERE lend_id = ? AND returned_at IS NULL`
		res, err := tx.ExecContext(ctx, q, at, nullStrOrNil(merged), rec.LendID)
		if err != nil {
			return err
		}
		if aff, _ := res.RowsAffected(); aff != 1 {
			log.Printf("[ERROR] lending: close of lend_id=%d did not apply", rec.LendID)
			return ErrInconsist("lending ledger out of sync")
		}

		if err := s.setAssetStatus(ctx, tx, assetID, StatusLent, StatusAvailable); err != nil {
			return err
		}
		rec.ReturnedAt = sql.NullTime{Time: at, Valid: true}
		rec.Note = merged
		a.Status = StatusAvailable
		state = a
		return nil
	})
	if err != nil {
		return nil, nil, wrapDBError(err)
	}
	return state, rec, nil
}

// lockOpenRecords は returned_at IS NULL の行をロック付きで全件返す。
// 正常系では高々1件のはずだが、件数チェックは呼び出し側で行う。
func (s *Store) lockOpenRecords(ctx context.Context, tx db.DBTX, assetID int64) ([]LendingRecord, error) {
	const q = `
	SELECT lend_id, lend_ulid, asset_id, borrower_id, borrower_name, borrower_contact, lent_at, returned_at, note
	FROM lends
	WHERE asset_id = ? AND returned_at IS NULL
	ORDER BY lend_id
	FOR UPDATE`
	rows, err := tx.QueryContext(ctx, q, assetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []LendingRecord
	for rows.Next() {
		var r LendingRecord
		if err := rows.Scan(
			&r.LendID, &r.LendULID, &r.AssetID, &r.BorrowerID,
			&r.BorrowerName, &r.BorrowerContact, &r.LentAt, &r.ReturnedAt, &r.Note,
		); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// HasHistoryTx は開閉問わず貸出記録が1件でも存在するかを返す。
// 資産削除のTx内から呼ばれる前提（Deletion Guard）。
func (s *Store) HasHistoryTx(ctx context.Context, tx db.DBTX, assetID int64) (bool, error) {
	const q = `SELECT EXISTS(SELECT 1 FROM lends WHERE asset_id = ?)`
	var exists bool
	if err := tx.QueryRowContext(ctx, q, assetID).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// ---- Queries ----

func (s *Store) GetRecordByULID(ctx context.Context, lendULID string) (*LendingRecord, error) {
	const q = `
	SELECT lend_id, lend_ulid, asset_id, borrower_id, borrower_name, borrower_contact, lent_at, returned_at, note
	FROM lends WHERE lend_ulid = ?`
	var r LendingRecord
	err := s.conn.QueryRowContext(ctx, q, lendULID).Scan(
		&r.LendID, &r.LendULID, &r.AssetID, &r.BorrowerID,
		&r.BorrowerName, &r.BorrowerContact, &r.LentAt, &r.ReturnedAt, &r.Note,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound("lend not found")
		}
		return nil, err
	}
	return &r, nil
}

// ListRecords は貸出履歴を新しい順（lent_at DESC）で返す。
// 同時刻はlend_idで順序を固定し、再取得しても同じ並びになるようにする。
func (s *Store) ListRecords(ctx context.Context, f RecordFilter, p Page) ([]LendingRecord, int64, error) {
	where, args := buildRecordWhere(f)

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

	q := fmt.Sprintf(`
	SELECT lend_id, lend_ulid, asset_id, borrower_id, borrower_name, borrower_contact, lent_at, returned_at, note
	FROM lends
	%s
	ORDER BY lent_at %s, lend_id %s
	LIMIT ? OFFSET ?`, where, order, order)
	args = append(args, p.Limit, p.Offset)

	rows, err := s.conn.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []LendingRecord
	for rows.Next() {
		var r LendingRecord
		if err := rows.Scan(
			&r.LendID, &r.LendULID, &r.AssetID, &r.BorrowerID,
			&r.BorrowerName, &r.BorrowerContact, &r.LentAt, &r.ReturnedAt, &r.Note,
		); err != nil {
			return nil, 0, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	whereCnt, argsCnt := buildRecordWhere(f)
	var total int64
	if err := s.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM lends `+whereCnt, argsCnt...).Scan(&total); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func buildRecordWhere(f RecordFilter) (string, []any) {
	sb := strings.Builder{}
	sb.WriteString(`WHERE 1=1`)
	args := []any{}
	if f.AssetID != nil {
		sb.WriteString(` AND asset_id = ?`)
		args = append(args, *f.AssetID)
	}
	if f.BorrowerID != nil {
		sb.WriteString(` AND borrower_id = ?`)
		args = append(args, *f.BorrowerID)
	}
	if f.From != nil {
		sb.WriteString(` AND lent_at >= ?`)
		args = append(args, *f.From)
	}
	if f.To != nil {
		sb.WriteString(` AND lent_at < ?`)
		args = append(args, *f.To)
	}
	if f.Open != nil {
		if *f.Open {
			sb.WriteString(` AND returned_at IS NULL`)
		} else {
			sb.WriteString(` AND returned_at IS NOT NULL`)
		}
	}
	return sb.String(), args
}

func nullStrOrNil(ns sql.NullString) any {
	if ns.Valid {
		return ns.String
	}
	return nil
}
