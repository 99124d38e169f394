package maintenance

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"
	"time"

	"ATLAS-backend/internal/asset_mgmt/lending"
	"ATLAS-backend/internal/platform/db"
)

type Store struct{ conn *sql.DB }

func NewStore(conn *sql.DB) *Store { return &Store{conn: conn} }

// LockAssetStatus は対象資産の行を FOR UPDATE で押さえて現在ステータスを返す。
// 貸出コアと同じ行をロックするので、貸出/返却との競合はここで直列化される。
func (s *Store) LockAssetStatus(ctx context.Context, tx db.DBTX, assetID int64) (lending.Status, error) {
	const q = `SELECT status FROM assets WHERE asset_id = ? FOR UPDATE`
	var st uint8
	if err := tx.QueryRowContext(ctx, q, assetID).Scan(&st); err != nil {
		if err == sql.ErrNoRows {
			return 0, ErrNotFound("asset not found")
		}
		return 0, err
	}
	return lending.Status(st), nil
}

func (s *Store) SetAssetStatus(ctx context.Context, tx db.DBTX, assetID int64, from, to lending.Status) error {
	const q = `UPDATE assets SET status = ?, updated_at = NOW(6) WHERE asset_id = ? AND status = ?`
	res, err := tx.ExecContext(ctx, q, uint8(to), assetID, uint8(from))
	if err != nil {
		return err
	}
	if aff, _ := res.RowsAffected(); aff != 1 {
		log.Printf("[ERROR] maintenance: status transition %s -> %s did not apply (asset_id=%d)", from, to, assetID)
		return ErrInternal("failed to update asset status")
	}
	return nil
}

func (s *Store) InsertEvent(ctx context.Context, tx db.DBTX, m *Event) error {
	const q = `
	INSERT INTO maintenance_events (event_ulid, asset_id, reason, started_at)
	VALUES (?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q, m.EventULID, m.AssetID, m.Reason, m.StartedAt)
	if err != nil {
		return err
	}
	id, _ := res.LastInsertId()
	m.EventID = id
	return nil
}

// CloseOpenEvent は未解除のイベントに released_at を入れる。
// 状態がMaintenanceなのに開いたイベントがないのは運用上あり得るので
// （手動投入など）、その場合はイベントなしの解除として扱う。
func (s *Store) CloseOpenEvent(ctx context.Context, tx db.DBTX, assetID int64, at time.Time) (*Event, error) {
	const sel = `
	SELECT event_id, event_ulid, asset_id, reason, started_at, released_at
	FROM maintenance_events
	WHERE asset_id = ? AND released_at IS NULL
	ORDER BY event_id DESC
	LIMIT 1
	FOR UPDATE`
	var ev Event
	err := tx.QueryRowContext(ctx, sel, assetID).Scan(
		&ev.EventID, &ev.EventULID, &ev.AssetID, &ev.Reason, &ev.StartedAt, &ev.ReleasedAt,
	)
	if err == sql.ErrNoRows {
		log.Printf("[WARN] maintenance: no open event for asset_id=%d at release", assetID)
		return &Event{AssetID: assetID, ReleasedAt: sql.NullTime{Time: at, Valid: true}}, nil
	}
	if err != nil {
		return nil, err
	}

	const upd = `UPDATE maintenance_events SET released_at = ? WHERE event_id = ? AND released_at IS NULL`
	if _, err := tx.ExecContext(ctx, upd, at, ev.EventID); err != nil {
		return nil, err
	}
	ev.ReleasedAt = sql.NullTime{Time: at, Valid: true}
	return &ev, nil
}

func (s *Store) ListEvents(ctx context.Context, f EventFilter) ([]Event, int64, error) {
	sb := strings.Builder{}
	sb.WriteString(`WHERE 1=1`)
	args := []any{}
	if f.AssetID != nil {
		sb.WriteString(` AND asset_id = ?`)
		args = append(args, *f.AssetID)
	}
	if f.OpenOnly {
		sb.WriteString(` AND released_at IS NULL`)
	}
	where := sb.String()

	if f.Limit <= 0 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	q := fmt.Sprintf(`
	SELECT event_id, event_ulid, asset_id, reason, started_at, released_at
	FROM maintenance_events %s ORDER BY started_at DESC, event_id DESC LIMIT ? OFFSET ?`, where)

	rows, err := s.conn.QueryContext(ctx, q, append(args, f.Limit, f.Offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var ev Event
		if err := rows.Scan(&ev.EventID, &ev.EventULID, &ev.AssetID, &ev.Reason, &ev.StartedAt, &ev.ReleasedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var total int64
	if err := s.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM maintenance_events `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}
