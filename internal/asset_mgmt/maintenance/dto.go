package maintenance

import (
	"database/sql"
	"time"
)

// Event は maintenance_events テーブルの1行
type Event struct {
	EventID    int64
	EventULID  string
	AssetID    int64
	Reason     string
	StartedAt  time.Time
	ReleasedAt sql.NullTime
}

func (e *Event) toDTO() EventResponse {
	resp := EventResponse{
		EventID:   e.EventID,
		EventULID: e.EventULID,
		AssetID:   e.AssetID,
		Reason:    e.Reason,
		StartedAt: e.StartedAt,
	}
	if e.ReleasedAt.Valid {
		val := e.ReleasedAt.Time
		resp.ReleasedAt = &val
	}
	return resp
}

type SendRequest struct {
	AssetID int64  `json:"asset_id" binding:"required"`
	Reason  string `json:"reason" binding:"required"`
}

type ReleaseRequest struct {
	AssetID int64 `json:"asset_id" binding:"required"`
}

type EventResponse struct {
	EventID    int64      `json:"event_id"`
	EventULID  string     `json:"event_ulid,omitempty"`
	AssetID    int64      `json:"asset_id"`
	Reason     string     `json:"reason,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	ReleasedAt *time.Time `json:"released_at,omitempty"`
}

type EventFilter struct {
	AssetID  *int64
	OpenOnly bool
	Limit    int
	Offset   int
}
