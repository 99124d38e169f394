package maintenance

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	ulid "github.com/oklog/ulid/v2"

	"ATLAS-backend/internal/asset_mgmt/lending"
	"ATLAS-backend/internal/platform/db"
)

// ---- Error model ----
type Code string

const (
	CodeInvalidArgument Code = "INVALID_ARGUMENT"
	CodeNotFound        Code = "NOT_FOUND"
	CodeConflict        Code = "CONFLICT"
	CodeInternal        Code = "INTERNAL"
)

type APIError struct {
	Code    Code
	Message string
}

func (e *APIError) Error() string      { return fmt.Sprintf("%s: %s", e.Code, e.Message) }
func ErrInvalid(msg string) *APIError  { return &APIError{Code: CodeInvalidArgument, Message: msg} }
func ErrNotFound(msg string) *APIError { return &APIError{Code: CodeNotFound, Message: msg} }
func ErrConflict(msg string) *APIError { return &APIError{Code: CodeConflict, Message: msg} }
func ErrInternal(msg string) *APIError { return &APIError{Code: CodeInternal, Message: msg} }

func toHTTPStatus(err error) int {
	var api *APIError
	if errors.As(err, &api) {
		switch api.Code {
		case CodeInvalidArgument:
			return 400
		case CodeNotFound:
			return 404
		case CodeConflict:
			return 409
		default:
			return 500
		}
	}
	return 500
}

// ---- Clock & ID ----
type Clock interface{ Now() time.Time }
type realClock struct{}

func (realClock) Now() time.Time { return time.Now().UTC() }

type IDGen interface{ NewULID(t time.Time) string }
type ulidGen struct{}

func (ulidGen) NewULID(t time.Time) string {
	entropy := ulid.Monotonic(rand.Reader, 0)
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}

// ---- Service ----
// 整備ステータスの出入口。遷移は Available ↔ Maintenance のみで、
// Lent の出入りには一切触れない（そちらは貸出コアの専権）。

type Service struct {
	conn  *sql.DB
	store *Store
	clock Clock
	id    IDGen
}

func NewService(conn *sql.DB) *Service {
	return &Service{
		conn:  conn,
		store: NewStore(conn),
		clock: realClock{},
		id:    ulidGen{},
	}
}

// POST /maintenance
func (s *Service) SendToMaintenance(ctx context.Context, in SendRequest) (EventResponse, error) {
	if in.AssetID <= 0 {
		return EventResponse{}, ErrInvalid("asset_id must be > 0")
	}
	if strings.TrimSpace(in.Reason) == "" {
		return EventResponse{}, ErrInvalid("reason is required")
	}
	now := s.clock.Now()
	euid := s.id.NewULID(now)

	var resp EventResponse
	err := db.RunInTx(ctx, s.conn, &sql.TxOptions{}, func(ctx context.Context, tx db.DBTX) error {
		st, err := s.store.LockAssetStatus(ctx, tx, in.AssetID)
		if err != nil {
			return err
		}
		switch st {
		case lending.StatusLent:
			return ErrConflict("currently lent")
		case lending.StatusMaintenance:
			return ErrConflict("already under maintenance")
		case lending.StatusAvailable:
			// ok
		default:
			log.Printf("[ERROR] maintenance: asset %d has invalid status %d", in.AssetID, uint8(st))
			return ErrInternal("asset status out of sync")
		}

		if err := s.store.SetAssetStatus(ctx, tx, in.AssetID, lending.StatusAvailable, lending.StatusMaintenance); err != nil {
			return err
		}

		m := &Event{
			EventULID: euid,
			AssetID:   in.AssetID,
			Reason:    strings.TrimSpace(in.Reason),
			StartedAt: now,
		}
		if err := s.store.InsertEvent(ctx, tx, m); err != nil {
			return err
		}
		resp = m.toDTO()
		return nil
	})
	if err != nil {
		return EventResponse{}, err
	}
	return resp, nil
}

// POST /maintenance/release
func (s *Service) ReleaseFromMaintenance(ctx context.Context, in ReleaseRequest) (EventResponse, error) {
	if in.AssetID <= 0 {
		return EventResponse{}, ErrInvalid("asset_id must be > 0")
	}
	now := s.clock.Now()

	var resp EventResponse
	err := db.RunInTx(ctx, s.conn, &sql.TxOptions{}, func(ctx context.Context, tx db.DBTX) error {
		st, err := s.store.LockAssetStatus(ctx, tx, in.AssetID)
		if err != nil {
			return err
		}
		switch st {
		case lending.StatusMaintenance:
			// ok
		case lending.StatusLent:
			return ErrConflict("currently lent")
		default:
			return ErrConflict("not under maintenance")
		}

		ev, err := s.store.CloseOpenEvent(ctx, tx, in.AssetID, now)
		if err != nil {
			return err
		}
		if err := s.store.SetAssetStatus(ctx, tx, in.AssetID, lending.StatusMaintenance, lending.StatusAvailable); err != nil {
			return err
		}
		resp = ev.toDTO()
		return nil
	})
	if err != nil {
		return EventResponse{}, err
	}
	return resp, nil
}

// GET /maintenance
func (s *Service) ListEvents(ctx context.Context, f EventFilter) ([]EventResponse, int64, error) {
	rows, total, err := s.store.ListEvents(ctx, f)
	if err != nil {
		return nil, 0, err
	}
	out := make([]EventResponse, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toDTO())
	}
	return out, total, nil
}
