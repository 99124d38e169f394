package lending

import (
	"context"
	"crypto/rand"
	"database/sql"
	"time"

	ulid "github.com/oklog/ulid/v2"
)

// ===== インターフェース群 =====

type Clock interface{ Now() time.Time }

type realClock struct{}

func (realClock) Now() time.Time { return time.Now().UTC() }

type IDGen interface{ NewULID(t time.Time) string }

type ulidGen struct{}

func (ulidGen) NewULID(t time.Time) string {
	entropy := ulid.Monotonic(rand.Reader, 0)
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}

// LedgerStore は貸出コアの永続層。本体は *Store（MySQL）、テストはフェイク。
type LedgerStore interface {
	ExecLend(ctx context.Context, rec *LendingRecord) (*AssetState, error)
	ExecReturn(ctx context.Context, assetID int64, note *string, at time.Time) (*AssetState, *LendingRecord, error)
	GetRecordByULID(ctx context.Context, lendULID string) (*LendingRecord, error)
	ListRecords(ctx context.Context, f RecordFilter, p Page) ([]LendingRecord, int64, error)
}

// アトミック単位の獲得待ちはここで打ち切る。
// 期限切れは部分書き込みなしの TIMEOUT として返る（呼び出し側は単純リトライ可）。
const opTimeout = 5 * time.Second

// ===== Service本体（Lending Coordinator） =====

type Service struct {
	store LedgerStore
	clock Clock
	id    IDGen
}

func NewService(conn *sql.DB) *Service {
	return &Service{
		store: NewStore(conn),
		clock: realClock{},
		id:    ulidGen{},
	}
}

// Lend は資産を1点、借り手に貸し出す。
// 前提チェック（資産あり・Available・借り手あり）と、台帳INSERT＋status更新の
// 両書き込みは store 側で同一Txに入る。負けた並行呼び出しは Conflict を受け取る。
func (s *Service) Lend(ctx context.Context, req CreateLendRequest) (*LendResponse, error) {
	if req.AssetID <= 0 {
		return nil, ErrInvalid("asset_id must be > 0")
	}
	if req.BorrowerID <= 0 {
		return nil, ErrInvalid("borrower_id must be > 0")
	}

	now := s.clock.Now()
	rec := &LendingRecord{
		LendULID:   s.id.NewULID(now),
		AssetID:    req.AssetID,
		BorrowerID: req.BorrowerID,
		LentAt:     now,
	}
	if req.Note != nil && *req.Note != "" {
		rec.Note = sql.NullString{String: *req.Note, Valid: true}
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	asset, err := s.store.ExecLend(ctx, rec)
	if err != nil {
		return nil, err
	}
	resp := buildLendResponse(rec, asset)
	return &resp, nil
}

// Return は貸出中の資産を返却する。開いている貸出行はコアが一意に解決する。
func (s *Service) Return(ctx context.Context, req CreateReturnRequest) (*LendResponse, error) {
	if req.AssetID <= 0 {
		return nil, ErrInvalid("asset_id must be > 0")
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	asset, rec, err := s.store.ExecReturn(ctx, req.AssetID, req.Note, s.clock.Now())
	if err != nil {
		return nil, err
	}
	resp := buildLendResponse(rec, asset)
	return &resp, nil
}

// GetHistory は資産1点の貸出履歴を新しい順で返す。読み取り専用・副作用なし。
func (s *Service) GetHistory(ctx context.Context, assetID int64, from, to *time.Time, p Page) ([]LendResponse, int64, error) {
	if assetID <= 0 {
		return nil, 0, ErrInvalid("asset_id must be > 0")
	}
	f := RecordFilter{AssetID: &assetID, From: from, To: to}
	return s.listRecords(ctx, f, p)
}

// ListLends は横断検索（借り手・期間・未返却のみ等）
func (s *Service) ListLends(ctx context.Context, f RecordFilter, p Page) ([]LendResponse, int64, error) {
	return s.listRecords(ctx, f, p)
}

func (s *Service) listRecords(ctx context.Context, f RecordFilter, p Page) ([]LendResponse, int64, error) {
	recs, total, err := s.store.ListRecords(ctx, f, p)
	if err != nil {
		return nil, 0, err
	}
	out := make([]LendResponse, 0, len(recs))
	for i := range recs {
		out = append(out, buildLendResponse(&recs[i], nil))
	}
	return out, total, nil
}

func (s *Service) GetLendByULID(ctx context.Context, lendULID string) (*LendResponse, error) {
	if lendULID == "" {
		return nil, ErrInvalid("lend_ulid is required")
	}
	rec, err := s.store.GetRecordByULID(ctx, lendULID)
	if err != nil {
		return nil, err
	}
	resp := buildLendResponse(rec, nil)
	return &resp, nil
}
