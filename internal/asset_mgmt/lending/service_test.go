package lending

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ===== テスト用の固定クロック／連番ID =====

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

type seqIDGen struct {
	mu sync.Mutex
	n  int
}

func (g *seqIDGen) NewULID(_ time.Time) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("01TESTULID%016d", g.n)
}

// ===== インメモリ台帳フェイク =====
// *Store と同じ契約を満たす：前提チェックと両書き込みが1つのクリティカル
// セクションに入り、負けた呼び出しは Conflict を受け取る。

type fakeBorrower struct {
	name    string
	contact string
}

type fakeLedger struct {
	mu        sync.Mutex
	assets    map[int64]*AssetState
	borrowers map[int64]fakeBorrower
	records   []LendingRecord
	nextID    int64

	// 不変条件破れの注入用
	corruptOpenRows bool
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		assets:    map[int64]*AssetState{},
		borrowers: map[int64]fakeBorrower{},
	}
}

func (f *fakeLedger) addAsset(id int64, name string, st Status) {
	f.assets[id] = &AssetState{AssetID: id, AssetULID: fmt.Sprintf("01ASSET%010d", id), Name: name, Status: st}
}

func (f *fakeLedger) ExecLend(ctx context.Context, rec *LendingRecord) (*AssetState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, wrapDBError(err)
	}

	a, ok := f.assets[rec.AssetID]
	if !ok {
		return nil, ErrNotFound("asset not found")
	}
	if !a.Status.lendable() {
		if a.Status == StatusMaintenance {
			return nil, ErrConflict("unavailable: under maintenance")
		}
		return nil, ErrConflict("already lent")
	}
	b, ok := f.borrowers[rec.BorrowerID]
	if !ok {
		return nil, ErrNotFound("borrower not found")
	}

	rec.BorrowerName = b.name
	rec.BorrowerContact = b.contact
	f.nextID++
	rec.LendID = f.nextID
	f.records = append(f.records, *rec)
	a.Status = StatusLent
	cp := *a
	return &cp, nil
}

func (f *fakeLedger) ExecReturn(ctx context.Context, assetID int64, note *string, at time.Time) (*AssetState, *LendingRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, nil, wrapDBError(err)
	}

	a, ok := f.assets[assetID]
	if !ok {
		return nil, nil, ErrNotFound("asset not found")
	}
	if !a.Status.returnable() {
		if a.Status == StatusMaintenance {
			return nil, nil, ErrConflict("cannot return from maintenance")
		}
		return nil, nil, ErrConflict("not currently lent")
	}

	var open []*LendingRecord
	for i := range f.records {
		if f.records[i].AssetID == assetID && f.records[i].Open() {
			open = append(open, &f.records[i])
		}
	}
	if f.corruptOpenRows || len(open) != 1 {
		return nil, nil, ErrInconsist("lending ledger out of sync")
	}

	rec := open[0]
	rec.ReturnedAt = sql.NullTime{Time: at, Valid: true}
	if note != nil && *note != "" {
		if rec.Note.Valid {
			rec.Note.String = rec.Note.String + "\n" + *note
		} else {
			rec.Note = sql.NullString{String: *note, Valid: true}
		}
	}
	a.Status = StatusAvailable
	cpA := *a
	cpR := *rec
	return &cpA, &cpR, nil
}

func (f *fakeLedger) GetRecordByULID(ctx context.Context, lendULID string) (*LendingRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.records {
		if f.records[i].LendULID == lendULID {
			cp := f.records[i]
			return &cp, nil
		}
	}
	return nil, ErrNotFound("lend record not found")
}

func (f *fakeLedger) ListRecords(ctx context.Context, fl RecordFilter, p Page) ([]LendingRecord, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var hit []LendingRecord
	for i := range f.records {
		r := f.records[i]
		if fl.AssetID != nil && r.AssetID != *fl.AssetID {
			continue
		}
		if fl.BorrowerID != nil && r.BorrowerID != *fl.BorrowerID {
			continue
		}
		if fl.From != nil && r.LentAt.Before(*fl.From) {
			continue
		}
		// ストアの WHERE lent_at < ? と同じ半開区間 [from, to)
		if fl.To != nil && !r.LentAt.Before(*fl.To) {
			continue
		}
		if fl.Open != nil && r.Open() != *fl.Open {
			continue
		}
		hit = append(hit, r)
	}
	sort.Slice(hit, func(i, j int) bool {
		if !hit[i].LentAt.Equal(hit[j].LentAt) {
			return hit[i].LentAt.After(hit[j].LentAt)
		}
		return hit[i].LendID > hit[j].LendID
	})

	total := int64(len(hit))
	if p.Limit <= 0 {
		p.Limit = 50
	}
	if p.Offset > len(hit) {
		p.Offset = len(hit)
	}
	end := p.Offset + p.Limit
	if end > len(hit) {
		end = len(hit)
	}
	return hit[p.Offset:end], total, nil
}

func newTestService(f *fakeLedger, now time.Time) *Service {
	return &Service{
		store: f,
		clock: fixedClock{t: now},
		id:    &seqIDGen{},
	}
}

// ===== Lend =====

func TestLend_Success(t *testing.T) {
	now := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	f := newFakeLedger()
	f.addAsset(1, "oscilloscope", StatusAvailable)
	f.borrowers[10] = fakeBorrower{name: "Sato Aoi", contact: "aoi@example.com"}
	svc := newTestService(f, now)

	note := "for lab session"
	resp, err := svc.Lend(context.Background(), CreateLendRequest{AssetID: 1, BorrowerID: 10, Note: &note})
	require.NoError(t, err)

	assert.NotEmpty(t, resp.LendULID)
	assert.Equal(t, int64(1), resp.AssetID)
	assert.Equal(t, int64(10), resp.BorrowerID)
	assert.Equal(t, "Sato Aoi", resp.BorrowerName)
	assert.Equal(t, "aoi@example.com", resp.BorrowerContact)
	assert.Equal(t, now, resp.LentAt)
	assert.Nil(t, resp.ReturnedAt)
	require.NotNil(t, resp.Note)
	assert.Equal(t, "for lab session", *resp.Note)
	require.NotNil(t, resp.Asset)
	assert.Equal(t, StatusLent, resp.Asset.Status)
}

func TestLend_Validation(t *testing.T) {
	svc := newTestService(newFakeLedger(), time.Now())

	_, err := svc.Lend(context.Background(), CreateLendRequest{AssetID: 0, BorrowerID: 10})
	assertCode(t, err, CodeInvalidArgument)

	_, err = svc.Lend(context.Background(), CreateLendRequest{AssetID: 1, BorrowerID: -1})
	assertCode(t, err, CodeInvalidArgument)
}

func TestLend_AssetNotFound(t *testing.T) {
	f := newFakeLedger()
	f.borrowers[10] = fakeBorrower{name: "x", contact: "y"}
	svc := newTestService(f, time.Now())

	_, err := svc.Lend(context.Background(), CreateLendRequest{AssetID: 99, BorrowerID: 10})
	assertCode(t, err, CodeNotFound)
}

func TestLend_BorrowerNotFound(t *testing.T) {
	f := newFakeLedger()
	f.addAsset(1, "a", StatusAvailable)
	svc := newTestService(f, time.Now())

	_, err := svc.Lend(context.Background(), CreateLendRequest{AssetID: 1, BorrowerID: 99})
	assertCode(t, err, CodeNotFound)
}

func TestLend_ConflictWhenAlreadyLent(t *testing.T) {
	f := newFakeLedger()
	f.addAsset(1, "a", StatusAvailable)
	f.borrowers[10] = fakeBorrower{name: "x", contact: "y"}
	f.borrowers[11] = fakeBorrower{name: "z", contact: "w"}
	svc := newTestService(f, time.Now())

	_, err := svc.Lend(context.Background(), CreateLendRequest{AssetID: 1, BorrowerID: 10})
	require.NoError(t, err)

	_, err = svc.Lend(context.Background(), CreateLendRequest{AssetID: 1, BorrowerID: 11})
	assertCode(t, err, CodeConflict)

	// 台帳は1件のまま
	recs, total, err := f.ListRecords(context.Background(), RecordFilter{}, Page{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Len(t, recs, 1)
}

func TestLend_ConflictWhenUnderMaintenance(t *testing.T) {
	f := newFakeLedger()
	f.addAsset(1, "a", StatusMaintenance)
	f.borrowers[10] = fakeBorrower{name: "x", contact: "y"}
	svc := newTestService(f, time.Now())

	_, err := svc.Lend(context.Background(), CreateLendRequest{AssetID: 1, BorrowerID: 10})
	assertCode(t, err, CodeConflict)
}

// 同一資産に対する並行貸出は1件だけ成功し、残りは全て Conflict。
func TestLend_ConcurrentSingleWinner(t *testing.T) {
	f := newFakeLedger()
	f.addAsset(1, "a", StatusAvailable)
	for i := int64(1); i <= 32; i++ {
		f.borrowers[i] = fakeBorrower{name: fmt.Sprintf("b%d", i), contact: "c"}
	}
	svc := newTestService(f, time.Now())

	var wg sync.WaitGroup
	errs := make([]error, 32)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Lend(context.Background(), CreateLendRequest{AssetID: 1, BorrowerID: int64(i + 1)})
		}(i)
	}
	wg.Wait()

	var okCount, conflictCount int
	for _, err := range errs {
		if err == nil {
			okCount++
			continue
		}
		var api *APIError
		require.ErrorAs(t, err, &api)
		require.Equal(t, CodeConflict, api.Code)
		conflictCount++
	}
	assert.Equal(t, 1, okCount)
	assert.Equal(t, 31, conflictCount)

	_, total, err := f.ListRecords(context.Background(), RecordFilter{}, Page{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}

// ===== Return =====

func TestReturn_Success(t *testing.T) {
	lentAt := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	f := newFakeLedger()
	f.addAsset(1, "a", StatusAvailable)
	f.borrowers[10] = fakeBorrower{name: "x", contact: "y"}

	svc := newTestService(f, lentAt)
	_, err := svc.Lend(context.Background(), CreateLendRequest{AssetID: 1, BorrowerID: 10})
	require.NoError(t, err)

	returnedAt := lentAt.Add(48 * time.Hour)
	svc.clock = fixedClock{t: returnedAt}

	note := "minor scratch"
	resp, err := svc.Return(context.Background(), CreateReturnRequest{AssetID: 1, Note: &note})
	require.NoError(t, err)

	require.NotNil(t, resp.ReturnedAt)
	assert.Equal(t, returnedAt, *resp.ReturnedAt)
	assert.False(t, resp.ReturnedAt.Before(resp.LentAt))
	require.NotNil(t, resp.Note)
	assert.Equal(t, "minor scratch", *resp.Note)
	require.NotNil(t, resp.Asset)
	assert.Equal(t, StatusAvailable, resp.Asset.Status)
}

func TestReturn_AppendsNote(t *testing.T) {
	f := newFakeLedger()
	f.addAsset(1, "a", StatusAvailable)
	f.borrowers[10] = fakeBorrower{name: "x", contact: "y"}
	svc := newTestService(f, time.Now())

	lendNote := "handle with care"
	_, err := svc.Lend(context.Background(), CreateLendRequest{AssetID: 1, BorrowerID: 10, Note: &lendNote})
	require.NoError(t, err)

	retNote := "returned intact"
	resp, err := svc.Return(context.Background(), CreateReturnRequest{AssetID: 1, Note: &retNote})
	require.NoError(t, err)
	require.NotNil(t, resp.Note)
	assert.Equal(t, "handle with care\nreturned intact", *resp.Note)
}

func TestReturn_ConflictWhenNotLent(t *testing.T) {
	f := newFakeLedger()
	f.addAsset(1, "a", StatusAvailable)
	svc := newTestService(f, time.Now())

	_, err := svc.Return(context.Background(), CreateReturnRequest{AssetID: 1})
	assertCode(t, err, CodeConflict)
}

func TestReturn_NotFound(t *testing.T) {
	svc := newTestService(newFakeLedger(), time.Now())
	_, err := svc.Return(context.Background(), CreateReturnRequest{AssetID: 42})
	assertCode(t, err, CodeNotFound)
}

// 台帳とステータスの食い違いは INTERNAL_INCONSISTENCY として返る
func TestReturn_LedgerOutOfSync(t *testing.T) {
	f := newFakeLedger()
	f.addAsset(1, "a", StatusAvailable)
	f.borrowers[10] = fakeBorrower{name: "x", contact: "y"}
	svc := newTestService(f, time.Now())

	_, err := svc.Lend(context.Background(), CreateLendRequest{AssetID: 1, BorrowerID: 10})
	require.NoError(t, err)

	f.corruptOpenRows = true
	_, err = svc.Return(context.Background(), CreateReturnRequest{AssetID: 1})
	assertCode(t, err, CodeInconsistent)
	assert.Equal(t, 500, ToHTTPStatus(err))
}

// ===== スナップショット不変性 =====

// 借り手情報を後から書き換え・削除しても、貸出記録のスナップショットは変わらない
func TestHistory_SnapshotImmutable(t *testing.T) {
	f := newFakeLedger()
	f.addAsset(1, "a", StatusAvailable)
	f.borrowers[10] = fakeBorrower{name: "Old Name", contact: "old@example.com"}
	svc := newTestService(f, time.Now())

	lent, err := svc.Lend(context.Background(), CreateLendRequest{AssetID: 1, BorrowerID: 10})
	require.NoError(t, err)

	// 借り手を変更して、さらに削除
	f.mu.Lock()
	f.borrowers[10] = fakeBorrower{name: "New Name", contact: "new@example.com"}
	delete(f.borrowers, 10)
	f.mu.Unlock()

	got, err := svc.GetLendByULID(context.Background(), lent.LendULID)
	require.NoError(t, err)
	assert.Equal(t, "Old Name", got.BorrowerName)
	assert.Equal(t, "old@example.com", got.BorrowerContact)
}

// ===== GetHistory =====

func TestGetHistory_OrderAndStability(t *testing.T) {
	f := newFakeLedger()
	f.addAsset(1, "a", StatusAvailable)
	f.borrowers[10] = fakeBorrower{name: "x", contact: "y"}
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	svc := newTestService(f, base)

	// 3サイクル回す
	for i := 0; i < 3; i++ {
		svc.clock = fixedClock{t: base.Add(time.Duration(i*2) * time.Hour)}
		_, err := svc.Lend(context.Background(), CreateLendRequest{AssetID: 1, BorrowerID: 10})
		require.NoError(t, err)
		svc.clock = fixedClock{t: base.Add(time.Duration(i*2+1) * time.Hour)}
		_, err = svc.Return(context.Background(), CreateReturnRequest{AssetID: 1})
		require.NoError(t, err)
	}

	hist, total, err := svc.GetHistory(context.Background(), 1, nil, nil, Page{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, hist, 3)
	// 新しい順
	for i := 0; i < len(hist)-1; i++ {
		assert.True(t, !hist[i].LentAt.Before(hist[i+1].LentAt))
	}

	// 同条件の再取得は同じ並び
	again, _, err := svc.GetHistory(context.Background(), 1, nil, nil, Page{})
	require.NoError(t, err)
	require.Len(t, again, 3)
	for i := range hist {
		assert.Equal(t, hist[i].LendULID, again[i].LendULID)
	}
}

func TestGetHistory_TimeRangeFilter(t *testing.T) {
	f := newFakeLedger()
	f.addAsset(1, "a", StatusAvailable)
	f.borrowers[10] = fakeBorrower{name: "x", contact: "y"}
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	svc := newTestService(f, base)

	for i := 0; i < 3; i++ {
		svc.clock = fixedClock{t: base.AddDate(0, 0, i)}
		_, err := svc.Lend(context.Background(), CreateLendRequest{AssetID: 1, BorrowerID: 10})
		require.NoError(t, err)
		_, err = svc.Return(context.Background(), CreateReturnRequest{AssetID: 1})
		require.NoError(t, err)
	}

	// 半開区間 [from, to)：day1 は入り、ちょうど to の day2 は入らない
	from := base.AddDate(0, 0, 1)
	to := base.AddDate(0, 0, 2)
	hist, total, err := svc.GetHistory(context.Background(), 1, &from, &to, Page{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, hist, 1)
	assert.Equal(t, from, hist[0].LentAt)

	// to 境界ちょうどの貸出は除外される
	exact := base.AddDate(0, 0, 2)
	hist, total, err = svc.GetHistory(context.Background(), 1, &exact, &exact, Page{})
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)
	assert.Empty(t, hist)
}

func TestGetHistory_EmptyForUnknownAsset(t *testing.T) {
	svc := newTestService(newFakeLedger(), time.Now())

	hist, total, err := svc.GetHistory(context.Background(), 12345, nil, nil, Page{})
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)
	assert.Empty(t, hist)

	_, _, err = svc.GetHistory(context.Background(), 0, nil, nil, Page{})
	assertCode(t, err, CodeInvalidArgument)
}

// ===== ListLends =====

func TestListLends_OpenFilter(t *testing.T) {
	f := newFakeLedger()
	f.addAsset(1, "a", StatusAvailable)
	f.addAsset(2, "b", StatusAvailable)
	f.borrowers[10] = fakeBorrower{name: "x", contact: "y"}
	svc := newTestService(f, time.Now())

	_, err := svc.Lend(context.Background(), CreateLendRequest{AssetID: 1, BorrowerID: 10})
	require.NoError(t, err)
	_, err = svc.Lend(context.Background(), CreateLendRequest{AssetID: 2, BorrowerID: 10})
	require.NoError(t, err)
	_, err = svc.Return(context.Background(), CreateReturnRequest{AssetID: 1})
	require.NoError(t, err)

	open := true
	got, total, err := svc.ListLends(context.Background(), RecordFilter{Open: &open}, Page{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, got, 1)
	assert.Equal(t, int64(2), got[0].AssetID)
	assert.Nil(t, got[0].ReturnedAt)
}

// ===== helpers =====

func assertCode(t *testing.T, err error, want Code) {
	t.Helper()
	require.Error(t, err)
	var api *APIError
	require.True(t, errors.As(err, &api), "expected *APIError, got %T: %v", err, err)
	assert.Equal(t, want, api.Code)
}
