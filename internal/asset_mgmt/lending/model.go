package lending

import (
	"database/sql"
	"time"
)

// LendingRecord は lends テーブルの1行（貸出〜返却の1サイクル）。
// borrower_name / borrower_contact は貸出時点のスナップショットで、
// 以後 borrowers 側がどう変わっても書き換えない。
// 行の削除は行わない（監査証跡）。returned_at が入った行は不変。
type LendingRecord struct {
	LendID          int64
	LendULID        string
	AssetID         int64
	BorrowerID      int64
	BorrowerName    string
	BorrowerContact string
	LentAt          time.Time
	ReturnedAt      sql.NullTime
	Note            sql.NullString
}

// Open は未返却（監査上「開いている」）かどうか
func (r *LendingRecord) Open() bool { return !r.ReturnedAt.Valid }

// AssetState は貸出コアから見た資産の最小ビュー
type AssetState struct {
	AssetID   int64
	AssetULID string
	Name      string
	Status    Status
}

// 貸出履歴の検索条件
type RecordFilter struct {
	AssetID    *int64
	BorrowerID *int64
	From       *time.Time
	To         *time.Time
	Open       *bool
}

type Page struct {
	Limit  int
	Offset int
	Order  string
}
