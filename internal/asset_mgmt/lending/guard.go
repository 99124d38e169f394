package lending

import (
	"context"
	"database/sql"

	"ATLAS-backend/internal/platform/db"
)

type historyStore interface {
	HasHistoryTx(ctx context.Context, tx db.DBTX, assetID int64) (bool, error)
}

// Guard は資産削除のポリシーチェック（Deletion Guard）。
// 返却済みでも、貸出記録が1件でもある資産は削除させない（監査証跡の保全）。
// 削除側のTxに同居させて呼ぶことで、並行する Lend と削除が両方成功する
// 取りこぼしを防ぐ（Lend側がasset行をロックするため直列化される）。
type Guard struct {
	store historyStore
}

func NewDeletionGuard(conn *sql.DB) *Guard {
	return &Guard{store: NewStore(conn)}
}

func (g *Guard) CanDelete(ctx context.Context, tx db.DBTX, assetID int64) (bool, error) {
	has, err := g.store.HasHistoryTx(ctx, tx, assetID)
	if err != nil {
		return false, err
	}
	return !has, nil
}

func (g *Guard) AssertDeletable(ctx context.Context, tx db.DBTX, assetID int64) error {
	ok, err := g.CanDelete(ctx, tx, assetID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrConflict("has lending history")
	}
	return nil
}
