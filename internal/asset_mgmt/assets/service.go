package assets

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	mysql "github.com/go-sql-driver/mysql"
	ulid "github.com/oklog/ulid/v2"

	"ATLAS-backend/internal/asset_mgmt/lending"
	"ATLAS-backend/internal/platform/db"
)

// ===== Error model =====
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

// DeletionGuard は削除前ポリシーチェック。貸出コア側が実装を提供する。
// 削除と同じTxの中で評価すること。
type DeletionGuard interface {
	AssertDeletable(ctx context.Context, tx db.DBTX, assetID int64) error
}

// assetStore は Service が使う永続層の契約。本体は *Store、テストはフェイク。
type assetStore interface {
	InsertAsset(ctx context.Context, in CreateAssetRequest, assetULID string) (int64, error)
	GetAssetByID(ctx context.Context, id int64) (*AssetResponse, error)
	ListAssets(ctx context.Context, q AssetSearchQuery, p Page) ([]AssetResponse, int64, error)
	UpdateAssetByID(ctx context.Context, id int64, in UpdateAssetRequest) (*AssetResponse, error)
	lockAssetRowTx(ctx context.Context, tx db.DBTX, id int64) error
	deleteAssetTx(ctx context.Context, tx db.DBTX, id int64) error
}

type Service struct {
	conn  *sql.DB
	store assetStore
	guard DeletionGuard
}

func NewService(conn *sql.DB, guard DeletionGuard) *Service {
	return &Service{conn: conn, store: NewStore(conn), guard: guard}
}

func (s *Service) CreateAsset(ctx context.Context, in CreateAssetRequest) (AssetResponse, error) {
	if in.Name == "" || in.CategoryID == 0 {
		return AssetResponse{}, ErrInvalid("name and category_id are required")
	}

	id, err := s.store.InsertAsset(ctx, in, ulid.Make().String())
	if err != nil {
		var me *mysql.MySQLError
		if errors.As(err, &me) {
			switch me.Number {
			case 1452: // foreign key constraint fails
				return AssetResponse{}, ErrInvalid("invalid category_id")
			case 1062: // duplicate key
				return AssetResponse{}, ErrConflict("duplicate asset")
			}
		}
		return AssetResponse{}, err
	}

	out, err := s.store.GetAssetByID(ctx, id)
	if err != nil {
		return AssetResponse{}, err
	}
	return *out, nil
}

func (s *Service) GetAsset(ctx context.Context, id int64) (AssetResponse, error) {
	out, err := s.store.GetAssetByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return AssetResponse{}, ErrNotFound("asset not found")
		}
		return AssetResponse{}, err
	}
	return *out, nil
}

func (s *Service) ListAssets(ctx context.Context, q AssetSearchQuery, p Page) ([]AssetResponse, int64, error) {
	return s.store.ListAssets(ctx, q, p)
}

func (s *Service) UpdateAsset(ctx context.Context, id int64, in UpdateAssetRequest) (AssetResponse, error) {
	if in.Name != nil && *in.Name == "" {
		return AssetResponse{}, ErrInvalid("name must not be empty")
	}
	out, err := s.store.UpdateAssetByID(ctx, id, in)
	if err != nil {
		if err == sql.ErrNoRows {
			return AssetResponse{}, ErrNotFound("asset not found")
		}
		var me *mysql.MySQLError
		if errors.As(err, &me) && me.Number == 1452 {
			return AssetResponse{}, ErrInvalid("invalid category_id")
		}
		return AssetResponse{}, err
	}
	return *out, nil
}

// DeleteAsset は行ロック → Deletion Guard → DELETE を1Txで行う。
// 貸出記録が1件でも残る資産は、返却済みであっても削除できない。
func (s *Service) DeleteAsset(ctx context.Context, id int64) error {
	return db.RunInTx(ctx, s.conn, &sql.TxOptions{}, func(ctx context.Context, tx db.DBTX) error {
		return s.execDeleteAsset(ctx, tx, id)
	})
}

func (s *Service) execDeleteAsset(ctx context.Context, tx db.DBTX, id int64) error {
	if err := s.store.lockAssetRowTx(ctx, tx, id); err != nil {
		if err == sql.ErrNoRows {
			return ErrNotFound("asset not found")
		}
		return err
	}
	if err := s.guard.AssertDeletable(ctx, tx, id); err != nil {
		var lerr *lending.APIError
		if errors.As(err, &lerr) && lerr.Code == lending.CodeConflict {
			return ErrConflict("asset has lending history")
		}
		return err
	}
	return s.store.deleteAssetTx(ctx, tx, id)
}
