package borrowers

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	ulid "github.com/oklog/ulid/v2"
)

// ===== Error model (assets/lending と同型) =====
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

// ===== Service =====
// 借り手台帳。貸出コアからは読み取りのみ参照される（スナップショット用）。

type Service struct {
	store *Store
}

func NewService(conn *sql.DB) *Service {
	return &Service{store: NewStore(conn)}
}

func (s *Service) CreateBorrower(ctx context.Context, in CreateBorrowerRequest) (BorrowerResponse, error) {
	if strings.TrimSpace(in.Name) == "" {
		return BorrowerResponse{}, ErrInvalid("name is required")
	}
	if strings.TrimSpace(in.Contact) == "" {
		return BorrowerResponse{}, ErrInvalid("contact is required")
	}

	id, err := s.store.Insert(ctx, ulid.Make().String(), strings.TrimSpace(in.Name), strings.TrimSpace(in.Contact))
	if err != nil {
		return BorrowerResponse{}, err
	}
	row, err := s.store.GetByID(ctx, id)
	if err != nil {
		return BorrowerResponse{}, err
	}
	return row.toDTO(), nil
}

func (s *Service) GetBorrower(ctx context.Context, id int64) (BorrowerResponse, error) {
	if id <= 0 {
		return BorrowerResponse{}, ErrInvalid("borrower_id must be > 0")
	}
	row, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return BorrowerResponse{}, ErrNotFound("borrower not found")
		}
		return BorrowerResponse{}, err
	}
	return row.toDTO(), nil
}

func (s *Service) ListBorrowers(ctx context.Context, q ListQuery) ([]BorrowerResponse, int64, error) {
	rows, total, err := s.store.List(ctx, q)
	if err != nil {
		return nil, 0, err
	}
	out := make([]BorrowerResponse, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toDTO())
	}
	return out, total, nil
}

func (s *Service) UpdateBorrower(ctx context.Context, id int64, in UpdateBorrowerRequest) (BorrowerResponse, error) {
	if id <= 0 {
		return BorrowerResponse{}, ErrInvalid("borrower_id must be > 0")
	}
	if in.Name != nil && strings.TrimSpace(*in.Name) == "" {
		return BorrowerResponse{}, ErrInvalid("name must not be empty")
	}
	if in.Contact != nil && strings.TrimSpace(*in.Contact) == "" {
		return BorrowerResponse{}, ErrInvalid("contact must not be empty")
	}

	aff, err := s.store.Update(ctx, id, in.Name, in.Contact)
	if err != nil {
		return BorrowerResponse{}, err
	}
	if aff == 0 {
		// 変更なし更新もあるので存在確認で切り分ける
		if _, gerr := s.store.GetByID(ctx, id); errors.Is(gerr, sql.ErrNoRows) {
			return BorrowerResponse{}, ErrNotFound("borrower not found")
		}
	}
	row, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return BorrowerResponse{}, ErrNotFound("borrower not found")
		}
		return BorrowerResponse{}, err
	}
	return row.toDTO(), nil
}

// DeleteBorrower は無条件削除。過去の貸出記録は貸出時スナップショットを
// 保持しているため、借り手を消しても監査証跡は欠けない。
func (s *Service) DeleteBorrower(ctx context.Context, id int64) error {
	if id <= 0 {
		return ErrInvalid("borrower_id must be > 0")
	}
	aff, err := s.store.Delete(ctx, id)
	if err != nil {
		return err
	}
	if aff == 0 {
		return ErrNotFound("borrower not found")
	}
	return nil
}
