package lending

import (
	"context"
	"errors"
	"fmt"

	mysql "github.com/go-sql-driver/mysql"
)

// ===== Error model (assets/borrowers/maintenance と同型、コード追加あり) =====

type Code string

const (
	CodeInvalidArgument Code = "INVALID_ARGUMENT"
	CodeNotFound        Code = "NOT_FOUND"
	CodeConflict        Code = "CONFLICT"
	CodeTimeout         Code = "TIMEOUT"
	// 台帳とステータスが食い違っている等、コアが保証すべき不変条件の破れ。
	// 呼び出し側には一般的な失敗として返し、詳細はログにのみ出す。
	CodeInconsistent Code = "INTERNAL_INCONSISTENCY"
	CodeInternal     Code = "INTERNAL"
)

type APIError struct {
	Code    Code
	Message string
}

func (e *APIError) Error() string        { return fmt.Sprintf("%s: %s", e.Code, e.Message) }
func ErrInvalid(msg string) *APIError    { return &APIError{Code: CodeInvalidArgument, Message: msg} }
func ErrNotFound(msg string) *APIError   { return &APIError{Code: CodeNotFound, Message: msg} }
func ErrConflict(msg string) *APIError   { return &APIError{Code: CodeConflict, Message: msg} }
func ErrTimeout(msg string) *APIError    { return &APIError{Code: CodeTimeout, Message: msg} }
func ErrInconsist(msg string) *APIError  { return &APIError{Code: CodeInconsistent, Message: msg} }
func ErrInternal(msg string) *APIError   { return &APIError{Code: CodeInternal, Message: msg} }

func ToHTTPStatus(err error) int {
	var api *APIError
	if errors.As(err, &api) {
		switch api.Code {
		case CodeInvalidArgument:
			return 400
		case CodeNotFound:
			return 404
		case CodeConflict:
			return 409
		case CodeTimeout:
			return 503
		default:
			return 500
		}
	}
	return 500
}

// wrapDBError はドライバ由来のエラーをAPIエラーへ寄せる。
// 1205: lock wait timeout / 1213: deadlock victim はどちらもリトライ可能なので TIMEOUT 扱い。
func wrapDBError(err error) error {
	if err == nil {
		return nil
	}
	var api *APIError
	if errors.As(err, &api) {
		return api
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout("could not acquire the asset row in time, retry later")
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		switch me.Number {
		case 1205:
			return ErrTimeout("lock wait timeout, retry later")
		case 1213:
			return ErrTimeout("transaction aborted by deadlock, retry later")
		case 1062:
			return ErrConflict("duplicate key")
		}
	}
	return err
}
