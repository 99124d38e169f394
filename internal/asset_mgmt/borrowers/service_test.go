package borrowers

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// バリデーションで弾かれる入力は store に到達しない
func TestCreateBorrower_Validation(t *testing.T) {
	svc := &Service{}

	_, err := svc.CreateBorrower(context.Background(), CreateBorrowerRequest{Name: "", Contact: "a@example.com"})
	assertCode(t, err, CodeInvalidArgument)

	_, err = svc.CreateBorrower(context.Background(), CreateBorrowerRequest{Name: "  ", Contact: "a@example.com"})
	assertCode(t, err, CodeInvalidArgument)

	_, err = svc.CreateBorrower(context.Background(), CreateBorrowerRequest{Name: "Sato", Contact: ""})
	assertCode(t, err, CodeInvalidArgument)
}

func TestUpdateBorrower_Validation(t *testing.T) {
	svc := &Service{}
	empty := " "

	_, err := svc.UpdateBorrower(context.Background(), 0, UpdateBorrowerRequest{})
	assertCode(t, err, CodeInvalidArgument)

	_, err = svc.UpdateBorrower(context.Background(), 1, UpdateBorrowerRequest{Name: &empty})
	assertCode(t, err, CodeInvalidArgument)

	_, err = svc.UpdateBorrower(context.Background(), 1, UpdateBorrowerRequest{Contact: &empty})
	assertCode(t, err, CodeInvalidArgument)
}

func TestDeleteBorrower_Validation(t *testing.T) {
	svc := &Service{}
	err := svc.DeleteBorrower(context.Background(), -5)
	assertCode(t, err, CodeInvalidArgument)
}

func assertCode(t *testing.T, err error, want Code) {
	t.Helper()
	require.Error(t, err)
	var api *APIError
	require.True(t, errors.As(err, &api), "expected *APIError, got %T: %v", err, err)
	assert.Equal(t, want, api.Code)
}
