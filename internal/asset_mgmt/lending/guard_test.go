package lending

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ATLAS-backend/internal/platform/db"
)

type fakeHistory struct {
	has map[int64]bool
	err error
}

func (f *fakeHistory) HasHistoryTx(_ context.Context, _ db.DBTX, assetID int64) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.has[assetID], nil
}

func TestGuard_AssertDeletable(t *testing.T) {
	g := &Guard{store: &fakeHistory{has: map[int64]bool{1: true}}}

	// 記録あり（返却済みでも）は削除不可
	err := g.AssertDeletable(context.Background(), nil, 1)
	assertCode(t, err, CodeConflict)

	// 記録なしは削除可
	assert.NoError(t, g.AssertDeletable(context.Background(), nil, 2))
}

func TestGuard_CanDelete(t *testing.T) {
	g := &Guard{store: &fakeHistory{has: map[int64]bool{7: true}}}

	ok, err := g.CanDelete(context.Background(), nil, 7)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = g.CanDelete(context.Background(), nil, 8)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestGuard_PropagatesStoreError(t *testing.T) {
	boom := errors.New("db down")
	g := &Guard{store: &fakeHistory{err: boom}}

	_, err := g.CanDelete(context.Background(), nil, 1)
	assert.ErrorIs(t, err, boom)
}
