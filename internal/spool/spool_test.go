package spool

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresmejia3/facepack/internal/types"
)

func openSpool(t *testing.T) *Spool {
	t.Helper()
	sp, err := Open(filepath.Join(t.TempDir(), "spool.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sp.Close() })
	return sp
}

func batch(seqs ...int) []types.CompactedFrame {
	out := make([]types.CompactedFrame, len(seqs))
	for i, seq := range seqs {
		out[i] = types.CompactedFrame{Seq: seq, T: 1000.5, DT: 2, Payload: []byte(`{"t":1000.5,"dt":2}` + "\n")}
	}
	return out
}

func TestSpool_PutPending(t *testing.T) {
	sp := openSpool(t)
	sp.now = func() time.Time { return time.UnixMilli(1700000000000) }
	ctx := context.Background()

	id1, err := sp.Put(ctx, "sess", "face_landmark", batch(0, 1))
	require.NoError(t, err)
	id2, err := sp.Put(ctx, "sess", "face_landmark", batch(2))
	require.NoError(t, err)
	assert.Greater(t, id2, id1)

	pending, err := sp.Pending(ctx, 0)
	require.NoError(t, err)
	require.Len(t, pending, 2)

	first := pending[0]
	assert.Equal(t, id1, first.ID)
	assert.Equal(t, "sess", first.Session)
	assert.Equal(t, "face_landmark", first.SeriesType)
	assert.Equal(t, batch(0, 1), first.Frames)
	assert.Equal(t, int64(1700000000000), first.CreatedAt.UnixMilli())

	limited, err := sp.Pending(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestSpool_CountDelete(t *testing.T) {
	sp := openSpool(t)
	ctx := context.Background()

	batches, frames, err := sp.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, batches)
	assert.Zero(t, frames)

	id, err := sp.Put(ctx, "s", "x", batch(0, 1, 2))
	require.NoError(t, err)
	_, err = sp.Put(ctx, "s", "x", batch(3))
	require.NoError(t, err)

	batches, frames, err = sp.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, batches)
	assert.Equal(t, 4, frames)

	require.NoError(t, sp.Delete(ctx, id))
	batches, frames, err = sp.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, batches)
	assert.Equal(t, 1, frames)
}

func TestSpool_MarkFailed(t *testing.T) {
	sp := openSpool(t)
	ctx := context.Background()

	id, err := sp.Put(ctx, "s", "x", batch(0))
	require.NoError(t, err)
	require.NoError(t, sp.MarkFailed(ctx, id))
	require.NoError(t, sp.MarkFailed(ctx, id))

	pending, err := sp.Pending(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, pending[0].Attempts)
}

func TestSpool_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spool.db")
	ctx := context.Background()

	sp, err := Open(path)
	require.NoError(t, err)
	_, err = sp.Put(ctx, "s", "x", batch(0))
	require.NoError(t, err)
	require.NoError(t, sp.Close())

	sp, err = Open(path)
	require.NoError(t, err)
	defer sp.Close()

	batches, _, err := sp.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, batches)
}
