package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordAndEntries(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "runs.sqlite3")
	j, err := Open(path)
	require.NoError(t, err)

	at := time.UnixMilli(1_700_000_000_000)
	require.NoError(t, j.Record(ctx, Entry{RunID: "a", Algorithm: "bptt", Epoch: 0, Error: 3.5, LearningRate: 0.1, Momentum: 0.9, RecordedAt: at}))
	require.NoError(t, j.Record(ctx, Entry{RunID: "b", Algorithm: "search", Epoch: 0, Error: 9, Magnitude: 0.2}))
	require.NoError(t, j.Record(ctx, Entry{RunID: "a", Algorithm: "bptt", Epoch: 1, Error: 3.1, LearningRate: 0.1, Momentum: 0.9, RecordedAt: at}))
	require.NoError(t, j.Close())

	j, err = Open(path)
	require.NoError(t, err)
	defer j.Close()

	entries, err := j.Entries(ctx, "a")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, Entry{RunID: "a", Algorithm: "bptt", Epoch: 0, Error: 3.5, LearningRate: 0.1, Momentum: 0.9, RecordedAt: at}, entries[0])
	assert.Equal(t, 1, entries[1].Epoch)

	other, err := j.Entries(ctx, "b")
	require.NoError(t, err)
	require.Len(t, other, 1)
	assert.Equal(t, 0.2, other[0].Magnitude)
	assert.False(t, other[0].RecordedAt.IsZero())

	none, err := j.Entries(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, none)
}
