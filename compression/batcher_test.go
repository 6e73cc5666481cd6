package compression

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cardsync/server/ot"
)

func tapOp(client string) ot.Operation {
	return ot.Operation{
		Kind: ot.KindTapCard, ClientID: client, Timestamp: time.Now().UnixMilli(),
		Version: ot.VectorClock{client: 1},
		TapCard: &ot.TapCardPayload{CardID: "card1", Tapped: true},
	}
}

func TestAddFlushesOnceBatchSizeReached(t *testing.T) {
	b := NewBatcher(3, time.Hour)
	defer b.Stop()

	var mu sync.Mutex
	var flushed *Batch
	b.SetFlushFunc(func(sessionID string, batch *Batch) {
		mu.Lock()
		defer mu.Unlock()
		flushed = batch
	})

	b.Add("s1", tapOp("c1"))
	b.Add("s1", tapOp("c1"))
	mu.Lock()
	require.Nil(t, flushed)
	mu.Unlock()

	b.Add("s1", tapOp("c1"))

	mu.Lock()
	defer mu.Unlock()
	require.NotNil(t, flushed)
	assert.Len(t, flushed.Operations, 3)
	assert.Equal(t, 0, b.Stats().PendingMessages)
}

func TestManualFlushEmptiesBatch(t *testing.T) {
	b := NewBatcher(100, time.Hour)
	defer b.Stop()

	flushes := 0
	b.SetFlushFunc(func(sessionID string, batch *Batch) { flushes++ })

	b.Add("s1", tapOp("c1"))
	b.Flush("s1")

	assert.Equal(t, 1, flushes)
	assert.Equal(t, 0, b.Stats().PendingBatches)
}

func TestFlushOnEmptySessionIsNoop(t *testing.T) {
	b := NewBatcher(10, time.Hour)
	defer b.Stop()

	flushes := 0
	b.SetFlushFunc(func(sessionID string, batch *Batch) { flushes++ })
	b.Flush("never-touched")
	assert.Equal(t, 0, flushes)
}

func TestCompressDecompressRoundTrip(t *testing.T) {
	original := map[string]string{"hello": "world"}

	compressed, result, err := CompressJSON(original)
	require.NoError(t, err)
	require.NotEmpty(t, compressed)
	assert.Greater(t, result.OriginalSize, 0)

	var out map[string]string
	require.NoError(t, DecompressJSON(compressed, &out))
	assert.Equal(t, original, out)
}

func TestDecompressRejectsGarbage(t *testing.T) {
	var out map[string]string
	err := DecompressJSON([]byte("not gzip data"), &out)
	assert.Error(t, err)
}
