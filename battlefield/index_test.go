package battlefield

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func card(id, session string, x1, y1, x2, y2 float64) *IndexedCard {
	return &IndexedCard{
		CardID:    id,
		SessionID: session,
		IsActive:  true,
		BBox:      BoundingBox{X1: x1, Y1: y1, X2: x2, Y2: y2},
	}
}

func TestInsertRejectsDegenerateBoundingBox(t *testing.T) {
	idx := New()
	err := idx.Insert(&IndexedCard{CardID: "c1", SessionID: "s1", BBox: BoundingBox{X1: 5, Y1: 0, X2: 5, Y2: 10}})
	assert.Error(t, err)
}

func TestQueryViewportReturnsOnlyIntersectingActiveCardsInSession(t *testing.T) {
	idx := New()
	require.NoError(t, idx.Insert(card("c1", "s1", 0, 0, 10, 10)))
	require.NoError(t, idx.Insert(card("c2", "s1", 100, 100, 110, 110)))
	require.NoError(t, idx.Insert(card("c3", "s2", 0, 0, 10, 10)))

	results, err := idx.QueryViewport(BoundingBox{X1: -5, Y1: -5, X2: 20, Y2: 20}, "s1")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "c1", results[0].CardID)
}

func TestUpdateMovesCardFootprint(t *testing.T) {
	idx := New()
	require.NoError(t, idx.Insert(card("c1", "s1", 0, 0, 10, 10)))

	moved := card("c1", "s1", 200, 200, 210, 210)
	require.NoError(t, idx.Update("c1", moved))

	atOldPosition, err := idx.QueryViewport(BoundingBox{X1: -5, Y1: -5, X2: 20, Y2: 20}, "s1")
	require.NoError(t, err)
	assert.Empty(t, atOldPosition)

	atNewPosition, err := idx.QueryViewport(BoundingBox{X1: 195, Y1: 195, X2: 215, Y2: 215}, "s1")
	require.NoError(t, err)
	require.Len(t, atNewPosition, 1)
}

func TestRemoveUnknownCardErrors(t *testing.T) {
	idx := New()
	err := idx.Remove("ghost")
	assert.Error(t, err)
}

func TestClearSessionOnlyRemovesThatSession(t *testing.T) {
	idx := New()
	require.NoError(t, idx.Insert(card("c1", "s1", 0, 0, 10, 10)))
	require.NoError(t, idx.Insert(card("c2", "s2", 0, 0, 10, 10)))

	removed := idx.ClearSession("s1")
	assert.Equal(t, 1, removed)

	stats := idx.Stats()
	assert.Equal(t, 1, stats.PerSession["s2"])
	assert.Zero(t, stats.PerSession["s1"])
}
