package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cardsync/server/ot"
)

type gameData struct {
	Life map[string]int64 `json:"life"`
}

func TestCreateStateRegistersRootAsHead(t *testing.T) {
	m := NewManager[gameData]("c1")
	snap, err := m.CreateState(gameData{Life: map[string]int64{"p1": 20}}, "")
	require.NoError(t, err)

	head, ok := m.Head()
	require.True(t, ok)
	assert.Equal(t, snap.ID, head.ID)
	assert.Equal(t, ot.VectorClock{"c1": 0}, snap.Version)
}

func TestUpdateStateIncrementsOwnClockAndPreservesParent(t *testing.T) {
	m := NewManager[gameData]("c1")
	root, err := m.CreateState(gameData{Life: map[string]int64{"p1": 20}}, "")
	require.NoError(t, err)

	child, err := m.UpdateState(root.ID, func(d *gameData) *gameData {
		d.Life["p1"] = 18
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, int64(18), child.Data.Life["p1"])
	assert.Equal(t, int64(20), root.Data.Life["p1"], "parent snapshot must not be mutated")
	assert.Equal(t, ot.VectorClock{"c1": 1}, child.Version)
	assert.Equal(t, root.Version, child.ParentVersion)
}

func TestUpdateStateUnknownParentReturnsStateNotFound(t *testing.T) {
	m := NewManager[gameData]("c1")
	_, err := m.UpdateState("does-not-exist", func(d *gameData) *gameData { return nil })
	assert.ErrorIs(t, err, ErrStateNotFound)
}

func TestUpdateStateSequentialCallsAreMonotonic(t *testing.T) {
	m := NewManager[gameData]("c1")
	root, err := m.CreateState(gameData{Life: map[string]int64{"p1": 20}}, "")
	require.NoError(t, err)

	first, err := m.UpdateState(root.ID, func(d *gameData) *gameData { d.Life["p1"]--; return nil })
	require.NoError(t, err)
	second, err := m.UpdateState(first.ID, func(d *gameData) *gameData { d.Life["p1"]--; return nil })
	require.NoError(t, err)

	assert.Equal(t, int64(1), first.Version["c1"])
	assert.Equal(t, int64(2), second.Version["c1"])
}

func TestChecksumDetectsTampering(t *testing.T) {
	m := NewManager[gameData]("c1")
	snap, err := m.CreateState(gameData{Life: map[string]int64{"p1": 20}}, "")
	require.NoError(t, err)
	require.True(t, m.ValidateChecksum(snap))

	snap.Data.Life["p1"] = 999
	assert.False(t, m.ValidateChecksum(snap))
}

func TestMergeRemoteStateRejectsBadChecksum(t *testing.T) {
	m := NewManager[gameData]("c1")
	bad := Snapshot[gameData]{
		ID:       "remote-1",
		Version:  ot.VectorClock{"c2": 0},
		Data:     gameData{Life: map[string]int64{"p1": 20}},
		Checksum: "not-a-real-checksum",
	}

	_, err := m.MergeRemoteState(bad)
	assert.ErrorIs(t, err, ErrInvalidChecksum)

	meta := m.GetHistoryMetadata()
	assert.Equal(t, 0, meta.StateCount)
}

func TestMergeRemoteStateIsIdempotentOnKnownID(t *testing.T) {
	m := NewManager[gameData]("c1")
	root, err := m.CreateState(gameData{Life: map[string]int64{"p1": 20}}, "")
	require.NoError(t, err)

	second := NewManager[gameData]("c2")
	merged, err := second.MergeRemoteState(root)
	require.NoError(t, err)
	assert.Equal(t, root.ID, merged.ID)

	again, err := second.MergeRemoteState(root)
	require.NoError(t, err)
	assert.Equal(t, root.ID, again.ID)
	assert.Equal(t, 1, second.GetHistoryMetadata().StateCount)
}

func TestMergeRemoteStateAdvancesHeadWhenCausallyNewer(t *testing.T) {
	origin := NewManager[gameData]("c1")
	root, err := origin.CreateState(gameData{Life: map[string]int64{"p1": 20}}, "")
	require.NoError(t, err)
	next, err := origin.UpdateState(root.ID, func(d *gameData) *gameData { d.Life["p1"] = 15; return nil })
	require.NoError(t, err)

	replica := NewManager[gameData]("c2")
	_, err = replica.MergeRemoteState(root)
	require.NoError(t, err)
	head, err := replica.MergeRemoteState(next)
	require.NoError(t, err)

	current, ok := replica.Head()
	require.True(t, ok)
	assert.Equal(t, head.ID, current.ID)
}

func TestGetStateAtVersionExactMatch(t *testing.T) {
	m := NewManager[gameData]("c1")
	root, err := m.CreateState(gameData{Life: map[string]int64{"p1": 20}}, "")
	require.NoError(t, err)

	found, ok := m.GetStateAtVersion(root.Version)
	require.True(t, ok)
	assert.Equal(t, root.ID, found.ID)
}

func TestGetStateAtVersionFallsBackToNearestAncestor(t *testing.T) {
	m := NewManager[gameData]("c1")
	root, err := m.CreateState(gameData{Life: map[string]int64{"p1": 20}}, "")
	require.NoError(t, err)
	mid, err := m.UpdateState(root.ID, func(d *gameData) *gameData { d.Life["p1"] = 19; return nil })
	require.NoError(t, err)
	_, err = m.UpdateState(mid.ID, func(d *gameData) *gameData { d.Life["p1"] = 18; return nil })
	require.NoError(t, err)

	// A version that was never recorded (e.g. from a replica that skipped an
	// intermediate broadcast) should resolve to the nearest known ancestor.
	query := ot.VectorClock{"c1": 5}
	found, ok := m.GetStateAtVersion(query)
	require.True(t, ok)
	assert.Equal(t, int64(18), found.Data.Life["p1"])
}

func TestGetStateAtVersionNoAncestorReturnsNotFound(t *testing.T) {
	m := NewManager[gameData]("c1")
	_, ok := m.GetStateAtVersion(ot.VectorClock{"c1": 9})
	assert.False(t, ok)
}

func TestClearHistoryEmptiesManager(t *testing.T) {
	m := NewManager[gameData]("c1")
	_, err := m.CreateState(gameData{Life: map[string]int64{"p1": 20}}, "")
	require.NoError(t, err)

	m.ClearHistory()
	meta := m.GetHistoryMetadata()
	assert.Equal(t, 0, meta.StateCount)
	assert.Empty(t, meta.Head)
	_, ok := m.Head()
	assert.False(t, ok)
}

func TestGetHistoryOrderedByTimestamp(t *testing.T) {
	m := NewManager[gameData]("c1")
	root, err := m.CreateState(gameData{Life: map[string]int64{"p1": 20}}, "")
	require.NoError(t, err)
	child, err := m.UpdateState(root.ID, func(d *gameData) *gameData { d.Life["p1"] = 19; return nil })
	require.NoError(t, err)

	history := m.GetHistory()
	require.Len(t, history, 2)
	assert.Equal(t, root.ID, history[0].ID)
	assert.Equal(t, child.ID, history[1].ID)
}
