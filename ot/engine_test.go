package ot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransformEmptyConcurrentOpsReturnsVerbatim(t *testing.T) {
	e := NewEngine()
	op := Operation{
		Kind: KindMoveCard, ClientID: "c1", Timestamp: 1, Version: VectorClock{},
		MoveCard: &MoveCardPayload{CardID: "card1", From: ZoneHand, To: ZoneBattlefield},
	}
	assert.Equal(t, op, e.Transform(op, nil))
}

func TestApplyIsIdempotent(t *testing.T) {
	e := NewEngine()
	op := Operation{
		Kind: KindTapCard, ClientID: "c1", Timestamp: 1, Version: VectorClock{"c1": 0},
		TapCard: &TapCardPayload{CardID: "card1", Tapped: true},
	}

	require.True(t, e.Apply(op))
	require.False(t, e.Apply(op))
	assert.Equal(t, 1, e.Stats().AppliedOperations)
}

func TestApplyRejectsInvalidOperation(t *testing.T) {
	e := NewEngine()
	bad := Operation{Kind: "Bogus", ClientID: "c1", Timestamp: 1, Version: VectorClock{}}
	assert.False(t, e.Apply(bad))
	assert.Equal(t, 0, e.Stats().AppliedOperations)
}

func TestTombstoneShadowsApply(t *testing.T) {
	e := NewEngine()
	e.AddTombstone("card1", "c1")

	op := Operation{
		Kind: KindMoveCard, ClientID: "c2", Timestamp: 1, Version: VectorClock{"c2": 0},
		MoveCard: &MoveCardPayload{CardID: "card1", From: ZoneHand, To: ZoneBattlefield},
	}
	assert.False(t, e.Apply(op))
	assert.Equal(t, 0, e.Stats().AppliedOperations)
}

func TestTransformSkipsTombstonedConcurrentOps(t *testing.T) {
	e := NewEngine()
	e.AddTombstone("card1", "c1")

	op1 := Operation{
		Kind: KindMoveCard, ClientID: "c2", Timestamp: 2, Version: VectorClock{"c2": 0},
		MoveCard: &MoveCardPayload{CardID: "card1", From: ZoneHand, To: ZoneGraveyard},
	}
	concurrent := Operation{
		Kind: KindMoveCard, ClientID: "c1", Timestamp: 1, Version: VectorClock{"c1": 0},
		MoveCard: &MoveCardPayload{CardID: "card1", From: ZoneHand, To: ZoneBattlefield},
	}

	result := e.Transform(op1, []Operation{concurrent})
	// concurrent's entity is tombstoned, so it's skipped: op1 passes through.
	assert.Equal(t, op1, result)
}

func TestTransformSkipsAlreadyAppliedConcurrentOps(t *testing.T) {
	e := NewEngine()
	applied := Operation{
		Kind: KindMoveCard, ClientID: "c1", Timestamp: 1, Version: VectorClock{"c1": 0},
		MoveCard: &MoveCardPayload{CardID: "card1", From: ZoneHand, To: ZoneBattlefield},
	}
	require.True(t, e.Apply(applied))

	op1 := Operation{
		Kind: KindMoveCard, ClientID: "c2", Timestamp: 2, Version: VectorClock{"c2": 0},
		MoveCard: &MoveCardPayload{CardID: "card1", From: ZoneHand, To: ZoneGraveyard},
	}
	result := e.Transform(op1, []Operation{applied})
	assert.Equal(t, op1, result)
}

func TestUnknownKindPairDefaultsToIdentity(t *testing.T) {
	e := NewEngine()
	op1 := Operation{
		Kind: KindChangePhase, ClientID: "c1", Timestamp: 1, Version: VectorClock{},
		ChangePhase: &ChangePhasePayload{FromPhase: "main", ToPhase: "combat"},
	}
	op2 := Operation{
		Kind: KindEndTurn, ClientID: "c2", Timestamp: 1, Version: VectorClock{},
		EndTurn: &EndTurnPayload{CurrentPlayerID: "p1", NextPlayerID: "p2"},
	}

	result := e.Transform(op1, []Operation{op2})
	assert.Equal(t, op1, result)
}

func TestResetClearsAppliedTombstonesAndBufferButKeepsMatrix(t *testing.T) {
	e := NewEngine()
	op := Operation{
		Kind: KindTapCard, ClientID: "c1", Timestamp: 1, Version: VectorClock{"c1": 0},
		TapCard: &TapCardPayload{CardID: "card1", Tapped: true},
	}
	e.Apply(op)
	e.AddTombstone("card2", "c1")

	statsBefore := e.Stats()
	require.Greater(t, statsBefore.AppliedOperations, 0)
	require.Greater(t, statsBefore.Tombstones, 0)

	e.Reset()
	stats := e.Stats()
	assert.Equal(t, 0, stats.AppliedOperations)
	assert.Equal(t, 0, stats.Tombstones)
	assert.Equal(t, 0, stats.BufferedResiduals)
	assert.Greater(t, stats.RegisteredPairs, 0, "matrix survives Reset")
}

// Convergence (spec.md §8 T1): two engines transforming a concurrent pair in
// either order must agree on the final winning clientId and final value.
func TestConvergence_TapCardVsTapCard(t *testing.T) {
	a := Operation{
		Kind: KindTapCard, ClientID: "c1", Timestamp: 1000, Version: VectorClock{"c1": 0},
		TapCard: &TapCardPayload{CardID: "card1", Tapped: true},
	}
	b := Operation{
		Kind: KindTapCard, ClientID: "c2", Timestamp: 2000, Version: VectorClock{"c2": 0},
		TapCard: &TapCardPayload{CardID: "card1", Tapped: false},
	}

	e1, e2 := NewEngine(), NewEngine()

	ta := e1.Transform(a, []Operation{b})
	tb1 := e2.Transform(b, []Operation{a})

	// Applying in either order: replica 1 applies transform(a,[b]) then b;
	// replica 2 applies transform(b,[a]) then a. Both must end up agreeing
	// that card1 is untapped (b's later timestamp wins).
	assert.Equal(t, b.TapCard.Tapped, ta.TapCard.Tapped)
	assert.Equal(t, b.TapCard.Tapped, tb1.TapCard.Tapped)
}
