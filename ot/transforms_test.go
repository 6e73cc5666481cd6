package ot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Scenario 1 (spec.md §8): concurrent MoveCard to different destinations.
func TestTransformMoveCardVsMoveCard_ConcurrentDifferentDestinations(t *testing.T) {
	base := VectorClock{"c1": 0, "c2": 0}
	op1 := Operation{
		Kind: KindMoveCard, ClientID: "c1", Timestamp: 1000, Version: base.Copy(),
		MoveCard: &MoveCardPayload{CardID: "card1", From: ZoneHand, To: ZoneBattlefield},
	}
	op2 := Operation{
		Kind: KindMoveCard, ClientID: "c2", Timestamp: 1000, Version: base.Copy(),
		MoveCard: &MoveCardPayload{CardID: "card1", From: ZoneHand, To: ZoneGraveyard},
	}

	m := NewDefaultMatrix()
	t1 := m.Lookup(KindMoveCard, KindMoveCard)(op1, op2).Transformed
	t2 := m.Lookup(KindMoveCard, KindMoveCard)(op2, op1).Transformed

	// c1 < c2 lexicographically, so op1 wins and passes through unchanged.
	require.Equal(t, ZoneBattlefield, t1.MoveCard.To)
	// op2 loses: its `from` is rewritten to the winner's `to`.
	require.Equal(t, ZoneBattlefield, t2.MoveCard.From)
	// op2's own destination is left intact (Open Question (b)).
	require.Equal(t, ZoneGraveyard, t2.MoveCard.To)
}

// Scenario 2: tap after move is identity (orthogonal domains).
func TestTransformTapVsMove_Identity(t *testing.T) {
	move := Operation{
		Kind: KindMoveCard, ClientID: "c1", Timestamp: 1, Version: VectorClock{"c1": 0},
		MoveCard: &MoveCardPayload{CardID: "card1", From: ZoneHand, To: ZoneBattlefield},
	}
	tap := Operation{
		Kind: KindTapCard, ClientID: "c2", Timestamp: 2, Version: VectorClock{"c2": 0},
		TapCard: &TapCardPayload{CardID: "card1", Tapped: true},
	}

	m := NewDefaultMatrix()
	result := m.Lookup(KindTapCard, KindMoveCard)(tap, move).Transformed
	assert.Equal(t, tap, result)
}

// Scenario 3: conflicting taps converge on the later timestamp's value.
func TestTransformTapVsTap_LaterTimestampWins(t *testing.T) {
	t1 := Operation{
		Kind: KindTapCard, ClientID: "c1", Timestamp: 1000, Version: VectorClock{"c1": 0},
		TapCard: &TapCardPayload{CardID: "card1", Tapped: true},
	}
	t2 := Operation{
		Kind: KindTapCard, ClientID: "c2", Timestamp: 2000, Version: VectorClock{"c2": 0},
		TapCard: &TapCardPayload{CardID: "card1", Tapped: false},
	}

	m := NewDefaultMatrix()
	r1 := m.Lookup(KindTapCard, KindTapCard)(t1, t2).Transformed
	r2 := m.Lookup(KindTapCard, KindTapCard)(t2, t1).Transformed

	assert.False(t, r1.TapCard.Tapped)
	assert.False(t, r2.TapCard.Tapped)
}

// Scenario 4: additive counters are commutative; identity transform both ways.
func TestTransformAddCounterVsAddCounter_Identity(t *testing.T) {
	c1 := Operation{
		Kind: KindAddCounter, ClientID: "c1", Timestamp: 1, Version: VectorClock{"c1": 0},
		AddCounter: &AddCounterPayload{CardID: "card1", CounterType: "+1/+1", Amount: 2},
	}
	c2 := Operation{
		Kind: KindAddCounter, ClientID: "c2", Timestamp: 1, Version: VectorClock{"c2": 0},
		AddCounter: &AddCounterPayload{CardID: "card1", CounterType: "+1/+1", Amount: 3},
	}

	m := NewDefaultMatrix()
	r1 := m.Lookup(KindAddCounter, KindAddCounter)(c1, c2).Transformed
	r2 := m.Lookup(KindAddCounter, KindAddCounter)(c2, c1).Transformed

	assert.Equal(t, int64(2), r1.AddCounter.Amount)
	assert.Equal(t, int64(3), r2.AddCounter.Amount)
}

func TestTransformPlayVsPlay_LoserOffsetByTen(t *testing.T) {
	p1 := Operation{
		Kind: KindPlayCard, ClientID: "a-client", Timestamp: 1, Version: VectorClock{},
		PlayCard: &PlayCardPayload{CardID: "card1", Position: Position{X: 5, Y: 5}},
	}
	p2 := Operation{
		Kind: KindPlayCard, ClientID: "z-client", Timestamp: 1, Version: VectorClock{},
		PlayCard: &PlayCardPayload{CardID: "card1", Position: Position{X: 10, Y: 10}},
	}

	m := NewDefaultMatrix()
	// a-client < z-client, so p1 wins untouched.
	winnerResult := m.Lookup(KindPlayCard, KindPlayCard)(p1, p2).Transformed
	assert.Equal(t, 5.0, winnerResult.PlayCard.Position.X)

	// p2 loses and is nudged by +10,+10.
	loserResult := m.Lookup(KindPlayCard, KindPlayCard)(p2, p1).Transformed
	assert.Equal(t, 20.0, loserResult.PlayCard.Position.X)
	assert.Equal(t, 20.0, loserResult.PlayCard.Position.Y)
}

func TestIntentionPreservation_DifferentCardsIdentity(t *testing.T) {
	a := Operation{
		Kind: KindMoveCard, ClientID: "c1", Timestamp: 1, Version: VectorClock{},
		MoveCard: &MoveCardPayload{CardID: "card1", From: ZoneHand, To: ZoneBattlefield},
	}
	b := Operation{
		Kind: KindMoveCard, ClientID: "c2", Timestamp: 1, Version: VectorClock{},
		MoveCard: &MoveCardPayload{CardID: "card2", From: ZoneHand, To: ZoneGraveyard},
	}

	m := NewDefaultMatrix()
	result := m.Lookup(KindMoveCard, KindMoveCard)(a, b).Transformed
	assert.Equal(t, a, result)
}
