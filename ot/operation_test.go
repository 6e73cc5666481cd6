package ot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func moveOp(clientID string, ts int64, cardID string, from, to Zone) Operation {
	return Operation{
		Kind:      KindMoveCard,
		ClientID:  clientID,
		Timestamp: ts,
		Version:   VectorClock{clientID: 0},
		MoveCard:  &MoveCardPayload{CardID: cardID, From: from, To: to},
	}
}

func TestValidateRejectsUnknownKind(t *testing.T) {
	op := Operation{Kind: "Frobnicate", ClientID: "c1", Timestamp: 1, Version: VectorClock{}}
	require.Error(t, Validate(op))
}

func TestValidateRejectsInvalidZone(t *testing.T) {
	op := moveOp("c1", 1, "card1", "dungeon", ZoneHand)
	require.Error(t, Validate(op))
}

func TestValidateAcceptsWellFormedOperation(t *testing.T) {
	op := moveOp("c1", 1, "card1", ZoneHand, ZoneBattlefield)
	require.NoError(t, Validate(op))
}

func TestValidateRequiresPayloadFields(t *testing.T) {
	op := Operation{Kind: KindTapCard, ClientID: "c1", Timestamp: 1, Version: VectorClock{}}
	require.Error(t, Validate(op))
}

func TestAffectsSameEntityByCardID(t *testing.T) {
	a := moveOp("c1", 1, "card1", ZoneHand, ZoneBattlefield)
	b := Operation{
		Kind: KindTapCard, ClientID: "c2", Timestamp: 2, Version: VectorClock{},
		TapCard: &TapCardPayload{CardID: "card1", Tapped: true},
	}
	assert.True(t, AffectsSameEntity(a, b))
}

func TestAffectsSameEntityFalseForDifferentCards(t *testing.T) {
	a := moveOp("c1", 1, "card1", ZoneHand, ZoneBattlefield)
	b := moveOp("c2", 2, "card2", ZoneHand, ZoneBattlefield)
	assert.False(t, AffectsSameEntity(a, b))
}

func TestCloneIsIndependent(t *testing.T) {
	orig := moveOp("c1", 1, "card1", ZoneHand, ZoneBattlefield)
	clone := orig.Clone()
	clone.MoveCard.To = ZoneGraveyard
	clone.Version["c1"] = 99

	assert.Equal(t, ZoneBattlefield, orig.MoveCard.To)
	assert.Equal(t, int64(0), orig.Version["c1"])
}

func TestIdentityTuple(t *testing.T) {
	op := moveOp("c1", 1000, "card1", ZoneHand, ZoneBattlefield)
	id := op.Identity()
	assert.Equal(t, Identity{ClientID: "c1", Timestamp: 1000, Kind: KindMoveCard}, id)
}
