package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"cardsync/server/ot"
)

func TestApplyToGameStateMoveCardUpdatesZone(t *testing.T) {
	gs := NewGameState([]string{"p1", "p2"}, 20)
	op := ot.Operation{
		Kind: ot.KindMoveCard,
		MoveCard: &ot.MoveCardPayload{CardID: "card1", From: ot.ZoneHand, To: ot.ZoneBattlefield},
	}
	ApplyToGameState(&gs, op)
	assert.Equal(t, "battlefield", gs.Cards["card1"].Zone)
}

func TestApplyToGameStateUpdateLifeAccumulates(t *testing.T) {
	gs := NewGameState([]string{"p1"}, 20)
	ApplyToGameState(&gs, ot.Operation{Kind: ot.KindUpdateLife, UpdateLife: &ot.UpdateLifePayload{PlayerID: "p1", Delta: -3}})
	ApplyToGameState(&gs, ot.Operation{Kind: ot.KindUpdateLife, UpdateLife: &ot.UpdateLifePayload{PlayerID: "p1", Delta: -2}})
	assert.Equal(t, int64(15), gs.Life["p1"])
}

func TestApplyToGameStateAddCounterAccumulatesPerType(t *testing.T) {
	gs := NewGameState([]string{"p1"}, 20)
	op := ot.Operation{Kind: ot.KindAddCounter, AddCounter: &ot.AddCounterPayload{CardID: "card1", CounterType: "+1/+1", Amount: 2}}
	ApplyToGameState(&gs, op)
	ApplyToGameState(&gs, op)
	assert.Equal(t, int64(4), gs.Cards["card1"].Counters["+1/+1"])
}

func TestApplyToGameStateEndTurnAdvancesActivePlayerAndResetsPhase(t *testing.T) {
	gs := NewGameState([]string{"p1", "p2"}, 20)
	gs.Phase = "combat"
	ApplyToGameState(&gs, ot.Operation{Kind: ot.KindEndTurn, EndTurn: &ot.EndTurnPayload{CurrentPlayerID: "p1", NextPlayerID: "p2"}})
	assert.Equal(t, "p2", gs.ActivePlayer)
	assert.Equal(t, "main", gs.Phase)
}

func TestApplyToGameStateTapCardTogglesState(t *testing.T) {
	gs := NewGameState([]string{"p1"}, 20)
	ApplyToGameState(&gs, ot.Operation{Kind: ot.KindTapCard, TapCard: &ot.TapCardPayload{CardID: "card1", Tapped: true}})
	assert.True(t, gs.Cards["card1"].Tapped)
	ApplyToGameState(&gs, ot.Operation{Kind: ot.KindTapCard, TapCard: &ot.TapCardPayload{CardID: "card1", Tapped: false}})
	assert.False(t, gs.Cards["card1"].Tapped)
}
