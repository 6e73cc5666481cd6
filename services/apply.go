package services

import (
	"cardsync/server/ot"
)

// ApplyToGameState mutates draft according to op's effect on the table.
// This is the host-level counterpart to ot.Engine.Apply: the engine decides
// whether an operation is admissible (not a duplicate, not tombstoned); this
// function decides what the operation actually does to the shared game
// state once admitted. Grounded on the shape of the teacher's
// updateUserState (ot.go), which plays a similar per-operation-kind role
// against RoomState.
func ApplyToGameState(draft *GameState, op ot.Operation) {
	switch op.Kind {
	case ot.KindMoveCard:
		p := op.MoveCard
		card := draft.Cards[p.CardID]
		card.CardID = p.CardID
		card.Zone = string(p.To)
		draft.Cards[p.CardID] = card

	case ot.KindTapCard:
		p := op.TapCard
		card := draft.Cards[p.CardID]
		card.CardID = p.CardID
		card.Tapped = p.Tapped
		draft.Cards[p.CardID] = card

	case ot.KindDrawCard:
		p := op.DrawCard
		card := draft.Cards[p.CardID]
		card.CardID = p.CardID
		card.OwnerID = p.PlayerID
		card.Zone = "hand"
		draft.Cards[p.CardID] = card

	case ot.KindPlayCard:
		p := op.PlayCard
		card := draft.Cards[p.CardID]
		card.CardID = p.CardID
		card.Zone = "battlefield"
		card.X = p.Position.X
		card.Y = p.Position.Y
		draft.Cards[p.CardID] = card

	case ot.KindUpdateLife:
		p := op.UpdateLife
		if draft.Life == nil {
			draft.Life = make(map[string]int64)
		}
		draft.Life[p.PlayerID] += p.Delta

	case ot.KindAddCounter:
		p := op.AddCounter
		card := draft.Cards[p.CardID]
		card.CardID = p.CardID
		if card.Counters == nil {
			card.Counters = make(map[string]int64)
		}
		card.Counters[p.CounterType] += p.Amount
		draft.Cards[p.CardID] = card

	case ot.KindChangePhase:
		p := op.ChangePhase
		draft.Phase = p.ToPhase

	case ot.KindEndTurn:
		p := op.EndTurn
		draft.ActivePlayer = p.NextPlayerID
		draft.Phase = "main"
	}
}
