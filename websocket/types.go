package websocket

import (
	"encoding/json"
	"fmt"

	"cardsync/server/ot"
)

// Envelope is the wire frame exchanged with clients, matching spec.md §6:
// {type, clientId, timestamp, version, data}. Type carries the operation's
// Kind as a string tag and Data carries its kind-specific payload, kept as
// raw JSON until ToOperation dispatches it into the right ot.Operation field.
// Grounded on the teacher's client.go Message{Type, Data json.RawMessage}.
type Envelope struct {
	Type      string          `json:"type"`
	ClientID  string          `json:"clientId"`
	Timestamp int64           `json:"timestamp"`
	Version   ot.VectorClock  `json:"version"`
	Data      json.RawMessage `json:"data"`
}

// ToOperation decodes e's Data into the payload matching e.Type and returns
// the assembled operation.
func (e Envelope) ToOperation() (ot.Operation, error) {
	op := ot.Operation{
		Kind:      ot.Kind(e.Type),
		ClientID:  e.ClientID,
		Timestamp: e.Timestamp,
		Version:   e.Version,
	}

	var err error
	switch op.Kind {
	case ot.KindMoveCard:
		var p ot.MoveCardPayload
		err = json.Unmarshal(e.Data, &p)
		op.MoveCard = &p
	case ot.KindTapCard:
		var p ot.TapCardPayload
		err = json.Unmarshal(e.Data, &p)
		op.TapCard = &p
	case ot.KindDrawCard:
		var p ot.DrawCardPayload
		err = json.Unmarshal(e.Data, &p)
		op.DrawCard = &p
	case ot.KindPlayCard:
		var p ot.PlayCardPayload
		err = json.Unmarshal(e.Data, &p)
		op.PlayCard = &p
	case ot.KindUpdateLife:
		var p ot.UpdateLifePayload
		err = json.Unmarshal(e.Data, &p)
		op.UpdateLife = &p
	case ot.KindAddCounter:
		var p ot.AddCounterPayload
		err = json.Unmarshal(e.Data, &p)
		op.AddCounter = &p
	case ot.KindChangePhase:
		var p ot.ChangePhasePayload
		err = json.Unmarshal(e.Data, &p)
		op.ChangePhase = &p
	case ot.KindEndTurn:
		var p ot.EndTurnPayload
		err = json.Unmarshal(e.Data, &p)
		op.EndTurn = &p
	default:
		return ot.Operation{}, fmt.Errorf("websocket: unknown envelope type %q", e.Type)
	}
	if err != nil {
		return ot.Operation{}, fmt.Errorf("websocket: decode %s payload: %w", e.Type, err)
	}
	return op, nil
}

// FromOperation builds the wire envelope for op, the inverse of ToOperation.
func FromOperation(op ot.Operation) (Envelope, error) {
	var payload interface{}
	switch op.Kind {
	case ot.KindMoveCard:
		payload = op.MoveCard
	case ot.KindTapCard:
		payload = op.TapCard
	case ot.KindDrawCard:
		payload = op.DrawCard
	case ot.KindPlayCard:
		payload = op.PlayCard
	case ot.KindUpdateLife:
		payload = op.UpdateLife
	case ot.KindAddCounter:
		payload = op.AddCounter
	case ot.KindChangePhase:
		payload = op.ChangePhase
	case ot.KindEndTurn:
		payload = op.EndTurn
	default:
		return Envelope{}, fmt.Errorf("websocket: unknown operation kind %q", op.Kind)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("websocket: encode %s payload: %w", op.Kind, err)
	}
	return Envelope{
		Type:      string(op.Kind),
		ClientID:  op.ClientID,
		Timestamp: op.Timestamp,
		Version:   op.Version,
		Data:      data,
	}, nil
}

// JoinMessage is sent by a client immediately after connecting, asking to
// join sessionID. Generalized from the teacher's UserJoinMessage
// (room_id/user_id -> session_id/player_id).
type JoinMessage struct {
	Type        string `json:"type"`
	PlayerID    string `json:"player_id"`
	SessionID   string `json:"session_id"`
	DisplayName string `json:"display_name"`
}

// HostTransferMessage asks the current host to hand control to another
// player. Generalized from the teacher's AdminTransferMessage.
type HostTransferMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
	NewHostID string `json:"new_host_id"`
}

// PlayerLeaveMessage describes a player disconnect. handlePlayerLeave does
// not send this type; it broadcasts a "player_left" map with player_id and
// timestamp.
type PlayerLeaveMessage struct {
	Type      string `json:"type"`
	PlayerID  string `json:"player_id"`
	SessionID string `json:"session_id"`
}

// BroadcastMessage is an already-serialized payload destined for every
// client in one session.
type BroadcastMessage struct {
	SessionID string
	Payload   []byte
}
