package services

// CardState is one card's current position in the game: which zone it's in,
// whether it's tapped, and any counters stacked on it.
type CardState struct {
	CardID   string           `json:"card_id"`
	OwnerID  string           `json:"owner_id"`
	Zone     string           `json:"zone"`
	Tapped   bool             `json:"tapped"`
	X        float64          `json:"x"`
	Y        float64          `json:"y"`
	Counters map[string]int64 `json:"counters,omitempty"`
}

// GameState is the opaque payload state.Manager[Data] carries for a
// cardsync session: every player's life total, every card's zone/position,
// and whose turn it is. This is the Data type every ot.Operation eventually
// mutates via services.ApplyToGameState.
type GameState struct {
	Players      []string             `json:"players"`
	Life         map[string]int64     `json:"life"`
	Cards        map[string]CardState `json:"cards"`
	Phase        string               `json:"phase"`
	ActivePlayer string               `json:"active_player"`
}

// NewGameState seeds an empty table for the given players at startingLife.
func NewGameState(players []string, startingLife int64) GameState {
	life := make(map[string]int64, len(players))
	for _, p := range players {
		life[p] = startingLife
	}
	return GameState{
		Players:      players,
		Life:         life,
		Cards:        make(map[string]CardState),
		Phase:        "main",
		ActivePlayer: firstOrEmpty(players),
	}
}

func firstOrEmpty(players []string) string {
	if len(players) == 0 {
		return ""
	}
	return players[0]
}
