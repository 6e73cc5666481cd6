package services

import (
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"math/big"
	"time"

	"github.com/redis/go-redis/v9"
)

// PlayerService generates player identity defaults. Grounded on teacher's
// services/user_service.go.
type PlayerService struct {
	db    *sql.DB
	redis *redis.Client
}

// NewPlayerService wires a player service to its backends.
func NewPlayerService(db *sql.DB, redis *redis.Client) *PlayerService {
	return &PlayerService{db: db, redis: redis}
}

// GeneratePlayerID builds a player_<8hex>_<unixtime> identifier.
func (p *PlayerService) GeneratePlayerID() (string, error) {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("services: generate player id: %w", err)
	}
	return fmt.Sprintf("player_%s_%d", hex.EncodeToString(b), time.Now().Unix()), nil
}

// GenerateDisplayName suggests a random display name for an unnamed player.
func (p *PlayerService) GenerateDisplayName() string {
	adjectives := []string{"Swift", "Bold", "Cunning", "Stalwart", "Arcane", "Grim", "Lucky", "Relentless"}
	nouns := []string{"Duelist", "Strategist", "Summoner", "Warden", "Tactician", "Conjurer", "Champion", "Planeswalker"}

	adjIdx, _ := rand.Int(rand.Reader, big.NewInt(int64(len(adjectives))))
	nounIdx, _ := rand.Int(rand.Reader, big.NewInt(int64(len(nouns))))

	return fmt.Sprintf("%s %s", adjectives[adjIdx.Int64()], nouns[nounIdx.Int64()])
}
