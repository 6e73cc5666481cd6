package services

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// InviteService issues short-lived invite codes that resolve to a session
// id, so a host can share a join link without exposing the raw session id.
// Grounded on teacher's services/invite_service.go.
type InviteService struct {
	db    *sql.DB
	redis *redis.Client
}

// Invite is a resolved invite code.
type Invite struct {
	SessionID string
}

// NewInviteService wires an invite service to its backends.
func NewInviteService(db *sql.DB, redis *redis.Client) *InviteService {
	return &InviteService{db: db, redis: redis}
}

// GenerateInviteCode returns a random 16-char hex code.
func (s *InviteService) GenerateInviteCode() string {
	b := make([]byte, 8)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// CreateInviteLink mints an invite code for sessionID that expires after
// expiresIn.
func (s *InviteService) CreateInviteLink(sessionID string, expiresIn time.Duration) (string, error) {
	code := s.GenerateInviteCode()
	key := "invite:" + code
	if err := s.redis.Set(context.Background(), key, sessionID, expiresIn).Err(); err != nil {
		return "", fmt.Errorf("services: store invite: %w", err)
	}
	return code, nil
}

// UseInviteLink resolves an invite code to its session, erroring if the code
// is unknown or expired.
func (s *InviteService) UseInviteLink(code string) (*Invite, error) {
	key := "invite:" + code
	sessionID, err := s.redis.Get(context.Background(), key).Result()
	if err != nil {
		return nil, fmt.Errorf("services: invalid or expired invite code")
	}
	return &Invite{SessionID: sessionID}, nil
}
