package broadcast

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cardsync/server/ot"
)

func TestChannelNameIsNamespacedBySession(t *testing.T) {
	assert.Equal(t, "session:abc", channelName("abc"))
	assert.NotEqual(t, channelName("abc"), channelName("def"))
}

func TestFrameRoundTripsThroughJSON(t *testing.T) {
	frame := Frame{
		SessionID: "s1",
		Operation: ot.Operation{
			Kind: ot.KindTapCard, ClientID: "c1", Timestamp: 1,
			Version: ot.VectorClock{"c1": 1},
			TapCard: &ot.TapCardPayload{CardID: "card1", Tapped: true},
		},
	}

	payload, err := json.Marshal(frame)
	require.NoError(t, err)

	var decoded Frame
	require.NoError(t, json.Unmarshal(payload, &decoded))
	assert.Equal(t, frame.SessionID, decoded.SessionID)
	assert.Equal(t, frame.Operation.Kind, decoded.Operation.Kind)
	assert.Equal(t, frame.Operation.TapCard.Tapped, decoded.Operation.TapCard.Tapped)
}

func TestNewHubStartsWithNoActiveSessions(t *testing.T) {
	h := NewHub(nil)
	assert.Equal(t, 0, h.ActiveSessions())
}
