package frames

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvelope_RoundTripPreservesOptionality(t *testing.T) {
	online := false
	frame := ServerFrame{
		Type:     UpdateTypeUpdate,
		ServerID: "srv-1",
		Online:   &online,
		// UtcOffset and SceneryID intentionally unset: they must stay
		// unset after the round trip, not become zero values.
	}

	env, err := Wrap(frame)
	require.NoError(t, err)
	assert.Equal(t, KindServers, env.Kind)

	decoded, err := env.Decode()
	require.NoError(t, err)

	got, ok := decoded.(ServerFrame)
	require.True(t, ok)
	require.NotNil(t, got.Online)
	assert.False(t, *got.Online)
	assert.Nil(t, got.UtcOffset)
	assert.Nil(t, got.SceneryID)
}

func TestEnvelope_DecodeJourney(t *testing.T) {
	seen := time.Date(2026, 8, 1, 12, 30, 0, 0, time.UTC)
	cancelled := true
	env, err := Wrap(JourneyFrame{
		Type:      UpdateTypeUpdate,
		JourneyID: "jrn-1",
		ServerID:  "srv-1",
		Cancelled: &cancelled,
		LastSeen:  &seen,
	})
	require.NoError(t, err)

	decoded, err := env.Decode()
	require.NoError(t, err)
	got, ok := decoded.(JourneyFrame)
	require.True(t, ok)
	assert.Equal(t, "srv-1", got.ScopeServerID())
	require.NotNil(t, got.LastSeen)
	assert.True(t, got.LastSeen.Equal(seen))
	assert.Nil(t, got.FirstSeen)
}

func TestEnvelope_UnknownKind(t *testing.T) {
	_, err := Envelope{Kind: Kind("signals"), Data: []byte("{}")}.Decode()
	assert.Error(t, err)
}

func TestFrames_Changed(t *testing.T) {
	assert.False(t, ServerFrame{Type: UpdateTypeUpdate, ServerID: "s"}.Changed())
	offset := 2
	assert.True(t, ServerFrame{Type: UpdateTypeUpdate, ServerID: "s", UtcOffset: &offset}.Changed())

	assert.False(t, JourneyFrame{Type: UpdateTypeUpdate, JourneyID: "j"}.Changed())
	assert.False(t, DispatchPostFrame{Type: UpdateTypeUpdate, PostID: "p"}.Changed())

	// A vacated post still counts as a change: the empty list is set.
	empty := []string{}
	assert.True(t, DispatchPostFrame{Type: UpdateTypeUpdate, PostID: "p", Dispatchers: &empty}.Changed())
}
