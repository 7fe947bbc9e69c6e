package comms

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPackUnpackRoundTrip(t *testing.T) {
	req := StartLiveBroadcastRequest{
		BroadcastID:       "session-1",
		Origin:            "wfo-oax",
		TransmitterGroups: []string{"OMA", "LNK"},
		MessageType:       "OMATORMAF",
	}
	data, err := Pack(TypeStartLiveBroadcast, req)
	require.NoError(t, err)

	env, err := Unpack(data)
	require.NoError(t, err)
	assert.Equal(t, TypeStartLiveBroadcast, env.Type)

	var got StartLiveBroadcastRequest
	require.NoError(t, env.Decode(&got))
	assert.Equal(t, req, got)
}

func TestUnpackRejectsGarbage(t *testing.T) {
	_, err := Unpack([]byte("not json"))
	assert.Error(t, err)
}

func TestUnpackRejectsMissingType(t *testing.T) {
	_, err := Unpack([]byte(`{"payload":{}}`))
	assert.Error(t, err)
}
