package protocol_test

import (
	"encoding/json"
	"testing"

	"github.com/nullterm/gridwars/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeRejectsMissingType(t *testing.T) {
	_, err := protocol.Decode([]byte(`{"payload":{}}`))
	assert.Error(t, err)
}

func TestDecodeRejectsMalformedJSON(t *testing.T) {
	_, err := protocol.Decode([]byte(`not json`))
	assert.Error(t, err)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	msg, err := protocol.Encode(protocol.TypeMove, 1000, "client-1", protocol.MovePayload{Dx: 1, Dy: 0})
	require.NoError(t, err)

	decoded, err := protocol.Decode([]byte(mustMarshal(t, msg)))
	require.NoError(t, err)
	assert.Equal(t, protocol.TypeMove, decoded.Type)

	var payload protocol.MovePayload
	require.NoError(t, protocol.DecodePayload(decoded, &payload))
	assert.Equal(t, 1, payload.Dx)
	assert.Equal(t, 0, payload.Dy)
}

func TestMovePayloadValidate(t *testing.T) {
	cases := []struct {
		name    string
		payload protocol.MovePayload
		wantErr bool
	}{
		{"zero move rejected", protocol.MovePayload{Dx: 0, Dy: 0}, true},
		{"orthogonal accepted", protocol.MovePayload{Dx: 1, Dy: 0}, false},
		{"diagonal accepted", protocol.MovePayload{Dx: 1, Dy: 1}, false},
		{"dx out of range", protocol.MovePayload{Dx: 2, Dy: 0}, true},
		{"dy out of range", protocol.MovePayload{Dx: 0, Dy: -2}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.payload.Validate()
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestIsKnownType(t *testing.T) {
	assert.True(t, protocol.IsKnownType(protocol.TypeMove))
	assert.False(t, protocol.IsKnownType(protocol.Type("BOGUS")))
}

func mustMarshal(t *testing.T, msg protocol.Message) []byte {
	t.Helper()
	b, err := json.Marshal(msg)
	require.NoError(t, err)
	return b
}
