package console

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeAlert(t *testing.T) {
	t.Run("renders tag and exact JSON fields", func(t *testing.T) {
		frame, err := EncodeAlert(&ValidationRequest{
			ID:          "v1",
			X:           1.0,
			Y:           2.0,
			Probability: 0.8,
			Sensors:     []string{"thermal", "co2"},
		})
		require.NoError(t, err)
		assert.Equal(t, `victim_goal {"id":"v1","x":1,"y":2,"probability":0.8,"sensors":["thermal","co2"]}`, frame)
	})

	t.Run("nil sensors encode as empty array", func(t *testing.T) {
		frame, err := EncodeAlert(&ValidationRequest{ID: "v2"})
		require.NoError(t, err)
		assert.Equal(t, `victim_goal {"id":"v2","x":0,"y":0,"probability":0,"sensors":[]}`, frame)
	})

	t.Run("includes request_id when set", func(t *testing.T) {
		frame, err := EncodeAlert(&ValidationRequest{ID: "v3", Sensors: []string{"thermal"}, RequestID: "abc"})
		require.NoError(t, err)
		assert.Contains(t, frame, `"request_id":"abc"`)
	})

	t.Run("rejects non-finite probability", func(t *testing.T) {
		_, err := EncodeAlert(&ValidationRequest{ID: "v4", Probability: math.NaN()})
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "probability")
	})

	t.Run("rejects empty sensor identifier", func(t *testing.T) {
		_, err := EncodeAlert(&ValidationRequest{ID: "v5", Sensors: []string{"thermal", ""}})
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "index 1")
	})
}

func TestDecodeAlert(t *testing.T) {
	t.Run("decodes encoded frame", func(t *testing.T) {
		original := &ValidationRequest{ID: "v1", X: 1.5, Y: -2, Probability: 0.25, Sensors: []string{"co2"}}
		frame, err := EncodeAlert(original)
		require.NoError(t, err)

		decoded, err := DecodeAlert(frame)
		require.NoError(t, err)
		assert.Equal(t, original, decoded)
	})

	t.Run("rejects wrong tag", func(t *testing.T) {
		_, err := DecodeAlert(`victim_other {"id":"v1"}`)
		assert.ErrorIs(t, err, ErrUnrecognizedMessage)
	})

	t.Run("rejects malformed JSON", func(t *testing.T) {
		_, err := DecodeAlert(`victim_goal {not json`)
		assert.Error(t, err)
	})
}

func TestParseDecision(t *testing.T) {
	tokens := DefaultTokens()

	tests := []struct {
		name      string
		payload   string
		want      Decision
		wantError bool
	}{
		{name: "confirm token", payload: "true", want: Decision{Valid: true}},
		{name: "reject token", payload: "false", want: Decision{Valid: false}},
		{name: "surrounding whitespace", payload: "  true\n", want: Decision{Valid: true}},
		{name: "tag prefix", payload: "victim_validation false", want: Decision{Valid: false}},
		{name: "correlated", payload: "true req-1", want: Decision{Valid: true, RequestID: "req-1"}},
		{name: "tag and correlated", payload: "victim_validation true req-2", want: Decision{Valid: true, RequestID: "req-2"}},
		{name: "empty", payload: "", wantError: true},
		{name: "tag only", payload: "victim_validation", wantError: true},
		{name: "capitalised", payload: "True", wantError: true},
		{name: "yes is not a token", payload: "yes", wantError: true},
		{name: "too many fields", payload: "true a b", wantError: true},
		{name: "json is not a token", payload: `{"valid":true}`, wantError: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseDecision(tc.payload, tokens)
			if tc.wantError {
				assert.ErrorIs(t, err, ErrUnrecognizedMessage)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	t.Run("custom tokens replace the defaults", func(t *testing.T) {
		custom := Tokens{Confirm: "confirmed", Reject: "rejected"}

		d, err := ParseDecision("confirmed", custom)
		require.NoError(t, err)
		assert.True(t, d.Valid)

		_, err = ParseDecision("true", custom)
		assert.ErrorIs(t, err, ErrUnrecognizedMessage)
	})
}

func TestEncodeDecision(t *testing.T) {
	tokens := DefaultTokens()
	assert.Equal(t, "true", EncodeDecision(Decision{Valid: true}, tokens))
	assert.Equal(t, "false req-9", EncodeDecision(Decision{Valid: false, RequestID: "req-9"}, tokens))
}

func TestTokensValidate(t *testing.T) {
	assert.NoError(t, DefaultTokens().Validate())
	assert.Error(t, Tokens{Confirm: "", Reject: "false"}.Validate())
	assert.Error(t, Tokens{Confirm: "ok", Reject: "ok"}.Validate())
	assert.Error(t, Tokens{Confirm: ValidationTag, Reject: "false"}.Validate())
	assert.Error(t, Tokens{Confirm: "yes please", Reject: "no"}.Validate())
}
