package console

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Frame helpers for the text protocol spoken with the operator console.
//
// Alerts travel as "<tag> <json>", decisions as a bare literal token with an
// optional tag prefix and optional correlation suffix.

// ErrUnrecognizedMessage is returned for inbound payloads that are not one of
// the two decision tokens. Such payloads must never be read as a decision.
var ErrUnrecognizedMessage = errors.New("unrecognized message")

// EncodeAlert renders the outbound alert frame for a request.
// A nil sensor list is sent as an empty JSON array.
func EncodeAlert(r *ValidationRequest) (string, error) {
	if err := r.Validate(); err != nil {
		return "", fmt.Errorf("invalid validation request: %w", err)
	}

	wire := *r
	if wire.Sensors == nil {
		wire.Sensors = []string{}
	}

	payload, err := json.Marshal(&wire)
	if err != nil {
		return "", fmt.Errorf("failed to marshal validation request: %w", err)
	}

	return AlertTag + " " + string(payload), nil
}

// DecodeAlert parses an alert frame back into a request.
// Used by console-side tooling (vigil watch).
func DecodeAlert(frame string) (*ValidationRequest, error) {
	tag, payload, found := strings.Cut(frame, " ")
	if !found || tag != AlertTag {
		return nil, fmt.Errorf("%w: expected %q frame, got %q", ErrUnrecognizedMessage, AlertTag, truncate(frame))
	}

	var r ValidationRequest
	if err := json.Unmarshal([]byte(payload), &r); err != nil {
		return nil, fmt.Errorf("failed to unmarshal alert payload: %w", err)
	}

	return &r, nil
}

// ParseDecision decodes one inbound payload.
// Accepted shapes: "<token>", "<token> <request_id>", each optionally preceded
// by the validation tag. Anything else yields ErrUnrecognizedMessage.
func ParseDecision(payload string, tokens Tokens) (Decision, error) {
	fields := strings.Fields(payload)
	if len(fields) > 0 && fields[0] == ValidationTag {
		fields = fields[1:]
	}

	if len(fields) == 0 || len(fields) > 2 {
		return Decision{}, fmt.Errorf("%w: %q", ErrUnrecognizedMessage, truncate(payload))
	}

	var d Decision
	switch fields[0] {
	case tokens.Confirm:
		d.Valid = true
	case tokens.Reject:
		d.Valid = false
	default:
		return Decision{}, fmt.Errorf("%w: %q", ErrUnrecognizedMessage, truncate(payload))
	}

	if len(fields) == 2 {
		d.RequestID = fields[1]
	}

	return d, nil
}

// EncodeDecision renders the payload an operator console sends for a decision.
func EncodeDecision(d Decision, tokens Tokens) string {
	token := tokens.Reject
	if d.Valid {
		token = tokens.Confirm
	}
	if d.RequestID == "" {
		return token
	}
	return token + " " + d.RequestID
}

// truncate keeps log lines readable when a console sends garbage.
func truncate(s string) string {
	const max = 64
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
