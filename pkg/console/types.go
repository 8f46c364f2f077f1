package console

import (
	"fmt"
	"math"
	"strings"
)

// ValidationRequest is the alert shown to the operator for one goal.
// It is immutable once built.
type ValidationRequest struct {
	ID          string   `json:"id"`                   // Opaque victim identifier from the agent
	X           float64  `json:"x"`                    // Victim position
	Y           float64  `json:"y"`                    // Victim position
	Probability float64  `json:"probability"`          // Detector confidence, range not constrained
	Sensors     []string `json:"sensors"`              // Sensors that contributed to the detection
	RequestID   string   `json:"request_id,omitempty"` // Correlation token, only sent when correlation is enabled
}

// Decision is one decoded operator answer.
type Decision struct {
	Valid     bool   `json:"valid"`
	RequestID string `json:"request_id,omitempty"` // Echoed correlation token, empty for bare tokens
}

// Tokens holds the two literal payloads recognised as decisions.
type Tokens struct {
	Confirm string `yaml:"confirm"`
	Reject  string `yaml:"reject"`
}

// DefaultTokens returns the tokens used by the operator console.
func DefaultTokens() Tokens {
	return Tokens{Confirm: DefaultConfirmToken, Reject: DefaultRejectToken}
}

// Validate checks the two tokens are usable and distinct.
func (t Tokens) Validate() error {
	if t.Confirm == "" || t.Reject == "" {
		return fmt.Errorf("decision tokens cannot be empty")
	}
	if t.Confirm == t.Reject {
		return fmt.Errorf("confirm and reject tokens must differ, both are %q", t.Confirm)
	}
	if strings.ContainsAny(t.Confirm+t.Reject, " \t\r\n") {
		return fmt.Errorf("decision tokens cannot contain whitespace")
	}
	if t.Confirm == ValidationTag || t.Reject == ValidationTag {
		return fmt.Errorf("decision token cannot be the %q tag", ValidationTag)
	}
	return nil
}

// Validate checks the request can be encoded for the console.
func (r *ValidationRequest) Validate() error {
	checks := []struct {
		name  string
		value float64
	}{
		{"x", r.X},
		{"y", r.Y},
		{"probability", r.Probability},
	}
	for _, c := range checks {
		if math.IsNaN(c.value) || math.IsInf(c.value, 0) {
			return fmt.Errorf("invalid %s: must be a finite number, got %v", c.name, c.value)
		}
	}

	for i, sensor := range r.Sensors {
		if sensor == "" {
			return fmt.Errorf("invalid sensor at index %d: empty identifier", i)
		}
	}

	return nil
}
