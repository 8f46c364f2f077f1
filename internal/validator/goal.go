package validator

import (
	"fmt"

	"github.com/dyluth/vigil/pkg/console"
)

// Goal is one victim-validation request as delivered by the upstream agent.
type Goal struct {
	VictimID    string   `json:"victim_id"`
	X           float64  `json:"x"`
	Y           float64  `json:"y"`
	Probability float64  `json:"probability"`
	Sensors     []string `json:"sensors"`
}

// request builds the console alert for this goal. The sensor list is copied
// so later changes by the caller cannot reach the published request.
func (g Goal) request() (*console.ValidationRequest, error) {
	sensors := make([]string, len(g.Sensors))
	copy(sensors, g.Sensors)

	r := &console.ValidationRequest{
		ID:          g.VictimID,
		X:           g.X,
		Y:           g.Y,
		Probability: g.Probability,
		Sensors:     sensors,
	}
	if err := r.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidGoal, err)
	}
	return r, nil
}
