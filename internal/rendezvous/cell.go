// Package rendezvous provides the single-slot synchronization cell that couples
// a goroutine waiting for an operator decision to the goroutine that receives
// it.
//
// A Cell moves through four states:
//
//	Empty -> Armed -> Pending -> Resolved -> Empty
//
// Arm reserves the slot for one request, Activate marks it as published,
// Deliver resolves it, and Await consumes the resolution. Release and a
// cancelled Await return the cell to Empty from any earlier state. At most one
// request occupies the cell at a time; Arm on an occupied cell fails with
// ErrBusy and leaves the occupant untouched.
package rendezvous

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

var (
	// ErrBusy is returned by Arm while another request occupies the cell.
	ErrBusy = errors.New("validation already pending")

	// ErrSpuriousDelivery is returned by Deliver when no request is waiting
	// for a decision, or the decision names a different request.
	ErrSpuriousDelivery = errors.New("spurious delivery")

	// ErrNotArmed is returned by Activate when Arm was not called first.
	ErrNotArmed = errors.New("cell not armed")
)

// State is the lifecycle position of a Cell.
type State int

const (
	StateEmpty State = iota
	StateArmed
	StatePending
	StateResolved
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateArmed:
		return "armed"
	case StatePending:
		return "pending"
	case StateResolved:
		return "resolved"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Decision is the value carried from Deliver to Await.
// An empty Token matches whichever request is pending.
type Decision struct {
	Valid bool
	Token string
}

// Snapshot is a point-in-time view of the cell.
type Snapshot struct {
	State    State
	Token    string
	ArmedAt  time.Time
	Decision *bool
}

// Cell is a single-slot rendezvous. The zero value is an empty cell ready
// for use. A Cell must not be copied after first use.
type Cell struct {
	mu       sync.Mutex
	state    State
	token    string
	armedAt  time.Time
	decision bool
	ready    chan struct{} // closed by Deliver, replaced by Arm
}

// Arm reserves the cell for the request identified by token and clears any
// previous decision. Fails with ErrBusy if the cell is occupied.
func (c *Cell) Arm(token string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateEmpty {
		return fmt.Errorf("%w: request %s is %s", ErrBusy, c.token, c.state)
	}

	c.state = StateArmed
	c.token = token
	c.armedAt = time.Now()
	c.decision = false
	c.ready = make(chan struct{})
	return nil
}

// Activate marks the armed request as published; from here on a decision can
// be delivered. It must be called before the alert goes out so that a fast
// operator reply cannot arrive ahead of it.
func (c *Cell) Activate() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateArmed {
		return fmt.Errorf("%w: cell is %s", ErrNotArmed, c.state)
	}
	c.state = StatePending
	return nil
}

// Deliver resolves the pending request and wakes its waiter.
// Returns ErrSpuriousDelivery without changing state if nothing is pending,
// the request is already resolved, or d.Token names another request.
func (c *Cell) Deliver(d Decision) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StatePending {
		return fmt.Errorf("%w: cell is %s", ErrSpuriousDelivery, c.state)
	}
	if d.Token != "" && d.Token != c.token {
		return fmt.Errorf("%w: decision for %s, pending request is %s", ErrSpuriousDelivery, d.Token, c.token)
	}

	c.decision = d.Valid
	c.state = StateResolved
	close(c.ready)
	return nil
}

// Await blocks until the armed request is resolved or ctx is done.
// On resolution the decision is returned and the cell goes back to Empty.
// On cancellation the cell goes back to Empty and context.Cause(ctx) is
// returned, unless a decision won the race, in which case it is returned.
func (c *Cell) Await(ctx context.Context) (bool, error) {
	c.mu.Lock()
	ready := c.ready
	state := c.state
	c.mu.Unlock()

	if ready == nil || state == StateEmpty {
		return false, fmt.Errorf("%w: nothing to await", ErrNotArmed)
	}

	select {
	case <-ready:
	case <-ctx.Done():
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateResolved {
		decision := c.decision
		c.reset()
		return decision, nil
	}

	c.reset()
	if cause := context.Cause(ctx); cause != nil {
		return false, cause
	}
	return false, fmt.Errorf("%w: released while waiting", ErrNotArmed)
}

// Release abandons the current request and returns the cell to Empty.
// Used when a request is given up before or instead of waiting.
func (c *Cell) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reset()
}

// State returns the current lifecycle state.
func (c *Cell) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Snapshot returns the current state, token and, once resolved, decision.
func (c *Cell) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Snapshot{State: c.state, Token: c.token, ArmedAt: c.armedAt}
	if c.state == StateResolved {
		decision := c.decision
		s.Decision = &decision
	}
	return s
}

// reset must be called with mu held.
func (c *Cell) reset() {
	c.state = StateEmpty
	c.token = ""
	c.armedAt = time.Time{}
	c.decision = false
	c.ready = nil
}
