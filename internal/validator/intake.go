package validator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/dyluth/vigil/internal/rendezvous"
	"github.com/dyluth/vigil/internal/tracing"
	"github.com/google/uuid"
)

// Intake accepts goals one at a time, publishes them and blocks until the
// operator decides, the goal is preempted, or the decision timeout elapses.
type Intake struct {
	cell         *rendezvous.Cell
	publisher    *Publisher
	timeout      time.Duration
	correlate    bool
	instanceName string

	mu      sync.Mutex
	current *inflight
	closed  bool
}

type inflight struct {
	requestID string
	goal      Goal
	started   time.Time
	preempt   context.CancelCauseFunc
}

// IntakeOptions tunes an Intake.
type IntakeOptions struct {
	InstanceName string
	// DecisionTimeout bounds the wait for an operator. Zero waits forever.
	DecisionTimeout time.Duration
	// Correlate stamps each alert with its request ID.
	Correlate bool
}

// Snapshot describes the goal currently in flight.
type Snapshot struct {
	RequestID string    `json:"request_id"`
	VictimID  string    `json:"victim_id"`
	State     string    `json:"state"`
	Since     time.Time `json:"since"`
	Goal      Goal      `json:"goal"`
}

// NewIntake creates an intake over cell. The cell must be shared with the
// Listener that delivers decisions.
func NewIntake(cell *rendezvous.Cell, publisher *Publisher, opts IntakeOptions) *Intake {
	return &Intake{
		cell:         cell,
		publisher:    publisher,
		timeout:      opts.DecisionTimeout,
		correlate:    opts.Correlate,
		instanceName: opts.InstanceName,
	}
}

// Submit runs one goal to completion and returns the operator's decision.
//
// Errors: ErrInvalidGoal, ErrBusy (another goal is in flight; it is not
// disturbed), ErrPreempted (Preempt was called or ctx was cancelled),
// ErrTimedOut, ErrPublishFailure, ErrStopped (Close was called). A
// preemption that interrupts the publish is still ErrPreempted. On every
// error path the cell is left empty, except ErrBusy and ErrStopped, which
// leave it untouched.
func (i *Intake) Submit(ctx context.Context, goal Goal) (valid bool, err error) {
	ctx, span := tracing.StartSpan(ctx, "validator.submit", tracing.KindServer)
	defer func() { tracing.EndSpan(span, err) }()
	span.WithAttributes(map[string]string{"victim_id": goal.VictimID})

	log.Printf("[INFO] Received goal from the agent: victim=%s x=%.2f y=%.2f p=%.2f sensors=%v",
		goal.VictimID, goal.X, goal.Y, goal.Probability, goal.Sensors)

	request, err := goal.request()
	if err != nil {
		log.Printf("[WARN] Rejecting goal for victim %s: %v", goal.VictimID, err)
		return false, err
	}

	requestID := uuid.New().String()
	ctx, preempt := context.WithCancelCause(ctx)
	defer preempt(nil)

	if err := i.arm(requestID, goal, preempt); errors.Is(err, ErrStopped) {
		log.Printf("[WARN] Refusing goal for victim %s: bridge is stopped", goal.VictimID)
		return false, err
	} else if err != nil {
		log.Printf("[WARN] Goal for victim %s rejected: %v", goal.VictimID, err)
		logEvent(i.instanceName, "intake", "goal_busy", map[string]interface{}{
			"victim_id": goal.VictimID,
		})
		return false, err
	}
	defer i.disarm(requestID)

	span.WithAttributes(map[string]string{"request_id": requestID})
	logEvent(i.instanceName, "intake", "goal_received", map[string]interface{}{
		"victim_id":  goal.VictimID,
		"request_id": requestID,
	})

	if ctx.Err() != nil {
		i.cell.Release()
		return false, i.preempted(ctx, requestID, goal)
	}

	if i.correlate {
		request.RequestID = requestID
	}

	// Activate before publishing so a fast reply finds the cell pending.
	if err := i.cell.Activate(); err != nil {
		i.cell.Release()
		return false, err
	}

	if err := i.publisher.Publish(ctx, request); err != nil {
		i.cell.Release()
		if ctx.Err() != nil {
			return false, i.preempted(ctx, requestID, goal)
		}
		return false, err
	}

	log.Printf("[INFO] Published, waiting for response")

	waitCtx := ctx
	if i.timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeoutCause(ctx, i.timeout, ErrTimedOut)
		defer cancel()
	}

	valid, err = i.cell.Await(waitCtx)
	if err != nil {
		if errors.Is(err, ErrTimedOut) {
			log.Printf("[WARN] No decision for victim %s after %s", goal.VictimID, i.timeout)
			logEvent(i.instanceName, "intake", "goal_timed_out", map[string]interface{}{
				"victim_id":  goal.VictimID,
				"request_id": requestID,
				"timeout":    i.timeout.String(),
			})
			return false, ErrTimedOut
		}
		return false, i.preempted(waitCtx, requestID, goal)
	}

	log.Printf("[INFO] Returning decision for victim %s: %t", goal.VictimID, valid)
	return valid, nil
}

// Preempt cancels the goal in flight. Its Submit returns ErrPreempted.
func (i *Intake) Preempt() error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.current == nil {
		return ErrNoActiveGoal
	}
	i.current.preempt(ErrPreempted)
	return nil
}

// Close stops accepting goals and preempts the one in flight, if any.
// Later calls to Submit return ErrStopped.
func (i *Intake) Close() {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.closed = true
	if i.current != nil {
		i.current.preempt(ErrPreempted)
	}
}

// Current reports the goal in flight, if any.
func (i *Intake) Current() (Snapshot, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.current == nil {
		return Snapshot{}, false
	}

	state := i.cell.State()
	return Snapshot{
		RequestID: i.current.requestID,
		VictimID:  i.current.goal.VictimID,
		State:     state.String(),
		Since:     i.current.started,
		Goal:      i.current.goal,
	}, true
}

// Busy reports whether a goal is in flight.
func (i *Intake) Busy() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.current != nil
}

func (i *Intake) arm(requestID string, goal Goal, preempt context.CancelCauseFunc) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.closed {
		return ErrStopped
	}
	if err := i.cell.Arm(requestID); err != nil {
		return err
	}
	i.current = &inflight{
		requestID: requestID,
		goal:      goal,
		started:   time.Now(),
		preempt:   preempt,
	}
	return nil
}

func (i *Intake) disarm(requestID string) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.current != nil && i.current.requestID == requestID {
		i.current = nil
	}
}

func (i *Intake) preempted(ctx context.Context, requestID string, goal Goal) error {
	cause := context.Cause(ctx)

	log.Printf("[INFO] Preempting victim validation for %s", goal.VictimID)
	logEvent(i.instanceName, "intake", "goal_preempted", map[string]interface{}{
		"victim_id":  goal.VictimID,
		"request_id": requestID,
		"cause":      fmt.Sprint(cause),
	})

	if cause == nil || errors.Is(cause, ErrPreempted) {
		return ErrPreempted
	}
	return fmt.Errorf("%w: %w", ErrPreempted, cause)
}
