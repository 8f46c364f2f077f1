// Package validator implements the victim-validation bridge: it forwards one
// goal at a time to the operator console and blocks until the operator
// confirms or rejects it.
//
// The bridge is made of three parts sharing one rendezvous cell:
//
//   - Intake accepts goals, enforces single-flight and waits for the outcome
//   - Publisher emits the alert frame
//   - Listener consumes console replies and resolves the cell
package validator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/dyluth/vigil/internal/rendezvous"
	"github.com/dyluth/vigil/pkg/console"
)

// Console is the transport the bridge needs. *console.Client implements it.
type Console interface {
	AlertSink
	DecisionSource
}

// Options configures a Bridge.
type Options struct {
	InstanceName    string
	DecisionTimeout time.Duration
	Correlate       bool
	Tokens          console.Tokens
}

// Bridge wires Intake, Publisher and Listener around one cell.
type Bridge struct {
	intake   *Intake
	listener *Listener

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
	runErr  error
	once    sync.Once
}

// New creates a bridge. Start must be called before goals are submitted.
func New(c Console, opts Options) (*Bridge, error) {
	tokens := opts.Tokens
	if tokens == (console.Tokens{}) {
		tokens = console.DefaultTokens()
	}
	if err := tokens.Validate(); err != nil {
		return nil, err
	}

	cell := &rendezvous.Cell{}
	return &Bridge{
		intake: NewIntake(cell, NewPublisher(c, opts.InstanceName), IntakeOptions{
			InstanceName:    opts.InstanceName,
			DecisionTimeout: opts.DecisionTimeout,
			Correlate:       opts.Correlate,
		}),
		listener: NewListener(c, cell, tokens, opts.InstanceName),
		done:     make(chan struct{}),
	}, nil
}

// Start subscribes to console decisions and launches the listener.
// A subscription failure is returned immediately and nothing is started.
// A bridge can be started once.
func (b *Bridge) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.started {
		return errors.New("bridge already started or stopped")
	}

	sub, err := b.listener.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("failed to start decision listener: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	b.cancel = cancel
	b.started = true

	go func() {
		defer close(b.done)
		// No decision can be delivered once the listener is gone.
		defer b.intake.Close()
		if err := b.listener.Listen(runCtx, sub); err != nil {
			log.Printf("[ERROR] Decision listener stopped: %v", err)
			b.runErr = err
		}
	}()

	log.Printf("[INFO] Victim validation bridge listening for operator decisions")
	return nil
}

// Stop refuses further goals, preempts the one in flight, stops the listener
// and waits for it.
func (b *Bridge) Stop() {
	b.once.Do(func() {
		b.intake.Close()

		b.mu.Lock()
		cancel := b.cancel
		b.started = true
		b.mu.Unlock()

		if cancel != nil {
			cancel()
			<-b.done
		}
	})
}

// Done is closed when the listener exits.
func (b *Bridge) Done() <-chan struct{} {
	return b.done
}

// Err returns why the listener exited, or nil for a clean stop.
// Only meaningful after Done is closed.
func (b *Bridge) Err() error {
	return b.runErr
}

// Submit forwards goal to the operator and blocks for the decision.
// After Stop, or once the listener has exited, it returns ErrStopped.
func (b *Bridge) Submit(ctx context.Context, goal Goal) (bool, error) {
	return b.intake.Submit(ctx, goal)
}

// Preempt cancels the goal in flight.
func (b *Bridge) Preempt() error {
	return b.intake.Preempt()
}

// Current reports the goal in flight, if any.
func (b *Bridge) Current() (Snapshot, bool) {
	return b.intake.Current()
}

// Stats reports listener counters.
func (b *Bridge) Stats() ListenerStats {
	return b.listener.Stats()
}
