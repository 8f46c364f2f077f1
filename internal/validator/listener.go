package validator

import (
	"context"
	"errors"
	"log"
	"sync/atomic"

	"github.com/dyluth/vigil/internal/rendezvous"
	"github.com/dyluth/vigil/internal/tracing"
	"github.com/dyluth/vigil/pkg/console"
)

// DecisionSource opens the inbound decision subscription. *console.Client implements it.
type DecisionSource interface {
	SubscribeDecisions(ctx context.Context) (*console.DecisionSubscription, error)
}

// Listener consumes operator decisions and hands them to the pending goal.
// It never blocks on the intake side.
type Listener struct {
	source       DecisionSource
	cell         *rendezvous.Cell
	tokens       console.Tokens
	instanceName string

	delivered    atomic.Int64
	unrecognized atomic.Int64
	spurious     atomic.Int64
}

// ListenerStats counts inbound messages by outcome.
type ListenerStats struct {
	Delivered    int64 `json:"delivered"`
	Unrecognized int64 `json:"unrecognized"`
	Spurious     int64 `json:"spurious"`
}

// NewListener creates a listener that resolves cell.
func NewListener(source DecisionSource, cell *rendezvous.Cell, tokens console.Tokens, instanceName string) *Listener {
	return &Listener{
		source:       source,
		cell:         cell,
		tokens:       tokens,
		instanceName: instanceName,
	}
}

// Subscribe opens the decision subscription. The returned subscription is
// confirmed by the server, so no decision published afterwards is missed.
func (l *Listener) Subscribe(ctx context.Context) (*console.DecisionSubscription, error) {
	return l.source.SubscribeDecisions(ctx)
}

// Run subscribes and then processes decisions until ctx is cancelled.
func (l *Listener) Run(ctx context.Context) error {
	sub, err := l.Subscribe(ctx)
	if err != nil {
		return err
	}
	return l.Listen(ctx, sub)
}

// Listen processes messages from sub until ctx is cancelled or the
// subscription ends. It closes sub before returning.
func (l *Listener) Listen(ctx context.Context, sub *console.DecisionSubscription) error {
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case payload, ok := <-sub.Messages():
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return errors.New("decision subscription closed")
			}
			_ = l.Handle(ctx, payload)
		}
	}
}

// Handle processes one inbound payload. Unrecognized and spurious messages
// are logged and counted, never propagated to the intake side.
func (l *Listener) Handle(ctx context.Context, payload string) (err error) {
	decision, err := console.ParseDecision(payload, l.tokens)
	if err != nil {
		l.unrecognized.Add(1)
		log.Printf("[WARN] Ignoring unrecognized console message: %v", err)
		logEvent(l.instanceName, "listener", "unrecognized_message", map[string]interface{}{
			"payload": payload,
		})
		return err
	}

	_, span := tracing.StartSpan(ctx, "validator.deliver", tracing.KindConsumer)
	defer func() { tracing.EndSpan(span, err) }()
	span.WithAttributes(map[string]string{"request_id": decision.RequestID})

	err = l.cell.Deliver(rendezvous.Decision{Valid: decision.Valid, Token: decision.RequestID})
	if err != nil {
		l.spurious.Add(1)
		log.Printf("[WARN] Discarding decision %t: %v", decision.Valid, err)
		logEvent(l.instanceName, "listener", "spurious_delivery", map[string]interface{}{
			"valid":      decision.Valid,
			"request_id": decision.RequestID,
		})
		return err
	}

	l.delivered.Add(1)
	log.Printf("[INFO] Received %t", decision.Valid)
	logEvent(l.instanceName, "listener", "decision_delivered", map[string]interface{}{
		"valid":      decision.Valid,
		"request_id": decision.RequestID,
	})
	return nil
}

// Stats returns message counters since start.
func (l *Listener) Stats() ListenerStats {
	return ListenerStats{
		Delivered:    l.delivered.Load(),
		Unrecognized: l.unrecognized.Load(),
		Spurious:     l.spurious.Load(),
	}
}
