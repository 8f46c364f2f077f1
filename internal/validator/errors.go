package validator

import (
	"errors"

	"github.com/dyluth/vigil/internal/rendezvous"
	"github.com/dyluth/vigil/pkg/console"
)

// Outcomes other than a decision. Callers match them with errors.Is.
var (
	// ErrBusy: a goal arrived while another was still awaiting a decision.
	ErrBusy = rendezvous.ErrBusy

	// ErrPreempted: the goal was cancelled upstream before or while waiting.
	// It says nothing about whether the victim is valid.
	ErrPreempted = errors.New("goal preempted")

	// ErrTimedOut: no decision arrived within the configured timeout.
	ErrTimedOut = errors.New("timed out waiting for operator decision")

	// ErrPublishFailure: the alert could not be sent to the console.
	ErrPublishFailure = errors.New("publish failure")

	// ErrInvalidGoal: the goal cannot be encoded for the console.
	ErrInvalidGoal = errors.New("invalid goal")

	// ErrStopped: the bridge is shut down or its listener has exited, so no
	// decision could ever arrive.
	ErrStopped = errors.New("bridge stopped")

	// ErrNoActiveGoal: Preempt was called with nothing in flight.
	ErrNoActiveGoal = errors.New("no active goal")

	// ErrUnrecognizedMessage: an inbound payload was not a decision token.
	ErrUnrecognizedMessage = console.ErrUnrecognizedMessage

	// ErrSpuriousDelivery: a decision arrived with no matching goal pending.
	ErrSpuriousDelivery = rendezvous.ErrSpuriousDelivery
)
