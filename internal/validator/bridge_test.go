package validator

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/dyluth/vigil/pkg/console"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newConsoleClient(t *testing.T, mr *miniredis.Miniredis) *console.Client {
	t.Helper()
	client, err := console.NewClient(&redis.Options{Addr: mr.Addr()}, "test")
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

func TestBridge_RoundTripOverRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	bridge, err := New(newConsoleClient(t, mr), Options{InstanceName: "test", DecisionTimeout: 3 * time.Second})
	require.NoError(t, err)
	require.NoError(t, bridge.Start(ctx))
	defer bridge.Stop()

	operator := newConsoleClient(t, mr)
	alerts, err := operator.SubscribeAlerts(ctx)
	require.NoError(t, err)
	defer alerts.Close()

	// Operator: unrecognized noise first, then a rejection.
	go func() {
		alert := <-alerts.Alerts()
		if alert == nil || alert.ID != "v7" {
			return
		}
		_ = operator.PublishRaw(ctx, "hello")
		_, _ = operator.PublishDecision(ctx, console.Decision{Valid: false}, console.DefaultTokens())
	}()

	valid, err := bridge.Submit(ctx, testGoal("v7"))
	require.NoError(t, err)
	assert.False(t, valid)

	require.Eventually(t, func() bool {
		return bridge.Stats() == ListenerStats{Delivered: 1, Unrecognized: 1}
	}, time.Second, 10*time.Millisecond)

	_, ok := bridge.Current()
	assert.False(t, ok)
}

func TestBridge_IdleDecisionDoesNotLeak(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	bridge, err := New(newConsoleClient(t, mr), Options{InstanceName: "test"})
	require.NoError(t, err)
	require.NoError(t, bridge.Start(ctx))
	defer bridge.Stop()

	operator := newConsoleClient(t, mr)
	_, err = operator.PublishDecision(ctx, console.Decision{Valid: true}, console.DefaultTokens())
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return bridge.Stats().Spurious == 1
	}, time.Second, 10*time.Millisecond)

	alerts, err := operator.SubscribeAlerts(ctx)
	require.NoError(t, err)
	defer alerts.Close()

	go func() {
		<-alerts.Alerts()
		_, _ = operator.PublishDecision(ctx, console.Decision{Valid: false}, console.DefaultTokens())
	}()

	valid, err := bridge.Submit(ctx, testGoal("v8"))
	require.NoError(t, err)
	assert.False(t, valid, "stale confirmation must not answer the new goal")
}

func TestBridge_StartFailsWithoutRedis(t *testing.T) {
	client, err := console.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1}, "test")
	require.NoError(t, err)
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	bridge, err := New(client, Options{InstanceName: "test"})
	require.NoError(t, err)
	assert.Error(t, bridge.Start(ctx))
	bridge.Stop()
}

func TestBridge_StopPreemptsInFlightGoal(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	bridge, err := New(newConsoleClient(t, mr), Options{InstanceName: "test"})
	require.NoError(t, err)
	require.NoError(t, bridge.Start(ctx))

	out := make(chan error, 1)
	go func() {
		_, err := bridge.Submit(ctx, testGoal("v9"))
		out <- err
	}()

	require.Eventually(t, func() bool {
		snap, ok := bridge.Current()
		return ok && snap.State == "pending"
	}, time.Second, 5*time.Millisecond)

	bridge.Stop()

	select {
	case err := <-out:
		assert.ErrorIs(t, err, ErrPreempted)
	case <-time.After(2 * time.Second):
		t.Fatal("Submit did not return after Stop")
	}

	<-bridge.Done()
	assert.NoError(t, bridge.Err())
}

func TestNew_RejectsBadTokens(t *testing.T) {
	mr := miniredis.RunT(t)
	_, err := New(newConsoleClient(t, mr), Options{
		InstanceName: "test",
		Tokens:       console.Tokens{Confirm: "ok", Reject: "ok"},
	})
	assert.Error(t, err)
}

func TestBridge_SubmitAfterStopIsRefused(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	bridge, err := New(newConsoleClient(t, mr), Options{InstanceName: "test"})
	require.NoError(t, err)
	require.NoError(t, bridge.Start(ctx))

	operator := newConsoleClient(t, mr)
	alerts, err := operator.SubscribeAlerts(ctx)
	require.NoError(t, err)
	defer alerts.Close()

	bridge.Stop()

	valid, err := bridge.Submit(ctx, testGoal("v1"))
	assert.False(t, valid)
	assert.ErrorIs(t, err, ErrStopped)

	select {
	case alert := <-alerts.Alerts():
		t.Fatalf("alert published after Stop: %+v", alert)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestBridge_SubmitAfterListenerExitIsRefused(t *testing.T) {
	mr := miniredis.RunT(t)

	bridge, err := New(newConsoleClient(t, mr), Options{InstanceName: "test"})
	require.NoError(t, err)

	runCtx, stopListener := context.WithCancel(context.Background())
	require.NoError(t, bridge.Start(runCtx))
	defer bridge.Stop()

	stopListener()
	select {
	case <-bridge.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("listener did not exit")
	}

	done := make(chan error, 1)
	go func() {
		_, err := bridge.Submit(context.Background(), testGoal("v1"))
		done <- err
	}()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrStopped)
	case <-time.After(2 * time.Second):
		t.Fatal("Submit blocked with no listener running")
	}
}

func TestBridge_StartTwice(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	bridge, err := New(newConsoleClient(t, mr), Options{InstanceName: "test"})
	require.NoError(t, err)
	require.NoError(t, bridge.Start(ctx))
	defer bridge.Stop()

	err = bridge.Start(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already started")

	select {
	case <-bridge.Done():
		t.Fatal("listener exited after second Start")
	default:
	}
}
