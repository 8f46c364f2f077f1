package actionserver

import (
	"context"
	"errors"
	"fmt"
	"net/http/httptest"
	"testing"

	"github.com/dyluth/vigil/internal/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, v Validator, p Pinger) *Client {
	t.Helper()
	ts := httptest.NewServer(New(v, p, ":0").Handler())
	t.Cleanup(ts.Close)
	return NewClient(ts.URL + "/")
}

func TestClient_SubmitMapsOutcomes(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantErr error
	}{
		{"busy", fmt.Errorf("%w: request r1 is pending", validator.ErrBusy), validator.ErrBusy},
		{"preempted", validator.ErrPreempted, validator.ErrPreempted},
		{"timed out", validator.ErrTimedOut, validator.ErrTimedOut},
		{"publish failure", fmt.Errorf("%w: connection refused", validator.ErrPublishFailure), validator.ErrPublishFailure},
		{"invalid", fmt.Errorf("%w: bad x", validator.ErrInvalidGoal), validator.ErrInvalidGoal},
		{"stopped", validator.ErrStopped, validator.ErrStopped},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, &fakeValidator{submit: func(ctx context.Context, goal validator.Goal) (bool, error) {
				return false, tt.err
			}}, fakePinger{})

			_, err := c.Submit(context.Background(), validator.Goal{VictimID: "v1"})
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	t.Run("decision", func(t *testing.T) {
		c := newTestClient(t, &fakeValidator{submit: func(ctx context.Context, goal validator.Goal) (bool, error) {
			return goal.VictimID == "real", nil
		}}, fakePinger{})

		valid, err := c.Submit(context.Background(), validator.Goal{VictimID: "real"})
		require.NoError(t, err)
		assert.True(t, valid)
	})

	t.Run("unexpected failure keeps message", func(t *testing.T) {
		c := newTestClient(t, &fakeValidator{submit: func(ctx context.Context, goal validator.Goal) (bool, error) {
			return false, errors.New("boom")
		}}, fakePinger{})

		_, err := c.Submit(context.Background(), validator.Goal{VictimID: "v1"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "boom")
	})
}

func TestClient_PreemptAndCurrent(t *testing.T) {
	snap := validator.Snapshot{RequestID: "r1", VictimID: "v1", State: "pending"}
	c := newTestClient(t, &fakeValidator{current: &snap}, fakePinger{})

	require.NoError(t, c.Preempt(context.Background()))

	got, err := c.Current(context.Background())
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "v1", got.VictimID)

	idle := newTestClient(t, &fakeValidator{preempt: validator.ErrNoActiveGoal}, fakePinger{})
	assert.ErrorIs(t, idle.Preempt(context.Background()), validator.ErrNoActiveGoal)

	got, err = idle.Current(context.Background())
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestClient_Health(t *testing.T) {
	c := newTestClient(t, &fakeValidator{}, fakePinger{err: errors.New("connection refused")})

	health, err := c.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "unhealthy", health.Status)
}

func TestClient_Unreachable(t *testing.T) {
	c := NewClient("http://127.0.0.1:1")
	_, err := c.Current(context.Background())
	assert.ErrorIs(t, err, ErrUnreachable)
}
