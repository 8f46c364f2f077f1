package validator

import (
	"context"
	"testing"

	"github.com/dyluth/vigil/internal/rendezvous"
	"github.com/dyluth/vigil/pkg/console"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListener_Handle(t *testing.T) {
	t.Run("unrecognized payloads are counted and ignored", func(t *testing.T) {
		cell := &rendezvous.Cell{}
		require.NoError(t, cell.Arm("r1"))
		require.NoError(t, cell.Activate())

		l := NewListener(nil, cell, console.DefaultTokens(), "test")
		for _, payload := range []string{"", "maybe", "TRUE", "true r1 extra", `{"valid":true}`} {
			err := l.Handle(context.Background(), payload)
			assert.ErrorIs(t, err, ErrUnrecognizedMessage, "payload %q", payload)
		}

		assert.Equal(t, rendezvous.StatePending, cell.State(), "pending goal must be untouched")
		assert.Equal(t, ListenerStats{Unrecognized: 5}, l.Stats())
	})

	t.Run("decision while idle is spurious", func(t *testing.T) {
		cell := &rendezvous.Cell{}
		l := NewListener(nil, cell, console.DefaultTokens(), "test")

		assert.ErrorIs(t, l.Handle(context.Background(), "true"), ErrSpuriousDelivery)
		assert.Equal(t, rendezvous.StateEmpty, cell.State())
		assert.Equal(t, ListenerStats{Spurious: 1}, l.Stats())
	})

	t.Run("decision while armed but unpublished is spurious", func(t *testing.T) {
		cell := &rendezvous.Cell{}
		require.NoError(t, cell.Arm("r1"))
		l := NewListener(nil, cell, console.DefaultTokens(), "test")

		assert.ErrorIs(t, l.Handle(context.Background(), "false"), ErrSpuriousDelivery)
		assert.Equal(t, rendezvous.StateArmed, cell.State())
	})

	t.Run("second decision for one goal is spurious", func(t *testing.T) {
		cell := &rendezvous.Cell{}
		require.NoError(t, cell.Arm("r1"))
		require.NoError(t, cell.Activate())
		l := NewListener(nil, cell, console.DefaultTokens(), "test")

		require.NoError(t, l.Handle(context.Background(), "true"))
		assert.ErrorIs(t, l.Handle(context.Background(), "false"), ErrSpuriousDelivery)

		valid, err := cell.Await(context.Background())
		require.NoError(t, err)
		assert.True(t, valid, "first decision wins")
		assert.Equal(t, ListenerStats{Delivered: 1, Spurious: 1}, l.Stats())
	})

	t.Run("custom tokens", func(t *testing.T) {
		cell := &rendezvous.Cell{}
		require.NoError(t, cell.Arm("r1"))
		require.NoError(t, cell.Activate())
		l := NewListener(nil, cell, console.Tokens{Confirm: "yes", Reject: "no"}, "test")

		assert.ErrorIs(t, l.Handle(context.Background(), "true"), ErrUnrecognizedMessage)
		require.NoError(t, l.Handle(context.Background(), "no"))

		valid, err := cell.Await(context.Background())
		require.NoError(t, err)
		assert.False(t, valid)
	})
}
