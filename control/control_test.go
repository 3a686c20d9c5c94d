package control

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendThenShutdownYieldsErrShutdown(t *testing.T) {
	h, _ := NewHandle[string](1, nil)
	require.NoError(t, h.Send(context.Background(), "a"))
	h.Shutdown()
	err := h.Send(context.Background(), "b")
	assert.ErrorIs(t, err, ErrShutdown)
}

func TestTrySendReportsFull(t *testing.T) {
	h, _ := NewHandle[string](1, nil)
	require.NoError(t, h.TrySend("a"))
	err := h.TrySend("b")
	var full *ErrFull
	assert.ErrorAs(t, err, &full)
}

func TestShutdownCancelsRootToken(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	h, _ := NewHandle[string](1, cancel)
	h.Shutdown()
	select {
	case <-ctx.Done():
	default:
		t.Fatal("expected root context to be cancelled")
	}
}

func TestSendWaitCorrelatesReply(t *testing.T) {
	h, ch := NewHandle[string](1, nil)
	go func() {
		msg := <-ch
		// Pretend to be the controller processing the message and
		// replying with its correlation id.
		assert.Equal(t, "ping", msg)
	}()

	var capturedID uuid.UUID
	reply, err := h.SendWait(context.Background(), func(id uuid.UUID, replyCh chan<- Reply) string {
		capturedID = id
		go func() { replyCh <- Reply{ID: id, Payload: "pong"} }()
		return "ping"
	}, time.Second)
	require.NoError(t, err)
	assert.Equal(t, capturedID, reply.ID)
	assert.Equal(t, "pong", reply.Payload)
}

func TestSendWaitTimesOut(t *testing.T) {
	h, ch := NewHandle[string](1, nil)
	go func() { <-ch }() // drain, never reply

	_, err := h.SendWait(context.Background(), func(id uuid.UUID, replyCh chan<- Reply) string {
		return "ping"
	}, 20*time.Millisecond)
	assert.ErrorIs(t, err, ErrTimeout)
}
