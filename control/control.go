// Package control implements the agent's control plane: the
// AnonymousControlHandle transport, the text command protocol parsed
// from it, and an optional file-dropped command source.
package control

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrShutdown is returned once a Handle's owner has called Shutdown.
var ErrShutdown = errors.New("control: handle has shut down")

// ErrTimeout is returned by SendWait when no reply arrives before the
// caller-supplied timeout elapses. Distinct from ErrShutdown so callers
// can choose to retry a timeout but give up on shutdown.
var ErrTimeout = errors.New("control: request timed out")

// ErrFull is returned by TrySend when the handle's intake is at
// capacity; it carries the message that could not be enqueued.
type ErrFull struct{ Msg any }

func (e *ErrFull) Error() string { return "control: handle intake is full" }

// Handle is the cloneable client-side transport for one control-message
// type T, modeled on AnonymousControlHandle: await-capacity sends,
// non-blocking sends, and correlated request/reply.
type Handle[T any] struct {
	ch     chan T
	closed chan struct{}
	once   *sync.Once
	cancel context.CancelFunc
}

// NewHandle builds a Handle with the given intake capacity. cancel, if
// non-nil, is invoked by Shutdown to cancel the root token tasks watch
// for their own exit.
func NewHandle[T any](capacity int, cancel context.CancelFunc) (*Handle[T], <-chan T) {
	ch := make(chan T, capacity)
	return &Handle[T]{ch: ch, closed: make(chan struct{}), once: &sync.Once{}, cancel: cancel}, ch
}

// Clone returns a handle sharing the same underlying channel, so
// multiple control-plane callers can hold independent handles to one
// controller.
func (h *Handle[T]) Clone() *Handle[T] {
	return &Handle[T]{ch: h.ch, closed: h.closed, once: h.once, cancel: h.cancel}
}

// Send enqueues msg, blocking until capacity is available, the handle
// shuts down, or ctx is cancelled.
func (h *Handle[T]) Send(ctx context.Context, msg T) error {
	select {
	case <-h.closed:
		return ErrShutdown
	default:
	}
	select {
	case h.ch <- msg:
		return nil
	case <-h.closed:
		return ErrShutdown
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TrySend enqueues msg without blocking, distinguishing a full intake
// from a shut-down one.
func (h *Handle[T]) TrySend(msg T) error {
	select {
	case <-h.closed:
		return ErrShutdown
	default:
	}
	select {
	case h.ch <- msg:
		return nil
	default:
	}
	select {
	case <-h.closed:
		return ErrShutdown
	default:
		return &ErrFull{Msg: msg}
	}
}

// Shutdown cancels the associated root token (if any) and marks the
// handle closed for future sends. Safe to call more than once.
func (h *Handle[T]) Shutdown() {
	h.once.Do(func() {
		if h.cancel != nil {
			h.cancel()
		}
		close(h.closed)
	})
}

// Reply carries the outcome of a SendWait-correlated request back to
// its caller.
type Reply struct {
	ID      uuid.UUID
	Payload any
	Err     error
}

// SendWait sends a message built by build (which receives a fresh
// correlation id and the channel its reply must arrive on) and waits
// up to timeout for the matching Reply. A non-positive timeout means
// wait indefinitely (bounded only by ctx and shutdown).
func (h *Handle[T]) SendWait(ctx context.Context, build func(id uuid.UUID, reply chan<- Reply) T, timeout time.Duration) (Reply, error) {
	id := uuid.New()
	replyCh := make(chan Reply, 1)
	msg := build(id, replyCh)

	waitCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		waitCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	if err := h.Send(waitCtx, msg); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return Reply{}, ErrTimeout
		}
		return Reply{}, err
	}

	select {
	case r := <-replyCh:
		return r, nil
	case <-h.closed:
		return Reply{}, ErrShutdown
	case <-waitCtx.Done():
		if errors.Is(waitCtx.Err(), context.DeadlineExceeded) {
			return Reply{}, ErrTimeout
		}
		return Reply{}, waitCtx.Err()
	}
}

// RequestID is a convenience wrapper so callers building T values can
// embed a typed field without importing uuid directly.
type RequestID = uuid.UUID
