package queue

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mbocsi/lightwaverf/proto"
)

type State int

const (
	StateQueued State = iota
	StateInFlight
	StateRetryPending
	StateDone
)

func (s State) String() string {
	switch s {
	case StateQueued:
		return "queued"
	case StateInFlight:
		return "in-flight"
	case StateRetryPending:
		return "retry-pending"
	case StateDone:
		return "done"
	}
	return "unknown"
}

// Transaction is one command awaiting its reply. Fields other than the
// channel are guarded by the owning Engine's mutex.
type Transaction struct {
	id      int
	command string
	payload string

	state    State
	delay    time.Duration
	attempts int
	gen      int // bumped whenever timers are re-armed; stale callbacks compare against it

	expiry clockwork.Timer // response timeout, or retry expiry once busy
	resend clockwork.Timer

	done chan struct{}
	res  proto.Response
	err  error
}

func (t *Transaction) ID() int {
	return t.id
}

// Payload is the datagram text sent on the wire.
func (t *Transaction) Payload() string {
	return t.payload
}

func (t *Transaction) Command() string {
	return t.command
}

// Done is closed once the transaction resolves or fails.
func (t *Transaction) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the transaction settles. Cancelling ctx only abandons the
// wait; the transaction keeps its place in the queue.
func (t *Transaction) Wait(ctx context.Context) (proto.Response, error) {
	select {
	case <-t.done:
		return t.res, t.err
	case <-ctx.Done():
		return proto.Response{}, ctx.Err()
	}
}

// Result returns the outcome; only meaningful after Done is closed.
func (t *Transaction) Result() (proto.Response, error) {
	<-t.done
	return t.res, t.err
}

func (t *Transaction) stopTimers() {
	if t.expiry != nil {
		t.expiry.Stop()
		t.expiry = nil
	}
	if t.resend != nil {
		t.resend.Stop()
		t.resend = nil
	}
}
