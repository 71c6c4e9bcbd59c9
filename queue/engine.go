// Package queue serialises commands to the hub and turns its unreliable
// datagram replies into per-command results.
//
// One worker goroutine admits transactions in submission order and waits for
// each to settle before admitting the next, so at most one is ever on the
// wire. Replies, busy signals and timer expiries settle transactions from
// other goroutines under the engine mutex.
package queue

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mbocsi/lightwaverf/proto"
)

const (
	DefaultSpacing    = 800 * time.Millisecond
	DefaultTimeout    = 10 * time.Second
	DefaultRetryGrace = 5 * time.Second
	DefaultMaxBackoff = 10 * time.Second

	// MaxID bounds generated transaction ids to [0, MaxID).
	MaxID = 100_000_000
)

type Options struct {
	// Spacing is the pause after a successful transaction before the next
	// one is admitted. Failures skip it.
	Spacing time.Duration
	// Timeout bounds the wait for the first reply to a dispatched command.
	Timeout time.Duration
	// RetryGrace is added to the resend delay to form the retry expiry.
	RetryGrace time.Duration
	// MaxBackoff caps the per-transaction backoff delay.
	MaxBackoff time.Duration

	Clock  clockwork.Clock
	NextID func() int

	// OnExecute transmits a payload. It is called without the engine lock
	// held and may deliver replies synchronously.
	OnExecute func(payload string)
}

func (o *Options) setDefaults() {
	if o.Spacing <= 0 {
		o.Spacing = DefaultSpacing
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.RetryGrace <= 0 {
		o.RetryGrace = DefaultRetryGrace
	}
	if o.MaxBackoff <= 0 {
		o.MaxBackoff = DefaultMaxBackoff
	}
	if o.Clock == nil {
		o.Clock = clockwork.NewRealClock()
	}
	if o.NextID == nil {
		o.NextID = RandomID
	}
	if o.OnExecute == nil {
		o.OnExecute = func(string) {}
	}
}

// RandomID draws a transaction id uniformly from [0, MaxID).
func RandomID() int {
	return rand.IntN(MaxID)
}

type Stats struct {
	Queued      int  `json:"queued"`
	Outstanding int  `json:"outstanding"`
	InFlight    bool `json:"in_flight"`
}

type Engine struct {
	opts Options

	mu        sync.Mutex
	pending   []*Transaction
	txs       map[int]*Transaction
	current   *Transaction
	destroyed bool

	wake chan struct{}
	stop chan struct{}
	wg   sync.WaitGroup
}

// New starts an engine. Call Destroy to stop its worker.
func New(opts Options) *Engine {
	opts.setDefaults()
	e := &Engine{
		opts: opts,
		txs:  make(map[int]*Transaction),
		wake: make(chan struct{}, 1),
		stop: make(chan struct{}),
	}
	e.wg.Add(1)
	go e.run()
	return e
}

// Submit queues command and returns its transaction handle.
func (e *Engine) Submit(command string) (*Transaction, error) {
	e.mu.Lock()
	if e.destroyed {
		e.mu.Unlock()
		return nil, ErrQueueDestroyed
	}
	id := e.opts.NextID()
	if _, exists := e.txs[id]; exists {
		e.mu.Unlock()
		slog.Error("Transaction id collision", "id", id)
		return nil, fmt.Errorf("%w: %d", ErrDuplicateID, id)
	}
	tx := &Transaction{
		id:      id,
		command: command,
		payload: fmt.Sprintf("%d,%s", id, command),
		state:   StateQueued,
		delay:   e.opts.Spacing,
		done:    make(chan struct{}),
	}
	e.txs[id] = tx
	e.pending = append(e.pending, tx)
	e.mu.Unlock()

	slog.Debug("Queueing message", "id", id, "payload", tx.payload)
	select {
	case e.wake <- struct{}{}:
	default:
	}
	return tx, nil
}

// Send queues command and waits for its outcome.
func (e *Engine) Send(ctx context.Context, command string) (proto.Response, error) {
	tx, err := e.Submit(command)
	if err != nil {
		return proto.Response{}, err
	}
	return tx.Wait(ctx)
}

// HandleResponse resolves the transaction res answers. Replies for unknown,
// settled or not yet transmitted transactions are dropped.
func (e *Engine) HandleResponse(res proto.Response) {
	e.mu.Lock()
	defer e.mu.Unlock()

	tx, ok := e.txs[res.ID]
	if !ok || tx.state == StateDone || tx.state == StateQueued {
		slog.Debug("No pending transaction for response", "id", res.ID)
		return
	}
	slog.Debug("Transaction completed", "id", tx.id, "attempts", tx.attempts)
	e.settle(tx, res, nil)
}

// HandleRetryableError schedules a resend of transaction id after the hub
// reported it busy. The backoff doubles per busy reply up to MaxBackoff.
func (e *Engine) HandleRetryableError(id int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	tx, ok := e.txs[id]
	if !ok || tx.state == StateDone || tx.state == StateQueued {
		return
	}

	tx.stopTimers()
	tx.gen++
	gen := tx.gen
	tx.delay = min(tx.delay*2, e.opts.MaxBackoff)
	tx.state = StateRetryPending
	wait := tx.delay * 2

	tx.expiry = e.opts.Clock.AfterFunc(e.opts.RetryGrace+wait, func() {
		e.expire(tx, gen, ErrRetryExpired)
	})
	tx.resend = e.opts.Clock.AfterFunc(wait, func() {
		e.resend(tx, gen)
	})
	slog.Debug("Message errored, retrying", "id", id, "delay", tx.delay, "resend_in", wait)
}

// Destroy rejects every outstanding transaction with ErrQueueDestroyed and
// stops the worker. Later submissions fail with the same error.
func (e *Engine) Destroy() {
	e.mu.Lock()
	if e.destroyed {
		e.mu.Unlock()
		return
	}
	e.destroyed = true
	n := len(e.txs)
	for _, tx := range e.txs {
		if tx.state != StateDone {
			e.settle(tx, proto.Response{}, ErrQueueDestroyed)
		}
	}
	e.txs = make(map[int]*Transaction)
	e.pending = nil
	e.current = nil
	close(e.stop)
	e.mu.Unlock()

	e.wg.Wait()
	slog.Debug("Queue destroyed", "rejected", n)
}

func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Stats{
		Queued:      len(e.pending),
		Outstanding: len(e.txs),
		InFlight:    e.current != nil,
	}
}

func (e *Engine) run() {
	defer e.wg.Done()
	for {
		tx := e.next()
		if tx == nil {
			return
		}
		if !e.dispatch(tx) {
			continue
		}

		select {
		case <-tx.done:
		case <-e.stop:
			return
		}

		if tx.err != nil {
			continue
		}
		select {
		case <-e.opts.Clock.After(e.opts.Spacing):
		case <-e.stop:
			return
		}
	}
}

// next blocks until a transaction is queued or the engine stops.
func (e *Engine) next() *Transaction {
	for {
		e.mu.Lock()
		if e.destroyed {
			e.mu.Unlock()
			return nil
		}
		if len(e.pending) > 0 {
			tx := e.pending[0]
			e.pending[0] = nil
			e.pending = e.pending[1:]
			e.mu.Unlock()
			return tx
		}
		e.mu.Unlock()

		select {
		case <-e.wake:
		case <-e.stop:
			return nil
		}
	}
}

func (e *Engine) dispatch(tx *Transaction) bool {
	e.mu.Lock()
	if tx.state != StateQueued || e.destroyed {
		e.mu.Unlock()
		return false
	}
	tx.state = StateInFlight
	tx.attempts = 1
	tx.gen++
	gen := tx.gen
	tx.expiry = e.opts.Clock.AfterFunc(e.opts.Timeout, func() {
		e.expire(tx, gen, ErrExecutionExpired)
	})
	e.current = tx
	payload := tx.payload
	e.mu.Unlock()

	slog.Debug("Processing transaction", "id", tx.id)
	e.opts.OnExecute(payload)
	return true
}

func (e *Engine) resend(tx *Transaction, gen int) {
	e.mu.Lock()
	if tx.state != StateRetryPending || tx.gen != gen {
		e.mu.Unlock()
		return
	}
	tx.state = StateInFlight
	tx.attempts++
	tx.resend = nil
	payload, attempt := tx.payload, tx.attempts
	e.mu.Unlock()

	slog.Debug("Resending message", "id", tx.id, "attempt", attempt)
	e.opts.OnExecute(payload)
}

func (e *Engine) expire(tx *Transaction, gen int, kind error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if tx.state == StateDone || tx.gen != gen {
		return
	}
	slog.Debug("Transaction expired", "id", tx.id, "reason", kind)
	e.settle(tx, proto.Response{}, &TransactionError{Kind: kind, ID: tx.id})
}

// settle moves tx to StateDone exactly once. Callers hold e.mu.
func (e *Engine) settle(tx *Transaction, res proto.Response, err error) {
	if tx.state == StateDone {
		return
	}
	tx.state = StateDone
	tx.stopTimers()
	delete(e.txs, tx.id)
	if e.current == tx {
		e.current = nil
	}
	tx.res, tx.err = res, err
	close(tx.done)
}
