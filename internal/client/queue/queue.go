// Package queue buffers requests attempted while the client is offline and
// replays them in submission order once connectivity returns.
//
// Every queued request is removed exactly once: it is either replayed and
// settled with the replay's outcome, or rejected (caller gave up, queue
// abandoned). Nothing is persisted; a process restart drops the queue.
package queue

import (
	"context"
	"errors"
	"sync"

	"github.com/dmitrijs2005/sessionkeeper/internal/client/models"
	"github.com/dmitrijs2005/sessionkeeper/internal/logging"
)

// ErrAbandoned rejects requests still queued when the queue is abandoned.
var ErrAbandoned = errors.New("offline queue abandoned")

// ReplayFunc sends a queued request. It is called with one request at a time.
type ReplayFunc func(ctx context.Context, req models.Request) (*models.Response, error)

// Pending is the eventual outcome of a queued request.
type Pending struct {
	q    *Queue
	req  models.Request
	done chan struct{}
	once sync.Once
	// abort cancels the replay in flight, nil while queued; guarded by q.mu.
	abort context.CancelFunc
	resp *models.Response
	err  error
}

// Request returns the queued descriptor.
func (p *Pending) Request() models.Request {
	return p.req
}

// Done is closed once the request has been settled.
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Result returns the outcome; valid only after Done is closed.
func (p *Pending) Result() (*models.Response, error) {
	<-p.done
	return p.resp, p.err
}

// Wait blocks until the request is settled or ctx ends. If ctx ends first,
// the request is canceled with ctx's error and Wait returns without waiting
// for a replay in flight to finish.
func (p *Pending) Wait(ctx context.Context) (*models.Response, error) {
	select {
	case <-p.done:
		return p.resp, p.err
	case <-ctx.Done():
		p.Cancel(ctx.Err())
		<-p.done
		return p.resp, p.err
	}
}

// Cancel rejects the request with err. A queued request is withdrawn; one
// being replayed has its replay context canceled and its outcome discarded.
// Cancel is a no-op once the request is settled.
func (p *Pending) Cancel(err error) {
	p.q.withdraw(p)
	p.settle(nil, err)
}

func (p *Pending) settle(resp *models.Response, err error) {
	p.once.Do(func() {
		p.resp, p.err = resp, err
		close(p.done)
	})
}

type Option func(*Queue)

// WithRequeue sets the predicate for replay errors that mean "still offline".
// Such a request goes back to the head of the queue and draining stops.
func WithRequeue(fn func(error) bool) Option {
	return func(q *Queue) { q.requeue = fn }
}

type Queue struct {
	log     logging.Logger
	requeue func(error) bool

	mu    sync.Mutex
	items []*Pending

	// drainMu admits one drain loop at a time.
	drainMu sync.Mutex
}

func New(log logging.Logger, opts ...Option) *Queue {
	q := &Queue{log: log, requeue: func(error) bool { return false }}
	for _, o := range opts {
		o(q)
	}
	return q
}

// Enqueue appends req at the tail.
func (q *Queue) Enqueue(req models.Request) *Pending {
	p := &Pending{q: q, req: req, done: make(chan struct{})}

	q.mu.Lock()
	q.items = append(q.items, p)
	n := len(q.items)
	q.mu.Unlock()

	q.log.Debug(context.Background(), "request queued while offline",
		"request_id", req.ID, "method", req.Method, "path", req.Path, "queued", n)
	return p
}

// Len returns the number of requests waiting.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Drain replays queued requests strictly one after another in FIFO order and
// returns how many were settled. Requests enqueued while draining are
// replayed by the same loop. Draining stops early when ctx ends or a replay
// fails with a requeue error; the remaining requests stay queued in order.
func (q *Queue) Drain(ctx context.Context, replay ReplayFunc) int {
	q.drainMu.Lock()
	defer q.drainMu.Unlock()

	settled := 0
	for ctx.Err() == nil {
		p, rctx, cancel := q.take(ctx)
		if p == nil {
			break
		}

		resp, err := replay(rctx, p.req)
		withdrawn := rctx.Err() != nil && ctx.Err() == nil
		cancel()

		if err != nil && !withdrawn && q.requeue(err) {
			q.pushFront(p)
			q.log.Info(ctx, "replay interrupted, request kept at queue head",
				"request_id", p.req.ID, "error", err)
			break
		}

		p.settle(resp, err)
		settled++
	}

	if settled > 0 {
		q.log.Info(ctx, "offline queue drained", "replayed", settled, "remaining", q.Len())
	}
	return settled
}

// Abandon rejects every queued request with ErrAbandoned.
func (q *Queue) Abandon() int {
	q.mu.Lock()
	items := q.items
	q.items = nil
	q.mu.Unlock()

	for _, p := range items {
		p.settle(nil, ErrAbandoned)
	}
	return len(items)
}

// take pops the head and binds it to a replay context its waiter can cancel.
func (q *Queue) take(ctx context.Context) (*Pending, context.Context, context.CancelFunc) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil, nil, nil
	}
	p := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]

	rctx, cancel := context.WithCancel(ctx)
	p.abort = cancel
	return p, rctx, cancel
}

func (q *Queue) pushFront(p *Pending) {
	q.mu.Lock()
	defer q.mu.Unlock()
	p.abort = nil
	q.items = append([]*Pending{p}, q.items...)
}

// withdraw removes p from the queue, or cancels its replay if it is in flight.
func (q *Queue) withdraw(p *Pending) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if p.abort != nil {
		p.abort()
		return
	}
	for i, it := range q.items {
		if it == p {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return
		}
	}
}
