package x32

import (
	"sync"
	"time"

	"github.com/MMSchneider/dubswitch-sub000/internal/infrastructure/logging"
	"github.com/MMSchneider/dubswitch-sub000/internal/osc"
)

// QueryResult is delivered exactly once per issued query.
type QueryResult struct {
	// ID is the query's unique identifier.
	ID uint64

	// Values holds one entry per expected part, in the order the parts
	// were given. Slots whose reply never arrived are nil.
	Values []any

	// TimedOut is true when the deadline elapsed before every part was
	// matched. Values then carries whatever was collected.
	TimedOut bool
}

// pendingQuery is one in-flight multi-part read.
type pendingQuery struct {
	id        uint64
	parts     []string
	values    []any
	filled    []bool
	fulfilled int
	timer     *time.Timer
	sink      func(QueryResult)
}

// Correlator matches unordered inbound replies back to the pending
// queries that expect them.
//
// Matching is broadcast, not single-consumption: one reply fills the
// matching slot of every pending query whose pattern it satisfies, since
// independent queries (a routing snapshot and a keep-alive probe, say)
// can legitimately be in flight for overlapping reply classes.
//
// Resolution is exactly-once per query id: a query leaves the pending
// table under the lock at the moment it resolves, so a duplicate or late
// reply finds nothing to match and is dropped silently. Each query owns a
// cancellable timer, stopped at fulfilment, so a stale deadline can never
// fire a second callback.
//
// Thread Safety: all methods are safe for concurrent use.
type Correlator struct {
	mu      sync.Mutex
	nextID  uint64
	pending map[uint64]*pendingQuery
	closed  bool

	logger  *logging.Logger
	metrics *Metrics
}

// NewCorrelator creates an empty correlator.
func NewCorrelator(logger *logging.Logger, metrics *Metrics) *Correlator {
	return &Correlator{
		pending: make(map[uint64]*pendingQuery),
		logger:  logger,
		metrics: metrics,
	}
}

// Issue registers a new pending query expecting one reply per address
// pattern in parts, and starts its deadline timer. The caller is
// responsible for sending the outbound reads; the correlator only tracks
// replies.
//
// sink is invoked exactly once, from whichever goroutine completes the
// query (the read loop on fulfilment, the timer on expiry).
//
// Returns the query id, or 0 if the correlator is closed.
func (c *Correlator) Issue(parts []string, timeout time.Duration, sink func(QueryResult)) uint64 {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return 0
	}

	c.nextID++
	id := c.nextID
	q := &pendingQuery{
		id:     id,
		parts:  parts,
		values: make([]any, len(parts)),
		filled: make([]bool, len(parts)),
		sink:   sink,
	}
	q.timer = time.AfterFunc(timeout, func() { c.expire(id) })
	c.pending[id] = q
	c.mu.Unlock()

	c.metrics.queryIssued()
	c.logger.Debug("query issued", "id", id, "parts", len(parts), "timeout", timeout)
	return id
}

// HandleReply offers an inbound message to every pending query. The reply
// value is the typed-argument unwrap of the first argument (nil for a
// bare reply). Queries completed by this reply resolve before HandleReply
// returns.
func (c *Correlator) HandleReply(msg osc.Message) {
	var value any
	if len(msg.Args) > 0 {
		value = msg.Args[0].Value()
	}

	var resolved []*pendingQuery

	c.mu.Lock()
	for _, q := range c.pending {
		for i, part := range q.parts {
			if q.filled[i] || part != msg.Address {
				continue
			}
			q.values[i] = value
			q.filled[i] = true
			q.fulfilled++
		}
		if q.fulfilled == len(q.parts) {
			q.timer.Stop()
			delete(c.pending, q.id)
			resolved = append(resolved, q)
		}
	}
	c.mu.Unlock()

	for _, q := range resolved {
		c.metrics.queryFulfilled()
		c.logger.Debug("query fulfilled", "id", q.id)
		q.sink(QueryResult{ID: q.id, Values: q.values})
	}
}

// PendingCount returns the number of in-flight queries.
func (c *Correlator) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Close resolves every in-flight query as timed out and rejects further
// Issue calls. Safe to call once during shutdown.
func (c *Correlator) Close() {
	c.mu.Lock()
	c.closed = true
	remaining := make([]*pendingQuery, 0, len(c.pending))
	for id, q := range c.pending {
		q.timer.Stop()
		delete(c.pending, id)
		remaining = append(remaining, q)
	}
	c.mu.Unlock()

	for _, q := range remaining {
		q.sink(QueryResult{ID: q.id, Values: q.values, TimedOut: true})
	}
}

// expire resolves query id as timed out, delivering the partial result.
// A query already fulfilled (and removed) is ignored.
func (c *Correlator) expire(id uint64) {
	c.mu.Lock()
	q, ok := c.pending[id]
	if ok {
		delete(c.pending, id)
	}
	c.mu.Unlock()

	if !ok {
		return
	}

	c.metrics.queryTimedOut()
	c.logger.Debug("query timed out", "id", id, "fulfilled", q.fulfilled, "expected", len(q.parts))
	q.sink(QueryResult{ID: q.id, Values: q.values, TimedOut: true})
}
