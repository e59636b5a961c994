package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"kitchen-sync/internal/common/logger"
	"kitchen-sync/internal/microservices/board/metrics"
	"kitchen-sync/internal/microservices/board/models"
	"kitchen-sync/internal/microservices/board/repository"
	"kitchen-sync/internal/microservices/board/rules"
)

// SyncClient is the backend as seen by the board.
type SyncClient interface {
	FetchActiveOrders(ctx context.Context) ([]models.Order, error)
	// SubmitStatusChange returns the confirmed order, or nil when the backend
	// confirmed without sending it back.
	SubmitStatusChange(ctx context.Context, orderID int64, target models.Status) (*models.Order, error)
}

// Gate is a cross-console in-flight marker.
type Gate interface {
	Acquire(ctx context.Context, orderID int64, mutationID string) (bool, error)
	Release(ctx context.Context, orderID int64, mutationID string) error
}

// EventSink receives one event per settled mutation.
type EventSink interface {
	Publish(ctx context.Context, e models.StatusEvent) error
}

type CoordinatorInterface interface {
	Advance(ctx context.Context, orderID int64, action rules.Action) (*Ticket, error)
	Pending(orderID int64) bool
	ReplaceAll(orders []models.Order)
	Drain(ctx context.Context) error
}

// Outcome is the settled result of one mutation. Err is nil when the backend
// confirmed, a *SyncFailure otherwise.
type Outcome struct {
	MutationID string
	OrderID    int64
	From       models.Status
	To         models.Status
	Order      models.Order
	Err        error
}

// Ticket tracks one accepted mutation.
type Ticket struct {
	MutationID string
	OrderID    int64
	From       models.Status
	To         models.Status
	Optimistic models.Order

	done    chan struct{}
	outcome Outcome
}

// Done is closed once the mutation has settled.
func (t *Ticket) Done() <-chan struct{} { return t.done }

// Outcome is valid after Done is closed.
func (t *Ticket) Outcome() Outcome { return t.outcome }

func (t *Ticket) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-t.done:
		return t.outcome, nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}

type pendingMutation struct {
	rollback   models.Order
	optimistic models.Order
	ticket     *Ticket
}

// Coordinator applies status changes optimistically and settles them against
// the backend, one in-flight change per order.
type Coordinator struct {
	store   repository.OrderStoreInterface
	client  SyncClient
	gate    Gate
	sinks   []EventSink
	metrics *metrics.Metrics
	lg      *logger.Logger
	actor   string
	newID   func() string

	sinkTimeout time.Duration

	mu       sync.Mutex
	pending  map[int64]*pendingMutation
	inflight sync.Map
	wg       sync.WaitGroup
}

type Option func(*Coordinator)

func WithGate(g Gate) Option                 { return func(c *Coordinator) { c.gate = g } }
func WithSinks(s ...EventSink) Option        { return func(c *Coordinator) { c.sinks = append(c.sinks, s...) } }
func WithMetrics(m *metrics.Metrics) Option  { return func(c *Coordinator) { c.metrics = m } }
func WithLogger(lg *logger.Logger) Option    { return func(c *Coordinator) { c.lg = lg } }
func WithActor(name string) Option           { return func(c *Coordinator) { c.actor = name } }
func WithIDGenerator(f func() string) Option { return func(c *Coordinator) { c.newID = f } }

func NewCoordinator(store repository.OrderStoreInterface, client SyncClient, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:       store,
		client:      client,
		lg:          logger.New("board"),
		actor:       "kitchen-sync",
		newID:       uuid.NewString,
		sinkTimeout: 5 * time.Second,
		pending:     make(map[int64]*pendingMutation),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Advance validates action, applies it to the store and returns before the
// backend answers. Rejections leave the store and the network untouched.
func (c *Coordinator) Advance(ctx context.Context, orderID int64, action rules.Action) (*Ticket, error) {
	c.mu.Lock()
	if _, busy := c.pending[orderID]; busy {
		c.mu.Unlock()
		c.rejected("in_flight")
		return nil, fmt.Errorf("order %d: %w", orderID, ErrMutationInFlight)
	}
	current, ok := c.store.Get(orderID)
	if !ok {
		c.mu.Unlock()
		c.rejected("not_found")
		return nil, fmt.Errorf("order %d: %w", orderID, ErrOrderNotFound)
	}
	target, err := rules.NextStatus(current.Status, action)
	if err != nil {
		c.mu.Unlock()
		c.rejected("invalid_transition")
		return nil, fmt.Errorf("order %d: %w", orderID, err)
	}

	optimistic := current.WithStatus(target)
	t := &Ticket{
		MutationID: c.newID(),
		OrderID:    orderID,
		From:       current.Status,
		To:         target,
		Optimistic: optimistic.Clone(),
		done:       make(chan struct{}),
	}
	c.pending[orderID] = &pendingMutation{rollback: current, optimistic: optimistic, ticket: t}
	c.inflight.Store(orderID, t.MutationID)
	c.store.Put(optimistic)
	c.wg.Add(1)
	c.mu.Unlock()

	if c.metrics != nil {
		c.metrics.Inflight.Inc()
	}
	c.lg.Debug("order_optimistic_update", map[string]any{
		"order_id": orderID, "mutation_id": t.MutationID, "old_status": t.From, "new_status": t.To,
	})

	go c.submit(context.WithoutCancel(ctx), t)
	return t, nil
}

// Pending reports whether a status change for orderID awaits the backend.
// It does not take the coordinator lock, so store listeners may call it.
func (c *Coordinator) Pending(orderID int64) bool {
	_, ok := c.inflight.Load(orderID)
	return ok
}

// ReplaceAll loads a fresh fetch into the store. Orders with a change in
// flight keep their optimistic state and take the fetched version as their
// new rollback point.
func (c *Coordinator) ReplaceAll(orders []models.Order) {
	c.mu.Lock()
	defer c.mu.Unlock()
	merged := make([]models.Order, 0, len(orders))
	for _, o := range orders {
		if p, ok := c.pending[o.ID]; ok {
			p.rollback = o.Clone()
			p.optimistic = o.WithStatus(p.ticket.To)
			merged = append(merged, p.optimistic)
			continue
		}
		merged = append(merged, o)
	}
	c.store.ReplaceAll(merged)
	if c.metrics != nil {
		c.metrics.ActiveOrders.Set(float64(len(merged)))
	}
}

// Drain blocks until every accepted mutation has settled.
func (c *Coordinator) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Coordinator) submit(ctx context.Context, t *Ticket) {
	defer c.wg.Done()
	start := time.Now()
	confirmed, err := c.send(ctx, t)
	if c.metrics != nil {
		c.metrics.SubmitLatency.Observe(time.Since(start).Seconds())
		c.metrics.Inflight.Dec()
	}
	out := c.settle(t, confirmed, err)
	c.publish(ctx, t, out)
}

func (c *Coordinator) send(ctx context.Context, t *Ticket) (*models.Order, error) {
	if c.gate != nil {
		ok, err := c.gate.Acquire(ctx, t.OrderID, t.MutationID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("held by another console: %w", ErrMutationInFlight)
		}
		defer func() {
			if err := c.gate.Release(ctx, t.OrderID, t.MutationID); err != nil {
				c.lg.Warn("inflight_gate_release_failed", map[string]any{"order_id": t.OrderID, "err": err.Error()})
			}
		}()
	}
	confirmed, err := c.client.SubmitStatusChange(ctx, t.OrderID, t.To)
	if err != nil {
		return nil, err
	}
	if confirmed != nil && confirmed.ID != t.OrderID {
		return nil, fmt.Errorf("%w: got order %d", ErrWrongConfirmation, confirmed.ID)
	}
	return confirmed, nil
}

func (c *Coordinator) settle(t *Ticket, confirmed *models.Order, err error) Outcome {
	out := Outcome{MutationID: t.MutationID, OrderID: t.OrderID, From: t.From, To: t.To}

	c.mu.Lock()
	p := c.pending[t.OrderID]
	delete(c.pending, t.OrderID)
	c.inflight.Delete(t.OrderID)
	_, present := c.store.Get(t.OrderID)
	switch {
	case err != nil:
		out.Err = &SyncFailure{OrderID: t.OrderID, Target: t.To, Err: err}
		out.Order = p.rollback.Clone()
		if present {
			c.store.Put(p.rollback)
		}
	case confirmed != nil:
		c.store.Put(*confirmed)
		out.Order, _ = c.store.Get(t.OrderID)
	default:
		out.Order = p.optimistic.Clone()
		if present {
			// Listeners learn the change is no longer pending.
			c.store.Put(p.optimistic)
		}
	}
	c.mu.Unlock()

	t.outcome = out
	close(t.done)

	fields := map[string]any{
		"order_id": t.OrderID, "mutation_id": t.MutationID, "old_status": t.From, "new_status": t.To,
	}
	if out.Err != nil {
		c.lg.Error("order_status_rolled_back", out.Err, fields)
		if c.metrics != nil {
			c.metrics.Mutations.WithLabelValues(string(models.OutcomeRolledBack)).Inc()
		}
		return out
	}
	fields["confirmed_status"] = out.Order.Status
	c.lg.Info("order_status_confirmed", fields)
	if c.metrics != nil {
		c.metrics.Mutations.WithLabelValues(string(models.OutcomeConfirmed)).Inc()
	}
	return out
}

func (c *Coordinator) publish(ctx context.Context, t *Ticket, out Outcome) {
	if len(c.sinks) == 0 {
		return
	}
	ev := models.StatusEvent{
		MutationID: t.MutationID,
		OrderID:    t.OrderID,
		Table:      out.Order.Table,
		OldStatus:  t.From,
		NewStatus:  t.To,
		Outcome:    models.OutcomeConfirmed,
		ChangedBy:  c.actor,
		Timestamp:  time.Now().UTC(),
	}
	if out.Err != nil {
		ev.Outcome = models.OutcomeRolledBack
		ev.Error = errors.Unwrap(out.Err).Error()
	} else {
		ev.NewStatus = out.Order.Status
	}
	for _, s := range c.sinks {
		sctx, cancel := context.WithTimeout(ctx, c.sinkTimeout)
		if err := s.Publish(sctx, ev); err != nil {
			c.lg.Error("status_event_publish_failed", err, map[string]any{"mutation_id": t.MutationID, "sink": fmt.Sprintf("%T", s)})
		}
		cancel()
	}
}

func (c *Coordinator) rejected(reason string) {
	if c.metrics != nil {
		c.metrics.Rejected.WithLabelValues(reason).Inc()
	}
}
