package widget

import (
	"context"
	"errors"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/fakhrymubarak/weather-widget/internal/config"
	"github.com/fakhrymubarak/weather-widget/internal/metrics"
	"github.com/fakhrymubarak/weather-widget/internal/repository"
)

// Observer receives every state the controller moves to, in transition order.
// It runs outside the controller lock, one call at a time.
type Observer func(State)

type Option func(*Controller)

// WithDiscardStale makes the controller apply a fetch outcome only when it
// belongs to the most recently issued cycle. Off by default: the last
// completion wins regardless of issue order.
func WithDiscardStale(discard bool) Option {
	return func(c *Controller) {
		c.discardStale = discard
	}
}

func WithLogger(l *zap.SugaredLogger) Option {
	return func(c *Controller) {
		if l != nil {
			c.log = l
		}
	}
}

func WithObserver(o Observer) Option {
	return func(c *Controller) {
		c.observers = append(c.observers, o)
	}
}

// Controller owns the view state of one mounted widget. Transitions are
// applied one at a time; fetch cycles run on their own goroutines and never
// block the caller.
type Controller struct {
	repo         repository.WeatherRepository
	log          *zap.SugaredLogger
	discardStale bool

	mu        sync.Mutex
	state     State
	seq       uint64
	pending   int
	idle      chan struct{}
	idleOpen  bool
	unmounted bool
	observers []Observer

	// states waiting for observers; drained by whoever holds flushing
	outbox   []notice
	flushing bool
}

type notice struct {
	state     State
	observers []Observer
}

// New mounts a widget with an empty state.
func New(repo repository.WeatherRepository, opts ...Option) *Controller {
	c := &Controller{
		repo: repo,
		log:  config.GetLogger(),
		idle: closedChan(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func closedChan() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

// State returns a snapshot of the current view state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Subscribe registers o for every following transition.
func (c *Controller) Subscribe(o Observer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.unmounted {
		return
	}
	c.observers = append(c.observers, o)
}

// Dispatch applies a. When it makes the results visible, one fetch cycle
// starts for the current city unless that city is blank.
func (c *Controller) Dispatch(a Action) {
	city, shown := c.apply(a)
	c.flush()
	if shown && strings.TrimSpace(city) != "" {
		c.startFetch(city)
	}
}

func (c *Controller) SetCity(city string) {
	c.Dispatch(SetCity{City: city})
}

func (c *Controller) ToggleShowWeather() {
	c.Dispatch(ToggleShowWeather{})
}

// Search is the user's explicit submit. Visibility always toggles; a fetch
// cycle starts only for a non-blank city. The fetch that the toggle itself
// would trigger is folded into this one, so a Search issues at most one GET.
func (c *Controller) Search() {
	city, _ := c.apply(ToggleShowWeather{})
	c.flush()
	if strings.TrimSpace(city) == "" {
		return
	}
	c.startFetch(city)
}

// Wait blocks until no fetch cycle is outstanding, and observers have seen
// its outcome, or ctx is done.
func (c *Controller) Wait(ctx context.Context) error {
	c.mu.Lock()
	idle := c.idle
	c.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Unmount drops the widget. Outstanding fetches still run to completion but
// their outcome is discarded, and further actions are ignored.
func (c *Controller) Unmount() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.unmounted = true
	c.observers = nil
	c.outbox = nil
	c.settleLocked()
}

func (c *Controller) Unmounted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.unmounted
}

// apply runs one transition and reports the resulting city and whether
// ShowWeather went from false to true.
func (c *Controller) apply(a Action) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.unmounted {
		return c.state.City, false
	}
	wasShown := c.state.ShowWeather
	c.applyLocked(a)
	return c.state.City, !wasShown && c.state.ShowWeather
}

// applyLocked reduces a and queues the new state for the current observers.
// Callers run flush once they release the lock.
func (c *Controller) applyLocked(a Action) {
	c.state = Reduce(c.state, a)
	if n := len(c.observers); n > 0 {
		c.outbox = append(c.outbox, notice{state: c.state, observers: c.observers[:n:n]})
	}
}

// flush hands queued states to their observers without holding the lock.
// Only one goroutine flushes at a time, so transition order is kept; a
// caller finding a flush in progress leaves its states to that goroutine.
func (c *Controller) flush() {
	c.mu.Lock()
	if c.flushing {
		c.mu.Unlock()
		return
	}
	c.flushing = true
	for len(c.outbox) > 0 && !c.unmounted {
		batch := c.outbox
		c.outbox = nil
		c.mu.Unlock()
		for _, n := range batch {
			for _, o := range n.observers {
				o(n.state)
			}
		}
		c.mu.Lock()
	}
	c.outbox = nil
	c.flushing = false
	c.settleLocked()
	c.mu.Unlock()
}

// settleLocked releases Wait once nothing is in flight.
func (c *Controller) settleLocked() {
	if c.idleOpen && c.pending == 0 && !c.flushing && len(c.outbox) == 0 {
		close(c.idle)
		c.idleOpen = false
	}
}

func (c *Controller) startFetch(city string) {
	c.mu.Lock()
	if c.unmounted {
		c.mu.Unlock()
		return
	}
	c.seq++
	token := c.seq
	if !c.idleOpen {
		c.idle = make(chan struct{})
		c.idleOpen = true
	}
	c.pending++
	c.applyLocked(FetchRequested{})
	c.mu.Unlock()
	c.flush()

	c.log.Debugw("Fetch cycle started", "city", city, "seq", token)
	go c.runFetch(token, city)
}

func (c *Controller) runFetch(token uint64, city string) {
	payload, err := c.repo.FetchCurrent(context.Background(), city)

	var outcome Action
	if err != nil {
		outcome = FetchFailed{Message: fetchMessage(err)}
	} else {
		outcome = FetchSucceeded{Payload: payload}
	}
	c.complete(token, outcome)
}

func (c *Controller) complete(token uint64, outcome Action) {
	defer c.flush()
	c.mu.Lock()
	defer c.mu.Unlock()

	c.pending--
	defer c.settleLocked()

	switch {
	case c.unmounted:
		c.log.Debugw("Fetch outcome dropped after unmount", "seq", token)
		metrics.FetchCycles.WithLabelValues(metrics.OutcomeDiscarded).Inc()
		return
	case c.discardStale && token != c.seq:
		c.log.Debugw("Stale fetch outcome discarded", "seq", token, "latest", c.seq)
		metrics.FetchCycles.WithLabelValues(metrics.OutcomeDiscarded).Inc()
		return
	}

	if f, ok := outcome.(FetchFailed); ok {
		c.log.Debugw("Fetch cycle failed", "seq", token, "error", f.Message)
		metrics.FetchCycles.WithLabelValues(metrics.OutcomeFailure).Inc()
	} else {
		c.log.Debugw("Fetch cycle succeeded", "seq", token)
		metrics.FetchCycles.WithLabelValues(metrics.OutcomeSuccess).Inc()
	}
	c.applyLocked(outcome)
}

func fetchMessage(err error) string {
	var fe *repository.FetchError
	if errors.As(err, &fe) {
		return fe.Message
	}
	return err.Error()
}
