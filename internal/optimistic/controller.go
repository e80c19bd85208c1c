package optimistic

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// State is the controller's position in the intent lifecycle.
type State int

const (
	// StateIdle: the displayed list equals the last authoritative read.
	StateIdle State = iota
	// StatePending: at least one intent has been applied speculatively and
	// its backend call has not settled.
	StatePending
	// StateSettled: a backend call has resolved and the authoritative list
	// is being installed. The controller leaves it within the same Settle call.
	StateSettled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePending:
		return "pending"
	case StateSettled:
		return "settled"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Backend is the remote side of a list: one authoritative read plus the
// three mutations. Errors are returned as values; implementations validate
// input and ownership themselves.
type Backend[T any] interface {
	List(ctx context.Context) ([]T, error)
	Create(ctx context.Context, payload T) (T, error)
	Update(ctx context.Context, id string, payload T) (T, error)
	Delete(ctx context.Context, id string) (T, error)
}

// Settlement is the outcome of executing one intent: the mutation result
// followed by the authoritative re-read.
type Settlement[T any] struct {
	Intent Intent[T]
	Record T
	Err    error

	List     []T
	FetchErr error
}

// Failed reports whether the mutation itself failed.
func (s Settlement[T]) Failed() bool { return s.Err != nil }

// Options configures a Controller.
type Options[T any] struct {
	// Name is the entity label used in notices, e.g. "Author".
	Name         string
	DeletePolicy DeletePolicy
	// Prepare, if set, decorates a payload before it is applied to the
	// speculative list (for example to attach a joined record). The backend
	// receives the undecorated payload.
	Prepare  func(T) T
	Notifier Notifier
	Logger   *slog.Logger
	// OnState observes every state transition.
	OnState func(from, to State)
}

// Controller owns one displayed list and sequences intents through
// Begin, Execute and Settle. It is not safe for concurrent use: Begin and
// Settle belong to a single event loop. Execute only reads immutable
// configuration and may run on another goroutine.
type Controller[T Entity[T]] struct {
	backend  Backend[T]
	rec      Reconciler[T]
	name     string
	prepare  func(T) T
	notifier Notifier
	log      *slog.Logger
	onState  func(from, to State)

	confirmed []T
	view      []T
	state     State
	inFlight  int
}

// NewController returns an idle controller with an empty list. Call Load or
// Seed before displaying it.
func NewController[T Entity[T]](backend Backend[T], opts Options[T]) *Controller[T] {
	c := &Controller[T]{
		backend:  backend,
		rec:      Reconciler[T]{Delete: opts.DeletePolicy},
		name:     opts.Name,
		prepare:  opts.Prepare,
		notifier: opts.Notifier,
		log:      opts.Logger,
		onState:  opts.OnState,
	}
	if c.name == "" {
		c.name = "Record"
	}
	if c.notifier == nil {
		c.notifier = discard{}
	}
	if c.log == nil {
		c.log = slog.Default()
	}
	return c
}

// Load seeds the controller from an authoritative read.
func (c *Controller[T]) Load(ctx context.Context) error {
	list, err := c.backend.List(ctx)
	if err != nil {
		return fmt.Errorf("load %s list: %w", strings.ToLower(c.name), err)
	}
	c.Seed(list)
	return nil
}

// Seed replaces both the confirmed and displayed lists. Use it when an
// authoritative list arrives from outside the controller.
func (c *Controller[T]) Seed(list []T) {
	c.confirmed = clone(list)
	c.view = clone(list)
}

// View returns a copy of the displayed list.
func (c *Controller[T]) View() []T { return clone(c.view) }

// Confirmed returns a copy of the last authoritative list.
func (c *Controller[T]) Confirmed() []T { return clone(c.confirmed) }

// State returns the current lifecycle state.
func (c *Controller[T]) State() State { return c.state }

// InFlight returns the number of intents begun but not yet settled.
func (c *Controller[T]) InFlight() int { return c.inFlight }

// Begin applies intent to the displayed list and returns the speculative
// list. Overlapping intents are not rejected.
func (c *Controller[T]) Begin(intent Intent[T]) []T {
	shown := intent
	if c.prepare != nil {
		shown.Payload = c.prepare(shown.Payload)
	}
	c.view = c.rec.Apply(c.view, shown)
	c.inFlight++
	c.transition(StatePending)
	c.log.Debug("optimistic begin", "entity", c.name, "kind", string(intent.Kind), "id", intent.Payload.EntityID(), "in_flight", c.inFlight)
	return c.View()
}

// Execute performs the backend mutation for intent and then re-reads the
// authoritative list. The mutation is detached from ctx cancellation: once
// dispatched it always runs to completion.
func (c *Controller[T]) Execute(ctx context.Context, intent Intent[T]) Settlement[T] {
	s := Settlement[T]{Intent: intent}
	mctx := context.WithoutCancel(ctx)

	switch intent.Kind {
	case KindCreate:
		s.Record, s.Err = c.backend.Create(mctx, intent.Payload)
	case KindUpdate:
		s.Record, s.Err = c.backend.Update(mctx, intent.Payload.EntityID(), intent.Payload)
	case KindDelete:
		s.Record, s.Err = c.backend.Delete(mctx, intent.Payload.EntityID())
	default:
		s.Err = fmt.Errorf("unknown intent kind %q", intent.Kind)
	}

	s.List, s.FetchErr = c.backend.List(ctx)
	return s
}

// Settle installs the outcome of an executed intent and returns the new
// displayed list. The authoritative list always replaces the speculative
// one. When the mutation failed and the re-read also failed, the last
// confirmed list is restored.
func (c *Controller[T]) Settle(s Settlement[T]) []T {
	if c.inFlight > 0 {
		c.inFlight--
	}
	c.transition(StateSettled)

	switch {
	case s.FetchErr == nil:
		c.confirmed = clone(s.List)
		c.view = clone(s.List)
	case s.Err != nil:
		c.view = clone(c.confirmed)
		c.log.Warn("refetch after failed mutation", "entity", c.name, "err", s.FetchErr)
	default:
		c.log.Warn("refetch after mutation", "entity", c.name, "err", s.FetchErr)
	}

	action := string(s.Intent.Kind)
	if s.Err != nil {
		c.log.Error("optimistic mutation failed", "entity", c.name, "kind", action, "err", s.Err)
		c.notifier.Notify(Notice{
			Title:       "Failed to " + action,
			Description: s.Err.Error(),
			Variant:     VariantDestructive,
		})
	} else {
		c.notifier.Notify(Notice{
			Title:       "Success",
			Description: fmt.Sprintf("%s %sd!", c.name, action),
			Variant:     VariantDefault,
		})
	}

	if c.inFlight > 0 {
		c.transition(StatePending)
	} else {
		c.transition(StateIdle)
	}
	return c.View()
}

// Do runs Begin, Execute and Settle in sequence. It is meant for callers
// without an event loop, such as the CLI.
func (c *Controller[T]) Do(ctx context.Context, intent Intent[T]) (Settlement[T], error) {
	c.Begin(intent)
	s := c.Execute(ctx, intent)
	c.Settle(s)
	return s, s.Err
}

func (c *Controller[T]) transition(to State) {
	from := c.state
	c.state = to
	if c.onState != nil && from != to {
		c.onState(from, to)
	}
}

func clone[T any](list []T) []T {
	if list == nil {
		return nil
	}
	out := make([]T, len(list))
	copy(out, list)
	return out
}
