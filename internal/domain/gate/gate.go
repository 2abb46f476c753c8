// Package gate mediates between a requested privileged action and its
// two-stage precondition: an authenticated identity, then a provisioned
// generation-service key. The key check is strictly local and always
// precedes any external call; "try and interpret the failure" is not an
// acceptable substitute.
package gate

import (
	"context"
	"errors"
	"sync"

	"github.com/finaccosolutions/vbastudio/internal/domain/identity"
)

// State is the controller's position within one action request.
type State string

const (
	StateIdle         State = "idle"
	StateAwaitingAuth State = "awaiting_auth"
	StateAwaitingKey  State = "awaiting_key"
	StateReady        State = "ready"
)

var (
	// ErrCancelled indicates the user abandoned an acquisition flow;
	// the requested action never runs.
	ErrCancelled = errors.New("gate: cancelled")
	// ErrBusy indicates a request arrived while another is in flight.
	ErrBusy = errors.New("gate: request in flight")
	// ErrResolving indicates the session store has not finished its
	// initial resolution, so no gating decision can be made yet.
	ErrResolving = errors.New("gate: session still resolving")
)

// Action is the deferred privileged operation. It runs exactly once, and
// only from the Ready state.
type Action func(ctx context.Context) error

// Flow acquires a missing precondition, e.g. by walking the user through
// sign-in or key entry. Run returns nil once the precondition is expected
// to hold, ErrCancelled when the user backs out.
type Flow interface {
	Run(ctx context.Context) error
}

// FlowFunc adapts a function to the Flow interface.
type FlowFunc func(ctx context.Context) error

func (f FlowFunc) Run(ctx context.Context) error { return f(ctx) }

// Session is the slice of the identity store the controller reads.
type Session interface {
	Current() (identity.Identity, bool)
	Loading() bool
}

// Controller runs the Idle → AwaitingAuth → AwaitingKey → Ready machine
// for one action request at a time.
type Controller struct {
	session  Session
	authFlow Flow
	keyFlow  Flow
	onChange func(State)

	mu    sync.Mutex
	state State
	busy  bool
}

// Option configures a Controller.
type Option func(*Controller)

// WithTransitionListener registers a callback invoked on every state
// change, including the reset to Idle.
func WithTransitionListener(fn func(State)) Option {
	return func(c *Controller) { c.onChange = fn }
}

// NewController creates a controller over the given session source and
// acquisition flows.
func NewController(session Session, authFlow, keyFlow Flow, opts ...Option) *Controller {
	c := &Controller{
		session:  session,
		authFlow: authFlow,
		keyFlow:  keyFlow,
		state:    StateIdle,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the controller's current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Request runs the machine for one action. The action executes exactly
// once when both preconditions hold; a cancelled flow abandons it and the
// machine returns to Idle without side effects.
func (c *Controller) Request(ctx context.Context, action Action) error {
	if c.session.Loading() {
		return ErrResolving
	}

	c.mu.Lock()
	if c.busy {
		c.mu.Unlock()
		return ErrBusy
	}
	c.busy = true
	c.mu.Unlock()

	defer func() {
		c.transition(StateIdle)
		c.mu.Lock()
		c.busy = false
		c.mu.Unlock()
	}()

	if _, ok := c.session.Current(); !ok {
		c.transition(StateAwaitingAuth)
		if err := c.authFlow.Run(ctx); err != nil {
			return err
		}
	}

	cur, ok := c.session.Current()
	if !ok {
		// The flow reported success but no identity materialized.
		return ErrCancelled
	}

	if !cur.HasSecretKey() {
		c.transition(StateAwaitingKey)
		if err := c.keyFlow.Run(ctx); err != nil {
			return err
		}
		cur, ok = c.session.Current()
		if !ok || !cur.HasSecretKey() {
			return ErrCancelled
		}
	}

	c.transition(StateReady)
	return action(ctx)
}

func (c *Controller) transition(next State) {
	c.mu.Lock()
	changed := c.state != next
	c.state = next
	fn := c.onChange
	c.mu.Unlock()

	if changed && fn != nil {
		fn(next)
	}
}
