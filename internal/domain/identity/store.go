package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// DefaultSignUpCooldown is how long sign-up attempts are refused locally
// after the backend rate-limits one.
const DefaultSignUpCooldown = 60 * time.Second

// Store is the single source of truth for who is signed in and with what
// capability. It exposes a loading state until the first Resolve completes
// so dependents can suspend decisions, and it guards every asynchronous
// result against the identity having changed while the call was in flight.
type Store struct {
	provider  Provider
	snapshots SnapshotStore
	logger    *slog.Logger
	now       func() time.Time
	cooldown  time.Duration

	mu            sync.Mutex
	current       *Identity
	token         string
	loading       bool
	epoch         uint64
	cooldownUntil time.Time
	listeners     []func(Event)
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithSignUpCooldown overrides the local sign-up cooldown interval.
func WithSignUpCooldown(d time.Duration) Option {
	return func(s *Store) { s.cooldown = d }
}

// NewStore creates a session store. The store starts in the loading state;
// callers must run Resolve before making gating decisions.
func NewStore(provider Provider, snapshots SnapshotStore, logger *slog.Logger, opts ...Option) *Store {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Store{
		provider:  provider,
		snapshots: snapshots,
		logger:    logger,
		now:       time.Now,
		cooldown:  DefaultSignUpCooldown,
		loading:   true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Current returns a copy of the active identity, if any.
func (s *Store) Current() (Identity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return Identity{}, false
	}
	return *s.current, true
}

// Token returns the active session token, or empty when signed out.
func (s *Store) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// Loading reports whether the initial session resolution is still pending.
func (s *Store) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Subscribe registers a listener for identity changes. Listeners are
// invoked synchronously after the store's own state is updated.
func (s *Store) Subscribe(fn func(Event)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Resolve queries the backend for the session behind the persisted token.
// On success it populates the identity, including the profile's secret
// key. The identity is cleared only when the backend confirms the session
// ended; a transient failure keeps whatever is current, since a flaky
// network is not evidence of sign-out. The loading state drops once the
// first call completes, success or not.
func (s *Store) Resolve(ctx context.Context) error {
	snap, err := s.snapshots.Load()
	if err != nil {
		s.logger.Warn("session snapshot unreadable", "error", err)
	}

	token := ""
	if snap != nil {
		token = snap.Token
	}
	if token == "" {
		s.mu.Lock()
		token = s.token
		s.mu.Unlock()
	}

	if token == "" {
		s.clear(false)
		return nil
	}

	sess, err := s.provider.CurrentSession(ctx, token)
	if err != nil {
		if errors.Is(err, ErrNotAuthenticated) {
			s.clear(true)
			return nil
		}
		s.mu.Lock()
		s.loading = false
		s.mu.Unlock()
		return fmt.Errorf("resolving session: %w", err)
	}

	s.apply(*sess)
	return nil
}

// Wake re-validates the session, typically after the surrounding
// application regains visibility or another client rewrites the snapshot.
// Stale identity data, a removed secret key in particular, does not
// survive past one such check.
func (s *Store) Wake(ctx context.Context) {
	if err := s.Resolve(ctx); err != nil {
		s.logger.Warn("session revalidation failed", "error", err)
	}
}

// SignIn authenticates and, on success, makes the returned identity
// current and persists the session.
func (s *Store) SignIn(ctx context.Context, email, password string) error {
	sess, err := s.provider.SignIn(ctx, email, password)
	if err != nil {
		return err
	}
	s.apply(*sess)
	return nil
}

// SignUp registers a new account. A backend rate-limit rejection starts a
// local cooldown; until it elapses further attempts are refused without
// contacting the backend. This is a UX throttle, not a security control.
func (s *Store) SignUp(ctx context.Context, email, password string) error {
	s.mu.Lock()
	if remaining := s.cooldownUntil.Sub(s.now()); remaining > 0 {
		s.mu.Unlock()
		return &RateLimitedError{RetryAfter: remaining}
	}
	s.mu.Unlock()

	sess, err := s.provider.SignUp(ctx, email, password)
	if err != nil {
		if errors.Is(err, ErrRateLimited) {
			s.mu.Lock()
			s.cooldownUntil = s.now().Add(s.cooldown)
			s.mu.Unlock()
			return &RateLimitedError{RetryAfter: s.cooldown}
		}
		return err
	}
	s.apply(*sess)
	return nil
}

// SignUpRetryAfter returns the remaining local cooldown, zero when
// sign-up is allowed.
func (s *Store) SignUpRetryAfter() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if remaining := s.cooldownUntil.Sub(s.now()); remaining > 0 {
		return remaining
	}
	return 0
}

// SignOut ends the backend session and clears the identity and the
// persisted snapshot. A backend "already signed out" answer counts as
// success; any other failure leaves the local identity in place so local
// and backend truth cannot diverge.
func (s *Store) SignOut(ctx context.Context) error {
	s.mu.Lock()
	token := s.token
	s.mu.Unlock()

	if token == "" {
		return ErrNotAuthenticated
	}

	if err := s.provider.SignOut(ctx, token); err != nil && !errors.Is(err, ErrNotAuthenticated) {
		return fmt.Errorf("signing out: %w", err)
	}

	s.clear(true)
	return nil
}

// UpdateSecretKey upserts the generation-service key on the identity's
// profile record; an empty value removes it. The local identity mutates
// only after the backend confirms, and the confirmation is discarded if a
// different identity (or none) is current by then.
func (s *Store) UpdateSecretKey(ctx context.Context, key string) error {
	s.mu.Lock()
	if s.current == nil {
		s.mu.Unlock()
		return ErrNotAuthenticated
	}
	ownerID := s.current.ID
	token := s.token
	epoch := s.epoch
	s.mu.Unlock()

	if err := s.provider.UpdateSecretKey(ctx, token, key); err != nil {
		return err
	}

	s.mu.Lock()
	if s.epoch != epoch || s.current == nil || s.current.ID != ownerID {
		s.mu.Unlock()
		s.logger.Debug("discarding stale secret-key update", "owner", ownerID)
		return nil
	}
	s.current.SecretKey = key
	updated := *s.current
	sess := Session{Token: s.token, Identity: updated}
	listeners := append([]func(Event){}, s.listeners...)
	s.mu.Unlock()

	if err := s.snapshots.Save(sess); err != nil {
		s.logger.Warn("persisting session snapshot", "error", err)
	}
	s.notify(listeners, Event{Kind: EventKeyChanged, Identity: updated, At: s.now()})
	return nil
}

// apply installs a freshly confirmed session as current.
func (s *Store) apply(sess Session) {
	s.mu.Lock()
	ident := sess.Identity
	s.current = &ident
	s.token = sess.Token
	s.loading = false
	s.epoch++
	listeners := append([]func(Event){}, s.listeners...)
	s.mu.Unlock()

	if err := s.snapshots.Save(sess); err != nil {
		s.logger.Warn("persisting session snapshot", "error", err)
	}
	s.notify(listeners, Event{Kind: EventSignedIn, Identity: ident, At: s.now()})
}

// clear drops the current identity. When wipeSnapshot is set the persisted
// snapshot is removed too, so a later Resolve in the same environment
// cannot revive the session.
func (s *Store) clear(wipeSnapshot bool) {
	s.mu.Lock()
	hadIdentity := s.current != nil
	prev := Identity{}
	if hadIdentity {
		prev = *s.current
	}
	s.current = nil
	s.token = ""
	s.loading = false
	s.epoch++
	listeners := append([]func(Event){}, s.listeners...)
	s.mu.Unlock()

	if wipeSnapshot {
		if err := s.snapshots.Clear(); err != nil {
			s.logger.Warn("clearing session snapshot", "error", err)
		}
	}
	if hadIdentity {
		s.notify(listeners, Event{Kind: EventSignedOut, Identity: prev, At: s.now()})
	}
}

func (s *Store) notify(listeners []func(Event), ev Event) {
	for _, fn := range listeners {
		fn(ev)
	}
}
