package session

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
)

// Status is the three-valued authentication state. A boolean would collapse
// "not yet known" into "signed out", which is exactly the defect class this
// type exists to prevent.
type Status string

const (
	StatusLoading   Status = "loading"
	StatusSignedOut Status = "signed_out"
	StatusSignedIn  Status = "signed_in"
)

// Session is the process-wide auth state. Token is present iff the status is
// signed_in.
type Session struct {
	Status Status
	Token  string
}

// Decided reports whether the initial provider response has arrived.
func (s Session) Decided() bool { return s.Status != StatusLoading }

// Provider is the external identity provider, consumed but never
// reimplemented here.
type Provider interface {
	// FetchSession returns the current access token, or "" when there is no
	// usable session.
	FetchSession(ctx context.Context) (string, error)
	// OnChange registers a durable listener for session-change notifications
	// and returns its unsubscribe func.
	OnChange(fn func(token string)) (unsubscribe func())
	SignIn(ctx context.Context, email, password string) error
	SignOut(ctx context.Context) error
}

// Manager owns the single live Session for the process. It is written only by
// provider callbacks; everything else reads.
type Manager struct {
	Log *logrus.Logger

	provider Provider

	mu      sync.Mutex
	current Session
	subs    map[int]func(Session)
	nextSub int
	unsub   func()
	started bool
}

// NewManager creates a manager in the loading state.
func NewManager(p Provider) *Manager {
	return &Manager{
		provider: p,
		current:  Session{Status: StatusLoading},
		subs:     map[int]func(Session){},
		Log:      logrus.StandardLogger(),
	}
}

// Start issues the one initial session fetch and installs the durable change
// listener. Safe to call once; Close releases the listener.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return nil
	}
	m.started = true
	m.mu.Unlock()

	token, err := m.provider.FetchSession(ctx)
	if err != nil {
		// Provider errors on the initial fetch mean signed out, not crash.
		m.Log.WithError(err).Debug("initial session fetch failed")
		token = ""
	}
	m.apply(token)

	m.mu.Lock()
	m.unsub = m.provider.OnChange(m.apply)
	m.mu.Unlock()
	return nil
}

// Close removes the provider listener.
func (m *Manager) Close() {
	m.mu.Lock()
	unsub := m.unsub
	m.unsub = nil
	m.mu.Unlock()
	if unsub != nil {
		unsub()
	}
}

// Current returns the live session value.
func (m *Manager) Current() Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Subscribe registers fn for every subsequent transition, delivered in
// provider order, last write wins. The returned func cancels.
func (m *Manager) Subscribe(fn func(Session)) func() {
	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
}

// SignIn delegates to the provider; state changes arrive via the listener.
func (m *Manager) SignIn(ctx context.Context, email, password string) error {
	return m.provider.SignIn(ctx, email, password)
}

// SignOut delegates to the provider.
func (m *Manager) SignOut(ctx context.Context) error {
	return m.provider.SignOut(ctx)
}

// apply maps a provider notification to a state: empty token means signed
// out, anything else signed in.
func (m *Manager) apply(token string) {
	next := Session{Status: StatusSignedOut}
	if token != "" {
		next = Session{Status: StatusSignedIn, Token: token}
	}

	m.mu.Lock()
	m.current = next
	fns := make([]func(Session), 0, len(m.subs))
	for _, fn := range m.subs {
		fns = append(fns, fn)
	}
	m.mu.Unlock()

	for _, fn := range fns {
		fn(next)
	}
}
