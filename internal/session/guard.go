package session

import "sync"

// Navigator is the routing mechanism the guard redirects through, consumed as
// an interface only.
type Navigator interface {
	// Route returns the current logical screen.
	Route() string
	// Replace swaps the current screen without growing history.
	Replace(route string)
}

// Guard applies the auth redirect rules: a transition into signed_out while on
// an authenticated screen redirects to sign-in exactly once per transition; a
// transition into signed_in while on the sign-in screen redirects home.
// Loading never redirects anywhere.
type Guard struct {
	Nav         Navigator
	SignInRoute string
	HomeRoute   string

	mu   sync.Mutex
	prev Status
}

// Watch subscribes the guard to a manager and returns the cancel func.
func (g *Guard) Watch(m *Manager) func() {
	g.mu.Lock()
	g.prev = m.Current().Status
	g.mu.Unlock()
	return m.Subscribe(g.observe)
}

func (g *Guard) observe(s Session) {
	g.mu.Lock()
	prev := g.prev
	g.prev = s.Status
	g.mu.Unlock()

	if s.Status == prev {
		return
	}
	switch s.Status {
	case StatusSignedOut:
		if g.Nav.Route() != g.SignInRoute {
			g.Nav.Replace(g.SignInRoute)
		}
	case StatusSignedIn:
		if g.Nav.Route() == g.SignInRoute {
			g.Nav.Replace(g.HomeRoute)
		}
	}
}
