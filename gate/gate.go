package gate

import (
	"sync"

	"github.com/MrEthical07/goSession/session"
	"github.com/a-h/templ"
)

// Status is the resolution state of a Gate.
type Status int

const (
	StatusUnknown Status = iota
	StatusUnauthenticated
	StatusAuthenticated
)

func (s Status) String() string {
	switch s {
	case StatusUnauthenticated:
		return "unauthenticated"
	case StatusAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// Gate guards one page render.
type Gate struct {
	signInURL string

	mu      sync.Mutex
	status  Status
	session *session.Session
}

// New returns an unresolved Gate whose login prompt points at signInURL.
func New(signInURL string) *Gate {
	return &Gate{signInURL: signInURL}
}

// Resolve settles the gate from s. Only the first call has an effect; later
// calls return the settled status.
func (g *Gate) Resolve(s *session.Session) Status {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.status != StatusUnknown {
		return g.status
	}
	if s.Authenticated() {
		g.status = StatusAuthenticated
		g.session = s
	} else {
		g.status = StatusUnauthenticated
	}
	return g.status
}

func (g *Gate) Status() Status {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.status
}

// Session returns the session the gate resolved with, or nil.
func (g *Gate) Session() *session.Session {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.session
}

// Render returns the component for the current status.
func (g *Gate) Render() templ.Component {
	g.mu.Lock()
	status, s := g.status, g.session
	g.mu.Unlock()

	switch status {
	case StatusAuthenticated:
		return Greeting(s.DisplayName())
	case StatusUnauthenticated:
		return LoginPrompt(g.signInURL)
	default:
		return Placeholder()
	}
}
