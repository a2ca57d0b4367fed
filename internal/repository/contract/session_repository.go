package contract

import "prawnik-web/internal/session"

// ISessionRepository stores the server-side state of signed-in browsers.
type ISessionRepository interface {
	Save(state *session.State)
	// Get returns the session and extends its lifetime.
	Get(sessionID string) (*session.State, bool)
	// Peek returns the session without extending its lifetime.
	Peek(sessionID string) (*session.State, bool)
	Delete(sessionID string)
	Count() int
}
