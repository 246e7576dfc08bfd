package session

import "github.com/mohammad-safakhou/coursechat/models"

// Store holds bounded per-conversation history. Implementations must make
// AddExchange atomic per session id: two racing requests on the same id
// may interleave, but neither write may be lost.
//
// Unknown ids are treated as freshly created sessions, never as errors.
type Store interface {
	// Create allocates a new session and returns its id.
	Create() string

	// History returns the session's exchanges, most recent last. Empty
	// for unknown ids.
	History(id string) []models.Exchange

	// AddExchange appends one exchange. When the configured cap is
	// exceeded the oldest exchange is evicted first.
	AddExchange(id, userText, assistantText string)

	// Reset discards the session's history and allocates a fresh id.
	// Other sessions are unaffected.
	Reset(id string) string
}
