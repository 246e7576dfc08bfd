package inmemory

import (
	"sync"

	"github.com/google/uuid"

	"github.com/mohammad-safakhou/coursechat/models"
	"github.com/mohammad-safakhou/coursechat/session"
)

// Store keeps session history in process memory only; nothing survives a
// restart. History is capped at maxExchanges per session, oldest evicted
// first.
type Store struct {
	maxExchanges int

	mu       sync.Mutex
	sessions map[string][]models.Exchange
}

func NewStore(maxExchanges int) session.Store {
	if maxExchanges <= 0 {
		maxExchanges = 2
	}
	return &Store{
		maxExchanges: maxExchanges,
		sessions:     make(map[string][]models.Exchange),
	}
}

func (s *Store) Create() string {
	id := uuid.NewString()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[id] = nil
	return id
}

func (s *Store) History(id string) []models.Exchange {
	s.mu.Lock()
	defer s.mu.Unlock()
	history := s.sessions[id]
	out := make([]models.Exchange, len(history))
	copy(out, history)
	return out
}

func (s *Store) AddExchange(id, userText, assistantText string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	history := append(s.sessions[id], models.Exchange{User: userText, Assistant: assistantText})
	if len(history) > s.maxExchanges {
		history = history[len(history)-s.maxExchanges:]
	}
	s.sessions[id] = history
}

func (s *Store) Reset(id string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	newID := uuid.NewString()
	s.sessions[newID] = nil
	return newID
}
