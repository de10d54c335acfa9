package tools

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// TicketRecord is a ticket held by the in-memory fallback store.
type TicketRecord struct {
	ID        string    `json:"id"`
	StudentID string    `json:"student_id,omitempty"`
	Guardian  string    `json:"guardian,omitempty"`
	Category  string    `json:"category"`
	Reason    string    `json:"reason"`
	Context   string    `json:"context,omitempty"`
	State     string    `json:"state"`
	Priority  string    `json:"priority"`
	CreatedAt time.Time `json:"created_at"`
}

// TicketStore is the process-local ticket map used by the admin tools when
// no orchestrator store is reachable. No cross-process coherence.
type TicketStore struct {
	mu      sync.RWMutex
	tickets map[string]*TicketRecord
}

// NewTicketStore creates an empty store.
func NewTicketStore() *TicketStore {
	return &TicketStore{tickets: make(map[string]*TicketRecord)}
}

// Create adds a ticket and returns it with a fresh id.
func (s *TicketStore) Create(rec TicketRecord) *TicketRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec.ID = uuid.New().String()
	if rec.State == "" {
		rec.State = "pending"
	}
	if rec.Priority == "" {
		rec.Priority = "medium"
	}
	rec.CreatedAt = time.Now()
	s.tickets[rec.ID] = &rec
	return &rec
}

// Get returns a ticket by id, matching on full id or its 8-char prefix.
func (s *TicketStore) Get(id string) (*TicketRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if t, ok := s.tickets[id]; ok {
		return t, true
	}
	for _, t := range s.tickets {
		if strings.HasPrefix(t.ID, id) {
			return t, true
		}
	}
	return nil, false
}

// ListPending returns pending tickets ordered by creation time.
func (s *TicketStore) ListPending() []*TicketRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*TicketRecord, 0, len(s.tickets))
	for _, t := range s.tickets {
		if t.State == "pending" {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}
