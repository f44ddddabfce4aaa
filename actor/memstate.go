package actor

import (
	"context"
	"strings"
	"sync"
)

// InMemoryStatePort is a process-local, RWMutex-guarded map StatePort,
// sufficient for single-node deployments and tests.
type InMemoryStatePort struct {
	mu      sync.RWMutex
	records map[string]Record
}

func NewInMemoryStatePort() *InMemoryStatePort {
	return &InMemoryStatePort{records: make(map[string]Record)}
}

func (s *InMemoryStatePort) Load(_ context.Context, id Identity) (*Record, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id.String()]
	if !ok {
		return nil, false, nil
	}
	return &rec, true, nil
}

func (s *InMemoryStatePort) Save(_ context.Context, id Identity, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[id.String()] = rec
	return nil
}

func (s *InMemoryStatePort) Keys(_ context.Context, tenantID, actorType string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	prefix := tenantID + "/" + actorType + "/"
	var out []string
	for key := range s.records {
		if strings.HasPrefix(key, prefix) {
			out = append(out, key)
		}
	}
	return out, nil
}

var _ StatePort = (*InMemoryStatePort)(nil)
