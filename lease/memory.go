package lease

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryLease is a process-local LeasePort, sufficient for
// single-node deployments and tests; it provides no cross-process
// exclusion.
type InMemoryLease struct {
	mu    sync.Mutex
	held  map[string]heldLease
	now   func() time.Time
}

type heldLease struct {
	token   string
	expires time.Time
}

func NewInMemoryLease() *InMemoryLease {
	return &InMemoryLease{held: make(map[string]heldLease), now: time.Now}
}

func (l *InMemoryLease) Acquire(_ context.Context, resource string, ttl time.Duration) (string, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if existing, ok := l.held[resource]; ok && now.Before(existing.expires) {
		return "", false, nil
	}
	token := uuid.NewString()
	l.held[resource] = heldLease{token: token, expires: now.Add(ttl)}
	return resource + ":" + token, true, nil
}

func (l *InMemoryLease) Renew(_ context.Context, leaseID string, ttl time.Duration) error {
	resource, token, err := splitLeaseID(leaseID)
	if err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	existing, ok := l.held[resource]
	if !ok || existing.token != token {
		return errLeaseNotHeld(resource)
	}
	existing.expires = l.now().Add(ttl)
	l.held[resource] = existing
	return nil
}

func (l *InMemoryLease) Release(_ context.Context, leaseID string) error {
	resource, token, err := splitLeaseID(leaseID)
	if err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if existing, ok := l.held[resource]; ok && existing.token == token {
		delete(l.held, resource)
	}
	return nil
}
