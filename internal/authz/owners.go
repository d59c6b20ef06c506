package authz

import (
	"context"
	"fmt"
	"sync"
)

// StaticOwnerLookup is a concurrency-safe in-memory OwnerLookup. Production
// deployments back ownership with the business repositories; this one covers
// single-node setups and tests.
type StaticOwnerLookup struct {
	mu     sync.RWMutex
	owners map[Resource]map[string]string
}

func NewStaticOwnerLookup() *StaticOwnerLookup {
	return &StaticOwnerLookup{owners: make(map[Resource]map[string]string)}
}

// Register records userID as the owner of the given resource instance.
func (l *StaticOwnerLookup) Register(res Resource, id, userID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	byID, ok := l.owners[res]
	if !ok {
		byID = make(map[string]string)
		l.owners[res] = byID
	}
	byID[id] = userID
}

func (l *StaticOwnerLookup) Owner(ctx context.Context, res Resource, id string) (string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if owner, ok := l.owners[res][id]; ok {
		return owner, nil
	}
	return "", fmt.Errorf("authz: no owner recorded for %s %s", res, id)
}
