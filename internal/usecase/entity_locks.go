package usecase

import (
	"hash/fnv"
	"sync"

	"github.com/riskibarqy/sports-feed-sync/internal/domain/graph"
)

const entityLockStripes = 64

// EntityLocks serialises read-modify-write cycles on one graph entity across
// the sync, lifecycle and time propagation jobs. Locks are striped by
// kind and external id, so unrelated entities may occasionally share one.
type EntityLocks struct {
	stripes [entityLockStripes]sync.Mutex
}

func NewEntityLocks() *EntityLocks {
	return &EntityLocks{}
}

// Lock blocks until the entity is free and returns its unlock func.
func (l *EntityLocks) Lock(kind graph.Kind, externalID string) func() {
	if l == nil {
		return func() {}
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(kind))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(externalID))
	mu := &l.stripes[h.Sum32()%entityLockStripes]
	mu.Lock()
	return mu.Unlock
}
