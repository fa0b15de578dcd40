package audit

import (
	"context"
	"sync"

	id "fundforge/pkg/domain"
)

// MemoryStore is the in-process event sink. Append order is preserved per
// campaign, which is what the trail endpoint promises.
type MemoryStore struct {
	mu     sync.RWMutex
	events map[id.CampaignID][]Event
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{events: make(map[id.CampaignID][]Event)}
}

func (s *MemoryStore) Append(ctx context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[event.CampaignID] = append(s.events[event.CampaignID], event)
	return nil
}

func (s *MemoryStore) ListByCampaign(ctx context.Context, campaignID id.CampaignID) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	src := s.events[campaignID]
	out := make([]Event, len(src))
	copy(out, src)
	return out, nil
}
