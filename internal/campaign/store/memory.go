// Package store persists campaign aggregates. Both implementations provide
// the same contract: Execute serializes all mutations for one campaign
// (mutex here, SELECT ... FOR UPDATE in postgres) while reads return deep
// snapshots and campaigns stay fully concurrent with each other.
package store

import (
	"context"
	"sort"
	"sync"

	"fundforge/internal/campaign/models"
	id "fundforge/pkg/domain"
	"fundforge/pkg/platform/sentinel"
)

// InMemory is the development and test implementation.
type InMemory struct {
	mu        sync.RWMutex
	campaigns map[id.CampaignID]*entry
}

// entry pairs an aggregate with the lock that serializes its mutations.
type entry struct {
	mu sync.Mutex
	c  *models.Campaign
}

func NewInMemory() *InMemory {
	return &InMemory{campaigns: make(map[id.CampaignID]*entry)}
}

// Create registers a new campaign aggregate.
func (s *InMemory) Create(ctx context.Context, c *models.Campaign) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.campaigns[c.ID]; exists {
		return sentinel.ErrConflict
	}
	s.campaigns[c.ID] = &entry{c: c.Clone()}
	return nil
}

// FindByID returns a deep snapshot of the aggregate.
func (s *InMemory) FindByID(ctx context.Context, campaignID id.CampaignID) (*models.Campaign, error) {
	e, err := s.entry(campaignID)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.c.Clone(), nil
}

// List returns snapshots of every campaign, newest first.
func (s *InMemory) List(ctx context.Context) ([]*models.Campaign, error) {
	s.mu.RLock()
	entries := make([]*entry, 0, len(s.campaigns))
	for _, e := range s.campaigns {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	out := make([]*models.Campaign, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		out = append(out, e.c.Clone())
		e.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// Execute runs validate then mutate with exclusive access to the campaign for
// the whole sequence, so check-then-act transitions (goal crossing, approval)
// cannot interleave with another mutation on the same campaign. Mutations on
// other campaigns proceed concurrently.
//
// Returns a deep snapshot of the post-mutation state.
func (s *InMemory) Execute(
	ctx context.Context,
	campaignID id.CampaignID,
	validate func(*models.Campaign) error,
	mutate func(*models.Campaign),
) (*models.Campaign, error) {
	e, err := s.entry(campaignID)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := validate(e.c); err != nil {
		return nil, err
	}
	mutate(e.c)
	return e.c.Clone(), nil
}

func (s *InMemory) entry(campaignID id.CampaignID) (*entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.campaigns[campaignID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return e, nil
}
