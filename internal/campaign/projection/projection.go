// Package projection builds the read-side campaign card: the denormalized
// view the listing UI renders, cached apart from the write path so browsing
// never contends with the escrow's per-campaign serialization.
package projection

import (
	"context"
	"log/slog"
	"time"

	"fundforge/internal/campaign/models"
	id "fundforge/pkg/domain"
	"fundforge/pkg/requestcontext"
)

// CampaignCard is the flattened read model for one campaign.
type CampaignCard struct {
	ID               id.CampaignID  `json:"id"`
	Title            string         `json:"title"`
	Description      string         `json:"description"`
	Category         string         `json:"category"`
	Goal             int64          `json:"goal"`
	TotalRaised      int64          `json:"total_raised"`
	Escrowed         int64          `json:"escrowed"`
	Deadline         time.Time      `json:"deadline"`
	Lifecycle        string         `json:"lifecycle"`
	ContributorCount int            `json:"contributor_count"`
	Milestones       []MilestoneRow `json:"milestones"`
}

// MilestoneRow is one milestone's tallies on the card.
type MilestoneRow struct {
	Index        int    `json:"index"`
	Description  string `json:"description"`
	Amount       int64  `json:"amount"`
	State        string `json:"state"`
	VotesFor     int64  `json:"votes_for"`
	VotesAgainst int64  `json:"votes_against"`
}

// Build flattens an aggregate snapshot into a card as of now.
func Build(c *models.Campaign, now time.Time) *CampaignCard {
	card := &CampaignCard{
		ID:               c.ID,
		Title:            c.Title,
		Description:      c.Description,
		Category:         c.Category,
		Goal:             c.Goal,
		TotalRaised:      c.TotalRaised,
		Escrowed:         c.Escrowed,
		Deadline:         c.Deadline,
		Lifecycle:        string(c.EffectiveStatus(now)),
		ContributorCount: c.ContributorCount(),
		Milestones:       make([]MilestoneRow, 0, len(c.Milestones)),
	}
	for _, m := range c.Milestones {
		card.Milestones = append(card.Milestones, MilestoneRow{
			Index:        m.Index,
			Description:  m.Description,
			Amount:       m.Amount,
			State:        string(m.State),
			VotesFor:     m.VotesFor,
			VotesAgainst: m.VotesAgainst,
		})
	}
	return card
}

// CampaignReader is the slice of the store the projector needs.
type CampaignReader interface {
	FindByID(ctx context.Context, campaignID id.CampaignID) (*models.Campaign, error)
	List(ctx context.Context) ([]*models.Campaign, error)
}

// Cache holds built cards. Implementations are best-effort: a miss or a
// failed write degrades to a store read, never to an error.
type Cache interface {
	Get(ctx context.Context, campaignID id.CampaignID) (*CampaignCard, bool)
	Set(ctx context.Context, card *CampaignCard)
	Delete(ctx context.Context, campaignID id.CampaignID)
}

// Projector serves cards cache-aside and drops them after mutations.
type Projector struct {
	reader CampaignReader
	cache  Cache
	logger *slog.Logger
}

func New(reader CampaignReader, cache Cache, logger *slog.Logger) *Projector {
	return &Projector{reader: reader, cache: cache, logger: logger}
}

// Card returns the campaign's card, from cache when possible.
func (p *Projector) Card(ctx context.Context, campaignID id.CampaignID) (*CampaignCard, error) {
	if p.cache != nil {
		if card, ok := p.cache.Get(ctx, campaignID); ok {
			return card, nil
		}
	}

	c, err := p.reader.FindByID(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	card := Build(c, requestcontext.Now(ctx))
	if p.cache != nil {
		p.cache.Set(ctx, card)
	}
	return card, nil
}

// Cards builds the full listing. The list is not cached; per-card caching
// would serve stale tallies piecemeal and the store list is one read.
func (p *Projector) Cards(ctx context.Context) ([]*CampaignCard, error) {
	campaigns, err := p.reader.List(ctx)
	if err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	cards := make([]*CampaignCard, 0, len(campaigns))
	for _, c := range campaigns {
		cards = append(cards, Build(c, now))
	}
	return cards, nil
}

// Invalidate drops the cached card after a mutation.
func (p *Projector) Invalidate(ctx context.Context, campaignID id.CampaignID) {
	if p.cache == nil {
		return
	}
	p.cache.Delete(ctx, campaignID)
	if p.logger != nil {
		p.logger.DebugContext(ctx, "projection invalidated", "campaign_id", campaignID)
	}
}
