//go:build integration

package projection_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"fundforge/internal/campaign/projection"
	platformredis "fundforge/internal/platform/redis"
	id "fundforge/pkg/domain"
	"fundforge/pkg/testutil/containers"
)

type RedisCacheSuite struct {
	suite.Suite
	redis  *containers.RedisContainer
	client *platformredis.Client
	cache  *projection.RedisCache
}

func TestRedisCacheSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisCacheSuite))
}

func (s *RedisCacheSuite) SetupSuite() {
	s.redis = containers.NewRedisContainer(s.T())
	s.client = &platformredis.Client{Client: s.redis.Client}
	s.cache = projection.NewRedisCache(s.client, time.Minute,
		slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func (s *RedisCacheSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisCacheSuite) newCard() *projection.CampaignCard {
	return &projection.CampaignCard{
		ID:               id.CampaignID(uuid.New()),
		Title:            "Cached Campaign",
		Category:         "games",
		Goal:             1000,
		TotalRaised:      400,
		Escrowed:         400,
		Deadline:         time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
		Lifecycle:        "active",
		ContributorCount: 3,
		Milestones: []projection.MilestoneRow{
			{Index: 0, Description: "prototype", Amount: 200, State: "voting", VotesFor: 150},
		},
	}
}

func (s *RedisCacheSuite) TestRoundTrip() {
	ctx := context.Background()
	card := s.newCard()

	_, ok := s.cache.Get(ctx, card.ID)
	s.False(ok)

	s.cache.Set(ctx, card)
	got, ok := s.cache.Get(ctx, card.ID)
	s.Require().True(ok)
	s.Equal(card, got)

	s.cache.Delete(ctx, card.ID)
	_, ok = s.cache.Get(ctx, card.ID)
	s.False(ok)
}

func (s *RedisCacheSuite) TestKeyedPerCampaign() {
	ctx := context.Background()
	first := s.newCard()
	second := s.newCard()
	second.Title = "Other Campaign"

	s.cache.Set(ctx, first)
	s.cache.Set(ctx, second)

	got, ok := s.cache.Get(ctx, first.ID)
	s.Require().True(ok)
	s.Equal("Cached Campaign", got.Title)

	s.cache.Delete(ctx, first.ID)
	_, ok = s.cache.Get(ctx, second.ID)
	s.True(ok)
}

func (s *RedisCacheSuite) TestEntriesExpire() {
	ctx := context.Background()
	short := projection.NewRedisCache(s.client, 100*time.Millisecond, nil)
	card := s.newCard()

	short.Set(ctx, card)
	_, ok := short.Get(ctx, card.ID)
	s.Require().True(ok)

	s.Eventually(func() bool {
		_, ok := short.Get(ctx, card.ID)
		return !ok
	}, 2*time.Second, 50*time.Millisecond)
}

func (s *RedisCacheSuite) TestSetIfAbsentDedupes() {
	ctx := context.Background()

	first, err := s.client.SetIfAbsent(ctx, "fundforge:idem:req-1", time.Minute)
	s.Require().NoError(err)
	s.True(first)

	again, err := s.client.SetIfAbsent(ctx, "fundforge:idem:req-1", time.Minute)
	s.Require().NoError(err)
	s.False(again)
}
