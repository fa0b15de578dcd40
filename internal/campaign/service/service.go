package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"fundforge/internal/audit"
	"fundforge/internal/campaign/metrics"
	"fundforge/internal/campaign/models"
	id "fundforge/pkg/domain"
	dErrors "fundforge/pkg/domain-errors"
	"fundforge/pkg/platform/sentinel"
	"fundforge/pkg/requestcontext"
)

// CampaignStore is the persistence contract. Execute must serialize per
// campaign: validate and mutate run under exclusive access to the aggregate,
// and the returned snapshot is the post-mutation state.
type CampaignStore interface {
	Create(ctx context.Context, c *models.Campaign) error
	FindByID(ctx context.Context, campaignID id.CampaignID) (*models.Campaign, error)
	List(ctx context.Context) ([]*models.Campaign, error)
	Execute(ctx context.Context, campaignID id.CampaignID, validate func(*models.Campaign) error, mutate func(*models.Campaign)) (*models.Campaign, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, base audit.Event) error
}

// AuditTrail reads back the per-campaign event history for the trail endpoint.
type AuditTrail interface {
	List(ctx context.Context, campaignID id.CampaignID) ([]audit.Event, error)
}

// ProjectionInvalidator drops cached read models after a mutation.
type ProjectionInvalidator interface {
	Invalidate(ctx context.Context, campaignID id.CampaignID)
}

// Service orchestrates the funding engine: contributions, milestones, voting,
// releases, refunds, and lifecycle. Domain rules live on the models; the
// service wires storage, audit, metrics, and error translation around them.
type Service struct {
	store          CampaignStore
	logger         *slog.Logger
	auditPublisher AuditPublisher
	auditTrail     AuditTrail
	metrics        *metrics.Metrics
	projection     ProjectionInvalidator
	tracer         trace.Tracer
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithAuditTrail(trail AuditTrail) Option {
	return func(s *Service) {
		s.auditTrail = trail
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithProjectionInvalidator(inv ProjectionInvalidator) Option {
	return func(s *Service) {
		s.projection = inv
	}
}

// New constructs a Service.
func New(store CampaignStore, opts ...Option) *Service {
	s := &Service{
		store:  store,
		tracer: otel.Tracer("fundforge/campaign"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateCampaignParams carries the creator-supplied campaign attributes.
type CreateCampaignParams struct {
	Title       string
	Description string
	Category    string
	Goal        int64
	Deadline    time.Time
}

func (s *Service) CreateCampaign(ctx context.Context, creator id.ContributorID, params CreateCampaignParams) (*models.Campaign, error) {
	ctx, span := s.tracer.Start(ctx, "campaign.Create")
	defer span.End()

	now := requestcontext.Now(ctx)
	c, err := models.NewCampaign(id.CampaignID(uuid.New()), creator, params.Title, params.Description, params.Category, params.Goal, params.Deadline, now)
	if err != nil {
		return nil, err
	}

	if err := s.store.Create(ctx, c); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "campaign already exists")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create campaign")
	}

	span.SetAttributes(attribute.String("campaign_id", c.ID.String()))
	s.logAudit(ctx, audit.Event{
		Type:       audit.EventCampaignCreated,
		CampaignID: c.ID,
		Actor:      creator,
		Amount:     c.Goal,
		Detail:     c.Title,
	})
	if s.metrics != nil {
		s.metrics.CampaignsCreated.Inc()
	}
	return c, nil
}

// GetCampaign returns a snapshot with lazily evaluated lifecycle. The expiry
// transition is reflected in the snapshot; it is persisted on the next
// mutation, not on reads.
func (s *Service) GetCampaign(ctx context.Context, campaignID id.CampaignID) (*models.Campaign, error) {
	c, err := s.store.FindByID(ctx, campaignID)
	if err != nil {
		return nil, s.storeErr(err)
	}
	c.SyncLifecycle(requestcontext.Now(ctx))
	return c, nil
}

func (s *Service) ListCampaigns(ctx context.Context) ([]*models.Campaign, error) {
	campaigns, err := s.store.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list campaigns")
	}
	now := requestcontext.Now(ctx)
	for _, c := range campaigns {
		c.SyncLifecycle(now)
	}
	return campaigns, nil
}

// ContributeResult is the post-state a caller needs without a second read.
type ContributeResult struct {
	Contribution models.Contribution
	TotalRaised  int64
	Escrowed     int64
	Status       models.CampaignStatus
	GoalReached  bool
}

func (s *Service) Contribute(ctx context.Context, campaignID id.CampaignID, contributor id.ContributorID, amount int64) (*ContributeResult, error) {
	ctx, span := s.tracer.Start(ctx, "campaign.Contribute",
		trace.WithAttributes(attribute.String("campaign_id", campaignID.String())))
	defer span.End()
	if s.metrics != nil {
		defer s.metrics.ObserveContribute(time.Now())
	}

	now := requestcontext.Now(ctx)
	var crossed bool
	after, err := s.store.Execute(ctx, campaignID,
		func(c *models.Campaign) error {
			return c.CanContribute(contributor, amount, now)
		},
		func(c *models.Campaign) {
			_, crossed = c.ApplyContribution(contributor, amount, now)
		},
	)
	if err != nil {
		return nil, s.storeErr(err)
	}

	s.logAudit(ctx, audit.Event{
		Type:       audit.EventContributionAccepted,
		CampaignID: campaignID,
		Actor:      contributor,
		Amount:     amount,
	})
	if crossed {
		s.logAudit(ctx, audit.Event{
			Type:       audit.EventGoalReached,
			CampaignID: campaignID,
			Amount:     after.TotalRaised,
		})
	}
	if s.metrics != nil {
		s.metrics.Contributions.Inc()
		s.metrics.ContributedAmount.Add(float64(amount))
		if crossed {
			s.metrics.GoalsReached.Inc()
		}
	}
	s.invalidate(ctx, campaignID)

	return &ContributeResult{
		Contribution: after.ContributionOf(contributor),
		TotalRaised:  after.TotalRaised,
		Escrowed:     after.Escrowed,
		Status:       after.Status,
		GoalReached:  crossed,
	}, nil
}

// ContributionOf is a read-only stake lookup. Absent contributors get the
// zero-value record rather than an error.
func (s *Service) ContributionOf(ctx context.Context, campaignID id.CampaignID, contributor id.ContributorID) (models.Contribution, error) {
	c, err := s.store.FindByID(ctx, campaignID)
	if err != nil {
		return models.Contribution{}, s.storeErr(err)
	}
	return c.ContributionOf(contributor), nil
}

// MilestoneResult carries the created milestone and the running allocation.
type MilestoneResult struct {
	Milestone      models.Milestone
	AllocatedTotal int64
}

func (s *Service) CreateMilestone(ctx context.Context, campaignID id.CampaignID, caller id.ContributorID, description string, amount int64) (*MilestoneResult, error) {
	ctx, span := s.tracer.Start(ctx, "campaign.CreateMilestone",
		trace.WithAttributes(attribute.String("campaign_id", campaignID.String())))
	defer span.End()

	description = strings.TrimSpace(description)
	if description == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "milestone description is required")
	}

	now := requestcontext.Now(ctx)
	var index int
	after, err := s.store.Execute(ctx, campaignID,
		func(c *models.Campaign) error {
			return c.CanCreateMilestone(caller, amount, now)
		},
		func(c *models.Campaign) {
			m := c.ApplyMilestone(description, amount, now)
			index = m.Index
		},
	)
	if err != nil {
		return nil, s.storeErr(err)
	}

	s.logAudit(ctx, audit.Event{
		Type:       audit.EventMilestoneCreated,
		CampaignID: campaignID,
		Actor:      caller,
		Amount:     amount,
		Milestone:  audit.MilestoneIndex(index),
		Detail:     description,
	})
	if s.metrics != nil {
		s.metrics.MilestonesCreated.Inc()
	}
	s.invalidate(ctx, campaignID)

	return &MilestoneResult{
		Milestone:      *after.Milestones[index],
		AllocatedTotal: after.AllocatedTotal(),
	}, nil
}

func (s *Service) GetMilestone(ctx context.Context, campaignID id.CampaignID, index int) (models.Milestone, error) {
	c, err := s.store.FindByID(ctx, campaignID)
	if err != nil {
		return models.Milestone{}, s.storeErr(err)
	}
	m, err := c.Milestone(index)
	if err != nil {
		return models.Milestone{}, err
	}
	return *m, nil
}

// VoteResult reports the milestone tallies after the vote, and whether this
// vote completed the approval.
type VoteResult struct {
	Milestone models.Milestone
	Approved  bool
}

func (s *Service) Vote(ctx context.Context, campaignID id.CampaignID, index int, voter id.ContributorID, support bool) (*VoteResult, error) {
	ctx, span := s.tracer.Start(ctx, "campaign.Vote",
		trace.WithAttributes(
			attribute.String("campaign_id", campaignID.String()),
			attribute.Int("milestone", index),
		))
	defer span.End()

	now := requestcontext.Now(ctx)
	var approved bool
	after, err := s.store.Execute(ctx, campaignID,
		func(c *models.Campaign) error {
			return c.CanVote(index, voter)
		},
		func(c *models.Campaign) {
			_, approved = c.ApplyVote(index, voter, support, now)
		},
	)
	if err != nil {
		return nil, s.storeErr(err)
	}

	m := *after.Milestones[index]
	s.logAudit(ctx, audit.Event{
		Type:       audit.EventVoteCast,
		CampaignID: campaignID,
		Actor:      voter,
		Amount:     m.Votes[voter].Power,
		Milestone:  audit.MilestoneIndex(index),
	})
	if approved {
		s.logAudit(ctx, audit.Event{
			Type:       audit.EventMilestoneApproved,
			CampaignID: campaignID,
			Amount:     m.Amount,
			Milestone:  audit.MilestoneIndex(index),
		})
	}
	if s.metrics != nil {
		s.metrics.VotesCast.Inc()
		if approved {
			s.metrics.MilestonesApproved.Inc()
		}
	}
	s.invalidate(ctx, campaignID)

	return &VoteResult{Milestone: m, Approved: approved}, nil
}

// ReleaseResult is the escrow movement caused by one release.
type ReleaseResult struct {
	Amount    int64
	Escrowed  int64
	Released  int64
	Milestone models.Milestone
}

func (s *Service) Release(ctx context.Context, campaignID id.CampaignID, index int) (*ReleaseResult, error) {
	ctx, span := s.tracer.Start(ctx, "campaign.Release",
		trace.WithAttributes(
			attribute.String("campaign_id", campaignID.String()),
			attribute.Int("milestone", index),
		))
	defer span.End()

	now := requestcontext.Now(ctx)
	var amount int64
	after, err := s.store.Execute(ctx, campaignID,
		func(c *models.Campaign) error {
			return c.CanRelease(index)
		},
		func(c *models.Campaign) {
			amount = c.ApplyRelease(index, now)
		},
	)
	if err != nil {
		return nil, s.storeErr(err)
	}

	s.logAudit(ctx, audit.Event{
		Type:       audit.EventFundsReleased,
		CampaignID: campaignID,
		Actor:      after.Creator,
		Amount:     amount,
		Milestone:  audit.MilestoneIndex(index),
	})
	if s.metrics != nil {
		s.metrics.Releases.Inc()
		s.metrics.ReleasedAmount.Add(float64(amount))
	}
	s.invalidate(ctx, campaignID)

	return &ReleaseResult{
		Amount:    amount,
		Escrowed:  after.Escrowed,
		Released:  after.Released,
		Milestone: *after.Milestones[index],
	}, nil
}

// RefundResult is the post-state of a refund: the returned amount and the
// credits the contributor keeps.
type RefundResult struct {
	Amount        int64
	RewardCredits int64
	TotalRaised   int64
	Escrowed      int64
	Status        models.CampaignStatus
}

func (s *Service) RequestRefund(ctx context.Context, campaignID id.CampaignID, contributor id.ContributorID) (*RefundResult, error) {
	ctx, span := s.tracer.Start(ctx, "campaign.RequestRefund",
		trace.WithAttributes(attribute.String("campaign_id", campaignID.String())))
	defer span.End()

	now := requestcontext.Now(ctx)
	var (
		amount  int64
		expired bool
	)
	after, err := s.store.Execute(ctx, campaignID,
		func(c *models.Campaign) error {
			return c.CanRefund(contributor, now)
		},
		func(c *models.Campaign) {
			expired = c.SyncLifecycle(now)
			amount = c.ApplyRefund(contributor, now)
		},
	)
	if err != nil {
		return nil, s.storeErr(err)
	}

	if expired {
		s.logAudit(ctx, audit.Event{
			Type:       audit.EventCampaignExpired,
			CampaignID: campaignID,
		})
	}
	s.logAudit(ctx, audit.Event{
		Type:       audit.EventRefundIssued,
		CampaignID: campaignID,
		Actor:      contributor,
		Amount:     amount,
	})
	if s.metrics != nil {
		s.metrics.Refunds.Inc()
		s.metrics.RefundedAmount.Add(float64(amount))
	}
	s.invalidate(ctx, campaignID)

	rec := after.ContributionOf(contributor)
	return &RefundResult{
		Amount:        amount,
		RewardCredits: rec.RewardCredits,
		TotalRaised:   after.TotalRaised,
		Escrowed:      after.Escrowed,
		Status:        after.Status,
	}, nil
}

func (s *Service) Close(ctx context.Context, campaignID id.CampaignID, caller id.ContributorID) (*models.Campaign, error) {
	ctx, span := s.tracer.Start(ctx, "campaign.Close",
		trace.WithAttributes(attribute.String("campaign_id", campaignID.String())))
	defer span.End()

	now := requestcontext.Now(ctx)
	var expired bool
	after, err := s.store.Execute(ctx, campaignID,
		func(c *models.Campaign) error {
			return c.CanClose(caller, now)
		},
		func(c *models.Campaign) {
			expired = c.SyncLifecycle(now)
			c.ApplyClose(now)
		},
	)
	if err != nil {
		return nil, s.storeErr(err)
	}

	if expired {
		s.logAudit(ctx, audit.Event{
			Type:       audit.EventCampaignExpired,
			CampaignID: campaignID,
		})
	}
	s.logAudit(ctx, audit.Event{
		Type:       audit.EventCampaignClosed,
		CampaignID: campaignID,
		Actor:      caller,
	})
	if s.metrics != nil {
		s.metrics.CampaignsClosed.Inc()
	}
	s.invalidate(ctx, campaignID)

	return after, nil
}

// AuditTrail returns the campaign's event history in append order.
func (s *Service) AuditTrail(ctx context.Context, campaignID id.CampaignID) ([]audit.Event, error) {
	if s.auditTrail == nil {
		return nil, dErrors.New(dErrors.CodeNotFound, "audit trail is not enabled")
	}
	if _, err := s.store.FindByID(ctx, campaignID); err != nil {
		return nil, s.storeErr(err)
	}
	events, err := s.auditTrail.List(ctx, campaignID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load audit trail")
	}
	return events, nil
}

// storeErr translates infra sentinels into domain errors and passes domain
// errors through untouched.
func (s *Service) storeErr(err error) error {
	var dErr *dErrors.Error
	if errors.As(err, &dErr) {
		return err
	}
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "campaign not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "storage failure")
}

func (s *Service) logAudit(ctx context.Context, event audit.Event) {
	args := []any{
		"event", string(event.Type),
		"campaign_id", event.CampaignID,
		"log_type", "audit",
	}
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		args = append(args, "request_id", requestID)
	}
	if s.logger != nil {
		s.logger.InfoContext(ctx, string(event.Type), args...)
	}
	if s.auditPublisher == nil {
		return
	}
	_ = s.auditPublisher.Emit(ctx, event)
}

func (s *Service) invalidate(ctx context.Context, campaignID id.CampaignID) {
	if s.projection != nil {
		s.projection.Invalidate(ctx, campaignID)
	}
}
