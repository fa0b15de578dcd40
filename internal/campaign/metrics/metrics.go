package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the campaign module.
// Tracks funding volume, governance activity, and escrow movement.
type Metrics struct {
	CampaignsCreated   prometheus.Counter
	Contributions      prometheus.Counter
	ContributedAmount  prometheus.Counter
	GoalsReached       prometheus.Counter
	MilestonesCreated  prometheus.Counter
	VotesCast          prometheus.Counter
	MilestonesApproved prometheus.Counter
	Releases           prometheus.Counter
	ReleasedAmount     prometheus.Counter
	Refunds            prometheus.Counter
	RefundedAmount     prometheus.Counter
	CampaignsClosed    prometheus.Counter
	ContributeDuration prometheus.Histogram
}

// New creates a new Metrics instance with all campaign module metrics registered.
func New() *Metrics {
	return &Metrics{
		CampaignsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fundforge_campaigns_created_total",
			Help: "Total number of campaigns created",
		}),
		Contributions: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fundforge_contributions_total",
			Help: "Total number of accepted contributions",
		}),
		ContributedAmount: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fundforge_contributed_units_total",
			Help: "Total contributed amount in smallest currency units",
		}),
		GoalsReached: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fundforge_goals_reached_total",
			Help: "Total number of campaigns that reached their funding goal",
		}),
		MilestonesCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fundforge_milestones_created_total",
			Help: "Total number of milestones created",
		}),
		VotesCast: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fundforge_votes_cast_total",
			Help: "Total number of milestone votes cast",
		}),
		MilestonesApproved: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fundforge_milestones_approved_total",
			Help: "Total number of milestones approved by vote",
		}),
		Releases: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fundforge_releases_total",
			Help: "Total number of milestone fund releases",
		}),
		ReleasedAmount: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fundforge_released_units_total",
			Help: "Total released amount in smallest currency units",
		}),
		Refunds: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fundforge_refunds_total",
			Help: "Total number of refunds issued",
		}),
		RefundedAmount: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fundforge_refunded_units_total",
			Help: "Total refunded amount in smallest currency units",
		}),
		CampaignsClosed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fundforge_campaigns_closed_total",
			Help: "Total number of campaigns closed",
		}),
		ContributeDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "fundforge_contribute_duration_seconds",
			Help:    "Duration of contribution operations (escrow critical path)",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

// ObserveContribute records the duration of a contribution operation.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveContribute(start time.Time) {
	m.ContributeDuration.Observe(time.Since(start).Seconds())
}
