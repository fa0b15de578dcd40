package handler

import (
	"time"

	"fundforge/internal/campaign/models"
	"fundforge/internal/campaign/service"
)

// CampaignResponse is the write-side view of a campaign returned after
// creation and closure.
type CampaignResponse struct {
	ID          string    `json:"id"`
	Creator     string    `json:"creator"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	Goal        int64     `json:"goal"`
	Deadline    time.Time `json:"deadline"`
	TotalRaised int64     `json:"total_raised"`
	Escrowed    int64     `json:"escrowed"`
	Released    int64     `json:"released"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

func FromCampaign(c *models.Campaign) *CampaignResponse {
	return &CampaignResponse{
		ID:          c.ID.String(),
		Creator:     c.Creator.String(),
		Title:       c.Title,
		Description: c.Description,
		Category:    c.Category,
		Goal:        c.Goal,
		Deadline:    c.Deadline,
		TotalRaised: c.TotalRaised,
		Escrowed:    c.Escrowed,
		Released:    c.Released,
		Status:      string(c.Status),
		CreatedAt:   c.CreatedAt,
	}
}

// ContributionResponse mirrors one contributor's stake record.
type ContributionResponse struct {
	Contributor   string     `json:"contributor"`
	Amount        int64      `json:"amount"`
	RewardCredits int64      `json:"reward_credits"`
	Refunded      bool       `json:"refunded"`
	RefundedAt    *time.Time `json:"refunded_at,omitempty"`
	FirstAt       time.Time  `json:"first_at"`
	LastAt        time.Time  `json:"last_at"`
}

func fromContribution(rec models.Contribution) ContributionResponse {
	return ContributionResponse{
		Contributor:   rec.Contributor.String(),
		Amount:        rec.Amount,
		RewardCredits: rec.RewardCredits,
		Refunded:      rec.Refunded,
		RefundedAt:    rec.RefundedAt,
		FirstAt:       rec.FirstAt,
		LastAt:        rec.LastAt,
	}
}

// ContributeResponse carries the post-state of an accepted contribution so
// the caller needs no follow-up read.
type ContributeResponse struct {
	Contribution ContributionResponse `json:"contribution"`
	TotalRaised  int64                `json:"total_raised"`
	Escrowed     int64                `json:"escrowed"`
	Status       string               `json:"status"`
	GoalReached  bool                 `json:"goal_reached"`
}

func FromContributeResult(res *service.ContributeResult) *ContributeResponse {
	return &ContributeResponse{
		Contribution: fromContribution(res.Contribution),
		TotalRaised:  res.TotalRaised,
		Escrowed:     res.Escrowed,
		Status:       string(res.Status),
		GoalReached:  res.GoalReached,
	}
}

// MilestoneResponse mirrors one milestone with its tallies.
type MilestoneResponse struct {
	Index        int        `json:"index"`
	Description  string     `json:"description"`
	Amount       int64      `json:"amount"`
	State        string     `json:"state"`
	VotesFor     int64      `json:"votes_for"`
	VotesAgainst int64      `json:"votes_against"`
	CreatedAt    time.Time  `json:"created_at"`
	ApprovedAt   *time.Time `json:"approved_at,omitempty"`
	ReleasedAt   *time.Time `json:"released_at,omitempty"`
}

func fromMilestone(m models.Milestone) MilestoneResponse {
	return MilestoneResponse{
		Index:        m.Index,
		Description:  m.Description,
		Amount:       m.Amount,
		State:        string(m.State),
		VotesFor:     m.VotesFor,
		VotesAgainst: m.VotesAgainst,
		CreatedAt:    m.CreatedAt,
		ApprovedAt:   m.ApprovedAt,
		ReleasedAt:   m.ReleasedAt,
	}
}

// CreateMilestoneResponse includes the running allocation across milestones.
type CreateMilestoneResponse struct {
	Milestone      MilestoneResponse `json:"milestone"`
	AllocatedTotal int64             `json:"allocated_total"`
}

func FromMilestoneResult(res *service.MilestoneResult) *CreateMilestoneResponse {
	return &CreateMilestoneResponse{
		Milestone:      fromMilestone(res.Milestone),
		AllocatedTotal: res.AllocatedTotal,
	}
}

// VoteResponse carries the updated tallies and whether this vote approved.
type VoteResponse struct {
	Milestone MilestoneResponse `json:"milestone"`
	Approved  bool              `json:"approved"`
}

func FromVoteResult(res *service.VoteResult) *VoteResponse {
	return &VoteResponse{
		Milestone: fromMilestone(res.Milestone),
		Approved:  res.Approved,
	}
}

// ReleaseResponse is the escrow movement of one release.
type ReleaseResponse struct {
	Amount    int64             `json:"amount"`
	Escrowed  int64             `json:"escrowed"`
	Released  int64             `json:"released"`
	Milestone MilestoneResponse `json:"milestone"`
}

func FromReleaseResult(res *service.ReleaseResult) *ReleaseResponse {
	return &ReleaseResponse{
		Amount:    res.Amount,
		Escrowed:  res.Escrowed,
		Released:  res.Released,
		Milestone: fromMilestone(res.Milestone),
	}
}

// RefundResponse is the post-state of a refund.
type RefundResponse struct {
	Amount        int64  `json:"amount"`
	RewardCredits int64  `json:"reward_credits"`
	TotalRaised   int64  `json:"total_raised"`
	Escrowed      int64  `json:"escrowed"`
	Status        string `json:"status"`
}

func FromRefundResult(res *service.RefundResult) *RefundResponse {
	return &RefundResponse{
		Amount:        res.Amount,
		RewardCredits: res.RewardCredits,
		TotalRaised:   res.TotalRaised,
		Escrowed:      res.Escrowed,
		Status:        string(res.Status),
	}
}
