package models

import (
	"strings"
	"time"

	id "fundforge/pkg/domain"
	dErrors "fundforge/pkg/domain-errors"
)

// CampaignStatus is the campaign's lifecycle phase. It governs which
// operations are legal and only ever moves forward.
type CampaignStatus string

const (
	StatusActive      CampaignStatus = "active"
	StatusGoalReached CampaignStatus = "goal_reached"
	StatusExpired     CampaignStatus = "expired"
	StatusClosed      CampaignStatus = "closed"
)

// CanTransitionTo reports whether the lifecycle may move to next.
// Active → GoalReached | Expired; GoalReached → Closed; Expired → Closed.
// Every transition is one-way.
func (s CampaignStatus) CanTransitionTo(next CampaignStatus) bool {
	switch s {
	case StatusActive:
		return next == StatusGoalReached || next == StatusExpired
	case StatusGoalReached, StatusExpired:
		return next == StatusClosed
	default:
		return false
	}
}

// Categories accepted at campaign creation. Mirrors the platform's taxonomy.
var Categories = map[string]bool{
	"technology": true,
	"art":        true,
	"games":      true,
	"film":       true,
	"music":      true,
	"social":     true,
	"other":      true,
}

const maxTitleLen = 140

// Campaign is the aggregate root for one campaign instance: the escrow
// ledger, milestone list, and lifecycle state machine in a single owned
// record. All components operate through an exclusive handle to it; no
// component holds its own copy of truth.
//
// Invariants:
//   - Escrowed == TotalRaised - Released at all times
//   - TotalRaised is net of refunds; RefundedTotal preserves the gross figure
//   - exactly one Contribution record per contributor
//   - milestone amounts sum to at most TotalRaised (checked at creation)
//   - lifecycle transitions are one-way
type Campaign struct {
	ID          id.CampaignID    `json:"id"`
	Creator     id.ContributorID `json:"creator"`
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Category    string           `json:"category"`
	Goal        int64            `json:"goal"`
	Deadline    time.Time        `json:"deadline"`

	TotalRaised   int64          `json:"total_raised"`
	Escrowed      int64          `json:"escrowed"`
	Released      int64          `json:"released"`
	RefundedTotal int64          `json:"refunded_total"`
	Status        CampaignStatus `json:"status"`

	Contributions map[id.ContributorID]*Contribution `json:"contributions"`
	Milestones    []*Milestone                       `json:"milestones"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewCampaign validates and constructs an Active campaign.
func NewCampaign(campaignID id.CampaignID, creator id.ContributorID, title, description, category string, goal int64, deadline, now time.Time) (*Campaign, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "title is required")
	}
	if len(title) > maxTitleLen {
		return nil, dErrors.Newf(dErrors.CodeValidation, "title must be %d characters or less", maxTitleLen)
	}
	if goal <= 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "funding goal must be positive")
	}
	if !deadline.After(now) {
		return nil, dErrors.New(dErrors.CodeValidation, "deadline must be in the future")
	}
	if category = strings.ToLower(strings.TrimSpace(category)); !Categories[category] {
		return nil, dErrors.Newf(dErrors.CodeValidation, "unknown category %q", category)
	}
	if creator.IsZero() {
		return nil, dErrors.New(dErrors.CodeValidation, "creator is required")
	}
	return &Campaign{
		ID:            campaignID,
		Creator:       creator,
		Title:         title,
		Description:   strings.TrimSpace(description),
		Category:      category,
		Goal:          goal,
		Deadline:      deadline,
		Status:        StatusActive,
		Contributions: make(map[id.ContributorID]*Contribution),
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// EffectiveStatus computes the lifecycle phase as of now without mutating.
// An Active campaign past its deadline is effectively Expired even though
// nothing has recorded the transition yet; expiry is evaluated lazily.
func (c *Campaign) EffectiveStatus(now time.Time) CampaignStatus {
	if c.Status == StatusActive && now.After(c.Deadline) {
		return StatusExpired
	}
	return c.Status
}

// SyncLifecycle records the lazy Active→Expired transition if the deadline
// has passed. Returns true when the stored status changed.
func (c *Campaign) SyncLifecycle(now time.Time) bool {
	if c.Status == StatusActive && now.After(c.Deadline) {
		c.Status = StatusExpired
		c.UpdatedAt = now
		return true
	}
	return false
}

// ContributionOf returns a copy of the contributor's record, or a zero-value
// record if they never contributed.
func (c *Campaign) ContributionOf(contributor id.ContributorID) Contribution {
	if rec, ok := c.Contributions[contributor]; ok {
		return *rec
	}
	return Contribution{Contributor: contributor}
}

// ContributorCount reports how many distinct contributors hold a record.
func (c *Campaign) ContributorCount() int {
	return len(c.Contributions)
}

// CanContribute validates a contribution attempt without applying it.
func (c *Campaign) CanContribute(contributor id.ContributorID, amount int64, now time.Time) error {
	if contributor == c.Creator {
		return dErrors.New(dErrors.CodeSelfContribution, "creator cannot contribute to own campaign")
	}
	if amount <= 0 {
		return dErrors.New(dErrors.CodeInvalidAmount, "contribution amount must be positive")
	}
	switch c.EffectiveStatus(now) {
	case StatusActive:
		return nil
	case StatusGoalReached:
		if now.After(c.Deadline) {
			return dErrors.New(dErrors.CodeClosedCampaign, "campaign deadline has passed")
		}
		return nil
	default:
		return dErrors.New(dErrors.CodeClosedCampaign, "campaign is not accepting contributions")
	}
}

// ApplyContribution credits the contributor's record (creating it on first
// contribution), moves the amount into escrow, issues reward credits 1:1, and
// flips Active→GoalReached on the first crossing. The caller must hold
// exclusive access to the aggregate; the crossing check is atomic with the
// balance update only under that discipline.
//
// Returns the updated record and whether this contribution reached the goal.
func (c *Campaign) ApplyContribution(contributor id.ContributorID, amount int64, now time.Time) (*Contribution, bool) {
	rec, ok := c.Contributions[contributor]
	if !ok {
		rec = &Contribution{Contributor: contributor, FirstAt: now}
		c.Contributions[contributor] = rec
	}
	rec.Amount += amount
	rec.RewardCredits += amount
	rec.LastAt = now

	c.TotalRaised += amount
	c.Escrowed += amount
	c.UpdatedAt = now

	goalReached := false
	if c.Status == StatusActive && c.TotalRaised >= c.Goal {
		c.Status = StatusGoalReached
		goalReached = true
	}
	return rec, goalReached
}

// CanCreateMilestone validates a milestone creation attempt.
func (c *Campaign) CanCreateMilestone(caller id.ContributorID, amount int64, now time.Time) error {
	if caller != c.Creator {
		return dErrors.New(dErrors.CodeUnauthorized, "only the campaign creator can create milestones")
	}
	if c.EffectiveStatus(now) != StatusGoalReached {
		return dErrors.New(dErrors.CodePrematureMilestone, "milestones require a goal-reached campaign")
	}
	if amount <= 0 {
		return dErrors.New(dErrors.CodeInvalidAmount, "milestone amount must be positive")
	}
	if c.AllocatedTotal()+amount > c.TotalRaised {
		return dErrors.New(dErrors.CodeOverAllocation, "milestone amounts would exceed total raised")
	}
	return nil
}

// ApplyMilestone appends a new milestone in Voting state.
func (c *Campaign) ApplyMilestone(description string, amount int64, now time.Time) *Milestone {
	m := newMilestone(len(c.Milestones), description, amount, now)
	c.Milestones = append(c.Milestones, m)
	c.UpdatedAt = now
	return m
}

// AllocatedTotal sums the requested amounts across all milestones.
func (c *Campaign) AllocatedTotal() int64 {
	var total int64
	for _, m := range c.Milestones {
		total += m.Amount
	}
	return total
}

// Milestone returns the milestone at index, or a not_found error.
func (c *Campaign) Milestone(index int) (*Milestone, error) {
	if index < 0 || index >= len(c.Milestones) {
		return nil, dErrors.Newf(dErrors.CodeNotFound, "milestone %d does not exist", index)
	}
	return c.Milestones[index], nil
}

// CanVote validates a vote attempt on the milestone at index.
func (c *Campaign) CanVote(index int, voter id.ContributorID) error {
	m, err := c.Milestone(index)
	if err != nil {
		return err
	}
	rec, ok := c.Contributions[voter]
	if !ok || rec.Amount <= 0 || rec.Refunded {
		return dErrors.New(dErrors.CodeNoStake, "voter has no stake in this campaign")
	}
	if m.State != MilestoneVoting {
		return dErrors.New(dErrors.CodeMilestoneClosed, "milestone is no longer accepting votes")
	}
	if _, voted := m.Votes[voter]; voted {
		return dErrors.New(dErrors.CodeAlreadyVoted, "voter already voted on this milestone")
	}
	return nil
}

// ApplyVote records the vote with power snapshotted from the voter's current
// contribution, then evaluates the approval rule. Later contributions do not
// retroactively change past votes.
//
// Returns the milestone and whether this vote approved it.
func (c *Campaign) ApplyVote(index int, voter id.ContributorID, support bool, now time.Time) (*Milestone, bool) {
	m := c.Milestones[index]
	power := c.Contributions[voter].Amount
	m.recordVote(voter, support, power, now)
	approved := m.evaluateApproval(c.TotalRaised, now)
	c.UpdatedAt = now
	return m, approved
}

// CanRelease validates a release attempt for the milestone at index.
func (c *Campaign) CanRelease(index int) error {
	m, err := c.Milestone(index)
	if err != nil {
		return err
	}
	switch m.State {
	case MilestoneReleased:
		return dErrors.New(dErrors.CodeAlreadyReleased, "milestone funds already released")
	case MilestoneVoting:
		return dErrors.New(dErrors.CodeNotApproved, "milestone has not been approved")
	}
	// Re-checked defensively: the allocation guard should make this
	// unreachable, but the escrow can shrink from a prior release.
	if c.Escrowed < m.Amount {
		return dErrors.New(dErrors.CodeInsufficientEscrow, "escrowed balance below milestone amount")
	}
	return nil
}

// ApplyRelease debits escrow by the milestone amount and marks it Released.
// The transfer to the creator is the caller's to record.
func (c *Campaign) ApplyRelease(index int, now time.Time) int64 {
	m := c.Milestones[index]
	c.Escrowed -= m.Amount
	c.Released += m.Amount
	m.markReleased(now)
	c.UpdatedAt = now
	return m.Amount
}

// CanRefund validates a refund request. Refunds are available only once the
// campaign is Expired; reaching the goal permanently forecloses them, even if
// the campaign later stalls in milestone voting.
func (c *Campaign) CanRefund(contributor id.ContributorID, now time.Time) error {
	if c.EffectiveStatus(now) != StatusExpired {
		return dErrors.New(dErrors.CodeRefundNotAvailable, "refunds require an expired campaign")
	}
	rec, ok := c.Contributions[contributor]
	if !ok || rec.Amount == 0 {
		return dErrors.New(dErrors.CodeNoContribution, "contributor has no contribution to refund")
	}
	if rec.Refunded {
		return dErrors.New(dErrors.CodeAlreadyRefunded, "contribution already refunded")
	}
	return nil
}

// ApplyRefund marks the record refunded and debits both escrow and total
// raised. Reward credits are not revoked: they represent participation, not a
// redeemable claim.
//
// Returns the refunded amount.
func (c *Campaign) ApplyRefund(contributor id.ContributorID, now time.Time) int64 {
	rec := c.Contributions[contributor]
	amount := rec.Amount
	rec.Refunded = true
	rec.RefundedAt = &now

	c.TotalRaised -= amount
	c.Escrowed -= amount
	c.RefundedTotal += amount
	c.UpdatedAt = now
	return amount
}

// CanClose validates an advisory closure. Closure never gates refunds; an
// Expired campaign can close while unclaimed refunds remain.
func (c *Campaign) CanClose(caller id.ContributorID, now time.Time) error {
	if caller != c.Creator {
		return dErrors.New(dErrors.CodeUnauthorized, "only the campaign creator can close the campaign")
	}
	status := c.EffectiveStatus(now)
	if !status.CanTransitionTo(StatusClosed) {
		return dErrors.Newf(dErrors.CodeInvariantViolation, "cannot close a campaign in %s state", status)
	}
	if status == StatusGoalReached {
		for _, m := range c.Milestones {
			if m.State != MilestoneReleased {
				return dErrors.New(dErrors.CodeInvariantViolation, "cannot close with unreleased milestones")
			}
		}
	}
	return nil
}

// ApplyClose records the terminal transition.
func (c *Campaign) ApplyClose(now time.Time) {
	c.Status = StatusClosed
	c.UpdatedAt = now
}

// Clone deep-copies the aggregate so reads operate on a stable snapshot.
func (c *Campaign) Clone() *Campaign {
	cp := *c
	cp.Contributions = make(map[id.ContributorID]*Contribution, len(c.Contributions))
	for k, v := range c.Contributions {
		rec := *v
		if v.RefundedAt != nil {
			t := *v.RefundedAt
			rec.RefundedAt = &t
		}
		cp.Contributions[k] = &rec
	}
	cp.Milestones = make([]*Milestone, len(c.Milestones))
	for i, m := range c.Milestones {
		cp.Milestones[i] = m.clone()
	}
	return &cp
}
