package models

import (
	"time"

	id "fundforge/pkg/domain"
)

// Contribution is the single per-contributor stake record. Repeated
// contributions accumulate into it; refunding sets a flag rather than
// deleting, preserving the audit history. Reward credits are issued 1:1 with
// contributed units and survive a refund.
type Contribution struct {
	Contributor   id.ContributorID `json:"contributor"`
	Amount        int64            `json:"amount"`
	RewardCredits int64            `json:"reward_credits"`
	Refunded      bool             `json:"refunded"`
	RefundedAt    *time.Time       `json:"refunded_at,omitempty"`
	FirstAt       time.Time        `json:"first_at"`
	LastAt        time.Time        `json:"last_at"`
}

// VotingPower is the weight this record carries in milestone votes: the
// staked amount, zero once refunded.
func (c *Contribution) VotingPower() int64 {
	if c.Refunded {
		return 0
	}
	return c.Amount
}
