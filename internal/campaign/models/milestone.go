package models

import (
	"time"

	id "fundforge/pkg/domain"
)

// MilestoneState is the approval phase of one funding tranche.
type MilestoneState string

const (
	MilestoneVoting   MilestoneState = "voting"
	MilestoneApproved MilestoneState = "approved"
	MilestoneReleased MilestoneState = "released"
)

// Approval rule parameters, in whole percent. A milestone approves when at
// least quorumPercent of the total stake has voted and at least
// approvalPercent of the cast power is in favor. The denominator is live
// turnout, not total possible stake, so approval stays achievable without
// unanimous participation; the quorum keeps a lone early voter from deciding
// alone. Manipulable by a majority of active voters — an accepted tradeoff.
const (
	approvalPercent = 60
	quorumPercent   = 60
)

// Milestone is a funding tranche gated behind a weighted community vote.
// Index is fixed at creation and never reused.
//
// Invariant: VotesFor + VotesAgainst never exceeds the campaign's total
// contributed stake, because each voter votes once with power capped by
// their contribution.
type Milestone struct {
	Index       int            `json:"index"`
	Description string         `json:"description"`
	Amount      int64          `json:"amount"`
	State       MilestoneState `json:"state"`

	VotesFor     int64                            `json:"votes_for"`
	VotesAgainst int64                            `json:"votes_against"`
	Votes        map[id.ContributorID]*VoteRecord `json:"votes"`

	CreatedAt  time.Time  `json:"created_at"`
	ApprovedAt *time.Time `json:"approved_at,omitempty"`
	ReleasedAt *time.Time `json:"released_at,omitempty"`
}

// VoteRecord captures one (milestone, voter) decision with the voting power
// snapshotted at cast time. Immutable thereafter.
type VoteRecord struct {
	Voter   id.ContributorID `json:"voter"`
	Support bool             `json:"support"`
	Power   int64            `json:"power"`
	CastAt  time.Time        `json:"cast_at"`
}

func newMilestone(index int, description string, amount int64, now time.Time) *Milestone {
	return &Milestone{
		Index:       index,
		Description: description,
		Amount:      amount,
		State:       MilestoneVoting,
		Votes:       make(map[id.ContributorID]*VoteRecord),
		CreatedAt:   now,
	}
}

func (m *Milestone) recordVote(voter id.ContributorID, support bool, power int64, now time.Time) {
	m.Votes[voter] = &VoteRecord{Voter: voter, Support: support, Power: power, CastAt: now}
	if support {
		m.VotesFor += power
	} else {
		m.VotesAgainst += power
	}
}

// evaluateApproval applies the approval rule against totalStaked and promotes
// the milestone when it passes. Integer arithmetic only; monetary values
// never touch floating point. An exact tie stays in Voting.
func (m *Milestone) evaluateApproval(totalStaked int64, now time.Time) bool {
	if m.State != MilestoneVoting {
		return false
	}
	turnout := m.VotesFor + m.VotesAgainst
	if turnout == 0 {
		return false
	}
	if !meetsPercent(turnout, totalStaked, quorumPercent) {
		return false
	}
	if !meetsPercent(m.VotesFor, turnout, approvalPercent) {
		return false
	}
	m.State = MilestoneApproved
	m.ApprovedAt = &now
	return true
}

// meetsPercent reports whether part covers at least percent of whole,
// equivalent to part*100 >= whole*percent but safe for stakes large enough
// to overflow the direct products.
func meetsPercent(part, whole, percent int64) bool {
	threshold := (whole/100)*percent + ((whole%100)*percent+99)/100
	return part >= threshold
}

func (m *Milestone) markReleased(now time.Time) {
	m.State = MilestoneReleased
	m.ReleasedAt = &now
}

func (m *Milestone) clone() *Milestone {
	cp := *m
	cp.Votes = make(map[id.ContributorID]*VoteRecord, len(m.Votes))
	for k, v := range m.Votes {
		rec := *v
		cp.Votes[k] = &rec
	}
	if m.ApprovedAt != nil {
		t := *m.ApprovedAt
		cp.ApprovedAt = &t
	}
	if m.ReleasedAt != nil {
		t := *m.ReleasedAt
		cp.ReleasedAt = &t
	}
	return &cp
}
