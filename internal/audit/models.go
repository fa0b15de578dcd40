package audit

import (
	"time"

	id "fundforge/pkg/domain"
)

// EventType names every auditable action in the funding engine.
type EventType string

const (
	EventCampaignCreated      EventType = "campaign_created"
	EventContributionAccepted EventType = "contribution_accepted"
	EventGoalReached          EventType = "goal_reached"
	EventMilestoneCreated     EventType = "milestone_created"
	EventVoteCast             EventType = "vote_cast"
	EventMilestoneApproved    EventType = "milestone_approved"
	EventFundsReleased        EventType = "funds_released"
	EventRefundIssued         EventType = "refund_issued"
	EventCampaignExpired      EventType = "campaign_expired"
	EventCampaignClosed       EventType = "campaign_closed"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Timestamp  time.Time        `json:"timestamp"`
	Type       EventType        `json:"type"`
	CampaignID id.CampaignID    `json:"campaign_id"`
	Actor      id.ContributorID `json:"actor,omitzero"`
	Amount     int64            `json:"amount,omitempty"`
	Milestone  *int             `json:"milestone,omitempty"`
	Detail     string           `json:"detail,omitempty"`
	RequestID  string           `json:"request_id,omitempty"`
}

// MilestoneIndex is a convenience for building the optional milestone field.
func MilestoneIndex(i int) *int {
	return &i
}
