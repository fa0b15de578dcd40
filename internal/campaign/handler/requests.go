package handler

import (
	"strings"
	"time"

	dErrors "fundforge/pkg/domain-errors"
)

// CreateCampaignRequest is the HTTP request body for POST /campaigns.
type CreateCampaignRequest struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	Goal        int64     `json:"goal"`
	Deadline    time.Time `json:"deadline"`
}

// Validate fails fast on shape problems; domain rules (categories, deadline
// ordering) are enforced by the campaign constructor.
func (r *CreateCampaignRequest) Validate() error {
	r.Title = strings.TrimSpace(r.Title)
	if r.Title == "" {
		return dErrors.New(dErrors.CodeValidation, "title is required")
	}
	if r.Goal <= 0 {
		return dErrors.New(dErrors.CodeValidation, "goal must be a positive integer in smallest currency units")
	}
	if r.Deadline.IsZero() {
		return dErrors.New(dErrors.CodeValidation, "deadline is required")
	}
	return nil
}

// ContributeRequest is the HTTP request body for POST /campaigns/{id}/contributions.
type ContributeRequest struct {
	Amount int64 `json:"amount"`
}

func (r *ContributeRequest) Validate() error {
	if r.Amount <= 0 {
		return dErrors.New(dErrors.CodeInvalidAmount, "amount must be a positive integer in smallest currency units")
	}
	return nil
}

// CreateMilestoneRequest is the HTTP request body for POST /campaigns/{id}/milestones.
type CreateMilestoneRequest struct {
	Description string `json:"description"`
	Amount      int64  `json:"amount"`
}

func (r *CreateMilestoneRequest) Validate() error {
	r.Description = strings.TrimSpace(r.Description)
	if r.Description == "" {
		return dErrors.New(dErrors.CodeValidation, "description is required")
	}
	if r.Amount <= 0 {
		return dErrors.New(dErrors.CodeInvalidAmount, "amount must be a positive integer in smallest currency units")
	}
	return nil
}

// VoteRequest is the HTTP request body for POST .../milestones/{index}/votes.
type VoteRequest struct {
	Support *bool `json:"support"`
}

func (r *VoteRequest) Validate() error {
	if r.Support == nil {
		return dErrors.New(dErrors.CodeValidation, "support is required")
	}
	return nil
}
