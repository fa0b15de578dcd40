// Package domain holds the typed identifiers shared across the engine.
//
// IDs are distinct types over uuid.UUID so a ContributorID can never be passed
// where a CampaignID is expected. Parsing enforces the trust-boundary
// invariant that IDs are valid, non-nil UUIDs.
package domain

import (
	"github.com/google/uuid"

	dErrors "fundforge/pkg/domain-errors"
)

// CampaignID identifies a campaign instance in the registry.
type CampaignID uuid.UUID

// ContributorID identifies a contributor (or the campaign creator).
type ContributorID uuid.UUID

func (id CampaignID) String() string    { return uuid.UUID(id).String() }
func (id ContributorID) String() string { return uuid.UUID(id).String() }

func (id CampaignID) IsZero() bool    { return uuid.UUID(id) == uuid.Nil }
func (id ContributorID) IsZero() bool { return uuid.UUID(id) == uuid.Nil }

// MarshalText keeps the canonical string form on every encoding surface
// (JSON responses, the card cache, audit payloads).
func (id CampaignID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }

func (id *CampaignID) UnmarshalText(data []byte) error {
	return (*uuid.UUID)(id).UnmarshalText(data)
}

func (id ContributorID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }

func (id *ContributorID) UnmarshalText(data []byte) error {
	return (*uuid.UUID)(id).UnmarshalText(data)
}

// ParseCampaignID parses and validates a campaign ID from its string form.
func ParseCampaignID(s string) (CampaignID, error) {
	u, err := parseUUID(s, "campaign id")
	if err != nil {
		return CampaignID{}, err
	}
	return CampaignID(u), nil
}

// ParseContributorID parses and validates a contributor ID from its string form.
func ParseContributorID(s string) (ContributorID, error) {
	u, err := parseUUID(s, "contributor id")
	if err != nil {
		return ContributorID{}, err
	}
	return ContributorID(u), nil
}

func parseUUID(s, what string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, what+" is required")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, what+" must be a valid UUID")
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, what+" must not be the nil UUID")
	}
	return u, nil
}
