package audit

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	id "fundforge/pkg/domain"
)

// PostgresStore persists the audit trail next to the campaign tables.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const auditSchema = `
CREATE TABLE IF NOT EXISTS audit_events (
	seq         BIGSERIAL PRIMARY KEY,
	occurred_at TIMESTAMPTZ NOT NULL,
	event_type  TEXT NOT NULL,
	campaign_id UUID NOT NULL,
	actor       UUID,
	amount      BIGINT,
	milestone   INT,
	detail      TEXT,
	request_id  TEXT
);
CREATE INDEX IF NOT EXISTS audit_events_campaign_idx ON audit_events (campaign_id, seq);
`

func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, auditSchema); err != nil {
		return fmt.Errorf("ensure audit schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Append(ctx context.Context, event Event) error {
	var actor any
	if !event.Actor.IsZero() {
		actor = event.Actor.String()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_events (occurred_at, event_type, campaign_id, actor, amount, milestone, detail, request_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		event.Timestamp, string(event.Type), event.CampaignID.String(), actor,
		event.Amount, event.Milestone, event.Detail, event.RequestID,
	)
	if err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByCampaign(ctx context.Context, campaignID id.CampaignID) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT occurred_at, event_type, campaign_id, actor, amount, milestone, detail, request_id
		FROM audit_events WHERE campaign_id = $1 ORDER BY seq`, campaignID.String())
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var (
			e         Event
			rawType   string
			rawID     string
			actor     sql.NullString
			amount    sql.NullInt64
			milestone sql.NullInt64
			detail    sql.NullString
			requestID sql.NullString
		)
		if err := rows.Scan(&e.Timestamp, &rawType, &rawID, &actor, &amount, &milestone, &detail, &requestID); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		e.Type = EventType(rawType)
		parsed, err := uuid.Parse(rawID)
		if err != nil {
			return nil, fmt.Errorf("parse campaign id: %w", err)
		}
		e.CampaignID = id.CampaignID(parsed)
		if actor.Valid {
			a, err := uuid.Parse(actor.String)
			if err != nil {
				return nil, fmt.Errorf("parse actor id: %w", err)
			}
			e.Actor = id.ContributorID(a)
		}
		e.Amount = amount.Int64
		if milestone.Valid {
			idx := int(milestone.Int64)
			e.Milestone = &idx
		}
		e.Detail = detail.String
		e.RequestID = requestID.String
		out = append(out, e)
	}
	return out, rows.Err()
}
