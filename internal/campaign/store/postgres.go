package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"fundforge/internal/campaign/models"
	id "fundforge/pkg/domain"
	"fundforge/pkg/platform/sentinel"
)

// Postgres is the durable implementation. Execute serializes per campaign by
// holding SELECT ... FOR UPDATE on the campaign row across the validate and
// mutate callbacks; the transaction gives all-or-nothing semantics for free.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const schema = `
CREATE TABLE IF NOT EXISTS campaigns (
	id             UUID PRIMARY KEY,
	creator        UUID NOT NULL,
	title          TEXT NOT NULL,
	description    TEXT NOT NULL DEFAULT '',
	category       TEXT NOT NULL,
	goal           BIGINT NOT NULL,
	deadline       TIMESTAMPTZ NOT NULL,
	total_raised   BIGINT NOT NULL DEFAULT 0,
	escrowed       BIGINT NOT NULL DEFAULT 0,
	released       BIGINT NOT NULL DEFAULT 0,
	refunded_total BIGINT NOT NULL DEFAULT 0,
	status         TEXT NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL,
	updated_at     TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS contributions (
	campaign_id    UUID NOT NULL REFERENCES campaigns(id),
	contributor    UUID NOT NULL,
	amount         BIGINT NOT NULL,
	reward_credits BIGINT NOT NULL,
	refunded       BOOLEAN NOT NULL DEFAULT FALSE,
	refunded_at    TIMESTAMPTZ,
	first_at       TIMESTAMPTZ NOT NULL,
	last_at        TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (campaign_id, contributor)
);

CREATE TABLE IF NOT EXISTS milestones (
	campaign_id   UUID NOT NULL REFERENCES campaigns(id),
	idx           INT NOT NULL,
	description   TEXT NOT NULL,
	amount        BIGINT NOT NULL,
	state         TEXT NOT NULL,
	votes_for     BIGINT NOT NULL DEFAULT 0,
	votes_against BIGINT NOT NULL DEFAULT 0,
	created_at    TIMESTAMPTZ NOT NULL,
	approved_at   TIMESTAMPTZ,
	released_at   TIMESTAMPTZ,
	PRIMARY KEY (campaign_id, idx)
);

CREATE TABLE IF NOT EXISTS milestone_votes (
	campaign_id   UUID NOT NULL,
	milestone_idx INT NOT NULL,
	voter         UUID NOT NULL,
	support       BOOLEAN NOT NULL,
	power         BIGINT NOT NULL,
	cast_at       TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (campaign_id, milestone_idx, voter),
	FOREIGN KEY (campaign_id, milestone_idx) REFERENCES milestones(campaign_id, idx)
);
`

// EnsureSchema creates the tables if they do not exist yet.
func (s *Postgres) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("ensure campaign schema: %w", err)
	}
	return nil
}

// Create inserts a new campaign aggregate.
func (s *Postgres) Create(ctx context.Context, c *models.Campaign) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create campaign: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := insertCampaign(ctx, tx, c); err != nil {
		return err
	}
	if err := saveChildren(ctx, tx, c); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create campaign: %w", err)
	}
	return nil
}

// FindByID loads a snapshot of the aggregate without locking it.
func (s *Postgres) FindByID(ctx context.Context, campaignID id.CampaignID) (*models.Campaign, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("begin find campaign: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	c, err := loadCampaign(ctx, tx, campaignID, false)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit find campaign: %w", err)
	}
	return c, nil
}

// List loads snapshots of all campaigns, newest first.
func (s *Postgres) List(ctx context.Context) ([]*models.Campaign, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM campaigns ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list campaigns: %w", err)
	}
	defer rows.Close()

	var ids []id.CampaignID
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan campaign id: %w", err)
		}
		parsed, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("parse campaign id %q: %w", raw, err)
		}
		ids = append(ids, id.CampaignID(parsed))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate campaigns: %w", err)
	}

	out := make([]*models.Campaign, 0, len(ids))
	for _, cid := range ids {
		c, err := s.FindByID(ctx, cid)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				continue
			}
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// Execute loads the aggregate under a row lock, runs validate then mutate,
// and persists the result. Any validation error rolls back with no state
// change; concurrent Executes on the same campaign queue on the row lock.
func (s *Postgres) Execute(
	ctx context.Context,
	campaignID id.CampaignID,
	validate func(*models.Campaign) error,
	mutate func(*models.Campaign),
) (*models.Campaign, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin execute: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	c, err := loadCampaign(ctx, tx, campaignID, true)
	if err != nil {
		return nil, err
	}

	if err := validate(c); err != nil {
		return nil, err
	}
	mutate(c)

	if err := updateCampaign(ctx, tx, c); err != nil {
		return nil, err
	}
	if err := saveChildren(ctx, tx, c); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit execute: %w", err)
	}
	return c, nil
}

func insertCampaign(ctx context.Context, tx *sql.Tx, c *models.Campaign) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO campaigns (id, creator, title, description, category, goal, deadline,
			total_raised, escrowed, released, refunded_total, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		c.ID.String(), c.Creator.String(), c.Title, c.Description, c.Category, c.Goal, c.Deadline,
		c.TotalRaised, c.Escrowed, c.Released, c.RefundedTotal, string(c.Status), c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert campaign: %w", err)
	}
	return nil
}

func updateCampaign(ctx context.Context, tx *sql.Tx, c *models.Campaign) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE campaigns
		SET total_raised = $2, escrowed = $3, released = $4, refunded_total = $5,
			status = $6, updated_at = $7
		WHERE id = $1`,
		c.ID.String(), c.TotalRaised, c.Escrowed, c.Released, c.RefundedTotal,
		string(c.Status), c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update campaign: %w", err)
	}
	return nil
}

func saveChildren(ctx context.Context, tx *sql.Tx, c *models.Campaign) error {
	for _, rec := range c.Contributions {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO contributions (campaign_id, contributor, amount, reward_credits,
				refunded, refunded_at, first_at, last_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (campaign_id, contributor) DO UPDATE
			SET amount = EXCLUDED.amount, reward_credits = EXCLUDED.reward_credits,
				refunded = EXCLUDED.refunded, refunded_at = EXCLUDED.refunded_at,
				last_at = EXCLUDED.last_at`,
			c.ID.String(), rec.Contributor.String(), rec.Amount, rec.RewardCredits,
			rec.Refunded, rec.RefundedAt, rec.FirstAt, rec.LastAt,
		)
		if err != nil {
			return fmt.Errorf("save contribution: %w", err)
		}
	}

	for _, m := range c.Milestones {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO milestones (campaign_id, idx, description, amount, state,
				votes_for, votes_against, created_at, approved_at, released_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			ON CONFLICT (campaign_id, idx) DO UPDATE
			SET state = EXCLUDED.state, votes_for = EXCLUDED.votes_for,
				votes_against = EXCLUDED.votes_against,
				approved_at = EXCLUDED.approved_at, released_at = EXCLUDED.released_at`,
			c.ID.String(), m.Index, m.Description, m.Amount, string(m.State),
			m.VotesFor, m.VotesAgainst, m.CreatedAt, m.ApprovedAt, m.ReleasedAt,
		)
		if err != nil {
			return fmt.Errorf("save milestone: %w", err)
		}

		for _, v := range m.Votes {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO milestone_votes (campaign_id, milestone_idx, voter, support, power, cast_at)
				VALUES ($1, $2, $3, $4, $5, $6)
				ON CONFLICT (campaign_id, milestone_idx, voter) DO NOTHING`,
				c.ID.String(), m.Index, v.Voter.String(), v.Support, v.Power, v.CastAt,
			)
			if err != nil {
				return fmt.Errorf("save vote: %w", err)
			}
		}
	}
	return nil
}

func loadCampaign(ctx context.Context, tx *sql.Tx, campaignID id.CampaignID, forUpdate bool) (*models.Campaign, error) {
	query := `
		SELECT id, creator, title, description, category, goal, deadline,
			total_raised, escrowed, released, refunded_total, status, created_at, updated_at
		FROM campaigns WHERE id = $1`
	if forUpdate {
		query += " FOR UPDATE"
	}

	var (
		c             models.Campaign
		rawID, rawCreator, rawStatus string
	)
	err := tx.QueryRowContext(ctx, query, campaignID.String()).Scan(
		&rawID, &rawCreator, &c.Title, &c.Description, &c.Category, &c.Goal, &c.Deadline,
		&c.TotalRaised, &c.Escrowed, &c.Released, &c.RefundedTotal, &rawStatus, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("load campaign: %w", err)
	}

	parsedID, err := uuid.Parse(rawID)
	if err != nil {
		return nil, fmt.Errorf("parse campaign id: %w", err)
	}
	parsedCreator, err := uuid.Parse(rawCreator)
	if err != nil {
		return nil, fmt.Errorf("parse creator id: %w", err)
	}
	c.ID = id.CampaignID(parsedID)
	c.Creator = id.ContributorID(parsedCreator)
	c.Status = models.CampaignStatus(rawStatus)
	c.Contributions = make(map[id.ContributorID]*models.Contribution)

	if err := loadContributions(ctx, tx, &c); err != nil {
		return nil, err
	}
	if err := loadMilestones(ctx, tx, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func loadContributions(ctx context.Context, tx *sql.Tx, c *models.Campaign) error {
	rows, err := tx.QueryContext(ctx, `
		SELECT contributor, amount, reward_credits, refunded, refunded_at, first_at, last_at
		FROM contributions WHERE campaign_id = $1`, c.ID.String())
	if err != nil {
		return fmt.Errorf("load contributions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			rec        models.Contribution
			rawVoter   string
			refundedAt sql.NullTime
		)
		if err := rows.Scan(&rawVoter, &rec.Amount, &rec.RewardCredits, &rec.Refunded, &refundedAt, &rec.FirstAt, &rec.LastAt); err != nil {
			return fmt.Errorf("scan contribution: %w", err)
		}
		parsed, err := uuid.Parse(rawVoter)
		if err != nil {
			return fmt.Errorf("parse contributor id: %w", err)
		}
		rec.Contributor = id.ContributorID(parsed)
		if refundedAt.Valid {
			t := refundedAt.Time
			rec.RefundedAt = &t
		}
		c.Contributions[rec.Contributor] = &rec
	}
	return rows.Err()
}

func loadMilestones(ctx context.Context, tx *sql.Tx, c *models.Campaign) error {
	rows, err := tx.QueryContext(ctx, `
		SELECT idx, description, amount, state, votes_for, votes_against, created_at, approved_at, released_at
		FROM milestones WHERE campaign_id = $1 ORDER BY idx`, c.ID.String())
	if err != nil {
		return fmt.Errorf("load milestones: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			m                      models.Milestone
			rawState               string
			approvedAt, releasedAt sql.NullTime
		)
		if err := rows.Scan(&m.Index, &m.Description, &m.Amount, &rawState, &m.VotesFor, &m.VotesAgainst, &m.CreatedAt, &approvedAt, &releasedAt); err != nil {
			return fmt.Errorf("scan milestone: %w", err)
		}
		m.State = models.MilestoneState(rawState)
		m.Votes = make(map[id.ContributorID]*models.VoteRecord)
		if approvedAt.Valid {
			t := approvedAt.Time
			m.ApprovedAt = &t
		}
		if releasedAt.Valid {
			t := releasedAt.Time
			m.ReleasedAt = &t
		}
		ms := m
		c.Milestones = append(c.Milestones, &ms)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	return loadVotes(ctx, tx, c)
}

func loadVotes(ctx context.Context, tx *sql.Tx, c *models.Campaign) error {
	rows, err := tx.QueryContext(ctx, `
		SELECT milestone_idx, voter, support, power, cast_at
		FROM milestone_votes WHERE campaign_id = $1`, c.ID.String())
	if err != nil {
		return fmt.Errorf("load votes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			idx      int
			rawVoter string
			v        models.VoteRecord
		)
		if err := rows.Scan(&idx, &rawVoter, &v.Support, &v.Power, &v.CastAt); err != nil {
			return fmt.Errorf("scan vote: %w", err)
		}
		parsed, err := uuid.Parse(rawVoter)
		if err != nil {
			return fmt.Errorf("parse voter id: %w", err)
		}
		v.Voter = id.ContributorID(parsed)
		if idx >= 0 && idx < len(c.Milestones) {
			c.Milestones[idx].Votes[v.Voter] = &v
		}
	}
	return rows.Err()
}

// isUniqueViolation matches postgres error code 23505 without importing the
// driver's error types into the store contract.
func isUniqueViolation(err error) bool {
	type sqlState interface{ SQLState() string }
	var st sqlState
	return errors.As(err, &st) && st.SQLState() == "23505"
}
