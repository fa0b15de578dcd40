package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "fundforge/pkg/domain"
	dErrors "fundforge/pkg/domain-errors"
)

var (
	t0       = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	deadline = t0.Add(72 * time.Hour)
)

func newTestCampaign(t *testing.T, goal int64) *Campaign {
	t.Helper()
	c, err := NewCampaign(
		id.CampaignID(uuid.New()),
		id.ContributorID(uuid.New()),
		"Solar Lantern Kits",
		"Off-grid lighting for rural schools",
		"social",
		goal,
		deadline,
		t0,
	)
	require.NoError(t, err)
	return c
}

func contributor() id.ContributorID { return id.ContributorID(uuid.New()) }

func mustContribute(t *testing.T, c *Campaign, who id.ContributorID, amount int64, at time.Time) {
	t.Helper()
	require.NoError(t, c.CanContribute(who, amount, at))
	c.ApplyContribution(who, amount, at)
}

func TestNewCampaign_Validation(t *testing.T) {
	creator := contributor()

	cases := []struct {
		name     string
		title    string
		category string
		goal     int64
		deadline time.Time
	}{
		{"empty title", "", "art", 100, deadline},
		{"zero goal", "Title", "art", 0, deadline},
		{"negative goal", "Title", "art", -5, deadline},
		{"past deadline", "Title", "art", 100, t0.Add(-time.Hour)},
		{"unknown category", "Title", "vapourware", 100, deadline},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewCampaign(id.CampaignID(uuid.New()), creator, tc.title, "", tc.category, tc.goal, tc.deadline, t0)
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
		})
	}

	t.Run("valid campaign starts active with empty ledger", func(t *testing.T) {
		c := newTestCampaign(t, 1000)
		assert.Equal(t, StatusActive, c.Status)
		assert.Zero(t, c.TotalRaised)
		assert.Zero(t, c.Escrowed)
		assert.Empty(t, c.Contributions)
	})
}

func TestContribute(t *testing.T) {
	t.Run("creator is rejected regardless of amount or state", func(t *testing.T) {
		c := newTestCampaign(t, 100)
		for _, amount := range []int64{-1, 0, 1, 100} {
			err := c.CanContribute(c.Creator, amount, t0)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeSelfContribution), "amount %d", amount)
		}
	})

	t.Run("non-positive amounts are rejected", func(t *testing.T) {
		c := newTestCampaign(t, 100)
		who := contributor()
		for _, amount := range []int64{0, -10} {
			err := c.CanContribute(who, amount, t0)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidAmount), "amount %d", amount)
		}
	})

	t.Run("repeat contributions accumulate into one record", func(t *testing.T) {
		c := newTestCampaign(t, 1000)
		who := contributor()
		mustContribute(t, c, who, 40, t0)
		mustContribute(t, c, who, 60, t0.Add(time.Minute))

		require.Len(t, c.Contributions, 1)
		rec := c.ContributionOf(who)
		assert.Equal(t, int64(100), rec.Amount)
		assert.Equal(t, int64(100), rec.RewardCredits)
		assert.Equal(t, int64(100), c.TotalRaised)
		assert.Equal(t, int64(100), c.Escrowed)
	})

	t.Run("crossing the goal flips lifecycle exactly once", func(t *testing.T) {
		c := newTestCampaign(t, 100)
		a, b := contributor(), contributor()

		_, crossed := c.ApplyContribution(a, 60, t0)
		assert.False(t, crossed)
		assert.Equal(t, StatusActive, c.Status)

		_, crossed = c.ApplyContribution(b, 50, t0.Add(time.Minute))
		assert.True(t, crossed)
		assert.Equal(t, StatusGoalReached, c.Status)

		// Further contributions never re-trigger the transition.
		_, crossed = c.ApplyContribution(a, 10, t0.Add(2*time.Minute))
		assert.False(t, crossed)
		assert.Equal(t, StatusGoalReached, c.Status)
	})

	t.Run("goal-reached campaign still accepts contributions before the deadline", func(t *testing.T) {
		c := newTestCampaign(t, 50)
		mustContribute(t, c, contributor(), 50, t0)
		require.Equal(t, StatusGoalReached, c.Status)
		assert.NoError(t, c.CanContribute(contributor(), 10, deadline.Add(-time.Hour)))
	})

	t.Run("goal-reached campaign rejects contributions after the deadline", func(t *testing.T) {
		c := newTestCampaign(t, 50)
		mustContribute(t, c, contributor(), 50, t0)
		err := c.CanContribute(contributor(), 10, deadline.Add(time.Hour))
		assert.True(t, dErrors.HasCode(err, dErrors.CodeClosedCampaign))
	})

	t.Run("expired campaign rejects contributions", func(t *testing.T) {
		c := newTestCampaign(t, 1000)
		err := c.CanContribute(contributor(), 10, deadline.Add(time.Hour))
		assert.True(t, dErrors.HasCode(err, dErrors.CodeClosedCampaign))
	})

	t.Run("contributionOf returns zero-value record when absent", func(t *testing.T) {
		c := newTestCampaign(t, 100)
		who := contributor()
		rec := c.ContributionOf(who)
		assert.Equal(t, who, rec.Contributor)
		assert.Zero(t, rec.Amount)
		assert.Zero(t, rec.RewardCredits)
	})
}

func TestLifecycle(t *testing.T) {
	t.Run("expiry is evaluated lazily and only from active", func(t *testing.T) {
		c := newTestCampaign(t, 1000)
		assert.Equal(t, StatusActive, c.Status)
		assert.Equal(t, StatusExpired, c.EffectiveStatus(deadline.Add(time.Second)))
		assert.Equal(t, StatusActive, c.Status, "effective status must not mutate")

		assert.True(t, c.SyncLifecycle(deadline.Add(time.Second)))
		assert.Equal(t, StatusExpired, c.Status)
		assert.False(t, c.SyncLifecycle(deadline.Add(time.Minute)))
	})

	t.Run("goal-reached is one-way and immune to the deadline", func(t *testing.T) {
		c := newTestCampaign(t, 50)
		mustContribute(t, c, contributor(), 60, t0)
		require.Equal(t, StatusGoalReached, c.Status)

		assert.Equal(t, StatusGoalReached, c.EffectiveStatus(deadline.Add(48*time.Hour)))
		assert.False(t, c.SyncLifecycle(deadline.Add(48*time.Hour)))
		assert.Equal(t, StatusGoalReached, c.Status)
	})

	t.Run("status transition table", func(t *testing.T) {
		assert.True(t, StatusActive.CanTransitionTo(StatusGoalReached))
		assert.True(t, StatusActive.CanTransitionTo(StatusExpired))
		assert.True(t, StatusGoalReached.CanTransitionTo(StatusClosed))
		assert.True(t, StatusExpired.CanTransitionTo(StatusClosed))
		assert.False(t, StatusGoalReached.CanTransitionTo(StatusActive))
		assert.False(t, StatusExpired.CanTransitionTo(StatusActive))
		assert.False(t, StatusClosed.CanTransitionTo(StatusActive))
		assert.False(t, StatusClosed.CanTransitionTo(StatusGoalReached))
	})
}

func TestMilestones(t *testing.T) {
	goalReached := func(t *testing.T) (*Campaign, id.ContributorID) {
		c := newTestCampaign(t, 100)
		who := contributor()
		mustContribute(t, c, who, 100, t0)
		require.Equal(t, StatusGoalReached, c.Status)
		return c, who
	}

	t.Run("only the creator may create milestones", func(t *testing.T) {
		c, who := goalReached(t)
		err := c.CanCreateMilestone(who, 10, t0)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	t.Run("milestones require goal-reached", func(t *testing.T) {
		c := newTestCampaign(t, 1000)
		err := c.CanCreateMilestone(c.Creator, 10, t0)
		assert.True(t, dErrors.HasCode(err, dErrors.CodePrematureMilestone))
	})

	t.Run("allocation may not exceed total raised", func(t *testing.T) {
		c, _ := goalReached(t)
		require.NoError(t, c.CanCreateMilestone(c.Creator, 60, t0))
		c.ApplyMilestone("phase one", 60, t0)

		err := c.CanCreateMilestone(c.Creator, 50, t0)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeOverAllocation))

		// Exactly exhausting the raised total is allowed.
		assert.NoError(t, c.CanCreateMilestone(c.Creator, 40, t0))
	})

	t.Run("indices are assigned in order", func(t *testing.T) {
		c, _ := goalReached(t)
		m0 := c.ApplyMilestone("phase one", 30, t0)
		m1 := c.ApplyMilestone("phase two", 30, t0)
		assert.Equal(t, 0, m0.Index)
		assert.Equal(t, 1, m1.Index)
		assert.Equal(t, MilestoneVoting, m0.State)
	})

	t.Run("lookup out of range is not_found", func(t *testing.T) {
		c, _ := goalReached(t)
		_, err := c.Milestone(0)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
		_, err = c.Milestone(-1)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func TestVoting(t *testing.T) {
	// Stake 100 split across two contributors, one milestone in voting.
	setup := func(t *testing.T, stakes map[int64]id.ContributorID) *Campaign {
		t.Helper()
		c := newTestCampaign(t, 100)
		for amount, who := range stakes {
			mustContribute(t, c, who, amount, t0)
		}
		require.Equal(t, StatusGoalReached, c.Status)
		c.ApplyMilestone("phase one", 40, t0)
		return c
	}

	t.Run("voting requires stake", func(t *testing.T) {
		a := contributor()
		c := setup(t, map[int64]id.ContributorID{100: a})
		err := c.CanVote(0, contributor())
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNoStake))
	})

	t.Run("double voting is rejected", func(t *testing.T) {
		a := contributor()
		c := setup(t, map[int64]id.ContributorID{100: a})
		require.NoError(t, c.CanVote(0, a))
		c.ApplyVote(0, a, true, t0)
		err := c.CanVote(0, a)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeAlreadyVoted))
	})

	t.Run("votes on a decided milestone are rejected", func(t *testing.T) {
		a, b := contributor(), contributor()
		c := setup(t, map[int64]id.ContributorID{70: a, 30: b})
		_, approved := c.ApplyVote(0, a, true, t0)
		require.True(t, approved)
		err := c.CanVote(0, b)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeMilestoneClosed))
	})

	t.Run("power is snapshotted at cast time", func(t *testing.T) {
		a, b := contributor(), contributor()
		c := setup(t, map[int64]id.ContributorID{40: a, 60: b})
		m, _ := c.ApplyVote(0, a, true, t0)
		require.Equal(t, int64(40), m.Votes[a].Power)

		// A later top-up does not rewrite the past vote.
		mustContribute(t, c, a, 25, t0.Add(time.Minute))
		assert.Equal(t, int64(40), m.Votes[a].Power)
		assert.Equal(t, int64(40), m.VotesFor)
	})
}

// TestApprovalBoundary pins the 60% rule exactly: with total stake 100,
// 59 in favor leaves the milestone in voting and 60 approves it.
func TestApprovalBoundary(t *testing.T) {
	build := func(t *testing.T, stakeA, stakeB int64) (*Campaign, id.ContributorID, id.ContributorID) {
		t.Helper()
		c := newTestCampaign(t, 100)
		a, b := contributor(), contributor()
		mustContribute(t, c, a, stakeA, t0)
		mustContribute(t, c, b, stakeB, t0)
		c.ApplyMilestone("phase one", 40, t0)
		return c, a, b
	}

	t.Run("59 of 100 in favor stays in voting", func(t *testing.T) {
		c, a, _ := build(t, 59, 41)
		m, approved := c.ApplyVote(0, a, true, t0)
		assert.False(t, approved)
		assert.Equal(t, MilestoneVoting, m.State)
	})

	t.Run("60 of 100 in favor approves", func(t *testing.T) {
		c, a, _ := build(t, 60, 40)
		m, approved := c.ApplyVote(0, a, true, t0)
		assert.True(t, approved)
		assert.Equal(t, MilestoneApproved, m.State)
		require.NotNil(t, m.ApprovedAt)
	})

	t.Run("an exact nonzero tie stays in voting", func(t *testing.T) {
		c, a, b := build(t, 50, 50)
		_, approved := c.ApplyVote(0, a, true, t0)
		require.False(t, approved)
		m, approved := c.ApplyVote(0, b, false, t0)
		assert.False(t, approved)
		assert.Equal(t, MilestoneVoting, m.State)
		assert.Equal(t, int64(50), m.VotesFor)
		assert.Equal(t, int64(50), m.VotesAgainst)
	})

	t.Run("majority against rejects approval", func(t *testing.T) {
		c, a, b := build(t, 40, 60)
		c.ApplyVote(0, a, true, t0)
		m, approved := c.ApplyVote(0, b, false, t0)
		assert.False(t, approved)
		assert.Equal(t, MilestoneVoting, m.State)
	})

	t.Run("unanimous support approves", func(t *testing.T) {
		c, a, b := build(t, 60, 40)
		// Vote the smaller stake first so approval lands on the second vote.
		_, approved := c.ApplyVote(0, b, true, t0)
		require.False(t, approved)
		m, approved := c.ApplyVote(0, a, true, t0)
		assert.True(t, approved)
		assert.Equal(t, int64(100), m.VotesFor)
	})

	t.Run("thresholds hold for stakes near the int64 ceiling", func(t *testing.T) {
		// 18-decimal native tokens put realistic stakes in the e18 range,
		// where multiplying by 100 overflows.
		const (
			whale  = int64(6_000_000_000_000_000_000)
			minnow = int64(3_200_000_000_000_000_000)
		)
		c := newTestCampaign(t, whale+minnow)
		a, b := contributor(), contributor()
		mustContribute(t, c, a, whale, t0)
		mustContribute(t, c, b, minnow, t0)
		c.ApplyMilestone("phase one", whale, t0)

		// 35% of total stake misses quorum.
		_, approved := c.ApplyVote(0, b, false, t0)
		require.False(t, approved)

		// The whale's support vote carries turnout past quorum but leaves
		// the in-favor share at 65%, above the 60% bar.
		m, approved := c.ApplyVote(0, a, true, t0)
		assert.True(t, approved)
		assert.Equal(t, MilestoneApproved, m.State)
	})
}

func TestReleaseAndRefund(t *testing.T) {
	approved := func(t *testing.T) (*Campaign, id.ContributorID) {
		t.Helper()
		c := newTestCampaign(t, 100)
		who := contributor()
		mustContribute(t, c, who, 100, t0)
		c.ApplyMilestone("phase one", 40, t0)
		_, ok := c.ApplyVote(0, who, true, t0)
		require.True(t, ok)
		return c, who
	}

	t.Run("release debits escrow exactly once", func(t *testing.T) {
		c, _ := approved(t)
		require.NoError(t, c.CanRelease(0))
		amount := c.ApplyRelease(0, t0)
		assert.Equal(t, int64(40), amount)
		assert.Equal(t, int64(60), c.Escrowed)
		assert.Equal(t, int64(40), c.Released)

		err := c.CanRelease(0)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeAlreadyReleased))
		assert.Equal(t, int64(60), c.Escrowed, "balance must change exactly once")
	})

	t.Run("release requires approval", func(t *testing.T) {
		c := newTestCampaign(t, 100)
		mustContribute(t, c, contributor(), 100, t0)
		c.ApplyMilestone("phase one", 40, t0)
		err := c.CanRelease(0)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotApproved))
	})

	t.Run("refunds gate on expiry", func(t *testing.T) {
		c := newTestCampaign(t, 100)
		who := contributor()
		mustContribute(t, c, who, 40, t0)

		// Before the deadline: unavailable.
		err := c.CanRefund(who, deadline.Add(-time.Hour))
		assert.True(t, dErrors.HasCode(err, dErrors.CodeRefundNotAvailable))

		// Past the deadline with the goal unmet: available.
		require.NoError(t, c.CanRefund(who, deadline.Add(time.Hour)))
	})

	t.Run("reaching the goal permanently forecloses refunds", func(t *testing.T) {
		c := newTestCampaign(t, 100)
		who := contributor()
		mustContribute(t, c, who, 100, t0)
		err := c.CanRefund(who, deadline.Add(time.Hour))
		assert.True(t, dErrors.HasCode(err, dErrors.CodeRefundNotAvailable))
	})

	t.Run("refund flags the record and keeps reward credits", func(t *testing.T) {
		c := newTestCampaign(t, 1000)
		who := contributor()
		mustContribute(t, c, who, 40, t0)
		after := deadline.Add(time.Hour)
		c.SyncLifecycle(after)

		require.NoError(t, c.CanRefund(who, after))
		amount := c.ApplyRefund(who, after)
		assert.Equal(t, int64(40), amount)

		rec := c.ContributionOf(who)
		assert.True(t, rec.Refunded)
		assert.Equal(t, int64(40), rec.RewardCredits, "credits are not clawed back")
		assert.Zero(t, c.Escrowed)
		assert.Zero(t, c.TotalRaised)
		assert.Equal(t, int64(40), c.RefundedTotal)

		err := c.CanRefund(who, after)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeAlreadyRefunded))
	})

	t.Run("refund without a contribution is rejected", func(t *testing.T) {
		c := newTestCampaign(t, 1000)
		c.SyncLifecycle(deadline.Add(time.Hour))
		err := c.CanRefund(contributor(), deadline.Add(time.Hour))
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNoContribution))
	})
}

// TestConservation checks the ledger identity across a full campaign run:
// escrowed == gross contributions - released - refunded.
func TestConservation(t *testing.T) {
	conserved := func(c *Campaign) bool {
		gross := c.TotalRaised + c.RefundedTotal
		return c.Escrowed == gross-c.Released-c.RefundedTotal
	}

	t.Run("happy path with releases", func(t *testing.T) {
		c := newTestCampaign(t, 10)
		a, b := contributor(), contributor()
		mustContribute(t, c, a, 6, t0)
		mustContribute(t, c, b, 5, t0.Add(time.Minute))
		require.True(t, conserved(c))
		require.Equal(t, StatusGoalReached, c.Status)

		c.ApplyMilestone("ship v1", 4, t0)
		c.ApplyVote(0, a, true, t0)
		_, approved := c.ApplyVote(0, b, true, t0)
		require.True(t, approved)

		require.NoError(t, c.CanRelease(0))
		c.ApplyRelease(0, t0)
		assert.Equal(t, int64(7), c.Escrowed)
		assert.True(t, conserved(c))
	})

	t.Run("failed campaign with refunds", func(t *testing.T) {
		c := newTestCampaign(t, 100)
		a, b := contributor(), contributor()
		mustContribute(t, c, a, 25, t0)
		mustContribute(t, c, b, 15, t0)
		after := deadline.Add(time.Hour)
		c.SyncLifecycle(after)

		c.ApplyRefund(a, after)
		assert.True(t, conserved(c))
		c.ApplyRefund(b, after)
		assert.True(t, conserved(c))
		assert.Zero(t, c.Escrowed)
	})
}

func TestClose(t *testing.T) {
	t.Run("requires creator", func(t *testing.T) {
		c := newTestCampaign(t, 100)
		c.SyncLifecycle(deadline.Add(time.Hour))
		err := c.CanClose(contributor(), deadline.Add(time.Hour))
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	t.Run("expired campaign closes regardless of unclaimed refunds", func(t *testing.T) {
		c := newTestCampaign(t, 100)
		mustContribute(t, c, contributor(), 10, t0)
		after := deadline.Add(time.Hour)
		c.SyncLifecycle(after)
		require.NoError(t, c.CanClose(c.Creator, after))
		c.ApplyClose(after)
		assert.Equal(t, StatusClosed, c.Status)
	})

	t.Run("goal-reached campaign cannot close with unreleased milestones", func(t *testing.T) {
		c := newTestCampaign(t, 50)
		who := contributor()
		mustContribute(t, c, who, 50, t0)
		c.ApplyMilestone("phase one", 20, t0)
		err := c.CanClose(c.Creator, t0)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	t.Run("active campaign cannot close", func(t *testing.T) {
		c := newTestCampaign(t, 100)
		err := c.CanClose(c.Creator, t0)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})
}

func TestClone(t *testing.T) {
	c := newTestCampaign(t, 100)
	a := contributor()
	mustContribute(t, c, a, 100, t0)
	c.ApplyMilestone("phase one", 40, t0)
	c.ApplyVote(0, a, true, t0)

	snap := c.Clone()
	mustContribute(t, c, contributor(), 10, t0.Add(time.Minute))
	c.Milestones[0].Description = "rewritten"

	assert.Len(t, snap.Contributions, 1, "snapshot must not observe later writes")
	assert.Equal(t, "phase one", snap.Milestones[0].Description)
	assert.Equal(t, int64(100), snap.Milestones[0].Votes[a].Power)
}
