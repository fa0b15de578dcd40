package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"fundforge/internal/audit"
	"fundforge/internal/campaign/models"
	"fundforge/internal/campaign/projection"
	"fundforge/internal/campaign/service"
	id "fundforge/pkg/domain"
	dErrors "fundforge/pkg/domain-errors"
	"fundforge/pkg/platform/httputil"
	"fundforge/pkg/requestcontext"
)

// Service defines the funding engine operations the handler exposes.
type Service interface {
	CreateCampaign(ctx context.Context, creator id.ContributorID, params service.CreateCampaignParams) (*models.Campaign, error)
	Contribute(ctx context.Context, campaignID id.CampaignID, contributor id.ContributorID, amount int64) (*service.ContributeResult, error)
	ContributionOf(ctx context.Context, campaignID id.CampaignID, contributor id.ContributorID) (models.Contribution, error)
	CreateMilestone(ctx context.Context, campaignID id.CampaignID, caller id.ContributorID, description string, amount int64) (*service.MilestoneResult, error)
	GetMilestone(ctx context.Context, campaignID id.CampaignID, index int) (models.Milestone, error)
	Vote(ctx context.Context, campaignID id.CampaignID, index int, voter id.ContributorID, support bool) (*service.VoteResult, error)
	Release(ctx context.Context, campaignID id.CampaignID, index int) (*service.ReleaseResult, error)
	RequestRefund(ctx context.Context, campaignID id.CampaignID, contributor id.ContributorID) (*service.RefundResult, error)
	Close(ctx context.Context, campaignID id.CampaignID, caller id.ContributorID) (*models.Campaign, error)
	AuditTrail(ctx context.Context, campaignID id.CampaignID) ([]audit.Event, error)
}

// Projector serves the read-side campaign cards.
type Projector interface {
	Card(ctx context.Context, campaignID id.CampaignID) (*projection.CampaignCard, error)
	Cards(ctx context.Context) ([]*projection.CampaignCard, error)
}

// Handler wires funding endpoints to the campaign service.
type Handler struct {
	service   Service
	projector Projector
	logger    *slog.Logger
}

// New constructs a campaign handler with its dependencies.
func New(service Service, projector Projector, logger *slog.Logger) *Handler {
	return &Handler{
		service:   service,
		projector: projector,
		logger:    logger,
	}
}

// Register mounts the campaign endpoints. Reads are public; mutations require
// an authenticated contributor and the trail requires the admin token.
func (h *Handler) Register(r chi.Router, requireAuth, requireAdmin func(http.Handler) http.Handler) {
	r.Route("/campaigns", func(r chi.Router) {
		r.Get("/", h.HandleListCampaigns)
		r.With(requireAuth).Post("/", h.HandleCreateCampaign)

		r.Route("/{campaignID}", func(r chi.Router) {
			r.Get("/", h.HandleGetCampaign)
			r.With(requireAdmin).Get("/audit", h.HandleAuditTrail)

			r.With(requireAuth).Post("/contributions", h.HandleContribute)
			r.With(requireAuth).Get("/contributions/me", h.HandleMyContribution)
			r.With(requireAuth).Post("/refunds", h.HandleRefund)
			r.With(requireAuth).Post("/close", h.HandleClose)

			r.Route("/milestones", func(r chi.Router) {
				r.With(requireAuth).Post("/", h.HandleCreateMilestone)
				r.Get("/{index}", h.HandleGetMilestone)
				r.With(requireAuth).Post("/{index}/votes", h.HandleVote)
				r.With(requireAuth).Post("/{index}/release", h.HandleRelease)
			})
		})
	})
}

func (h *Handler) HandleCreateCampaign(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	creator, ok := h.contributor(w, ctx)
	if !ok {
		return
	}

	req, ok := httputil.Decode[CreateCampaignRequest](w, r, h.logger)
	if !ok {
		return
	}
	if err := req.Validate(); err != nil {
		httputil.WriteError(w, err)
		return
	}

	c, err := h.service.CreateCampaign(ctx, creator, service.CreateCampaignParams{
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		Goal:        req.Goal,
		Deadline:    req.Deadline,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "campaign created",
		"request_id", requestcontext.RequestID(ctx),
		"campaign_id", c.ID,
		"goal", c.Goal,
	)
	httputil.WriteJSON(w, http.StatusCreated, FromCampaign(c))
}

func (h *Handler) HandleListCampaigns(w http.ResponseWriter, r *http.Request) {
	cards, err := h.projector.Cards(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"campaigns": cards})
}

func (h *Handler) HandleGetCampaign(w http.ResponseWriter, r *http.Request) {
	campaignID, ok := h.campaignID(w, r)
	if !ok {
		return
	}
	card, err := h.projector.Card(r.Context(), campaignID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, card)
}

func (h *Handler) HandleContribute(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	contributor, ok := h.contributor(w, ctx)
	if !ok {
		return
	}
	campaignID, ok := h.campaignID(w, r)
	if !ok {
		return
	}

	req, ok := httputil.Decode[ContributeRequest](w, r, h.logger)
	if !ok {
		return
	}
	if err := req.Validate(); err != nil {
		httputil.WriteError(w, err)
		return
	}

	res, err := h.service.Contribute(ctx, campaignID, contributor, req.Amount)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, FromContributeResult(res))
}

func (h *Handler) HandleMyContribution(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	contributor, ok := h.contributor(w, ctx)
	if !ok {
		return
	}
	campaignID, ok := h.campaignID(w, r)
	if !ok {
		return
	}

	rec, err := h.service.ContributionOf(ctx, campaignID, contributor)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	// The engine hands back a zero-value record for strangers; the HTTP
	// surface turns that into a 404.
	if rec.FirstAt.IsZero() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNoContribution, "no contribution from this contributor"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, fromContribution(rec))
}

func (h *Handler) HandleCreateMilestone(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := h.contributor(w, ctx)
	if !ok {
		return
	}
	campaignID, ok := h.campaignID(w, r)
	if !ok {
		return
	}

	req, ok := httputil.Decode[CreateMilestoneRequest](w, r, h.logger)
	if !ok {
		return
	}
	if err := req.Validate(); err != nil {
		httputil.WriteError(w, err)
		return
	}

	res, err := h.service.CreateMilestone(ctx, campaignID, caller, req.Description, req.Amount)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, FromMilestoneResult(res))
}

func (h *Handler) HandleGetMilestone(w http.ResponseWriter, r *http.Request) {
	campaignID, ok := h.campaignID(w, r)
	if !ok {
		return
	}
	index, ok := h.milestoneIndex(w, r)
	if !ok {
		return
	}

	m, err := h.service.GetMilestone(r.Context(), campaignID, index)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, fromMilestone(m))
}

func (h *Handler) HandleVote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	voter, ok := h.contributor(w, ctx)
	if !ok {
		return
	}
	campaignID, ok := h.campaignID(w, r)
	if !ok {
		return
	}
	index, ok := h.milestoneIndex(w, r)
	if !ok {
		return
	}

	req, ok := httputil.Decode[VoteRequest](w, r, h.logger)
	if !ok {
		return
	}
	if err := req.Validate(); err != nil {
		httputil.WriteError(w, err)
		return
	}

	res, err := h.service.Vote(ctx, campaignID, index, voter, *req.Support)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, FromVoteResult(res))
}

func (h *Handler) HandleRelease(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := h.contributor(w, ctx); !ok {
		return
	}
	campaignID, ok := h.campaignID(w, r)
	if !ok {
		return
	}
	index, ok := h.milestoneIndex(w, r)
	if !ok {
		return
	}

	res, err := h.service.Release(ctx, campaignID, index)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "milestone funds released",
		"request_id", requestcontext.RequestID(ctx),
		"campaign_id", campaignID,
		"milestone", index,
		"amount", res.Amount,
	)
	httputil.WriteJSON(w, http.StatusOK, FromReleaseResult(res))
}

func (h *Handler) HandleRefund(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	contributor, ok := h.contributor(w, ctx)
	if !ok {
		return
	}
	campaignID, ok := h.campaignID(w, r)
	if !ok {
		return
	}

	res, err := h.service.RequestRefund(ctx, campaignID, contributor)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "refund issued",
		"request_id", requestcontext.RequestID(ctx),
		"campaign_id", campaignID,
		"amount", res.Amount,
	)
	httputil.WriteJSON(w, http.StatusOK, FromRefundResult(res))
}

func (h *Handler) HandleClose(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := h.contributor(w, ctx)
	if !ok {
		return
	}
	campaignID, ok := h.campaignID(w, r)
	if !ok {
		return
	}

	c, err := h.service.Close(ctx, campaignID, caller)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromCampaign(c))
}

func (h *Handler) HandleAuditTrail(w http.ResponseWriter, r *http.Request) {
	campaignID, ok := h.campaignID(w, r)
	if !ok {
		return
	}
	events, err := h.service.AuditTrail(r.Context(), campaignID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"events": events})
}

func (h *Handler) contributor(w http.ResponseWriter, ctx context.Context) (id.ContributorID, bool) {
	contributor := requestcontext.ContributorID(ctx)
	if contributor.IsZero() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return id.ContributorID{}, false
	}
	return contributor, true
}

func (h *Handler) campaignID(w http.ResponseWriter, r *http.Request) (id.CampaignID, bool) {
	campaignID, err := id.ParseCampaignID(chi.URLParam(r, "campaignID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "campaign not found"))
		return id.CampaignID{}, false
	}
	return campaignID, true
}

func (h *Handler) milestoneIndex(w http.ResponseWriter, r *http.Request) (int, bool) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil || index < 0 {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "milestone not found"))
		return 0, false
	}
	return index, true
}
