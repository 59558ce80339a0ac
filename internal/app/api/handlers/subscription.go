package handlers

import (
	"net/http"
	"time"

	"github.com/lampstand/intercede/internal/app/service/dispatch"
	"github.com/lampstand/intercede/internal/app/service/followup"
	subsvc "github.com/lampstand/intercede/internal/app/service/subscription"
	subscribersvc "github.com/lampstand/intercede/internal/app/service/subscriber"
	"github.com/lampstand/intercede/pkg/logctx"
	"github.com/lampstand/intercede/pkg/response"
	"github.com/lampstand/intercede/pkg/types"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SubscriptionHandler exposes the subscription lifecycle, check-in
// responses and ledger queries to admin tooling.
type SubscriptionHandler struct {
	log         *zap.SugaredLogger
	subs        *subsvc.Service
	subscribers *subscribersvc.Service
	followups   *followup.Service
	ledger      *dispatch.Ledger
}

func NewSubscriptionHandler(
	log *zap.SugaredLogger,
	subs *subsvc.Service,
	subscribers *subscribersvc.Service,
	followups *followup.Service,
	ledger *dispatch.Ledger,
) *SubscriptionHandler {
	return &SubscriptionHandler{log: log, subs: subs, subscribers: subscribers, followups: followups, ledger: ledger}
}

// @Summary      Create subscription
// @Description  Creates a subscription with no occurrence scheduled; the first occurrence is computed on channel verification.
// @Tags         Subscriptions
// @Accept       json
// @Produce      json
// @Param        request  body  subscription.CreateRequest  true  "subscription"
// @Success      200  {object}  response.APIResponse[models.Subscription]
// @Router       /api/v1/subscriptions [post]
func (h *SubscriptionHandler) Create(c *gin.Context) {
	var req subsvc.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorT(response.APIResponseCodeBadRequest, err.Error()))
		return
	}
	sub, err := h.subs.Create(c.Request.Context(), &req)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorT(response.APIResponseCodeBadRequest, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.OKT(sub))
}

// @Summary      Get subscription
// @Tags         Subscriptions
// @Produce      json
// @Param        id  path  string  true  "subscription id"
// @Success      200  {object}  response.APIResponse[models.Subscription]
// @Router       /api/v1/subscriptions/{id} [get]
func (h *SubscriptionHandler) Get(c *gin.Context) {
	sub, err := h.subs.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, response.ErrorT(response.APIResponseCodeBadRequest, "subscription not found"))
		return
	}
	c.JSON(http.StatusOK, response.OKT(sub))
}

// @Summary      Update schedule
// @Description  Replaces schedule fields and recomputes the next occurrence from now.
// @Tags         Subscriptions
// @Accept       json
// @Produce      json
// @Param        id       path  string                             true  "subscription id"
// @Param        request  body  subscription.UpdateScheduleRequest true  "schedule"
// @Success      200  {object}  response.APIResponse[models.Subscription]
// @Router       /api/v1/subscriptions/{id}/schedule [patch]
func (h *SubscriptionHandler) UpdateSchedule(c *gin.Context) {
	var req subsvc.UpdateScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorT(response.APIResponseCodeBadRequest, err.Error()))
		return
	}
	sub, err := h.subs.UpdateSchedule(c.Request.Context(), c.Param("id"), &req, time.Now().UTC())
	if err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorT(response.APIResponseCodeBadRequest, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.OKT(sub))
}

// @Summary      Delete subscription
// @Tags         Subscriptions
// @Produce      json
// @Param        id  path  string  true  "subscription id"
// @Success      200  {object}  response.APIResponse[string]
// @Router       /api/v1/subscriptions/{id} [delete]
func (h *SubscriptionHandler) Delete(c *gin.Context) {
	if err := h.subs.Delete(c.Request.Context(), c.Param("id")); err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorT(response.APIResponseCodeError, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.OKT("deleted"))
}

// @Summary      Reactivate subscription
// @Description  Restores a dormant or unsubscribed subscription, restarting the schedule and clearing follow-up state.
// @Tags         Subscriptions
// @Produce      json
// @Param        id  path  string  true  "subscription id"
// @Success      200  {object}  response.APIResponse[models.Subscription]
// @Router       /api/v1/subscriptions/{id}/reactivate [post]
func (h *SubscriptionHandler) Reactivate(c *gin.Context) {
	sub, err := h.subs.Reactivate(c.Request.Context(), c.Param("id"), time.Now().UTC())
	if err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorT(response.APIResponseCodeBadRequest, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.OKT(sub))
}

// @Summary      Unsubscribe
// @Tags         Subscriptions
// @Produce      json
// @Param        id  path  string  true  "subscription id"
// @Success      200  {object}  response.APIResponse[string]
// @Router       /api/v1/subscriptions/{id}/unsubscribe [post]
func (h *SubscriptionHandler) Unsubscribe(c *gin.Context) {
	if err := h.subs.SetStatus(c.Request.Context(), c.Param("id"), types.SubscriptionStatusUnsubscribed); err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorT(response.APIResponseCodeBadRequest, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.OKT("unsubscribed"))
}

// @Summary      Verify delivery channel
// @Description  Marks the owning subscriber's channel verified and schedules the first occurrence.
// @Tags         Subscriptions
// @Produce      json
// @Param        id  path  string  true  "subscription id"
// @Success      200  {object}  response.APIResponse[models.Subscription]
// @Router       /api/v1/subscriptions/{id}/verify-channel [post]
func (h *SubscriptionHandler) VerifyChannel(c *gin.Context) {
	ctx := c.Request.Context()
	now := time.Now().UTC()

	sub, err := h.subs.Get(ctx, c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, response.ErrorT(response.APIResponseCodeBadRequest, "subscription not found"))
		return
	}
	if err := h.subscribers.MarkVerified(ctx, sub.SubscriberID, now); err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorT(response.APIResponseCodeError, err.Error()))
		return
	}
	sub, err = h.subs.ScheduleInitialOccurrence(ctx, sub.ID, now)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorT(response.APIResponseCodeError, err.Error()))
		return
	}
	logctx.FromGin(c, h.log).Infow("channel verified, first occurrence scheduled",
		"subscription_id", sub.ID, "next_occurrence_utc", sub.NextOccurrenceUTC)
	c.JSON(http.StatusOK, response.OKT(sub))
}

type recordResponseRequest struct {
	Response types.FollowupResponseKind `json:"response" binding:"required"`
}

// @Summary      Record check-in response
// @Description  Stores the subscriber's explicit answer to a check-in and completes the current escalation cycle.
// @Tags         Follow-ups
// @Accept       json
// @Produce      json
// @Param        id       path  string                 true  "subscription id"
// @Param        request  body  recordResponseRequest  true  "response"
// @Success      200  {object}  response.APIResponse[models.FollowupResponse]
// @Router       /api/v1/subscriptions/{id}/responses [post]
func (h *SubscriptionHandler) RecordResponse(c *gin.Context) {
	var req recordResponseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorT(response.APIResponseCodeBadRequest, err.Error()))
		return
	}
	resp, err := h.followups.RecordResponse(c.Request.Context(), c.Param("id"), req.Response, time.Now().UTC())
	if err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorT(response.APIResponseCodeBadRequest, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.OKT(resp))
}

// @Summary      Response history
// @Tags         Follow-ups
// @Produce      json
// @Param        id  path  string  true  "subscription id"
// @Success      200  {object}  response.APIResponse[[]models.FollowupResponse]
// @Router       /api/v1/subscriptions/{id}/responses [get]
func (h *SubscriptionHandler) ListResponses(c *gin.Context) {
	out, err := h.followups.ListResponses(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorT(response.APIResponseCodeError, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.OKT(out))
}

// @Summary      Ledger lookup
// @Description  Reports whether a reminder was already sent for the given calendar date (default: today UTC).
// @Tags         Subscriptions
// @Produce      json
// @Param        id    path   string  true   "subscription id"
// @Param        date  query  string  false  "calendar date YYYY-MM-DD"
// @Success      200  {object}  response.APIResponse[map[string]any]
// @Router       /api/v1/subscriptions/{id}/ledger [get]
func (h *SubscriptionHandler) LedgerLookup(c *gin.Context) {
	date := c.Query("date")
	if date == "" {
		date = time.Now().UTC().Format(time.DateOnly)
	} else if _, err := time.Parse(time.DateOnly, date); err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorT(response.APIResponseCodeBadRequest, "date must be YYYY-MM-DD"))
		return
	}
	sent, err := h.ledger.WasSent(c.Request.Context(), c.Param("id"), date)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorT(response.APIResponseCodeError, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.OKT(map[string]any{"date": date, "sent": sent}))
}

// @Summary      Scan subscriptions
// @Description  Paginated admin listing with filters.
// @Tags         Subscriptions
// @Accept       json
// @Produce      json
// @Param        request  body  subscription.ScanSubscriptionsRequest  true  "scan request"
// @Success      200  {object}  response.APIResponse[subscription.ScanSubscriptionsResponse]
// @Router       /api/v1/subscriptions/scan [post]
func (h *SubscriptionHandler) Scan(c *gin.Context) {
	var req subsvc.ScanSubscriptionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorT(response.APIResponseCodeBadRequest, err.Error()))
		return
	}
	out, err := h.subs.Scan(c.Request.Context(), &req)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorT(response.APIResponseCodeError, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.OKT(out))
}

func (h *SubscriptionHandler) Register(r gin.IRouter) {
	r.POST("/subscriptions", h.Create)
	r.POST("/subscriptions/scan", h.Scan)
	r.GET("/subscriptions/:id", h.Get)
	r.PATCH("/subscriptions/:id/schedule", h.UpdateSchedule)
	r.DELETE("/subscriptions/:id", h.Delete)
	r.POST("/subscriptions/:id/reactivate", h.Reactivate)
	r.POST("/subscriptions/:id/unsubscribe", h.Unsubscribe)
	r.POST("/subscriptions/:id/verify-channel", h.VerifyChannel)
	r.POST("/subscriptions/:id/responses", h.RecordResponse)
	r.GET("/subscriptions/:id/responses", h.ListResponses)
	r.GET("/subscriptions/:id/ledger", h.LedgerLookup)
}
