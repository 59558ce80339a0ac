package handlers

import (
	"net/http"
	"time"

	"github.com/lampstand/intercede/internal/app/service/activity"
	subscribersvc "github.com/lampstand/intercede/internal/app/service/subscriber"
	"github.com/lampstand/intercede/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// EngagementHandler records engagement events and creates subscribers.
type EngagementHandler struct {
	log         *zap.SugaredLogger
	activity    *activity.Service
	subscribers *subscribersvc.Service
}

func NewEngagementHandler(log *zap.SugaredLogger, act *activity.Service, subscribers *subscribersvc.Service) *EngagementHandler {
	return &EngagementHandler{log: log, activity: act, subscribers: subscribers}
}

type recordEngagementRequest struct {
	SubscriberID string `json:"subscriber_id" binding:"required"`
	CampaignID   string `json:"campaign_id" binding:"required"`
	Kind         string `json:"kind" binding:"required"`
}

// @Summary      Record engagement
// @Description  Appends one engagement event; the follow-up engine treats it as activity.
// @Tags         Engagement
// @Accept       json
// @Produce      json
// @Param        request  body  recordEngagementRequest  true  "engagement"
// @Success      200  {object}  response.APIResponse[string]
// @Router       /api/v1/engagements [post]
func (h *EngagementHandler) Record(c *gin.Context) {
	var req recordEngagementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorT(response.APIResponseCodeBadRequest, err.Error()))
		return
	}
	err := h.activity.RecordEngagement(c.Request.Context(), req.SubscriberID, req.CampaignID, req.Kind, time.Now().UTC())
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorT(response.APIResponseCodeError, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.OKT("recorded"))
}

// @Summary      Create subscriber
// @Tags         Engagement
// @Accept       json
// @Produce      json
// @Param        request  body  subscriber.CreateSubscriberRequest  true  "subscriber"
// @Success      200  {object}  response.APIResponse[models.Subscriber]
// @Router       /api/v1/subscribers [post]
func (h *EngagementHandler) CreateSubscriber(c *gin.Context) {
	var req subscribersvc.CreateSubscriberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorT(response.APIResponseCodeBadRequest, err.Error()))
		return
	}
	sub, err := h.subscribers.Create(c.Request.Context(), &req)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorT(response.APIResponseCodeBadRequest, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.OKT(sub))
}

func (h *EngagementHandler) Register(r gin.IRouter) {
	r.POST("/engagements", h.Record)
	r.POST("/subscribers", h.CreateSubscriber)
}
