package server

import (
	"net/http"

	billingdomain "github.com/1212falcon1212/shopfiy-saas-sub001/internal/billing/domain"
	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
)

type selectPlanRequest struct {
	PlanID    string `json:"plan_id" binding:"required"`
	Currency  string `json:"currency" binding:"required"`
	ReturnURL string `json:"return_url"`
}

// SelectPlan opens the gateway approval flow for a plan.
func (s *Server) SelectPlan(c *gin.Context) {
	var req selectPlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	planID, err := snowflake.ParseString(req.PlanID)
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	m := currentMerchant(c)
	result, err := s.billingSvc.SelectPlan(c.Request.Context(), billingdomain.SelectPlanRequest{
		MerchantID: m.ID,
		PlanID:     planID,
		Currency:   req.Currency,
		ReturnURL:  req.ReturnURL,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"subscription_id": result.Subscription.ID.String(),
		"status":          result.Subscription.Status,
		"redirect_url":    result.RedirectURL,
	})
}

// GatewayCallback lands the merchant's browser after the gateway
// round-trip and settles the pending subscription.
func (s *Server) GatewayCallback(c *gin.Context) {
	ref := c.Query("reference")
	if ref == "" {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	accepted := c.Query("status") == "accepted"

	sub, err := s.billingSvc.HandleGatewayCallback(c.Request.Context(), ref, accepted)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"subscription_id": sub.ID.String(),
		"status":          sub.Status,
	})
}

func (s *Server) CurrentSubscription(c *gin.Context) {
	m := currentMerchant(c)
	sub, err := s.billingSvc.Current(c.Request.Context(), m.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, subscriptionView(sub))
}

func (s *Server) CancelSubscription(c *gin.Context) {
	id, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	m := currentMerchant(c)
	sub, err := s.billingSvc.Cancel(c.Request.Context(), m.ID, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, subscriptionView(sub))
}

type recordUsageRequest struct {
	Amount      string `json:"amount" binding:"required"`
	Description string `json:"description"`
}

func (s *Server) RecordUsage(c *gin.Context) {
	var req recordUsageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	m := currentMerchant(c)
	sub, err := s.billingSvc.RecordUsageCharge(c.Request.Context(), m.ID, req.Amount, req.Description)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"subscription_id": sub.ID.String(),
		"period_usage":    sub.PeriodUsage,
	})
}

func (s *Server) ListBillingEvents(c *gin.Context) {
	m := currentMerchant(c)
	events, err := s.billingSvc.Events(c.Request.Context(), m.ID, 100)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

func subscriptionView(sub *billingdomain.Subscription) gin.H {
	return gin.H{
		"subscription_id":    sub.ID.String(),
		"plan_id":            sub.PlanID.String(),
		"status":             sub.Status,
		"currency":           sub.Currency,
		"price":              sub.Price,
		"trial_ends_at":      sub.TrialEndsAt,
		"current_period_end": sub.CurrentPeriodEnd,
		"period_usage":       sub.PeriodUsage,
		"created_at":         sub.CreatedAt,
	}
}
