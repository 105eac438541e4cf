package server

import (
	"io"
	"net/http"

	webhookdomain "github.com/1212falcon1212/shopfiy-saas-sub001/internal/webhook/domain"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Platform delivery headers.
const (
	HeaderTopic      = "X-Platform-Topic"
	HeaderSignature  = "X-Platform-Hmac-Sha256"
	HeaderDeliveryID = "X-Platform-Webhook-Id"
	HeaderShopDomain = "X-Platform-Shop-Domain"
)

// maxWebhookBody bounds how much of a delivery is read before
// verification.
const maxWebhookBody = 1 << 20

// HandlePlatformWebhook is the single intake for platform events.
// Verification runs against the raw bytes before anything parses the
// payload; the handler answers inside the platform's ack deadline
// because execution is queued, never inline.
func (s *Server) HandlePlatformWebhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	topic := c.GetHeader(HeaderTopic)

	if !s.verifier.Verify(body, c.GetHeader(HeaderSignature)) {
		s.metrics.SignatureRejected.Inc()
		s.metrics.WebhooksReceived.WithLabelValues(topic, "rejected").Inc()
		s.log.Warn("webhook signature rejected",
			zap.String("topic", topic),
			zap.String("shop_domain", c.GetHeader(HeaderShopDomain)),
		)
		c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse{Error: errorPayload{
			Type:    "authenticity_failure",
			Message: "signature verification failed",
		}})
		return
	}

	delivery := webhookdomain.Delivery{
		Topic:      topic,
		DeliveryID: c.GetHeader(HeaderDeliveryID),
		ShopDomain: c.GetHeader(HeaderShopDomain),
		Payload:    body,
		ReceivedAt: s.clock.Now(),
	}

	if err := s.dispatcher.Dispatch(c.Request.Context(), delivery); err != nil {
		if err == webhookdomain.ErrMissingDeliveryID {
			s.metrics.WebhooksReceived.WithLabelValues(topic, "rejected").Inc()
			AbortWithError(c, ErrInvalidRequest)
			return
		}
		// Enqueue failure: let the platform redeliver.
		s.metrics.WebhooksReceived.WithLabelValues(topic, "error").Inc()
		AbortWithError(c, err)
		return
	}

	s.metrics.WebhooksReceived.WithLabelValues(topic, "accepted").Inc()
	c.JSON(http.StatusOK, gin.H{"status": "accepted"})
}
