package server

import (
	"net/http"
	"strconv"

	webhookdomain "github.com/1212falcon1212/shopfiy-saas-sub001/internal/webhook/domain"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ListDeadLetters exposes permanently failed deliveries for operator
// inspection. Optional ?topic= filter.
func (s *Server) ListDeadLetters(c *gin.Context) {
	items, err := s.webhookRepo.ListDeadLetters(c.Request.Context(), s.db, c.Query("topic"), 200)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	out := make([]gin.H, 0, len(items))
	for _, dl := range items {
		out = append(out, gin.H{
			"id":          dl.ID.String(),
			"topic":       dl.Topic,
			"delivery_id": dl.DeliveryID,
			"shop_domain": dl.ShopDomain,
			"attempts":    dl.Attempts,
			"reason":      dl.Reason,
			"failed_at":   dl.FailedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"dead_letters": out})
}

// ReplayDeadLetter puts a dead letter back on the queue with a fresh
// attempt counter and removes the record.
func (s *Server) ReplayDeadLetter(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	dl, err := s.webhookRepo.FindDeadLetter(c.Request.Context(), s.db, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if dl == nil {
		AbortWithError(c, ErrNotFound)
		return
	}

	err = s.dispatcher.Dispatch(c.Request.Context(), webhookdomain.Delivery{
		Topic:      dl.Topic,
		DeliveryID: dl.DeliveryID,
		ShopDomain: dl.ShopDomain,
		Payload:    dl.Payload,
		ReceivedAt: s.clock.Now(),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if err := s.webhookRepo.DeleteDeadLetter(c.Request.Context(), s.db, id); err != nil {
		AbortWithError(c, err)
		return
	}

	s.log.Info("dead letter replayed",
		zap.String("topic", dl.Topic),
		zap.String("delivery_id", dl.DeliveryID),
	)
	c.JSON(http.StatusOK, gin.H{"status": "requeued"})
}
