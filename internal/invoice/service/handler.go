package service

import (
	"context"
	"encoding/json"
	"fmt"

	invoicedomain "github.com/1212falcon1212/shopfiy-saas-sub001/internal/invoice/domain"
	webhookdomain "github.com/1212falcon1212/shopfiy-saas-sub001/internal/webhook/domain"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// TopicMaterialize matches the internal topic order ingestion
// dispatches on first create.
const TopicMaterialize = "invoices/materialize"

type materializePayload struct {
	OrderID string `json:"order_id"`
}

// MaterializeHandler consumes internal invoice jobs off the queue.
type MaterializeHandler struct {
	log      *zap.Logger
	invoices invoicedomain.Service
}

type MaterializeHandlerParam struct {
	fx.In

	Log      *zap.Logger
	Invoices invoicedomain.Service
}

func NewMaterializeHandler(p MaterializeHandlerParam) webhookdomain.Handler {
	return &MaterializeHandler{
		log:      p.Log.Named("invoice.handler"),
		invoices: p.Invoices,
	}
}

func (h *MaterializeHandler) Topic() string { return TopicMaterialize }

func (h *MaterializeHandler) Handle(ctx context.Context, delivery webhookdomain.Delivery) error {
	var payload materializePayload
	if err := json.Unmarshal(delivery.Payload, &payload); err != nil {
		return webhookdomain.Permanent(fmt.Errorf("invalid materialize payload: %w", err))
	}
	orderID, err := snowflake.ParseString(payload.OrderID)
	if err != nil {
		return webhookdomain.Permanent(fmt.Errorf("invalid order id %q: %w", payload.OrderID, err))
	}

	_, err = h.invoices.Materialize(ctx, orderID)
	if err == invoicedomain.ErrOrderNotFound {
		// The order this job was scheduled for is gone; retrying will
		// not bring it back.
		return webhookdomain.Permanent(err)
	}
	return err
}
