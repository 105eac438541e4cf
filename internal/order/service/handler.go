package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	merchantdomain "github.com/1212falcon1212/shopfiy-saas-sub001/internal/merchant/domain"
	orderdomain "github.com/1212falcon1212/shopfiy-saas-sub001/internal/order/domain"
	webhookdomain "github.com/1212falcon1212/shopfiy-saas-sub001/internal/webhook/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const TopicOrdersCreate = "orders/create"

// orderPayload mirrors the platform's order webhook body. Unknown
// fields are ignored.
type orderPayload struct {
	ID              int64            `json:"id"`
	OrderNumber     json.Number      `json:"order_number"`
	Customer        *customerPayload `json:"customer"`
	ShippingAddress map[string]any   `json:"shipping_address"`
	Currency        string           `json:"currency"`
	TotalPrice      string           `json:"total_price"`
	FinancialStatus string           `json:"financial_status"`
	CreatedAt       *time.Time       `json:"created_at"`
	LineItems       []struct {
		Title    string `json:"title"`
		Quantity int    `json:"quantity"`
		Price    string `json:"price"`
	} `json:"line_items"`
}

type customerPayload struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// CreateHandler consumes orders/create deliveries.
type CreateHandler struct {
	log       *zap.Logger
	merchants merchantdomain.Service
	orders    orderdomain.Service
}

type CreateHandlerParam struct {
	fx.In

	Log       *zap.Logger
	Merchants merchantdomain.Service
	Orders    orderdomain.Service
}

func NewCreateHandler(p CreateHandlerParam) webhookdomain.Handler {
	return &CreateHandler{
		log:       p.Log.Named("order.handler"),
		merchants: p.Merchants,
		orders:    p.Orders,
	}
}

func (h *CreateHandler) Topic() string { return TopicOrdersCreate }

func (h *CreateHandler) Handle(ctx context.Context, delivery webhookdomain.Delivery) error {
	var payload orderPayload
	if err := json.Unmarshal(delivery.Payload, &payload); err != nil {
		return webhookdomain.Permanent(fmt.Errorf("%w: %v", orderdomain.ErrInvalidPayload, err))
	}

	m, err := h.merchants.EnsureInstalled(ctx, delivery.ShopDomain)
	if err != nil {
		if err == merchantdomain.ErrInvalidShop {
			return webhookdomain.Permanent(err)
		}
		return err
	}

	req := orderdomain.IngestRequest{
		MerchantID:      m.ID,
		PlatformOrderID: payload.ID,
		OrderNumber:     payload.OrderNumber.String(),
		CustomerName:    payload.Customer.fullName(),
		ShippingAddress: payload.ShippingAddress,
		Currency:        payload.Currency,
		TotalPrice:      payload.TotalPrice,
		FinancialStatus: payload.FinancialStatus,
		PlacedAt:        payload.CreatedAt,
	}
	for _, li := range payload.LineItems {
		req.LineItems = append(req.LineItems, orderdomain.IngestLineItem{
			Title:     li.Title,
			Quantity:  li.Quantity,
			UnitPrice: li.Price,
		})
	}

	_, _, err = h.orders.Ingest(ctx, req)
	if err == nil {
		return nil
	}
	if err == orderdomain.ErrInvalidPayload {
		// A malformed order stays malformed on redelivery.
		return webhookdomain.Permanent(err)
	}
	return err
}

func (c *customerPayload) fullName() string {
	if c == nil {
		return ""
	}
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}
