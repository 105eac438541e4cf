package service

import (
	"context"

	billingdomain "github.com/1212falcon1212/shopfiy-saas-sub001/internal/billing/domain"
	merchantdomain "github.com/1212falcon1212/shopfiy-saas-sub001/internal/merchant/domain"
	webhookdomain "github.com/1212falcon1212/shopfiy-saas-sub001/internal/webhook/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const TopicAppUninstalled = "app/uninstalled"

// UninstallHandler consumes app/uninstalled deliveries: the shop
// removed the app, so its subscription ends and the merchant record
// is flagged. Order history stays for bookkeeping.
type UninstallHandler struct {
	log       *zap.Logger
	merchants merchantdomain.Service
	billing   billingdomain.Service
}

type UninstallHandlerParam struct {
	fx.In

	Log       *zap.Logger
	Merchants merchantdomain.Service
	Billing   billingdomain.Service
}

func NewUninstallHandler(p UninstallHandlerParam) webhookdomain.Handler {
	return &UninstallHandler{
		log:       p.Log.Named("billing.uninstall"),
		merchants: p.Merchants,
		billing:   p.Billing,
	}
}

func (h *UninstallHandler) Topic() string { return TopicAppUninstalled }

func (h *UninstallHandler) Handle(ctx context.Context, delivery webhookdomain.Delivery) error {
	m, err := h.merchants.GetByDomain(ctx, delivery.ShopDomain)
	if err == merchantdomain.ErrMerchantNotFound {
		// Uninstall for a shop we never saw; nothing to tear down.
		h.log.Warn("uninstall for unknown shop", zap.String("shop_domain", delivery.ShopDomain))
		return nil
	}
	if err != nil {
		return err
	}

	if err := h.billing.CancelActiveForMerchant(ctx, m.ID); err != nil {
		return err
	}
	return h.merchants.MarkUninstalled(ctx, delivery.ShopDomain)
}
