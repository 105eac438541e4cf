package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/1212falcon1212/shopfiy-saas-sub001/internal/clock"
	orderdomain "github.com/1212falcon1212/shopfiy-saas-sub001/internal/order/domain"
	webhookdomain "github.com/1212falcon1212/shopfiy-saas-sub001/internal/webhook/domain"
	"github.com/1212falcon1212/shopfiy-saas-sub001/pkg/db"
	"github.com/1212falcon1212/shopfiy-saas-sub001/pkg/money"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// TopicMaterializeInvoice is the internal queue topic used to schedule
// invoice generation off the ingest path.
const TopicMaterializeInvoice = "invoices/materialize"

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	repo       orderdomain.Repository
	dispatcher webhookdomain.Dispatcher
}

type ServiceParam struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Repo       orderdomain.Repository
	Dispatcher webhookdomain.Dispatcher
}

func NewService(p ServiceParam) orderdomain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("order.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		repo:       p.Repo,
		dispatcher: p.Dispatcher,
	}
}

func (s *Service) Ingest(ctx context.Context, req orderdomain.IngestRequest) (*orderdomain.Order, bool, error) {
	if err := validateIngest(req); err != nil {
		return nil, false, err
	}

	var (
		order   *orderdomain.Order
		created bool
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.repo.FindByPlatformIDForUpdate(ctx, tx, req.MerchantID, req.PlatformOrderID)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		if existing == nil {
			order = &orderdomain.Order{
				ID:              s.genID.Generate(),
				MerchantID:      req.MerchantID,
				PlatformOrderID: req.PlatformOrderID,
				CreatedAt:       now,
			}
			applyIngest(order, req, now)
			if err := s.repo.Insert(ctx, tx, order); err != nil {
				if !db.IsDuplicateKeyErr(err) {
					return err
				}
				// Lost the insert race to a concurrent redelivery;
				// fall through to the update path.
				existing, err = s.repo.FindByPlatformIDForUpdate(ctx, tx, req.MerchantID, req.PlatformOrderID)
				if err != nil {
					return err
				}
				if existing == nil {
					return fmt.Errorf("order vanished after duplicate insert: %d", req.PlatformOrderID)
				}
			} else {
				created = true
			}
		}

		if !created {
			order = existing
			applyIngest(order, req, now)
			if err := s.repo.Update(ctx, tx, order); err != nil {
				return err
			}
		}

		return s.repo.ReplaceLineItems(ctx, tx, order.ID, s.buildLineItems(order.ID, req, now))
	})
	if err != nil {
		return nil, false, err
	}

	if created {
		if err := s.scheduleInvoice(ctx, order); err != nil {
			// The order is committed; invoice generation rides the
			// queue's own retries once enqueued, but an enqueue
			// failure here surfaces to the caller for redelivery.
			return nil, false, err
		}
	}

	s.log.Info("order ingested",
		zap.Int64("platform_order_id", req.PlatformOrderID),
		zap.Bool("created", created),
	)
	return order, created, nil
}

func (s *Service) GetByID(ctx context.Context, merchantID, id snowflake.ID) (*orderdomain.Order, error) {
	o, err := s.repo.FindByID(ctx, s.db, merchantID, id)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, orderdomain.ErrOrderNotFound
	}
	return o, nil
}

func (s *Service) GetByPlatformID(ctx context.Context, merchantID snowflake.ID, platformOrderID int64) (*orderdomain.Order, error) {
	o, err := s.repo.FindByPlatformID(ctx, s.db, merchantID, platformOrderID)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, orderdomain.ErrOrderNotFound
	}
	return o, nil
}

func (s *Service) ListLineItems(ctx context.Context, orderID snowflake.ID) ([]orderdomain.OrderLineItem, error) {
	return s.repo.FindLineItems(ctx, s.db, orderID)
}

func (s *Service) List(ctx context.Context, merchantID snowflake.ID, limit int) ([]orderdomain.Order, error) {
	return s.repo.List(ctx, s.db, merchantID, limit)
}

// scheduleInvoice enqueues materialization through the same pipeline
// webhooks ride. The delivery id is derived from the order, so a
// re-ingest can never produce a second invoice job that survives
// dedup.
func (s *Service) scheduleInvoice(ctx context.Context, order *orderdomain.Order) error {
	payload, err := json.Marshal(map[string]string{
		"order_id": order.ID.String(),
	})
	if err != nil {
		return err
	}
	return s.dispatcher.Dispatch(ctx, webhookdomain.Delivery{
		Topic:      TopicMaterializeInvoice,
		DeliveryID: fmt.Sprintf("order:%d:%d", order.MerchantID, order.PlatformOrderID),
		Payload:    payload,
		ReceivedAt: s.clock.Now(),
	})
}

func (s *Service) buildLineItems(orderID snowflake.ID, req orderdomain.IngestRequest, now time.Time) []orderdomain.OrderLineItem {
	items := make([]orderdomain.OrderLineItem, 0, len(req.LineItems))
	for i, li := range req.LineItems {
		items = append(items, orderdomain.OrderLineItem{
			ID:        s.genID.Generate(),
			OrderID:   orderID,
			Position:  i + 1,
			Title:     li.Title,
			Quantity:  li.Quantity,
			UnitPrice: li.UnitPrice,
			CreatedAt: now,
		})
	}
	return items
}

func applyIngest(order *orderdomain.Order, req orderdomain.IngestRequest, now time.Time) {
	order.OrderNumber = req.OrderNumber
	order.CustomerName = req.CustomerName
	if req.ShippingAddress != nil {
		order.ShippingAddress = datatypes.JSONMap(req.ShippingAddress)
	}
	order.Currency = strings.ToUpper(req.Currency)
	order.TotalPrice = req.TotalPrice
	order.FinancialStatus = req.FinancialStatus
	order.PlacedAt = req.PlacedAt
	order.UpdatedAt = now
}

func validateIngest(req orderdomain.IngestRequest) error {
	if req.MerchantID == 0 || req.PlatformOrderID <= 0 {
		return orderdomain.ErrInvalidPayload
	}
	if !money.IsRecognizedCurrency(strings.ToUpper(strings.TrimSpace(req.Currency))) {
		return orderdomain.ErrInvalidPayload
	}
	if _, err := money.Parse(req.TotalPrice); err != nil {
		return orderdomain.ErrInvalidPayload
	}
	for _, li := range req.LineItems {
		if strings.TrimSpace(li.Title) == "" || li.Quantity <= 0 {
			return orderdomain.ErrInvalidPayload
		}
		if _, err := money.Parse(li.UnitPrice); err != nil {
			return orderdomain.ErrInvalidPayload
		}
	}
	return nil
}
