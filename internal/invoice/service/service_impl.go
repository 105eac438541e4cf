package service

import (
	"context"
	"fmt"

	"github.com/1212falcon1212/shopfiy-saas-sub001/internal/clock"
	invoicedomain "github.com/1212falcon1212/shopfiy-saas-sub001/internal/invoice/domain"
	orderdomain "github.com/1212falcon1212/shopfiy-saas-sub001/internal/order/domain"
	pkgdb "github.com/1212falcon1212/shopfiy-saas-sub001/pkg/db"
	"github.com/1212falcon1212/shopfiy-saas-sub001/pkg/money"
	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db     *gorm.DB
	log    *zap.Logger
	genID  *snowflake.Node
	clock  clock.Clock
	repo   invoicedomain.Repository
	orders orderdomain.Repository
}

type ServiceParam struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	GenID  *snowflake.Node
	Clock  clock.Clock
	Repo   invoicedomain.Repository
	Orders orderdomain.Repository
}

func NewService(p ServiceParam) invoicedomain.Service {
	return &Service{
		db:     p.DB,
		log:    p.Log.Named("invoice.service"),
		genID:  p.GenID,
		clock:  p.Clock,
		repo:   p.Repo,
		orders: p.Orders,
	}
}

func (s *Service) Materialize(ctx context.Context, orderID snowflake.ID) (*invoicedomain.Invoice, error) {
	existing, err := s.repo.FindLatestByOrder(ctx, s.db, orderID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}
	return s.snapshot(ctx, orderID)
}

func (s *Service) Regenerate(ctx context.Context, orderID snowflake.ID) (*invoicedomain.Invoice, error) {
	return s.snapshot(ctx, orderID)
}

// snapshot copies the order's current lines into a new immutable
// invoice. The total is the order's platform-reported total, not a sum
// over the copied lines.
func (s *Service) snapshot(ctx context.Context, orderID snowflake.ID) (*invoicedomain.Invoice, error) {
	order, err := s.orders.FindByOrderID(ctx, s.db, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, invoicedomain.ErrOrderNotFound
	}

	items, err := s.orders.FindLineItems(ctx, s.db, orderID)
	if err != nil {
		return nil, err
	}

	seq, err := s.repo.CountForOrder(ctx, s.db, orderID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	inv := &invoicedomain.Invoice{
		ID:          s.genID.Generate(),
		MerchantID:  order.MerchantID,
		OrderID:     order.ID,
		Number:      fmt.Sprintf("INV-%d-%d", order.PlatformOrderID, seq+1),
		Currency:    order.Currency,
		Total:       order.TotalPrice,
		GeneratedAt: now,
		CreatedAt:   now,
	}

	lines := make([]invoicedomain.InvoiceLine, 0, len(items))
	for _, item := range items {
		amount := item.UnitPrice
		if unit, perr := money.Parse(item.UnitPrice); perr == nil {
			amount = money.Format(unit.Mul(decimal.NewFromInt(int64(item.Quantity))))
		}
		lines = append(lines, invoicedomain.InvoiceLine{
			ID:        s.genID.Generate(),
			InvoiceID: inv.ID,
			Position:  item.Position,
			Title:     item.Title,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			Amount:    amount,
			CreatedAt: now,
		})
	}

	if err := s.repo.Insert(ctx, s.db, inv, lines); err != nil {
		if pkgdb.IsDuplicateKeyErr(err) {
			// A concurrent materialization took this sequence number;
			// it produced the snapshot we wanted.
			return s.repo.FindLatestByOrder(ctx, s.db, orderID)
		}
		return nil, err
	}

	s.log.Info("invoice materialized",
		zap.String("number", inv.Number),
		zap.Int64("platform_order_id", order.PlatformOrderID),
	)
	return inv, nil
}

func (s *Service) LatestForOrder(ctx context.Context, merchantID, orderID snowflake.ID) (*invoicedomain.InvoiceWithLines, error) {
	inv, err := s.repo.FindLatestByOrder(ctx, s.db, orderID)
	if err != nil {
		return nil, err
	}
	if inv == nil || inv.MerchantID != merchantID {
		return nil, invoicedomain.ErrInvoiceNotFound
	}
	lines, err := s.repo.FindLines(ctx, s.db, inv.ID)
	if err != nil {
		return nil, err
	}
	return &invoicedomain.InvoiceWithLines{Invoice: *inv, Lines: lines}, nil
}

func (s *Service) ListForOrder(ctx context.Context, merchantID, orderID snowflake.ID) ([]invoicedomain.Invoice, error) {
	invs, err := s.repo.ListByOrder(ctx, s.db, orderID)
	if err != nil {
		return nil, err
	}
	out := invs[:0]
	for _, inv := range invs {
		if inv.MerchantID == merchantID {
			out = append(out, inv)
		}
	}
	return out, nil
}
