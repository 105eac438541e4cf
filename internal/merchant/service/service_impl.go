package service

import (
	"context"
	"strings"

	"github.com/1212falcon1212/shopfiy-saas-sub001/internal/clock"
	merchantdomain "github.com/1212falcon1212/shopfiy-saas-sub001/internal/merchant/domain"
	pkgdb "github.com/1212falcon1212/shopfiy-saas-sub001/pkg/db"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  merchantdomain.Repository
}

type ServiceParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  merchantdomain.Repository
}

func NewService(p ServiceParam) merchantdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("merchant.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) EnsureInstalled(ctx context.Context, shopDomain string) (*merchantdomain.Merchant, error) {
	shopDomain = normalizeShopDomain(shopDomain)
	if shopDomain == "" {
		return nil, merchantdomain.ErrInvalidShop
	}

	existing, err := s.repo.FindByDomain(ctx, s.db, shopDomain)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if existing.Status == merchantdomain.MerchantStatusUninstalled {
			now := s.clock.Now()
			existing.Status = merchantdomain.MerchantStatusActive
			existing.InstalledAt = now
			existing.UninstalledAt = nil
			existing.UpdatedAt = now
			if err := s.repo.Update(ctx, s.db, existing); err != nil {
				return nil, err
			}
			s.log.Info("merchant reinstalled", zap.String("shop_domain", shopDomain))
		}
		return existing, nil
	}

	now := s.clock.Now()
	m := &merchantdomain.Merchant{
		ID:          s.genID.Generate(),
		ShopDomain:  shopDomain,
		Status:      merchantdomain.MerchantStatusActive,
		InstalledAt: now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Insert(ctx, s.db, m); err != nil {
		// Two deliveries for a brand-new shop can race the insert.
		if pkgdb.IsDuplicateKeyErr(err) {
			return s.repo.FindByDomain(ctx, s.db, shopDomain)
		}
		return nil, err
	}
	s.log.Info("merchant registered", zap.String("shop_domain", shopDomain))
	return m, nil
}

func (s *Service) GetByDomain(ctx context.Context, shopDomain string) (*merchantdomain.Merchant, error) {
	m, err := s.repo.FindByDomain(ctx, s.db, normalizeShopDomain(shopDomain))
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, merchantdomain.ErrMerchantNotFound
	}
	return m, nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (*merchantdomain.Merchant, error) {
	m, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, merchantdomain.ErrMerchantNotFound
	}
	return m, nil
}

func (s *Service) MarkUninstalled(ctx context.Context, shopDomain string) error {
	m, err := s.repo.FindByDomain(ctx, s.db, normalizeShopDomain(shopDomain))
	if err != nil {
		return err
	}
	if m == nil {
		return merchantdomain.ErrMerchantNotFound
	}
	if m.Status == merchantdomain.MerchantStatusUninstalled {
		return nil
	}

	now := s.clock.Now()
	m.Status = merchantdomain.MerchantStatusUninstalled
	m.UninstalledAt = &now
	m.UpdatedAt = now
	if err := s.repo.Update(ctx, s.db, m); err != nil {
		return err
	}
	s.log.Info("merchant uninstalled", zap.String("shop_domain", shopDomain))
	return nil
}

func normalizeShopDomain(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}
