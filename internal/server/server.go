// Package server exposes the HTTP surface: the platform webhook
// endpoint and the read/write APIs the merchant dashboard consumes.
package server

import (
	"context"
	"net/http"
	"time"

	billingdomain "github.com/1212falcon1212/shopfiy-saas-sub001/internal/billing/domain"
	"github.com/1212falcon1212/shopfiy-saas-sub001/internal/clock"
	"github.com/1212falcon1212/shopfiy-saas-sub001/internal/config"
	invoicedomain "github.com/1212falcon1212/shopfiy-saas-sub001/internal/invoice/domain"
	merchantdomain "github.com/1212falcon1212/shopfiy-saas-sub001/internal/merchant/domain"
	"github.com/1212falcon1212/shopfiy-saas-sub001/internal/observability"
	obsmiddleware "github.com/1212falcon1212/shopfiy-saas-sub001/internal/observability/logger"
	obsmetrics "github.com/1212falcon1212/shopfiy-saas-sub001/internal/observability/metrics"
	orderdomain "github.com/1212falcon1212/shopfiy-saas-sub001/internal/order/domain"
	plandomain "github.com/1212falcon1212/shopfiy-saas-sub001/internal/plan/domain"
	"github.com/1212falcon1212/shopfiy-saas-sub001/internal/webhook"
	webhookdomain "github.com/1212falcon1212/shopfiy-saas-sub001/internal/webhook/domain"
	"github.com/1212falcon1212/shopfiy-saas-sub001/internal/webhook/signature"
	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("server",
	webhook.Module,
	fx.Provide(NewEngine),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, m *obsmetrics.Metrics) *gin.Engine {
	if !obsCfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(m))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine      *gin.Engine
	cfg         config.Config
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	verifier    *signature.Verifier
	dispatcher  webhookdomain.Dispatcher
	webhookRepo webhookdomain.Repository
	merchantSvc merchantdomain.Service
	planSvc     plandomain.Service
	billingSvc  billingdomain.Service
	orderSvc    orderdomain.Service
	invoiceSvc  invoicedomain.Service
	metrics     *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin         *gin.Engine
	Cfg         config.Config
	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Verifier    *signature.Verifier
	Dispatcher  webhookdomain.Dispatcher
	WebhookRepo webhookdomain.Repository
	MerchantSvc merchantdomain.Service
	PlanSvc     plandomain.Service
	BillingSvc  billingdomain.Service
	OrderSvc    orderdomain.Service
	InvoiceSvc  invoicedomain.Service
	Metrics     *obsmetrics.Metrics
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:      p.Gin,
		cfg:         p.Cfg,
		db:          p.DB,
		log:         p.Log.Named("server"),
		genID:       p.GenID,
		clock:       p.Clock,
		verifier:    p.Verifier,
		dispatcher:  p.Dispatcher,
		webhookRepo: p.WebhookRepo,
		merchantSvc: p.MerchantSvc,
		planSvc:     p.PlanSvc,
		billingSvc:  p.BillingSvc,
		orderSvc:    p.OrderSvc,
		invoiceSvc:  p.InvoiceSvc,
		metrics:     p.Metrics,
	}
	svc.registerWebhookRoutes()
	svc.registerAPIRoutes()
	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerWebhookRoutes() {
	s.engine.POST("/webhooks/platform", s.HandlePlatformWebhook)
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")
	api.GET("/plans", s.ListPlans)

	merchant := api.Group("")
	merchant.Use(s.MerchantContext())
	merchant.POST("/subscriptions", s.SelectPlan)
	merchant.GET("/subscriptions/current", s.CurrentSubscription)
	merchant.POST("/subscriptions/:id/cancel", s.CancelSubscription)
	merchant.POST("/usage", s.RecordUsage)
	merchant.GET("/billing/events", s.ListBillingEvents)
	merchant.GET("/orders", s.ListOrders)
	merchant.GET("/orders/:id/invoice", s.GetOrderInvoice)
	merchant.POST("/orders/:id/invoice/regenerate", s.RegenerateOrderInvoice)

	// Gateway redirects the merchant's browser here; no merchant
	// header, the reference identifies the subscription.
	api.GET("/subscriptions/callback", s.GatewayCallback)

	ops := api.Group("/ops")
	ops.GET("/deadletters", s.ListDeadLetters)
	ops.POST("/deadletters/:id/replay", s.ReplayDeadLetter)
}
