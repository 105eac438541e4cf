package billing

import (
	"github.com/1212falcon1212/shopfiy-saas-sub001/internal/billing/gateway"
	"github.com/1212falcon1212/shopfiy-saas-sub001/internal/billing/repository"
	"github.com/1212falcon1212/shopfiy-saas-sub001/internal/billing/service"
	"go.uber.org/fx"
)

var Module = fx.Module("billing.service",
	fx.Provide(repository.Provide),
	fx.Provide(gateway.New),
	fx.Provide(service.NewService),
	fx.Provide(
		fx.Annotate(
			service.NewUninstallHandler,
			fx.ResultTags(`group:"webhook.handlers"`),
		),
	),
)
