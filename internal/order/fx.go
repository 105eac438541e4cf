package order

import (
	"github.com/1212falcon1212/shopfiy-saas-sub001/internal/order/repository"
	"github.com/1212falcon1212/shopfiy-saas-sub001/internal/order/service"
	"go.uber.org/fx"
)

var Module = fx.Module("order.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
	fx.Provide(
		fx.Annotate(
			service.NewCreateHandler,
			fx.ResultTags(`group:"webhook.handlers"`),
		),
	),
)
