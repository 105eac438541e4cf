package invoice

import (
	"github.com/1212falcon1212/shopfiy-saas-sub001/internal/invoice/repository"
	"github.com/1212falcon1212/shopfiy-saas-sub001/internal/invoice/service"
	"go.uber.org/fx"
)

var Module = fx.Module("invoice.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
	fx.Provide(
		fx.Annotate(
			service.NewMaterializeHandler,
			fx.ResultTags(`group:"webhook.handlers"`),
		),
	),
)
