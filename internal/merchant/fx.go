package merchant

import (
	"github.com/1212falcon1212/shopfiy-saas-sub001/internal/merchant/repository"
	"github.com/1212falcon1212/shopfiy-saas-sub001/internal/merchant/service"
	"go.uber.org/fx"
)

var Module = fx.Module("merchant.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
