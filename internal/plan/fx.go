package plan

import (
	"github.com/1212falcon1212/shopfiy-saas-sub001/internal/plan/repository"
	"github.com/1212falcon1212/shopfiy-saas-sub001/internal/plan/service"
	"go.uber.org/fx"
)

var Module = fx.Module("plan.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
