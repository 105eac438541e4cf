package main

import (
	"github.com/1212falcon1212/shopfiy-saas-sub001/internal/billing"
	"github.com/1212falcon1212/shopfiy-saas-sub001/internal/clock"
	"github.com/1212falcon1212/shopfiy-saas-sub001/internal/config"
	"github.com/1212falcon1212/shopfiy-saas-sub001/internal/invoice"
	"github.com/1212falcon1212/shopfiy-saas-sub001/internal/merchant"
	"github.com/1212falcon1212/shopfiy-saas-sub001/internal/migration"
	"github.com/1212falcon1212/shopfiy-saas-sub001/internal/observability"
	"github.com/1212falcon1212/shopfiy-saas-sub001/internal/order"
	"github.com/1212falcon1212/shopfiy-saas-sub001/internal/plan"
	"github.com/1212falcon1212/shopfiy-saas-sub001/internal/scheduler"
	"github.com/1212falcon1212/shopfiy-saas-sub001/internal/server"
	"github.com/1212falcon1212/shopfiy-saas-sub001/pkg/db"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		// Functional domains
		merchant.Module,
		plan.Module,
		order.Module,
		invoice.Module,
		billing.Module,

		// HTTP surface plus the webhook pipeline behind it
		server.Module,
		scheduler.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
