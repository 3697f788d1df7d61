package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/pricerules/internal/clock"
	"github.com/smallbiznis/pricerules/internal/config"
	"github.com/smallbiznis/pricerules/internal/migration"
	"github.com/smallbiznis/pricerules/internal/observability"
	"github.com/smallbiznis/pricerules/internal/redisclient"
	"github.com/smallbiznis/pricerules/internal/scheduler"
	"github.com/smallbiznis/pricerules/internal/seed"
	"github.com/smallbiznis/pricerules/internal/server"
	"github.com/smallbiznis/pricerules/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		redisclient.Module,
		migration.Module,

		// HTTP API and the price rule domain it serves
		server.Module,

		// Background work
		scheduler.Module,
		seed.Module,
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
