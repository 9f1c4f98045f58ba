package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/stampkit/stampkit/internal/clock"
	"github.com/stampkit/stampkit/internal/config"
	"github.com/stampkit/stampkit/internal/migration"
	"github.com/stampkit/stampkit/internal/observability"
	"github.com/stampkit/stampkit/internal/scheduler"
	"github.com/stampkit/stampkit/internal/server"
	"github.com/stampkit/stampkit/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(registerSnowflake),
		db.Module,
		clock.Module,
		migration.Module,
		server.Module,
		scheduler.Module,
	)
	app.Run()
}

func registerSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
