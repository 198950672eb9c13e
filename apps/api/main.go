package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/facturo/facturo/internal/clock"
	"github.com/facturo/facturo/internal/config"
	"github.com/facturo/facturo/internal/migrate"
	"github.com/facturo/facturo/internal/server"
	"github.com/facturo/facturo/pkg/db"
	"github.com/facturo/facturo/pkg/log"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		log.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migrate.Module,
		server.Module,
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
