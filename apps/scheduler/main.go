package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/facturo/facturo/internal/clock"
	"github.com/facturo/facturo/internal/config"
	"github.com/facturo/facturo/internal/customer"
	"github.com/facturo/facturo/internal/invoice"
	"github.com/facturo/facturo/internal/migrate"
	"github.com/facturo/facturo/internal/recurring"
	"github.com/facturo/facturo/internal/scheduler"
	"github.com/facturo/facturo/internal/sequence"
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

		// Domain services required by the generation pass
		sequence.Module,
		customer.Module,
		invoice.Module,
		recurring.Module,

		// No server module
		scheduler.Module,
		fx.Invoke(scheduler.Run),
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
