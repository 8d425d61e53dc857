package main

import (
	"os"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
	"golang.org/x/exp/slog"
	"gorm.io/gorm"
)

type Context struct {
	Debug  bool
	Logger *slog.Logger

	gorm.Config
	Dialector gorm.Dialector
}

var cli struct {
	Debug bool   `help:"Enable debug mode." env:"SOCIALLY_DEBUG"`
	DSN   string `help:"data source name" default:"socially.db" env:"SOCIALLY_DSN"`

	Serve         ServeCmd         `cmd:"" help:"Serve the REST API."`
	Sync          SyncCmd          `cmd:"" help:"Drain the pending action queue against a remote API."`
	AutoMigrate   AutoMigrateCmd   `cmd:"" help:"Create or update the database schema."`
	CreateAccount CreateAccountCmd `cmd:"" help:"Create a new user account."`
	PurgeActions  PurgeActionsCmd  `cmd:"" help:"Delete pending actions that have exhausted their retries."`
	Housekeeping  HouseKeepingCmd  `cmd:"" help:"Remove expired and orphaned rows."`
}

func main() {
	godotenv.Load()
	ctx := kong.Parse(&cli)

	level := slog.LevelInfo
	if cli.Debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	err := ctx.Run(&Context{
		Debug:     cli.Debug,
		Logger:    logger,
		Dialector: newDialector(cli.DSN),
	})
	ctx.FatalIfErrorf(err)
}
