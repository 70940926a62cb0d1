package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"flyvemdm/backend/global"
	"flyvemdm/backend/initialize"
	"flyvemdm/backend/server"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the yaml configuration file")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := initialize.Build(ctx, *configPath)
	if err != nil {
		global.Logger.Fatal().Err(err).Msg("cannot start backend")
	}
	defer app.Close()
	app.Start(ctx)

	if err := server.RunHTTPServer(ctx, app.Cfg.Host, app.Cfg.Port, app.Router); err != nil {
		global.Logger.Error().Err(err).Msg("http server stopped")
	}
	global.Logger.Info().Msg("backend stopped")
}
