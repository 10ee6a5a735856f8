package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/aquamarinepk/aqm"

	"github.com/comandaclub/comanda/internal/app"
)

const appNamespace = "COMANDA"

func main() {
	config, err := aqm.LoadConfig(appNamespace, os.Args[1:])
	if err != nil {
		log.Fatalf("%s(%s) cannot setup: %v", app.AppName, app.AppVersion, err)
	}

	logLevel, _ := config.GetString("log.level")
	logger := aqm.NewLogger(logLevel)

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT,
	)
	defer stop()

	a, err := app.New(config, logger)
	if err != nil {
		log.Fatalf("%s(%s) cannot create app: %v", app.AppName, app.AppVersion, err)
	}

	if err := a.Initialize(ctx); err != nil {
		log.Fatalf("%s(%s) cannot initialize: %v", app.AppName, app.AppVersion, err)
	}

	if err := a.Run(ctx); err != nil {
		log.Fatalf("%s(%s) stopped: %v", app.AppName, app.AppVersion, err)
	}
}
