package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/josepablo-design/marketplace/cmd/settlement-api/app"
	"github.com/josepablo-design/marketplace/configs"
	"github.com/josepablo-design/marketplace/internal/logging"
)

func main() {
	env := os.Getenv("APP_ENV") // dev | staging | prod
	if env == "" {
		env = "dev"
	}
	dir := os.Getenv("APP_CONFIG_DIR")
	if dir == "" {
		dir = "configs"
	}

	cfg, err := configs.Load(dir, env)
	if err != nil {
		log.Fatal(err)
	}
	l := logging.Init(cfg.App.Name, cfg.App.LogFile, cfg.App.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Run(logging.WithCtx(ctx, l), cfg); err != nil {
		l.Error("settlement-api stopped", "err", err)
		os.Exit(1)
	}
}
