package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"github.com/jotflow/jotflow/internal/client/cli"
	"github.com/jotflow/jotflow/internal/client/config"
	"github.com/jotflow/jotflow/internal/logging"
)

func main() {
	cfg := config.LoadConfig()
	logger := logging.NewTextLogger(os.Stderr, slog.LevelWarn)

	app, err := cli.NewApp(context.Background(), cfg, logger)
	if err != nil {
		log.Fatalf("%v", err)
	}

	app.Run(context.Background())
}
