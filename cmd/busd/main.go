// Package main is the entrypoint for the privileged bus daemon (binary name "busd").
package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/quiltmail/contextbus/internal/config"
	"github.com/quiltmail/contextbus/internal/server"
	"github.com/quiltmail/contextbus/pkg/blobstore"
)

const usage = `Usage: busd [command]
       busd serve        Start the privileged bus daemon (COMMS, HTTP health).
       busd ensure-db    Create the blob table if missing. Requires DATABASE_URL.

Commands:
  serve       (default) Start the privileged bus daemon.
  ensure-db   Prepare the Postgres blob store schema only.

Environment: COMMS_URL (default nats://127.0.0.1:4222), BUS_SUBJECT_PREFIX,
BUS_DEDUP_WINDOW, BUS_MAX_PAYLOAD, DATABASE_URL (optional), HTTP_PORT,
HEALTH_CHECK_TIMEOUT, LOG_LEVEL.
`

func main() {
	args := os.Args[1:]
	cmd := ""
	if len(args) > 0 && args[0] != "" {
		cmd = args[0]
	}

	switch cmd {
	case "ensure-db":
		if err := runEnsureDB(); err != nil {
			log.Fatalf("busd ensure-db: %v", err)
		}
		return
	case "help", "-h", "--help":
		fmt.Print(usage)
		return
	case "serve", "":
		// serve (explicit or default)
		break
	default:
		fmt.Fprintf(os.Stderr, "Unknown command %q.\n%s", cmd, usage)
		os.Exit(1)
	}

	if err := server.Run(server.Options{}); err != nil {
		log.Fatalf("busd: %v", err)
	}
}

func runEnsureDB() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.ValidateForDB(); err != nil {
		return err
	}
	ctx := context.Background()
	store, err := blobstore.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer store.Close()

	if err := store.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	fmt.Println("Blob store schema is ready.")
	return nil
}
