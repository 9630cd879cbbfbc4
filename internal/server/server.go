// Package server orchestrates the privileged bus daemon: COMMS client, blob
// store, registries, and the HTTP health endpoint.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/quiltmail/contextbus/internal/config"
	"github.com/quiltmail/contextbus/pkg/blobstore"
	"github.com/quiltmail/contextbus/pkg/bus"
	"github.com/quiltmail/contextbus/pkg/catalog"
	"github.com/quiltmail/contextbus/pkg/direct"
	"github.com/quiltmail/contextbus/pkg/envelope"
)

const logPrefix = "server:server"

// Options carries collaborators injected by the embedding application. The
// daemon runs without them; the matching bus capabilities then report a
// permanent failure to callers.
type Options struct {
	Auth   bus.AuthFlow
	Chunks bus.ChunkFetcher
}

// HealthOutput is the /health response body.
type HealthOutput struct {
	Status    string       `json:"status"`
	Checks    HealthChecks `json:"checks"`
	Timestamp string       `json:"timestamp"`
}

// HealthChecks itemizes subsystem health.
type HealthChecks struct {
	Comms bool `json:"comms"`
	Blobs bool `json:"blobs"`
}

// Run starts the daemon, blocks until shutdown signal, then cleans up.
func Run(opts Options) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("%s - failed to load config: %w", logPrefix, err)
	}
	if err := cfg.ValidateForServe(); err != nil {
		return err
	}

	var logLevel slog.Level
	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))

	slog.Info(fmt.Sprintf("%s - Starting contextbus daemon", logPrefix))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Step 1: Connect to COMMS
	nc, err := direct.Connect(cfg.COMMSURL, cfg.COMMSName)
	if err != nil {
		return fmt.Errorf("%s - failed to connect to COMMS: %w", logPrefix, err)
	}

	// Step 2: Pick the blob store
	var blobs blobstore.Store
	var pgBlobs *blobstore.Postgres
	if cfg.DatabaseURL != "" {
		pgBlobs, err = blobstore.NewPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			nc.Close()
			return fmt.Errorf("%s - failed to connect blob store: %w", logPrefix, err)
		}
		if err := pgBlobs.EnsureSchema(ctx); err != nil {
			pgBlobs.Close()
			nc.Close()
			return err
		}
		blobs = pgBlobs
		slog.Info(fmt.Sprintf("%s - Blob handles backed by Postgres", logPrefix))
	} else {
		blobs = blobstore.NewMemory()
		slog.Info(fmt.Sprintf("%s - Blob handles backed by process memory", logPrefix))
	}

	// Step 3: Build the privileged bus endpoint and start serving
	b, err := bus.New(bus.Params{
		Privileged:    true,
		Conn:          nc,
		SubjectPrefix: cfg.SubjectPrefix,
		MaxPayload:    cfg.MaxPayload,
		DedupWindow:   cfg.DedupWindow,
		Blobs:         blobs,
		Auth:          opts.Auth,
		Chunks:        opts.Chunks,
	})
	if err != nil {
		if pgBlobs != nil {
			pgBlobs.Close()
		}
		nc.Close()
		return fmt.Errorf("%s - failed to build bus: %w", logPrefix, err)
	}
	stopServe, err := b.Serve(ctx)
	if err != nil {
		if pgBlobs != nil {
			pgBlobs.Close()
		}
		nc.Close()
		return fmt.Errorf("%s - failed to serve bus: %w", logPrefix, err)
	}

	// Step 4: HTTP health server
	health := func(ctx context.Context) *HealthOutput {
		out := &HealthOutput{
			Status:    "healthy",
			Checks:    HealthChecks{Comms: nc.IsConnected(), Blobs: true},
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		}
		if pgBlobs != nil {
			out.Checks.Blobs = pgBlobs.Ping(ctx) == nil
		}
		if !out.Checks.Comms || !out.Checks.Blobs {
			out.Status = "unhealthy"
		}
		return out
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", handleHome(b, health, cfg))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		healthCtx, cancel := context.WithTimeout(r.Context(), cfg.HealthCheckTimeout)
		defer cancel()
		h := health(healthCtx)
		w.Header().Set("Content-Type", "application/json")
		if h.Status != "healthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(h)
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ready"})
	})

	httpAddr := fmt.Sprintf(":%d", cfg.HTTPPort)
	httpServer := &http.Server{Addr: httpAddr, Handler: mux}
	go func() {
		slog.Info(fmt.Sprintf("%s - HTTP health server listening on %s", logPrefix, httpAddr))
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error(fmt.Sprintf("%s - HTTP server error: %v", logPrefix, err))
		}
	}()

	slog.Info(fmt.Sprintf("%s - Contextbus daemon is ready", logPrefix))

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info(fmt.Sprintf("%s - Received signal %s, shutting down", logPrefix, sig))

	// Graceful shutdown
	stopServe()
	httpServer.Shutdown(ctx)
	nc.Drain()
	if pgBlobs != nil {
		pgBlobs.Close()
	}

	slog.Info(fmt.Sprintf("%s - Shutdown complete", logPrefix))
	return nil
}

// homePageTemplate is the HTML for the daemon status page.
const homePageTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>Contextbus</title>
  <style>
    body { background: #fff; color: #000; font-family: system-ui, sans-serif; margin: 0; padding: 2rem; line-height: 1.5; }
    h1, h2 { color: #0066cc; }
    .status-healthy { color: #0066cc; font-weight: bold; }
    .status-unhealthy { color: #cc0000; font-weight: bold; }
    table { border-collapse: collapse; max-width: 700px; margin-top: 0.5rem; }
    th, td { text-align: left; padding: 0.4rem 0.75rem; border: 1px solid #ccc; }
    th { background: #f0f4f8; color: #0066cc; }
    .meta { color: #333; font-size: 0.9rem; }
  </style>
</head>
<body>
  <h1>Contextbus</h1>
  <p class="meta">Privileged message-bus daemon.</p>

  <h2>Health</h2>
  <p>Status: <span class="status-{{.Health.Status}}">{{.Health.Status}}</span></p>
  <p>COMMS: {{if .Health.Checks.Comms}}OK{{else}}Failed{{end}} &middot; Blobs: {{if .Health.Checks.Blobs}}OK{{else}}Failed{{end}}</p>
  <p>Timestamp: {{.Health.Timestamp}}</p>

  <h2>Wire contract</h2>
  <table>
    <thead><tr><th>Message</th><th>Min protocol</th><th>Responds</th><th>Handled here</th></tr></thead>
    <tbody>
      {{range .Entries}}
      <tr><td>{{.Name}}</td><td>{{.MinProto}}</td><td>{{.Responds}}</td><td>{{.Handled}}</td></tr>
      {{end}}
    </tbody>
  </table>

  <p class="meta">Protocol version {{.Proto}} &middot; subject prefix "{{.Prefix}}"</p>
</body>
</html>
`

type homeEntry struct {
	Name     string
	MinProto string
	Responds bool
	Handled  bool
}

type homeData struct {
	Health  *HealthOutput
	Entries []homeEntry
	Proto   string
	Prefix  string
}

// handleHome returns an HTTP handler for the daemon status page.
func handleHome(b *bus.Bus, health func(context.Context) *HealthOutput, cfg *config.Config) http.HandlerFunc {
	tmpl := template.Must(template.New("home").Parse(homePageTemplate))
	names := []string{
		catalog.NamePing, catalog.NameSetStyle, catalog.NameAddClass, catalog.NameRemoveClass,
		catalog.NameAuthDialog, catalog.NameCredentialGet, catalog.NameCredentialSet, catalog.NameAttachmentChunk,
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), cfg.HealthCheckTimeout)
		defer cancel()

		data := homeData{
			Health: health(ctx),
			Proto:  envelope.ProtocolVersion,
			Prefix: cfg.SubjectPrefix,
		}
		for _, name := range names {
			e, _ := b.Router().Catalog().Lookup(name)
			data.Entries = append(data.Entries, homeEntry{
				Name:     e.Name,
				MinProto: e.MinProto,
				Responds: e.Responds,
				Handled:  b.Router().Handles(name),
			})
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := tmpl.Execute(w, data); err != nil {
			slog.Error(fmt.Sprintf("%s - home template execute: %v", logPrefix, err))
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
	}
}
