package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/threatlens/threatlens/internal/alerts"
	"github.com/threatlens/threatlens/internal/api"
	"github.com/threatlens/threatlens/internal/auth"
	"github.com/threatlens/threatlens/internal/config"
	"github.com/threatlens/threatlens/internal/iplookup"
	"github.com/threatlens/threatlens/internal/logging"
	"github.com/threatlens/threatlens/internal/store"
	"github.com/threatlens/threatlens/internal/ws"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	uiDir := flag.String("ui-dir", "", "serve the dashboard SPA static files from this directory (e.g. ui/dist); leave empty to disable")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logging.Init(cfg.Server.LogLevel, os.Getenv("ENV") == "development")
	log := logging.WithComponent("server")

	log.Info().
		Int("http_port", cfg.Server.HTTPPort).
		Str("data_dir", cfg.Server.DataDir).
		Int("webhooks", len(cfg.Server.Alerts.Webhooks)).
		Msg("threatlens-server starting")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	st, err := store.Open(cfg.Server.DataDir)
	if err != nil {
		log.Fatal().Err(err).Str("dir", cfg.Server.DataDir).Msg("opening document store failed")
	}
	defer st.Close()

	lookup, err := iplookup.New(cfg.Server.Lookup)
	if err != nil {
		log.Fatal().Err(err).Msg("building IP lookup client failed")
	}

	// Alert engine with live WebSocket fan-out.
	engine := alerts.New(st, cfg.Server.Alerts)
	hub := ws.New()
	engine.SetPublisher(hub)
	go hub.Run(ctx)

	// Hot-reload webhook targets on config file changes.
	go func() {
		err := config.Watch(ctx, *configPath, func(updated *config.Config) {
			engine.SetWebhooks(updated.Server.Alerts.Webhooks)
		})
		if err != nil {
			log.Warn().Err(err).Msg("config watcher unavailable")
		}
	}()

	authn := auth.New(cfg.Server.Auth.Secret(), cfg.Server.Auth.TokenTTL)

	httpMux := http.NewServeMux()
	httpMux.Handle("/api/", api.New(st, engine, authn, lookup, hub, cfg.Server.Alerts.DefaultCooldownMinutes))
	httpMux.Handle("/ws/alerts", hub)
	httpMux.Handle("/metrics", promhttp.Handler())

	// Optional: serve the pre-built dashboard SPA from a local directory.
	// The "/" catch-all serves index.html for any unknown path (SPA routing).
	if *uiDir != "" {
		fs := http.FileServer(http.Dir(*uiDir))
		httpMux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
			// SPA fallback: if the requested file doesn't exist, serve index.html.
			path := *uiDir + r.URL.Path
			if _, err := os.Stat(path); os.IsNotExist(err) {
				http.ServeFile(w, r, *uiDir+"/index.html")
				return
			}
			fs.ServeHTTP(w, r)
		})
		log.Info().Str("dir", *uiDir).Msg("serving UI static files")
	}

	httpSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler: httpMux,
	}
	go func() {
		log.Info().Int("port", cfg.Server.HTTPPort).Msg("HTTP server listening")
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("HTTP server stopped")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("threatlens-server shutting down")
	httpSrv.Shutdown(context.Background()) //nolint:errcheck
}
