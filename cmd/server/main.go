package main

import (
	"context"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"codesync/internal/config"
	"codesync/internal/registry"
	"codesync/internal/relay"
	"codesync/internal/routers"
	"codesync/internal/session"
	"codesync/internal/utils"
)

// Seams for tests.
var (
	listenAndServe = http.ListenAndServe
	exitFunc       = func(err error) { log.Fatal(err) }
)

func main() {
	if err := run(context.Background()); err != nil {
		exitFunc(err)
	}
}

func run(ctx context.Context) error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger, err := utils.NewLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	reg := registry.New()
	hub := session.NewHub()
	rly := relay.New(logger, reg, hub)

	if cfg.RedisAddr != "" {
		bp := relay.NewBackplane(logger, cfg.RedisAddr)
		defer bp.Close()
		rly.AttachBackplane(bp)
		go bp.Subscribe(ctx, rly.Deliver)
	}

	r := chi.NewRouter()
	// middleware.Timeout is omitted: it would tear down long-lived
	// WebSocket connections.
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Logger,
		middleware.Recoverer,
	)

	r.Mount("/", routers.New(logger, rly, hub))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("ok")) })

	addr := ":" + cfg.Port
	logger.Infow("codesync listening", "addr", addr)
	return listenAndServe(addr, r)
}
