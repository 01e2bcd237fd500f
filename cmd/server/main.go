package main

import (
	"log"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	_ "modernc.org/sqlite"

	"fitsutra/internal/adapters/data"
	emailPkg "fitsutra/internal/adapters/email"
	web "fitsutra/internal/adapters/http"
	"fitsutra/internal/adapters/identity"
	"fitsutra/internal/adapters/localstore"
	"fitsutra/internal/adapters/objectstore"
	"fitsutra/internal/adapters/realtime"
	"fitsutra/internal/application/sessionhub"
	"fitsutra/internal/application/tenantctx"
	"fitsutra/internal/config"
	"fitsutra/internal/observability"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	// Local session store, the persistence analog of browser localStorage.
	kv, err := localstore.Open(cfg.StorePath)
	if err != nil {
		log.Fatalf("failed to open local store: %v", err)
	}
	defer kv.Close()

	if cfg.SealKeyHex != "" {
		sealer, err := localstore.NewSealer(cfg.SealKeyHex)
		if err != nil {
			log.Fatalf("invalid FITSUTRA_SEAL_KEY: %v", err)
		}
		kv = kv.WithSealer(sealer)
		slog.Info("store_event", "event", "session_sealing_enabled")
	} else if cfg.Production() {
		log.Println("WARNING: FITSUTRA_SEAL_KEY unset; the persisted session is stored in the clear")
	}

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	// No client-level timeout: backend calls resolve or fail on the
	// transport's own timing, and callers carry a context.
	httpClient := &http.Client{}
	idClient := identity.NewClient(cfg.BackendURL, cfg.AnonKey, httpClient).WithMetrics(metrics)
	dataClient := data.NewClient(cfg.BackendURL, cfg.AnonKey, httpClient).WithMetrics(metrics)
	objClient := objectstore.NewClient(cfg.BackendURL, cfg.AnonKey, httpClient).WithMetrics(metrics)

	var sender emailPkg.Sender
	if cfg.ResendKey != "" {
		sender = emailPkg.NewResendSender(cfg.ResendKey, cfg.EmailFrom)
	} else {
		if cfg.Production() {
			log.Println("WARNING: FITSUTRA_RESEND_KEY unset; demo alerts will only be logged")
		}
		sender = emailPkg.NewNoopSender()
	}

	mux := web.NewMux(&web.Deps{
		Config:   cfg,
		Sessions: sessionhub.NewManager(localstore.NewSessionStore(kv), idClient),
		Identity: idClient,
		Data:     dataClient,
		Tenants:  tenantctx.NewResolver(dataClient),
		Objects:  objClient,
		Bridge:   realtime.NewBridge(cfg.BackendURL, cfg.AnonKey),
		Email:    sender,
		Metrics:  observability.Handler(registry),
	})

	log.Printf("FitSutra %s starting on %s (env=%s, backend=%s)", version, cfg.Addr, cfg.Env, cfg.BackendURL)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	if err := server.ListenAndServe(); err != nil {
		log.Fatalf("server stopped: %v", err)
	}
}
