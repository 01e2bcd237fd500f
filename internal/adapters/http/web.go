// Package web wires the HTTP surface: public marketing pages, the auth
// flows, and the workspace pages driven by the module catalog.
package web

import (
	"crypto/rand"
	"encoding/hex"
	"log"
	"net/http"

	"fitsutra/internal/adapters/data"
	"fitsutra/internal/adapters/email"
	"fitsutra/internal/adapters/http/middleware"
	"fitsutra/internal/adapters/identity"
	"fitsutra/internal/adapters/objectstore"
	"fitsutra/internal/adapters/realtime"
	"fitsutra/internal/application/crud"
	"fitsutra/internal/application/modules"
	"fitsutra/internal/application/sessionhub"
	"fitsutra/internal/application/tenantctx"
	"fitsutra/internal/config"
	"fitsutra/internal/domain/session"
)

// Deps holds everything the handlers reach for.
type Deps struct {
	Config   config.Config
	Sessions *sessionhub.Manager
	Identity *identity.Client
	Data     *data.Client
	Tenants  *tenantctx.Resolver
	Objects  *objectstore.Client
	Bridge   *realtime.Bridge
	Email    email.Sender
	Metrics  http.Handler
}

// Global deps instance (set by NewMux)
var deps *Deps

// pageModules maps page slug to table to its mounted engine instance.
var pageModules map[string]map[string]*crud.Module

// RateLimitPerSecond controls the per-IP rate limit. Tests can increase this.
var RateLimitPerSecond = 10

// feedAdapter narrows the realtime bridge to the engine's feed interface.
type feedAdapter struct {
	bridge *realtime.Bridge
}

func (f feedAdapter) Subscribe(sess session.Session, table, gymID string, onChange func()) crud.FeedCloser {
	return f.bridge.Subscribe(sess, table, gymID, onChange)
}

// loadCSRFKey reads the CSRF secret from config (hex-encoded, 32 bytes).
// In production the key must be set; in development a random per-startup
// key is generated.
func loadCSRFKey(cfg config.Config) []byte {
	if cfg.CSRFKeyHex != "" {
		key, err := hex.DecodeString(cfg.CSRFKeyHex)
		if err != nil || len(key) != 32 {
			log.Fatal("FITSUTRA_CSRF_KEY must be 64 hex characters (32 bytes)")
		}
		return key
	}
	if cfg.Production() {
		log.Fatal("FITSUTRA_CSRF_KEY is required in production")
	}
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		log.Fatalf("failed to generate CSRF key: %v", err)
	}
	log.Println("WARNING: using random CSRF key (forms won't survive restart). Set FITSUTRA_CSRF_KEY for production.")
	return key
}

// buildModules mounts one engine instance per catalog table.
func buildModules(d *Deps) map[string]map[string]*crud.Module {
	var feed crud.ChangeFeed
	if d.Bridge != nil {
		feed = feedAdapter{bridge: d.Bridge}
	}
	mounted := make(map[string]map[string]*crud.Module)
	for _, page := range modules.Pages() {
		byTable := make(map[string]*crud.Module, len(page.Modules))
		for _, cfg := range page.Modules {
			m, err := crud.NewModule(cfg, d.Data, feed)
			if err != nil {
				log.Fatalf("invalid module %q on page %q: %v", cfg.Title, page.Slug, err)
			}
			byTable[cfg.Table] = m
		}
		mounted[page.Slug] = byTable
	}
	return mounted
}

// NewMux wires HTTP handlers for the app.
func NewMux(d *Deps) http.Handler {
	deps = d
	pageModules = buildModules(d)

	mux := http.NewServeMux()
	mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.Dir(d.Config.StaticDir))))
	registerRoutes(mux)
	if d.Metrics != nil {
		mux.Handle("/metrics", d.Metrics)
	}

	csrfKey := loadCSRFKey(d.Config)
	limiter := middleware.NewRateLimiter(RateLimitPerSecond)
	trusted := []string{"localhost:8080", "127.0.0.1:8080"}
	trusted = append(trusted, middleware.ExtraTrustedOrigins...)

	return middleware.Chain(mux,
		middleware.SecurityHeaders,
		middleware.CSRF(csrfKey, trusted, d.Config.Production()),
		middleware.RateLimit(limiter),
		middleware.Timing,
	)
}

func registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/", handleLanding)
	mux.HandleFunc("/book-demo", handleBookDemo)
	mux.HandleFunc("/login", handleLogin)
	mux.HandleFunc("/signup", handleSignup)
	mux.HandleFunc("/logout", handleLogout)
	mux.HandleFunc("/forgot-password", handleForgotPassword)
	mux.HandleFunc("/reset-password", handleResetPassword)
	mux.HandleFunc("/onboarding", handleOnboarding)
	mux.HandleFunc("/app", handleDashboard)
	mux.HandleFunc("/app/brand", handleBrand)
	mux.HandleFunc("/app/", handlePage)
	mux.HandleFunc("/healthz", handleHealthz)
}
