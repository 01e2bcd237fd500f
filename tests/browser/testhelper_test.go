package browser_test

import (
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/playwright-community/playwright-go"

	_ "modernc.org/sqlite"

	"fitsutra/internal/adapters/data"
	"fitsutra/internal/adapters/email"
	web "fitsutra/internal/adapters/http"
	"fitsutra/internal/adapters/http/middleware"
	"fitsutra/internal/adapters/identity"
	"fitsutra/internal/adapters/localstore"
	"fitsutra/internal/adapters/objectstore"
	"fitsutra/internal/application/sessionhub"
	"fitsutra/internal/application/tenantctx"
	"fitsutra/internal/config"
	"fitsutra/internal/domain/record"
)

// fakeBackend fakes the hosted auth, data and storage endpoints with enough
// state that rows created through the UI show up on the next page render.
type fakeBackend struct {
	mu sync.Mutex

	profile map[string]any
	gymName string
	rows    map[string][]record.Record
	counts  map[string]int
	nextID  int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		rows:   make(map[string][]record.Record),
		counts: make(map[string]int),
	}
}

func (f *fakeBackend) bindTenant(gymID, gymName string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.profile = map[string]any{
		"gym_id": gymID,
		"role":   "owner",
		"gym":    map[string]string{"name": gymName},
	}
}

func (f *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case r.URL.Path == "/auth/v1/token":
		json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "access-1",
			"refresh_token": "refresh-1",
			"expires_at":    time.Now().Add(time.Hour).Unix(),
			"user":          map[string]string{"id": "u1", "email": "owner@example.com"},
		})

	case strings.HasPrefix(r.URL.Path, "/rest/v1/"):
		table := strings.TrimPrefix(r.URL.Path, "/rest/v1/")
		switch r.Method {
		case http.MethodGet:
			if table == "profiles" {
				rows := []any{}
				if f.profile != nil {
					rows = append(rows, f.profile)
				}
				json.NewEncoder(w).Encode(rows)
				return
			}
			rows := f.rows[table]
			if rows == nil {
				rows = []record.Record{}
			}
			json.NewEncoder(w).Encode(rows)
		case http.MethodHead:
			w.Header().Set("Content-Range", "0-0/"+strconv.Itoa(f.counts[table]))
			w.WriteHeader(http.StatusOK)
		case http.MethodPost:
			var rows []record.Record
			json.NewDecoder(r.Body).Decode(&rows)
			for i := range rows {
				f.nextID++
				rows[i]["id"] = fmt.Sprintf("%s-%d", table, f.nextID)
			}
			f.rows[table] = append(f.rows[table], rows...)
			// The workspace bootstrap reads the profile back on the next
			// page load, so the insert binds the tenant too.
			if table == "gyms" && len(rows) == 1 {
				f.gymName, _ = rows[0]["name"].(string)
			}
			if table == "profiles" && len(rows) == 1 {
				f.profile = map[string]any{
					"gym_id": rows[0]["gym_id"],
					"role":   rows[0]["role"],
					"gym":    map[string]string{"name": f.gymName},
				}
			}
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(rows)
		case http.MethodDelete:
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusNoContent)
		}

	case strings.HasPrefix(r.URL.Path, "/storage/v1/object/list/"):
		json.NewEncoder(w).Encode([]objectstore.Object{})

	default:
		http.NotFound(w, r)
	}
}

// testApp holds the running test server and Playwright handles.
type testApp struct {
	BaseURL string
	Backend *fakeBackend
	Browser playwright.Browser
}

// newTestApp wires the full app (middleware included) against a fake
// backend, starts it on a free port and launches a headless browser.
func newTestApp(t *testing.T) *testApp {
	t.Helper()

	backend := newFakeBackend()
	backendSrv := httptest.NewServer(backend)
	t.Cleanup(backendSrv.Close)

	kv, err := localstore.Open(filepath.Join(t.TempDir(), "session.db"))
	if err != nil {
		t.Fatalf("failed to open local store: %v", err)
	}
	t.Cleanup(func() { kv.Close() })

	// Relative template and static paths resolve from the project root.
	projectRoot := findProjectRoot(t)
	origDir, _ := os.Getwd()
	if err := os.Chdir(projectRoot); err != nil {
		t.Fatalf("failed to chdir to project root: %v", err)
	}
	t.Cleanup(func() { os.Chdir(origDir) })

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to find free port: %v", err)
	}
	port := listener.Addr().(*net.TCPAddr).Port
	listener.Close()

	// The CSRF origin check must trust the ephemeral test port.
	middleware.ExtraTrustedOrigins = append(middleware.ExtraTrustedOrigins,
		fmt.Sprintf("127.0.0.1:%d", port),
		fmt.Sprintf("localhost:%d", port),
	)

	idClient := identity.NewClient(backendSrv.URL, "anon-key", backendSrv.Client())
	dataClient := data.NewClient(backendSrv.URL, "anon-key", backendSrv.Client())
	mux := web.NewMux(&web.Deps{
		Config: config.Config{
			Env:        "development",
			BackendURL: backendSrv.URL,
			AnonKey:    "anon-key",
			ServiceKey: "service-token",
			SalesInbox: "sales@fitsutra.com",
			StaticDir:  "static",
		},
		Sessions: sessionhub.NewManager(localstore.NewSessionStore(kv), idClient),
		Identity: idClient,
		Data:     dataClient,
		Tenants:  tenantctx.NewResolver(dataClient),
		Objects:  objectstore.NewClient(backendSrv.URL, "anon-key", backendSrv.Client()),
		Email:    email.NewNoopSender(),
	})

	srv := &http.Server{Addr: fmt.Sprintf("127.0.0.1:%d", port), Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("test server error: %v", err)
		}
	}()
	t.Cleanup(func() { srv.Close() })

	baseURL := fmt.Sprintf("http://127.0.0.1:%d", port)
	for i := 0; i < 50; i++ {
		resp, err := http.Get(baseURL + "/login")
		if err == nil {
			resp.Body.Close()
			break
		}
		time.Sleep(100 * time.Millisecond)
	}

	pw, err := playwright.Run()
	if err != nil {
		t.Fatalf("failed to start Playwright: %v", err)
	}
	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(true),
	})
	if err != nil {
		t.Fatalf("failed to launch browser: %v", err)
	}
	t.Cleanup(func() {
		browser.Close()
		pw.Stop()
	})

	return &testApp{BaseURL: baseURL, Backend: backend, Browser: browser}
}

// newPage creates a new browser page (tab).
func (a *testApp) newPage(t *testing.T) playwright.Page {
	t.Helper()
	page, err := a.Browser.NewPage()
	if err != nil {
		t.Fatalf("failed to create page: %v", err)
	}
	t.Cleanup(func() { page.Close() })
	return page
}

// login signs in through the form and waits for the post-login redirect,
// which lands on /app for a bound tenant and /onboarding otherwise.
func (a *testApp) login(t *testing.T, page playwright.Page, wantURL string) {
	t.Helper()
	if _, err := page.Goto(a.BaseURL + "/login"); err != nil {
		t.Fatalf("failed to navigate to login: %v", err)
	}
	if err := page.Locator("input[name=email]").Fill("owner@example.com"); err != nil {
		t.Fatalf("failed to fill email: %v", err)
	}
	if err := page.Locator("input[name=password]").Fill("hunter22"); err != nil {
		t.Fatalf("failed to fill password: %v", err)
	}
	if err := page.Locator("button[type=submit]").Click(); err != nil {
		t.Fatalf("failed to click sign in: %v", err)
	}
	if err := page.WaitForURL(a.BaseURL+wantURL, playwright.PageWaitForURLOptions{
		Timeout: playwright.Float(10000),
	}); err != nil {
		t.Fatalf("login did not redirect to %s: %v", wantURL, err)
	}
}

// findProjectRoot walks up from the working directory to the directory
// containing go.mod.
func findProjectRoot(t *testing.T) string {
	t.Helper()
	dir, err := os.Getwd()
	if err != nil {
		t.Fatalf("failed to get working directory: %v", err)
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatalf("could not find project root (go.mod) from working directory")
		}
		dir = parent
	}
}
