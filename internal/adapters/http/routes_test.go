package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"fitsutra/internal/adapters/data"
	"fitsutra/internal/adapters/email"
	"fitsutra/internal/adapters/identity"
	"fitsutra/internal/adapters/localstore"
	"fitsutra/internal/adapters/objectstore"
	"fitsutra/internal/application/sessionhub"
	"fitsutra/internal/application/tenantctx"
	"fitsutra/internal/config"
	"fitsutra/internal/domain/record"
	"fitsutra/internal/domain/session"
)

// fakeBackend fakes the hosted auth, data and storage endpoints with just
// enough behavior for the flows under test.
type fakeBackend struct {
	mu sync.Mutex

	// profile controls what /rest/v1/profiles returns; nil means no row.
	profile map[string]any

	rows    map[string][]record.Record // table -> rows served on GET
	counts  map[string]int             // table -> Content-Range total
	inserts map[string][]record.Record // table -> rows received on POST
	patches []string                   // resources received on PATCH
	patched record.Record              // last PATCH body
	deletes []string                   // resources received on DELETE

	rejectLogin bool
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		rows:    make(map[string][]record.Record),
		counts:  make(map[string]int),
		inserts: make(map[string][]record.Record),
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
		if f.rejectLogin {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]string{"error_description": "Invalid login credentials"})
			return
		}
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
				rows[i]["id"] = "gen-" + table
			}
			f.inserts[table] = append(f.inserts[table], rows...)
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(rows)
		case http.MethodPatch:
			f.patches = append(f.patches, r.URL.RequestURI())
			json.NewDecoder(r.Body).Decode(&f.patched)
			w.WriteHeader(http.StatusNoContent)
		case http.MethodDelete:
			f.deletes = append(f.deletes, r.URL.RequestURI())
			if strings.Contains(r.URL.RawQuery, "id=eq.missing") {
				w.WriteHeader(http.StatusNotFound)
				w.Write([]byte(`{"message":"no rows deleted"}`))
				return
			}
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusNoContent)
		}

	case strings.HasPrefix(r.URL.Path, "/storage/v1/object/list/"):
		json.NewEncoder(w).Encode([]objectstore.Object{{Name: "1700000000-logo.png"}})

	case strings.HasPrefix(r.URL.Path, "/storage/v1/object/"):
		json.NewEncoder(w).Encode(map[string]string{"Key": "ok"})

	default:
		http.NotFound(w, r)
	}
}

// testApp wires the handlers against a fake backend, bypassing the CSRF
// and rate-limit middleware so form posts stay simple.
func testApp(t *testing.T, backend *fakeBackend) (http.Handler, *Deps) {
	t.Helper()
	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)

	kv, err := localstore.Open(filepath.Join(t.TempDir(), "session.db"))
	if err != nil {
		t.Fatalf("failed to open local store: %v", err)
	}
	t.Cleanup(func() { kv.Close() })

	idClient := identity.NewClient(srv.URL, "anon-key", srv.Client())
	dataClient := data.NewClient(srv.URL, "anon-key", srv.Client())
	d := &Deps{
		Config: config.Config{
			BackendURL:   srv.URL,
			AnonKey:      "anon-key",
			ServiceKey:   "service-token",
			DefaultGymID: "g-house",
			SalesInbox:   "sales@fitsutra.com",
		},
		Sessions: sessionhub.NewManager(localstore.NewSessionStore(kv), idClient),
		Identity: idClient,
		Data:     dataClient,
		Tenants:  tenantctx.NewResolver(dataClient),
		Objects:  objectstore.NewClient(srv.URL, "anon-key", srv.Client()),
		Email:    email.NewNoopSender(),
	}

	deps = d
	pageModules = buildModules(d)
	mux := http.NewServeMux()
	registerRoutes(mux)
	return mux, d
}

func signIn(t *testing.T, d *Deps) {
	t.Helper()
	err := d.Sessions.Set(t.Context(), session.Session{
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		ExpiresAt:    time.Now().Add(time.Hour).Unix(),
		User:         session.User{ID: "u1", Email: "owner@example.com"},
	})
	if err != nil {
		t.Fatalf("failed to seed session: %v", err)
	}
}

func postForm(handler http.Handler, path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func get(handler http.Handler, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

// TestLoginFlow tests the credential exchange end to end: a posted form
// becomes a persisted session and a redirect into the app.
func TestLoginFlow(t *testing.T) {
	backend := newFakeBackend()
	handler, d := testApp(t, backend)

	rec := postForm(handler, "/login", url.Values{
		"email":    {"owner@example.com"},
		"password": {"hunter22"},
	})
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/app" {
		t.Fatalf("login response = %d %q", rec.Code, rec.Header().Get("Location"))
	}

	if _, ok := d.Sessions.Current(t.Context()); !ok {
		t.Error("no session persisted after login")
	}
}

// TestLoginRejected tests that bad credentials rerender the form with the
// service's message.
func TestLoginRejected(t *testing.T) {
	backend := newFakeBackend()
	backend.rejectLogin = true
	handler, d := testApp(t, backend)

	rec := postForm(handler, "/login", url.Values{
		"email":    {"owner@example.com"},
		"password": {"wrong"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Invalid login credentials") {
		t.Error("service message not shown")
	}
	if _, ok := d.Sessions.Current(t.Context()); ok {
		t.Error("session persisted after rejected login")
	}
}

// TestAppRequiresSession tests the signed-out redirect.
func TestAppRequiresSession(t *testing.T) {
	backend := newFakeBackend()
	handler, _ := testApp(t, backend)

	rec := get(handler, "/app")
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/login" {
		t.Errorf("response = %d %q", rec.Code, rec.Header().Get("Location"))
	}
}

// TestAppRoutesToOnboarding tests that a user without a workspace lands in
// onboarding rather than an error page.
func TestAppRoutesToOnboarding(t *testing.T) {
	backend := newFakeBackend()
	handler, d := testApp(t, backend)
	signIn(t, d)

	rec := get(handler, "/app")
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/onboarding" {
		t.Errorf("response = %d %q", rec.Code, rec.Header().Get("Location"))
	}
}

// TestOnboardingCreatesWorkspace tests the gym-then-profile bootstrap via
// the form.
func TestOnboardingCreatesWorkspace(t *testing.T) {
	backend := newFakeBackend()
	handler, d := testApp(t, backend)
	signIn(t, d)

	rec := postForm(handler, "/onboarding", url.Values{
		"gym_name": {"Iron Temple"},
		"city":     {"Pune"},
	})
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/app" {
		t.Fatalf("response = %d %q", rec.Code, rec.Header().Get("Location"))
	}
	if len(backend.inserts["gyms"]) != 1 || len(backend.inserts["profiles"]) != 1 {
		t.Errorf("inserts = %v", backend.inserts)
	}
	if backend.inserts["profiles"][0]["role"] != "owner" {
		t.Errorf("profile row = %v", backend.inserts["profiles"][0])
	}
}

// TestDashboardCounts tests KPI rendering from Content-Range totals.
func TestDashboardCounts(t *testing.T) {
	backend := newFakeBackend()
	backend.bindTenant("g1", "Iron Temple")
	backend.counts["members"] = 42
	handler, d := testApp(t, backend)
	signIn(t, d)

	rec := get(handler, "/app")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Iron Temple") {
		t.Error("gym name missing from dashboard")
	}
	if !strings.Contains(body, "42") {
		t.Error("member count missing from dashboard")
	}
}

// TestPageListsRows tests a catalog page render.
func TestPageListsRows(t *testing.T) {
	backend := newFakeBackend()
	backend.bindTenant("g1", "Iron Temple")
	backend.rows["members"] = []record.Record{
		{"id": "r1", "full_name": "Jane Doe", "status": "active"},
	}
	handler, d := testApp(t, backend)
	signIn(t, d)

	rec := get(handler, "/app/crm")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Jane Doe") {
		t.Error("member row missing from page")
	}
	if !strings.Contains(body, "edit=r1") {
		t.Error("row has no edit affordance")
	}
	if !strings.Contains(body, "return confirm(") {
		t.Error("delete submits without a confirmation step")
	}
}

// TestPageEditPrefillsForm tests that the edit affordance reuses the form
// with the row's values and switches it to an update post.
func TestPageEditPrefillsForm(t *testing.T) {
	backend := newFakeBackend()
	backend.bindTenant("g1", "Iron Temple")
	backend.rows["members"] = []record.Record{
		{"id": "r1", "full_name": "Jane Doe", "monthly_fee": float64(1500), "status": "paused"},
	}
	handler, d := testApp(t, backend)
	signIn(t, d)

	rec := get(handler, "/app/crm?t=members&edit=r1")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	body := rec.Body.String()
	for _, part := range []string{
		`value="update"`,
		`name="id" value="r1"`,
		`value="Jane Doe"`,
		`value="1500"`,
	} {
		if !strings.Contains(body, part) {
			t.Errorf("edit form missing %s", part)
		}
	}
	if !strings.Contains(body, `value="paused" selected`) {
		t.Error("select field not prefilled with the row's value")
	}
}

// TestPageUpdateRow tests a form edit end to end: the patch is scoped to
// the row and the tenant and carries the changed fields.
func TestPageUpdateRow(t *testing.T) {
	backend := newFakeBackend()
	backend.bindTenant("g1", "Iron Temple")
	backend.rows["members"] = []record.Record{
		{"id": "r1", "full_name": "Jane Doe", "status": "active"},
	}
	handler, d := testApp(t, backend)
	signIn(t, d)

	rec := postForm(handler, "/app/crm", url.Values{
		"_action":     {"update"},
		"_table":      {"members"},
		"id":          {"r1"},
		"full_name":   {"Jane Doe-Smith"},
		"monthly_fee": {"1800"},
		"status":      {"paused"},
	})
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/app/crm" {
		t.Fatalf("response = %d %q", rec.Code, rec.Header().Get("Location"))
	}
	if len(backend.patches) != 1 {
		t.Fatalf("patches = %v", backend.patches)
	}
	for _, part := range []string{"id=eq.r1", "gym_id=eq.g1"} {
		if !strings.Contains(backend.patches[0], part) {
			t.Errorf("patch resource %q missing %q", backend.patches[0], part)
		}
	}
	if backend.patched["full_name"] != "Jane Doe-Smith" || backend.patched["status"] != "paused" {
		t.Errorf("patch body = %v", backend.patched)
	}
}

// TestPageCreateRow tests a form create through the generic engine.
func TestPageCreateRow(t *testing.T) {
	backend := newFakeBackend()
	backend.bindTenant("g1", "Iron Temple")
	handler, d := testApp(t, backend)
	signIn(t, d)

	rec := postForm(handler, "/app/crm", url.Values{
		"_action":     {"create"},
		"_table":      {"members"},
		"full_name":   {"Jane Doe"},
		"monthly_fee": {"1500"},
		"status":      {"active"},
	})
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/app/crm" {
		t.Fatalf("response = %d %q", rec.Code, rec.Header().Get("Location"))
	}
	inserted := backend.inserts["members"]
	if len(inserted) != 1 {
		t.Fatalf("inserts = %v", inserted)
	}
	if inserted[0]["gym_id"] != "g1" {
		t.Errorf("gym_id = %v", inserted[0]["gym_id"])
	}
	if inserted[0]["monthly_fee"] != float64(1500) {
		t.Errorf("monthly_fee = %v (%T)", inserted[0]["monthly_fee"], inserted[0]["monthly_fee"])
	}
}

// TestPageDeleteMissingRow tests that the service error surfaces as a
// flash message rather than a silent success.
func TestPageDeleteMissingRow(t *testing.T) {
	backend := newFakeBackend()
	backend.bindTenant("g1", "Iron Temple")
	handler, d := testApp(t, backend)
	signIn(t, d)

	rec := postForm(handler, "/app/crm", url.Values{
		"_action": {"delete"},
		"_table":  {"members"},
		"id":      {"missing"},
	})
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d", rec.Code)
	}
	loc := rec.Header().Get("Location")
	if !strings.Contains(loc, "error=") || !strings.Contains(loc, "no+rows+deleted") {
		t.Errorf("redirect = %q, want error flash", loc)
	}
}

// TestBookDemoInsertsLead tests the public demo-request flow.
func TestBookDemoInsertsLead(t *testing.T) {
	backend := newFakeBackend()
	handler, _ := testApp(t, backend)

	rec := postForm(handler, "/book-demo", url.Values{
		"name":    {"Priya Sharma"},
		"email":   {"priya@example.com"},
		"city":    {"Pune"},
		"company": {"Iron Temple"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	leads := backend.inserts["leads"]
	if len(leads) != 1 {
		t.Fatalf("leads = %v", leads)
	}
	if leads[0]["source"] != "Book Demo · Pune · Iron Temple" {
		t.Errorf("source = %v", leads[0]["source"])
	}
	if leads[0]["gym_id"] != "g-house" {
		t.Errorf("gym_id = %v, want the configured default gym", leads[0]["gym_id"])
	}
}

// TestBrandListsAssets tests the storage page.
func TestBrandListsAssets(t *testing.T) {
	backend := newFakeBackend()
	backend.bindTenant("g1", "Iron Temple")
	handler, d := testApp(t, backend)
	signIn(t, d)

	rec := get(handler, "/app/brand")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "1700000000-logo.png") {
		t.Error("asset missing from brand page")
	}
}

// TestUnknownPage tests the catalog 404.
func TestUnknownPage(t *testing.T) {
	backend := newFakeBackend()
	backend.bindTenant("g1", "Iron Temple")
	handler, d := testApp(t, backend)
	signIn(t, d)

	rec := get(handler, "/app/nope")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d", rec.Code)
	}
}

// TestLogout tests session teardown.
func TestLogout(t *testing.T) {
	backend := newFakeBackend()
	handler, d := testApp(t, backend)
	signIn(t, d)

	rec := postForm(handler, "/logout", url.Values{})
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/" {
		t.Fatalf("response = %d %q", rec.Code, rec.Header().Get("Location"))
	}
	if _, ok := d.Sessions.Current(t.Context()); ok {
		t.Error("session survived logout")
	}
}
