package web

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/gorilla/csrf"
	"github.com/yuin/goldmark"
	goldmarkHTML "github.com/yuin/goldmark/renderer/html"

	"fitsutra/internal/adapters/data"
	"fitsutra/internal/adapters/identity"
	"fitsutra/internal/adapters/objectstore"
	"fitsutra/internal/application/crud"
	"fitsutra/internal/application/listutil"
	"fitsutra/internal/application/modules"
	"fitsutra/internal/application/orchestrators"
	"fitsutra/internal/application/tenantctx"
	"fitsutra/internal/domain/record"
	"fitsutra/internal/domain/session"
)

// mdRenderer is a goldmark instance configured for safe HTML output.
// Raw HTML in markdown input is escaped (WithUnsafe is NOT set).
var mdRenderer = goldmark.New(
	goldmark.WithRendererOptions(
		goldmarkHTML.WithHardWraps(),
	),
)

// templatesDir resolves relative to the repo root in production and
// relative to this package under go test.
var templatesDir = func() string {
	root := filepath.Join("internal", "adapters", "http", "templates")
	if _, err := os.Stat(root); err == nil {
		return root
	}
	return "templates"
}()

// qrServiceURL renders a payment URI as a scannable image.
const qrServiceURL = "https://api.qrserver.com/v1/create-qr-code/?size=120x120&data="

// internalError logs the real error and returns a generic message.
func internalError(w http.ResponseWriter, err error) {
	slog.Error("internal_error", "error", err.Error())
	http.Error(w, "internal server error", http.StatusInternalServerError)
}

// userMessage converts adapter errors into one readable line. Service
// bodies are often JSON with a message key; anything else passes through.
func userMessage(err error) string {
	switch e := err.(type) {
	case *identity.AuthError:
		return e.Description
	case *data.AccessError:
		return extractMessage(e.Body, "the data service rejected the request")
	case *objectstore.StorageError:
		return extractMessage(e.Body, "the storage service rejected the request")
	}
	return err.Error()
}

func extractMessage(body, fallback string) string {
	var payload struct {
		Message string `json:"message"`
	}
	if json.Unmarshal([]byte(body), &payload) == nil && payload.Message != "" {
		return payload.Message
	}
	if strings.TrimSpace(body) != "" {
		return body
	}
	return fallback
}

// baseData carries what layout.html needs on every page.
type baseData struct {
	SignedIn bool
	Email    string
	GymName  string
	Nav      []modules.Page
	Active   string
	Error    string
	Notice   string
}

func newBaseData(r *http.Request, sess session.Session, tenant tenantctx.Tenant, active string) baseData {
	return baseData{
		SignedIn: sess.Valid(),
		Email:    sess.User.Email,
		GymName:  tenant.GymName,
		Nav:      modules.Pages(),
		Active:   active,
		Error:    r.URL.Query().Get("error"),
		Notice:   r.URL.Query().Get("notice"),
	}
}

func renderTemplate(w http.ResponseWriter, r *http.Request, templateName string, data any) {
	funcMap := template.FuncMap{
		"csrfToken": func() string { return csrf.Token(r) },
		"renderMarkdown": func(md string) template.HTML {
			var buf bytes.Buffer
			if err := mdRenderer.Convert([]byte(md), &buf); err != nil {
				return template.HTML(template.HTMLEscapeString(md))
			}
			return template.HTML(buf.String())
		},
		"stringify": record.Stringify,
		"fieldValue": func(row record.Record, name string) string {
			return record.Stringify(row[name])
		},
		"showUPI": func(row record.Record) bool {
			return record.Stringify(row[record.FieldPaymentMethod]) == record.PaymentMethodUPI
		},
		"qrURL": func(row record.Record) string {
			payload := record.UPIPayload(record.Stringify(row[record.FieldUPIID]))
			return qrServiceURL + url.QueryEscape(payload)
		},
	}

	layoutPath := filepath.Join(templatesDir, "layout.html")
	pagePath := filepath.Join(templatesDir, templateName)
	tpl, err := template.New("layout.html").Funcs(funcMap).ParseFiles(layoutPath, pagePath)
	if err != nil {
		http.Error(w, "Template error: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tpl.Execute(w, data); err != nil {
		http.Error(w, "Render error: "+err.Error(), http.StatusInternalServerError)
	}
}

// currentSession loads the session, refreshing it if needed.
func currentSession(r *http.Request) (session.Session, bool) {
	return deps.Sessions.Current(r.Context())
}

// requireSession redirects signed-out visitors to the login page.
func requireSession(w http.ResponseWriter, r *http.Request) (session.Session, bool) {
	sess, ok := currentSession(r)
	if !ok {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return session.Session{}, false
	}
	return sess, true
}

// requireTenant resolves the workspace, routing unbound users to
// onboarding.
func requireTenant(w http.ResponseWriter, r *http.Request, sess session.Session) (tenantctx.Tenant, bool) {
	tenant, err := deps.Tenants.Resolve(r.Context(), sess)
	if err != nil {
		internalError(w, err)
		return tenantctx.Tenant{}, false
	}
	if !tenant.Bound() {
		http.Redirect(w, r, "/onboarding", http.StatusSeeOther)
		return tenantctx.Tenant{}, false
	}
	return tenant, true
}

func redirectWithError(w http.ResponseWriter, r *http.Request, path string, err error) {
	http.Redirect(w, r, path+"?error="+url.QueryEscape(userMessage(err)), http.StatusSeeOther)
}

func redirectWithNotice(w http.ResponseWriter, r *http.Request, path, notice string) {
	http.Redirect(w, r, path+"?notice="+url.QueryEscape(notice), http.StatusSeeOther)
}

// --- Public pages ---

func handleLanding(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	sess, _ := currentSession(r)
	renderTemplate(w, r, "landing.html", struct {
		baseData
	}{newBaseData(r, sess, tenantctx.Tenant{}, "")})
}

func handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "ok")
}

func handleBookDemo(w http.ResponseWriter, r *http.Request) {
	type demoData struct {
		baseData
		Submitted bool
	}

	if r.Method == http.MethodPost {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}
		err := orchestrators.ExecuteBookDemo(r.Context(), orchestrators.BookDemoInput{
			Name:    r.PostFormValue("name"),
			Email:   r.PostFormValue("email"),
			Phone:   r.PostFormValue("phone"),
			City:    r.PostFormValue("city"),
			Company: r.PostFormValue("company"),
		}, orchestrators.BookDemoDeps{
			Data:         deps.Data,
			Email:        deps.Email,
			ServiceToken: deps.Config.ServiceKey,
			SalesInbox:   deps.Config.SalesInbox,
			DefaultGymID: deps.Config.DefaultGymID,
		})
		if err != nil {
			base := newBaseData(r, session.Session{}, tenantctx.Tenant{}, "")
			base.Error = userMessage(err)
			renderTemplate(w, r, "book_demo.html", demoData{baseData: base})
			return
		}
		base := newBaseData(r, session.Session{}, tenantctx.Tenant{}, "")
		renderTemplate(w, r, "book_demo.html", demoData{baseData: base, Submitted: true})
		return
	}

	sess, _ := currentSession(r)
	renderTemplate(w, r, "book_demo.html", demoData{baseData: newBaseData(r, sess, tenantctx.Tenant{}, "")})
}

// --- Auth pages ---

func handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}
		_, err := orchestrators.ExecuteSignIn(r.Context(), orchestrators.SignInInput{
			Email:    r.PostFormValue("email"),
			Password: r.PostFormValue("password"),
		}, orchestrators.SignInDeps{Identity: deps.Identity, Sessions: deps.Sessions})
		if err != nil {
			base := newBaseData(r, session.Session{}, tenantctx.Tenant{}, "")
			base.Error = userMessage(err)
			renderTemplate(w, r, "login.html", struct{ baseData }{base})
			return
		}
		http.Redirect(w, r, "/app", http.StatusSeeOther)
		return
	}

	if sess, ok := currentSession(r); ok && sess.Valid() {
		http.Redirect(w, r, "/app", http.StatusSeeOther)
		return
	}
	renderTemplate(w, r, "login.html", struct{ baseData }{newBaseData(r, session.Session{}, tenantctx.Tenant{}, "")})
}

func handleSignup(w http.ResponseWriter, r *http.Request) {
	type signupData struct {
		baseData
		NeedsConfirmation bool
	}

	if r.Method == http.MethodPost {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}
		result, err := orchestrators.ExecuteSignUp(r.Context(), orchestrators.SignUpInput{
			Email:    r.PostFormValue("email"),
			Password: r.PostFormValue("password"),
		}, orchestrators.SignUpDeps{Identity: deps.Identity, Sessions: deps.Sessions})
		if err != nil {
			base := newBaseData(r, session.Session{}, tenantctx.Tenant{}, "")
			base.Error = userMessage(err)
			renderTemplate(w, r, "signup.html", signupData{baseData: base})
			return
		}
		if result.NeedsConfirmation {
			base := newBaseData(r, session.Session{}, tenantctx.Tenant{}, "")
			renderTemplate(w, r, "signup.html", signupData{baseData: base, NeedsConfirmation: true})
			return
		}
		http.Redirect(w, r, "/onboarding", http.StatusSeeOther)
		return
	}

	renderTemplate(w, r, "signup.html", signupData{baseData: newBaseData(r, session.Session{}, tenantctx.Tenant{}, "")})
}

func handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := deps.Sessions.Clear(r.Context()); err != nil {
		internalError(w, err)
		return
	}
	slog.Info("auth_event", "event", "logout")
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	type forgotData struct {
		baseData
		Sent bool
	}

	if r.Method == http.MethodPost {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}
		scheme := "https"
		if r.TLS == nil {
			scheme = "http"
		}
		err := orchestrators.ExecuteSendReset(r.Context(), orchestrators.SendResetInput{
			Email:      r.PostFormValue("email"),
			RedirectTo: scheme + "://" + r.Host + "/reset-password",
		}, orchestrators.SendResetDeps{Identity: deps.Identity})
		if err != nil {
			base := newBaseData(r, session.Session{}, tenantctx.Tenant{}, "")
			base.Error = userMessage(err)
			renderTemplate(w, r, "forgot_password.html", forgotData{baseData: base})
			return
		}
		// The same message regardless of whether the address exists.
		base := newBaseData(r, session.Session{}, tenantctx.Tenant{}, "")
		renderTemplate(w, r, "forgot_password.html", forgotData{baseData: base, Sent: true})
		return
	}

	renderTemplate(w, r, "forgot_password.html", forgotData{baseData: newBaseData(r, session.Session{}, tenantctx.Tenant{}, "")})
}

func handleResetPassword(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}
		err := orchestrators.ExecuteUpdatePassword(r.Context(), orchestrators.UpdatePasswordInput{
			AccessToken: r.PostFormValue("access_token"),
			Password:    r.PostFormValue("password"),
			Confirm:     r.PostFormValue("confirm"),
		}, orchestrators.UpdatePasswordDeps{Identity: deps.Identity})
		if err != nil {
			base := newBaseData(r, session.Session{}, tenantctx.Tenant{}, "")
			base.Error = userMessage(err)
			renderTemplate(w, r, "reset_password.html", struct{ baseData }{base})
			return
		}
		redirectWithNotice(w, r, "/login", "Password updated. Sign in with your new password.")
		return
	}

	// The recovery token arrives in the URL fragment; a small script on the
	// page copies it into the form before submit.
	renderTemplate(w, r, "reset_password.html", struct{ baseData }{newBaseData(r, session.Session{}, tenantctx.Tenant{}, "")})
}

// --- Workspace pages ---

func handleOnboarding(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireSession(w, r)
	if !ok {
		return
	}

	if r.Method == http.MethodPost {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}
		_, err := orchestrators.ExecuteCreateWorkspace(r.Context(), sess, orchestrators.CreateWorkspaceInput{
			GymName: r.PostFormValue("gym_name"),
			City:    r.PostFormValue("city"),
			State:   r.PostFormValue("state"),
		}, orchestrators.CreateWorkspaceDeps{Data: deps.Data})
		if err != nil {
			base := newBaseData(r, sess, tenantctx.Tenant{}, "")
			base.Error = userMessage(err)
			renderTemplate(w, r, "onboarding.html", struct{ baseData }{base})
			return
		}
		http.Redirect(w, r, "/app", http.StatusSeeOther)
		return
	}

	tenant, err := deps.Tenants.Resolve(r.Context(), sess)
	if err != nil {
		internalError(w, err)
		return
	}
	if tenant.Bound() {
		http.Redirect(w, r, "/app", http.StatusSeeOther)
		return
	}
	renderTemplate(w, r, "onboarding.html", struct{ baseData }{newBaseData(r, sess, tenant, "")})
}

type kpiView struct {
	Label string
	Count int
}

type dashboardGroup struct {
	Page modules.Page
	KPIs []kpiView
}

func countKPIs(r *http.Request, sess session.Session, gymID string, kpis []modules.KPI) []kpiView {
	out := make([]kpiView, 0, len(kpis))
	for _, kpi := range kpis {
		resource := data.Table(kpi.Table).Select(record.FieldID).Eq(record.FieldGymID, gymID).Resource()
		n, err := deps.Data.Count(r.Context(), resource, sess.AccessToken)
		if err != nil {
			// A dashboard stays up even when one counter is denied.
			slog.Warn("kpi_count_failed", "table", kpi.Table, "error", err.Error())
			n = 0
		}
		out = append(out, kpiView{Label: kpi.Label, Count: n})
	}
	return out
}

func handleDashboard(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireSession(w, r)
	if !ok {
		return
	}
	tenant, ok := requireTenant(w, r, sess)
	if !ok {
		return
	}

	var groups []dashboardGroup
	for _, page := range modules.Pages() {
		groups = append(groups, dashboardGroup{
			Page: page,
			KPIs: countKPIs(r, sess, tenant.GymID, page.KPIs),
		})
	}

	renderTemplate(w, r, "dashboard.html", struct {
		baseData
		Groups []dashboardGroup
	}{newBaseData(r, sess, tenant, "dashboard"), groups})
}

type moduleView struct {
	Config     crud.Config
	Filterable []record.Field
	Rows       []record.Record
	Focused    bool
	Edit       record.Record // row being edited, nil when adding
}

type pageData struct {
	baseData
	Page    modules.Page
	KPIs    []kpiView
	Modules []moduleView
	Query   crud.View
	Focus   string
}

func handlePage(w http.ResponseWriter, r *http.Request) {
	slug := strings.TrimPrefix(r.URL.Path, "/app/")
	page, found := modules.PageBySlug(slug)
	if !found {
		http.NotFound(w, r)
		return
	}
	sess, ok := requireSession(w, r)
	if !ok {
		return
	}
	tenant, ok := requireTenant(w, r, sess)
	if !ok {
		return
	}

	if r.Method == http.MethodPost {
		handlePageWrite(w, r, page, sess, tenant)
		return
	}

	// The view parameters narrow one module per request; the rest list
	// unfiltered.
	focus := r.URL.Query().Get("t")
	if focus == "" && len(page.Modules) > 0 {
		focus = page.Modules[0].Table
	}

	editID := r.URL.Query().Get("edit")

	views := make([]moduleView, 0, len(page.Modules))
	for _, cfg := range page.Modules {
		module := pageModules[page.Slug][cfg.Table]
		view := crud.View{}
		if cfg.Table == focus {
			view = listutil.ParseView(r.URL.Query(), cfg.Fields)
		}
		rows, err := module.List(r.Context(), sess, tenant.GymID, view)
		if err != nil {
			internalError(w, err)
			return
		}
		module.EnsureFeed(sess, tenant.GymID)

		// The edit target is looked up in the full snapshot so a narrowed
		// view cannot hide the row being edited.
		var edit record.Record
		if cfg.Table == focus && editID != "" {
			for _, row := range module.Snapshot() {
				if row.ID() == editID {
					edit = row
					break
				}
			}
		}
		views = append(views, moduleView{
			Config:     cfg,
			Filterable: listutil.FilterableFields(cfg.Fields),
			Rows:       rows,
			Focused:    cfg.Table == focus,
			Edit:       edit,
		})
	}

	renderTemplate(w, r, "page.html", pageData{
		baseData: newBaseData(r, sess, tenant, page.Slug),
		Page:     page,
		KPIs:     countKPIs(r, sess, tenant.GymID, page.KPIs),
		Modules:  views,
		Query:    listutil.ParseView(r.URL.Query(), nil),
		Focus:    focus,
	})
}

func handlePageWrite(w http.ResponseWriter, r *http.Request, page modules.Page, sess session.Session, tenant tenantctx.Tenant) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	pagePath := "/app/" + page.Slug

	table := r.PostFormValue("_table")
	module, found := pageModules[page.Slug][table]
	if !found {
		http.Error(w, "unknown table", http.StatusBadRequest)
		return
	}

	form := make(map[string]string, len(r.PostForm))
	for key := range r.PostForm {
		if strings.HasPrefix(key, "_") || key == "id" {
			continue
		}
		form[key] = r.PostFormValue(key)
	}

	action := r.PostFormValue("_action")
	var err error
	switch action {
	case "create":
		_, err = module.Create(r.Context(), sess, tenant.GymID, form)
	case "update":
		err = module.Update(r.Context(), sess, tenant.GymID, r.PostFormValue("id"), form)
	case "delete":
		err = module.Delete(r.Context(), sess, tenant.GymID, r.PostFormValue("id"))
	default:
		http.Error(w, "unknown action", http.StatusBadRequest)
		return
	}
	if err != nil {
		slog.Warn("module_write_failed", "table", table, "action", action, "error", err.Error())
		redirectWithError(w, r, pagePath, err)
		return
	}
	slog.Info("module_event", "event", "row_"+action+"d", "table", table, "gym_id", tenant.GymID)
	http.Redirect(w, r, pagePath, http.StatusSeeOther)
}

// --- Brand assets ---

type assetView struct {
	Name      string
	URL       string
	UpdatedAt string
}

func handleBrand(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireSession(w, r)
	if !ok {
		return
	}
	tenant, ok := requireTenant(w, r, sess)
	if !ok {
		return
	}

	if r.Method == http.MethodPost {
		if err := r.ParseMultipartForm(10 << 20); err != nil {
			http.Error(w, "bad upload", http.StatusBadRequest)
			return
		}
		file, header, err := r.FormFile("asset")
		if err != nil {
			redirectWithError(w, r, "/app/brand", fmt.Errorf("choose a file to upload"))
			return
		}
		defer file.Close()

		path, err := deps.Objects.Upload(r.Context(), sess.AccessToken, tenant.GymID,
			header.Filename, header.Header.Get("Content-Type"), file)
		if err != nil {
			redirectWithError(w, r, "/app/brand", err)
			return
		}
		slog.Info("storage_event", "event", "asset_uploaded", "path", path, "gym_id", tenant.GymID)
		redirectWithNotice(w, r, "/app/brand", "Uploaded "+header.Filename)
		return
	}

	objects, err := deps.Objects.List(r.Context(), sess.AccessToken, tenant.GymID)
	if err != nil {
		internalError(w, err)
		return
	}
	assets := make([]assetView, 0, len(objects))
	for _, obj := range objects {
		// The list endpoint reports names relative to the prefix folder.
		assets = append(assets, assetView{
			Name:      obj.Name,
			URL:       deps.Objects.PublicURL(tenant.GymID + "/" + obj.Name),
			UpdatedAt: obj.UpdatedAt,
		})
	}

	renderTemplate(w, r, "brand.html", struct {
		baseData
		Assets []assetView
	}{newBaseData(r, sess, tenant, "brand"), assets})
}
