package browser_test

import (
	"strings"
	"testing"

	"github.com/playwright-community/playwright-go"
)

// TestLoginLandsOnDashboard signs in with a bound tenant and checks the
// dashboard shows the gym name and KPI counts.
func TestLoginLandsOnDashboard(t *testing.T) {
	app := newTestApp(t)
	app.Backend.bindTenant("g1", "Iron Temple")
	app.Backend.counts["members"] = 42

	page := app.newPage(t)
	app.login(t, page, "/app")

	content, err := page.Content()
	if err != nil {
		t.Fatalf("failed to read page content: %v", err)
	}
	if !strings.Contains(content, "Iron Temple") {
		t.Error("gym name missing from dashboard")
	}
	if !strings.Contains(content, "42") {
		t.Error("member count missing from dashboard")
	}
}

// TestOnboardingCreatesWorkspace signs in without a workspace, completes
// the onboarding form and checks the dashboard comes up bound.
func TestOnboardingCreatesWorkspace(t *testing.T) {
	app := newTestApp(t)

	page := app.newPage(t)
	app.login(t, page, "/onboarding")

	if err := page.Locator("input[name=gym_name]").Fill("Iron Temple"); err != nil {
		t.Fatalf("failed to fill gym name: %v", err)
	}
	if err := page.Locator("input[name=city]").Fill("Pune"); err != nil {
		t.Fatalf("failed to fill city: %v", err)
	}
	if err := page.Locator("button[type=submit]").Click(); err != nil {
		t.Fatalf("failed to submit onboarding: %v", err)
	}
	if err := page.WaitForURL(app.BaseURL+"/app", playwright.PageWaitForURLOptions{
		Timeout: playwright.Float(10000),
	}); err != nil {
		t.Fatalf("onboarding did not redirect to /app: %v", err)
	}

	content, err := page.Content()
	if err != nil {
		t.Fatalf("failed to read page content: %v", err)
	}
	if !strings.Contains(content, "Iron Temple") {
		t.Error("gym name missing after onboarding")
	}
}
