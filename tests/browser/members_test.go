package browser_test

import (
	"testing"

	"github.com/playwright-community/playwright-go"
)

// TestCreateMemberShowsInTable adds a member through the page form and
// checks the row appears in the table after the post-write refresh.
func TestCreateMemberShowsInTable(t *testing.T) {
	app := newTestApp(t)
	app.Backend.bindTenant("g1", "Iron Temple")

	page := app.newPage(t)
	app.login(t, page, "/app")

	if _, err := page.Goto(app.BaseURL + "/app/crm"); err != nil {
		t.Fatalf("failed to navigate to crm page: %v", err)
	}

	form := page.Locator(".create-form").First()
	if _, err := form.Locator("summary").ElementHandle(); err != nil {
		t.Fatalf("create form missing: %v", err)
	}
	if err := form.Locator("summary").Click(); err != nil {
		t.Fatalf("failed to open create form: %v", err)
	}
	if err := form.Locator("input[name=full_name]").Fill("Jane Doe"); err != nil {
		t.Fatalf("failed to fill name: %v", err)
	}
	if err := form.Locator("input[name=monthly_fee]").Fill("1500"); err != nil {
		t.Fatalf("failed to fill fee: %v", err)
	}
	if err := form.Locator("button[type=submit]").Click(); err != nil {
		t.Fatalf("failed to submit member: %v", err)
	}
	if err := page.WaitForURL(app.BaseURL+"/app/crm*", playwright.PageWaitForURLOptions{
		Timeout: playwright.Float(10000),
	}); err != nil {
		t.Fatalf("create did not redirect back to the page: %v", err)
	}

	row := page.Locator("td", playwright.PageLocatorOptions{HasText: "Jane Doe"}).First()
	if err := row.WaitFor(playwright.LocatorWaitForOptions{Timeout: playwright.Float(5000)}); err != nil {
		t.Errorf("created member not visible in table: %v", err)
	}
}
