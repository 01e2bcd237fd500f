package orchestrators

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"strings"

	"fitsutra/internal/adapters/email"
	"fitsutra/internal/domain/record"
)

// Demo requests land in the leads table before any workspace exists, so
// they are written with a service credential rather than a user session.
const leadStageDemo = "demo"

// BookDemoInput carries input for the demo-request orchestrator.
type BookDemoInput struct {
	Name    string
	Email   string
	Phone   string
	City    string
	Company string
}

// BookDemoDeps holds dependencies for BookDemo.
type BookDemoDeps struct {
	Data         RowInserter
	Email        email.Sender
	ServiceToken string
	SalesInbox   string
	// DefaultGymID binds the lead to the house gym so it shows up on a
	// Growth page; empty writes an unrouted lead.
	DefaultGymID string
}

// ExecuteBookDemo records a demo request as a lead and alerts the sales
// inbox. The email is best effort: a provider failure logs and the lead
// still counts as captured.
// PRE: Name and Email are non-empty
// POST: One lead row exists with stage "demo"
func ExecuteBookDemo(ctx context.Context, input BookDemoInput, deps BookDemoDeps) error {
	name := strings.TrimSpace(input.Name)
	addr := strings.TrimSpace(strings.ToLower(input.Email))
	if name == "" || addr == "" {
		return errors.New("name and email are required")
	}

	source := "Book Demo"
	if city := strings.TrimSpace(input.City); city != "" {
		source += " · " + city
	}
	if company := strings.TrimSpace(input.Company); company != "" {
		source += " · " + company
	}

	lead := record.Record{
		"name":   name,
		"email":  addr,
		"phone":  strings.TrimSpace(input.Phone),
		"stage":  leadStageDemo,
		"source": source,
	}
	if deps.DefaultGymID != "" {
		lead["gym_id"] = deps.DefaultGymID
	}
	_, err := deps.Data.Insert(ctx, "leads", deps.ServiceToken, []record.Record{lead})
	if err != nil {
		return fmt.Errorf("failed to record demo request: %w", err)
	}
	slog.Info("lead_event", "event", "demo_requested", "email", addr, "source", source)

	if deps.Email != nil && deps.SalesInbox != "" {
		_, sendErr := deps.Email.Send(ctx, email.SendRequest{
			To:      []string{deps.SalesInbox},
			Subject: "New demo request: " + name,
			HTML: fmt.Sprintf("<p><strong>%s</strong> (%s, %s) requested a demo.</p><p>Source: %s</p>",
				html.EscapeString(name), html.EscapeString(addr),
				html.EscapeString(input.Phone), html.EscapeString(source)),
			ReplyTo: addr,
		})
		if sendErr != nil {
			slog.Warn("lead_event", "event", "demo_alert_failed", "error", sendErr.Error())
		}
	}
	return nil
}
