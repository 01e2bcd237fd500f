// Package tenantctx resolves which gym the signed-in user belongs to.
// Every data read downstream is scoped by the resolved gym id; a user
// without one is routed to onboarding instead of an error page.
package tenantctx

import (
	"context"
	"fmt"

	"fitsutra/internal/adapters/data"
	"fitsutra/internal/domain/profile"
	"fitsutra/internal/domain/session"
)

// ProfileReader is the slice of the data client the resolver needs.
type ProfileReader interface {
	FetchInto(ctx context.Context, resource, accessToken string, v any) error
}

// Tenant is the resolved workspace context for one request.
type Tenant struct {
	GymID   string
	GymName string
	Role    string
}

// Bound reports whether the user has a workspace.
func (t Tenant) Bound() bool {
	return t.GymID != ""
}

// Resolver looks up the caller's profile row and its joined gym name.
type Resolver struct {
	reader ProfileReader
}

// NewResolver creates a Resolver over the given data client.
func NewResolver(reader ProfileReader) *Resolver {
	return &Resolver{reader: reader}
}

// Resolve fetches the caller's profile and settles into one of three
// states: bound to a gym, needs onboarding (no profile row or no gym), or
// an error the caller may retry. An absent session short-circuits to the
// unbound state without a network call.
func (r *Resolver) Resolve(ctx context.Context, sess session.Session) (Tenant, error) {
	if !sess.Valid() {
		return Tenant{}, nil
	}

	resource := data.Table("profiles").
		Select("gym_id,role,gym:gyms(name)").
		Eq("user_id", sess.User.ID).
		Limit(1).
		Resource()

	var rows []profile.Profile
	if err := r.reader.FetchInto(ctx, resource, sess.AccessToken, &rows); err != nil {
		return Tenant{}, fmt.Errorf("failed to resolve workspace: %w", err)
	}
	if len(rows) == 0 {
		// No profile row yet; the user signed up but never completed
		// onboarding.
		return Tenant{}, nil
	}

	p := rows[0]
	if !p.HasTenant() {
		return Tenant{Role: p.Role}, nil
	}
	return Tenant{
		GymID:   *p.GymID,
		GymName: p.GymName(),
		Role:    p.Role,
	}, nil
}
