package orchestrators

import (
	"context"
	"fmt"
	"log/slog"

	"fitsutra/internal/domain/profile"
	"fitsutra/internal/domain/record"
	"fitsutra/internal/domain/session"
	"fitsutra/internal/domain/tenant"
)

// RowInserter defines the data call the bootstrap needs.
type RowInserter interface {
	Insert(ctx context.Context, table, accessToken string, rows []record.Record) ([]record.Record, error)
}

// CreateWorkspaceInput carries input for the workspace bootstrap.
type CreateWorkspaceInput struct {
	GymName string
	City    string
	State   string
}

// CreateWorkspaceDeps holds dependencies for CreateWorkspace.
type CreateWorkspaceDeps struct {
	Data RowInserter
}

// CreateWorkspaceResult reports the bound tenant.
type CreateWorkspaceResult struct {
	GymID string
}

// ExecuteCreateWorkspace creates the gym row and binds the caller to it as
// owner. The two inserts are not atomic: if the profile insert fails after
// the gym insert succeeded, the orphaned gym is logged for cleanup and the
// caller sees the error. Retrying creates a second gym, which backoffice
// tooling reconciles.
// PRE: sess is a live session; GymName is non-empty
// POST: On success a profile row binds the user to the new gym as owner
func ExecuteCreateWorkspace(ctx context.Context, sess session.Session, input CreateWorkspaceInput, deps CreateWorkspaceDeps) (CreateWorkspaceResult, error) {
	g := tenant.Gym{
		Name:    input.GymName,
		City:    input.City,
		State:   input.State,
		OwnerID: sess.User.ID,
	}
	if err := g.Validate(); err != nil {
		return CreateWorkspaceResult{}, err
	}

	gyms, err := deps.Data.Insert(ctx, "gyms", sess.AccessToken, []record.Record{{
		"name":     g.Name,
		"city":     g.City,
		"state":    g.State,
		"owner_id": g.OwnerID,
	}})
	if err != nil {
		return CreateWorkspaceResult{}, fmt.Errorf("failed to create gym: %w", err)
	}
	if len(gyms) == 0 || gyms[0].ID() == "" {
		return CreateWorkspaceResult{}, fmt.Errorf("gym insert returned no row")
	}
	gymID := gyms[0].ID()

	_, err = deps.Data.Insert(ctx, "profiles", sess.AccessToken, []record.Record{{
		"user_id": sess.User.ID,
		"gym_id":  gymID,
		"role":    profile.RoleOwner,
	}})
	if err != nil {
		slog.Error("workspace_event", "event", "orphaned_gym", "gym_id", gymID, "user_id", sess.User.ID, "error", err.Error())
		return CreateWorkspaceResult{}, fmt.Errorf("gym created but profile binding failed: %w", err)
	}

	slog.Info("workspace_event", "event", "workspace_created", "gym_id", gymID, "user_id", sess.User.ID)
	return CreateWorkspaceResult{GymID: gymID}, nil
}
