package tenant

import (
	"errors"
	"strings"
)

// Max length constants for user-editable fields.
const (
	MaxNameLength = 100
)

// Gym is the tenant every other record is scoped to.
// Created only by the workspace bootstrap; all tenant-scoped rows must carry
// a gym_id matching the caller's resolved profile.
type Gym struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	City    string `json:"city"`
	State   string `json:"state"`
	OwnerID string `json:"owner_id"`
}

// Validate checks if the Gym has valid data.
// PRE: Gym struct is initialized
// POST: Returns error if validation fails, nil otherwise
func (g *Gym) Validate() error {
	if strings.TrimSpace(g.Name) == "" {
		return errors.New("gym name cannot be empty")
	}
	if len(g.Name) > MaxNameLength {
		return errors.New("gym name cannot exceed 100 characters")
	}
	if g.OwnerID == "" {
		return errors.New("gym owner cannot be empty")
	}
	return nil
}
