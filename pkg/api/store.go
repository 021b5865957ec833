package api

import "context"

// StateStore persists installation states by id.
type StateStore interface {
	// Get returns the state saved under id. It returns (nil, nil) when no
	// state exists or the stored payload cannot be decoded.
	Get(ctx context.Context, id string) (*InstallationState, error)

	// Save stores state under state.ID, replacing any previous value.
	Save(ctx context.Context, state *InstallationState) error
}
