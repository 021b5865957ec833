package persistence

import (
	"encoding/json"
	"errors"

	"github.com/petrijr/appinstall/pkg/api"
)

// EncodeState serializes a state as JSON.
func EncodeState(state *api.InstallationState) ([]byte, error) {
	return json.Marshal(state)
}

// DecodeState parses a state produced by EncodeState. Leaf results come back
// as generic JSON values (maps, slices, float64, ...).
func DecodeState(data []byte) (*api.InstallationState, error) {
	if len(data) == 0 {
		return nil, errors.New("empty payload")
	}
	var state api.InstallationState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, err
	}
	if state.ID == "" || state.Status == "" {
		return nil, errors.New("payload is not an installation state")
	}
	if state.Data == nil {
		state.Data = map[string]any{}
	}
	return &state, nil
}
