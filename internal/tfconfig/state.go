package tfconfig

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/kompox/sandboxops/domain/model"
)

// State is the subset of a state file exposed by the API.
type State struct {
	TerraformVersion string                       `json:"terraformVersion,omitempty"`
	Serial           int64                        `json:"serial"`
	Outputs          map[string]model.OutputValue `json:"outputs"`
	Resources        []model.StateResource        `json:"resources"`
}

type rawState struct {
	TerraformVersion string                       `json:"terraform_version"`
	Serial           int64                        `json:"serial"`
	Outputs          map[string]model.OutputValue `json:"outputs"`
	Resources        []struct {
		Mode     string `json:"mode"`
		Type     string `json:"type"`
		Name     string `json:"name"`
		Provider string `json:"provider"`
		Module   string `json:"module"`
	} `json:"resources"`
}

// ParseState decodes a state document. Resources without a module are reported under "root".
func ParseState(data []byte) (*State, error) {
	var raw rawState
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing state: %w", err)
	}
	st := &State{
		TerraformVersion: raw.TerraformVersion,
		Serial:           raw.Serial,
		Outputs:          raw.Outputs,
		Resources:        make([]model.StateResource, 0, len(raw.Resources)),
	}
	if st.Outputs == nil {
		st.Outputs = map[string]model.OutputValue{}
	}
	for _, r := range raw.Resources {
		module := r.Module
		if module == "" {
			module = "root"
		}
		st.Resources = append(st.Resources, model.StateResource{
			Type:     r.Type,
			Name:     r.Name,
			Provider: r.Provider,
			Module:   module,
			Mode:     r.Mode,
		})
	}
	return st, nil
}

// ReadState reads the state file at path. A missing file yields (nil, nil).
func ReadState(path string) (*State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return ParseState(data)
}

// ParseOutputJSON decodes the document printed by `output -json`.
func ParseOutputJSON(data []byte) (map[string]model.OutputValue, error) {
	out := map[string]model.OutputValue{}
	if len(data) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("parsing outputs: %w", err)
	}
	return out, nil
}
