// Package creds loads machine connection credentials for the CLI.
package creds

import (
	"encoding/json"
	"fmt"
	"os"
)

// MachineCredentials holds the connection details for a Viam machine.
type MachineCredentials struct {
	Address  string `json:"address"`
	EntityID string `json:"entity_id"`
	APIKey   string `json:"api_key"`
}

// Load reads machine credentials from a JSON file.
func Load(path string) (*MachineCredentials, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading credentials file: %w", err)
	}
	var c MachineCredentials
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parsing credentials file: %w", err)
	}
	if c.Address == "" {
		return nil, fmt.Errorf("credentials file %s has no address", path)
	}
	return &c, nil
}
