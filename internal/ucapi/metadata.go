package ucapi

import (
	"encoding/json"
	"fmt"
	"os"
)

// DriverMetadata describes the integration driver to the remote.
// The wire format matches the driver.json file the remote expects.
type DriverMetadata struct {
	DriverID        string            `json:"driver_id"`
	Version         string            `json:"version"`
	MinCoreAPI      string            `json:"min_core_api,omitempty"`
	Name            map[string]string `json:"name"`
	Icon            string            `json:"icon,omitempty"`
	Description     map[string]string `json:"description,omitempty"`
	Port            int               `json:"port,omitempty"`
	DeveloperName   string            `json:"developer_name,omitempty"`
	SetupDataSchema *SetupDataSchema  `json:"setup_data_schema,omitempty"`
}

// SetupDataSchema describes the initial setup form shown by the remote
type SetupDataSchema struct {
	Title    map[string]string `json:"title"`
	Settings []SettingsInput   `json:"settings"`
}

// LoadDriverMetadata reads and validates driver metadata from a JSON file
func LoadDriverMetadata(path string) (*DriverMetadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read driver metadata: %w", err)
	}

	var meta DriverMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("failed to parse driver metadata: %w", err)
	}

	if err := meta.Validate(); err != nil {
		return nil, fmt.Errorf("driver metadata validation failed: %w", err)
	}

	return &meta, nil
}

// Validate checks required metadata fields
func (m *DriverMetadata) Validate() error {
	if m.DriverID == "" {
		return fmt.Errorf("driver_id is required")
	}
	if m.Version == "" {
		return fmt.Errorf("version is required")
	}
	if len(m.Name) == 0 {
		return fmt.Errorf("name is required")
	}
	return nil
}

// VersionData returns the driver_version response payload
func (m *DriverMetadata) VersionData() DriverVersionData {
	name := m.Name["en"]
	if name == "" {
		for _, n := range m.Name {
			name = n
			break
		}
	}
	return DriverVersionData{
		Name: name,
		Version: map[string]string{
			"driver": m.Version,
		},
	}
}
