package device

import (
	"encoding/json"
	"fmt"
)

// Device represents a controllable device that can process commands
type Device interface {
	// Process handles a JSON-encoded action and executes the corresponding operation
	Process(actionJSON []byte) (*ActionResponse, error)

	// GetDeviceInfo returns basic information about the device
	GetDeviceInfo() DeviceInfo
}

// DeviceInfo contains basic information about a device
type DeviceInfo struct {
	Type         string   `json:"type"`
	Model        string   `json:"model"`
	Address      string   `json:"address"`
	Capabilities []string `json:"capabilities"`
}

// ActionType represents the type of action to perform
type ActionType string

const (
	ActionTypeNavigation ActionType = "navigation"
	ActionTypeMedia      ActionType = "media"
	ActionTypeLaunch     ActionType = "launch"
)

// ActionRequest represents a JSON action request
type ActionRequest struct {
	Type       ActionType             `json:"type"`       // "navigation", "media" or "launch"
	Action     string                 `json:"action"`     // specific action name
	Parameters map[string]interface{} `json:"parameters"` // optional parameters
}

// ActionResponse represents the response from processing an action
type ActionResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// NavigationAction represents available navigation actions
type NavigationAction string

const (
	NavigationActionDPadUp    NavigationAction = "dpad_up"
	NavigationActionDPadDown  NavigationAction = "dpad_down"
	NavigationActionDPadLeft  NavigationAction = "dpad_left"
	NavigationActionDPadRight NavigationAction = "dpad_right"
	NavigationActionSelect    NavigationAction = "select"
	NavigationActionHome      NavigationAction = "home"
	NavigationActionBack      NavigationAction = "back"
	NavigationActionMenu      NavigationAction = "menu"
)

// MediaAction represents available media transport actions
type MediaAction string

const (
	MediaActionPlayPause   MediaAction = "play_pause"
	MediaActionFastForward MediaAction = "fast_forward"
	MediaActionRewind      MediaAction = "rewind"
)

// LaunchAction represents available app-launch actions
type LaunchAction string

const (
	// LaunchActionApp launches a catalog app by its id ("app_id" parameter)
	LaunchActionApp LaunchAction = "app"
	// LaunchActionPackage launches an arbitrary Android package ("package" parameter)
	LaunchActionPackage LaunchAction = "package"
)

// ParseActionRequest parses JSON input into ActionRequest
func ParseActionRequest(actionJSON []byte) (*ActionRequest, error) {
	var request ActionRequest
	if err := json.Unmarshal(actionJSON, &request); err != nil {
		return nil, fmt.Errorf("failed to parse action request: %w", err)
	}

	// Validate required fields
	if request.Type == "" {
		return nil, fmt.Errorf("action type is required")
	}

	if request.Action == "" {
		return nil, fmt.Errorf("action is required")
	}

	return &request, nil
}
