package firetv

import (
	"context"
	"fmt"

	"ember/internal/device"
)

// Remote implements the Device interface for Amazon Fire TV devices
type Remote struct {
	client *Client
	info   device.DeviceInfo
}

// NewRemote creates a new Fire TV remote device
func NewRemote(address, token string, debug bool) *Remote {
	client := NewClient(address, token, debug)

	return &Remote{
		client: client,
		info: device.DeviceInfo{
			Type:    "firetv",
			Model:   "Amazon Fire TV",
			Address: address,
			Capabilities: []string{
				"navigation",
				"media_control",
				"app_launch",
			},
		},
	}
}

// Client returns the underlying REST client
func (r *Remote) Client() *Client {
	return r.client
}

// GetDeviceInfo returns information about this Fire TV device
func (r *Remote) GetDeviceInfo() device.DeviceInfo {
	return r.info
}

// Process handles JSON action requests and routes them to appropriate methods
func (r *Remote) Process(actionJSON []byte) (*device.ActionResponse, error) {
	request, err := device.ParseActionRequest(actionJSON)
	if err != nil {
		return &device.ActionResponse{
			Success: false,
			Error:   err.Error(),
		}, nil
	}

	ctx := context.Background()

	switch request.Type {
	case device.ActionTypeNavigation:
		return r.processNavigationAction(ctx, request)
	case device.ActionTypeMedia:
		return r.processMediaAction(ctx, request)
	case device.ActionTypeLaunch:
		return r.processLaunchAction(ctx, request)
	default:
		return &device.ActionResponse{
			Success: false,
			Error:   fmt.Sprintf("unsupported action type: %s", request.Type),
		}, nil
	}
}

// navigationActionMap maps device navigation actions to Fire TV API actions
var navigationActionMap = map[device.NavigationAction]NavigationAction{
	device.NavigationActionDPadUp:    DPadUp,
	device.NavigationActionDPadDown:  DPadDown,
	device.NavigationActionDPadLeft:  DPadLeft,
	device.NavigationActionDPadRight: DPadRight,
	device.NavigationActionSelect:    Select,
	device.NavigationActionHome:      Home,
	device.NavigationActionBack:      Back,
	device.NavigationActionMenu:      Menu,
}

// mediaActionMap maps device media actions to Fire TV API action and direction
type mediaActionInfo struct {
	action    MediaAction
	direction ScanDirection
}

var mediaActionMap = map[device.MediaAction]mediaActionInfo{
	device.MediaActionPlayPause:   {action: Play},
	device.MediaActionFastForward: {action: Scan, direction: ScanForward},
	device.MediaActionRewind:      {action: Scan, direction: ScanBack},
}

func (r *Remote) processNavigationAction(ctx context.Context, request *device.ActionRequest) (*device.ActionResponse, error) {
	action, exists := navigationActionMap[device.NavigationAction(request.Action)]
	if !exists {
		return &device.ActionResponse{
			Success: false,
			Error:   fmt.Sprintf("unsupported navigation action: %s", request.Action),
		}, nil
	}

	if err := r.client.Navigate(ctx, action); err != nil {
		return &device.ActionResponse{
			Success: false,
			Error:   fmt.Sprintf("navigation request failed: %v", err),
		}, nil
	}

	return &device.ActionResponse{
		Success: true,
		Data:    fmt.Sprintf("Navigation action '%s' executed successfully", request.Action),
	}, nil
}

func (r *Remote) processMediaAction(ctx context.Context, request *device.ActionRequest) (*device.ActionResponse, error) {
	info, exists := mediaActionMap[device.MediaAction(request.Action)]
	if !exists {
		return &device.ActionResponse{
			Success: false,
			Error:   fmt.Sprintf("unsupported media action: %s", request.Action),
		}, nil
	}

	if err := r.client.Media(ctx, info.action, info.direction); err != nil {
		return &device.ActionResponse{
			Success: false,
			Error:   fmt.Sprintf("media request failed: %v", err),
		}, nil
	}

	return &device.ActionResponse{
		Success: true,
		Data:    fmt.Sprintf("Media action '%s' executed successfully", request.Action),
	}, nil
}

func (r *Remote) processLaunchAction(ctx context.Context, request *device.ActionRequest) (*device.ActionResponse, error) {
	pkg, err := r.resolvePackage(request)
	if err != nil {
		return &device.ActionResponse{
			Success: false,
			Error:   err.Error(),
		}, nil
	}

	if err := r.client.LaunchApp(ctx, pkg); err != nil {
		return &device.ActionResponse{
			Success: false,
			Error:   fmt.Sprintf("app launch failed: %v", err),
		}, nil
	}

	return &device.ActionResponse{
		Success: true,
		Data:    fmt.Sprintf("Launched %s", pkg),
	}, nil
}

// resolvePackage extracts the Android package to launch from a launch request
func (r *Remote) resolvePackage(request *device.ActionRequest) (string, error) {
	switch device.LaunchAction(request.Action) {
	case device.LaunchActionApp:
		id, ok := request.Parameters["app_id"].(string)
		if !ok || id == "" {
			return "", fmt.Errorf("app_id parameter is required for app launch")
		}
		app, found := AppByID(id)
		if !found {
			return "", fmt.Errorf("unknown app id: %s", id)
		}
		return app.Package, nil

	case device.LaunchActionPackage:
		pkg, ok := request.Parameters["package"].(string)
		if !ok || pkg == "" {
			return "", fmt.Errorf("package parameter is required for package launch")
		}
		if !ValidPackageName(pkg) {
			return "", fmt.Errorf("invalid package name: %s", pkg)
		}
		return pkg, nil

	default:
		return "", fmt.Errorf("unsupported launch action: %s", request.Action)
	}
}
