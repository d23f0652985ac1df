// Copyright 2025 Arion Yau
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package driver

import (
	"encoding/json"
	"fmt"
	"strings"

	"ember/internal/device"
	"ember/internal/firetv"
	"ember/internal/ucapi"
)

// CustomAppPrefix launches an arbitrary package: "custom_app:com.foo.bar"
const CustomAppPrefix = "custom_app:"

// simpleCommandActions maps simple-command identifiers to device actions
var simpleCommandActions = map[string]device.ActionRequest{
	"DPAD_UP":      {Type: device.ActionTypeNavigation, Action: string(device.NavigationActionDPadUp)},
	"DPAD_DOWN":    {Type: device.ActionTypeNavigation, Action: string(device.NavigationActionDPadDown)},
	"DPAD_LEFT":    {Type: device.ActionTypeNavigation, Action: string(device.NavigationActionDPadLeft)},
	"DPAD_RIGHT":   {Type: device.ActionTypeNavigation, Action: string(device.NavigationActionDPadRight)},
	"SELECT":       {Type: device.ActionTypeNavigation, Action: string(device.NavigationActionSelect)},
	"HOME":         {Type: device.ActionTypeNavigation, Action: string(device.NavigationActionHome)},
	"BACK":         {Type: device.ActionTypeNavigation, Action: string(device.NavigationActionBack)},
	"MENU":         {Type: device.ActionTypeNavigation, Action: string(device.NavigationActionMenu)},
	"PLAY_PAUSE":   {Type: device.ActionTypeMedia, Action: string(device.MediaActionPlayPause)},
	"FAST_FORWARD": {Type: device.ActionTypeMedia, Action: string(device.MediaActionFastForward)},
	"REWIND":       {Type: device.ActionTypeMedia, Action: string(device.MediaActionRewind)},
}

// SimpleCommands returns the simple-command identifiers of the remote
// entity: the fixed navigation and media set plus one LAUNCH_* command per
// catalog app.
func SimpleCommands() []string {
	commands := []string{
		"DPAD_UP", "DPAD_DOWN", "DPAD_LEFT", "DPAD_RIGHT",
		"SELECT", "HOME", "BACK", "MENU",
		"PLAY_PAUSE", "FAST_FORWARD", "REWIND",
	}
	for _, app := range firetv.Apps() {
		commands = append(commands, firetv.LaunchCommand(app))
	}
	return commands
}

// ActionForCommand translates a simple command into a device action request
func ActionForCommand(command string) (*device.ActionRequest, error) {
	if action, ok := simpleCommandActions[command]; ok {
		return &action, nil
	}

	if strings.HasPrefix(command, "LAUNCH_") {
		app, found := firetv.AppByLaunchCommand(command)
		if !found {
			return nil, fmt.Errorf("unknown app command: %s", command)
		}
		return &device.ActionRequest{
			Type:       device.ActionTypeLaunch,
			Action:     string(device.LaunchActionApp),
			Parameters: map[string]interface{}{"app_id": app.ID},
		}, nil
	}

	if strings.HasPrefix(command, CustomAppPrefix) {
		pkg := strings.TrimPrefix(command, CustomAppPrefix)
		if !firetv.ValidPackageName(pkg) {
			return nil, fmt.Errorf("invalid package name: %s", pkg)
		}
		return &device.ActionRequest{
			Type:       device.ActionTypeLaunch,
			Action:     string(device.LaunchActionPackage),
			Parameters: map[string]interface{}{"package": pkg},
		}, nil
	}

	return nil, fmt.Errorf("unhandled command: %s", command)
}

// ExecuteSimpleCommand runs a simple command against a device
func ExecuteSimpleCommand(dev device.Device, command string) (*device.ActionResponse, error) {
	action, err := ActionForCommand(command)
	if err != nil {
		return nil, err
	}

	actionJSON, err := json.Marshal(action)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal action: %w", err)
	}

	return dev.Process(actionJSON)
}

// NewRemoteEntity builds the remote entity exposed for a paired Fire TV
func NewRemoteEntity(deviceID, deviceName string) *ucapi.Entity {
	return &ucapi.Entity{
		EntityID:   deviceID + "_remote",
		EntityType: ucapi.EntityTypeRemote,
		DeviceID:   deviceID,
		Name:       map[string]string{"en": deviceName + " Remote"},
		Features: []string{
			ucapi.FeatureSendCmd,
			ucapi.FeatureOnOff,
			ucapi.FeatureToggle,
		},
		Attributes: map[string]interface{}{
			ucapi.AttrState: ucapi.StateOn,
		},
		Options: &ucapi.RemoteOptions{
			SimpleCommands: SimpleCommands(),
			ButtonMapping:  buttonMapping(),
			UserInterface: &ucapi.UserInterface{
				Pages: uiPages(),
			},
		},
	}
}

// buttonMapping binds the physical remote buttons to simple commands
func buttonMapping() []ucapi.ButtonMapping {
	return []ucapi.ButtonMapping{
		{Button: ucapi.ButtonDPadUp, ShortPress: ucapi.SendCmd("DPAD_UP")},
		{Button: ucapi.ButtonDPadDown, ShortPress: ucapi.SendCmd("DPAD_DOWN")},
		{Button: ucapi.ButtonDPadLeft, ShortPress: ucapi.SendCmd("DPAD_LEFT")},
		{Button: ucapi.ButtonDPadRight, ShortPress: ucapi.SendCmd("DPAD_RIGHT")},
		{Button: ucapi.ButtonDPadMiddle, ShortPress: ucapi.SendCmd("SELECT")},
		{Button: ucapi.ButtonBack, ShortPress: ucapi.SendCmd("BACK")},
		{Button: ucapi.ButtonHome, ShortPress: ucapi.SendCmd("HOME"), LongPress: ucapi.SendCmd("MENU")},
		{Button: ucapi.ButtonPlay, ShortPress: ucapi.SendCmd("PLAY_PAUSE")},

		// Quick app launchers on the colour buttons
		{Button: ucapi.ButtonRed, ShortPress: ucapi.SendCmd("LAUNCH_NETFLIX")},
		{Button: ucapi.ButtonGreen, ShortPress: ucapi.SendCmd("LAUNCH_PRIME_VIDEO")},
		{Button: ucapi.ButtonYellow, ShortPress: ucapi.SendCmd("LAUNCH_YOUTUBE")},
		{Button: ucapi.ButtonBlue, ShortPress: ucapi.SendCmd("LAUNCH_DISNEY_PLUS")},
	}
}

func uiPages() []ucapi.UIPage {
	return []ucapi.UIPage{
		navigationPage(),
		appGridPage("streaming", "Streaming", "streaming"),
		musicPage(),
		appGridPage("utility", "Apps & Settings", "utility", "system"),
	}
}

func textItem(x, y int, text, command string) ucapi.UIItem {
	return ucapi.UIItem{
		Type:     "text",
		Location: ucapi.GridLocation{X: x, Y: y},
		Text:     text,
		Command:  ucapi.SendCmd(command),
	}
}

func navigationPage() ucapi.UIPage {
	return ucapi.UIPage{
		PageID: "navigation",
		Name:   "Navigation",
		Grid:   ucapi.GridSize{Width: 4, Height: 6},
		Items: []ucapi.UIItem{
			// D-Pad cluster
			textItem(1, 0, "UP", "DPAD_UP"),
			textItem(0, 1, "LEFT", "DPAD_LEFT"),
			textItem(1, 1, "OK", "SELECT"),
			textItem(2, 1, "RIGHT", "DPAD_RIGHT"),
			textItem(1, 2, "DOWN", "DPAD_DOWN"),

			// System buttons
			textItem(3, 0, "HOME", "HOME"),
			textItem(3, 1, "BACK", "BACK"),
			textItem(3, 2, "MENU", "MENU"),

			// Media transport
			textItem(0, 4, "REW", "REWIND"),
			textItem(1, 4, "PLAY", "PLAY_PAUSE"),
			textItem(2, 4, "FWD", "FAST_FORWARD"),
		},
	}
}

// appGridPage lays catalog apps of the given categories out on a 4-wide grid
func appGridPage(pageID, name string, categories ...string) ucapi.UIPage {
	const gridWidth, gridHeight = 4, 6

	var items []ucapi.UIItem
	row, col := 0, 0
	for _, app := range firetv.AppsByCategory(categories...) {
		if row >= gridHeight {
			break
		}

		label := app.Name
		if len(label) > 8 {
			label = label[:8]
		}
		items = append(items, textItem(col, row, label, firetv.LaunchCommand(app)))

		col++
		if col >= gridWidth {
			col = 0
			row++
		}
	}

	return ucapi.UIPage{
		PageID: pageID,
		Name:   name,
		Grid:   ucapi.GridSize{Width: gridWidth, Height: gridHeight},
		Items:  items,
	}
}

func musicPage() ucapi.UIPage {
	page := appGridPage("music", "Music", "music")

	// Media transport row at the bottom of the page
	page.Items = append(page.Items,
		textItem(0, 5, "REW", "REWIND"),
		textItem(1, 5, "PLAY", "PLAY_PAUSE"),
		textItem(2, 5, "FWD", "FAST_FORWARD"),
	)

	return page
}
