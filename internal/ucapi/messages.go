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

// Package ucapi implements the driver side of the Unfolded Circle Remote
// Two/3 integration WebSocket protocol. The remote connects to the driver,
// exchanges JSON request/response frames and receives driver events.
package ucapi

import "encoding/json"

// Frame kinds on the integration WebSocket
const (
	KindRequest  = "req"
	KindResponse = "resp"
	KindEvent    = "event"
)

// Request messages sent by the remote
const (
	MsgGetDriverVersion     = "get_driver_version"
	MsgGetDriverMetadata    = "get_driver_metadata"
	MsgGetDeviceState       = "get_device_state"
	MsgGetAvailableEntities = "get_available_entities"
	MsgSubscribeEvents      = "subscribe_events"
	MsgUnsubscribeEvents    = "unsubscribe_events"
	MsgGetEntityStates      = "get_entity_states"
	MsgEntityCommand        = "entity_command"
	MsgSetupDriver          = "setup_driver"
	MsgSetDriverUserData    = "set_driver_user_data"
	MsgAbortDriverSetup     = "abort_driver_setup"
)

// Response and event messages sent by the driver
const (
	MsgAuthentication    = "authentication"
	MsgDriverVersion     = "driver_version"
	MsgDriverMetadata    = "driver_metadata"
	MsgDeviceState       = "device_state"
	MsgAvailableEntities = "available_entities"
	MsgEntityStates      = "entity_states"
	MsgResult            = "result"
	MsgDriverSetupChange = "driver_setup_change"
	MsgEntityChange      = "entity_change"
)

// Event categories
const (
	CategoryDevice = "DEVICE"
	CategoryEntity = "ENTITY"
)

// StatusCode mirrors the protocol status codes
type StatusCode int

const (
	StatusOK             StatusCode = 200
	StatusBadRequest     StatusCode = 400
	StatusUnauthorized   StatusCode = 401
	StatusNotFound       StatusCode = 404
	StatusServerError    StatusCode = 500
	StatusNotImplemented StatusCode = 501
	StatusTimeout        StatusCode = 504
)

// DeviceState represents the integration device state reported to the remote
type DeviceState string

const (
	DeviceStateConnected    DeviceState = "CONNECTED"
	DeviceStateConnecting   DeviceState = "CONNECTING"
	DeviceStateDisconnected DeviceState = "DISCONNECTED"
	DeviceStateError        DeviceState = "ERROR"
)

// Setup flow states for driver_setup_change events
type SetupState string

const (
	SetupStateSetup          SetupState = "SETUP"
	SetupStateWaitUserAction SetupState = "WAIT_USER_ACTION"
	SetupStateOK             SetupState = "OK"
	SetupStateError          SetupState = "ERROR"
)

// SetupError identifies why a setup flow failed
type SetupError string

const (
	SetupErrorNone               SetupError = "NONE"
	SetupErrorNotFound           SetupError = "NOT_FOUND"
	SetupErrorConnectionRefused  SetupError = "CONNECTION_REFUSED"
	SetupErrorAuthorizationError SetupError = "AUTHORIZATION_ERROR"
	SetupErrorTimeout            SetupError = "TIMEOUT"
	SetupErrorOther              SetupError = "OTHER"
)

// RequestFrame is a request from the remote to the driver
type RequestFrame struct {
	Kind    string          `json:"kind"`
	ID      int             `json:"id"`
	Msg     string          `json:"msg"`
	MsgData json.RawMessage `json:"msg_data,omitempty"`
}

// ResponseFrame is the driver's answer to a request
type ResponseFrame struct {
	Kind    string      `json:"kind"`
	ReqID   int         `json:"req_id"`
	Msg     string      `json:"msg"`
	Code    StatusCode  `json:"code"`
	MsgData interface{} `json:"msg_data,omitempty"`
}

// EventFrame is an unsolicited driver event
type EventFrame struct {
	Kind    string      `json:"kind"`
	Msg     string      `json:"msg"`
	Cat     string      `json:"cat,omitempty"`
	TS      string      `json:"ts,omitempty"`
	MsgData interface{} `json:"msg_data,omitempty"`
}

// SetupDriverData is the msg_data of a setup_driver request
type SetupDriverData struct {
	SetupData   map[string]string `json:"setup_data"`
	Reconfigure bool              `json:"reconfigure,omitempty"`
}

// UserDataResponse is the msg_data of a set_driver_user_data request
type UserDataResponse struct {
	InputValues map[string]string `json:"input_values,omitempty"`
	Confirm     bool              `json:"confirm,omitempty"`
}

// EntityCommand is the msg_data of an entity_command request
type EntityCommand struct {
	DeviceID string                 `json:"device_id,omitempty"`
	EntityID string                 `json:"entity_id"`
	CmdID    string                 `json:"cmd_id"`
	Params   map[string]interface{} `json:"params,omitempty"`
}

// SubscribeEvents is the msg_data of subscribe/unsubscribe requests
type SubscribeEvents struct {
	DeviceID  string   `json:"device_id,omitempty"`
	EntityIDs []string `json:"entity_ids"`
}

// DeviceStateData is the msg_data of a device_state event or response
type DeviceStateData struct {
	DeviceID string      `json:"device_id,omitempty"`
	State    DeviceState `json:"state"`
}

// SettingsInput describes one field of a user-input request during setup
type SettingsInput struct {
	ID    string                 `json:"id"`
	Label map[string]string      `json:"label"`
	Field map[string]interface{} `json:"field"`
}

// RequireUserAction asks the remote to collect user input during setup
type RequireUserAction struct {
	Input *UserInputAction `json:"input,omitempty"`
}

// UserInputAction is an input form shown on the remote during setup
type UserInputAction struct {
	Title    map[string]string `json:"title"`
	Settings []SettingsInput   `json:"settings"`
}

// DriverSetupChange is the msg_data of a driver_setup_change event
type DriverSetupChange struct {
	EventType         string             `json:"event_type"`
	State             SetupState         `json:"state"`
	Error             SetupError         `json:"error,omitempty"`
	RequireUserAction *RequireUserAction `json:"require_user_action,omitempty"`
}

// EntityChange is the msg_data of an entity_change event
type EntityChange struct {
	EntityID   string                 `json:"entity_id"`
	EntityType EntityType             `json:"entity_type"`
	Attributes map[string]interface{} `json:"attributes"`
}

// AvailableEntitiesData is the msg_data of an available_entities response
type AvailableEntitiesData struct {
	Filter   map[string]string `json:"filter,omitempty"`
	Entities []Entity          `json:"available_entities"`
}

// EntityStatesData is the msg_data of an entity_states response
type EntityStatesData []EntityChange

// DriverVersionData is the msg_data of a driver_version response
type DriverVersionData struct {
	Name    string            `json:"name"`
	Version map[string]string `json:"version"`
}
