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
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"ember/internal/firetv"
	"ember/internal/logger"
	"ember/internal/ucapi"
)

// setupPhase tracks where a running setup flow is
type setupPhase int

const (
	setupIdle setupPhase = iota
	setupConnecting
	setupAwaitingPin
)

// Setup data and input field ids exchanged with the remote
const (
	SetupFieldHost = "host"
	SetupFieldName = "name"
	SetupFieldPin  = "pin"
)

// DefaultFriendlyName is shown on the Fire TV PIN dialog
const DefaultFriendlyName = "Remote Two"

// SetupEvents is the slice of the integration server the setup flow needs
type SetupEvents interface {
	SendSetupChange(change ucapi.DriverSetupChange)
}

// SetupFlow drives the PIN pairing handshake with a Fire TV. One flow runs
// at a time; a new setup_driver request supersedes any flow in progress.
type SetupFlow struct {
	events   SetupEvents
	registry *Registry
	onPaired func(dev *PairedDevice)
	logger   zerolog.Logger

	mutex  sync.Mutex
	phase  setupPhase
	gen    int // bumped on every reset so stale goroutines can tell
	client *firetv.Client
	host   string
	name   string
	cancel context.CancelFunc
}

// NewSetupFlow creates a setup flow reporting progress through events.
// onPaired is invoked after a device has been verified and persisted.
func NewSetupFlow(events SetupEvents, registry *Registry, onPaired func(dev *PairedDevice)) *SetupFlow {
	return &SetupFlow{
		events:   events,
		registry: registry,
		onPaired: onPaired,
		logger:   logger.New(),
	}
}

// Start begins a pairing flow from a setup_driver request. The request is
// acknowledged immediately; connectivity and PIN progress are reported
// asynchronously through driver_setup_change events.
func (f *SetupFlow) Start(data ucapi.SetupDriverData) ucapi.StatusCode {
	host := strings.TrimSpace(data.SetupData[SetupFieldHost])
	if host == "" {
		return ucapi.StatusBadRequest
	}

	name := strings.TrimSpace(data.SetupData[SetupFieldName])
	if name == "" {
		name = "Fire TV"
	}

	f.mutex.Lock()
	f.reset()

	ctx, cancel := context.WithCancel(context.Background())
	f.phase = setupConnecting
	f.client = firetv.NewClient(host, "", false)
	f.host = host
	f.name = name
	f.cancel = cancel
	f.mutex.Unlock()

	f.logger.Info().
		Str("host", host).
		Bool("reconfigure", data.Reconfigure).
		Msg("Starting device setup")

	go f.connectAndRequestPin(ctx)

	return ucapi.StatusOK
}

// connectAndRequestPin probes the device and asks it to display a PIN
func (f *SetupFlow) connectAndRequestPin(ctx context.Context) {
	f.mutex.Lock()
	client := f.client
	f.mutex.Unlock()
	if client == nil {
		return
	}

	f.sendState(ucapi.SetupStateSetup, ucapi.SetupErrorNone, nil)

	if err := client.TestConnection(ctx); err != nil {
		if ctx.Err() != nil {
			return
		}
		f.logger.Warn().Err(err).Str("host", client.Host()).Msg("Device unreachable")
		f.fail(ucapi.SetupErrorConnectionRefused)
		return
	}

	if _, err := client.RequestPIN(ctx, DefaultFriendlyName); err != nil {
		if ctx.Err() != nil {
			return
		}
		f.logger.Warn().Err(err).Msg("PIN display request failed")
		f.fail(setupErrorFor(err))
		return
	}

	f.mutex.Lock()
	if f.phase != setupConnecting {
		f.mutex.Unlock()
		return
	}
	f.phase = setupAwaitingPin
	f.mutex.Unlock()

	f.sendState(ucapi.SetupStateWaitUserAction, ucapi.SetupErrorNone, &ucapi.RequireUserAction{
		Input: &ucapi.UserInputAction{
			Title: map[string]string{"en": "Fire TV pairing"},
			Settings: []ucapi.SettingsInput{
				{
					ID:    SetupFieldPin,
					Label: map[string]string{"en": "Enter the PIN shown on your Fire TV"},
					Field: map[string]interface{}{
						"text": map[string]interface{}{"value": ""},
					},
				},
			},
		},
	})
}

// HandleUserData finishes the flow with the PIN the user entered
func (f *SetupFlow) HandleUserData(data ucapi.UserDataResponse) ucapi.StatusCode {
	f.mutex.Lock()
	if f.phase != setupAwaitingPin || f.client == nil {
		f.mutex.Unlock()
		return ucapi.StatusBadRequest
	}
	client := f.client
	host := f.host
	name := f.name
	gen := f.gen
	f.mutex.Unlock()

	pin := strings.TrimSpace(data.InputValues[SetupFieldPin])
	if pin == "" {
		return ucapi.StatusBadRequest
	}

	go f.verifyAndStore(client, host, name, pin, gen)

	return ucapi.StatusOK
}

func (f *SetupFlow) verifyAndStore(client *firetv.Client, host, name, pin string, gen int) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	token, err := client.VerifyPIN(ctx, pin)
	if f.superseded(gen) {
		// Aborted or restarted while the PIN was in flight
		return
	}
	if err != nil {
		f.logger.Warn().Err(err).Msg("PIN verification failed")
		f.fail(ucapi.SetupErrorAuthorizationError)
		return
	}

	deviceID := DeviceIDForHost(host)
	paired, err := f.registry.Add(deviceID, name, host, token)
	if err != nil {
		f.logger.Error().Err(err).Msg("Failed to persist pairing")
		f.fail(ucapi.SetupErrorOther)
		return
	}

	f.logger.Info().
		Str("device_id", deviceID).
		Str("host", host).
		Msg("Device paired")

	f.mutex.Lock()
	if f.gen != gen {
		f.mutex.Unlock()
		// Abort raced the persist step; undo it
		if err := f.registry.Delete(deviceID); err != nil {
			f.logger.Warn().Err(err).Msg("Failed to roll back aborted pairing")
		}
		return
	}
	f.reset()
	f.mutex.Unlock()

	if f.onPaired != nil {
		f.onPaired(paired)
	}

	f.sendState(ucapi.SetupStateOK, ucapi.SetupErrorNone, nil)
}

// Abort cancels any running flow
func (f *SetupFlow) Abort() {
	f.mutex.Lock()
	active := f.phase != setupIdle
	f.reset()
	f.mutex.Unlock()

	if active {
		f.logger.Info().Msg("Setup aborted")
	}
}

// InProgress reports whether a setup flow is running
func (f *SetupFlow) InProgress() bool {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return f.phase != setupIdle
}

// reset clears flow state; caller holds the mutex
func (f *SetupFlow) reset() {
	if f.cancel != nil {
		f.cancel()
		f.cancel = nil
	}
	f.gen++
	f.phase = setupIdle
	f.client = nil
	f.host = ""
	f.name = ""
}

// superseded reports whether the flow was reset since gen was captured
func (f *SetupFlow) superseded(gen int) bool {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return f.gen != gen
}

func (f *SetupFlow) fail(reason ucapi.SetupError) {
	f.mutex.Lock()
	f.reset()
	f.mutex.Unlock()

	f.sendState(ucapi.SetupStateError, reason, nil)
}

func (f *SetupFlow) sendState(state ucapi.SetupState, setupErr ucapi.SetupError, action *ucapi.RequireUserAction) {
	change := ucapi.DriverSetupChange{
		EventType:         "SETUP",
		State:             state,
		RequireUserAction: action,
	}
	if setupErr != ucapi.SetupErrorNone && state == ucapi.SetupStateError {
		change.Error = setupErr
	}
	if state == ucapi.SetupStateOK || state == ucapi.SetupStateError {
		change.EventType = "STOP"
	}

	f.events.SendSetupChange(change)
}

func setupErrorFor(err error) ucapi.SetupError {
	if errors.Is(err, context.DeadlineExceeded) {
		return ucapi.SetupErrorTimeout
	}
	return ucapi.SetupErrorOther
}
