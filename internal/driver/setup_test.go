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

package driver_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ember/internal/driver"
	"ember/internal/firetv"
	"ember/internal/ucapi"
)

// setupRecorder collects driver_setup_change events
type setupRecorder struct {
	changes chan ucapi.DriverSetupChange
}

func newSetupRecorder() *setupRecorder {
	return &setupRecorder{changes: make(chan ucapi.DriverSetupChange, 16)}
}

func (r *setupRecorder) SendSetupChange(change ucapi.DriverSetupChange) {
	r.changes <- change
}

func (r *setupRecorder) next(t *testing.T) ucapi.DriverSetupChange {
	t.Helper()

	select {
	case change := <-r.changes:
		return change
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for setup change event")
		return ucapi.DriverSetupChange{}
	}
}

// mockFireTV simulates the Fire TV REST service pairing endpoints
func mockFireTV(t *testing.T, pin string, verifyStatus int) string {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/":
			w.WriteHeader(http.StatusOK)
		case "/v1/FireTV/pin/display":
			json.NewEncoder(w).Encode(firetv.PinDisplayResponse{Pin: pin})
		case "/v1/FireTV/pin/verify":
			if verifyStatus != http.StatusOK {
				w.WriteHeader(verifyStatus)
				return
			}
			var body firetv.PinVerifyRequest
			json.NewDecoder(r.Body).Decode(&body)
			if body.Pin != pin {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			json.NewEncoder(w).Encode(firetv.PinVerifyResponse{Description: "paired-token"})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(server.Close)

	return strings.TrimPrefix(server.URL, "http://")
}

func TestSetupFlowHappyPath(t *testing.T) {
	host := mockFireTV(t, "1234", http.StatusOK)
	registry := createTestRegistry(t)
	events := newSetupRecorder()

	var pairedID string
	flow := driver.NewSetupFlow(events, registry, func(dev *driver.PairedDevice) {
		pairedID = dev.DeviceID
	})

	code := flow.Start(ucapi.SetupDriverData{
		SetupData: map[string]string{"host": host, "name": "Office"},
	})
	require.Equal(t, ucapi.StatusOK, code)

	first := events.next(t)
	assert.Equal(t, ucapi.SetupStateSetup, first.State)

	waiting := events.next(t)
	assert.Equal(t, ucapi.SetupStateWaitUserAction, waiting.State)
	require.NotNil(t, waiting.RequireUserAction)
	require.NotNil(t, waiting.RequireUserAction.Input)
	require.NotEmpty(t, waiting.RequireUserAction.Input.Settings)
	assert.Equal(t, "pin", waiting.RequireUserAction.Input.Settings[0].ID)

	code = flow.HandleUserData(ucapi.UserDataResponse{
		InputValues: map[string]string{"pin": "1234"},
	})
	require.Equal(t, ucapi.StatusOK, code)

	done := events.next(t)
	assert.Equal(t, ucapi.SetupStateOK, done.State)
	assert.Equal(t, "STOP", done.EventType)
	assert.False(t, flow.InProgress())

	// Pairing is persisted with the verified token
	deviceID := driver.DeviceIDForHost(host)
	assert.Equal(t, deviceID, pairedID)

	stored, err := registry.Get(deviceID)
	require.NoError(t, err)
	assert.Equal(t, "Office", stored.Name)
	assert.Equal(t, host, stored.Address)
	assert.Equal(t, "paired-token", stored.Token)
}

func TestSetupFlowWrongPin(t *testing.T) {
	host := mockFireTV(t, "1234", http.StatusOK)
	registry := createTestRegistry(t)
	events := newSetupRecorder()

	flow := driver.NewSetupFlow(events, registry, nil)

	require.Equal(t, ucapi.StatusOK, flow.Start(ucapi.SetupDriverData{
		SetupData: map[string]string{"host": host},
	}))
	events.next(t) // SETUP
	events.next(t) // WAIT_USER_ACTION

	require.Equal(t, ucapi.StatusOK, flow.HandleUserData(ucapi.UserDataResponse{
		InputValues: map[string]string{"pin": "9999"},
	}))

	failed := events.next(t)
	assert.Equal(t, ucapi.SetupStateError, failed.State)
	assert.Equal(t, ucapi.SetupErrorAuthorizationError, failed.Error)

	// Nothing persisted without a verified token
	count, err := registry.Count()
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestSetupFlowValidation(t *testing.T) {
	registry := createTestRegistry(t)
	events := newSetupRecorder()
	flow := driver.NewSetupFlow(events, registry, nil)

	t.Run("missing host", func(t *testing.T) {
		code := flow.Start(ucapi.SetupDriverData{SetupData: map[string]string{}})
		assert.Equal(t, ucapi.StatusBadRequest, code)
	})

	t.Run("user data without a running flow", func(t *testing.T) {
		code := flow.HandleUserData(ucapi.UserDataResponse{
			InputValues: map[string]string{"pin": "1234"},
		})
		assert.Equal(t, ucapi.StatusBadRequest, code)
	})
}

func TestSetupFlowAbortDuringVerify(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/":
			w.WriteHeader(http.StatusOK)
		case "/v1/FireTV/pin/display":
			json.NewEncoder(w).Encode(firetv.PinDisplayResponse{Pin: "1234"})
		case "/v1/FireTV/pin/verify":
			<-release
			json.NewEncoder(w).Encode(firetv.PinVerifyResponse{Description: "paired-token"})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(server.Close)
	host := strings.TrimPrefix(server.URL, "http://")

	registry := createTestRegistry(t)
	events := newSetupRecorder()
	flow := driver.NewSetupFlow(events, registry, nil)

	require.Equal(t, ucapi.StatusOK, flow.Start(ucapi.SetupDriverData{
		SetupData: map[string]string{"host": host},
	}))
	events.next(t) // SETUP
	events.next(t) // WAIT_USER_ACTION

	require.Equal(t, ucapi.StatusOK, flow.HandleUserData(ucapi.UserDataResponse{
		InputValues: map[string]string{"pin": "1234"},
	}))

	// Abort while the verification request is still in flight, then let
	// the device answer
	flow.Abort()
	close(release)

	// The stale verification must not pair the device or emit any event
	select {
	case change := <-events.changes:
		t.Fatalf("unexpected setup change after abort: %+v", change)
	case <-time.After(200 * time.Millisecond):
	}

	count, err := registry.Count()
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestSetupFlowAbort(t *testing.T) {
	host := mockFireTV(t, "1234", http.StatusOK)
	registry := createTestRegistry(t)
	events := newSetupRecorder()
	flow := driver.NewSetupFlow(events, registry, nil)

	require.Equal(t, ucapi.StatusOK, flow.Start(ucapi.SetupDriverData{
		SetupData: map[string]string{"host": host},
	}))
	events.next(t) // SETUP
	events.next(t) // WAIT_USER_ACTION
	require.True(t, flow.InProgress())

	flow.Abort()

	assert.False(t, flow.InProgress())
	assert.Equal(t, ucapi.StatusBadRequest, flow.HandleUserData(ucapi.UserDataResponse{
		InputValues: map[string]string{"pin": "1234"},
	}))
}
