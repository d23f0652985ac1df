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

package ucapi_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ember/internal/ucapi"
)

// fakeHandler is a scriptable integration handler
type fakeHandler struct {
	state        ucapi.DeviceState
	entities     []ucapi.Entity
	subscribed   []string
	unsubscribed []string
	commands     []ucapi.EntityCommand
	commandCode  ucapi.StatusCode
	setupCode    ucapi.StatusCode
	aborted      bool
}

func newFakeHandler() *fakeHandler {
	return &fakeHandler{
		state:       ucapi.DeviceStateConnected,
		commandCode: ucapi.StatusOK,
		setupCode:   ucapi.StatusOK,
	}
}

func (h *fakeHandler) DeviceState() ucapi.DeviceState      { return h.state }
func (h *fakeHandler) AvailableEntities() []ucapi.Entity   { return h.entities }
func (h *fakeHandler) SubscribeEntities(ids []string)      { h.subscribed = append(h.subscribed, ids...) }
func (h *fakeHandler) UnsubscribeEntities(ids []string)    { h.unsubscribed = append(h.unsubscribed, ids...) }
func (h *fakeHandler) EntityStates() []ucapi.EntityChange  { return nil }
func (h *fakeHandler) HandleAbortSetup()                   { h.aborted = true }
func (h *fakeHandler) HandleSetup(ucapi.SetupDriverData) ucapi.StatusCode {
	return h.setupCode
}
func (h *fakeHandler) HandleUserData(ucapi.UserDataResponse) ucapi.StatusCode {
	return ucapi.StatusOK
}
func (h *fakeHandler) HandleEntityCommand(cmd ucapi.EntityCommand) ucapi.StatusCode {
	h.commands = append(h.commands, cmd)
	return h.commandCode
}

func testMeta() *ucapi.DriverMetadata {
	return &ucapi.DriverMetadata{
		DriverID: "ember_firetv",
		Version:  "1.0.0",
		Name:     map[string]string{"en": "Fire TV"},
	}
}

// dialServer connects to a test integration server and consumes the
// authentication response
func dialServer(t *testing.T, srv *ucapi.Server, authToken string) *websocket.Conn {
	t.Helper()

	httpSrv := httptest.NewServer(srv.Handler())
	t.Cleanup(httpSrv.Close)

	wsURL := "ws" + strings.TrimPrefix(httpSrv.URL, "http") + "/ws"

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	opts := &websocket.DialOptions{}
	if authToken != "" {
		opts.HTTPHeader = http.Header{"auth-token": []string{authToken}}
	}

	conn, _, err := websocket.Dial(ctx, wsURL, opts)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })

	return conn
}

func readResponse(t *testing.T, conn *websocket.Conn) map[string]json.RawMessage {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, data, err := conn.Read(ctx)
	require.NoError(t, err)

	var frame map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &frame))
	return frame
}

func sendRequest(t *testing.T, conn *websocket.Conn, id int, msg string, msgData interface{}) {
	t.Helper()

	frame := map[string]interface{}{
		"kind": ucapi.KindRequest,
		"id":   id,
		"msg":  msg,
	}
	if msgData != nil {
		frame["msg_data"] = msgData
	}

	data, err := json.Marshal(frame)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, conn.Write(ctx, websocket.MessageText, data))
}

func frameString(t *testing.T, frame map[string]json.RawMessage, key string) string {
	t.Helper()

	var s string
	require.NoError(t, json.Unmarshal(frame[key], &s))
	return s
}

func frameInt(t *testing.T, frame map[string]json.RawMessage, key string) int {
	t.Helper()

	var n int
	require.NoError(t, json.Unmarshal(frame[key], &n))
	return n
}

func TestAuthentication(t *testing.T) {
	t.Run("no token required", func(t *testing.T) {
		srv := ucapi.NewServer(testMeta(), newFakeHandler(), "")
		defer srv.Stop()

		conn := dialServer(t, srv, "")

		auth := readResponse(t, conn)
		assert.Equal(t, "authentication", frameString(t, auth, "msg"))
		assert.Equal(t, 200, frameInt(t, auth, "code"))
	})

	t.Run("valid token accepted", func(t *testing.T) {
		srv := ucapi.NewServer(testMeta(), newFakeHandler(), "s3cret")
		defer srv.Stop()

		conn := dialServer(t, srv, "s3cret")

		auth := readResponse(t, conn)
		assert.Equal(t, 200, frameInt(t, auth, "code"))
	})

	t.Run("wrong token rejected and connection closed", func(t *testing.T) {
		srv := ucapi.NewServer(testMeta(), newFakeHandler(), "s3cret")
		defer srv.Stop()

		conn := dialServer(t, srv, "wrong")

		auth := readResponse(t, conn)
		assert.Equal(t, 401, frameInt(t, auth, "code"))

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_, _, err := conn.Read(ctx)
		assert.Error(t, err)
	})
}

func TestDriverVersion(t *testing.T) {
	srv := ucapi.NewServer(testMeta(), newFakeHandler(), "")
	defer srv.Stop()

	conn := dialServer(t, srv, "")
	readResponse(t, conn) // authentication

	sendRequest(t, conn, 1, ucapi.MsgGetDriverVersion, nil)

	resp := readResponse(t, conn)
	assert.Equal(t, "driver_version", frameString(t, resp, "msg"))
	assert.Equal(t, 1, frameInt(t, resp, "req_id"))

	var data ucapi.DriverVersionData
	require.NoError(t, json.Unmarshal(resp["msg_data"], &data))
	assert.Equal(t, "Fire TV", data.Name)
	assert.Equal(t, "1.0.0", data.Version["driver"])
}

func TestSubscribeAndCommand(t *testing.T) {
	handler := newFakeHandler()
	handler.entities = []ucapi.Entity{{
		EntityID:   "firetv_1_remote",
		EntityType: ucapi.EntityTypeRemote,
		Name:       map[string]string{"en": "Fire TV Remote"},
	}}

	srv := ucapi.NewServer(testMeta(), handler, "")
	defer srv.Stop()

	conn := dialServer(t, srv, "")
	readResponse(t, conn) // authentication

	sendRequest(t, conn, 1, ucapi.MsgGetAvailableEntities, nil)
	resp := readResponse(t, conn)
	assert.Equal(t, "available_entities", frameString(t, resp, "msg"))

	var available ucapi.AvailableEntitiesData
	require.NoError(t, json.Unmarshal(resp["msg_data"], &available))
	require.Len(t, available.Entities, 1)
	assert.Equal(t, "firetv_1_remote", available.Entities[0].EntityID)

	sendRequest(t, conn, 2, ucapi.MsgSubscribeEvents, ucapi.SubscribeEvents{
		EntityIDs: []string{"firetv_1_remote"},
	})
	resp = readResponse(t, conn)
	assert.Equal(t, 200, frameInt(t, resp, "code"))
	assert.Equal(t, []string{"firetv_1_remote"}, handler.subscribed)

	sendRequest(t, conn, 3, ucapi.MsgEntityCommand, ucapi.EntityCommand{
		EntityID: "firetv_1_remote",
		CmdID:    ucapi.CmdSendCmd,
		Params:   map[string]interface{}{"command": "DPAD_UP"},
	})
	resp = readResponse(t, conn)
	assert.Equal(t, 200, frameInt(t, resp, "code"))
	require.Len(t, handler.commands, 1)
	assert.Equal(t, "DPAD_UP", handler.commands[0].Params["command"])
}

func TestCommandStatusPassthrough(t *testing.T) {
	handler := newFakeHandler()
	handler.commandCode = ucapi.StatusNotImplemented

	srv := ucapi.NewServer(testMeta(), handler, "")
	defer srv.Stop()

	conn := dialServer(t, srv, "")
	readResponse(t, conn)

	sendRequest(t, conn, 1, ucapi.MsgEntityCommand, ucapi.EntityCommand{
		EntityID: "x",
		CmdID:    "warp",
	})

	resp := readResponse(t, conn)
	assert.Equal(t, 501, frameInt(t, resp, "code"))
}

func TestUnknownMessage(t *testing.T) {
	srv := ucapi.NewServer(testMeta(), newFakeHandler(), "")
	defer srv.Stop()

	conn := dialServer(t, srv, "")
	readResponse(t, conn)

	sendRequest(t, conn, 9, "get_weather", nil)

	resp := readResponse(t, conn)
	assert.Equal(t, 400, frameInt(t, resp, "code"))
}

func TestSetupFlowMessages(t *testing.T) {
	handler := newFakeHandler()
	srv := ucapi.NewServer(testMeta(), handler, "")
	defer srv.Stop()

	conn := dialServer(t, srv, "")
	readResponse(t, conn)

	sendRequest(t, conn, 1, ucapi.MsgSetupDriver, ucapi.SetupDriverData{
		SetupData: map[string]string{"host": "192.168.1.30"},
	})
	resp := readResponse(t, conn)
	assert.Equal(t, 200, frameInt(t, resp, "code"))

	sendRequest(t, conn, 2, ucapi.MsgAbortDriverSetup, nil)
	resp = readResponse(t, conn)
	assert.Equal(t, 200, frameInt(t, resp, "code"))
	assert.True(t, handler.aborted)
}

func TestBroadcast(t *testing.T) {
	srv := ucapi.NewServer(testMeta(), newFakeHandler(), "")
	defer srv.Stop()

	conn := dialServer(t, srv, "")
	readResponse(t, conn)

	// Wait for the connection to be registered
	require.Eventually(t, func() bool {
		return srv.ConnectionCount() == 1
	}, 2*time.Second, 10*time.Millisecond)

	srv.SendDeviceState(ucapi.DeviceStateConnected)

	event := readResponse(t, conn)
	assert.Equal(t, ucapi.KindEvent, frameString(t, event, "kind"))
	assert.Equal(t, "device_state", frameString(t, event, "msg"))
	assert.Equal(t, "DEVICE", frameString(t, event, "cat"))

	var data ucapi.DeviceStateData
	require.NoError(t, json.Unmarshal(event["msg_data"], &data))
	assert.Equal(t, ucapi.DeviceStateConnected, data.State)
}
