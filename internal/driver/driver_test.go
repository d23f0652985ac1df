package driver_test

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ember/internal/driver"
	"ember/internal/ucapi"
)

// createTestDaemon builds a daemon with a temp registry and metadata file
func createTestDaemon(t *testing.T) *driver.Daemon {
	t.Helper()

	dir := t.TempDir()
	t.Setenv(driver.ConfigHomeEnv, dir)

	metaPath := filepath.Join(dir, "driver.json")
	require.NoError(t, os.WriteFile(metaPath, []byte(`{
		"driver_id": "ember_firetv",
		"version": "1.0.0",
		"name": {"en": "Fire TV"}
	}`), 0600))

	config := driver.NewDefaultConfig()
	config.Driver.Metadata = metaPath
	config.Registry.Path = filepath.Join(dir, "devices.db")

	daemon, err := driver.NewDaemon(config, "")
	require.NoError(t, err)

	return daemon
}

// pairTestDevice registers a device backed by a mock Fire TV server
func pairTestDevice(t *testing.T, daemon *driver.Daemon, handler http.HandlerFunc) string {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	host := strings.TrimPrefix(server.URL, "http://")
	deviceID := driver.DeviceIDForHost(host)

	_, err := daemon.Registry().Add(deviceID, "Test TV", host, "test-token")
	require.NoError(t, err)
	require.NoError(t, daemon.Reload())

	return deviceID
}

func TestDaemonReload(t *testing.T) {
	daemon := createTestDaemon(t)

	assert.Equal(t, ucapi.DeviceStateDisconnected, daemon.DeviceState())
	assert.Empty(t, daemon.AvailableEntities())

	deviceID := pairTestDevice(t, daemon, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	assert.Equal(t, ucapi.DeviceStateConnected, daemon.DeviceState())

	entities := daemon.AvailableEntities()
	require.Len(t, entities, 1)
	assert.Equal(t, deviceID+"_remote", entities[0].EntityID)
	assert.Equal(t, deviceID, entities[0].DeviceID)

	_, ok := daemon.Device(deviceID)
	assert.True(t, ok)
}

func TestDaemonEntityCommands(t *testing.T) {
	daemon := createTestDaemon(t)

	var requests []string
	deviceID := pairTestDevice(t, daemon, func(w http.ResponseWriter, r *http.Request) {
		requests = append(requests, r.URL.Path+"?"+r.URL.RawQuery)
		w.WriteHeader(http.StatusOK)
	})
	entityID := deviceID + "_remote"
	daemon.SubscribeEntities([]string{entityID})

	t.Run("send_cmd reaches the device", func(t *testing.T) {
		code := daemon.HandleEntityCommand(ucapi.EntityCommand{
			EntityID: entityID,
			CmdID:    ucapi.CmdSendCmd,
			Params:   map[string]interface{}{"command": "DPAD_UP"},
		})

		assert.Equal(t, ucapi.StatusOK, code)
		require.NotEmpty(t, requests)
		assert.Contains(t, requests[len(requests)-1], "action=dpad_up")
	})

	t.Run("send_cmd without command param", func(t *testing.T) {
		code := daemon.HandleEntityCommand(ucapi.EntityCommand{
			EntityID: entityID,
			CmdID:    ucapi.CmdSendCmd,
		})

		assert.Equal(t, ucapi.StatusBadRequest, code)
	})

	t.Run("unknown simple command is not implemented", func(t *testing.T) {
		code := daemon.HandleEntityCommand(ucapi.EntityCommand{
			EntityID: entityID,
			CmdID:    ucapi.CmdSendCmd,
			Params:   map[string]interface{}{"command": "WARP_SPEED"},
		})

		assert.Equal(t, ucapi.StatusNotImplemented, code)
	})

	t.Run("unknown entity", func(t *testing.T) {
		code := daemon.HandleEntityCommand(ucapi.EntityCommand{
			EntityID: "remote_ghost",
			CmdID:    ucapi.CmdSendCmd,
			Params:   map[string]interface{}{"command": "HOME"},
		})

		assert.Equal(t, ucapi.StatusNotFound, code)
	})

	t.Run("unknown cmd_id", func(t *testing.T) {
		code := daemon.HandleEntityCommand(ucapi.EntityCommand{
			EntityID: entityID,
			CmdID:    "self_destruct",
		})

		assert.Equal(t, ucapi.StatusNotImplemented, code)
	})

	t.Run("on off and toggle track entity state", func(t *testing.T) {
		code := daemon.HandleEntityCommand(ucapi.EntityCommand{
			EntityID: entityID,
			CmdID:    ucapi.CmdOff,
		})
		require.Equal(t, ucapi.StatusOK, code)

		states := daemon.EntityStates()
		require.Len(t, states, 1)
		assert.Equal(t, ucapi.StateOff, states[0].Attributes[ucapi.AttrState])

		code = daemon.HandleEntityCommand(ucapi.EntityCommand{
			EntityID: entityID,
			CmdID:    ucapi.CmdToggle,
		})
		require.Equal(t, ucapi.StatusOK, code)

		states = daemon.EntityStates()
		assert.Equal(t, ucapi.StateOn, states[0].Attributes[ucapi.AttrState])
	})
}

func TestDaemonSendCmdDeviceFailure(t *testing.T) {
	daemon := createTestDaemon(t)

	deviceID := pairTestDevice(t, daemon, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	code := daemon.HandleEntityCommand(ucapi.EntityCommand{
		EntityID: deviceID + "_remote",
		CmdID:    ucapi.CmdSendCmd,
		Params:   map[string]interface{}{"command": "HOME"},
	})

	assert.Equal(t, ucapi.StatusServerError, code)
}

func TestDaemonRemoveDevice(t *testing.T) {
	daemon := createTestDaemon(t)

	deviceID := pairTestDevice(t, daemon, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	require.NoError(t, daemon.RemoveDevice(deviceID))

	assert.Empty(t, daemon.AvailableEntities())
	assert.Equal(t, ucapi.DeviceStateDisconnected, daemon.DeviceState())
	_, ok := daemon.Device(deviceID)
	assert.False(t, ok)

	assert.Error(t, daemon.RemoveDevice(deviceID))
}

func TestDaemonSubscribeRecovery(t *testing.T) {
	daemon := createTestDaemon(t)

	var requests []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests = append(requests, r.URL.Path+"?"+r.URL.RawQuery)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)

	// Pair a device directly in the registry without reloading: simulates
	// the remote resubscribing before the daemon finished loading, or a
	// pairing done out of band while the daemon runs
	host := strings.TrimPrefix(server.URL, "http://")
	deviceID := driver.DeviceIDForHost(host)
	_, err := daemon.Registry().Add(deviceID, "Bedroom", host, "tok")
	require.NoError(t, err)

	entityID := deviceID + "_remote"
	daemon.SubscribeEntities([]string{entityID})

	states := daemon.EntityStates()
	require.Len(t, states, 1)
	assert.Equal(t, entityID, states[0].EntityID)
	assert.Equal(t, ucapi.DeviceStateConnected, daemon.DeviceState())

	// The recovered entity is commandable, not just listed
	code := daemon.HandleEntityCommand(ucapi.EntityCommand{
		EntityID: entityID,
		CmdID:    ucapi.CmdSendCmd,
		Params:   map[string]interface{}{"command": "DPAD_UP"},
	})

	assert.Equal(t, ucapi.StatusOK, code)
	require.NotEmpty(t, requests)
	assert.Contains(t, requests[len(requests)-1], "action=dpad_up")
}

func TestDaemonLegacyMigration(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(driver.ConfigHomeEnv, dir)

	metaPath := filepath.Join(dir, "driver.json")
	require.NoError(t, os.WriteFile(metaPath, []byte(`{
		"driver_id": "ember_firetv",
		"version": "1.0.0",
		"name": {"en": "Fire TV"}
	}`), 0600))

	configPath := filepath.Join(dir, "config.yml")
	config := driver.NewDefaultConfig()
	config.Driver.Metadata = metaPath
	config.Registry.Path = filepath.Join(dir, "devices.db")
	config.Device = driver.LegacyDevice{Host: "192.168.1.30", Token: "legacy-token"}
	require.NoError(t, config.Save(configPath))

	migrated, err := driver.NewDaemon(config, configPath)
	require.NoError(t, err)
	require.NoError(t, migrated.Reload())

	stored, err := migrated.Registry().Get("firetv_192_168_1_30")
	require.NoError(t, err)
	assert.Equal(t, "legacy-token", stored.Token)

	// The config file is rewritten without the legacy block
	reloaded, err := driver.LoadConfig(configPath)
	require.NoError(t, err)
	assert.False(t, reloaded.HasLegacyDevice())
}
