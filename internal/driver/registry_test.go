package driver_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ember/internal/driver"
)

func createTestRegistry(t *testing.T) *driver.Registry {
	t.Helper()

	registry, err := driver.NewRegistry(filepath.Join(t.TempDir(), "devices.db"))
	require.NoError(t, err)
	t.Cleanup(func() { registry.Close() })

	return registry
}

func TestDeviceIDForHost(t *testing.T) {
	assert.Equal(t, "firetv_192_168_1_30", driver.DeviceIDForHost("192.168.1.30"))
	assert.Equal(t, "firetv_192_168_1_30_8080", driver.DeviceIDForHost("192.168.1.30:8080"))
	assert.Equal(t, "firetv_localhost", driver.DeviceIDForHost("localhost"))
}

func TestRegistryAddAndGet(t *testing.T) {
	registry := createTestRegistry(t)

	stored, err := registry.Add("firetv_192_168_1_30", "Living Room", "192.168.1.30", "token-1")
	require.NoError(t, err)

	assert.Equal(t, "firetv_192_168_1_30", stored.DeviceID)
	assert.Equal(t, "Living Room", stored.Name)
	assert.Equal(t, "192.168.1.30", stored.Address)
	assert.Equal(t, "token-1", stored.Token)
	assert.False(t, stored.CreatedAt.IsZero())
}

func TestRegistryRePairReplacesToken(t *testing.T) {
	registry := createTestRegistry(t)

	_, err := registry.Add("firetv_1", "Fire TV", "192.168.1.30", "old-token")
	require.NoError(t, err)

	stored, err := registry.Add("firetv_1", "Fire TV", "192.168.1.30", "new-token")
	require.NoError(t, err)

	assert.Equal(t, "new-token", stored.Token)

	count, err := registry.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestRegistryList(t *testing.T) {
	registry := createTestRegistry(t)

	_, err := registry.Add("firetv_1", "One", "192.168.1.1", "t1")
	require.NoError(t, err)
	_, err = registry.Add("firetv_2", "Two", "192.168.1.2", "t2")
	require.NoError(t, err)

	devices, err := registry.List()

	require.NoError(t, err)
	assert.Len(t, devices, 2)
}

func TestRegistryUpdateToken(t *testing.T) {
	registry := createTestRegistry(t)

	_, err := registry.Add("firetv_1", "Fire TV", "192.168.1.30", "old")
	require.NoError(t, err)

	require.NoError(t, registry.UpdateToken("firetv_1", "rotated"))

	device, err := registry.Get("firetv_1")
	require.NoError(t, err)
	assert.Equal(t, "rotated", device.Token)

	assert.Error(t, registry.UpdateToken("firetv_ghost", "x"))
}

func TestRegistryDelete(t *testing.T) {
	registry := createTestRegistry(t)

	_, err := registry.Add("firetv_1", "Fire TV", "192.168.1.30", "t")
	require.NoError(t, err)

	require.NoError(t, registry.Delete("firetv_1"))

	count, err := registry.Count()
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	assert.Error(t, registry.Delete("firetv_1"))
}

func TestRegistryGetMissing(t *testing.T) {
	registry := createTestRegistry(t)

	_, err := registry.Get("firetv_ghost")
	assert.Error(t, err)
}
