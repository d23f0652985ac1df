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
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"ember/internal/device"
	"ember/internal/firetv"
	"ember/internal/logger"
	"ember/internal/ucapi"
)

// healthCheckInterval is how often paired devices are probed
const healthCheckInterval = 5 * time.Minute

// Daemon hosts the integration: the WebSocket endpoint the remote connects
// to, the paired-device registry and the per-device Fire TV clients.
type Daemon struct {
	config     *Config
	configPath string
	meta       *ucapi.DriverMetadata
	server     *ucapi.Server
	registry   *Registry
	entities   *ucapi.EntityStore
	setup      *SetupFlow
	nonces     *NonceCache
	logger     zerolog.Logger

	mutex   sync.RWMutex
	devices map[string]device.Device
	state   ucapi.DeviceState

	ctx    context.Context
	cancel context.CancelFunc
}

// NewDaemon creates a daemon from a loaded configuration
func NewDaemon(config *Config, configPath string) (*Daemon, error) {
	meta, err := ucapi.LoadDriverMetadata(config.Driver.Metadata)
	if err != nil {
		return nil, err
	}

	registry, err := NewRegistry(config.Registry.Path)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	d := &Daemon{
		config:     config,
		configPath: configPath,
		meta:       meta,
		registry:   registry,
		entities:   ucapi.NewEntityStore(),
		nonces:     NewNonceCache(0, 0),
		logger:     logger.New(),
		devices:    make(map[string]device.Device),
		state:      ucapi.DeviceStateDisconnected,
		ctx:        ctx,
		cancel:     cancel,
	}

	d.server = ucapi.NewServer(meta, d, config.Driver.Token)
	d.setup = NewSetupFlow(d.server, registry, d.onPaired)

	return d, nil
}

// Reload migrates any legacy pairing and rebuilds clients and entities
// from the registry
func (d *Daemon) Reload() error {
	if err := d.migrateLegacyDevice(); err != nil {
		return err
	}
	return d.loadDevices()
}

// Run starts the daemon and blocks until a termination signal arrives
func (d *Daemon) Run() error {
	if err := d.Reload(); err != nil {
		return err
	}

	if err := d.server.Start(d.config.ListenAddress()); err != nil {
		return fmt.Errorf("failed to start integration API: %w", err)
	}

	var mgmt *ManagementServer
	if d.config.Management.Enabled {
		mgmt = NewManagementServer(d, d.config.Management)
		if err := mgmt.Start(); err != nil {
			d.server.Stop()
			return fmt.Errorf("failed to start management API: %w", err)
		}
	}

	go d.healthLoop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh

	d.logger.Info().Str("signal", sig.String()).Msg("Shutting down")

	d.cancel()
	if mgmt != nil {
		mgmt.Stop()
	}
	if err := d.server.Stop(); err != nil {
		d.logger.Warn().Err(err).Msg("Integration API shutdown failed")
	}
	return d.registry.Close()
}

// migrateLegacyDevice moves an old single host+token pairing into the registry
func (d *Daemon) migrateLegacyDevice() error {
	if !d.config.HasLegacyDevice() {
		return nil
	}

	host := d.config.Device.Host
	deviceID := DeviceIDForHost(host)

	if _, err := d.registry.Add(deviceID, "Fire TV", host, d.config.Device.Token); err != nil {
		return fmt.Errorf("failed to migrate device %s: %w", host, err)
	}

	d.config.ClearLegacyDevice()
	if d.configPath != "" {
		if err := d.config.Save(d.configPath); err != nil {
			d.logger.Warn().Err(err).Msg("Failed to rewrite config after migration")
		}
	}

	d.logger.Info().
		Str("device_id", deviceID).
		Msg("Migrated legacy device pairing into registry")
	return nil
}

// loadDevices builds clients and entities for every paired device
func (d *Daemon) loadDevices() error {
	paired, err := d.registry.List()
	if err != nil {
		return fmt.Errorf("failed to list paired devices: %w", err)
	}

	d.mutex.Lock()
	defer d.mutex.Unlock()

	for _, p := range paired {
		d.devices[p.DeviceID] = firetv.NewRemote(p.Address, p.Token, false)
		d.entities.Add(NewRemoteEntity(p.DeviceID, p.Name))
	}

	if len(paired) > 0 {
		d.state = ucapi.DeviceStateConnected
	}

	d.logger.Info().
		Int("devices", len(paired)).
		Msg("Loaded paired devices")
	return nil
}

// onPaired is invoked by the setup flow after a successful pairing
func (d *Daemon) onPaired(p *PairedDevice) {
	d.mutex.Lock()
	d.devices[p.DeviceID] = firetv.NewRemote(p.Address, p.Token, false)
	d.entities.Add(NewRemoteEntity(p.DeviceID, p.Name))
	d.state = ucapi.DeviceStateConnected
	d.mutex.Unlock()

	d.server.SendDeviceState(ucapi.DeviceStateConnected)
}

// healthLoop periodically probes paired devices and reports state changes
func (d *Daemon) healthLoop() {
	ticker := time.NewTicker(healthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return
		case <-ticker.C:
			d.checkDevices()
		}
	}
}

func (d *Daemon) checkDevices() {
	d.mutex.RLock()
	clients := make(map[string]*firetv.Client, len(d.devices))
	for id, dev := range d.devices {
		if remote, ok := dev.(*firetv.Remote); ok {
			clients[id] = remote.Client()
		}
	}
	d.mutex.RUnlock()

	if len(clients) == 0 {
		return
	}

	reachable := 0
	for id, client := range clients {
		ctx, cancel := context.WithTimeout(d.ctx, 30*time.Second)
		err := client.TestConnection(ctx)
		cancel()

		if err != nil {
			d.logger.Warn().
				Str("device_id", id).
				Err(err).
				Msg("Device health check failed")
			continue
		}

		reachable++
		if err := d.registry.TouchLastSeen(id); err != nil {
			d.logger.Warn().Err(err).Str("device_id", id).Msg("Failed to update last_seen")
		}
	}

	newState := ucapi.DeviceStateConnected
	if reachable == 0 {
		newState = ucapi.DeviceStateError
	}

	d.mutex.Lock()
	changed := d.state != newState
	d.state = newState
	d.mutex.Unlock()

	if changed {
		d.server.SendDeviceState(newState)
	}
}

// Device returns the client for a paired device id
func (d *Daemon) Device(deviceID string) (device.Device, bool) {
	d.mutex.RLock()
	defer d.mutex.RUnlock()
	dev, ok := d.devices[deviceID]
	return dev, ok
}

// RemoveDevice unpairs a device: registry entry, client and entity
func (d *Daemon) RemoveDevice(deviceID string) error {
	if err := d.registry.Delete(deviceID); err != nil {
		return err
	}

	d.nonces.ClearDevice(deviceID)
	d.syncFromRegistry()

	if d.DeviceState() == ucapi.DeviceStateDisconnected {
		d.server.SendDeviceState(ucapi.DeviceStateDisconnected)
	}
	return nil
}

// syncFromRegistry rebuilds both the client map and the entity store to
// match the registry. Devices can be paired out of band (ember pair) while
// the daemon runs, so entities alone are not enough: every registry entry
// needs a client or its commands answer 404.
func (d *Daemon) syncFromRegistry() {
	paired, err := d.registry.List()
	if err != nil {
		d.logger.Warn().Err(err).Msg("Failed to reload registry")
		return
	}

	d.mutex.Lock()
	d.devices = make(map[string]device.Device, len(paired))
	for _, p := range paired {
		d.devices[p.DeviceID] = firetv.NewRemote(p.Address, p.Token, false)
	}
	if len(paired) == 0 {
		d.state = ucapi.DeviceStateDisconnected
	} else if d.state == ucapi.DeviceStateDisconnected {
		d.state = ucapi.DeviceStateConnected
	}
	d.mutex.Unlock()

	d.entities.Clear()
	for _, p := range paired {
		d.entities.Add(NewRemoteEntity(p.DeviceID, p.Name))
	}
}

// Registry exposes the paired-device registry
func (d *Daemon) Registry() *Registry {
	return d.registry
}

// Nonces exposes the action dedup cache
func (d *Daemon) Nonces() *NonceCache {
	return d.nonces
}

// Handler implementation for the integration WebSocket

// DeviceState returns the current integration state
func (d *Daemon) DeviceState() ucapi.DeviceState {
	d.mutex.RLock()
	defer d.mutex.RUnlock()
	return d.state
}

// AvailableEntities returns the remote entities of all paired devices
func (d *Daemon) AvailableEntities() []ucapi.Entity {
	return d.entities.All()
}

// SubscribeEntities marks entities as subscribed. A subscription for an
// unknown entity triggers a registry reload: the remote can resubscribe
// before the daemon finished loading after a restart.
func (d *Daemon) SubscribeEntities(entityIDs []string) {
	missing := false
	for _, id := range entityIDs {
		if _, ok := d.entities.Get(id); !ok {
			missing = true
			break
		}
	}
	if missing {
		d.logger.Info().Msg("Subscription references unknown entities, reloading registry")
		d.syncFromRegistry()
	}

	d.entities.Subscribe(entityIDs)
}

// UnsubscribeEntities drops subscriptions
func (d *Daemon) UnsubscribeEntities(entityIDs []string) {
	d.entities.Unsubscribe(entityIDs)
}

// EntityStates returns the attributes of subscribed entities
func (d *Daemon) EntityStates() []ucapi.EntityChange {
	return d.entities.States()
}

// HandleEntityCommand executes a command against a paired device
func (d *Daemon) HandleEntityCommand(cmd ucapi.EntityCommand) ucapi.StatusCode {
	entity, ok := d.entities.Get(cmd.EntityID)
	if !ok {
		return ucapi.StatusNotFound
	}

	switch cmd.CmdID {
	case ucapi.CmdOn:
		return d.setEntityState(entity.EntityID, ucapi.StateOn)

	case ucapi.CmdOff:
		return d.setEntityState(entity.EntityID, ucapi.StateOff)

	case ucapi.CmdToggle:
		next := ucapi.StateOn
		if state, _ := entity.Attributes[ucapi.AttrState].(string); state == ucapi.StateOn {
			next = ucapi.StateOff
		}
		return d.setEntityState(entity.EntityID, next)

	case ucapi.CmdSendCmd:
		command, _ := cmd.Params[ucapi.EntityCommandParamCommand].(string)
		if command == "" {
			return ucapi.StatusBadRequest
		}
		return d.sendCommand(entity.DeviceID, command)

	default:
		d.logger.Warn().Str("cmd_id", cmd.CmdID).Msg("Unknown entity command")
		return ucapi.StatusNotImplemented
	}
}

func (d *Daemon) setEntityState(entityID, state string) ucapi.StatusCode {
	change, err := d.entities.UpdateAttributes(entityID, map[string]interface{}{
		ucapi.AttrState: state,
	})
	if err != nil {
		return ucapi.StatusNotFound
	}

	if d.entities.IsSubscribed(entityID) {
		d.server.SendEntityChange(*change)
	}
	return ucapi.StatusOK
}

func (d *Daemon) sendCommand(deviceID, command string) ucapi.StatusCode {
	dev, ok := d.Device(deviceID)
	if !ok {
		return ucapi.StatusNotFound
	}

	resp, err := ExecuteSimpleCommand(dev, command)
	if err != nil {
		d.logger.Warn().
			Str("device_id", deviceID).
			Str("command", command).
			Err(err).
			Msg("Unhandled simple command")
		return ucapi.StatusNotImplemented
	}

	if !resp.Success {
		d.logger.Warn().
			Str("device_id", deviceID).
			Str("command", command).
			Str("error", resp.Error).
			Msg("Command failed")
		return ucapi.StatusServerError
	}

	return ucapi.StatusOK
}

// HandleSetup starts the pairing flow
func (d *Daemon) HandleSetup(data ucapi.SetupDriverData) ucapi.StatusCode {
	return d.setup.Start(data)
}

// HandleUserData delivers the PIN the user entered
func (d *Daemon) HandleUserData(data ucapi.UserDataResponse) ucapi.StatusCode {
	return d.setup.HandleUserData(data)
}

// HandleAbortSetup cancels a running pairing flow
func (d *Daemon) HandleAbortSetup() {
	d.setup.Abort()
}
