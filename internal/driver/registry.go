package driver

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// PairedDevice is one Fire TV the driver has been paired with
type PairedDevice struct {
	ID        int       `json:"id"`
	DeviceID  string    `json:"device_id"`
	Name      string    `json:"name"`
	Address   string    `json:"address"`
	Token     string    `json:"-"` // never serialized
	CreatedAt time.Time `json:"created_at"`
	LastSeen  time.Time `json:"last_seen"`
}

// Registry stores paired devices in SQLite
type Registry struct {
	db *sql.DB
}

// NewRegistry opens (and if needed initializes) the device registry
func NewRegistry(path string) (*Registry, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open registry: %w", err)
	}

	registry := &Registry{db: db}

	if err := registry.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize registry schema: %w", err)
	}

	return registry, nil
}

// Close closes the registry database
func (r *Registry) Close() error {
	return r.db.Close()
}

func (r *Registry) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS devices (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			device_id TEXT UNIQUE NOT NULL,
			name TEXT NOT NULL,
			address TEXT NOT NULL,
			token TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			last_seen DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_devices_device_id ON devices(device_id)`,
	}

	for _, query := range queries {
		if _, err := r.db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query: %w", err)
		}
	}

	return nil
}

// DeviceIDForHost derives a stable device id from a host address,
// e.g. "192.168.1.30" -> "firetv_192_168_1_30"
func DeviceIDForHost(host string) string {
	id := strings.ReplaceAll(host, ".", "_")
	id = strings.ReplaceAll(id, ":", "_")
	return "firetv_" + id
}

// Add stores a paired device, replacing any earlier pairing for the same id
func (r *Registry) Add(deviceID, name, address, token string) (*PairedDevice, error) {
	query := `INSERT INTO devices (device_id, name, address, token, last_seen)
			  VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
			  ON CONFLICT(device_id) DO UPDATE SET
				name = excluded.name,
				address = excluded.address,
				token = excluded.token,
				last_seen = CURRENT_TIMESTAMP`

	if _, err := r.db.Exec(query, deviceID, name, address, token); err != nil {
		return nil, fmt.Errorf("failed to store device: %w", err)
	}

	return r.Get(deviceID)
}

// Get returns a paired device by its device id
func (r *Registry) Get(deviceID string) (*PairedDevice, error) {
	query := `SELECT id, device_id, name, address, token, created_at, last_seen
			  FROM devices WHERE device_id = ?`

	var device PairedDevice
	err := r.db.QueryRow(query, deviceID).Scan(
		&device.ID, &device.DeviceID, &device.Name, &device.Address,
		&device.Token, &device.CreatedAt, &device.LastSeen,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get device: %w", err)
	}

	return &device, nil
}

// List returns all paired devices, newest first
func (r *Registry) List() ([]*PairedDevice, error) {
	query := `SELECT id, device_id, name, address, token, created_at, last_seen
			  FROM devices ORDER BY created_at DESC`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query devices: %w", err)
	}
	defer rows.Close()

	var devices []*PairedDevice
	for rows.Next() {
		var device PairedDevice
		err := rows.Scan(
			&device.ID, &device.DeviceID, &device.Name, &device.Address,
			&device.Token, &device.CreatedAt, &device.LastSeen,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan device: %w", err)
		}
		devices = append(devices, &device)
	}

	return devices, rows.Err()
}

// Count returns the number of paired devices
func (r *Registry) Count() (int, error) {
	var count int
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM devices`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count devices: %w", err)
	}
	return count, nil
}

// TouchLastSeen updates the last_seen timestamp of a device
func (r *Registry) TouchLastSeen(deviceID string) error {
	query := `UPDATE devices SET last_seen = CURRENT_TIMESTAMP WHERE device_id = ?`
	if _, err := r.db.Exec(query, deviceID); err != nil {
		return fmt.Errorf("failed to update last_seen: %w", err)
	}
	return nil
}

// UpdateToken replaces the stored client token of a device
func (r *Registry) UpdateToken(deviceID, token string) error {
	query := `UPDATE devices SET token = ? WHERE device_id = ?`
	result, err := r.db.Exec(query, token, deviceID)
	if err != nil {
		return fmt.Errorf("failed to update token: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("device not found: %s", deviceID)
	}
	return nil
}

// Delete removes a paired device
func (r *Registry) Delete(deviceID string) error {
	query := `DELETE FROM devices WHERE device_id = ?`
	result, err := r.db.Exec(query, deviceID)
	if err != nil {
		return fmt.Errorf("failed to delete device: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("device not found: %s", deviceID)
	}
	return nil
}
