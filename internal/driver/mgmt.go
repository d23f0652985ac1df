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
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"ember/internal/device"
	"ember/internal/logger"
)

// ManagementServer exposes a local HTTP API for operating the driver:
// inspecting paired devices, unpairing and sending actions out of band.
type ManagementServer struct {
	daemon    *Daemon
	jwt       *JWTService
	passwords *PasswordService
	config    ManagementConfig
	server    *http.Server
	logger    zerolog.Logger
}

// loginRequest is the body of a login call
type loginRequest struct {
	Password string `json:"password"`
}

// actionRequest is the body of a device action call. Nonce is optional;
// when present, retransmissions with the same nonce are answered from cache.
type actionRequest struct {
	Nonce  string                 `json:"nonce,omitempty"`
	Type   device.ActionType      `json:"type"`
	Action string                 `json:"action"`
	Params map[string]interface{} `json:"parameters,omitempty"`
}

// NewManagementServer creates a management server for a running daemon
func NewManagementServer(daemon *Daemon, config ManagementConfig) *ManagementServer {
	return &ManagementServer{
		daemon:    daemon,
		jwt:       NewJWTService(config.JWTSecret, "ember", 24),
		passwords: NewPasswordService(),
		config:    config,
		logger:    logger.New(),
	}
}

// Handler returns the HTTP handler serving the management API
func (m *ManagementServer) Handler() http.Handler {
	router := mux.NewRouter()

	api := router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/health", m.handleHealth).Methods(http.MethodGet)
	api.HandleFunc("/login", m.handleLogin).Methods(http.MethodPost)

	protected := api.NewRoute().Subrouter()
	protected.Use(m.jwt.RequireAuth)
	protected.HandleFunc("/status", m.handleStatus).Methods(http.MethodGet)
	protected.HandleFunc("/devices", m.handleListDevices).Methods(http.MethodGet)
	protected.HandleFunc("/devices/{id}", m.handleDeleteDevice).Methods(http.MethodDelete)
	protected.HandleFunc("/devices/{id}/action", m.handleDeviceAction).Methods(http.MethodPost)

	return router
}

// Start starts the management API server
func (m *ManagementServer) Start() error {
	m.server = &http.Server{
		Addr:         m.config.Listen,
		Handler:      m.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	m.logger.Info().
		Str("address", m.config.Listen).
		Msg("Starting management API server")

	go func() {
		if err := m.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			m.logger.Error().Err(err).Msg("Management API server failed")
		}
	}()

	return nil
}

// Stop shuts the management server down
func (m *ManagementServer) Stop() error {
	if m.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := m.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shut down management API: %w", err)
	}
	return nil
}

func (m *ManagementServer) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			m.logger.Warn().Err(err).Msg("Failed to write response")
		}
	}
}

func (m *ManagementServer) writeError(w http.ResponseWriter, status int, message string) {
	m.writeJSON(w, status, map[string]string{"error": message})
}

func (m *ManagementServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	m.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (m *ManagementServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		m.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ok, err := m.passwords.VerifyPassword(req.Password, m.config.PasswordHash)
	if err != nil || !ok {
		m.logger.Warn().Str("remote", r.RemoteAddr).Msg("Login failed")
		m.writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := m.jwt.GenerateToken()
	if err != nil {
		m.writeError(w, http.StatusInternalServerError, "failed to generate token")
		return
	}

	m.writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (m *ManagementServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	count, err := m.daemon.Registry().Count()
	if err != nil {
		m.writeError(w, http.StatusInternalServerError, "failed to query registry")
		return
	}

	m.writeJSON(w, http.StatusOK, map[string]interface{}{
		"state":          m.daemon.DeviceState(),
		"paired_devices": count,
		"nonce_cache":    m.daemon.Nonces().Stats(),
	})
}

func (m *ManagementServer) handleListDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := m.daemon.Registry().List()
	if err != nil {
		m.writeError(w, http.StatusInternalServerError, "failed to list devices")
		return
	}
	if devices == nil {
		devices = []*PairedDevice{}
	}

	m.writeJSON(w, http.StatusOK, map[string]interface{}{"devices": devices})
}

func (m *ManagementServer) handleDeleteDevice(w http.ResponseWriter, r *http.Request) {
	deviceID := mux.Vars(r)["id"]

	if err := m.daemon.RemoveDevice(deviceID); err != nil {
		m.writeError(w, http.StatusNotFound, err.Error())
		return
	}

	m.logger.Info().Str("device_id", deviceID).Msg("Device unpaired")
	m.writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (m *ManagementServer) handleDeviceAction(w http.ResponseWriter, r *http.Request) {
	deviceID := mux.Vars(r)["id"]

	dev, ok := m.daemon.Device(deviceID)
	if !ok {
		m.writeError(w, http.StatusNotFound, "device not found")
		return
	}

	var req actionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		m.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Nonce != "" {
		if !ValidateNonce(req.Nonce) {
			m.writeError(w, http.StatusBadRequest, "invalid nonce format")
			return
		}
		if cached, found := m.daemon.Nonces().Check(deviceID, req.Nonce); found {
			m.logger.Debug().
				Str("device_id", deviceID).
				Str("nonce", req.Nonce).
				Msg("Duplicate action answered from cache")
			m.writeJSON(w, http.StatusOK, cached)
			return
		}
	}

	actionJSON, err := json.Marshal(device.ActionRequest{
		Type:       req.Type,
		Action:     req.Action,
		Parameters: req.Params,
	})
	if err != nil {
		m.writeError(w, http.StatusInternalServerError, "failed to encode action")
		return
	}

	resp, err := dev.Process(actionJSON)
	if err != nil {
		m.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if req.Nonce != "" {
		m.daemon.Nonces().Store(deviceID, req.Nonce, resp)
	}

	status := http.StatusOK
	if !resp.Success {
		status = http.StatusBadGateway
	}
	m.writeJSON(w, status, resp)
}
