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

package ucapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"ember/internal/logger"
)

// Handler reacts to requests arriving on the integration WebSocket.
// Implementations own entity state and the setup flow; the server owns the
// wire protocol.
type Handler interface {
	// DeviceState returns the current integration device state
	DeviceState() DeviceState

	// AvailableEntities returns the entities the driver offers
	AvailableEntities() []Entity

	// SubscribeEntities is called when the remote subscribes to entities
	SubscribeEntities(entityIDs []string)

	// UnsubscribeEntities is called when the remote unsubscribes entities
	UnsubscribeEntities(entityIDs []string)

	// EntityStates returns the attributes of all subscribed entities
	EntityStates() []EntityChange

	// HandleEntityCommand executes an entity command
	HandleEntityCommand(cmd EntityCommand) StatusCode

	// HandleSetup starts a driver setup flow; progress is reported through
	// driver_setup_change events emitted by the handler
	HandleSetup(data SetupDriverData) StatusCode

	// HandleUserData delivers user input collected during setup
	HandleUserData(data UserDataResponse) StatusCode

	// HandleAbortSetup aborts a running setup flow
	HandleAbortSetup()
}

// wsConn is one remote connection with serialized writes
type wsConn struct {
	id      string
	ws      *websocket.Conn
	writeMu sync.Mutex
}

func (c *wsConn) writeJSON(ctx context.Context, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal frame: %w", err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	return c.ws.Write(ctx, websocket.MessageText, data)
}

// Server exposes the integration WebSocket endpoint the remote connects to
type Server struct {
	meta      *DriverMetadata
	handler   Handler
	authToken string
	logger    zerolog.Logger
	server    *http.Server
	conns     map[*wsConn]struct{}
	mutex     sync.RWMutex
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewServer creates a new integration API server. authToken is optional;
// when set, connecting remotes must present it in the auth-token header.
func NewServer(meta *DriverMetadata, handler Handler, authToken string) *Server {
	ctx, cancel := context.WithCancel(context.Background())

	return &Server{
		meta:      meta,
		handler:   handler,
		authToken: authToken,
		logger:    logger.New(),
		conns:     make(map[*wsConn]struct{}),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Handler returns the HTTP handler serving the integration endpoint.
// Useful for mounting the endpoint on an existing server.
func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()
	router.Use(s.loggingMiddleware)
	router.HandleFunc("/ws", s.handleWebSocket)
	router.HandleFunc("/", s.handleWebSocket)
	return router
}

// Start starts the WebSocket server on the given address
func (s *Server) Start(address string) error {
	s.server = &http.Server{
		Addr:         address,
		Handler:      s.Handler(),
		ReadTimeout:  0, // WebSocket connections are long-lived
		WriteTimeout: 0,
	}

	s.logger.Info().
		Str("address", address).
		Str("driver_id", s.meta.DriverID).
		Msg("Starting integration API server")

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("Integration API server failed")
		}
	}()

	return nil
}

// Stop shuts the server down and closes all remote connections
func (s *Server) Stop() error {
	s.cancel()

	s.mutex.Lock()
	for conn := range s.conns {
		conn.ws.Close(websocket.StatusGoingAway, "driver shutting down")
	}
	s.conns = make(map[*wsConn]struct{})
	s.mutex.Unlock()

	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shut down integration API server: %w", err)
	}

	s.logger.Info().Msg("Integration API server stopped")
	return nil
}

// ConnectionCount returns the number of connected remotes
func (s *Server) ConnectionCount() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.conns)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote", r.RemoteAddr).
			Msg("Integration API request")
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// Remotes connect from the local network with arbitrary origins
		InsecureSkipVerify: true,
	})
	if err != nil {
		s.logger.Warn().Err(err).Msg("WebSocket accept failed")
		return
	}

	conn := &wsConn{id: uuid.New().String(), ws: ws}

	authenticated := s.authToken == "" || r.Header.Get("auth-token") == s.authToken

	authResp := ResponseFrame{
		Kind:  KindResponse,
		ReqID: 0,
		Msg:   MsgAuthentication,
		Code:  StatusOK,
	}
	if !authenticated {
		authResp.Code = StatusUnauthorized
	}
	if err := conn.writeJSON(s.ctx, authResp); err != nil {
		ws.Close(websocket.StatusInternalError, "write failed")
		return
	}

	if !authenticated {
		s.logger.Warn().
			Str("remote", r.RemoteAddr).
			Msg("Remote failed authentication")
		ws.Close(websocket.StatusPolicyViolation, "authentication failed")
		return
	}

	s.mutex.Lock()
	s.conns[conn] = struct{}{}
	s.mutex.Unlock()

	s.logger.Info().
		Str("conn_id", conn.id).
		Str("remote", r.RemoteAddr).
		Msg("Remote connected")

	s.readLoop(conn)

	s.mutex.Lock()
	delete(s.conns, conn)
	s.mutex.Unlock()

	s.logger.Info().
		Str("conn_id", conn.id).
		Str("remote", r.RemoteAddr).
		Msg("Remote disconnected")
}

func (s *Server) readLoop(conn *wsConn) {
	for {
		_, data, err := conn.ws.Read(s.ctx)
		if err != nil {
			return
		}

		var req RequestFrame
		if err := json.Unmarshal(data, &req); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to parse request frame")
			continue
		}

		if req.Kind != KindRequest {
			continue
		}

		s.dispatch(conn, &req)
	}
}

func (s *Server) dispatch(conn *wsConn, req *RequestFrame) {
	s.logger.Debug().
		Int("id", req.ID).
		Str("msg", req.Msg).
		Msg("Handling request")

	switch req.Msg {
	case MsgGetDriverVersion:
		s.respond(conn, req, MsgDriverVersion, StatusOK, s.meta.VersionData())

	case MsgGetDriverMetadata:
		s.respond(conn, req, MsgDriverMetadata, StatusOK, s.meta)

	case MsgGetDeviceState:
		s.respond(conn, req, MsgDeviceState, StatusOK, DeviceStateData{
			State: s.handler.DeviceState(),
		})

	case MsgGetAvailableEntities:
		s.respond(conn, req, MsgAvailableEntities, StatusOK, AvailableEntitiesData{
			Entities: s.handler.AvailableEntities(),
		})

	case MsgSubscribeEvents:
		var sub SubscribeEvents
		if err := json.Unmarshal(req.MsgData, &sub); err != nil {
			s.respond(conn, req, MsgResult, StatusBadRequest, nil)
			return
		}
		s.handler.SubscribeEntities(sub.EntityIDs)
		s.respond(conn, req, MsgResult, StatusOK, nil)

	case MsgUnsubscribeEvents:
		var sub SubscribeEvents
		if err := json.Unmarshal(req.MsgData, &sub); err != nil {
			s.respond(conn, req, MsgResult, StatusBadRequest, nil)
			return
		}
		s.handler.UnsubscribeEntities(sub.EntityIDs)
		s.respond(conn, req, MsgResult, StatusOK, nil)

	case MsgGetEntityStates:
		s.respond(conn, req, MsgEntityStates, StatusOK, EntityStatesData(s.handler.EntityStates()))

	case MsgEntityCommand:
		var cmd EntityCommand
		if err := json.Unmarshal(req.MsgData, &cmd); err != nil {
			s.respond(conn, req, MsgResult, StatusBadRequest, nil)
			return
		}
		code := s.handler.HandleEntityCommand(cmd)
		s.respond(conn, req, MsgResult, code, nil)

	case MsgSetupDriver:
		var data SetupDriverData
		if err := json.Unmarshal(req.MsgData, &data); err != nil {
			s.respond(conn, req, MsgResult, StatusBadRequest, nil)
			return
		}
		code := s.handler.HandleSetup(data)
		s.respond(conn, req, MsgResult, code, nil)

	case MsgSetDriverUserData:
		var data UserDataResponse
		if err := json.Unmarshal(req.MsgData, &data); err != nil {
			s.respond(conn, req, MsgResult, StatusBadRequest, nil)
			return
		}
		code := s.handler.HandleUserData(data)
		s.respond(conn, req, MsgResult, code, nil)

	case MsgAbortDriverSetup:
		s.handler.HandleAbortSetup()
		s.respond(conn, req, MsgResult, StatusOK, nil)

	default:
		s.logger.Warn().
			Str("msg", req.Msg).
			Msg("Unhandled request message")
		s.respond(conn, req, MsgResult, StatusBadRequest, nil)
	}
}

func (s *Server) respond(conn *wsConn, req *RequestFrame, msg string, code StatusCode, msgData interface{}) {
	resp := ResponseFrame{
		Kind:    KindResponse,
		ReqID:   req.ID,
		Msg:     msg,
		Code:    code,
		MsgData: msgData,
	}

	if err := conn.writeJSON(s.ctx, resp); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to write response")
	}
}

// Broadcast sends an event frame to all connected remotes
func (s *Server) Broadcast(event EventFrame) {
	if event.TS == "" {
		event.TS = time.Now().UTC().Format(time.RFC3339)
	}

	s.mutex.RLock()
	conns := make([]*wsConn, 0, len(s.conns))
	for conn := range s.conns {
		conns = append(conns, conn)
	}
	s.mutex.RUnlock()

	for _, conn := range conns {
		if err := conn.writeJSON(s.ctx, event); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to broadcast event")
		}
	}
}

// SendDeviceState broadcasts a device_state event
func (s *Server) SendDeviceState(state DeviceState) {
	s.Broadcast(EventFrame{
		Kind: KindEvent,
		Msg:  MsgDeviceState,
		Cat:  CategoryDevice,
		MsgData: DeviceStateData{
			State: state,
		},
	})
}

// SendSetupChange broadcasts a driver_setup_change event
func (s *Server) SendSetupChange(change DriverSetupChange) {
	s.Broadcast(EventFrame{
		Kind:    KindEvent,
		Msg:     MsgDriverSetupChange,
		Cat:     CategoryDevice,
		MsgData: change,
	})
}

// SendEntityChange broadcasts an entity_change event
func (s *Server) SendEntityChange(change EntityChange) {
	s.Broadcast(EventFrame{
		Kind:    KindEvent,
		Msg:     MsgEntityChange,
		Cat:     CategoryEntity,
		MsgData: change,
	})
}
