package ucapi

import (
	"fmt"
	"sync"
)

// EntityType identifies the kind of an entity
type EntityType string

const (
	EntityTypeRemote      EntityType = "remote"
	EntityTypeMediaPlayer EntityType = "media_player"
)

// Remote entity features
const (
	FeatureSendCmd = "send_cmd"
	FeatureOnOff   = "on_off"
	FeatureToggle  = "toggle"
)

// Remote entity attribute keys and states
const (
	AttrState = "state"

	StateOn      = "ON"
	StateOff     = "OFF"
	StateUnknown = "UNKNOWN"
)

// Remote entity command ids
const (
	CmdSendCmd = "send_cmd"
	CmdOn      = "on"
	CmdOff     = "off"
	CmdToggle  = "toggle"
)

// EntityCommandParamCommand is the params key carrying a simple command name
const EntityCommandParamCommand = "command"

// DeviceButton identifies a physical button on the remote
type DeviceButton string

const (
	ButtonDPadUp     DeviceButton = "DPAD_UP"
	ButtonDPadDown   DeviceButton = "DPAD_DOWN"
	ButtonDPadLeft   DeviceButton = "DPAD_LEFT"
	ButtonDPadRight  DeviceButton = "DPAD_RIGHT"
	ButtonDPadMiddle DeviceButton = "DPAD_MIDDLE"
	ButtonBack       DeviceButton = "BACK"
	ButtonHome       DeviceButton = "HOME"
	ButtonPlay       DeviceButton = "PLAY"
	ButtonRed        DeviceButton = "RED"
	ButtonGreen      DeviceButton = "GREEN"
	ButtonYellow     DeviceButton = "YELLOW"
	ButtonBlue       DeviceButton = "BLUE"
)

// CommandRef binds a button press or UI item to an entity command
type CommandRef struct {
	CmdID  string                 `json:"cmd_id"`
	Params map[string]interface{} `json:"params,omitempty"`
}

// SendCmd builds a CommandRef for a simple command
func SendCmd(command string) *CommandRef {
	return &CommandRef{
		CmdID:  CmdSendCmd,
		Params: map[string]interface{}{EntityCommandParamCommand: command},
	}
}

// ButtonMapping maps a physical button to short and long press commands
type ButtonMapping struct {
	Button     DeviceButton `json:"button"`
	ShortPress *CommandRef  `json:"short_press,omitempty"`
	LongPress  *CommandRef  `json:"long_press,omitempty"`
}

// GridLocation places a UI item on a page grid
type GridLocation struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// GridSize is the dimension of a UI page grid
type GridSize struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// UIItem is one cell of a UI page
type UIItem struct {
	Type     string       `json:"type"`
	Location GridLocation `json:"location"`
	Text     string       `json:"text,omitempty"`
	Icon     string       `json:"icon,omitempty"`
	Command  *CommandRef  `json:"command,omitempty"`
}

// UIPage is one page of the remote's on-screen UI
type UIPage struct {
	PageID string   `json:"page_id"`
	Name   string   `json:"name"`
	Grid   GridSize `json:"grid"`
	Items  []UIItem `json:"items"`
}

// RemoteOptions carries remote-entity specific options
type RemoteOptions struct {
	SimpleCommands []string        `json:"simple_commands,omitempty"`
	ButtonMapping  []ButtonMapping `json:"button_mapping,omitempty"`
	UserInterface  *UserInterface  `json:"user_interface,omitempty"`
}

// UserInterface groups the UI pages of a remote entity
type UserInterface struct {
	Pages []UIPage `json:"pages"`
}

// Entity is an integration entity exposed to the remote
type Entity struct {
	EntityID   string                 `json:"entity_id"`
	EntityType EntityType             `json:"entity_type"`
	DeviceID   string                 `json:"device_id,omitempty"`
	Name       map[string]string      `json:"name"`
	Features   []string               `json:"features,omitempty"`
	Attributes map[string]interface{} `json:"attributes,omitempty"`
	Options    *RemoteOptions         `json:"options,omitempty"`
}

// EntityStore holds entities and tracks which ones the remote subscribed to
type EntityStore struct {
	mutex      sync.RWMutex
	entities   map[string]*Entity
	order      []string
	subscribed map[string]bool
}

// NewEntityStore creates an empty entity store
func NewEntityStore() *EntityStore {
	return &EntityStore{
		entities:   make(map[string]*Entity),
		subscribed: make(map[string]bool),
	}
}

// Add registers an entity, replacing any entity with the same id
func (s *EntityStore) Add(entity *Entity) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, exists := s.entities[entity.EntityID]; !exists {
		s.order = append(s.order, entity.EntityID)
	}
	s.entities[entity.EntityID] = entity
}

// Clear removes all entities and subscriptions
func (s *EntityStore) Clear() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.entities = make(map[string]*Entity)
	s.order = nil
	s.subscribed = make(map[string]bool)
}

// Get returns an entity by id
func (s *EntityStore) Get(entityID string) (*Entity, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	entity, ok := s.entities[entityID]
	return entity, ok
}

// All returns all entities in registration order. Attribute maps are
// copied so callers never alias the store's live state.
func (s *EntityStore) All() []Entity {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	out := make([]Entity, 0, len(s.order))
	for _, id := range s.order {
		entity := *s.entities[id]
		entity.Attributes = copyAttributes(entity.Attributes)
		out = append(out, entity)
	}
	return out
}

// Count returns the number of registered entities
func (s *EntityStore) Count() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.entities)
}

// Subscribe marks entities as subscribed by the remote
func (s *EntityStore) Subscribe(entityIDs []string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for _, id := range entityIDs {
		if _, exists := s.entities[id]; exists {
			s.subscribed[id] = true
		}
	}
}

// Unsubscribe removes subscriptions for the given entities
func (s *EntityStore) Unsubscribe(entityIDs []string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for _, id := range entityIDs {
		delete(s.subscribed, id)
	}
}

// IsSubscribed reports whether the remote subscribed to an entity
func (s *EntityStore) IsSubscribed(entityID string) bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.subscribed[entityID]
}

// UpdateAttributes merges attribute changes into an entity and returns the
// resulting entity_change payload. Returns an error for unknown entities.
func (s *EntityStore) UpdateAttributes(entityID string, attributes map[string]interface{}) (*EntityChange, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	entity, ok := s.entities[entityID]
	if !ok {
		return nil, fmt.Errorf("entity not found: %s", entityID)
	}

	if entity.Attributes == nil {
		entity.Attributes = make(map[string]interface{})
	}
	for key, value := range attributes {
		entity.Attributes[key] = value
	}

	return &EntityChange{
		EntityID:   entity.EntityID,
		EntityType: entity.EntityType,
		Attributes: attributes,
	}, nil
}

// States returns entity_change payloads for all subscribed entities
func (s *EntityStore) States() []EntityChange {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	out := make([]EntityChange, 0, len(s.subscribed))
	for _, id := range s.order {
		if !s.subscribed[id] {
			continue
		}
		entity := s.entities[id]
		out = append(out, EntityChange{
			EntityID:   entity.EntityID,
			EntityType: entity.EntityType,
			Attributes: copyAttributes(entity.Attributes),
		})
	}
	return out
}

func copyAttributes(attributes map[string]interface{}) map[string]interface{} {
	if attributes == nil {
		return nil
	}
	out := make(map[string]interface{}, len(attributes))
	for key, value := range attributes {
		out[key] = value
	}
	return out
}
