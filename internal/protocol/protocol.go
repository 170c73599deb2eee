// Package protocol defines the JSON messages exchanged with the UI runtime.
//
// Inbound commands are validated against an embedded JSON schema before they are
// decoded, so the owner goroutine only ever sees well-formed commands. Outbound
// messages carry relay updates, broadcast events and full relay state.
package protocol

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aretw0/relaykit/pkg/domain"
	"github.com/mitchellh/mapstructure"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// MaxMessageBytes bounds the size of one inbound message.
const MaxMessageBytes = 64 << 10

// ErrInvalidMessage is returned for messages that fail parsing or schema validation.
var ErrInvalidMessage = errors.New("invalid message")

//go:embed schema/command.json
var commandSchema []byte

const schemaURL = "https://relaykit.dev/schema/command.json"

// Decoder validates and decodes inbound commands. It is safe for concurrent use.
type Decoder struct {
	schema *jsonschema.Schema
}

// NewDecoder compiles the embedded command schema.
func NewDecoder() (*Decoder, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(schemaURL, bytes.NewReader(commandSchema)); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	schema, err := compiler.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &Decoder{schema: schema}, nil
}

// MustDecoder is like NewDecoder but panics on error. The schema is embedded, so a
// failure is a build defect.
func MustDecoder() *Decoder {
	d, err := NewDecoder()
	if err != nil {
		panic(err)
	}
	return d
}

type wireCommand struct {
	Type       string   `mapstructure:"type"`
	ID         string   `mapstructure:"id"`
	Value      any      `mapstructure:"value"`
	Normalized *float64 `mapstructure:"normalized"`
	Visible    *bool    `mapstructure:"visible"`
}

// Decode parses one command.
func (d *Decoder) Decode(data []byte) (domain.Command, error) {
	return d.decode(data, "")
}

// DecodeFor parses a command addressed to relay id, as in POST /api/relays/{id}.
// A body without "id" inherits it; a body naming another relay is rejected.
func (d *Decoder) DecodeFor(id domain.ParameterID, data []byte) (domain.Command, error) {
	return d.decode(data, id)
}

func (d *Decoder) decode(data []byte, id domain.ParameterID) (domain.Command, error) {
	if len(data) > MaxMessageBytes {
		return domain.Command{}, fmt.Errorf("%w: %d bytes exceeds limit", ErrInvalidMessage, len(data))
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return domain.Command{}, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	if raw == nil {
		return domain.Command{}, fmt.Errorf("%w: expected object", ErrInvalidMessage)
	}
	if id != "" {
		switch got, ok := raw["id"]; {
		case !ok:
			raw["id"] = string(id)
		case got != string(id):
			return domain.Command{}, fmt.Errorf("%w: body addresses %v, path addresses %q", ErrInvalidMessage, got, id)
		}
	}
	if err := d.schema.Validate(raw); err != nil {
		return domain.Command{}, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}

	var w wireCommand
	if err := mapstructure.Decode(raw, &w); err != nil {
		return domain.Command{}, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	return domain.Command{
		Type:       domain.CommandType(w.Type),
		ID:         domain.ParameterID(w.ID),
		Value:      w.Value,
		Normalized: w.Normalized,
		Visible:    w.Visible,
	}, nil
}

// Outbound message types.
const (
	TypeRelay = "relay"
	TypeEvent = "event"
	TypeState = "state"
	TypeError = "error"
)

// Update is the wire form of a relay update.
type Update struct {
	Type       string             `json:"type"`
	ID         domain.ParameterID `json:"id"`
	Kind       domain.Kind        `json:"kind"`
	Value      any                `json:"value"`
	Normalized float64            `json:"normalized"`
}

// NewUpdate converts a relay update.
func NewUpdate(u domain.RelayUpdate) Update {
	return Update{
		Type:       TypeRelay,
		ID:         u.ID,
		Kind:       u.Kind,
		Value:      u.Value.Any(),
		Normalized: u.Normalized,
	}
}

// Event is the wire form of a broadcast event.
type Event struct {
	Type    string `json:"type"`
	Name    string `json:"name"`
	Payload any    `json:"payload,omitempty"`
}

// NewEvent converts an event.
func NewEvent(e domain.Event) Event {
	return Event{Type: TypeEvent, Name: e.Name, Payload: e.Payload}
}

// State carries the current value of every relay.
type State struct {
	Type   string   `json:"type"`
	Relays []Update `json:"relays"`
}

// NewState converts a full relay state.
func NewState(updates []domain.RelayUpdate) State {
	s := State{Type: TypeState, Relays: make([]Update, 0, len(updates))}
	for _, u := range updates {
		s.Relays = append(s.Relays, NewUpdate(u))
	}
	return s
}

// Error reports a rejected command to a WebSocket client.
type Error struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// NewError converts err.
func NewError(err error) Error {
	return Error{Type: TypeError, Error: err.Error()}
}

// Encode marshals an outbound message.
func Encode(msg any) ([]byte, error) {
	return json.Marshal(msg)
}
