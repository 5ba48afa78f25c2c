// internal/protocol/commands.go
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrProtocol marks a frame that could not be decoded into a known command.
// The connection stays open; the frame is dropped.
var ErrProtocol = errors.New("protocol error")

// Inbound frame types.
const (
	TypeSetUsername = "setUsername"
	TypeReady       = "ready"
	TypeMove        = "move"
	TypeChat        = "chat"
)

// Command is one decoded client frame.
type Command interface {
	Kind() string
}

// SetUsername binds the connection to an identity. ID is optional and takes
// precedence over any token presented at upgrade.
type SetUsername struct {
	Name string
	ID   string
}

type Ready struct {
	Ready bool
}

type Move struct {
	Position int
}

type Chat struct {
	Text string
}

func (SetUsername) Kind() string { return TypeSetUsername }
func (Ready) Kind() string       { return TypeReady }
func (Move) Kind() string        { return TypeMove }
func (Chat) Kind() string        { return TypeChat }

// inbound is the union of every field a client frame may carry. Pointers
// distinguish a missing field from its zero value.
type inbound struct {
	Type     string  `json:"type"`
	Name     *string `json:"name"`
	ID       *string `json:"id"`
	Ready    *bool   `json:"ready"`
	Position *int    `json:"position"`
	Text     *string `json:"text"`
}

// Decode parses a text frame into a typed command. Every failure wraps ErrProtocol.
func Decode(data []byte) (Command, error) {
	var in inbound
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProtocol, err)
	}

	switch in.Type {
	case TypeSetUsername:
		if in.Name == nil {
			return nil, missing(in.Type, "name")
		}
		cmd := SetUsername{Name: *in.Name}
		if in.ID != nil {
			cmd.ID = *in.ID
		}
		return cmd, nil
	case TypeReady:
		if in.Ready == nil {
			return nil, missing(in.Type, "ready")
		}
		return Ready{Ready: *in.Ready}, nil
	case TypeMove:
		if in.Position == nil {
			return nil, missing(in.Type, "position")
		}
		return Move{Position: *in.Position}, nil
	case TypeChat:
		if in.Text == nil {
			return nil, missing(in.Type, "text")
		}
		return Chat{Text: *in.Text}, nil
	case "":
		return nil, fmt.Errorf("%w: missing type", ErrProtocol)
	}
	return nil, fmt.Errorf("%w: unknown type %q", ErrProtocol, in.Type)
}

func missing(kind, field string) error {
	return fmt.Errorf("%w: %s without %s", ErrProtocol, kind, field)
}
