// Package meshprimitives defines the agent identifier, capability descriptor,
// and agent manifest types shared across the mesh agent runtime.
package meshprimitives

import (
	"github.com/google/uuid"
)

// AgentID is a 128-bit opaque agent identifier, displayable as a canonical
// text form and compared/hashed by bit pattern.
type AgentID struct {
	id uuid.UUID
}

// RandomAgentID generates an AgentID from a cryptographic-quality random
// source.
func RandomAgentID() AgentID {
	return AgentID{id: uuid.New()}
}

// AgentIDFromUUID wraps an existing UUID as an AgentID.
func AgentIDFromUUID(u uuid.UUID) AgentID {
	return AgentID{id: u}
}

// AsUUID returns the underlying UUID.
func (a AgentID) AsUUID() uuid.UUID { return a.id }

// String returns the canonical textual form.
func (a AgentID) String() string { return a.id.String() }

// ParseAgentID parses a canonical textual agent id.
func ParseAgentID(s string) (AgentID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return AgentID{}, &InvalidAgentIDError{Source: err}
	}
	return AgentID{id: u}, nil
}

// Equal reports whether two agent ids carry the same bit pattern.
func (a AgentID) Equal(other AgentID) bool { return a.id == other.id }

// MarshalText implements encoding.TextMarshaler so AgentID round-trips
// through JSON as its canonical string form.
func (a AgentID) MarshalText() ([]byte, error) { return []byte(a.id.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *AgentID) UnmarshalText(text []byte) error {
	parsed, err := ParseAgentID(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
