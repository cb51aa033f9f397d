package meshmemory

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MemoryChannel categorizes a memory entry by where it originated.
type MemoryChannel struct {
	kind  memoryChannelKind
	label string
}

type memoryChannelKind int

const (
	channelInput memoryChannelKind = iota
	channelOutput
	channelTool
	channelSystem
	channelCustom
)

var (
	// ChannelInput marks messages arriving from outside the agent.
	ChannelInput = MemoryChannel{kind: channelInput}
	// ChannelOutput marks messages produced by the agent.
	ChannelOutput = MemoryChannel{kind: channelOutput}
	// ChannelTool marks tool invocation results or intermediate tool state.
	ChannelTool = MemoryChannel{kind: channelTool}
	// ChannelSystem marks internal runtime events (checkpoints, policy results).
	ChannelSystem = MemoryChannel{kind: channelSystem}
)

// CustomChannel builds a Custom channel tagged by implementers for
// domain-specific routing. The label must not be empty or whitespace-only.
func CustomChannel(label string) (MemoryChannel, error) {
	if strings.TrimSpace(label) == "" {
		return MemoryChannel{}, &InvalidRecordError{Reason: "custom memory channel label must not be empty"}
	}
	return MemoryChannel{kind: channelCustom, label: label}, nil
}

// String returns the channel's snake_case textual form, matching the wire
// representation used by MarshalJSON.
func (c MemoryChannel) String() string {
	switch c.kind {
	case channelInput:
		return "input"
	case channelOutput:
		return "output"
	case channelTool:
		return "tool"
	case channelSystem:
		return "system"
	case channelCustom:
		return c.label
	default:
		return "input"
	}
}

// IsCustom reports whether this is a Custom channel, returning its label.
func (c MemoryChannel) IsCustom() (string, bool) {
	if c.kind == channelCustom {
		return c.label, true
	}
	return "", false
}

// MarshalJSON implements json.Marshaler.
func (c MemoryChannel) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *MemoryChannel) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return &SerializationError{Source: err}
	}
	switch s {
	case "input":
		*c = ChannelInput
	case "output":
		*c = ChannelOutput
	case "tool":
		*c = ChannelTool
	case "system":
		*c = ChannelSystem
	default:
		custom, err := CustomChannel(s)
		if err != nil {
			return err
		}
		*c = custom
	}
	return nil
}

// MemoryRecord describes a single captured piece of memory.
type MemoryRecord struct {
	id        uuid.UUID
	timestamp time.Time
	channel   MemoryChannel
	payload   []byte
	tags      []string
	metadata  map[string]any
	embedding *EmbeddingVector
}

// ID returns the record's unique identifier.
func (r MemoryRecord) ID() uuid.UUID { return r.id }

// Timestamp returns the record's capture time.
func (r MemoryRecord) Timestamp() time.Time { return r.timestamp }

// Channel returns the record's channel.
func (r MemoryRecord) Channel() MemoryChannel { return r.channel }

// Payload returns the record's raw payload bytes.
func (r MemoryRecord) Payload() []byte {
	out := make([]byte, len(r.payload))
	copy(out, r.payload)
	return out
}

// Tags returns the record's tags.
func (r MemoryRecord) Tags() []string {
	out := make([]string, len(r.tags))
	copy(out, r.tags)
	return out
}

// Metadata returns the record's metadata map.
func (r MemoryRecord) Metadata() map[string]any {
	out := make(map[string]any, len(r.metadata))
	for k, v := range r.metadata {
		out[k] = v
	}
	return out
}

// Embedding returns the record's optional embedding.
func (r MemoryRecord) Embedding() (EmbeddingVector, bool) {
	if r.embedding == nil {
		return EmbeddingVector{}, false
	}
	return *r.embedding, true
}

// MemoryRecordBuilder assembles MemoryRecord instances, validating tags as
// they are added.
type MemoryRecordBuilder struct {
	id        uuid.UUID
	timestamp time.Time
	channel   MemoryChannel
	payload   []byte
	tags      []string
	metadata  map[string]any
	embedding *EmbeddingVector
}

// NewMemoryRecordBuilder starts a builder for the given channel and payload.
func NewMemoryRecordBuilder(channel MemoryChannel, payload []byte) *MemoryRecordBuilder {
	body := make([]byte, len(payload))
	copy(body, payload)
	return &MemoryRecordBuilder{
		id:        uuid.New(),
		timestamp: time.Now().UTC(),
		channel:   channel,
		payload:   body,
		metadata:  make(map[string]any),
	}
}

// WithID overrides the record identifier.
func (b *MemoryRecordBuilder) WithID(id uuid.UUID) *MemoryRecordBuilder {
	b.id = id
	return b
}

// WithTimestamp overrides the record timestamp.
func (b *MemoryRecordBuilder) WithTimestamp(ts time.Time) *MemoryRecordBuilder {
	b.timestamp = ts
	return b
}

// Tag adds a single tag, rejecting empty or whitespace-only values.
func (b *MemoryRecordBuilder) Tag(tag string) (*MemoryRecordBuilder, error) {
	if strings.TrimSpace(tag) == "" {
		return nil, &InvalidRecordError{Reason: "memory tags must not be empty"}
	}
	b.tags = append(b.tags, tag)
	return b, nil
}

// Tags extends the record with multiple tags, failing on the first invalid
// entry.
func (b *MemoryRecordBuilder) Tags(tags []string) (*MemoryRecordBuilder, error) {
	cur := b
	for _, tag := range tags {
		var err error
		cur, err = cur.Tag(tag)
		if err != nil {
			return nil, err
		}
	}
	return cur, nil
}

// Metadata sets a single metadata entry.
func (b *MemoryRecordBuilder) Metadata(key string, value any) *MemoryRecordBuilder {
	b.metadata[key] = value
	return b
}

// MergeMetadata merges a full metadata map, overwriting existing keys.
func (b *MemoryRecordBuilder) MergeMetadata(m map[string]any) *MemoryRecordBuilder {
	for k, v := range m {
		b.metadata[k] = v
	}
	return b
}

// WithEmbedding attaches an embedding to the record.
func (b *MemoryRecordBuilder) WithEmbedding(embedding EmbeddingVector) *MemoryRecordBuilder {
	b.embedding = &embedding
	return b
}

// Build finalizes the builder into a MemoryRecord.
func (b *MemoryRecordBuilder) Build() (MemoryRecord, error) {
	tags := make([]string, len(b.tags))
	copy(tags, b.tags)
	metadata := make(map[string]any, len(b.metadata))
	for k, v := range b.metadata {
		metadata[k] = v
	}
	payload := make([]byte, len(b.payload))
	copy(payload, b.payload)
	return MemoryRecord{
		id:        b.id,
		timestamp: b.timestamp,
		channel:   b.channel,
		payload:   payload,
		tags:      tags,
		metadata:  metadata,
		embedding: b.embedding,
	}, nil
}

// memoryRecordWire is the JSON wire shape for a MemoryRecord, used for
// journal persistence and vector-store metadata round-tripping.
type memoryRecordWire struct {
	ID        uuid.UUID        `json:"id"`
	Timestamp time.Time        `json:"timestamp"`
	Channel   MemoryChannel    `json:"channel"`
	Payload   []byte           `json:"payload"`
	Tags      []string         `json:"tags,omitempty"`
	Metadata  map[string]any   `json:"metadata,omitempty"`
	Embedding *EmbeddingVector `json:"embedding,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (r MemoryRecord) MarshalJSON() ([]byte, error) {
	return json.Marshal(memoryRecordWire{
		ID:        r.id,
		Timestamp: r.timestamp,
		Channel:   r.channel,
		Payload:   r.payload,
		Tags:      r.tags,
		Metadata:  r.metadata,
		Embedding: r.embedding,
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *MemoryRecord) UnmarshalJSON(data []byte) error {
	var wire memoryRecordWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return &SerializationError{Source: err}
	}
	r.id = wire.ID
	r.timestamp = wire.Timestamp
	r.channel = wire.Channel
	r.payload = wire.Payload
	r.tags = wire.Tags
	r.metadata = wire.Metadata
	r.embedding = wire.Embedding
	return nil
}
