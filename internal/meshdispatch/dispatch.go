// Package meshdispatch routes decoded mesh protocol messages to per-type
// handler methods, falling back to an explicit Unsupported error for any
// message type a handler doesn't implement.
package meshdispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/yafatek/mxp-agents-runtime/internal/meshprimitives"
)

// MessageType identifies the kind of a mesh protocol message.
type MessageType int

const (
	MessageAgentRegister MessageType = iota
	MessageAgentDiscover
	MessageAgentHeartbeat
	MessageCall
	MessageResponse
	MessageEvent
	MessageStreamOpen
	MessageStreamChunk
	MessageStreamClose
	MessageAck
	MessageError
)

// String returns the message type's textual form.
func (t MessageType) String() string {
	switch t {
	case MessageAgentRegister:
		return "agent_register"
	case MessageAgentDiscover:
		return "agent_discover"
	case MessageAgentHeartbeat:
		return "agent_heartbeat"
	case MessageCall:
		return "call"
	case MessageResponse:
		return "response"
	case MessageEvent:
		return "event"
	case MessageStreamOpen:
		return "stream_open"
	case MessageStreamChunk:
		return "stream_chunk"
	case MessageStreamClose:
		return "stream_close"
	case MessageAck:
		return "ack"
	case MessageError:
		return "error"
	default:
		return "unknown"
	}
}

// Message is a decoded mesh protocol envelope.
type Message struct {
	ID      uuid.UUID
	Type    MessageType
	HasType bool
	Payload []byte
}

// NewMessage constructs a message with a fresh id.
func NewMessage(messageType MessageType, payload []byte) Message {
	out := make([]byte, len(payload))
	copy(out, payload)
	return Message{ID: uuid.New(), Type: messageType, HasType: true, Payload: out}
}

// MissingMessageTypeError reports a message whose header could not be
// decoded into a MessageType.
type MissingMessageTypeError struct{}

func (e *MissingMessageTypeError) Error() string { return "message missing type information" }

// UnsupportedMessageError reports a message type a handler doesn't
// implement.
type UnsupportedMessageError struct {
	Type MessageType
}

func (e *UnsupportedMessageError) Error() string {
	return fmt.Sprintf("message type %s is not supported", e.Type)
}

// CustomHandlerError wraps a handler-specific failure with a human-readable
// reason.
type CustomHandlerError struct {
	Reason string
}

func (e *CustomHandlerError) Error() string { return fmt.Sprintf("handler error: %s", e.Reason) }

// HandlerContext is passed to every handler method.
type HandlerContext struct {
	AgentID    meshprimitives.AgentID
	ReceivedAt time.Time
	Message    Message
}

// NewHandlerContext constructs a handler context for the given message.
func NewHandlerContext(agentID meshprimitives.AgentID, message Message) HandlerContext {
	return HandlerContext{AgentID: agentID, ReceivedAt: time.Now(), Message: message}
}

// MessageType returns the context's message type, or
// MissingMessageTypeError if the message carries none.
func (c HandlerContext) MessageType() (MessageType, error) {
	if !c.Message.HasType {
		return 0, &MissingMessageTypeError{}
	}
	return c.Message.Type, nil
}

// AgentMessageHandler is implemented by agent-specific mesh message
// handlers. Embed UnimplementedHandler to inherit Unsupported-returning
// defaults for every method, then override only the ones a given agent
// cares about.
type AgentMessageHandler interface {
	HandleAgentRegister(ctx context.Context, hc HandlerContext) error
	HandleAgentDiscover(ctx context.Context, hc HandlerContext) error
	HandleAgentHeartbeat(ctx context.Context, hc HandlerContext) error
	HandleCall(ctx context.Context, hc HandlerContext) error
	HandleResponse(ctx context.Context, hc HandlerContext) error
	HandleEvent(ctx context.Context, hc HandlerContext) error
	HandleStreamOpen(ctx context.Context, hc HandlerContext) error
	HandleStreamChunk(ctx context.Context, hc HandlerContext) error
	HandleStreamClose(ctx context.Context, hc HandlerContext) error
	HandleAck(ctx context.Context, hc HandlerContext) error
	HandleError(ctx context.Context, hc HandlerContext) error
}

// UnimplementedHandler implements AgentMessageHandler with every method
// returning UnsupportedMessageError for its own type. Agent handlers embed
// this and override only the message types they care about, mirroring how
// generated gRPC service stubs provide Unimplemented defaults.
type UnimplementedHandler struct{}

func (UnimplementedHandler) HandleAgentRegister(ctx context.Context, hc HandlerContext) error {
	return &UnsupportedMessageError{Type: MessageAgentRegister}
}
func (UnimplementedHandler) HandleAgentDiscover(ctx context.Context, hc HandlerContext) error {
	return &UnsupportedMessageError{Type: MessageAgentDiscover}
}
func (UnimplementedHandler) HandleAgentHeartbeat(ctx context.Context, hc HandlerContext) error {
	return &UnsupportedMessageError{Type: MessageAgentHeartbeat}
}
func (UnimplementedHandler) HandleCall(ctx context.Context, hc HandlerContext) error {
	return &UnsupportedMessageError{Type: MessageCall}
}
func (UnimplementedHandler) HandleResponse(ctx context.Context, hc HandlerContext) error {
	return &UnsupportedMessageError{Type: MessageResponse}
}
func (UnimplementedHandler) HandleEvent(ctx context.Context, hc HandlerContext) error {
	return &UnsupportedMessageError{Type: MessageEvent}
}
func (UnimplementedHandler) HandleStreamOpen(ctx context.Context, hc HandlerContext) error {
	return &UnsupportedMessageError{Type: MessageStreamOpen}
}
func (UnimplementedHandler) HandleStreamChunk(ctx context.Context, hc HandlerContext) error {
	return &UnsupportedMessageError{Type: MessageStreamChunk}
}
func (UnimplementedHandler) HandleStreamClose(ctx context.Context, hc HandlerContext) error {
	return &UnsupportedMessageError{Type: MessageStreamClose}
}
func (UnimplementedHandler) HandleAck(ctx context.Context, hc HandlerContext) error {
	return &UnsupportedMessageError{Type: MessageAck}
}
func (UnimplementedHandler) HandleError(ctx context.Context, hc HandlerContext) error {
	return &UnsupportedMessageError{Type: MessageError}
}

// Dispatch routes a message to its matching handler method.
func Dispatch(ctx context.Context, handler AgentMessageHandler, hc HandlerContext) error {
	messageType, err := hc.MessageType()
	if err != nil {
		return err
	}

	switch messageType {
	case MessageAgentRegister:
		return handler.HandleAgentRegister(ctx, hc)
	case MessageAgentDiscover:
		return handler.HandleAgentDiscover(ctx, hc)
	case MessageAgentHeartbeat:
		return handler.HandleAgentHeartbeat(ctx, hc)
	case MessageCall:
		return handler.HandleCall(ctx, hc)
	case MessageResponse:
		return handler.HandleResponse(ctx, hc)
	case MessageEvent:
		return handler.HandleEvent(ctx, hc)
	case MessageStreamOpen:
		return handler.HandleStreamOpen(ctx, hc)
	case MessageStreamChunk:
		return handler.HandleStreamChunk(ctx, hc)
	case MessageStreamClose:
		return handler.HandleStreamClose(ctx, hc)
	case MessageAck:
		return handler.HandleAck(ctx, hc)
	case MessageError:
		return handler.HandleError(ctx, hc)
	default:
		return &UnsupportedMessageError{Type: messageType}
	}
}
