// Package grpcmesh is a gRPC transport binding for meshdispatch: it carries
// mesh protocol envelopes as length-prefixed bytes over a bidirectional
// gRPC stream and hands each decoded message to a meshdispatch handler.
package grpcmesh

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/yafatek/mxp-agents-runtime/internal/meshdispatch"
	"github.com/yafatek/mxp-agents-runtime/internal/meshprimitives"
)

const (
	serviceName    = "mesh.v1.Transport"
	exchangeMethod = "Exchange"
)

// ServiceDesc is the hand-written gRPC service description for the mesh
// transport, registered against a *grpc.Server via RegisterServer.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*any)(nil),
	Streams: []grpc.StreamDesc{
		{
			StreamName:    exchangeMethod,
			Handler:       exchangeHandler,
			ServerStreams: true,
			ClientStreams: true,
		},
	},
	Metadata: "mesh/transport.proto",
}

type wireEnvelope struct {
	AgentID string `json:"agent_id"`
	Type    int    `json:"type"`
	Payload []byte `json:"payload"`
}

func encodeEnvelope(agentID meshprimitives.AgentID, message meshdispatch.Message) (*wrapperspb.BytesValue, error) {
	raw, err := json.Marshal(wireEnvelope{AgentID: agentID.String(), Type: int(message.Type), Payload: message.Payload})
	if err != nil {
		return nil, fmt.Errorf("encode mesh envelope: %w", err)
	}
	return wrapperspb.Bytes(raw), nil
}

func decodeEnvelope(value *wrapperspb.BytesValue) (meshprimitives.AgentID, meshdispatch.Message, error) {
	var wire wireEnvelope
	if err := json.Unmarshal(value.GetValue(), &wire); err != nil {
		return meshprimitives.AgentID{}, meshdispatch.Message{}, fmt.Errorf("decode mesh envelope: %w", err)
	}
	agentID, err := meshprimitives.ParseAgentID(wire.AgentID)
	if err != nil {
		return meshprimitives.AgentID{}, meshdispatch.Message{}, err
	}
	message := meshdispatch.NewMessage(meshdispatch.MessageType(wire.Type), wire.Payload)
	return agentID, message, nil
}

// Server implements the transport's server-side streaming loop, dispatching
// each received envelope to a handler and echoing back an Ack envelope.
type Server struct {
	handler meshdispatch.AgentMessageHandler
}

// NewServer constructs a transport server bound to the given handler.
func NewServer(handler meshdispatch.AgentMessageHandler) *Server {
	return &Server{handler: handler}
}

// RegisterServer registers the mesh transport service on a gRPC server.
func (s *Server) RegisterServer(server *grpc.Server) {
	server.RegisterService(&ServiceDesc, s)
}

func exchangeHandler(srv any, stream grpc.ServerStream) error {
	server, ok := srv.(*Server)
	if !ok {
		return fmt.Errorf("grpcmesh: unexpected handler type %T", srv)
	}

	for {
		var in wrapperspb.BytesValue
		if err := stream.RecvMsg(&in); err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}

		agentID, message, err := decodeEnvelope(&in)
		if err != nil {
			return err
		}

		hc := meshdispatch.NewHandlerContext(agentID, message)
		dispatchErr := meshdispatch.Dispatch(stream.Context(), server.handler, hc)

		ackType := meshdispatch.MessageAck
		if dispatchErr != nil {
			ackType = meshdispatch.MessageError
		}
		ack := meshdispatch.NewMessage(ackType, []byte(errString(dispatchErr)))
		out, err := encodeEnvelope(agentID, ack)
		if err != nil {
			return err
		}
		if err := stream.SendMsg(out); err != nil {
			return err
		}
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// Client wraps a gRPC client stream bound to the mesh transport service.
type Client struct {
	stream grpc.ClientStream
}

// Dial opens a bidirectional transport stream against the given
// connection.
func Dial(ctx context.Context, conn *grpc.ClientConn) (*Client, error) {
	stream, err := conn.NewStream(ctx, &ServiceDesc.Streams[0], "/"+serviceName+"/"+exchangeMethod)
	if err != nil {
		return nil, fmt.Errorf("grpcmesh: open transport stream: %w", err)
	}
	return &Client{stream: stream}, nil
}

// Send transmits a mesh message for the given agent over the stream.
func (c *Client) Send(agentID meshprimitives.AgentID, message meshdispatch.Message) error {
	envelope, err := encodeEnvelope(agentID, message)
	if err != nil {
		return err
	}
	return c.stream.SendMsg(envelope)
}

// Recv blocks for the next envelope sent back by the server (typically an
// Ack or Error message).
func (c *Client) Recv() (meshprimitives.AgentID, meshdispatch.Message, error) {
	var in wrapperspb.BytesValue
	if err := c.stream.RecvMsg(&in); err != nil {
		return meshprimitives.AgentID{}, meshdispatch.Message{}, err
	}
	return decodeEnvelope(&in)
}

// CloseSend half-closes the client's send direction.
func (c *Client) CloseSend() error { return c.stream.CloseSend() }
