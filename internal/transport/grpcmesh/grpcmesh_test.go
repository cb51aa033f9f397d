package grpcmesh

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"

	"github.com/yafatek/mxp-agents-runtime/internal/meshdispatch"
	"github.com/yafatek/mxp-agents-runtime/internal/meshprimitives"
)

type echoCallHandler struct {
	meshdispatch.UnimplementedHandler
}

func (echoCallHandler) HandleCall(ctx context.Context, hc meshdispatch.HandlerContext) error {
	return nil
}

func dialBufconn(t *testing.T, handler meshdispatch.AgentMessageHandler) (*grpc.ClientConn, func()) {
	t.Helper()
	listener := bufconn.Listen(1024 * 1024)

	server := grpc.NewServer()
	NewServer(handler).RegisterServer(server)
	go func() { _ = server.Serve(listener) }()

	conn, err := grpc.NewClient("passthrough:///bufconn",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return listener.Dial() }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)

	return conn, func() {
		conn.Close()
		server.Stop()
	}
}

func TestClientServerRoundTripsCallMessage(t *testing.T) {
	conn, cleanup := dialBufconn(t, echoCallHandler{})
	defer cleanup()

	ctx := context.Background()
	client, err := Dial(ctx, conn)
	require.NoError(t, err)

	agentID := meshprimitives.RandomAgentID()
	message := meshdispatch.NewMessage(meshdispatch.MessageCall, []byte("ping"))
	require.NoError(t, client.Send(agentID, message))

	_, ack, err := client.Recv()
	require.NoError(t, err)
	assert.Equal(t, meshdispatch.MessageAck, ack.Type)
}

func TestClientServerSurfacesUnsupportedMessage(t *testing.T) {
	conn, cleanup := dialBufconn(t, echoCallHandler{})
	defer cleanup()

	ctx := context.Background()
	client, err := Dial(ctx, conn)
	require.NoError(t, err)

	agentID := meshprimitives.RandomAgentID()
	message := meshdispatch.NewMessage(meshdispatch.MessageEvent, []byte("noop"))
	require.NoError(t, client.Send(agentID, message))

	_, ack, err := client.Recv()
	require.NoError(t, err)
	assert.Equal(t, meshdispatch.MessageError, ack.Type)
	assert.NotEmpty(t, ack.Payload)
}
