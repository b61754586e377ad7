package grpcjson

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

const echoService = "test.EchoService"

type echoRequest struct {
	Text string `json:"text"`
}

type echoResponse struct {
	Text   string `json:"text"`
	Method string `json:"method"`
}

type echoServer interface {
	Echo(ctx context.Context, req *echoRequest) (*echoResponse, error)
}

type echo struct{}

func (echo) Echo(_ context.Context, req *echoRequest) (*echoResponse, error) {
	if req.Text == "" {
		return nil, status.Error(codes.InvalidArgument, "text is required")
	}
	return &echoResponse{Text: req.Text}, nil
}

func dial(t *testing.T, opts ...grpc.ServerOption) *grpc.ClientConn {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer(opts...)
	srv.RegisterService(&grpc.ServiceDesc{
		ServiceName: echoService,
		HandlerType: (*echoServer)(nil),
		Methods:     []grpc.MethodDesc{Unary(echoService, "Echo", echoServer.Echo)},
	}, echo{})
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(Name)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestUnary_RoundTrip(t *testing.T) {
	conn := dial(t)

	var resp echoResponse
	err := conn.Invoke(context.Background(), "/"+echoService+"/Echo", &echoRequest{Text: "hello"}, &resp)
	require.NoError(t, err)
	assert.Equal(t, "hello", resp.Text)

	err = conn.Invoke(context.Background(), "/"+echoService+"/Echo", &echoRequest{}, &resp)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestUnary_RunsInterceptorWithFullMethod(t *testing.T) {
	var seen string
	conn := dial(t, grpc.UnaryInterceptor(func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		seen = info.FullMethod
		resp, err := handler(ctx, req)
		if r, ok := resp.(*echoResponse); ok {
			r.Method = info.FullMethod
		}
		return resp, err
	}))

	var resp echoResponse
	require.NoError(t, conn.Invoke(context.Background(), "/"+echoService+"/Echo", &echoRequest{Text: "hi"}, &resp))
	assert.Equal(t, "/test.EchoService/Echo", seen)
	assert.Equal(t, seen, resp.Method)
}

func TestUnary_MalformedPayload(t *testing.T) {
	desc := Unary(echoService, "Echo", echoServer.Echo)
	_, err := desc.Handler(echo{}, context.Background(), func(v any) error {
		return Codec{}.Unmarshal([]byte("{broken"), v)
	}, nil)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestCodec_EmptyPayload(t *testing.T) {
	var req echoRequest
	require.NoError(t, Codec{}.Unmarshal(nil, &req))
	assert.Empty(t, req.Text)
	assert.Equal(t, "json", Codec{}.Name())
}
