package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/becomeliminal/nim-memory-gateway/core"
)

// GRPCServiceName is the fully qualified gRPC service name.
const GRPCServiceName = "mirix.v1.MemoryGateway"

const (
	grpcAddMethod          = "/" + GRPCServiceName + "/Add"
	grpcSystemPromptMethod = "/" + GRPCServiceName + "/SystemPrompt"
)

// memoryGatewayServer is the gRPC service. Messages are google.protobuf.Struct
// values shaped like the HTTP request and response bodies.
type memoryGatewayServer interface {
	Add(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SystemPrompt(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

var memoryGatewayServiceDesc = grpc.ServiceDesc{
	ServiceName: GRPCServiceName,
	HandlerType: (*memoryGatewayServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Add", Handler: unaryHandler(grpcAddMethod, memoryGatewayServer.Add)},
		{MethodName: "SystemPrompt", Handler: unaryHandler(grpcSystemPromptMethod, memoryGatewayServer.SystemPrompt)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "mirix/v1/gateway.proto",
}

func unaryHandler(
	fullMethod string,
	call func(memoryGatewayServer, context.Context, *structpb.Struct) (*structpb.Struct, error),
) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(memoryGatewayServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(memoryGatewayServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// grpcService adapts the gateway to memoryGatewayServer.
type grpcService struct {
	gateway Service
}

func (g *grpcService) Add(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req core.AddRequest
	if err := decodeStruct(in, &req); err != nil {
		return nil, err
	}

	err := g.gateway.Add(ctx, req.Repo, *req.Text)
	recordOperation("grpc", "add", err)
	if err != nil {
		return nil, grpcError(err)
	}
	return structpb.NewStruct(map[string]any{"status": core.StatusOK})
}

func (g *grpcService) SystemPrompt(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req core.SystemPromptRequest
	if err := decodeStruct(in, &req); err != nil {
		return nil, err
	}

	memoryContext, err := g.gateway.SystemPrompt(ctx, req.Repo, *req.Conversation)
	recordOperation("grpc", "system_prompt", err)
	if err != nil {
		return nil, grpcError(err)
	}
	return structpb.NewStruct(map[string]any{"memory_context": memoryContext})
}

// decodeStruct converts in to a request struct and validates it.
func decodeStruct(in *structpb.Struct, dst any) error {
	data, err := protojson.Marshal(in)
	if err != nil {
		return status.Errorf(codes.InvalidArgument, "encode request: %v", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return status.Errorf(codes.InvalidArgument, "invalid request: %v", err)
	}
	if err := validateRequest(dst); err != nil {
		return status.Error(codes.InvalidArgument, err.Error())
	}
	return nil
}

// grpcError maps a gateway error to a gRPC status.
func grpcError(err error) error {
	switch {
	case errors.Is(err, core.ErrInvalidRequest):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, core.ErrUserNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return status.Error(codes.Unavailable, err.Error())
	}
}

func loggingInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	log.Printf("[GRPC] %s code=%s duration=%s", info.FullMethod, status.Code(err), time.Since(start))
	return resp, err
}

// NewGRPCServer builds a gRPC server exposing the gateway and the standard
// health service. The caller starts it with Serve.
func (s *Server) NewGRPCServer(opts ...grpc.ServerOption) *grpc.Server {
	opts = append([]grpc.ServerOption{grpc.ChainUnaryInterceptor(loggingInterceptor)}, opts...)
	srv := grpc.NewServer(opts...)
	srv.RegisterService(&memoryGatewayServiceDesc, &grpcService{gateway: s.cfg.Gateway})

	hs := health.NewServer()
	hs.SetServingStatus(GRPCServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(srv, hs)
	return srv
}

// GRPCClient calls the gateway's gRPC service.
type GRPCClient struct {
	conn grpc.ClientConnInterface
}

// NewGRPCClient wraps an established connection.
func NewGRPCClient(conn grpc.ClientConnInterface) *GRPCClient {
	return &GRPCClient{conn: conn}
}

// Add stores text for repo.
func (c *GRPCClient) Add(ctx context.Context, repo string, text string) error {
	in, err := structpb.NewStruct(map[string]any{"repo": repo, "text": text})
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	return c.conn.Invoke(ctx, grpcAddMethod, in, new(structpb.Struct))
}

// SystemPrompt returns repo's memory context for conversation.
func (c *GRPCClient) SystemPrompt(ctx context.Context, repo string, conversation string) (string, error) {
	in, err := structpb.NewStruct(map[string]any{"repo": repo, "conversation": conversation})
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, grpcSystemPromptMethod, in, out); err != nil {
		return "", err
	}
	return out.GetFields()["memory_context"].GetStringValue(), nil
}
