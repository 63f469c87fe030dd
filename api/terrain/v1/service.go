package terrainv1

import (
	"context"

	"github.com/louisbranch/hexterrain/internal/platform/grpc/codec"
	gogrpc "google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "terrain.v1.TerrainGenerationService"

const TerrainGenerationService_GenerateTerrain_FullMethodName = "/terrain.v1.TerrainGenerationService/GenerateTerrain"

// TerrainGenerationServiceServer is the server API for TerrainGenerationService.
type TerrainGenerationServiceServer interface {
	GenerateTerrain(context.Context, *GenerateTerrainRequest) (*GenerateTerrainResponse, error)
}

// UnimplementedTerrainGenerationServiceServer answers every RPC with Unimplemented.
type UnimplementedTerrainGenerationServiceServer struct{}

func (UnimplementedTerrainGenerationServiceServer) GenerateTerrain(context.Context, *GenerateTerrainRequest) (*GenerateTerrainResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method GenerateTerrain not implemented")
}

// TerrainGenerationService_ServiceDesc is the grpc.ServiceDesc for TerrainGenerationService.
var TerrainGenerationService_ServiceDesc = gogrpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*TerrainGenerationServiceServer)(nil),
	Methods: []gogrpc.MethodDesc{
		{
			MethodName: "GenerateTerrain",
			Handler:    codec.UnaryHandler(TerrainGenerationService_GenerateTerrain_FullMethodName, TerrainGenerationServiceServer.GenerateTerrain),
		},
	},
	Streams:  []gogrpc.StreamDesc{},
	Metadata: "terrain/v1/service.go",
}

// RegisterTerrainGenerationServiceServer registers srv with s.
func RegisterTerrainGenerationServiceServer(s gogrpc.ServiceRegistrar, srv TerrainGenerationServiceServer) {
	s.RegisterService(&TerrainGenerationService_ServiceDesc, srv)
}

// TerrainGenerationServiceClient is the client API for TerrainGenerationService.
type TerrainGenerationServiceClient interface {
	GenerateTerrain(ctx context.Context, in *GenerateTerrainRequest, opts ...gogrpc.CallOption) (*GenerateTerrainResponse, error)
}

type terrainGenerationServiceClient struct {
	cc gogrpc.ClientConnInterface
}

// NewTerrainGenerationServiceClient returns a client that speaks the JSON codec over cc.
func NewTerrainGenerationServiceClient(cc gogrpc.ClientConnInterface) TerrainGenerationServiceClient {
	return &terrainGenerationServiceClient{cc: cc}
}

func (c *terrainGenerationServiceClient) GenerateTerrain(ctx context.Context, in *GenerateTerrainRequest, opts ...gogrpc.CallOption) (*GenerateTerrainResponse, error) {
	return codec.Invoke[GenerateTerrainResponse](ctx, c.cc, TerrainGenerationService_GenerateTerrain_FullMethodName, in, opts...)
}
