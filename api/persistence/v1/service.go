package persistencev1

import (
	"context"

	"github.com/louisbranch/hexterrain/internal/platform/grpc/codec"
	gogrpc "google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "persistence.v1.PersistenceService"

const (
	PersistenceService_BeginTransaction_FullMethodName    = "/persistence.v1.PersistenceService/BeginTransaction"
	PersistenceService_CommitTransaction_FullMethodName   = "/persistence.v1.PersistenceService/CommitTransaction"
	PersistenceService_RollbackTransaction_FullMethodName = "/persistence.v1.PersistenceService/RollbackTransaction"
	PersistenceService_StoreTerrain_FullMethodName        = "/persistence.v1.PersistenceService/StoreTerrain"
	PersistenceService_RetrieveTerrain_FullMethodName     = "/persistence.v1.PersistenceService/RetrieveTerrain"
	PersistenceService_QueueOperation_FullMethodName      = "/persistence.v1.PersistenceService/QueueOperation"
)

// PersistenceServiceServer is the server API for PersistenceService.
type PersistenceServiceServer interface {
	BeginTransaction(context.Context, *BeginTransactionRequest) (*BeginTransactionResponse, error)
	CommitTransaction(context.Context, *CommitTransactionRequest) (*CommitTransactionResponse, error)
	RollbackTransaction(context.Context, *RollbackTransactionRequest) (*RollbackTransactionResponse, error)
	StoreTerrain(context.Context, *StoreTerrainRequest) (*StoreTerrainResponse, error)
	RetrieveTerrain(context.Context, *RetrieveTerrainRequest) (*RetrieveTerrainResponse, error)
	QueueOperation(context.Context, *QueueOperationRequest) (*QueueOperationResponse, error)
}

// UnimplementedPersistenceServiceServer answers every RPC with Unimplemented.
// Embed it to stay forward compatible with new methods.
type UnimplementedPersistenceServiceServer struct{}

func (UnimplementedPersistenceServiceServer) BeginTransaction(context.Context, *BeginTransactionRequest) (*BeginTransactionResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method BeginTransaction not implemented")
}

func (UnimplementedPersistenceServiceServer) CommitTransaction(context.Context, *CommitTransactionRequest) (*CommitTransactionResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method CommitTransaction not implemented")
}

func (UnimplementedPersistenceServiceServer) RollbackTransaction(context.Context, *RollbackTransactionRequest) (*RollbackTransactionResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method RollbackTransaction not implemented")
}

func (UnimplementedPersistenceServiceServer) StoreTerrain(context.Context, *StoreTerrainRequest) (*StoreTerrainResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method StoreTerrain not implemented")
}

func (UnimplementedPersistenceServiceServer) RetrieveTerrain(context.Context, *RetrieveTerrainRequest) (*RetrieveTerrainResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method RetrieveTerrain not implemented")
}

func (UnimplementedPersistenceServiceServer) QueueOperation(context.Context, *QueueOperationRequest) (*QueueOperationResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method QueueOperation not implemented")
}

// PersistenceService_ServiceDesc is the grpc.ServiceDesc for PersistenceService.
var PersistenceService_ServiceDesc = gogrpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*PersistenceServiceServer)(nil),
	Methods: []gogrpc.MethodDesc{
		{MethodName: "BeginTransaction", Handler: codec.UnaryHandler(PersistenceService_BeginTransaction_FullMethodName, PersistenceServiceServer.BeginTransaction)},
		{MethodName: "CommitTransaction", Handler: codec.UnaryHandler(PersistenceService_CommitTransaction_FullMethodName, PersistenceServiceServer.CommitTransaction)},
		{MethodName: "RollbackTransaction", Handler: codec.UnaryHandler(PersistenceService_RollbackTransaction_FullMethodName, PersistenceServiceServer.RollbackTransaction)},
		{MethodName: "StoreTerrain", Handler: codec.UnaryHandler(PersistenceService_StoreTerrain_FullMethodName, PersistenceServiceServer.StoreTerrain)},
		{MethodName: "RetrieveTerrain", Handler: codec.UnaryHandler(PersistenceService_RetrieveTerrain_FullMethodName, PersistenceServiceServer.RetrieveTerrain)},
		{MethodName: "QueueOperation", Handler: codec.UnaryHandler(PersistenceService_QueueOperation_FullMethodName, PersistenceServiceServer.QueueOperation)},
	},
	Streams:  []gogrpc.StreamDesc{},
	Metadata: "persistence/v1/service.go",
}

// RegisterPersistenceServiceServer registers srv with s.
func RegisterPersistenceServiceServer(s gogrpc.ServiceRegistrar, srv PersistenceServiceServer) {
	s.RegisterService(&PersistenceService_ServiceDesc, srv)
}

// PersistenceServiceClient is the client API for PersistenceService.
type PersistenceServiceClient interface {
	BeginTransaction(ctx context.Context, in *BeginTransactionRequest, opts ...gogrpc.CallOption) (*BeginTransactionResponse, error)
	CommitTransaction(ctx context.Context, in *CommitTransactionRequest, opts ...gogrpc.CallOption) (*CommitTransactionResponse, error)
	RollbackTransaction(ctx context.Context, in *RollbackTransactionRequest, opts ...gogrpc.CallOption) (*RollbackTransactionResponse, error)
	StoreTerrain(ctx context.Context, in *StoreTerrainRequest, opts ...gogrpc.CallOption) (*StoreTerrainResponse, error)
	RetrieveTerrain(ctx context.Context, in *RetrieveTerrainRequest, opts ...gogrpc.CallOption) (*RetrieveTerrainResponse, error)
	QueueOperation(ctx context.Context, in *QueueOperationRequest, opts ...gogrpc.CallOption) (*QueueOperationResponse, error)
}

type persistenceServiceClient struct {
	cc gogrpc.ClientConnInterface
}

// NewPersistenceServiceClient returns a client that speaks the JSON codec over cc.
func NewPersistenceServiceClient(cc gogrpc.ClientConnInterface) PersistenceServiceClient {
	return &persistenceServiceClient{cc: cc}
}

func (c *persistenceServiceClient) BeginTransaction(ctx context.Context, in *BeginTransactionRequest, opts ...gogrpc.CallOption) (*BeginTransactionResponse, error) {
	return codec.Invoke[BeginTransactionResponse](ctx, c.cc, PersistenceService_BeginTransaction_FullMethodName, in, opts...)
}

func (c *persistenceServiceClient) CommitTransaction(ctx context.Context, in *CommitTransactionRequest, opts ...gogrpc.CallOption) (*CommitTransactionResponse, error) {
	return codec.Invoke[CommitTransactionResponse](ctx, c.cc, PersistenceService_CommitTransaction_FullMethodName, in, opts...)
}

func (c *persistenceServiceClient) RollbackTransaction(ctx context.Context, in *RollbackTransactionRequest, opts ...gogrpc.CallOption) (*RollbackTransactionResponse, error) {
	return codec.Invoke[RollbackTransactionResponse](ctx, c.cc, PersistenceService_RollbackTransaction_FullMethodName, in, opts...)
}

func (c *persistenceServiceClient) StoreTerrain(ctx context.Context, in *StoreTerrainRequest, opts ...gogrpc.CallOption) (*StoreTerrainResponse, error) {
	return codec.Invoke[StoreTerrainResponse](ctx, c.cc, PersistenceService_StoreTerrain_FullMethodName, in, opts...)
}

func (c *persistenceServiceClient) RetrieveTerrain(ctx context.Context, in *RetrieveTerrainRequest, opts ...gogrpc.CallOption) (*RetrieveTerrainResponse, error) {
	return codec.Invoke[RetrieveTerrainResponse](ctx, c.cc, PersistenceService_RetrieveTerrain_FullMethodName, in, opts...)
}

func (c *persistenceServiceClient) QueueOperation(ctx context.Context, in *QueueOperationRequest, opts ...gogrpc.CallOption) (*QueueOperationResponse, error) {
	return codec.Invoke[QueueOperationResponse](ctx, c.cc, PersistenceService_QueueOperation_FullMethodName, in, opts...)
}
