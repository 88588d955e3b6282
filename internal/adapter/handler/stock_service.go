package handler

import (
	"context"
	"encoding/json"

	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
)

// The service is described by hand instead of protoc output; messages
// travel through a JSON codec negotiated via the "json" content
// subtype. Servers must be built with grpc.ForceServerCodec(JSONCodec{}).

// JSONCodec marshals gRPC messages as JSON.
type JSONCodec struct{}

func (JSONCodec) Marshal(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func (JSONCodec) Unmarshal(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

func (JSONCodec) Name() string {
	return "json"
}

func init() {
	encoding.RegisterCodec(JSONCodec{})
}

type AdjustRequest struct {
	IdempotencyKey string `json:"idempotency_key"`
	ProductID      string `json:"product_id"`
	WarehouseID    string `json:"warehouse_id"`
	Delta          int    `json:"delta"`
	Reason         string `json:"reason"`
	RequestedBy    string `json:"requested_by"`
}

type AdjustResponse struct {
	Outcome  string `json:"outcome"`
	EventID  string `json:"event_id"`
	Quantity int    `json:"quantity"`
	Version  int64  `json:"version"`
}

type LevelRequest struct {
	ProductID   string `json:"product_id"`
	WarehouseID string `json:"warehouse_id"`
}

type LevelResponse struct {
	Quantity int   `json:"quantity"`
	Version  int64 `json:"version"`
}

type HistoryRequest struct {
	ProductID   string `json:"product_id"`
	WarehouseID string `json:"warehouse_id"`
	Since       string `json:"since"` // RFC3339, empty for full history
}

type HistoryResponse struct {
	Events []EventHTTPResponse `json:"events"`
}

type StockServiceServer interface {
	Adjust(ctx context.Context, req *AdjustRequest) (*AdjustResponse, error)
	CurrentLevel(ctx context.Context, req *LevelRequest) (*LevelResponse, error)
	History(ctx context.Context, req *HistoryRequest) (*HistoryResponse, error)
}

func RegisterStockServiceServer(s *grpc.Server, srv StockServiceServer) {
	s.RegisterService(&StockService_ServiceDesc, srv)
}

func _StockService_Adjust_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(AdjustRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(StockServiceServer).Adjust(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: "/inventory.StockService/Adjust",
	}
	return interceptor(ctx, in, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(StockServiceServer).Adjust(ctx, req.(*AdjustRequest))
	})
}

func _StockService_CurrentLevel_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(LevelRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(StockServiceServer).CurrentLevel(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: "/inventory.StockService/CurrentLevel",
	}
	return interceptor(ctx, in, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(StockServiceServer).CurrentLevel(ctx, req.(*LevelRequest))
	})
}

func _StockService_History_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(HistoryRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(StockServiceServer).History(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: "/inventory.StockService/History",
	}
	return interceptor(ctx, in, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(StockServiceServer).History(ctx, req.(*HistoryRequest))
	})
}

var StockService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: "inventory.StockService",
	HandlerType: (*StockServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Adjust", Handler: _StockService_Adjust_Handler},
		{MethodName: "CurrentLevel", Handler: _StockService_CurrentLevel_Handler},
		{MethodName: "History", Handler: _StockService_History_Handler},
	},
	Streams: []grpc.StreamDesc{},
}
