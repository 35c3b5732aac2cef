package server

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "medcards.v1.ExtractionService"

const (
	ParseReplyMethod      = "/" + ServiceName + "/ParseReply"
	ProcessImageMethod    = "/" + ServiceName + "/ProcessImage"
	ProcessPathMethod     = "/" + ServiceName + "/ProcessPath"
	IngestDirectoryMethod = "/" + ServiceName + "/IngestDirectory"
	GetRecordMethod       = "/" + ServiceName + "/GetRecord"
	ListRecordsMethod     = "/" + ServiceName + "/ListRecords"
	ExportWorkbookMethod  = "/" + ServiceName + "/ExportWorkbook"
)

// ExtractionServer is the server API. Messages are protobuf well-known types
// so the service needs no generated stubs.
type ExtractionServer interface {
	// ParseReply runs the field extractor over a raw model reply.
	ParseReply(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	// ProcessImage processes an uploaded image {filename, image (base64), force}.
	ProcessImage(context.Context, *structpb.Struct) (*structpb.Struct, error)
	// ProcessPath processes an image on the server's disk {path, force}.
	ProcessPath(context.Context, *structpb.Struct) (*structpb.Struct, error)
	// IngestDirectory scans {root, force} and queues every image found.
	IngestDirectory(context.Context, *structpb.Struct) (*structpb.Struct, error)
	// GetRecord returns the stored record for a filename.
	GetRecord(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	// ListRecords returns stored records {status, limit}.
	ListRecords(context.Context, *structpb.Struct) (*structpb.Struct, error)
	// ExportWorkbook returns the stored records as XLSX bytes {status}.
	ExportWorkbook(context.Context, *structpb.Struct) (*wrapperspb.BytesValue, error)
}

// RegisterExtractionServer registers srv on s.
func RegisterExtractionServer(s grpc.ServiceRegistrar, srv ExtractionServer) {
	s.RegisterService(&ExtractionServiceDesc, srv)
}

func unary[Req any, Resp any](method string, call func(ExtractionServer, context.Context, *Req) (Resp, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(ExtractionServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(ExtractionServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// ExtractionServiceDesc is the grpc.ServiceDesc for ExtractionServer.
var ExtractionServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ExtractionServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ParseReply", Handler: unary(ParseReplyMethod, ExtractionServer.ParseReply)},
		{MethodName: "ProcessImage", Handler: unary(ProcessImageMethod, ExtractionServer.ProcessImage)},
		{MethodName: "ProcessPath", Handler: unary(ProcessPathMethod, ExtractionServer.ProcessPath)},
		{MethodName: "IngestDirectory", Handler: unary(IngestDirectoryMethod, ExtractionServer.IngestDirectory)},
		{MethodName: "GetRecord", Handler: unary(GetRecordMethod, ExtractionServer.GetRecord)},
		{MethodName: "ListRecords", Handler: unary(ListRecordsMethod, ExtractionServer.ListRecords)},
		{MethodName: "ExportWorkbook", Handler: unary(ExportWorkbookMethod, ExtractionServer.ExportWorkbook)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "medcards/v1/extraction.proto",
}

// ExtractionClient calls ExtractionService over a connection.
type ExtractionClient struct {
	cc grpc.ClientConnInterface
}

func NewExtractionClient(cc grpc.ClientConnInterface) *ExtractionClient {
	return &ExtractionClient{cc: cc}
}

func (c *ExtractionClient) ParseReply(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, ParseReplyMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ExtractionClient) ProcessImage(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, ProcessImageMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ExtractionClient) ProcessPath(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, ProcessPathMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ExtractionClient) IngestDirectory(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, IngestDirectoryMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ExtractionClient) GetRecord(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, GetRecordMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ExtractionClient) ListRecords(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, ListRecordsMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ExtractionClient) ExportWorkbook(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*wrapperspb.BytesValue, error) {
	out := new(wrapperspb.BytesValue)
	if err := c.cc.Invoke(ctx, ExportWorkbookMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
