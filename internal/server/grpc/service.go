package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "docvault.v1.DocumentVault"

// Method names of the DocumentVault service.
const (
	MethodCreateDocument  = "CreateDocument"
	MethodAddVersion      = "AddVersion"
	MethodGetVersion      = "GetVersion"
	MethodGetCurrent      = "GetCurrent"
	MethodGetDocument     = "GetDocument"
	MethodListVersions    = "ListVersions"
	MethodSearchDocuments = "SearchDocuments"
	MethodVerifyIntegrity = "VerifyIntegrity"
	MethodSoftDelete      = "SoftDelete"
	MethodUpdateMetadata  = "UpdateMetadata"
)

// FullMethod returns "/docvault.v1.DocumentVault/<method>".
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// DocumentVaultServer is the server API. Messages are
// google.protobuf.Struct bodies; binary content travels base64 encoded.
type DocumentVaultServer interface {
	CreateDocument(context.Context, *structpb.Struct) (*structpb.Struct, error)
	AddVersion(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetVersion(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetCurrent(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetDocument(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListVersions(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SearchDocuments(context.Context, *structpb.Struct) (*structpb.Struct, error)
	VerifyIntegrity(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SoftDelete(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UpdateMetadata(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// ServiceDesc describes DocumentVault for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*DocumentVaultServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(MethodCreateDocument, DocumentVaultServer.CreateDocument),
		unary(MethodAddVersion, DocumentVaultServer.AddVersion),
		unary(MethodGetVersion, DocumentVaultServer.GetVersion),
		unary(MethodGetCurrent, DocumentVaultServer.GetCurrent),
		unary(MethodGetDocument, DocumentVaultServer.GetDocument),
		unary(MethodListVersions, DocumentVaultServer.ListVersions),
		unary(MethodSearchDocuments, DocumentVaultServer.SearchDocuments),
		unary(MethodVerifyIntegrity, DocumentVaultServer.VerifyIntegrity),
		unary(MethodSoftDelete, DocumentVaultServer.SoftDelete),
		unary(MethodUpdateMetadata, DocumentVaultServer.UpdateMetadata),
	},
	Streams: []grpc.StreamDesc{},
}

type unaryMethod func(DocumentVaultServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unary(name string, call unaryMethod) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(DocumentVaultServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(name)}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(DocumentVaultServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// Invoke calls method on conn with a Struct request, for clients without
// generated stubs.
func Invoke(ctx context.Context, conn grpc.ClientConnInterface, method string, req *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := conn.Invoke(ctx, FullMethod(method), req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
