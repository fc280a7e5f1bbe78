package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "caseflow.forms.v1.FormRules"

// Full method names, as seen by interceptors.
const (
	MethodEvaluate     = "/" + ServiceName + "/Evaluate"
	MethodDependencies = "/" + ServiceName + "/Dependencies"
	MethodPutSchema    = "/" + ServiceName + "/PutSchema"
	MethodListSchemas  = "/" + ServiceName + "/ListSchemas"
)

// FormRulesServer is the server API for the FormRules service.
// Requests and responses are google.protobuf.Struct documents so schemas
// travel in the same JSON shape used on disk.
type FormRulesServer interface {
	Evaluate(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Dependencies(context.Context, *structpb.Struct) (*structpb.Struct, error)
	PutSchema(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListSchemas(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// RegisterFormRulesServer registers srv on s.
func RegisterFormRulesServer(s grpc.ServiceRegistrar, srv FormRulesServer) {
	s.RegisterService(&FormRulesServiceDesc, srv)
}

// FormRulesServiceDesc describes the FormRules service for grpc.Server.
var FormRulesServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*FormRulesServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Evaluate", Handler: unaryHandler(MethodEvaluate, FormRulesServer.Evaluate)},
		{MethodName: "Dependencies", Handler: unaryHandler(MethodDependencies, FormRulesServer.Dependencies)},
		{MethodName: "PutSchema", Handler: unaryHandler(MethodPutSchema, FormRulesServer.PutSchema)},
		{MethodName: "ListSchemas", Handler: unaryHandler(MethodListSchemas, FormRulesServer.ListSchemas)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "caseflow/forms/v1/form_rules.proto",
}

type structMethod func(FormRulesServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

// unaryHandler adapts a Struct-in/Struct-out method to grpc.MethodHandler.
func unaryHandler(fullMethod string, call structMethod) grpc.MethodHandler {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(FormRulesServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(FormRulesServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// FormRulesClient is the client API for the FormRules service.
type FormRulesClient struct {
	cc grpc.ClientConnInterface
}

// NewFormRulesClient creates a client over an established connection.
func NewFormRulesClient(cc grpc.ClientConnInterface) *FormRulesClient {
	return &FormRulesClient{cc: cc}
}

func (c *FormRulesClient) invoke(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// Evaluate calls FormRules.Evaluate.
func (c *FormRulesClient) Evaluate(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodEvaluate, in, opts...)
}

// Dependencies calls FormRules.Dependencies.
func (c *FormRulesClient) Dependencies(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodDependencies, in, opts...)
}

// PutSchema calls FormRules.PutSchema.
func (c *FormRulesClient) PutSchema(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodPutSchema, in, opts...)
}

// ListSchemas calls FormRules.ListSchemas.
func (c *FormRulesClient) ListSchemas(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodListSchemas, in, opts...)
}
