package codec

import (
	"context"

	gogrpc "google.golang.org/grpc"
)

// UnaryHandler builds a grpc.MethodHandler for a hand-written service
// descriptor. call is usually a method expression on the server interface,
// e.g. FooServer.Bar.
func UnaryHandler[S any, Req any, Resp any](fullMethod string, call func(S, context.Context, *Req) (*Resp, error)) gogrpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor gogrpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(S), ctx, in)
		}
		info := &gogrpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(S), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// Invoke performs a unary call with the JSON codec selected.
func Invoke[Resp any](ctx context.Context, cc gogrpc.ClientConnInterface, fullMethod string, in any, opts ...gogrpc.CallOption) (*Resp, error) {
	out := new(Resp)
	callOpts := append([]gogrpc.CallOption{CallOption()}, opts...)
	if err := cc.Invoke(ctx, fullMethod, in, out, callOpts...); err != nil {
		return nil, err
	}
	return out, nil
}
