package apiserver

import (
	"context"

	"google.golang.org/grpc"
)

const serviceName = "agm.v1.AudioGraphManager"

// unaryHandler adapts one (request type, Server method) pair into a
// grpc.MethodDesc's handler shape, the mechanical part a protoc-gen-go-grpc
// generated _*_Handler function would otherwise produce per method.
func unaryHandler(fullMethod string, newIn func() wireMessage, call func(s *Server, ctx context.Context, in wireMessage) (wireMessage, error)) grpc.MethodDesc {
	name := fullMethod
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
			in := newIn()
			if err := dec(in); err != nil {
				return nil, err
			}
			s := srv.(*Server)
			if interceptor == nil {
				return call(s, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/" + name}
			handler := func(ctx context.Context, req interface{}) (interface{}, error) {
				return call(s, ctx, req.(wireMessage))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// ServiceDesc is the hand-written grpc.ServiceDesc realizing spec.md §6's
// verb table. Registered with grpc.ForceServerCodec(protowireCodec{}) so no
// generated proto.Message/content-type negotiation is needed (SPEC_FULL.md
// §6).
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*Server)(nil),
	Methods: []grpc.MethodDesc{
		unaryHandler("SessionOpen", func() wireMessage { return &sessionIDRequest{} }, func(s *Server, ctx context.Context, in wireMessage) (wireMessage, error) {
			return s.sessionOpen(ctx, in.(*sessionIDRequest))
		}),
		unaryHandler("SessionClose", func() wireMessage { return &sessionIDRequest{} }, func(s *Server, ctx context.Context, in wireMessage) (wireMessage, error) {
			return s.sessionClose(ctx, in.(*sessionIDRequest))
		}),
		unaryHandler("SessionPrepare", func() wireMessage { return &sessionIDRequest{} }, func(s *Server, ctx context.Context, in wireMessage) (wireMessage, error) {
			return s.sessionPrepare(ctx, in.(*sessionIDRequest))
		}),
		unaryHandler("SessionStart", func() wireMessage { return &sessionIDRequest{} }, func(s *Server, ctx context.Context, in wireMessage) (wireMessage, error) {
			return s.sessionStart(ctx, in.(*sessionIDRequest))
		}),
		unaryHandler("SessionStop", func() wireMessage { return &sessionIDRequest{} }, func(s *Server, ctx context.Context, in wireMessage) (wireMessage, error) {
			return s.sessionStop(ctx, in.(*sessionIDRequest))
		}),
		unaryHandler("SessionPause", func() wireMessage { return &sessionIDRequest{} }, func(s *Server, ctx context.Context, in wireMessage) (wireMessage, error) {
			return s.sessionPause(ctx, in.(*sessionIDRequest))
		}),
		unaryHandler("SessionResume", func() wireMessage { return &sessionIDRequest{} }, func(s *Server, ctx context.Context, in wireMessage) (wireMessage, error) {
			return s.sessionResume(ctx, in.(*sessionIDRequest))
		}),
		unaryHandler("SessionEOS", func() wireMessage { return &sessionIDRequest{} }, func(s *Server, ctx context.Context, in wireMessage) (wireMessage, error) {
			return s.sessionEOS(ctx, in.(*sessionIDRequest))
		}),
		unaryHandler("SessionAIFConnect", func() wireMessage { return &connectAIFRequest{} }, func(s *Server, ctx context.Context, in wireMessage) (wireMessage, error) {
			return s.connectAIF(ctx, in.(*connectAIFRequest))
		}),
		unaryHandler("SessionRead", func() wireMessage { return &readRequest{} }, func(s *Server, ctx context.Context, in wireMessage) (wireMessage, error) {
			return s.sessionRead(ctx, in.(*readRequest))
		}),
		unaryHandler("SessionWrite", func() wireMessage { return &writeRequest{} }, func(s *Server, ctx context.Context, in wireMessage) (wireMessage, error) {
			return s.sessionWrite(ctx, in.(*writeRequest))
		}),
		unaryHandler("SessionSetParams", func() wireMessage { return &setParamsRequest{} }, func(s *Server, ctx context.Context, in wireMessage) (wireMessage, error) {
			return s.sessionSetParams(ctx, in.(*setParamsRequest))
		}),
		unaryHandler("SetParamsWithTag", func() wireMessage { return &setParamsWithTagRequest{} }, func(s *Server, ctx context.Context, in wireMessage) (wireMessage, error) {
			return s.setParamsWithTag(ctx, in.(*setParamsWithTagRequest))
		}),
		unaryHandler("SessionGetParams", func() wireMessage { return &getParamsRequest{} }, func(s *Server, ctx context.Context, in wireMessage) (wireMessage, error) {
			return s.sessionGetParams(ctx, in.(*getParamsRequest))
		}),
		unaryHandler("SessionAIFGetTagModuleInfo", func() wireMessage { return &tagModuleInfoRequest{} }, func(s *Server, ctx context.Context, in wireMessage) (wireMessage, error) {
			return s.sessionAIFGetTagModuleInfo(ctx, in.(*tagModuleInfoRequest))
		}),
		unaryHandler("SessionAIFSetCal", func() wireMessage { return &setCalRequest{} }, func(s *Server, ctx context.Context, in wireMessage) (wireMessage, error) {
			return s.sessionAIFSetCal(ctx, in.(*setCalRequest))
		}),
		unaryHandler("AIFSetMediaConfig", func() wireMessage { return &aifSetMediaConfigRequest{} }, func(s *Server, ctx context.Context, in wireMessage) (wireMessage, error) {
			return s.aifSetMediaConfig(ctx, in.(*aifSetMediaConfigRequest))
		}),
		unaryHandler("AIFSetMetadata", func() wireMessage { return &setMetadataRequest{} }, func(s *Server, ctx context.Context, in wireMessage) (wireMessage, error) {
			return s.aifSetMetadata(ctx, in.(*setMetadataRequest))
		}),
		unaryHandler("SessionSetMetadata", func() wireMessage { return &setMetadataRequest{} }, func(s *Server, ctx context.Context, in wireMessage) (wireMessage, error) {
			return s.sessionSetMetadata(ctx, in.(*setMetadataRequest))
		}),
		unaryHandler("SessionAIFSetMetadata", func() wireMessage { return &setMetadataRequest{} }, func(s *Server, ctx context.Context, in wireMessage) (wireMessage, error) {
			return s.sessionAIFSetMetadata(ctx, in.(*setMetadataRequest))
		}),
		unaryHandler("GetHWProcessedBuffCnt", func() wireMessage { return &sessionIDRequest{} }, func(s *Server, ctx context.Context, in wireMessage) (wireMessage, error) {
			return s.getHWProcessedBuffCnt(ctx, in.(*sessionIDRequest))
		}),
		unaryHandler("GetSessionTime", func() wireMessage { return &sessionIDRequest{} }, func(s *Server, ctx context.Context, in wireMessage) (wireMessage, error) {
			return s.getSessionTime(ctx, in.(*sessionIDRequest))
		}),
		unaryHandler("SessionSetLoopback", func() wireMessage { return &setLoopbackRequest{} }, func(s *Server, ctx context.Context, in wireMessage) (wireMessage, error) {
			return s.sessionSetLoopback(ctx, in.(*setLoopbackRequest))
		}),
		unaryHandler("SessionSetEcRef", func() wireMessage { return &setEcRefRequest{} }, func(s *Server, ctx context.Context, in wireMessage) (wireMessage, error) {
			return s.sessionSetEcRef(ctx, in.(*setEcRefRequest))
		}),
		unaryHandler("GetAIFInfoList", func() wireMessage { return &aifInfoListRequest{} }, func(s *Server, ctx context.Context, in wireMessage) (wireMessage, error) {
			return s.getAIFInfoList(ctx, in.(*aifInfoListRequest))
		}),
		unaryHandler("RegisterForEvents", func() wireMessage { return &sessionIDRequest{} }, func(s *Server, ctx context.Context, in wireMessage) (wireMessage, error) {
			return s.registerForEvents(ctx, in.(*sessionIDRequest))
		}),
	},
	Metadata: "internal/apiserver/service.go",
}

// NewGRPCServer builds a *grpc.Server with the protowire codec forced and
// ServiceDesc registered against srv.
func NewGRPCServer(srv *Server, opts ...grpc.ServerOption) *grpc.Server {
	opts = append([]grpc.ServerOption{grpc.ForceServerCodec(protowireCodec{})}, opts...)
	gs := grpc.NewServer(opts...)
	gs.RegisterService(&ServiceDesc, srv)
	return gs
}
