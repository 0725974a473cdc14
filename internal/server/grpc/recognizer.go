package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully qualified gRPC service name
const ServiceName = "streamvox.v1.Recognizer"

// SampleRateHeader is the request metadata key carrying the PCM sample
// rate. Streams without it are taken to be at the recogniser's rate.
const SampleRateHeader = "x-sample-rate"

// SessionHeader is the response header carrying the session id
const SessionHeader = "x-session-id"

// Response fields
const (
	FieldSession    = "session"
	FieldSegment    = "segment"
	FieldText       = "text"
	FieldFinal      = "final"
	FieldTokens     = "tokens"
	FieldTimestamps = "timestamps"
)

// RecognizerServer is the server API. Requests carry little-endian PCM16
// mono audio; responses are structs with the fields above.
type RecognizerServer interface {
	Recognize(Recognizer_RecognizeServer) error
}

// Recognizer_RecognizeServer is the server side of a Recognize stream
type Recognizer_RecognizeServer interface {
	Send(*structpb.Struct) error
	Recv() (*wrapperspb.BytesValue, error)
	grpc.ServerStream
}

type recognizeServer struct {
	grpc.ServerStream
}

func (x *recognizeServer) Send(m *structpb.Struct) error {
	return x.ServerStream.SendMsg(m)
}

func (x *recognizeServer) Recv() (*wrapperspb.BytesValue, error) {
	m := new(wrapperspb.BytesValue)
	if err := x.ServerStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func recognizeHandler(srv any, stream grpc.ServerStream) error {
	return srv.(RecognizerServer).Recognize(&recognizeServer{stream})
}

// Recognizer_ServiceDesc describes the service for grpc.ServiceRegistrar
var Recognizer_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*RecognizerServer)(nil),
	Methods:     []grpc.MethodDesc{},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Recognize",
			Handler:       recognizeHandler,
			ServerStreams: true,
			ClientStreams: true,
		},
	},
	Metadata: "streamvox/v1/recognizer.proto",
}

// RegisterRecognizerServer registers srv on s
func RegisterRecognizerServer(s grpc.ServiceRegistrar, srv RecognizerServer) {
	s.RegisterService(&Recognizer_ServiceDesc, srv)
}

// RecognizerClient is the client API
type RecognizerClient interface {
	Recognize(ctx context.Context, opts ...grpc.CallOption) (Recognizer_RecognizeClient, error)
}

// Recognizer_RecognizeClient is the client side of a Recognize stream
type Recognizer_RecognizeClient interface {
	Send(*wrapperspb.BytesValue) error
	Recv() (*structpb.Struct, error)
	grpc.ClientStream
}

type recognizerClient struct {
	cc grpc.ClientConnInterface
}

// NewRecognizerClient creates a client over cc
func NewRecognizerClient(cc grpc.ClientConnInterface) RecognizerClient {
	return &recognizerClient{cc}
}

func (c *recognizerClient) Recognize(ctx context.Context, opts ...grpc.CallOption) (Recognizer_RecognizeClient, error) {
	stream, err := c.cc.NewStream(ctx, &Recognizer_ServiceDesc.Streams[0], "/"+ServiceName+"/Recognize", opts...)
	if err != nil {
		return nil, err
	}
	return &recognizeClient{stream}, nil
}

type recognizeClient struct {
	grpc.ClientStream
}

func (x *recognizeClient) Send(m *wrapperspb.BytesValue) error {
	return x.ClientStream.SendMsg(m)
}

func (x *recognizeClient) Recv() (*structpb.Struct, error) {
	m := new(structpb.Struct)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}
