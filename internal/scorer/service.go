package scorer

import (
	"google.golang.org/grpc"
)

// ServiceName is the fully qualified gRPC service the model servers expose.
const ServiceName = "rekcurd.RekcurdDashboard"

const (
	methodEvaluateModel        = "/" + ServiceName + "/EvaluateModel"
	methodUploadEvaluationData = "/" + ServiceName + "/UploadEvaluationData"
	methodEvaluationResult     = "/" + ServiceName + "/EvaluationResult"
)

// ModelServer is the server side of the scoring contract. Implementations
// are registered with RegisterModelServer; the dashboard only ever acts as
// the client, so in this repository the server side backs tests and local
// stand-ins.
type ModelServer interface {
	EvaluateModel(grpc.ClientStreamingServer[EvaluateModelRequest, EvaluateModelResponse]) error
	UploadEvaluationData(grpc.ClientStreamingServer[UploadEvaluationDataRequest, UploadEvaluationDataResponse]) error
	EvaluationResult(*EvaluationResultRequest, grpc.ServerStreamingServer[EvaluationResultResponse]) error
}

// ServiceDesc describes the RekcurdDashboard service for grpc.Server.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ModelServer)(nil),
	Methods:     []grpc.MethodDesc{},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "EvaluateModel",
			Handler:       evaluateModelHandler,
			ClientStreams: true,
		},
		{
			StreamName:    "UploadEvaluationData",
			Handler:       uploadEvaluationDataHandler,
			ClientStreams: true,
		},
		{
			StreamName:    "EvaluationResult",
			Handler:       evaluationResultHandler,
			ServerStreams: true,
		},
	},
	Metadata: "rekcurd.proto",
}

// RegisterModelServer registers srv on s.
func RegisterModelServer(s grpc.ServiceRegistrar, srv ModelServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func evaluateModelHandler(srv any, stream grpc.ServerStream) error {
	return srv.(ModelServer).EvaluateModel(
		&grpc.GenericServerStream[EvaluateModelRequest, EvaluateModelResponse]{ServerStream: stream})
}

func uploadEvaluationDataHandler(srv any, stream grpc.ServerStream) error {
	return srv.(ModelServer).UploadEvaluationData(
		&grpc.GenericServerStream[UploadEvaluationDataRequest, UploadEvaluationDataResponse]{ServerStream: stream})
}

func evaluationResultHandler(srv any, stream grpc.ServerStream) error {
	req := new(EvaluationResultRequest)
	if err := stream.RecvMsg(req); err != nil {
		return err
	}
	return srv.(ModelServer).EvaluationResult(req,
		&grpc.GenericServerStream[EvaluationResultRequest, EvaluationResultResponse]{ServerStream: stream})
}
