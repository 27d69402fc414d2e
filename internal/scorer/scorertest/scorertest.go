// Package scorertest runs an in-process model server on a loopback port
// for tests of code that calls internal/scorer.
package scorertest

import (
	"errors"
	"io"
	"net"
	"strconv"
	"sync"
	"testing"

	"google.golang.org/grpc"

	"github.com/rekcurd/dashboard/internal/model"
	"github.com/rekcurd/dashboard/internal/scorer"
)

// Server is a scriptable model server. Zero values answer successfully with
// empty metrics. Fields may be changed between calls under Lock/Unlock.
type Server struct {
	mu sync.Mutex

	// Metrics is returned by EvaluateModel and EvaluationResult.
	Metrics model.Metrics
	// Details are sent in every EvaluationResult message.
	Details []model.Detail
	// ResultMessages is how many EvaluationResult messages to stream (default 1).
	ResultMessages int
	// Err, when set, fails every call with it.
	Err error
	// UploadStatus overrides the upload acknowledgement status.
	UploadStatus int32

	evaluateCalls int
	uploads       map[string][]byte
	lastEvaluate  scorer.EvaluateModelRequest

	Host string
	Port int
}

// Start serves on 127.0.0.1:0 until the test ends. configure runs before
// the server accepts connections; later changes go through Lock/Unlock.
func Start(t testing.TB, configure ...func(*Server)) *Server {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("scorertest: listen: %v", err)
	}
	s := &Server{uploads: map[string][]byte{}}
	host, port, _ := net.SplitHostPort(lis.Addr().String())
	s.Host = host
	s.Port, _ = strconv.Atoi(port)
	for _, fn := range configure {
		fn(s)
	}

	gs := grpc.NewServer()
	scorer.RegisterModelServer(gs, s)
	go func() { _ = gs.Serve(lis) }()
	t.Cleanup(gs.Stop)
	return s
}

// Endpoint returns host:port.
func (s *Server) Endpoint() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// Lock guards field updates made while calls may be in flight.
func (s *Server) Lock() { s.mu.Lock() }

// Unlock releases Lock.
func (s *Server) Unlock() { s.mu.Unlock() }

// EvaluateCalls reports how many EvaluateModel calls completed.
func (s *Server) EvaluateCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.evaluateCalls
}

// LastEvaluate returns the most recent EvaluateModel request.
func (s *Server) LastEvaluate() scorer.EvaluateModelRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastEvaluate
}

// Uploaded returns the bytes received for dataPath.
func (s *Server) Uploaded(dataPath string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.uploads[dataPath]
	return b, ok
}

// EvaluateModel implements scorer.ModelServer.
func (s *Server) EvaluateModel(stream grpc.ClientStreamingServer[scorer.EvaluateModelRequest, scorer.EvaluateModelResponse]) error {
	var last scorer.EvaluateModelRequest
	for {
		req, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		last = *req
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.evaluateCalls++
	s.lastEvaluate = last
	return stream.SendAndClose(&scorer.EvaluateModelResponse{Metrics: scorer.FromModelMetrics(s.Metrics)})
}

// UploadEvaluationData implements scorer.ModelServer.
func (s *Server) UploadEvaluationData(stream grpc.ClientStreamingServer[scorer.UploadEvaluationDataRequest, scorer.UploadEvaluationDataResponse]) error {
	var (
		path string
		data []byte
	)
	for {
		req, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		path = req.DataPath
		data = append(data, req.Data...)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	st := int32(scorer.UploadStatusOK)
	if s.UploadStatus != 0 {
		st = s.UploadStatus
	}
	if st == scorer.UploadStatusOK {
		s.uploads[path] = data
	}
	return stream.SendAndClose(&scorer.UploadEvaluationDataResponse{Status: st, Message: "success"})
}

// EvaluationResult implements scorer.ModelServer.
func (s *Server) EvaluationResult(_ *scorer.EvaluationResultRequest, stream grpc.ServerStreamingServer[scorer.EvaluationResultResponse]) error {
	s.mu.Lock()
	if s.Err != nil {
		err := s.Err
		s.mu.Unlock()
		return err
	}
	n := s.ResultMessages
	if n <= 0 {
		n = 1
	}
	details := make([]scorer.Detail, 0, len(s.Details))
	for _, d := range s.Details {
		details = append(details, scorer.FromModelDetail(d))
	}
	resp := &scorer.EvaluationResultResponse{Metrics: scorer.FromModelMetrics(s.Metrics), Detail: details}
	s.mu.Unlock()

	for range n {
		if err := stream.Send(resp); err != nil {
			return err
		}
	}
	return nil
}

// DefaultMetrics mirrors what a freshly trained toy model reports.
func DefaultMetrics() model.Metrics {
	return model.Metrics{
		Precision: []float64{0.0},
		Recall:    []float64{0.0},
		FValue:    []float64{0.0},
		Option:    map[string]float64{},
		Label:     []model.IO{model.StringsIO("label")},
	}
}

// DefaultDetails are one string sample and one tensor sample.
func DefaultDetails() []model.Detail {
	return []model.Detail{
		{
			Input:     model.StringsIO("input"),
			Label:     model.StringsIO("test"),
			Output:    model.StringsIO("test"),
			IsCorrect: true,
			Score:     []float64{1.0},
		},
		{
			Input:     model.TensorIO([]int32{1}, 0.5),
			Label:     model.TensorIO([]int32{2}, 0.9, 1.3),
			Output:    model.TensorIO([]int32{2}, 0.9, 0.3),
			IsCorrect: false,
			Score:     []float64{0.5, 0.5},
		},
	}
}
