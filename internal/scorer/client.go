// Package scorer is the client for remote model servers. It scores a model
// against a dataset, streams back per-sample details, and pushes raw
// evaluation data to servers that cannot read the dashboard's storage.
//
// The transport is gRPC with JSON-coded messages on the
// rekcurd.RekcurdDashboard service.
package scorer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/rekcurd/dashboard/internal/model"
)

var (
	// ErrUnavailable means the model server could not be reached or did not
	// answer in time.
	ErrUnavailable = errors.New("scorer: model server unavailable")

	// ErrRemote means the model server answered with a failure.
	ErrRemote = errors.New("scorer: model server error")

	// ErrNotFound means the model server has no data at the requested path.
	ErrNotFound = errors.New("scorer: not found on model server")
)

// DefaultTimeout bounds a single remote call when none is configured.
const DefaultTimeout = 5 * time.Minute

// uploadChunkSize is the payload size of one UploadEvaluationData message.
const uploadChunkSize = 1 << 20

// Client talks to model servers. Connections are created lazily per
// endpoint and reused. Safe for concurrent use.
type Client struct {
	timeout  time.Duration
	logger   *slog.Logger
	dialOpts []grpc.DialOption

	mu    sync.Mutex
	conns map[string]*grpc.ClientConn
}

// NewClient creates a client. A zero timeout uses DefaultTimeout. Extra
// dial options are appended after the insecure transport credentials.
func NewClient(timeout time.Duration, logger *slog.Logger, opts ...grpc.DialOption) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	dialOpts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(codecName)),
	}, opts...)
	return &Client{
		timeout:  timeout,
		logger:   logger,
		dialOpts: dialOpts,
		conns:    make(map[string]*grpc.ClientConn),
	}
}

func (c *Client) conn(endpoint string) (*grpc.ClientConn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cc, ok := c.conns[endpoint]; ok {
		return cc, nil
	}
	cc, err := grpc.NewClient(endpoint, c.dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("scorer: dial %s: %w", endpoint, errors.Join(ErrUnavailable, err))
	}
	c.conns[endpoint] = cc
	return cc, nil
}

// Close closes every cached connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var errs []error
	for ep, cc := range c.conns {
		if err := cc.Close(); err != nil {
			errs = append(errs, fmt.Errorf("scorer: close %s: %w", ep, err))
		}
		delete(c.conns, ep)
	}
	return errors.Join(errs...)
}

// EvaluateModel scores the model behind endpoint against the dataset at
// dataPath. The server writes per-sample details under resultPath.
func (c *Client) EvaluateModel(ctx context.Context, endpoint, dataPath, resultPath string) (model.Metrics, error) {
	cc, err := c.conn(endpoint)
	if err != nil {
		return model.Metrics{}, err
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cs, err := cc.NewStream(ctx, &ServiceDesc.Streams[0], methodEvaluateModel)
	if err != nil {
		return model.Metrics{}, c.remoteError("EvaluateModel", endpoint, err)
	}
	stream := &grpc.GenericClientStream[EvaluateModelRequest, EvaluateModelResponse]{ClientStream: cs}
	if err := stream.Send(&EvaluateModelRequest{DataPath: dataPath, ResultPath: resultPath}); err != nil && !errors.Is(err, io.EOF) {
		return model.Metrics{}, c.remoteError("EvaluateModel", endpoint, err)
	}
	resp, err := stream.CloseAndRecv()
	if err != nil {
		return model.Metrics{}, c.remoteError("EvaluateModel", endpoint, err)
	}
	return resp.Metrics.toModel(), nil
}

// EvaluationResult fetches the stored result of a previous EvaluateModel
// call. Details from every streamed message are concatenated; metrics are
// those of the last message.
func (c *Client) EvaluationResult(ctx context.Context, endpoint, dataPath, resultPath string) (model.Metrics, []model.Detail, error) {
	cc, err := c.conn(endpoint)
	if err != nil {
		return model.Metrics{}, nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cs, err := cc.NewStream(ctx, &ServiceDesc.Streams[2], methodEvaluationResult)
	if err != nil {
		return model.Metrics{}, nil, c.remoteError("EvaluationResult", endpoint, err)
	}
	stream := &grpc.GenericClientStream[EvaluationResultRequest, EvaluationResultResponse]{ClientStream: cs}
	if err := stream.Send(&EvaluationResultRequest{DataPath: dataPath, ResultPath: resultPath}); err != nil && !errors.Is(err, io.EOF) {
		return model.Metrics{}, nil, c.remoteError("EvaluationResult", endpoint, err)
	}
	if err := stream.CloseSend(); err != nil {
		return model.Metrics{}, nil, c.remoteError("EvaluationResult", endpoint, err)
	}

	var (
		metrics model.Metrics
		details []model.Detail
	)
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return model.Metrics{}, nil, c.remoteError("EvaluationResult", endpoint, err)
		}
		metrics = resp.Metrics.toModel()
		for _, d := range resp.Detail {
			details = append(details, d.toModel())
		}
	}
	return metrics, details, nil
}

// UploadEvaluationData streams data to the model server, which stores it at
// dataPath. A non-success acknowledgement is reported as ErrRemote.
func (c *Client) UploadEvaluationData(ctx context.Context, endpoint, dataPath string, data []byte) error {
	cc, err := c.conn(endpoint)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cs, err := cc.NewStream(ctx, &ServiceDesc.Streams[1], methodUploadEvaluationData)
	if err != nil {
		return c.remoteError("UploadEvaluationData", endpoint, err)
	}
	stream := &grpc.GenericClientStream[UploadEvaluationDataRequest, UploadEvaluationDataResponse]{ClientStream: cs}

	for off := 0; off == 0 || off < len(data); off += uploadChunkSize {
		end := min(off+uploadChunkSize, len(data))
		if err := stream.Send(&UploadEvaluationDataRequest{DataPath: dataPath, Data: data[off:end]}); err != nil {
			if errors.Is(err, io.EOF) {
				// The server closed early; its status arrives with CloseAndRecv.
				break
			}
			return c.remoteError("UploadEvaluationData", endpoint, err)
		}
	}
	resp, err := stream.CloseAndRecv()
	if err != nil {
		return c.remoteError("UploadEvaluationData", endpoint, err)
	}
	if resp.Status != UploadStatusOK {
		return fmt.Errorf("scorer: UploadEvaluationData %s: %w: %s", endpoint, ErrRemote, resp.Message)
	}
	return nil
}

// remoteError classifies a gRPC failure. Transport and deadline failures
// become ErrUnavailable, NotFound is kept, anything else is ErrRemote.
func (c *Client) remoteError(op, endpoint string, err error) error {
	st, _ := status.FromError(err)
	var kind error
	switch st.Code() {
	case codes.Unavailable, codes.DeadlineExceeded, codes.Canceled:
		kind = ErrUnavailable
	case codes.NotFound:
		kind = ErrNotFound
	default:
		kind = ErrRemote
	}
	c.logger.Warn("scorer: remote call failed",
		"op", op, "endpoint", endpoint, "code", st.Code().String(), "error", st.Message())
	return fmt.Errorf("scorer: %s %s: %w: %s", op, endpoint, kind, st.Message())
}
