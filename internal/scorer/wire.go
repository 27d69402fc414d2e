package scorer

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"

	"github.com/rekcurd/dashboard/internal/model"
)

// codecName is the gRPC content-subtype the model servers speak.
const codecName = "json"

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// jsonCodec marshals the plain Go message structs below as JSON.
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                       { return codecName }

// ArrString is a list of strings.
type ArrString struct {
	Val []string `json:"val"`
}

// Tensor is a flat numeric tensor with its shape.
type Tensor struct {
	Shape []int32   `json:"shape"`
	Val   []float64 `json:"val"`
}

// IO holds exactly one of Str or Tensor.
type IO struct {
	Str    *ArrString `json:"str,omitempty"`
	Tensor *Tensor    `json:"tensor,omitempty"`
}

// EvaluationMetrics are aggregate scores.
type EvaluationMetrics struct {
	Num       int                `json:"num"`
	Accuracy  float64            `json:"accuracy"`
	Precision []float64          `json:"precision"`
	Recall    []float64          `json:"recall"`
	FValue    []float64          `json:"fvalue"`
	Option    map[string]float64 `json:"option"`
	Label     []IO               `json:"label"`
}

// Detail is the per-sample outcome.
type Detail struct {
	Input     IO        `json:"input"`
	Label     IO        `json:"label"`
	Output    IO        `json:"output"`
	IsCorrect bool      `json:"is_correct"`
	Score     []float64 `json:"score"`
}

// EvaluateModelRequest asks the model server to score the dataset at DataPath
// and store per-sample details at ResultPath.
type EvaluateModelRequest struct {
	DataPath   string `json:"data_path"`
	ResultPath string `json:"result_path"`
}

// EvaluateModelResponse carries the aggregate metrics.
type EvaluateModelResponse struct {
	Metrics EvaluationMetrics `json:"metrics"`
}

// UploadEvaluationDataRequest is one chunk of a dataset upload.
type UploadEvaluationDataRequest struct {
	DataPath string `json:"data_path"`
	Data     []byte `json:"data"`
}

// UploadEvaluationDataResponse acknowledges an upload. Status 1 is success.
type UploadEvaluationDataResponse struct {
	Status  int32  `json:"status"`
	Message string `json:"message"`
}

// UploadStatusOK is the success value of UploadEvaluationDataResponse.Status.
const UploadStatusOK = 1

// EvaluationResultRequest asks for the stored details of an evaluation.
type EvaluationResultRequest struct {
	DataPath   string `json:"data_path"`
	ResultPath string `json:"result_path"`
}

// EvaluationResultResponse is one streamed batch of details.
type EvaluationResultResponse struct {
	Metrics EvaluationMetrics `json:"metrics"`
	Detail  []Detail          `json:"detail"`
}

func (io IO) toModel() model.IO {
	switch {
	case io.Str != nil:
		return model.StringsIO(io.Str.Val...)
	case io.Tensor != nil:
		return model.TensorIO(io.Tensor.Shape, io.Tensor.Val...)
	}
	return model.IO{}
}

// FromModelIO converts a domain IO into its wire form.
func FromModelIO(v model.IO) IO {
	switch v.Kind {
	case model.IOKindStrings:
		return IO{Str: &ArrString{Val: v.Strings}}
	case model.IOKindTensor:
		return IO{Tensor: &Tensor{Shape: v.Shape, Val: v.Values}}
	}
	return IO{}
}

func (m EvaluationMetrics) toModel() model.Metrics {
	labels := make([]model.IO, 0, len(m.Label))
	for _, l := range m.Label {
		labels = append(labels, l.toModel())
	}
	return model.Metrics{
		Num:       m.Num,
		Accuracy:  m.Accuracy,
		Precision: m.Precision,
		Recall:    m.Recall,
		FValue:    m.FValue,
		Option:    m.Option,
		Label:     labels,
	}
}

// FromModelMetrics converts domain metrics into their wire form.
func FromModelMetrics(m model.Metrics) EvaluationMetrics {
	labels := make([]IO, 0, len(m.Label))
	for _, l := range m.Label {
		labels = append(labels, FromModelIO(l))
	}
	return EvaluationMetrics{
		Num:       m.Num,
		Accuracy:  m.Accuracy,
		Precision: m.Precision,
		Recall:    m.Recall,
		FValue:    m.FValue,
		Option:    m.Option,
		Label:     labels,
	}
}

func (d Detail) toModel() model.Detail {
	return model.Detail{
		Input:     d.Input.toModel(),
		Label:     d.Label.toModel(),
		Output:    d.Output.toModel(),
		IsCorrect: d.IsCorrect,
		Score:     d.Score,
	}
}

// FromModelDetail converts a domain detail into its wire form.
func FromModelDetail(d model.Detail) Detail {
	return Detail{
		Input:     FromModelIO(d.Input),
		Label:     FromModelIO(d.Label),
		Output:    FromModelIO(d.Output),
		IsCorrect: d.IsCorrect,
		Score:     d.Score,
	}
}
