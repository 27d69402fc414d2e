package model

import (
	"time"
)

// Evaluation is an uploaded dataset of labeled samples a model is scored against.
// Immutable once created; unique per (application, checksum).
type Evaluation struct {
	EvaluationID  int64     `json:"evaluation_id"`
	ApplicationID int64     `json:"application_id"`
	Description   string    `json:"description"`
	Checksum      string    `json:"checksum"`
	DataPath      string    `json:"data_path"`
	CreatedAt     time.Time `json:"register_date"`
}

// EvaluationResult is the persisted outcome of scoring one model against one
// evaluation. At most one exists per (model, evaluation).
type EvaluationResult struct {
	EvaluationResultID int64       `json:"evaluation_result_id"`
	ModelID            int64       `json:"model_id"`
	EvaluationID       int64       `json:"evaluation_id"`
	DataPath           string      `json:"data_path"`
	Result             MetricsView `json:"result"`
	CreatedAt          time.Time   `json:"register_date"`
}

// EvaluationResultEntry is a result joined with its dataset and model for listing.
type EvaluationResultEntry struct {
	EvaluationResultID int64       `json:"evaluation_result_id"`
	Result             MetricsView `json:"result"`
	CreatedAt          time.Time   `json:"register_date"`
	Evaluation         Evaluation  `json:"evaluation"`
	Model              Model       `json:"model"`
}

// Metrics are the aggregate scores a model server reports for one evaluation.
// Precision, Recall and FValue are per label.
type Metrics struct {
	Num       int
	Accuracy  float64
	Precision []float64
	Recall    []float64
	FValue    []float64
	Option    map[string]float64
	Label     []IO
}

// Detail is the scoring outcome for one sample.
type Detail struct {
	Input     IO
	Label     IO
	Output    IO
	IsCorrect bool
	Score     []float64
}

// IOKind tags which variant an IO value holds.
type IOKind int

const (
	IOKindStrings IOKind = iota + 1
	IOKindTensor
)

// IO is a sample value: either a list of strings or a numeric tensor.
type IO struct {
	Kind    IOKind
	Strings []string
	Shape   []int32
	Values  []float64
}

// StringsIO builds a string-list IO.
func StringsIO(vals ...string) IO {
	return IO{Kind: IOKindStrings, Strings: vals}
}

// TensorIO builds a tensor IO.
func TensorIO(shape []int32, vals ...float64) IO {
	return IO{Kind: IOKindTensor, Shape: shape, Values: vals}
}
