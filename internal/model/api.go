package model

import (
	"strings"
	"unicode/utf8"
)

// Messages returned in StatusResponse bodies.
const (
	MessageSuccess  = "Success."
	MessageNotFound = "Not Found."
)

// MaxDescriptionLen bounds dataset descriptions.
const MaxDescriptionLen = 1024

// StatusResponse is the body of delete endpoints and of every error response.
type StatusResponse struct {
	Status  bool    `json:"status"`
	Message *string `json:"message"`
}

// OK builds a successful StatusResponse with msg.
func OK(msg string) StatusResponse {
	return StatusResponse{Status: true, Message: &msg}
}

// Failure builds a failed StatusResponse with msg.
func Failure(msg string) StatusResponse {
	return StatusResponse{Status: false, Message: &msg}
}

// UploadResponse is the body of POST /evaluations. Message is null when a new
// dataset was created and holds the dedup notice otherwise.
type UploadResponse struct {
	Status       bool    `json:"status"`
	EvaluationID int64   `json:"evaluation_id"`
	Message      *string `json:"message"`
}

// DuplicateUploadMessage is the notice returned when an identical file was
// already uploaded to the application.
func DuplicateUploadMessage(existing Evaluation) string {
	return "The file already exists. Description: " + existing.Description
}

// EvaluateResponse is the body of POST/PUT /evaluate: metrics flattened to the
// top level next to status and result_id.
type EvaluateResponse struct {
	Status   bool  `json:"status"`
	ResultID int64 `json:"result_id"`
	MetricsView
}

// ResultMetrics is the metrics block of a single result response.
type ResultMetrics struct {
	MetricsView
	ResultID int64 `json:"result_id"`
}

// ResultResponse is the body of GET /evaluation_results/{id}.
type ResultResponse struct {
	Status  bool          `json:"status"`
	Metrics ResultMetrics `json:"metrics"`
	Details []DetailView  `json:"details"`
}

// HealthResponse is the response for GET /health.
type HealthResponse struct {
	Status     string `json:"status"`
	Version    string `json:"version"`
	Database   string `json:"database"`
	DataServer string `json:"data_server"`
	Uptime     int64  `json:"uptime_seconds"`
}

// NormalizeDescription trims surrounding whitespace and truncates to
// MaxDescriptionLen bytes on a rune boundary.
func NormalizeDescription(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > MaxDescriptionLen {
		n := MaxDescriptionLen
		for n > 0 && !utf8.RuneStart(s[n]) {
			n--
		}
		s = s[:n]
	}
	return s
}
