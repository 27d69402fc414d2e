package mcp

import (
	"math"
	"sort"
	"unicode/utf8"

	"github.com/rekcurd/dashboard/internal/model"
)

const maxCompactDescription = 120

// compactEvaluation returns the fields of a dataset an agent needs to pick one.
// The checksum and storage path are dropped.
func compactEvaluation(e model.Evaluation) map[string]any {
	return map[string]any{
		"evaluation_id": e.EvaluationID,
		"description":   truncate(e.Description, maxCompactDescription),
		"register_date": e.CreatedAt,
	}
}

// compactResult flattens a listed result into a single row keyed by model and
// dataset. Per-label arrays are summarized by their mean.
func compactResult(r model.EvaluationResultEntry) map[string]any {
	m := map[string]any{
		"result_id":          r.EvaluationResultID,
		"model_id":           r.Model.ModelID,
		"model_description":  truncate(r.Model.Description, maxCompactDescription),
		"evaluation_id":      r.Evaluation.EvaluationID,
		"evaluation_summary": truncate(r.Evaluation.Description, maxCompactDescription),
		"accuracy":           round3(r.Result.Accuracy),
		"num":                r.Result.Num,
		"register_date":      r.CreatedAt,
	}
	if f, ok := mean(r.Result.FValue); ok {
		m["mean_fvalue"] = round3(f)
	}
	if len(r.Result.Option) > 0 {
		m["option"] = r.Result.Option
	}
	return m
}

// rankResults orders results best first: accuracy descending, then newest.
func rankResults(rs []model.EvaluationResultEntry) {
	sort.SliceStable(rs, func(i, j int) bool {
		if rs[i].Result.Accuracy != rs[j].Result.Accuracy {
			return rs[i].Result.Accuracy > rs[j].Result.Accuracy
		}
		return rs[i].CreatedAt.After(rs[j].CreatedAt)
	})
}

func mean(v []float64) (float64, bool) {
	if len(v) == 0 {
		return 0, false
	}
	var sum float64
	for _, x := range v {
		sum += x
	}
	return sum / float64(len(v)), true
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}

// truncate shortens s to at most n bytes on a rune boundary, appending "..."
// when it cut anything.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
