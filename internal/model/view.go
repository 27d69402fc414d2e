package model

// MetricsView is the JSON shape of Metrics surfaced to callers and stored in
// the result column. Labels are shaped per IO.Value.
type MetricsView struct {
	Accuracy  float64            `json:"accuracy"`
	Precision []float64          `json:"precision"`
	Recall    []float64          `json:"recall"`
	FValue    []float64          `json:"fvalue"`
	Num       int                `json:"num"`
	Label     []any              `json:"label"`
	Option    map[string]float64 `json:"option"`
}

// DetailView is the JSON shape of one per-sample Detail.
type DetailView struct {
	Input     any  `json:"input"`
	Label     any  `json:"label"`
	Output    any  `json:"output"`
	Score     any  `json:"score"`
	IsCorrect bool `json:"is_correct"`
}

// Value returns the caller-facing form of an IO value. A singleton string
// list or length-1 tensor collapses to its only element; anything longer
// stays a list. A zero IO is nil.
func (io IO) Value() any {
	switch io.Kind {
	case IOKindStrings:
		if len(io.Strings) == 1 {
			return io.Strings[0]
		}
		return nonNilStrings(io.Strings)
	case IOKindTensor:
		if len(io.Values) == 1 {
			return io.Values[0]
		}
		return nonNilFloats(io.Values)
	}
	return nil
}

// View shapes m for the response boundary. Nil slices and maps are
// replaced with empty ones so they encode as [] and {}.
func (m Metrics) View() MetricsView {
	labels := make([]any, 0, len(m.Label))
	for _, l := range m.Label {
		labels = append(labels, l.Value())
	}
	opt := m.Option
	if opt == nil {
		opt = map[string]float64{}
	}
	return MetricsView{
		Accuracy:  m.Accuracy,
		Precision: nonNilFloats(m.Precision),
		Recall:    nonNilFloats(m.Recall),
		FValue:    nonNilFloats(m.FValue),
		Num:       m.Num,
		Label:     labels,
		Option:    opt,
	}
}

// View shapes d for the response boundary.
func (d Detail) View() DetailView {
	var score any
	if len(d.Score) == 1 {
		score = d.Score[0]
	} else {
		score = nonNilFloats(d.Score)
	}
	return DetailView{
		Input:     d.Input.Value(),
		Label:     d.Label.Value(),
		Output:    d.Output.Value(),
		Score:     score,
		IsCorrect: d.IsCorrect,
	}
}

// DetailViews shapes a slice of details.
func DetailViews(ds []Detail) []DetailView {
	out := make([]DetailView, 0, len(ds))
	for _, d := range ds {
		out = append(out, d.View())
	}
	return out
}

func nonNilFloats(v []float64) []float64 {
	if v == nil {
		return []float64{}
	}
	return v
}

func nonNilStrings(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}
