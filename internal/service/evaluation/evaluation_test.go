package evaluation_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rekcurd/dashboard/internal/blob"
	"github.com/rekcurd/dashboard/internal/model"
	"github.com/rekcurd/dashboard/internal/scorer"
	"github.com/rekcurd/dashboard/internal/service/evaluation"
	"github.com/rekcurd/dashboard/internal/storage/sqlite"
	"github.com/rekcurd/dashboard/internal/testutil"
)

// fakeScorer is a deterministic stand-in for a model server.
type fakeScorer struct {
	mu            sync.Mutex
	metrics       model.Metrics
	details       []model.Detail
	err           error
	evaluateCalls int
	uploads       map[string][]byte
	resultPaths   []string
}

func newFakeScorer() *fakeScorer {
	return &fakeScorer{metrics: metricsWithAccuracy(0), uploads: map[string][]byte{}}
}

func (f *fakeScorer) EvaluateModel(_ context.Context, _, _, resultPath string) (model.Metrics, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return model.Metrics{}, f.err
	}
	f.evaluateCalls++
	f.resultPaths = append(f.resultPaths, resultPath)
	return f.metrics, nil
}

func (f *fakeScorer) EvaluationResult(_ context.Context, _, _, _ string) (model.Metrics, []model.Detail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return model.Metrics{}, nil, f.err
	}
	return f.metrics, f.details, nil
}

func (f *fakeScorer) UploadEvaluationData(_ context.Context, _, dataPath string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.uploads[dataPath] = append([]byte(nil), data...)
	return nil
}

func (f *fakeScorer) set(fn func(f *fakeScorer)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

func (f *fakeScorer) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.evaluateCalls
}

func metricsWithAccuracy(acc float64) model.Metrics {
	return model.Metrics{
		Accuracy:  acc,
		Precision: []float64{0.0},
		Recall:    []float64{0.0},
		FValue:    []float64{0.0},
		Option:    map[string]float64{},
		Label:     []model.IO{model.StringsIO("label")},
	}
}

type env struct {
	db      *sqlite.DB
	blobs   blob.Store
	scorer  *fakeScorer
	reg     *evaluation.Registry
	orch    *evaluation.Orchestrator
	results *evaluation.Results
	fx      testutil.Fixture
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db := testutil.NewSQLite(t)
	blobs, err := blob.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	sc := newFakeScorer()
	logger := testutil.TestLogger()
	reg := evaluation.NewRegistry(db, blobs, logger)
	return &env{
		db:      db,
		blobs:   blobs,
		scorer:  sc,
		reg:     reg,
		orch:    evaluation.NewOrchestrator(db, reg, sc, logger),
		results: evaluation.NewResults(db, sc, logger),
		fx:      testutil.SeedFixture(t, db, "a", "localhost", 5000),
	}
}

func (e *env) appID() int64   { return e.fx.Application.ApplicationID }
func (e *env) modelID() int64 { return e.fx.Model.ModelID }

// seedDataset stores data and inserts a dataset row with an explicit
// checksum and creation time.
func (e *env) seedDataset(t *testing.T, checksum string, createdAt time.Time) model.Evaluation {
	t.Helper()
	ctx := context.Background()
	key := blob.EvaluationKey(e.appID())
	require.NoError(t, e.blobs.Put(ctx, key, []byte("data-"+checksum)))
	ev, err := e.db.CreateEvaluation(ctx, model.Evaluation{
		ApplicationID: e.appID(), Checksum: checksum, Description: "desc " + checksum,
		DataPath: key, CreatedAt: createdAt,
	})
	require.NoError(t, err)
	return ev
}

func ptr[T any](v T) *T { return &v }

func TestUploadDeduplicatesByChecksum(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	ctx := context.Background()

	first, err := e.reg.Upload(ctx, e.appID(), []byte("x,y\n1,2\n"), "eval desc")
	require.NoError(t, err)
	assert.True(t, first.Created)
	assert.Empty(t, first.Message)

	second, err := e.reg.Upload(ctx, e.appID(), []byte("x,y\n1,2\n"), "another desc")
	require.NoError(t, err)
	assert.False(t, second.Created)
	assert.Equal(t, first.Evaluation.EvaluationID, second.Evaluation.EvaluationID)
	assert.Equal(t, "The file already exists. Description: eval desc", second.Message)

	all, err := e.reg.List(ctx, e.appID())
	require.NoError(t, err)
	assert.Len(t, all, 1)
	assert.Equal(t, evaluation.Checksum([]byte("x,y\n1,2\n")), all[0].Checksum)
}

func TestConcurrentIdenticalUploadsConverge(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	ctx := context.Background()

	const n = 10
	var wg sync.WaitGroup
	results := make([]evaluation.UploadResult, n)
	errs := make([]error, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = e.reg.Upload(ctx, e.appID(), []byte("same bytes"), fmt.Sprintf("upload %d", i))
		}()
	}
	wg.Wait()

	created := 0
	for i := range n {
		require.NoError(t, errs[i])
		assert.Equal(t, results[0].Evaluation.EvaluationID, results[i].Evaluation.EvaluationID)
		if results[i].Created {
			created++
		}
	}
	assert.Equal(t, 1, created)

	all, err := e.reg.List(ctx, e.appID())
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestDownloadReturnsUploadedBytes(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	ctx := context.Background()

	up, err := e.reg.Upload(ctx, e.appID(), []byte("payload"), "d")
	require.NoError(t, err)

	rc, ev, err := e.reg.Download(ctx, e.appID(), up.Evaluation.EvaluationID)
	require.NoError(t, err)
	defer rc.Close()
	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(b))
	assert.Equal(t, up.Evaluation.EvaluationID, ev.EvaluationID)

	_, _, err = e.reg.Download(ctx, e.appID(), 9999)
	assert.ErrorIs(t, err, evaluation.ErrNotFound)
}

func TestEvaluateWithoutIDUsesNewestDataset(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	e.seedDataset(t, "12345", base)
	e.seedDataset(t, "6789", base.Add(time.Minute))
	e.seedDataset(t, "abc", base.Add(2*time.Minute))
	newest := e.seedDataset(t, "", base.Add(3*time.Minute))

	out, err := e.orch.Evaluate(ctx, e.appID(), e.modelID(), nil, evaluation.ModeCreate)
	require.NoError(t, err)
	assert.Equal(t, evaluation.Created, out.Kind)
	assert.Equal(t, newest.EvaluationID, out.Result.EvaluationID)

	entries, err := e.results.List(ctx, e.appID())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, newest.EvaluationID, entries[0].Evaluation.EvaluationID)

	resp := out.Response()
	assert.True(t, resp.Status)
	assert.Equal(t, out.Result.EvaluationResultID, resp.ResultID)
	assert.Equal(t, []any{"label"}, resp.Label)
}

func TestEvaluateLocalModeStagesDataset(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	ctx := context.Background()

	up, err := e.reg.Upload(ctx, e.appID(), []byte("a,b\n"), "d")
	require.NoError(t, err)

	_, err = e.orch.Evaluate(ctx, e.appID(), e.modelID(), ptr(up.Evaluation.EvaluationID), evaluation.ModeCreate)
	require.NoError(t, err)

	e.scorer.mu.Lock()
	defer e.scorer.mu.Unlock()
	assert.Equal(t, []byte("a,b\n"), e.scorer.uploads[up.Evaluation.DataPath])
}

func TestEvaluateCreateTwiceConflicts(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	ctx := context.Background()
	ds := e.seedDataset(t, "c", time.Now())

	first, err := e.orch.Evaluate(ctx, e.appID(), e.modelID(), ptr(ds.EvaluationID), evaluation.ModeCreate)
	require.NoError(t, err)

	e.scorer.set(func(f *fakeScorer) { f.metrics = metricsWithAccuracy(0.9) })
	_, err = e.orch.Evaluate(ctx, e.appID(), e.modelID(), ptr(ds.EvaluationID), evaluation.ModeCreate)
	require.ErrorIs(t, err, evaluation.ErrConflict)
	var ce *evaluation.ConflictError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, first.Result.EvaluationResultID, ce.ResultID)
	assert.Equal(t, 1, e.scorer.calls(), "no remote call on conflict")

	stored, found, err := e.results.Find(ctx, e.modelID(), ds.EvaluationID)
	require.NoError(t, err)
	require.True(t, found)
	assert.InDelta(t, 0.0, stored.Result.Accuracy, 1e-9, "stored result unchanged")
}

func TestEvaluateUpdateWithoutPriorResultIsNotFound(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	ctx := context.Background()
	ds := e.seedDataset(t, "u", time.Now())

	_, err := e.orch.Evaluate(ctx, e.appID(), e.modelID(), ptr(ds.EvaluationID), evaluation.ModeUpdate)
	assert.ErrorIs(t, err, evaluation.ErrNoPriorResult)
	assert.ErrorIs(t, err, evaluation.ErrNotFound)
	assert.Equal(t, 0, e.scorer.calls())

	_, found, err := e.results.Find(ctx, e.modelID(), ds.EvaluationID)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestEvaluateUpdateOverwritesWithNewMetrics(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	ctx := context.Background()
	ds := e.seedDataset(t, "u", time.Now())

	created, err := e.orch.Evaluate(ctx, e.appID(), e.modelID(), ptr(ds.EvaluationID), evaluation.ModeCreate)
	require.NoError(t, err)

	e.scorer.set(func(f *fakeScorer) { f.metrics = metricsWithAccuracy(0.75) })
	updated, err := e.orch.Evaluate(ctx, e.appID(), e.modelID(), ptr(ds.EvaluationID), evaluation.ModeUpdate)
	require.NoError(t, err)
	assert.Equal(t, evaluation.Replaced, updated.Kind)
	assert.Equal(t, created.Result.EvaluationResultID, updated.Result.EvaluationResultID)
	assert.InDelta(t, 0.75, updated.Response().Accuracy, 1e-9)

	stored, _, err := e.results.Find(ctx, e.modelID(), ds.EvaluationID)
	require.NoError(t, err)
	assert.InDelta(t, 0.75, stored.Result.Accuracy, 1e-9)

	e.scorer.mu.Lock()
	assert.Equal(t, e.scorer.resultPaths[0], e.scorer.resultPaths[1], "update reuses the result path")
	e.scorer.mu.Unlock()
}

func TestEvaluateResolutionFailuresHappenBeforeRemoteCall(t *testing.T) {
	t.Parallel()

	t.Run("no datasets", func(t *testing.T) {
		t.Parallel()
		e := newEnv(t)
		_, err := e.orch.Evaluate(context.Background(), e.appID(), e.modelID(), nil, evaluation.ModeCreate)
		assert.ErrorIs(t, err, evaluation.ErrNotFound)
		assert.Equal(t, 0, e.scorer.calls())
	})

	t.Run("unknown dataset id", func(t *testing.T) {
		t.Parallel()
		e := newEnv(t)
		e.seedDataset(t, "x", time.Now())
		_, err := e.orch.Evaluate(context.Background(), e.appID(), e.modelID(), ptr(int64(9999)), evaluation.ModeCreate)
		assert.ErrorIs(t, err, evaluation.ErrNotFound)
		assert.Equal(t, 0, e.scorer.calls())
	})

	t.Run("no service for model", func(t *testing.T) {
		t.Parallel()
		e := newEnv(t)
		ds := e.seedDataset(t, "x", time.Now())
		_, err := e.orch.Evaluate(context.Background(), e.appID(), e.modelID()+100, ptr(ds.EvaluationID), evaluation.ModeCreate)
		assert.ErrorIs(t, err, evaluation.ErrNotFound)
		assert.Equal(t, 0, e.scorer.calls())
	})
}

func TestEvaluateWithSeveralServicesForModel(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	ctx := context.Background()
	_, err := e.db.CreateService(ctx, model.Service{
		ServiceID: "another", ApplicationID: e.appID(), ModelID: e.modelID(),
		InsecureHost: "localhost", InsecurePort: 5001,
	})
	require.NoError(t, err)
	ds := e.seedDataset(t, "multi", time.Now())

	_, err = e.orch.Evaluate(ctx, e.appID(), e.modelID(), ptr(ds.EvaluationID), evaluation.ModeCreate)
	require.NoError(t, err)
}

func TestEvaluateRemoteFailurePersistsNothing(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	ctx := context.Background()
	ds := e.seedDataset(t, "r", time.Now())

	e.scorer.set(func(f *fakeScorer) { f.err = fmt.Errorf("dial: %w", scorer.ErrUnavailable) })
	_, err := e.orch.Evaluate(ctx, e.appID(), e.modelID(), ptr(ds.EvaluationID), evaluation.ModeCreate)
	assert.ErrorIs(t, err, scorer.ErrUnavailable)

	_, found, err := e.results.Find(ctx, e.modelID(), ds.EvaluationID)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestConcurrentCreatesHaveOneWinner(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	ctx := context.Background()
	ds := e.seedDataset(t, "race", time.Now())

	const n = 6
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = e.orch.Evaluate(ctx, e.appID(), e.modelID(), ptr(ds.EvaluationID), evaluation.ModeCreate)
		}()
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		var ce *evaluation.ConflictError
		assert.True(t, errors.As(err, &ce), "unexpected error: %v", err)
	}
	assert.Equal(t, 1, wins)

	entries, err := e.results.List(ctx, e.appID())
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestDeleteDatasetCascadesAndRemovesData(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	ctx := context.Background()

	up, err := e.reg.Upload(ctx, e.appID(), []byte("bytes"), "d")
	require.NoError(t, err)
	id := up.Evaluation.EvaluationID
	_, err = e.orch.Evaluate(ctx, e.appID(), e.modelID(), &id, evaluation.ModeCreate)
	require.NoError(t, err)

	require.NoError(t, e.reg.Delete(ctx, e.appID(), id))

	entries, err := e.results.List(ctx, e.appID())
	require.NoError(t, err)
	assert.Empty(t, entries)

	_, err = e.blobs.Open(ctx, up.Evaluation.DataPath)
	assert.ErrorIs(t, err, blob.ErrNotFound)

	assert.ErrorIs(t, e.reg.Delete(ctx, e.appID(), id), evaluation.ErrNotFound)
}

func TestResultsGetShapesDetails(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	ctx := context.Background()
	ds := e.seedDataset(t, "g", time.Now())

	out, err := e.orch.Evaluate(ctx, e.appID(), e.modelID(), ptr(ds.EvaluationID), evaluation.ModeCreate)
	require.NoError(t, err)

	e.scorer.set(func(f *fakeScorer) {
		f.details = []model.Detail{{
			Input:  model.TensorIO([]int32{1}, 0.5),
			Label:  model.TensorIO([]int32{2}, 0.9, 1.3),
			Output: model.TensorIO([]int32{2}, 0.9, 0.3),
			Score:  []float64{0.5, 0.5},
		}}
	})

	got, err := e.results.Get(ctx, e.appID(), out.Result.EvaluationResultID)
	require.NoError(t, err)
	assert.True(t, got.Status)
	assert.Equal(t, out.Result.EvaluationResultID, got.Metrics.ResultID)
	require.Len(t, got.Details, 1)
	assert.Equal(t, 0.5, got.Details[0].Input)
	assert.Equal(t, []float64{0.9, 1.3}, got.Details[0].Label)

	_, err = e.results.Get(ctx, e.appID(), 9999)
	assert.ErrorIs(t, err, evaluation.ErrNotFound)

	e.scorer.set(func(f *fakeScorer) { f.err = fmt.Errorf("gone: %w", scorer.ErrNotFound) })
	_, err = e.results.Get(ctx, e.appID(), out.Result.EvaluationResultID)
	assert.ErrorIs(t, err, evaluation.ErrNotFound)
}

func TestResultsDelete(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	ctx := context.Background()
	ds := e.seedDataset(t, "d", time.Now())

	out, err := e.orch.Evaluate(ctx, e.appID(), e.modelID(), ptr(ds.EvaluationID), evaluation.ModeCreate)
	require.NoError(t, err)

	require.NoError(t, e.results.Delete(ctx, e.appID(), out.Result.EvaluationResultID))
	assert.ErrorIs(t, e.results.Delete(ctx, e.appID(), out.Result.EvaluationResultID), evaluation.ErrNotFound)
}
