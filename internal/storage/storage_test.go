package storage_test

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rekcurd/dashboard/internal/model"
	"github.com/rekcurd/dashboard/internal/storage"
	"github.com/rekcurd/dashboard/internal/testutil"
	"github.com/rekcurd/dashboard/migrations"
)

// testDB holds a shared test database connection for all tests in this package.
var testDB *storage.DB

func TestMain(m *testing.M) {
	tc := testutil.MustStartPostgres()

	var err error
	testDB, err = tc.NewTestDB(context.Background(), testutil.TestLogger())
	if err != nil {
		tc.Terminate()
		panic(err)
	}

	code := m.Run()
	testDB.Close(context.Background())
	tc.Terminate()
	os.Exit(code)
}

func seed(t *testing.T) testutil.Fixture {
	t.Helper()
	return testutil.SeedFixture(t, testDB, uuid.NewString()[:8], "localhost", 5000)
}

func metrics(acc float64) model.MetricsView {
	return model.Metrics{
		Accuracy:  acc,
		Precision: []float64{acc},
		Recall:    []float64{acc},
		FValue:    []float64{acc},
		Label:     []model.IO{model.StringsIO("label")},
	}.View()
}

func TestRunMigrationsIsIdempotent(t *testing.T) {
	require.NoError(t, testDB.RunMigrations(context.Background(), migrations.Postgres()))
}

func TestGetApplicationScopedToProject(t *testing.T) {
	ctx := context.Background()
	fx := seed(t)

	got, err := testDB.GetApplication(ctx, fx.Project.ProjectID, fx.Application.ApplicationID)
	require.NoError(t, err)
	assert.Equal(t, fx.Application.ApplicationName, got.ApplicationName)

	_, err = testDB.GetApplication(ctx, fx.Project.ProjectID+1000, fx.Application.ApplicationID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestCreateServiceRejectsForeignModel(t *testing.T) {
	ctx := context.Background()
	a := seed(t)
	b := seed(t)

	_, err := testDB.CreateService(ctx, model.Service{
		ServiceID:     "cross-" + uuid.NewString()[:8],
		ApplicationID: a.Application.ApplicationID,
		ModelID:       b.Model.ModelID,
		InsecureHost:  "localhost",
		InsecurePort:  5000,
	})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestListServicesByModel(t *testing.T) {
	ctx := context.Background()
	fx := seed(t)

	_, err := testDB.CreateService(ctx, model.Service{
		ServiceID:     "zz-" + uuid.NewString()[:8],
		ApplicationID: fx.Application.ApplicationID,
		ModelID:       fx.Model.ModelID,
		InsecureHost:  "localhost",
		InsecurePort:  5001,
	})
	require.NoError(t, err)

	services, err := testDB.ListServicesByModel(ctx, fx.Application.ApplicationID, fx.Model.ModelID)
	require.NoError(t, err)
	require.Len(t, services, 2)
	assert.Less(t, services[0].ServiceID, services[1].ServiceID)

	none, err := testDB.ListServicesByModel(ctx, fx.Application.ApplicationID, fx.Model.ModelID+1000)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestEvaluationChecksumIsUniquePerApplication(t *testing.T) {
	ctx := context.Background()
	fx := seed(t)
	other := seed(t)

	first, err := testDB.CreateEvaluation(ctx, model.Evaluation{
		ApplicationID: fx.Application.ApplicationID, Checksum: "12345", Description: "first",
	})
	require.NoError(t, err)

	_, err = testDB.CreateEvaluation(ctx, model.Evaluation{
		ApplicationID: fx.Application.ApplicationID, Checksum: "12345", Description: "second",
	})
	assert.ErrorIs(t, err, storage.ErrConflict)

	_, err = testDB.CreateEvaluation(ctx, model.Evaluation{
		ApplicationID: other.Application.ApplicationID, Checksum: "12345",
	})
	require.NoError(t, err, "same checksum in another application is allowed")

	got, err := testDB.GetEvaluationByChecksum(ctx, fx.Application.ApplicationID, "12345")
	require.NoError(t, err)
	assert.Equal(t, first.EvaluationID, got.EvaluationID)
	assert.Equal(t, "first", got.Description)
}

func TestGetLatestEvaluation(t *testing.T) {
	ctx := context.Background()
	fx := seed(t)
	appID := fx.Application.ApplicationID

	_, err := testDB.GetLatestEvaluation(ctx, appID)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	base := time.Now().UTC().Add(-time.Hour)
	var last model.Evaluation
	for i, sum := range []string{"12345", "6789", "abc", ""} {
		last, err = testDB.CreateEvaluation(ctx, model.Evaluation{
			ApplicationID: appID,
			Checksum:      sum,
			CreatedAt:     base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}

	latest, err := testDB.GetLatestEvaluation(ctx, appID)
	require.NoError(t, err)
	assert.Equal(t, last.EvaluationID, latest.EvaluationID)

	all, err := testDB.ListEvaluations(ctx, appID)
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, "12345", all[0].Checksum)
}

func TestEvaluationResultLifecycle(t *testing.T) {
	ctx := context.Background()
	fx := seed(t)
	appID := fx.Application.ApplicationID

	ev, err := testDB.CreateEvaluation(ctx, model.Evaluation{ApplicationID: appID, Checksum: "lifecycle", Description: "eval desc"})
	require.NoError(t, err)

	_, found, err := testDB.FindEvaluationResult(ctx, fx.Model.ModelID, ev.EvaluationID)
	require.NoError(t, err)
	assert.False(t, found)

	created, err := testDB.CreateEvaluationResult(ctx, model.EvaluationResult{
		ModelID: fx.Model.ModelID, EvaluationID: ev.EvaluationID, DataPath: "results/1", Result: metrics(0.5),
	})
	require.NoError(t, err)

	_, err = testDB.CreateEvaluationResult(ctx, model.EvaluationResult{
		ModelID: fx.Model.ModelID, EvaluationID: ev.EvaluationID, Result: metrics(0.9),
	})
	assert.ErrorIs(t, err, storage.ErrConflict)

	found1, found, err := testDB.FindEvaluationResult(ctx, fx.Model.ModelID, ev.EvaluationID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, created.EvaluationResultID, found1.EvaluationResultID)
	assert.InDelta(t, 0.5, found1.Result.Accuracy, 1e-9)

	found1.Result = metrics(0.75)
	replaced, err := testDB.ReplaceEvaluationResult(ctx, found1)
	require.NoError(t, err)
	assert.Equal(t, created.EvaluationResultID, replaced.EvaluationResultID)
	assert.InDelta(t, 0.75, replaced.Result.Accuracy, 1e-9)

	entries, err := testDB.ListEvaluationResults(ctx, appID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "eval desc", entries[0].Evaluation.Description)
	assert.Equal(t, "model desc", entries[0].Model.Description)

	_, err = testDB.GetEvaluationResult(ctx, appID+1000, created.EvaluationResultID)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, testDB.DeleteEvaluationResult(ctx, appID, created.EvaluationResultID))
	err = testDB.DeleteEvaluationResult(ctx, appID, created.EvaluationResultID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestDeleteEvaluationCascadesToResults(t *testing.T) {
	ctx := context.Background()
	fx := seed(t)
	appID := fx.Application.ApplicationID

	ev, err := testDB.CreateEvaluation(ctx, model.Evaluation{ApplicationID: appID, Checksum: "cascade", DataPath: "blob"})
	require.NoError(t, err)
	_, err = testDB.CreateEvaluationResult(ctx, model.EvaluationResult{
		ModelID: fx.Model.ModelID, EvaluationID: ev.EvaluationID, Result: metrics(1),
	})
	require.NoError(t, err)

	deleted, err := testDB.DeleteEvaluation(ctx, appID, ev.EvaluationID)
	require.NoError(t, err)
	assert.Equal(t, "blob", deleted.DataPath)

	entries, err := testDB.ListEvaluationResults(ctx, appID)
	require.NoError(t, err)
	assert.Empty(t, entries)

	_, err = testDB.DeleteEvaluation(ctx, appID, ev.EvaluationID)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	// A result written after its dataset is gone hits the foreign key.
	_, err = testDB.CreateEvaluationResult(ctx, model.EvaluationResult{
		ModelID: fx.Model.ModelID, EvaluationID: ev.EvaluationID, Result: metrics(1),
	})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestConcurrentCreateEvaluationResultHasOneWinner(t *testing.T) {
	ctx := context.Background()
	fx := seed(t)

	ev, err := testDB.CreateEvaluation(ctx, model.Evaluation{ApplicationID: fx.Application.ApplicationID, Checksum: "race"})
	require.NoError(t, err)

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = testDB.CreateEvaluationResult(ctx, model.EvaluationResult{
				ModelID: fx.Model.ModelID, EvaluationID: ev.EvaluationID, Result: metrics(float64(i)),
			})
		}()
	}
	wg.Wait()

	var wins int
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, storage.ErrConflict):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, wins)
}
