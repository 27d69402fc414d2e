package telemetry_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rekcurd/dashboard/internal/telemetry"
)

func TestInitDisabledWithoutEndpoint(t *testing.T) {
	shutdown, err := telemetry.Init(context.Background(), telemetry.Config{ServiceName: "dashboard"})
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(context.Background()))
}

func TestMeterAndTracerAreUsableWithNoopProviders(t *testing.T) {
	ctx := context.Background()

	counter, err := telemetry.Meter("test").Int64Counter("test.count")
	require.NoError(t, err)
	counter.Add(ctx, 1)

	_, span := telemetry.Tracer("test").Start(ctx, "op")
	span.End()
}
