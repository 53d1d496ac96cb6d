package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"deligma/pkg/config"
	"deligma/pkg/logger"
)

func TestMetricsHandlerExposesOtelInstruments(t *testing.T) {
	ctx := context.Background()
	p, err := Setup(ctx, config.TelemetryConfig{ServiceName: "deligma-test"}, "test", logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Shutdown(ctx) })

	counter, err := otel.Meter("deligma/test").Int64Counter("telemetry_probe")
	require.NoError(t, err)
	counter.Add(ctx, 3)

	rec := httptest.NewRecorder()
	p.MetricsHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "telemetry_probe")
}

func TestSetupTwiceUsesSeparateRegistries(t *testing.T) {
	ctx := context.Background()
	first, err := Setup(ctx, config.TelemetryConfig{}, "test", logger.Nop())
	require.NoError(t, err)
	second, err := Setup(ctx, config.TelemetryConfig{}, "test", logger.Nop())
	require.NoError(t, err)

	assert.NoError(t, first.Shutdown(ctx))
	assert.NoError(t, second.Shutdown(ctx))
}
