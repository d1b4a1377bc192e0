package telemetry

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger("debug", "json")
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))

	logger, err = NewLogger("warn", "console")
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, logger.Core().Enabled(zapcore.WarnLevel))

	logger, err = NewLogger("", "")
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.InfoLevel))

	_, err = NewLogger("loud", "json")
	assert.Error(t, err)

	_, err = NewLogger("info", "xml")
	assert.Error(t, err)
}

func TestInit_StdoutExporter(t *testing.T) {
	var buf bytes.Buffer
	inst, shutdown, err := Init(context.Background(), Options{
		ServiceName:    "translation-service",
		ServiceVersion: "test",
		Environment:    "test",
		TracesExporter: "stdout",
		TraceOutput:    &buf,
	})
	require.NoError(t, err)

	_, span := inst.Tracer("test").Start(context.Background(), "unit-span")
	span.End()

	counter, err := inst.Meter("test").Int64Counter("test.counter")
	require.NoError(t, err)
	counter.Add(context.Background(), 1)

	require.NoError(t, shutdown(context.Background()))
	assert.Contains(t, buf.String(), "unit-span")
}

func TestInit_UnknownExporter(t *testing.T) {
	_, _, err := Init(context.Background(), Options{TracesExporter: "zipkin"})
	assert.Error(t, err)
}

func TestInstruments_NilFallbacks(t *testing.T) {
	var inst *Instruments
	assert.NotNil(t, inst.Tracer("x"))
	assert.NotNil(t, inst.Meter("x"))
}
