package trace

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
)

func TestStartSpanWithoutInit(t *testing.T) {
	ctx, span := StartSpan(context.Background(), "noop", attribute.String("date", "2023-05-12"))
	defer span.End()

	assert.NotNil(t, ctx)
	RecordError(span, errors.New("ignored"))
}

func TestInitExportsSpans(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Init(true, &buf))

	_, span := StartSpan(context.Background(), "ptax.fetch_quote", attribute.String("date", "2023-05-12"))
	span.End()

	require.NoError(t, Shutdown(context.Background()))
	assert.Contains(t, buf.String(), "ptax.fetch_quote")

	tracer = nil
	tracerProvider = nil
}
