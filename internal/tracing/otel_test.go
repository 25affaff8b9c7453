package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetup_InstallsProviderAndStartSpanWorks(t *testing.T) {
	ctx := context.Background()

	shutdown, err := Setup(ctx, "luthien-control-test")
	require.NoError(t, err)
	defer shutdown(ctx)

	spanCtx, span := StartSpan(ctx, "unit-test-span")
	defer span.End()

	assert.NotNil(t, spanCtx)
	assert.True(t, span.SpanContext().IsValid())
}
