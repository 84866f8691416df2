package provider

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leads-cli/internal/model"
)

func TestWithRate_ZeroReturnsProvider(t *testing.T) {
	p := &mockProvider{name: "website"}
	assert.Same(t, Provider(p), WithRate(p, 0))
}

func TestWithRate_PacesCalls(t *testing.T) {
	p := WithRate(&mockProvider{name: "website"}, 600) // one call per 100ms
	assert.Equal(t, "website", p.Name())

	start := time.Now()
	for range 3 {
		res, err := p.Enrich(context.Background(), model.Lead{Name: "Acme"})
		require.NoError(t, err)
		assert.Equal(t, "3133334444", res.Fields.Phone)
	}
	assert.GreaterOrEqual(t, time.Since(start), 180*time.Millisecond)
}

func TestWithRate_CancelledWait(t *testing.T) {
	p := WithRate(&mockProvider{name: "social"}, 1)
	_, err := p.Enrich(context.Background(), model.Lead{Name: "Acme"})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = p.Enrich(ctx, model.Lead{Name: "Acme"})
	require.Error(t, err)
}
