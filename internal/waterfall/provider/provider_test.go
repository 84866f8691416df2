package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leads-cli/internal/fetcher"
	"github.com/sells-group/leads-cli/internal/model"
	"github.com/sells-group/leads-cli/internal/resilience"
)

// mockProvider implements Provider for testing.
type mockProvider struct {
	name            string
	supportedFields []string
}

func (m *mockProvider) Name() string { return m.name }
func (m *mockProvider) SupportedFields() []string { return m.supportedFields }
func (m *mockProvider) Ready(_ model.Lead) bool { return true }
func (m *mockProvider) Enrich(_ context.Context, _ model.Lead) (*Result, error) {
	return &Result{Provider: m.name, Fields: model.FieldSet{Phone: "3133334444"}, MatchConfidence: 1}, nil
}

func TestRegistry(t *testing.T) {
	r := NewRegistry(&mockProvider{name: "receitaws"})
	r.Register(&mockProvider{name: "brasilapi"})

	assert.NotNil(t, r.Get("receitaws"))
	assert.Nil(t, r.Get("nonexistent"))
	assert.Equal(t, []string{"brasilapi", "receitaws"}, r.List())

	r.Register(&mockProvider{name: "brasilapi", supportedFields: []string{model.FieldPhone}})
	assert.Len(t, r.List(), 2)
	assert.Equal(t, []string{model.FieldPhone}, r.Get("brasilapi").SupportedFields())
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			r.Register(&mockProvider{name: fmt.Sprintf("p%d", i)})
		}()
		go func() {
			defer wg.Done()
			_ = r.List()
		}()
	}
	wg.Wait()
	assert.Len(t, r.List(), 20)
}

func TestClassify(t *testing.T) {
	var syn *json.SyntaxError
	synErr := json.Unmarshal([]byte("{"), &struct{}{})
	require.ErrorAs(t, synErr, &syn)

	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"no match", eris.Wrap(ErrNoMatch, "casadosdados"), KindNoMatch},
		{"malformed", eris.Wrap(ErrMalformed, "website"), KindParseFailure},
		{"deadline", eris.Wrap(context.DeadlineExceeded, "receitaws: get"), KindTimeout},
		{"429", &fetcher.StatusError{StatusCode: 429}, KindRateLimited},
		{"429 transient", resilience.NewTransientError(&fetcher.StatusError{StatusCode: 429}, 429), KindRateLimited},
		{"404", &fetcher.StatusError{StatusCode: 404}, KindNoMatch},
		{"500", &fetcher.StatusError{StatusCode: 500}, KindUnavailable},
		{"json syntax", eris.Wrap(synErr, "decode"), KindParseFailure},
		{"circuit open", resilience.ErrCircuitOpen, KindUnavailable},
		{"other", eris.New("connection refused"), KindUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pe := Classify("p", tt.err)
			require.NotNil(t, pe)
			assert.Equal(t, tt.want, pe.Kind)
			assert.Equal(t, "p", pe.Provider)
			assert.ErrorIs(t, pe, tt.err)
		})
	}
}

func TestClassify_KeepsExistingError(t *testing.T) {
	orig := &Error{Provider: "social", Kind: KindRateLimited, Err: eris.New("slow down")}
	assert.Same(t, orig, Classify("other", eris.Wrap(orig, "wrapped")))
	assert.Nil(t, Classify("p", nil))
}

func TestTripsBreaker(t *testing.T) {
	assert.False(t, TripsBreaker(nil))
	assert.False(t, TripsBreaker(ErrNoMatch))
	assert.False(t, TripsBreaker(ErrMalformed))
	assert.True(t, TripsBreaker(context.DeadlineExceeded))
	assert.True(t, TripsBreaker(&fetcher.StatusError{StatusCode: 503}))
}
