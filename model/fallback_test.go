package model

import (
	"context"
	"errors"
	"testing"
	"time"

	"dms/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProvider scripts per-model behavior and records every call.
type fakeProvider struct {
	responses map[string][]error // per model, error for call n (nil = success)
	calls     []string
}

func (p *fakeProvider) Complete(_ context.Context, _ []Message, model string) (string, error) {
	p.calls = append(p.calls, model)
	script := p.responses[model]
	n := 0
	for _, c := range p.calls {
		if c == model {
			n++
		}
	}
	if n <= len(script) && script[n-1] != nil {
		return "", script[n-1]
	}
	return "answer from " + model, nil
}

func transientErr(model string) error {
	return &types.ProviderError{Model: model, StatusCode: 429, Message: "rate limit", Transient: true}
}

func authErr(model string) error {
	return &types.ProviderError{Model: model, StatusCode: 401, Message: "bad key", Transient: false}
}

func newTestChain(p Provider, models []string, retries int) *FallbackChain {
	chain := NewFallbackChain(p, models, retries)
	chain.sleep = func(time.Duration) {}
	return chain
}

func TestFallbackChain_FirstModelSucceeds(t *testing.T) {
	p := &fakeProvider{responses: map[string][]error{}}
	chain := newTestChain(p, []string{"a", "b"}, 3)

	answer, err := chain.Complete(context.Background(), []Message{{Role: "user", Content: "hi"}})
	require.NoError(t, err)
	assert.Equal(t, "answer from a", answer)
	assert.Equal(t, []string{"a"}, p.calls)
}

func TestFallbackChain_TransientFailuresThenSuccess(t *testing.T) {
	// First two models fail transiently through all retries, the third
	// succeeds: exactly three models attempted, in order.
	p := &fakeProvider{responses: map[string][]error{
		"a": {transientErr("a"), transientErr("a")},
		"b": {transientErr("b"), transientErr("b")},
	}}
	chain := newTestChain(p, []string{"a", "b", "c"}, 2)

	answer, err := chain.Complete(context.Background(), []Message{{Role: "user", Content: "hi"}})
	require.NoError(t, err)
	assert.Equal(t, "answer from c", answer)
	assert.Equal(t, []string{"a", "a", "b", "b", "c"}, p.calls)
}

func TestFallbackChain_AllModelsFail(t *testing.T) {
	p := &fakeProvider{responses: map[string][]error{
		"a": {transientErr("a"), transientErr("a")},
		"b": {transientErr("b"), transientErr("b")},
		"c": {transientErr("c"), transientErr("c")},
	}}
	chain := newTestChain(p, []string{"a", "b", "c"}, 2)

	_, err := chain.Complete(context.Background(), nil)
	require.Error(t, err)

	var exhausted *types.ProviderExhaustedError
	require.True(t, errors.As(err, &exhausted))
	assert.Equal(t, []string{"a", "b", "c"}, exhausted.Models())
	for _, a := range exhausted.Attempts {
		assert.Error(t, a.Err)
	}
}

func TestFallbackChain_NonTransientSkipsRetries(t *testing.T) {
	// Auth failure on the first model must not be retried; the chain
	// moves straight to the next model.
	p := &fakeProvider{responses: map[string][]error{
		"a": {authErr("a"), authErr("a"), authErr("a")},
	}}
	chain := newTestChain(p, []string{"a", "b"}, 3)

	answer, err := chain.Complete(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "answer from b", answer)
	assert.Equal(t, []string{"a", "b"}, p.calls)
}

func TestFallbackChain_PreferredModelTriedFirst(t *testing.T) {
	p := &fakeProvider{responses: map[string][]error{}}
	chain := newTestChain(p, []string{"a", "b"}, 3)

	answer, err := chain.CompleteWith(context.Background(), nil, "b")
	require.NoError(t, err)
	assert.Equal(t, "answer from b", answer)
	assert.Equal(t, []string{"b"}, p.calls)
}

func TestFallbackChain_PreferredModelFailsOver(t *testing.T) {
	// The preferred model is prepended without duplicating it in the
	// rest of the chain.
	p := &fakeProvider{responses: map[string][]error{
		"b": {authErr("b")},
	}}
	chain := newTestChain(p, []string{"a", "b"}, 3)

	answer, err := chain.CompleteWith(context.Background(), nil, "b")
	require.NoError(t, err)
	assert.Equal(t, "answer from a", answer)
	assert.Equal(t, []string{"b", "a"}, p.calls)
}

func TestFallbackChain_NoModels(t *testing.T) {
	chain := newTestChain(&fakeProvider{}, nil, 3)
	_, err := chain.Complete(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoModels)
}

func TestFallbackChain_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := &fakeProvider{responses: map[string][]error{}}
	chain := newTestChain(p, []string{"a"}, 3)

	_, err := chain.Complete(ctx, nil)
	require.Error(t, err)
	assert.Empty(t, p.calls)
}
