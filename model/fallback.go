package model

import (
	"context"
	"time"

	"dms/pkg/log"
	"dms/types"
)

// chainState is the explicit state of the fallback machine.
type chainState int

const (
	stateAttempting chainState = iota
	stateSucceeded
	stateFailed
)

const (
	initialBackoff = time.Second
	maxBackoff     = 8 * time.Second
)

// FallbackChain drives a Provider through an ordered list of models:
// each model gets up to maxRetries attempts on transient errors with
// capped exponential backoff, a non-transient error abandons the model
// immediately, and exhausting the list yields ProviderExhaustedError.
// The same chain serves answer generation and connectivity tests.
type FallbackChain struct {
	provider   Provider
	models     []string
	maxRetries int
	sleep      func(time.Duration) // replaced in tests
}

func NewFallbackChain(provider Provider, models []string, maxRetries int) *FallbackChain {
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &FallbackChain{
		provider:   provider,
		models:     models,
		maxRetries: maxRetries,
		sleep:      time.Sleep,
	}
}

// Complete runs the state machine until Succeeded or Failed.
func (f *FallbackChain) Complete(ctx context.Context, messages []Message) (string, error) {
	return f.complete(ctx, messages, f.models)
}

// CompleteWith runs the chain with preferred tried first, then the
// configured models minus the duplicate. An empty preferred is the
// plain chain.
func (f *FallbackChain) CompleteWith(ctx context.Context, messages []Message, preferred string) (string, error) {
	if preferred == "" {
		return f.complete(ctx, messages, f.models)
	}
	models := make([]string, 0, len(f.models)+1)
	models = append(models, preferred)
	for _, m := range f.models {
		if m != preferred {
			models = append(models, m)
		}
	}
	return f.complete(ctx, messages, models)
}

func (f *FallbackChain) complete(ctx context.Context, messages []Message, models []string) (string, error) {
	if len(models) == 0 {
		return "", ErrNoModels
	}

	attempts := make([]types.ProviderAttempt, 0, len(models))
	state := stateAttempting
	modelIdx := 0
	var answer string

	for state == stateAttempting {
		model := models[modelIdx]
		text, err := f.attemptModel(ctx, messages, model)
		if err == nil {
			if modelIdx > 0 {
				log.Infof("fallback model %s succeeded after %d failed model(s)", model, modelIdx)
			}
			answer = text
			state = stateSucceeded
			break
		}

		attempts = append(attempts, types.ProviderAttempt{Model: model, Err: err})
		log.Warnw("model exhausted, moving on", "model", model, "error", err)

		modelIdx++
		if modelIdx >= len(models) {
			state = stateFailed
		}
	}

	if state == stateFailed {
		return "", &types.ProviderExhaustedError{Attempts: attempts}
	}
	return answer, nil
}

// attemptModel runs the per-model retry loop. Only transient errors are
// retried; the last error is returned once retries run out.
func (f *FallbackChain) attemptModel(ctx context.Context, messages []Message, model string) (string, error) {
	backoff := initialBackoff
	var lastErr error

	for attempt := 1; attempt <= f.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		text, err := f.provider.Complete(ctx, messages, model)
		if err == nil {
			return text, nil
		}
		lastErr = err

		if !types.IsTransient(err) {
			return "", err
		}
		if attempt == f.maxRetries {
			break
		}

		log.Warnf("attempt %d/%d for %s failed: %v, retrying in %s", attempt, f.maxRetries, model, err, backoff)
		f.sleep(backoff)
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}

	return "", lastErr
}
