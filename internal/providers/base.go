// Package providers implements the model-invocation collaborators behind
// the engine.Runner contract. Each provider owns the bounded model/tool
// loop: it sends the prompt, executes tool calls the model requests, feeds
// results back, and stops at the step ceiling.
package providers

import (
	"context"
	"strings"
	"time"
)

// base holds the retry behavior shared by providers.
type base struct {
	name       string
	retryDelay time.Duration
}

func newBase(name string) base {
	return base{name: name, retryDelay: time.Second}
}

// retry executes op up to maxRetries+1 times with linear backoff, retrying
// only transient failures.
func (b base) retry(ctx context.Context, maxRetries int, op func() error) error {
	if maxRetries < 0 {
		maxRetries = 0
	}
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := op(); err == nil {
			return nil
		} else {
			lastErr = err
			if !isRetryable(err) || attempt == maxRetries {
				return err
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(b.retryDelay * time.Duration(attempt+1)):
		}
	}
	return lastErr
}

// isRetryable classifies transient provider failures worth another attempt:
// rate limits, timeouts, and server-side errors.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"429", "rate limit", "too many requests",
		"timeout", "deadline exceeded",
		"500", "502", "503", "529", "overloaded", "internal server error",
		"connection reset", "connection refused", "eof",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
