// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/pdiddy/propextract/internal/retry"
)

// Request is a single completion call: system instructions, the user
// message carrying the excerpt, and an output-token budget.
type Request struct {
	System      string
	User        string
	MaxTokens   int
	Temperature float64
}

// Backend abstracts the LLM service so tests can supply a mock. Each
// implementation returns the raw response text.
type Backend interface {
	Name() string
	Complete(ctx context.Context, req Request) (string, error)
}

// APIError is a non-success response from an LLM provider.
type APIError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API returned %d: %s", e.Provider, e.StatusCode, e.Message)
}

// IsTransient reports whether retrying may succeed: rate limits, timeouts
// and server-side failures. Authentication and model errors are permanent.
func (e *APIError) IsTransient() bool { return retry.TransientStatus(e.StatusCode) }

// apiErrorFromResponse builds an APIError, pulling the provider's error
// message out of the common {"error": {"message": ...}} envelope.
func apiErrorFromResponse(provider string, resp *http.Response) *APIError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	msg := strings.TrimSpace(string(body))

	var envelope struct {
		Error struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &envelope) == nil && envelope.Error.Message != "" {
		msg = envelope.Error.Message
		if envelope.Error.Type != "" {
			msg = envelope.Error.Type + ": " + msg
		}
	}
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return &APIError{Provider: provider, StatusCode: resp.StatusCode, Message: msg}
}

// classify is the retry classifier for LLM calls.
func classify(err error) bool {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae.IsTransient()
	}
	return retry.DefaultClassifier(err)
}
