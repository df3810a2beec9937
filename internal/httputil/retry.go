// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides HTTP helpers shared across stages.
package httputil

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/pdiddy/propextract/internal/retry"
)

// maxErrorBody bounds how much of an error response body is kept.
const maxErrorBody = 512

// StatusError reports a non-2xx HTTP response. It satisfies the
// StatusCode() contract that retry.DefaultClassifier inspects, so 408, 429
// and 5xx responses are retried while everything else fails fast.
type StatusError struct {
	Code int
	URL  string
	Body string
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("HTTP %d from %s: %s", e.Code, e.URL, e.Body)
	}
	return fmt.Sprintf("HTTP %d from %s", e.Code, e.URL)
}

// StatusCode returns the HTTP status code.
func (e *StatusError) StatusCode() int { return e.Code }

// DoWithRetry executes req under the retry policy. A 2xx response is
// returned to the caller, who must close its body. Any other status is
// drained, closed, and turned into a *StatusError; transport errors are
// returned as-is for the policy's classifier to judge.
//
// The request is cloned for every attempt, so requests with a body must
// set GetBody (http.NewRequest does this for common body types).
func DoWithRetry(ctx context.Context, client *http.Client, req *http.Request, policy retry.Policy) (*http.Response, error) {
	if client == nil {
		client = http.DefaultClient
	}
	return retry.Do(ctx, policy, func(ctx context.Context) (*http.Response, error) {
		attemptReq := req.Clone(ctx)
		if req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, fmt.Errorf("rewinding request body: %w", err)
			}
			attemptReq.Body = body
		}

		resp, err := client.Do(attemptReq)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return resp, nil
		}

		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		io.Copy(io.Discard, resp.Body)
		return nil, &StatusError{Code: resp.StatusCode, URL: req.URL.String(), Body: string(body)}
	})
}
