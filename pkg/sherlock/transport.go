package sherlock

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Doer issues a single HTTP request. *http.Client satisfies it; tests
// substitute fakes to exercise the protocol without a network.
type Doer interface {
	Do(*http.Request) (*http.Response, error)
}

// maxResponseBody caps how much of a registrar response is read.
const maxResponseBody = 1 << 20

// transport is the shared request pipeline: request IDs, optional
// client-side rate limiting, body caps, debug logging, and metrics.
// Connectivity failures come back wrapped in ErrTransport.
type transport struct {
	doer    Doer
	limiter *rate.Limiter
	logger  *zap.Logger
	metrics *clientMetrics
}

// send builds a JSON request and executes it, returning the status and
// the (capped) response body. auth, when non-empty, becomes the
// Authorization header; bearerAuth and l402Auth build the two schemes.
func (t *transport) send(ctx context.Context, method, url string, body any, auth string) (int, []byte, error) {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("marshal request: %w", err)
		}
		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, rd)
	if err != nil {
		return 0, nil, fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}

	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			return 0, nil, fmt.Errorf("%w: %v", ErrTransport, err)
		}
	}

	resp, err := t.doer.Do(req)
	if err != nil {
		t.metrics.observeRequest(0)
		return 0, nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("%w: read response: %v", ErrTransport, err)
	}

	t.logger.Debug("registrar call",
		zap.String("method", method),
		zap.String("url", url),
		zap.Int("status", resp.StatusCode),
	)
	t.metrics.observeRequest(resp.StatusCode)
	return resp.StatusCode, respBody, nil
}

// bearerAuth builds the Authorization value for general API calls.
func bearerAuth(tok AccessToken) string {
	return "Bearer " + string(tok)
}

// l402Auth builds the Authorization value for payment-request calls,
// which use the payment context token under the L402 scheme rather
// than the bearer access token.
func l402Auth(tok PaymentContextToken) string {
	return "L402 " + string(tok)
}
