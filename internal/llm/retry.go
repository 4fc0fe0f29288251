package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"strings"
	"time"
)

const retryBaseDelay = 300 * time.Millisecond

type retryingClient struct {
	base    Client
	retries int
}

// NewRetryingClient wraps base with transient-failure retries. Each retry
// waits retryBaseDelay before reissuing the request. Non-transient errors
// pass through immediately.
func NewRetryingClient(base Client, retries int) Client {
	if base == nil {
		return nil
	}
	if retries < 0 {
		retries = 0
	}
	return retryingClient{base: base, retries: retries}
}

func (r retryingClient) AnalyzeChange(ctx context.Context, input Input) (json.RawMessage, error) {
	resp, err := r.base.AnalyzeChange(ctx, input)
	for attempt := 0; attempt < r.retries && err != nil && IsTransient(err); attempt++ {
		select {
		case <-time.After(retryBaseDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		resp, err = r.base.AnalyzeChange(ctx, input)
	}
	return resp, err
}

// IsTransient reports whether err looks like a temporary provider failure
// worth one more attempt: timeouts, connection drops, 429s and 5xx errors.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "status code: 429") || strings.Contains(msg, "rate limit") {
		return true
	}
	if strings.Contains(msg, "status code: 5") || strings.Contains(msg, "server_error") {
		return true
	}
	if strings.Contains(msg, "timeout") || strings.Contains(msg, "client.timeout") {
		return true
	}
	if strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection closed") ||
		strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "tls handshake timeout") ||
		strings.Contains(msg, "eof") {
		return true
	}

	return false
}
