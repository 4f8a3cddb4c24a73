package reconcile

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/Chapsvision-dev/repo-backup-provisioner/internal/metrics"
	"github.com/Chapsvision-dev/repo-backup-provisioner/internal/retry"
)

// Signaler reports a result for a request and returns what was reported.
type Signaler interface {
	Signal(ctx context.Context, req Request, res Result) (Result, error)
}

// DirectSignaler hands the result straight back to the caller. It is used for
// manual invocations outside the orchestrator.
type DirectSignaler struct{}

func (DirectSignaler) Signal(ctx context.Context, req Request, res Result) (Result, error) {
	zerolog.Ctx(ctx).Info().
		Str("action", "signal_direct").
		Str("status", string(res.Status)).
		Str("physical_resource_id", res.PhysicalResourceID).
		Msg("result returned to caller")
	return res, nil
}

// CallbackSignaler PUTs the result envelope to the request's ResponseURL.
type CallbackSignaler struct {
	client  *http.Client
	timeout time.Duration
	ro      retry.Options
}

// CallbackOption configures a CallbackSignaler.
type CallbackOption func(*CallbackSignaler)

// WithHTTPClient replaces the HTTP client used for delivery.
func WithHTTPClient(c *http.Client) CallbackOption {
	return func(s *CallbackSignaler) { s.client = c }
}

// WithAttemptTimeout bounds each delivery attempt.
func WithAttemptTimeout(d time.Duration) CallbackOption {
	return func(s *CallbackSignaler) { s.timeout = d }
}

// WithRetry sets the backoff used for transient delivery failures.
func WithRetry(ro retry.Options) CallbackOption {
	return func(s *CallbackSignaler) { s.ro = ro }
}

// NewCallbackSignaler returns a signaler delivering over HTTP.
func NewCallbackSignaler(opts ...CallbackOption) *CallbackSignaler {
	s := &CallbackSignaler{
		client:  &http.Client{},
		timeout: 30 * time.Second,
		ro:      retry.Default,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Signal delivers res. Timeouts, 408, 429 and 5xx responses are retried; the
// last error is returned classified as KindDelivery.
func (s *CallbackSignaler) Signal(ctx context.Context, req Request, res Result) (Result, error) {
	logger := zerolog.Ctx(ctx)
	if req.ResponseURL == "" {
		metrics.CallbackFailed()
		return res, E(KindDelivery, "signal", errors.New("request has no ResponseURL"))
	}
	body, err := res.Encode()
	if err != nil {
		return res, E(KindInternal, "encode result", err)
	}

	target := redact(req.ResponseURL)
	start := time.Now()
	attempt := 0
	putOnce := func(ctx context.Context) error {
		attempt++
		logger.Debug().
			Str("action", "signal_callback").
			Str("target", target).
			Int("attempt", attempt).
			Msg("starting attempt")

		if err := s.put(ctx, req.ResponseURL, body); err != nil {
			logger.Debug().Err(err).Str("action", "signal_callback").Str("target", target).
				Int("attempt", attempt).Msg("attempt failed")
			return err
		}
		return nil
	}
	if err := retry.Do(ctx, s.ro, retry.IsTransientHTTP, putOnce); err != nil {
		metrics.CallbackFailed()
		logger.Error().Err(err).
			Str("action", "signal_callback").
			Str("target", target).
			Int("attempts", attempt).
			Dur("elapsed_ms", time.Since(start)).
			Msg("result delivery failed")
		return res, E(KindDelivery, "signal", err)
	}

	logger.Info().
		Str("action", "signal_callback").
		Str("target", target).
		Str("status", string(res.Status)).
		Int("attempts", attempt).
		Dur("elapsed_ms", time.Since(start)).
		Msg("result delivered")
	return res, nil
}

func (s *CallbackSignaler) put(ctx context.Context, rawURL string, body []byte) error {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPut, rawURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	// Pre-signed callback URLs are signed for an empty content type.
	httpReq.Header["Content-Type"] = []string{""}
	httpReq.ContentLength = int64(len(body))

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("callback rejected: %w", retry.NewStatusError(resp))
	}
	return nil
}

// redact drops the query string, which carries the pre-signed credentials.
func redact(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<unparsable>"
	}
	u.RawQuery = ""
	u.User = nil
	return u.String()
}
