package retry

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var fast = Options{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Multiplier: 2}

func TestDo_RetriesUntilSuccess(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fast, nil, func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("boom")
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_StopsOnPermanentError(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fast, IsTransientHTTP, func(context.Context) error {
		calls++
		return &StatusError{StatusCode: http.StatusForbidden}
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fast, IsTransientHTTP, func(context.Context) error {
		calls++
		return &StatusError{StatusCode: http.StatusServiceUnavailable}
	})
	assert.EqualError(t, err, "http status 503")
	assert.Equal(t, 3, calls)
}

func TestDo_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	slow := Options{MaxAttempts: 5, InitialDelay: time.Hour, MaxDelay: time.Hour, Multiplier: 2}
	err := Do(ctx, slow, nil, func(context.Context) error { return errors.New("boom") })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIsTransientHTTP(t *testing.T) {
	for code, want := range map[int]bool{
		408: true, 429: true, 500: true, 503: true,
		400: false, 403: false, 404: false,
	} {
		assert.Equal(t, want, IsTransientHTTP(&StatusError{StatusCode: code}), code)
	}
	assert.False(t, IsTransientHTTP(errors.New("plain")))
}

func TestNewStatusErrorReadsRetryAfter(t *testing.T) {
	resp := &http.Response{StatusCode: 429, Status: "429 Too Many Requests", Header: http.Header{"Retry-After": []string{"2"}}}
	se := NewStatusError(resp)
	assert.Equal(t, 2*time.Second, se.RetryAfter)
	assert.Equal(t, "http status 429 Too Many Requests", se.Error())
}
