package logx

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"trace":   zerolog.TraceLevel,
		"DEBUG":   zerolog.DebugLevel,
		" warn ":  zerolog.WarnLevel,
		"warning": zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"info":    zerolog.InfoLevel,
		"bogus":   zerolog.InfoLevel,
		"":        zerolog.InfoLevel,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestForRequestTagsLines(t *testing.T) {
	var buf bytes.Buffer
	Init(&buf, "info", "json")
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.InfoLevel) })

	ctx := ForRequest(context.Background(), RequestFields{
		RequestID:         "rid-1",
		StackID:           "stack",
		LogicalResourceID: "GithubOidc",
		RequestType:       "Create",
		ResourceType:      "Custom::OIDCProvider",
	})
	zerolog.Ctx(ctx).Info().Str("action", "test").Msg("hello")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "rid-1", line["request_id"])
	assert.Equal(t, "GithubOidc", line["logical_resource_id"])
	assert.Equal(t, "Custom::OIDCProvider", line["resource_type"])
	assert.Equal(t, "test", line["action"])
	assert.Contains(t, line, "time")
}

func TestInitHonoursLevel(t *testing.T) {
	var buf bytes.Buffer
	Init(&buf, "error", "json")
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.InfoLevel) })

	zerolog.Ctx(ForRequest(context.Background(), RequestFields{})).Info().Msg("dropped")
	assert.Zero(t, buf.Len())
}
