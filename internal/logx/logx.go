package logx

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// InitFromEnv configures zerolog using env vars.
// - LOG_LEVEL  : trace|debug|info|warn|error (default: info)
// - LOG_FORMAT : json|console                (default: json)
func InitFromEnv() {
	InitFromEnvTo(os.Stdout)
}

// InitFromEnvTo is InitFromEnv writing to w. CLIs whose stdout is data log to stderr.
func InitFromEnvTo(w io.Writer) {
	Init(w, getenv("LOG_LEVEL", "info"), getenv("LOG_FORMAT", "json"))
}

// Init configures the global logger to write to w.
func Init(w io.Writer, level, format string) {
	// Always use UTC timestamps in RFC3339.
	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.TimestampFunc = func() time.Time { return time.Now().UTC() }

	zerolog.SetGlobalLevel(ParseLevel(level))

	var logger zerolog.Logger
	if strings.EqualFold(strings.TrimSpace(format), "console") {
		cw := zerolog.NewConsoleWriter(func(cw *zerolog.ConsoleWriter) {
			cw.Out = w
			cw.TimeFormat = time.RFC3339
		})
		logger = zerolog.New(cw).With().Timestamp().Logger()
	} else {
		logger = zerolog.New(w).With().Timestamp().Logger()
	}
	log.Logger = logger
	zerolog.DefaultContextLogger = &log.Logger
}

// ParseLevel maps a level name to a zerolog level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// RequestFields identifies one orchestrator request in log lines.
type RequestFields struct {
	RequestID         string
	StackID           string
	LogicalResourceID string
	RequestType       string
	ResourceType      string
}

// ForRequest attaches a child logger tagged with the request identifiers to ctx.
// Retrieve it with zerolog.Ctx(ctx).
func ForRequest(ctx context.Context, f RequestFields) context.Context {
	l := log.Logger.With().
		Str("request_id", f.RequestID).
		Str("stack_id", f.StackID).
		Str("logical_resource_id", f.LogicalResourceID).
		Str("request_type", f.RequestType).
		Str("resource_type", f.ResourceType).
		Logger()
	return l.WithContext(ctx)
}

// getenv returns the env var value if set and non-empty, otherwise def.
func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && strings.TrimSpace(v) != "" {
		return v
	}
	return def
}
