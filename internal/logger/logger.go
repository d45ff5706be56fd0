// Package logger configures the process-wide zerolog logger and carries
// request IDs through contexts.
package logger

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type contextKey string

const requestIDKey contextKey = "request_id"

const (
	milliTimeFormat = "2006-01-02T15:04:05.000Z07:00"
	callerWidth     = 30
	maxBodyLog      = 1000
)

// settings is the environment-driven logger configuration.
type settings struct {
	level zerolog.Level
	json  bool   // LOG_FORMAT=json
	file  string // LOG_FILE, teed alongside the main output
	dev   bool   // colour console output
}

func settingsFromEnv() settings {
	s := settings{
		level: zerolog.InfoLevel,
		json:  os.Getenv("LOG_FORMAT") == "json",
		file:  os.Getenv("LOG_FILE"),
	}
	if lvl, err := zerolog.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil && lvl != zerolog.NoLevel {
		s.level = lvl
	}
	for _, k := range []string{"DEV", "DEV_MODE", "DEVELOPMENT"} {
		if v := os.Getenv(k); v == "true" || v == "1" {
			s.dev = true
		}
	}
	return s
}

// Init initializes the global logger, writing to stdout.
func Init() {
	InitTo(os.Stdout)
}

// InitTo initializes the global logger from the environment, writing to out.
// agentd logs to stderr because its stdout carries the worker protocol.
func InitTo(out io.Writer) {
	s := settingsFromEnv()
	zerolog.TimeFieldFormat = milliTimeFormat
	zerolog.TimestampFunc = func() time.Time { return time.Now().UTC() }
	zerolog.CallerMarshalFunc = fixedWidthCaller
	zerolog.SetGlobalLevel(s.level)

	output := out
	if !s.json {
		output = zerolog.ConsoleWriter{Out: out, TimeFormat: milliTimeFormat, NoColor: !s.dev}
	}
	if s.file != "" {
		if f, err := os.OpenFile(s.file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644); err == nil {
			output = io.MultiWriter(output, f)
		}
	}
	log.Logger = zerolog.New(output).With().Timestamp().Caller().Logger()

	log.Info().
		Str("level", s.level.String()).
		Bool("json", s.json).
		Bool("dev", s.dev).
		Msg("Logger initialized")
}

// fixedWidthCaller pads or trims file:line so console columns line up.
func fixedWidthCaller(_ uintptr, file string, line int) string {
	path := fmt.Sprintf("%s:%d", filepath.Base(file), line)
	if len(path) >= callerWidth {
		return path[len(path)-callerWidth:]
	}
	return path + strings.Repeat(" ", callerWidth-len(path))
}

// Get returns the global logger instance.
func Get() zerolog.Logger {
	return log.Logger
}

// NewRequestID returns a random 8-character alphanumeric ID.
func NewRequestID() string {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("req%05d", time.Now().UnixNano()%100000)
	}
	for i := range b {
		b[i] = charset[int(b[i])%len(charset)]
	}
	return string(b)
}

// WithRequestID returns a new context with the given request ID stored.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the request ID from context, or empty string.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// ForRequest returns the global logger, tagged with the request ID if ctx
// carries one.
func ForRequest(ctx context.Context) zerolog.Logger {
	id := RequestIDFromContext(ctx)
	if id == "" {
		return log.Logger
	}
	return log.Logger.With().Str("requestId", id).Logger()
}

// ForMatch returns a logger tagged with the match ID and, when present, the
// request ID from ctx.
func ForMatch(ctx context.Context, matchID string) zerolog.Logger {
	l := ForRequest(ctx)
	return l.With().Str("matchId", matchID).Logger()
}

// LogRequest logs a request body at debug level.
func LogRequest(l zerolog.Logger, body []byte) { logBody(l, "requestBody", "Request body", body) }

// LogResponse logs a response body at debug level.
func LogResponse(l zerolog.Logger, body []byte) { logBody(l, "responseBody", "Response body", body) }

func logBody(l zerolog.Logger, field, msg string, body []byte) {
	if len(body) == 0 {
		return
	}
	ev := l.Debug()
	if len(body) > maxBodyLog {
		body = body[:maxBodyLog]
		ev = ev.Bool("truncated", true)
	}
	ev.Str(field, string(body)).Msg(msg)
}
