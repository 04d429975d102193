package logger

import (
	"context"
	"fmt"
	"os"
	"runtime/debug"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ----- Public wire types -----

// ErrorObject is emitted only for error logs.
type ErrorObject struct {
	Msg   string `json:"msg"`
	Stack string `json:"stack"`
}

// ----- Logger -----

// Logger writes single-line JSON entries through a zap core. The field layout is:
//
//	timestamp, level, service, hostname, action, message, request_id, connection_id, details, error
type Logger struct {
	service string
	z       *zap.Logger
}

// New creates a structured logger for the given service that writes to stdout.
func New(service string) *Logger {
	encCfg := zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		MessageKey:     "message",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     utcISO,
		EncodeDuration: zapcore.MillisDurationEncoder,
	}
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.Lock(os.Stdout), zapcore.DebugLevel)
	return NewWithCore(service, core)
}

// NewWithCore builds a Logger on top of an arbitrary zap core (tests use zaptest/observer).
func NewWithCore(service string, core zapcore.Core) *Logger {
	hn, err := os.Hostname()
	if err != nil || strings.TrimSpace(hn) == "" {
		hn = "unknown-hostname"
	}

	if strings.TrimSpace(service) == "" {
		service = "unknown-service"
	}

	z := zap.New(core).With(zap.String("service", service), zap.String("hostname", hn))
	return &Logger{service: service, z: z}
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{service: "nop", z: zap.NewNop()}
}

// Sync flushes buffered entries.
func (l *Logger) Sync() error {
	return l.z.Sync()
}

// Debug writes a DEBUG line with optional details.
func (l *Logger) Debug(ctx context.Context, action, msg string, details any) {
	l.z.Debug(strings.TrimSpace(msg), l.fields(ctx, action, details)...)
}

// Info writes an INFO line with optional details.
func (l *Logger) Info(ctx context.Context, action, msg string, details any) {
	l.z.Info(strings.TrimSpace(msg), l.fields(ctx, action, details)...)
}

// Warn writes a WARN line with optional details.
func (l *Logger) Warn(ctx context.Context, action, msg string, details any) {
	l.z.Warn(strings.TrimSpace(msg), l.fields(ctx, action, details)...)
}

// Error writes an ERROR line and attaches an error stack trace.
func (l *Logger) Error(ctx context.Context, action, msg string, err error, details any) {
	if err == nil {
		err = fmt.Errorf("unknown error")
	}

	fields := append(l.fields(ctx, action, details), zap.Any("error", ErrorObject{
		Msg:   strings.TrimSpace(err.Error()),
		Stack: string(debug.Stack()),
	}))
	l.z.Error(strings.TrimSpace(msg), fields...)
}

func (l *Logger) fields(ctx context.Context, action string, details any) []zap.Field {
	fields := make([]zap.Field, 0, 4)
	fields = append(fields, zap.String("action", safeAction(action)))
	if id := requestID(ctx); id != "" {
		fields = append(fields, zap.String("request_id", id))
	}
	if id := connectionID(ctx); id != "" {
		fields = append(fields, zap.String("connection_id", id))
	}
	if details != nil {
		fields = append(fields, zap.Any("details", details))
	}
	return fields
}

// ------------ Context helpers -------------

type ctxKey string

const (
	ctxKeyRequestID    ctxKey = "fleet_request_id"
	ctxKeyConnectionID ctxKey = "fleet_connection_id"
)

// WithRequestID returns a new context carrying request_id.
func (l *Logger) WithRequestID(ctx context.Context, reqID string) context.Context {
	if strings.TrimSpace(reqID) == "" {
		return ctx
	}
	return context.WithValue(ctx, ctxKeyRequestID, reqID)
}

// WithConnectionID returns a new context carrying connection_id.
func (l *Logger) WithConnectionID(ctx context.Context, connID string) context.Context {
	if strings.TrimSpace(connID) == "" {
		return ctx
	}
	return context.WithValue(ctx, ctxKeyConnectionID, connID)
}

// requestID extracts request_id from ctx (if any).
func requestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if s, ok := ctx.Value(ctxKeyRequestID).(string); ok {
		return s
	}
	return ""
}

// connectionID extracts connection_id from ctx (if any).
func connectionID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if s, ok := ctx.Value(ctxKeyConnectionID).(string); ok {
		return s
	}
	return ""
}

// ----- Small utilities -----

func utcISO(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(t.UTC().Format(time.RFC3339))
}

func safeAction(a string) string {
	a = strings.TrimSpace(a)
	if a == "" {
		return "unspecified"
	}
	return a
}
