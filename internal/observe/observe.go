// Package observe wires structured logging and tracing.
package observe

import (
	"context"
	"io"

	"github.com/felixgeelhaar/bolt/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/felixgeelhaar/brainrot/internal/events"
)

var tracer = otel.Tracer("brainrot")

// Observer handles logging and tracing
type Observer struct {
	log *bolt.Logger
}

// New creates a new Observer with console output.
// If verbose is false, only warnings and errors are shown.
func New(out io.Writer, verbose bool) *Observer {
	handler := bolt.NewConsoleHandler(out)
	l := bolt.New(handler)

	if !verbose {
		l.SetLevel(bolt.WARN)
	}

	return &Observer{
		log: l,
	}
}

// NewJSON creates a new Observer with JSON output.
// If verbose is false, only warnings and errors are shown.
func NewJSON(out io.Writer, verbose bool) *Observer {
	handler := bolt.NewJSONHandler(out)
	l := bolt.New(handler)

	if !verbose {
		l.SetLevel(bolt.WARN)
	}

	return &Observer{
		log: l,
	}
}

// Nop returns an Observer that discards everything.
func Nop() *Observer {
	return NewJSON(io.Discard, false)
}

// Log returns the underlying logger
func (o *Observer) Log() *bolt.Logger {
	return o.log
}

// StartSpan starts a new OTel span
func (o *Observer) StartSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return tracer.Start(ctx, name)
}

// EndSpan marks span failed when err is non-nil and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// Watch logs every event published on bus: failures at WARN, the rest at
// DEBUG.
func (o *Observer) Watch(bus *events.Bus) {
	bus.SubscribeAll(func(e events.Event) {
		entry := o.log.Debug()
		if e.Type == events.EventIndexFailed || e.Type == events.EventGuardViolation {
			entry = o.log.Warn()
		}
		entry = entry.Str("event", string(e.Type))
		if e.Key != "" {
			entry = entry.Str("key", e.Key)
		}
		if e.RecordID != 0 {
			entry = entry.Int("record_id", int(e.RecordID))
		}
		if msg, ok := e.Data["error"].(string); ok {
			entry = entry.Str("error", msg)
		}
		entry.Msg("event")
	})
}

// Close ensures any buffered logs or traces are flushed (placeholder)
func (o *Observer) Close() error {
	return nil
}
