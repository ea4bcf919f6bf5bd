package observability

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// handlerCore holds the state shared by an ObservabilityHandler and
// every derived handler returned by WithAttrs/WithGroup: the
// background log writer, its buffer, and its metric instruments.
// WithAttrs/WithGroup only need to carry a different attrs/groups
// list, never a second copy of this state.
type handlerCore struct {
	opts        HandlerOptions
	serviceName string
	textHandler slog.Handler

	logCounter     metric.Int64Counter
	droppedCounter metric.Int64Counter

	buffer chan logEntry
	done   chan struct{}
	wg     sync.WaitGroup
}

// ObservabilityHandler is a slog.Handler that tags every record with
// the active span's trace/span IDs and the service name, counts log
// volume as a metric, and writes formatted output through a
// slog.TextHandler on a background goroutine so Handle never blocks
// on I/O.
type ObservabilityHandler struct {
	core   *handlerCore
	attrs  []slog.Attr
	tracer trace.Tracer
}

type HandlerOptions struct {
	Level       slog.Level
	Writer      io.Writer
	ReplaceAttr func(groups []string, a slog.Attr) slog.Attr
	BufferSize  int
}

type logEntry struct {
	time  time.Time
	level slog.Level
	msg   string
	attrs []slog.Attr
	ctx   context.Context
}

func NewObservabilityHandler(tracer trace.Tracer, meter metric.Meter, serviceName string) (*ObservabilityHandler, error) {
	return NewObservabilityHandlerWithOptions(tracer, meter, serviceName, HandlerOptions{
		Level:      slog.LevelInfo,
		BufferSize: 1000,
	})
}

func NewObservabilityHandlerWithOptions(tracer trace.Tracer, meter metric.Meter, serviceName string, opts HandlerOptions) (*ObservabilityHandler, error) {
	if opts.BufferSize <= 0 {
		opts.BufferSize = 1000
	}
	if opts.Writer == nil {
		opts.Writer = io.Discard
	}

	logCounter, err := meter.Int64Counter(
		"logs_total",
		metric.WithDescription("Total number of log entries"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	droppedCounter, err := meter.Int64Counter(
		"logs_dropped_total",
		metric.WithDescription("Total number of log entries dropped because the write buffer was full"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	core := &handlerCore{
		opts:        opts,
		serviceName: serviceName,
		textHandler: slog.NewTextHandler(opts.Writer, &slog.HandlerOptions{
			Level:       opts.Level,
			ReplaceAttr: opts.ReplaceAttr,
		}),
		logCounter:     logCounter,
		droppedCounter: droppedCounter,
		buffer:         make(chan logEntry, opts.BufferSize),
		done:           make(chan struct{}),
	}

	core.wg.Add(1)
	go core.processLogs()

	return &ObservabilityHandler{core: core, tracer: tracer}, nil
}

func (h *ObservabilityHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.core.opts.Level
}

func (h *ObservabilityHandler) Handle(ctx context.Context, r slog.Record) error {
	if !h.Enabled(ctx, r.Level) {
		return nil
	}

	attrs := make([]slog.Attr, 0, len(h.attrs)+r.NumAttrs())
	attrs = append(attrs, h.attrs...)
	r.Attrs(func(attr slog.Attr) bool {
		attrs = append(attrs, attr)
		return true
	})

	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		spanCtx := span.SpanContext()
		attrs = append(attrs,
			slog.String("trace_id", spanCtx.TraceID().String()),
			slog.String("span_id", spanCtx.SpanID().String()),
		)
	}

	attrs = append(attrs,
		slog.String("service", h.core.serviceName),
		slog.String("source", getSource()),
	)

	entry := logEntry{
		time:  r.Time,
		level: r.Level,
		msg:   r.Message,
		attrs: attrs,
		ctx:   ctx,
	}

	select {
	case h.core.buffer <- entry:
	default:
		// Buffer full, drop the log entry to prevent blocking the caller.
		h.core.droppedCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("service", h.core.serviceName),
		))
	}

	return nil
}

// WithAttrs returns a handler that shares this handler's background
// writer and metrics, carrying the extra attrs forward into every
// record it logs. It never starts a new background goroutine.
func (h *ObservabilityHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	next := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	next = append(next, h.attrs...)
	next = append(next, attrs...)
	return &ObservabilityHandler{core: h.core, attrs: next, tracer: h.tracer}
}

// WithGroup nests the attributes accumulated so far under name; it
// shares the same core as WithAttrs for the same reason.
func (h *ObservabilityHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	grouped := slog.Attr{Key: name, Value: slog.GroupValue(h.attrs...)}
	return &ObservabilityHandler{core: h.core, attrs: []slog.Attr{grouped}, tracer: h.tracer}
}

func (c *handlerCore) processLogs() {
	defer c.wg.Done()

	for {
		select {
		case entry := <-c.buffer:
			c.processLogEntry(entry)
		case <-c.done:
			for {
				select {
				case entry := <-c.buffer:
					c.processLogEntry(entry)
				default:
					return
				}
			}
		}
	}
}

func (c *handlerCore) processLogEntry(entry logEntry) {
	c.logCounter.Add(entry.ctx, 1, metric.WithAttributes(
		attribute.String("level", entry.level.String()),
		attribute.String("service", c.serviceName),
	))

	record := slog.NewRecord(entry.time, entry.level, entry.msg, 0)
	record.AddAttrs(entry.attrs...)
	if err := c.textHandler.Handle(entry.ctx, record); err != nil {
		c.droppedCounter.Add(entry.ctx, 1, metric.WithAttributes(
			attribute.String("service", c.serviceName),
			attribute.String("error", "write_failed"),
		))
	}
}

func (h *ObservabilityHandler) Shutdown(ctx context.Context) error {
	close(h.core.done)

	done := make(chan struct{})
	go func() {
		h.core.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func getSource() string {
	_, file, line, ok := runtime.Caller(4) // Adjust caller depth as needed
	if !ok {
		return "unknown"
	}
	return fmt.Sprintf("%s:%d", file, line)
}
