package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Telemetry provides a unified telemetry interface combining logging, tracing, metrics, and events.
type Telemetry struct {
	Logger  *Logger
	Tracer  *Tracer
	Metrics *Metrics
	Events  *EventPublisher
	Config  *Config
}

// telemetryContextKey is the context key for telemetry instances.
type telemetryContextKey struct{}

// NewTelemetry creates a new telemetry instance from configuration.
func NewTelemetry(cfg *Config) (*Telemetry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Initialize logger
	logger, err := NewLogger(cfg.Logging)
	if err != nil {
		return nil, err
	}

	// Initialize tracer
	tracer, err := NewTracer(cfg.Tracing, cfg.ServiceName, cfg.ServiceVersion, cfg.Environment)
	if err != nil {
		return nil, err
	}

	// Initialize metrics
	metrics, err := NewMetrics(cfg.Metrics)
	if err != nil {
		return nil, err
	}

	// Initialize event publisher
	events, err := NewEventPublisher(cfg.Events)
	if err != nil {
		return nil, err
	}

	return &Telemetry{
		Logger:  logger,
		Tracer:  tracer,
		Metrics: metrics,
		Events:  events,
		Config:  cfg,
	}, nil
}

// WithContext adds the telemetry instance to the context.
func (t *Telemetry) WithContext(ctx context.Context) context.Context {
	ctx = context.WithValue(ctx, telemetryContextKey{}, t)
	ctx = t.Logger.WithContext(ctx)
	return ctx
}

// FromTelemetryContext retrieves the telemetry instance from the context.
// If no telemetry is found, it returns nil.
func FromTelemetryContext(ctx context.Context) *Telemetry {
	if t, ok := ctx.Value(telemetryContextKey{}).(*Telemetry); ok {
		return t
	}
	return nil
}

// Shutdown gracefully shuts down all telemetry components.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	// Shutdown in reverse order of initialization
	if err := t.Events.Shutdown(ctx); err != nil {
		return err
	}

	if err := t.Tracer.Shutdown(ctx); err != nil {
		return err
	}

	// Metrics server is not explicitly shut down here as it may need to continue
	// serving metrics until the very end of the application lifecycle

	return nil
}

// Flush forces all pending telemetry data to be exported.
func (t *Telemetry) Flush(ctx context.Context) error {
	return t.Tracer.ForceFlush(ctx)
}

// StartMetricsServer starts the metrics HTTP server if metrics are enabled.
func (t *Telemetry) StartMetricsServer() error {
	return t.Metrics.StartMetricsServer()
}

// Context Helpers for common instrumentation patterns

// InstrumentedContext carries the context, span, logger, and start time of an
// instrumented operation.
type InstrumentedContext struct {
	Ctx     context.Context
	Span    trace.Span
	Logger  *Logger
	Started time.Time
}

// StartOperation begins an instrumented operation with logging, tracing, and timing.
func StartOperation(ctx context.Context, operation string, attrs ...attribute.KeyValue) *InstrumentedContext {
	tel := FromTelemetryContext(ctx)
	if tel == nil {
		return &InstrumentedContext{
			Ctx:     ctx,
			Logger:  FromContext(ctx),
			Started: time.Now(),
		}
	}

	// Start trace span
	spanCtx, span := tel.Tracer.StartSpan(ctx, operation, attrs...)

	// Create logger with operation field
	logger := tel.Logger.WithField("operation", operation)

	// Add trace context to logger if available
	if span.SpanContext().IsValid() {
		logger = logger.WithFields(map[string]interface{}{
			"trace_id": span.SpanContext().TraceID().String(),
			"span_id":  span.SpanContext().SpanID().String(),
		})
	}

	return &InstrumentedContext{
		Ctx:     spanCtx,
		Span:    span,
		Logger:  logger,
		Started: time.Now(),
	}
}

// End finishes the instrumented operation, recording success or failure.
func (ic *InstrumentedContext) End(err error) {
	if ic.Span != nil {
		if err != nil {
			RecordError(ic.Span, err)
		} else {
			RecordSuccess(ic.Span)
		}
		ic.Span.End()
	}
}

// Duration returns the elapsed time since the operation started.
func (ic *InstrumentedContext) Duration() time.Duration {
	return time.Since(ic.Started)
}

// WithEvaluationContext creates a context enriched with evaluation-specific telemetry.
func WithEvaluationContext(ctx context.Context, evaluationID, source, kind string) context.Context {
	tel := FromTelemetryContext(ctx)
	if tel == nil {
		return ctx
	}

	// Start evaluation span
	spanCtx, span := tel.Tracer.StartEvaluateSpan(ctx, kind, source)

	// Create evaluation-specific logger
	logger := tel.Logger.WithEvaluationID(evaluationID).WithSource(source)
	spanCtx = logger.WithContext(spanCtx)

	// Publish evaluation started event
	_ = tel.Events.PublishEvalStarted(evaluationID, source, kind)

	// Store the span and start time in context for later retrieval
	spanCtx = context.WithValue(spanCtx, evalSpanKey{}, span)
	spanCtx = context.WithValue(spanCtx, evalStartKey{}, time.Now())

	return spanCtx
}

// evalSpanKey is the context key for evaluation spans.
type evalSpanKey struct{}

// evalStartKey is the context key for evaluation start times.
type evalStartKey struct{}

// EndEvaluationContext completes the evaluation context, recording metrics and events.
func EndEvaluationContext(ctx context.Context, evaluationID, source, kind, status string, err error) {
	tel := FromTelemetryContext(ctx)
	if tel == nil {
		return
	}

	// Get the evaluation span from context
	if span, ok := ctx.Value(evalSpanKey{}).(trace.Span); ok {
		span.SetAttributes(AttrEvalStatus.String(status))
		if err != nil {
			RecordError(span, err)
		} else {
			RecordSuccess(span)
		}
		span.End()
	}

	// Get the start time from context
	var duration time.Duration
	if started, ok := ctx.Value(evalStartKey{}).(time.Time); ok {
		duration = time.Since(started)
	}

	// Record metrics
	tel.Metrics.RecordEvaluation(kind, status, duration)

	// Publish events
	if err != nil {
		_ = tel.Events.PublishEvalFailed(evaluationID, source, err.Error())
	} else {
		_ = tel.Events.PublishEvalCompleted(evaluationID, source, duration)
	}
}

// RecordNativeOperation records a native extension invocation with metrics and tracing.
func RecordNativeOperation(ctx context.Context, name string, fn func() error) error {
	tel := FromTelemetryContext(ctx)

	// Start span
	var span trace.Span
	if tel != nil {
		ctx, span = tel.Tracer.StartNativeSpan(ctx, name)
		defer span.End()
	}

	// Execute operation
	err := fn()

	// Record metrics
	if tel != nil {
		status := "ok"
		if err != nil {
			status = "error"
			RecordError(span, err)
		} else {
			RecordSuccess(span)
		}
		tel.Metrics.RecordNativeCall(name, status)
	}

	return err
}

// RecordPolicyCheck records a policy check outcome with metrics. The severity
// of every violation is counted individually; an empty slice counts as a pass.
func RecordPolicyCheck(ctx context.Context, source string, severities []string) {
	tel := FromTelemetryContext(ctx)
	if tel == nil {
		return
	}

	decision := "pass"
	if len(severities) > 0 {
		decision = "fail"
	}
	tel.Metrics.RecordPolicyCheck(decision)

	for _, severity := range severities {
		tel.Metrics.RecordPolicyViolation(severity)
	}

	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		span.SetAttributes(
			AttrEvalSource.String(source),
			attribute.Int("policy.violations", len(severities)),
		)
	}
}
