// Package telemetry provides comprehensive observability instrumentation for Gonnet.
//
// The telemetry package integrates structured logging (zerolog), distributed tracing
// (OpenTelemetry), metrics (Prometheus), and event publishing into a unified system
// for monitoring and debugging Gonnet evaluations.
//
// # Architecture
//
// The telemetry system is built on four pillars:
//
//  1. Structured Logging - Context-aware logging with zerolog
//  2. Distributed Tracing - OpenTelemetry traces with multiple exporters
//  3. Metrics Collection - Prometheus metrics for operational insights
//  4. Event Publishing - Async event system for audit and notifications
//
// # Usage
//
// Initialize telemetry at application startup:
//
//	cfg := telemetry.DefaultConfig()
//	cfg.ServiceName = "gonnet"
//	cfg.ServiceVersion = "1.0.0"
//
//	tel, err := telemetry.NewTelemetry(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer tel.Shutdown(context.Background())
//
//	// Start metrics server
//	if err := tel.StartMetricsServer(); err != nil {
//	    log.Fatal(err)
//	}
//
// Add telemetry to context:
//
//	ctx = tel.WithContext(ctx)
//
// # Structured Logging
//
// The logger provides component-specific logging with automatic context propagation:
//
//	logger := tel.Logger.NewComponentLogger("vm")
//	logger = logger.WithEvaluationID("eval-123").WithSource("config.gsn")
//	logger.Info("Starting evaluation")
//	logger.WithError(err).Error("Evaluation failed")
//
// Log levels: trace, debug, info, warn, error, fatal
//
// # Distributed Tracing
//
// Tracing provides visibility into evaluation flow and performance:
//
//	ctx, span := tel.Tracer.Start(ctx, "operation.name")
//	defer span.End()
//
//	// Add attributes
//	span.SetAttributes(
//	    attribute.String("eval.source", source),
//	    attribute.String("eval.kind", "file"),
//	)
//
//	// Record events
//	span.AddEvent("manifest.complete")
//
//	// Record errors
//	if err != nil {
//	    telemetry.RecordError(span, err)
//	}
//
// Supported exporters: OTLP (production), Stdout (development)
//
// # Metrics
//
// Prometheus metrics track evaluator behavior and performance:
//
//	// Record an evaluation
//	tel.Metrics.RecordEvaluation("file", "ok", duration)
//	tel.Metrics.RecordManifestBytes(len(output))
//
//	// Record import resolutions
//	tel.Metrics.RecordImportResolved("path", "ok")
//	tel.Metrics.RecordImportCacheHit()
//
//	// Record native extension calls
//	tel.Metrics.RecordNativeCall("lookup", "ok")
//
//	// Record policy outcomes
//	tel.Metrics.RecordPolicyCheck("fail")
//	tel.Metrics.RecordPolicyViolation("error")
//
// Metrics are exposed via HTTP at /metrics (default: :9090/metrics)
//
// # Event Publishing
//
// The event system provides async publishing with buffering and filtering:
//
//	// Publish events
//	tel.Events.PublishEvalStarted(evalID, source, "file")
//	tel.Events.PublishEvalCompleted(evalID, source, duration)
//	tel.Events.PublishPolicyViolation(source, "no-latest-tag", "error", "image uses :latest")
//
//	// Subscribe to events
//	tel.Events.Subscribe(func(event telemetry.Event) {
//	    fmt.Printf("Event: %s - %s\n", event.Type, event.Message)
//	}, telemetry.FilterByLevel("warning"))
//
// Event filters: FilterByLevel, FilterByType, FilterByEvaluationID, FilterBySourceFile
//
// # Context Helpers
//
// High-level helpers simplify common instrumentation patterns:
//
//	// Instrument an operation
//	ic := telemetry.StartOperation(ctx, "workspace.load",
//	    attribute.String("workspace.root", root))
//	defer ic.End(err)
//
//	ic.Logger.Info("Loading workspace")
//
//	// Evaluation context
//	ctx = telemetry.WithEvaluationContext(ctx, evalID, source, "file")
//	defer telemetry.EndEvaluationContext(ctx, evalID, source, "file", status, err)
//
//	// Native extension invocation
//	err := telemetry.RecordNativeOperation(ctx, "lookup", func() error {
//	    return invokeNative(ctx, args)
//	})
//
// # Configuration
//
// The package provides pre-configured setups for different environments:
//
//	// Development (verbose logging, stdout traces, full sampling)
//	cfg := telemetry.DevelopmentConfig()
//
//	// Production (JSON logs, OTLP traces, 10% sampling)
//	cfg := telemetry.ProductionConfig()
//
//	// Custom configuration
//	cfg := &telemetry.Config{
//	    ServiceName: "gonnet",
//	    ServiceVersion: "1.0.0",
//	    Environment: "staging",
//	    Logging: telemetry.LoggingConfig{
//	        Level: "info",
//	        Format: "json",
//	    },
//	    Tracing: telemetry.TracingConfig{
//	        Enabled: true,
//	        Exporter: "otlp",
//	        Endpoint: "otel-collector:4317",
//	        SamplingRate: 0.1,
//	    },
//	    Metrics: telemetry.MetricsConfig{
//	        Enabled: true,
//	        ListenAddress: ":9090",
//	    },
//	}
//
// # Performance Considerations
//
// The telemetry system is designed for minimal overhead:
//
//   - Structured logging uses zerolog's zero-allocation approach
//   - Tracing uses sampling to reduce data volume in production
//   - Metrics use Prometheus's efficient storage format
//   - Events are buffered and batched to reduce I/O
//   - All operations are non-blocking when possible
//
// # Graceful Shutdown
//
// Always shut down telemetry gracefully to flush pending data:
//
//	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
//	defer cancel()
//
//	if err := tel.Shutdown(ctx); err != nil {
//	    log.Printf("Telemetry shutdown error: %v", err)
//	}
//
// This ensures:
//   - All buffered events are published
//   - All pending traces are exported
//   - Metrics are finalized
//
// # Exporters
//
// Tracing supports multiple exporters:
//
//   - "stdout": Print traces to stdout (development)
//   - "otlp": Export via OTLP/gRPC (production, works with collectors)
//   - "none": Generate traces but don't export (testing)
//
// Configure via TracingConfig.Exporter and TracingConfig.Endpoint
//
// # Common Metrics
//
// Key metrics exposed:
//
//   - gonnet_evaluations_total{kind,status}
//   - gonnet_evaluation_duration_seconds{kind}
//   - gonnet_manifest_bytes
//   - gonnet_imports_resolved_total{resolver,result}
//   - gonnet_import_cache_hits_total
//   - gonnet_native_calls_total{name,status}
//   - gonnet_policy_checks_total{decision}
//   - gonnet_policy_violations_total{severity}
//   - gonnet_watch_reloads_total{status}
//   - gonnet_active_watches
//
// # Best Practices
//
//  1. Always use context to propagate telemetry
//  2. Use component-specific loggers for clarity
//  3. Add meaningful attributes to spans
//  4. Record both success and failure metrics
//  5. Use appropriate log levels
//  6. Filter events to avoid overwhelming subscribers
//  7. Keep logs on stderr so manifested output stays clean on stdout
//  8. Configure sampling for high-volume systems
//  9. Always call defer span.End() after starting a span
//  10. Shut down gracefully to avoid data loss
//
// # Security Considerations
//
//   - Never log sensitive data (credentials, keys, tokens)
//   - External variables may carry secrets; log their names, not their values
//   - Use secure connections (TLS) for trace exporters in production
//   - Limit metrics endpoint access via network policies
//   - Consider event data before adding to audit logs
package telemetry
