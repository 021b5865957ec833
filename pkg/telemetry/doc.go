// Package telemetry provides installation hooks that export Prometheus
// metrics and OpenTelemetry traces.
//
// Both implementations satisfy api.Hooks and are meant to be combined with
// other hooks through api.NewCompositeHooks:
//
//	metrics, err := telemetry.NewMetricsHooks(prometheus.DefaultRegisterer, "appinstall")
//	...
//	hooks := api.NewCompositeHooks(
//		api.NewLoggingHooks(logger),
//		metrics,
//		telemetry.NewTracingHooks(otel.Tracer("appinstall")),
//	)
//
// Neither ever returns an error from a callback, so they cannot abort a run.
package telemetry
