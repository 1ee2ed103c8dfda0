// Package logging provides the minimal Logger interface used across Smart Info
// and adapters over log/slog.
//
//   - Logger: Debug/Info/Warn/Error with slog-style key/value pairs
//   - SlogAdapter: wraps *slog.Logger
//   - NoOpLogger: silent default for tests and unconfigured components
//   - StructuredLogger: component/session scoped logger with domain helpers
//
// Usage:
//
//	logger := logging.NewStructuredLogger(logging.LogLevelInfo, "json", false)
//	orch := orchestrator.New(oracle, registry, func(o *orchestrator.Options) {
//		o.Logger = logger.WithComponent("orchestrator")
//	})
package logging
