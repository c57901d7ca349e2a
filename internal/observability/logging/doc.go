// Package logging provides structured logging utilities with context propagation.
//
// Key features:
//   - JSON (default) and text output
//   - LOG_LEVEL: debug, info, warn, error
//   - Request ID propagation
//
// Example usage:
//
//	logger := logging.NewLogger()
//	slog.SetDefault(logger)
//
//	func handle(ctx context.Context) {
//	    logging.WithRequestID(ctx, slog.Default()).Info("preview requested")
//	}
package logging
