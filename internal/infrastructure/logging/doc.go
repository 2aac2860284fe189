// Package logging provides structured logging for plantnode.
//
// It wraps log/slog so every task of the duty cycle logs with the same
// default fields (service, version) and each component can derive its own
// logger with With("component", ...).
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr, discard
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Info("cycle started", "boot_count", 4)
//
// Never log the broker password or the InfluxDB token.
package logging
