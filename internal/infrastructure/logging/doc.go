// Package logging provides structured logging for the uplink switcher.
//
// It wraps log/slog so every entry carries the service name and build
// version, with JSON output for production and text output for development.
//
// Configuration (config.yaml):
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Usage:
//
//	logger := logging.New(cfg.Logging, version)
//	logger.Info("session started", "user", "streamer")
//
// Never log broadcasting software passwords or broker credentials.
package logging
