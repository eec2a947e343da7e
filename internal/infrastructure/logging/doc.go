// Package logging provides structured logging for Gray Logic Fleet.
//
// It wraps log/slog so every component logs with the same handler,
// level filter and default fields (service, version).
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, version)
//	logger.Info("device registered", "serial", serial)
//	logger.Error("store failure", "error", err)
//
// Never log database passwords or broker credentials.
package logging
