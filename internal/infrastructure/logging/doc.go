// Package logging provides structured logging for the Roku service.
//
// It wraps log/slog so every component logs with the same default fields
// (service=graylogic-roku, version) in JSON or text form.
//
// Logging is configured via the logging section of config.yaml:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Usage:
//
//	logger := logging.New(cfg.Logging, version)
//	bridgeLogger := logger.Component("roku-bridge")
//	bridgeLogger.Info("device set up", "host", "192.168.1.160")
//
// Never log secrets, tokens or passwords.
package logging
