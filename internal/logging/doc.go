// Package logging provides structured logging with per-module log levels.
//
// Loggers are plain *slog.Logger values tagged with a "module" attribute:
//
//	logging.Initialize(logging.Config{
//		Level:  "info",
//		Format: "text",
//		Modules: map[string]string{
//			"lifecycle": "debug",
//			"encoder":   "warn",
//		},
//	})
//
//	logger := logging.GetLogger("lifecycle")
//	logger.Info("Device attached", "device", dev.Name)
//
// Output is routed automatically: stdout when a terminal, pipe or file is
// connected, the systemd journal when journald is reachable, or both.
// Every record is also kept in a ring buffer that backs the /api/logs
// endpoint.
//
// When running under systemd:
//
//	journalctl -t uvcrtsp -f
//	journalctl -t uvcrtsp MODULE=lifecycle
package logging
