// Package logger provides log/slog attribute helpers shared by the client
// components.
//
// Helpers follow the empty Attr pattern for nil safety: passing a nil error to
// logger.Error yields an empty attribute rather than a "error=<nil>" entry, so
// call sites never need explicit nil checks:
//
//	log.Warn("request failed",
//		logger.Component("rest"),
//		logger.Status(code),
//		logger.Error(err),
//	)
package logger
