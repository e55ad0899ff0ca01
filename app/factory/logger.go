package factory

import (
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

// ConfigureLogging sets the process-wide log level and format. Called once
// from the command entrypoints.
func ConfigureLogging(level string) {
	logrus.SetFormatter(&logrus.JSONFormatter{})

	parsed, err := logrus.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		parsed = logrus.InfoLevel
	}
	logrus.SetLevel(parsed)
}

// NewModuleLogger returns an entry tagged with the owning module's name.
func NewModuleLogger(module string) *logrus.Entry {
	return logrus.WithField("module", module)
}

// LoggerWithContext enriches a logger with per-request fields.
func LoggerWithContext(logger *logrus.Entry, ctx echo.Context) *logrus.Entry {
	if ctx == nil {
		return logger
	}

	fields := logrus.Fields{
		"method": ctx.Request().Method,
		"path":   ctx.Request().URL.Path,
	}
	if requestID := ctx.Request().Header.Get(echo.HeaderXRequestID); requestID != "" {
		fields["request_id"] = requestID
	}
	return logger.WithFields(fields)
}
