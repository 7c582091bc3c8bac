package config

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// NewLogger builds a logger from the logging section. Invalid values fall back
// to info level and text output; Validate reports them.
func (l LoggingConfig) NewLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)

	level, err := parseLevel(l.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if strings.EqualFold(l.Format, "json") {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger
}

func parseLevel(s string) (logrus.Level, error) {
	return logrus.ParseLevel(strings.TrimSpace(s))
}
