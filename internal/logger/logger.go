package logger

import (
	"os"

	"github.com/rs/zerolog"
)

// New builds the process-wide logger. The level field is named "severity" so
// Cloud Logging parses it without a custom parser.
func New() zerolog.Logger {
	zerolog.LevelFieldName = "severity"
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()

	// ConsoleWriter for readable local logs.
	if os.Getenv("ENV") == "development" {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	level := zerolog.InfoLevel
	if os.Getenv("ENV") != "production" {
		level = zerolog.DebugLevel
	}
	return logger.Level(level)
}
