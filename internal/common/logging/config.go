package logging

import (
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const (
	FormatText = "text"
	FormatJson = "json"
)

// Config defines instancegen logging configuration.
type Config struct {
	// Log level, e.g. info, debug
	Level string
	// Logging format, either text or json
	Format string
	// Optional rotating log file, written in addition to stdout
	File struct {
		Enabled    bool
		Path       string
		MaxSizeMb  int
		MaxBackups int
		MaxAgeDays int
		Compress   bool
	}
}

func (c Config) validate() (log.Level, error) {
	level, err := log.ParseLevel(strings.ToLower(c.Level))
	if err != nil {
		return log.InfoLevel, errors.Errorf("unknown log level: %s", c.Level)
	}
	switch c.Format {
	case "", FormatText, FormatJson:
	default:
		return log.InfoLevel, errors.Errorf("unknown log format: %s. Valid formats are %s and %s", c.Format, FormatText, FormatJson)
	}
	if c.File.Enabled {
		if c.File.Path == "" {
			return log.InfoLevel, errors.New("file.path must be set when file logging is enabled")
		}
		if c.File.MaxSizeMb <= 0 {
			return log.InfoLevel, errors.New("file.maxSizeMb must be greater than zero")
		}
	}
	return level, nil
}
