package logging

import (
	"io"
	"os"
	"sync"

	log "github.com/sirupsen/logrus"
	"github.com/weaveworks/promrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

var addMetricsHook sync.Once

// ConfigureApplicationLogging sets up the standard logrus logger for a long running process.
func ConfigureApplicationLogging(config Config) error {
	level, err := config.validate()
	if err != nil {
		return err
	}

	var out io.Writer = os.Stdout
	if config.File.Enabled {
		out = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   config.File.Path,
			MaxSize:    config.File.MaxSizeMb,
			MaxBackups: config.File.MaxBackups,
			MaxAge:     config.File.MaxAgeDays,
			Compress:   config.File.Compress,
		})
	}

	if config.Format == FormatJson {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{ForceColors: !config.File.Enabled, FullTimestamp: true})
	}
	log.SetOutput(out)
	log.SetLevel(level)

	// Counts emitted log lines by level on the default prometheus registry.
	addMetricsHook.Do(func() {
		hook, err := promrus.NewPrometheusHook()
		if err != nil {
			log.WithError(err).Warn("Log line metrics disabled")
			return
		}
		log.AddHook(hook)
	})
	return nil
}

// ConfigureCommandLineLogging makes the standard logger print bare messages, for CLI output.
func ConfigureCommandLineLogging() {
	log.SetFormatter(&CommandLineFormatter{})
	log.SetOutput(os.Stdout)
}
