// Package logger owns the process-wide logrus instance shared by the
// control bot and the relay engine.
package logger

import (
	"os"

	log "github.com/sirupsen/logrus"
)

// Init sets up the shared logger: stdout, full timestamps, level from
// the LOG_LEVEL environment variable (info when unset or unparsable).
// Calling it again reapplies the settings.
func Init() {
	log.SetOutput(os.Stdout)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		level = "info"
	}
	if lvl, err := log.ParseLevel(level); err == nil {
		log.SetLevel(lvl)
	} else {
		log.SetLevel(log.InfoLevel)
	}
}

// L returns the shared logger.
func L() *log.Logger { return log.StandardLogger() }
