package main

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LoggerResult holds the rotated log file, if one was opened
type LoggerResult struct {
	LogFile io.WriteCloser
}

// Close closes the log file if it was opened.
func (r *LoggerResult) Close() error {
	if r.LogFile != nil {
		return r.LogFile.Close()
	}
	return nil
}

// setupLogger configures the global zerolog logger. Console output always
// goes to stderr; with a file set, JSON lines also go to a rotating file.
func setupLogger(level, file string) (*LoggerResult, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	zerolog.SetGlobalLevel(lvl)

	result := &LoggerResult{}
	var w io.Writer = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}

	if file != "" {
		rotator := &lumberjack.Logger{
			Filename:   file,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
			Compress:   true,
		}
		w = zerolog.MultiLevelWriter(w, rotator)
		result.LogFile = rotator
	}

	log.Logger = zerolog.New(w).With().Timestamp().Logger()
	return result, nil
}
