/*
NAME
  diag.go

DESCRIPTION
  diag.go wires up the decoder's diagnostic logger: a rotating log file via
  lumberjack, wrapped in the shared ausocean/utils/logging.Logger interface.

AUTHORS
  Mia Calder <mia@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package diag provides the decoder's diagnostic logging setup: a
// size/age-rotated log file, wrapped in the logging.Logger interface used
// throughout the rest of the module.
package diag

import (
	"io"

	"github.com/ausocean/utils/logging"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// FileLoggerConfig configures the rotating diagnostic log file.
type FileLoggerConfig struct {
	// Path is the log file's location; lumberjack creates it (and any
	// missing parent directories' siblings) on first write.
	Path string

	// MaxSizeMB is the size in megabytes at which the log is rotated.
	MaxSizeMB int

	// MaxBackups is the number of rotated files to retain.
	MaxBackups int

	// MaxAgeDays is the maximum age in days of a retained rotated file.
	MaxAgeDays int

	// Level is the minimum logging.Logger severity that is written.
	Level int8

	// Suppress, if true, rate-limits repeated identical log lines; see
	// logging.New.
	Suppress bool
}

// DefaultFileLoggerConfig returns the conventional rotation parameters used
// across AusOcean's command-line tools.
func DefaultFileLoggerConfig(path string) FileLoggerConfig {
	return FileLoggerConfig{
		Path:       path,
		MaxSizeMB:  500,
		MaxBackups: 10,
		MaxAgeDays: 28,
		Level:      logging.Info,
		Suppress:   true,
	}
}

// NewFileLogger returns a logging.Logger backed by a rotating log file at
// cfg.Path. extra, if non-nil, receives every log line in addition to the
// file — a test harness can pass a bytes.Buffer here to assert on output.
func NewFileLogger(cfg FileLoggerConfig, extra io.Writer) logging.Logger {
	file := &lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
	}
	var w io.Writer = file
	if extra != nil {
		w = io.MultiWriter(file, extra)
	}
	return logging.New(cfg.Level, w, cfg.Suppress)
}
