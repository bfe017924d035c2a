// Package tchanlog mirrors the teacher's disabled-by-default logging
// package shape (utils/elalog): a small Logger interface and a Disabled
// default so tests stay quiet. There is no package-level logger and no
// SetLogger hook; a Channel takes its Logger through Options.Logger.
package tchanlog

import (
	"go.uber.org/zap"
)

// Logger is the logging contract used throughout the channel. It matches
// the shape the teacher and the wider pack use for this concern (e.g.
// op/go-logging in kangkot-tchannel, elalog in the teacher): leveled,
// printf-style, no structured-field API required of callers.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

type disabled struct{}

func (disabled) Debugf(string, ...interface{}) {}
func (disabled) Infof(string, ...interface{})  {}
func (disabled) Warnf(string, ...interface{})  {}
func (disabled) Errorf(string, ...interface{}) {}

// Disabled discards everything. It is the zero-value default so a
// Channel constructed without a Logger option never panics on a nil log.
var Disabled Logger = disabled{}

// zapLogger adapts a *zap.SugaredLogger to the Logger contract.
type zapLogger struct {
	s *zap.SugaredLogger
}

func (z *zapLogger) Debugf(format string, args ...interface{}) { z.s.Debugf(format, args...) }
func (z *zapLogger) Infof(format string, args ...interface{})  { z.s.Infof(format, args...) }
func (z *zapLogger) Warnf(format string, args ...interface{})  { z.s.Warnf(format, args...) }
func (z *zapLogger) Errorf(format string, args ...interface{}) { z.s.Errorf(format, args...) }

// NewProduction builds the default structured Logger, a JSON-encoded
// zap production logger with the process name attached as a static field.
func NewProduction(processName string) (Logger, error) {
	base, err := zap.NewProduction()
	if err != nil {
		return nil, err
	}
	return &zapLogger{s: base.Sugar().With("process", processName)}, nil
}

// NewDevelopment builds a human-readable console Logger, for use from the
// cmd/tchand CLI when run interactively.
func NewDevelopment() (Logger, error) {
	base, err := zap.NewDevelopment()
	if err != nil {
		return nil, err
	}
	return &zapLogger{s: base.Sugar()}, nil
}
