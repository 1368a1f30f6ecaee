// Package log provides the process-wide logger behind a small interface,
// backed by logrus.
package log

// Logger is the logging surface used throughout the repository.
type Logger interface {
	Trace(args ...interface{})
	Tracef(format string, args ...interface{})

	Debug(args ...interface{})
	Debugf(format string, args ...interface{})

	Info(args ...interface{})
	Infof(format string, args ...interface{})

	Warn(args ...interface{})
	Warnf(format string, args ...interface{})

	Error(args ...interface{})
	Errorf(format string, args ...interface{})

	WithField(field string, value interface{}) Logger
	WithFields(fields map[string]interface{}) Logger
	WithError(err error) Logger

	IsDebugEnabled() bool
}

var logger Logger = newAdapter(nil)

// GetLogger returns the process-wide logger.
func GetLogger() Logger { return logger }

func Trace(args ...interface{})                 { logger.Trace(args...) }
func Tracef(format string, args ...interface{}) { logger.Tracef(format, args...) }
func Debug(args ...interface{})                 { logger.Debug(args...) }
func Debugf(format string, args ...interface{}) { logger.Debugf(format, args...) }
func Info(args ...interface{})                  { logger.Info(args...) }
func Infof(format string, args ...interface{})  { logger.Infof(format, args...) }
func Warn(args ...interface{})                  { logger.Warn(args...) }
func Warnf(format string, args ...interface{})  { logger.Warnf(format, args...) }
func Error(args ...interface{})                 { logger.Error(args...) }
func Errorf(format string, args ...interface{}) { logger.Errorf(format, args...) }

// WithField returns a derived logger carrying the field.
func WithField(field string, value interface{}) Logger { return logger.WithField(field, value) }

// WithError returns a derived logger carrying the error field.
func WithError(err error) Logger { return logger.WithError(err) }
