package logging

import (
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

// Logger is the process-wide logger. It is usable before InitLogging is
// called so packages can log during tests without extra setup.
var Logger = logrus.New()

// InitLogging initializes logging for the given gin mode
func InitLogging(mode string) {
	Logger.SetOutput(os.Stdout)
	if mode == "release" {
		Logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
		})
		Logger.SetLevel(logrus.InfoLevel)
		return
	}
	Logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	Logger.SetLevel(logrus.DebugLevel)
}

// SetOutput redirects log output, mainly to silence tests
func SetOutput(w io.Writer) {
	Logger.SetOutput(w)
}

// WithFields returns an entry carrying structured fields
func WithFields(fields map[string]interface{}) *logrus.Entry {
	return Logger.WithFields(logrus.Fields(fields))
}

// Infof logs info level messages
func Infof(format string, v ...interface{}) {
	Logger.Infof(format, v...)
}

// Warnf logs warning level messages
func Warnf(format string, v ...interface{}) {
	Logger.Warnf(format, v...)
}

// Errorf logs error level messages
func Errorf(format string, v ...interface{}) {
	Logger.Errorf(format, v...)
}
