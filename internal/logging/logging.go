// Package logging configures logrus for Cloud Logging structured output.
package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// severities maps logrus levels to Cloud Logging LogSeverity names
var severities = map[logrus.Level]string{
	logrus.TraceLevel: "DEBUG",
	logrus.DebugLevel: "DEBUG",
	logrus.InfoLevel:  "INFO",
	logrus.WarnLevel:  "WARNING",
	logrus.ErrorLevel: "ERROR",
	logrus.FatalLevel: "CRITICAL",
	logrus.PanicLevel: "ALERT",
}

// New returns a JSON logger writing to w at the given level.
// Level names are those accepted by logrus.ParseLevel.
func New(w io.Writer, level string) (*logrus.Logger, error) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	logger := logrus.New()
	logger.SetOutput(w)
	logger.SetLevel(lvl)
	logger.SetFormatter(&severityFormatter{
		JSONFormatter: logrus.JSONFormatter{
			DisableHTMLEscape: true,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyMsg:  "message",
				logrus.FieldKeyTime: "timestamp",
			},
		},
	})
	return logger, nil
}

// Configure applies the Cloud Logging format to the logrus standard logger
// so that packages logging through logrus.StandardLogger() share it.
func Configure(level string) (*logrus.Logger, error) {
	configured, err := New(os.Stdout, level)
	if err != nil {
		return nil, err
	}

	std := logrus.StandardLogger()
	std.SetOutput(configured.Out)
	std.SetLevel(configured.GetLevel())
	std.SetFormatter(configured.Formatter)
	return std, nil
}

// severityFormatter adds the "severity" field Cloud Logging reads next to
// the logrus "level" field.
type severityFormatter struct {
	logrus.JSONFormatter
}

func (f *severityFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	data := make(logrus.Fields, len(entry.Data)+1)
	for k, v := range entry.Data {
		data[k] = v
	}
	data["severity"] = severities[entry.Level]

	clone := *entry
	clone.Data = data
	return f.JSONFormatter.Format(&clone)
}
