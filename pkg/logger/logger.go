// Package logger provides structured, job-aware logging for publish runs
package logger

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
)

// Logger interface for abstracted logging
type Logger interface {
	Info(message string, fields ...Field)
	Error(message string, fields ...Field)
	Warn(message string, fields ...Field)
	Debug(message string, fields ...Field)
	Success(message string, fields ...Field)
	WithJob(job string) Logger
}

// Field represents a structured logging field
type Field struct {
	Key   string
	Value interface{}
}

// WithField creates a new field
func WithField(key string, value interface{}) Field {
	return Field{Key: key, Value: value}
}

// JobLogger implements Logger on top of logrus, tagging entries with a job name
type JobLogger struct {
	logger  *logrus.Logger
	jobName string
}

// Formatter renders entries as "time LEVEL [job] message {fields}"
type Formatter struct {
	TimestampFormat string
	DisableColors   bool
}

// Format implements logrus.Formatter
func (f *Formatter) Format(entry *logrus.Entry) ([]byte, error) {
	var levelColor *color.Color
	var levelText string

	switch entry.Level {
	case logrus.ErrorLevel, logrus.FatalLevel, logrus.PanicLevel:
		levelColor = color.New(color.FgRed, color.Bold)
		levelText = "ERROR"
	case logrus.WarnLevel:
		levelColor = color.New(color.FgYellow, color.Bold)
		levelText = "WARN"
	case logrus.DebugLevel, logrus.TraceLevel:
		levelColor = color.New(color.FgWhite, color.Faint)
		levelText = "DEBUG"
	default:
		levelColor = color.New(color.FgCyan)
		levelText = "INFO"
	}
	if f.DisableColors {
		levelColor.DisableColor()
	}

	var b strings.Builder
	b.WriteString(entry.Time.Format(f.TimestampFormat))
	b.WriteByte(' ')
	b.WriteString(levelColor.Sprint(levelText))
	b.WriteByte(' ')

	data := make(logrus.Fields, len(entry.Data))
	for k, v := range entry.Data {
		data[k] = v
	}
	if job, ok := data["job"]; ok {
		jobColor := color.New(color.FgBlue)
		if f.DisableColors {
			jobColor.DisableColor()
		}
		fmt.Fprintf(&b, "[%s] ", jobColor.Sprint(job))
		delete(data, "job")
	}
	b.WriteString(entry.Message)

	if len(data) > 0 {
		keys := make([]string, 0, len(data))
		for k := range data {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		pairs := make([]string, 0, len(keys))
		for _, k := range keys {
			pairs = append(pairs, fmt.Sprintf("%s=%v", k, data[k]))
		}
		fieldColor := color.New(color.FgWhite, color.Faint)
		if f.DisableColors {
			fieldColor.DisableColor()
		}
		b.WriteString(fieldColor.Sprint(" {" + strings.Join(pairs, ", ") + "}"))
	}

	b.WriteByte('\n')
	return []byte(b.String()), nil
}

// New creates a logger writing to stderr and, when logFile is set, to that file
func New(logFile string, logLevel string) Logger {
	var out io.Writer = os.Stderr
	if logFile != "" {
		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err == nil {
			out = io.MultiWriter(os.Stderr, file)
		}
	}
	return newJobLogger(out, logLevel, false)
}

// NewWithOutput creates an uncolored logger with custom output (for testing)
func NewWithOutput(logLevel string, output io.Writer) Logger {
	return newJobLogger(output, logLevel, true)
}

// NewNop returns a logger that discards everything
func NewNop() Logger {
	return newJobLogger(io.Discard, "error", true)
}

func newJobLogger(out io.Writer, logLevel string, disableColors bool) *JobLogger {
	log := logrus.New()

	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	log.SetFormatter(&Formatter{
		TimestampFormat: "15:04:05",
		DisableColors:   disableColors,
	})
	log.SetOutput(out)

	return &JobLogger{logger: log}
}

// WithJob creates a new logger tagged with the job name
func (l *JobLogger) WithJob(job string) Logger {
	return &JobLogger{
		logger:  l.logger,
		jobName: job,
	}
}

func (l *JobLogger) entry(fields []Field) *logrus.Entry {
	result := make(logrus.Fields, len(fields)+1)
	if l.jobName != "" {
		result["job"] = l.jobName
	}
	for _, f := range fields {
		result[f.Key] = f.Value
	}
	return l.logger.WithFields(result)
}

// Info logs an info message
func (l *JobLogger) Info(message string, fields ...Field) {
	l.entry(fields).Info(message)
}

// Error logs an error message
func (l *JobLogger) Error(message string, fields ...Field) {
	l.entry(fields).Error(message)
}

// Warn logs a warning message
func (l *JobLogger) Warn(message string, fields ...Field) {
	l.entry(fields).Warn(message)
}

// Debug logs a debug message
func (l *JobLogger) Debug(message string, fields ...Field) {
	l.entry(fields).Debug(message)
}

// Success logs at info level with a check mark
func (l *JobLogger) Success(message string, fields ...Field) {
	l.entry(fields).Info("✅ " + message)
}
