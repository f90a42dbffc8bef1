package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config controls the logrus backend.
type Config struct {
	// Level is one of trace, debug, info, warn, error.
	Level string `mapstructure:"level"`

	// Format is "json" or "text".
	Format string `mapstructure:"format"`

	// Output is "stdout", "stderr" or "file".
	Output string `mapstructure:"output"`

	// File rotation settings, only used when Output is "file".
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// DefaultConfig logs JSON lines at info level to stdout.
func DefaultConfig() Config {
	return Config{
		Level:      "info",
		Format:     "json",
		Output:     "stdout",
		MaxSize:    50,
		MaxBackups: 5,
		MaxAge:     14,
	}
}

// LogrusLogger implements Logger on top of a logrus entry.
type LogrusLogger struct {
	entry *logrus.Entry
}

// New builds a logger from cfg. component is attached as a persistent field.
func New(cfg Config, component string) (*LogrusLogger, error) {
	l := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	if err := setFormatter(l, cfg.Format); err != nil {
		return nil, err
	}
	if err := setOutput(l, cfg); err != nil {
		return nil, err
	}

	entry := logrus.NewEntry(l)
	if component != "" {
		entry = entry.WithField("component", component)
	}
	return &LogrusLogger{entry: entry}, nil
}

// NewStdoutLogger creates a JSON logger on stdout at debug level. It is the
// quick constructor used by tests and the CLI before config is loaded.
func NewStdoutLogger(component string) *LogrusLogger {
	cfg := DefaultConfig()
	cfg.Level = "debug"
	l, err := New(cfg, component)
	if err != nil {
		// DefaultConfig is always valid.
		panic(err)
	}
	return l
}

func setFormatter(l *logrus.Logger, format string) error {
	const timestampFormat = "2006-01-02T15:04:05.000Z07:00"

	switch strings.ToLower(format) {
	case "", "json":
		l.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: timestampFormat,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime: "time",
				logrus.FieldKeyMsg:  "msg",
			},
		})
	case "text":
		l.SetFormatter(&logrus.TextFormatter{
			TimestampFormat: timestampFormat,
			FullTimestamp:   true,
		})
	default:
		return fmt.Errorf("unsupported log format: %s", format)
	}
	return nil
}

func setOutput(l *logrus.Logger, cfg Config) error {
	switch strings.ToLower(cfg.Output) {
	case "", "stdout":
		l.SetOutput(os.Stdout)
	case "stderr":
		l.SetOutput(os.Stderr)
	case "file":
		if cfg.FilePath == "" {
			return fmt.Errorf("file path is required when output is file")
		}
		if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0o755); err != nil {
			return fmt.Errorf("create log directory: %w", err)
		}
		rotator := &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
		}
		if strings.EqualFold(cfg.Level, "debug") {
			l.SetOutput(io.MultiWriter(os.Stdout, rotator))
		} else {
			l.SetOutput(rotator)
		}
	default:
		return fmt.Errorf("unsupported log output: %s", cfg.Output)
	}
	return nil
}

// SetOutput redirects the underlying logger, mostly for tests.
func (s *LogrusLogger) SetOutput(w io.Writer) {
	s.entry.Logger.SetOutput(w)
}

func toFields(fields []Field) logrus.Fields {
	out := make(logrus.Fields, len(fields))
	for _, f := range fields {
		out[f.Key] = f.Value
	}
	return out
}

func (s *LogrusLogger) Debug(msg string, fields ...Field) {
	s.entry.WithFields(toFields(fields)).Debug(msg)
}

func (s *LogrusLogger) Info(msg string, fields ...Field) {
	s.entry.WithFields(toFields(fields)).Info(msg)
}

func (s *LogrusLogger) Warn(msg string, fields ...Field) {
	s.entry.WithFields(toFields(fields)).Warn(msg)
}

func (s *LogrusLogger) Error(msg string, fields ...Field) {
	s.entry.WithFields(toFields(fields)).Error(msg)
}

func (s *LogrusLogger) With(fields ...Field) Logger {
	return &LogrusLogger{entry: s.entry.WithFields(toFields(fields))}
}
