package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// Options controls where log lines go and how they look. An empty
// FilePath disables file output; Console defaults to on in that case.
type Options struct {
	Level      Level
	Format     Format
	FilePath   string
	Console    bool
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

type Fields map[string]interface{}

type entry struct {
	Level     Level     `json:"level"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Fields    Fields    `json:"fields,omitempty"`
}

type Logger struct {
	mu      sync.Mutex
	opts    Options
	fields  Fields
	writer  io.Writer
	fileLog *lumberjack.Logger
}

// New builds a logger writing to console, a rotated file, or both.
func New(opts Options) (*Logger, error) {
	if opts.Level == "" {
		opts.Level = LevelInfo
	}
	if opts.Format == "" {
		opts.Format = FormatText
	}
	if opts.FilePath == "" && !opts.Console {
		opts.Console = true
	}

	l := &Logger{opts: opts, fields: Fields{}}

	var writers []io.Writer
	if opts.Console {
		writers = append(writers, os.Stdout)
	}
	if opts.FilePath != "" {
		if err := os.MkdirAll(filepath.Dir(opts.FilePath), 0o755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
		maxSize := opts.MaxSizeMB
		if maxSize <= 0 {
			maxSize = 100
		}
		l.fileLog = &lumberjack.Logger{
			Filename:   opts.FilePath,
			MaxSize:    maxSize,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
			Compress:   opts.Compress,
		}
		writers = append(writers, l.fileLog)
	}
	switch len(writers) {
	case 1:
		l.writer = writers[0]
	default:
		l.writer = io.MultiWriter(writers...)
	}
	return l, nil
}

var levelRank = map[Level]int{
	LevelDebug: 0,
	LevelInfo:  1,
	LevelWarn:  2,
	LevelError: 3,
}

func (l *Logger) log(level Level, msg string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	// Level is read under the mutex so SetLevel from another goroutine
	// is safe.
	if levelRank[level] < levelRank[l.opts.Level] {
		return
	}

	if len(args) > 0 {
		msg = fmt.Sprintf(msg, args...)
	}
	e := entry{
		Level:     level,
		Message:   msg,
		Timestamp: time.Now(),
		Fields:    l.fields,
	}
	if l.opts.Format == FormatJSON {
		raw, err := json.Marshal(e)
		if err != nil {
			fmt.Fprintf(os.Stderr, "marshal log entry: %v\n", err)
			return
		}
		fmt.Fprintln(l.writer, string(raw))
		return
	}

	line := fmt.Sprintf("[%s] [%-5s] %s", e.Timestamp.Format("2006-01-02 15:04:05.000"), e.Level, e.Message)
	if len(e.Fields) > 0 {
		raw, _ := json.Marshal(e.Fields)
		line += " " + string(raw)
	}
	fmt.Fprintln(l.writer, line)
}

func (l *Logger) Debug(msg string, args ...interface{}) { l.log(LevelDebug, msg, args...) }
func (l *Logger) Info(msg string, args ...interface{})  { l.log(LevelInfo, msg, args...) }
func (l *Logger) Warn(msg string, args ...interface{})  { l.log(LevelWarn, msg, args...) }
func (l *Logger) Error(msg string, args ...interface{}) { l.log(LevelError, msg, args...) }

// WithFields returns a child logger sharing the same outputs with the
// given fields attached to every line.
func (l *Logger) WithFields(fields Fields) *Logger {
	l.mu.Lock()
	defer l.mu.Unlock()
	child := &Logger{
		opts:    l.opts,
		writer:  l.writer,
		fileLog: l.fileLog,
		fields:  make(Fields, len(l.fields)+len(fields)),
	}
	for k, v := range l.fields {
		child.fields[k] = v
	}
	for k, v := range fields {
		child.fields[k] = v
	}
	return child
}

func (l *Logger) WithField(key string, value interface{}) *Logger {
	return l.WithFields(Fields{key: value})
}

func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.opts.Level = level
}

func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fileLog != nil {
		return l.fileLog.Close()
	}
	return nil
}

// ParseLevel maps a config string to a Level, defaulting to info.
func ParseLevel(s string) Level {
	switch Level(s) {
	case LevelDebug, LevelInfo, LevelWarn, LevelError:
		return Level(s)
	default:
		return LevelInfo
	}
}
