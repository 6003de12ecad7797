package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"time"
)

type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
	FATAL
)

var (
	levelNames = map[Level]string{
		DEBUG: "DEBUG",
		INFO:  "INFO",
		WARN:  "WARN",
		ERROR: "ERROR",
		FATAL: "FATAL",
	}

	levelColors = map[Level]string{
		DEBUG: "\033[36m",
		INFO:  "\033[32m",
		WARN:  "\033[33m",
		ERROR: "\033[31m",
		FATAL: "\033[35m",
	}

	reset = "\033[0m"
	gray  = "\033[90m"
)

// exit is swapped out in tests so Fatal can be observed.
var exit = os.Exit

type field struct {
	key   string
	value string
}

type Logger struct {
	mu        *sync.Mutex
	level     Level
	out       io.Writer
	service   string
	useColors bool
	showTime  bool
	fields    []field
}

func New(service string) *Logger {
	return &Logger{
		mu:        &sync.Mutex{},
		level:     ParseLevel(os.Getenv("LOG_LEVEL")),
		out:       os.Stdout,
		service:   service,
		useColors: os.Getenv("LOG_COLORS") != "false",
		showTime:  true,
	}
}

// ParseLevel maps a level name to a Level, falling back to INFO.
func ParseLevel(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return DEBUG
	case "WARN", "WARNING":
		return WARN
	case "ERROR":
		return ERROR
	case "FATAL":
		return FATAL
	default:
		return INFO
	}
}

// WithOutput returns a copy of the logger writing to w without colors or timestamps.
func (l *Logger) WithOutput(w io.Writer) *Logger {
	c := l.clone()
	c.out = w
	c.useColors = false
	c.showTime = false
	return c
}

func (l *Logger) WithLevel(level Level) *Logger {
	c := l.clone()
	c.level = level
	return c
}

// With returns a child logger that prefixes every line with key=value.
func (l *Logger) With(key string, value interface{}) *Logger {
	c := l.clone()
	c.fields = append(c.fields, field{key: key, value: fmt.Sprint(value)})
	return c
}

func (l *Logger) clone() *Logger {
	fields := make([]field, len(l.fields))
	copy(fields, l.fields)
	return &Logger{
		mu:        l.mu,
		level:     l.level,
		out:       l.out,
		service:   l.service,
		useColors: l.useColors,
		showTime:  l.showTime,
		fields:    fields,
	}
}

func (l *Logger) log(level Level, format string, args ...interface{}) {
	if level < l.level {
		return
	}

	var buf strings.Builder

	if l.showTime {
		buf.WriteString(time.Now().Format("15:04:05"))
		buf.WriteString(" ")
	}

	if l.useColors {
		buf.WriteString(levelColors[level])
	}
	buf.WriteString(fmt.Sprintf("%-5s", levelNames[level]))
	if l.useColors {
		buf.WriteString(reset)
	}
	buf.WriteString(" ")

	if l.service != "" {
		if l.useColors {
			buf.WriteString(gray)
		}
		buf.WriteString("[" + l.service + "]")
		if l.useColors {
			buf.WriteString(reset)
		}
		buf.WriteString(" ")
	}

	for _, f := range l.fields {
		buf.WriteString(f.key + "=" + f.value + " ")
	}

	buf.WriteString(fmt.Sprintf(format, args...))

	l.mu.Lock()
	fmt.Fprintln(l.out, buf.String())
	l.mu.Unlock()

	if level == FATAL {
		exit(1)
	}
}

func (l *Logger) Debug(format string, args ...interface{}) {
	l.log(DEBUG, format, args...)
}

func (l *Logger) Info(format string, args ...interface{}) {
	l.log(INFO, format, args...)
}

func (l *Logger) Warn(format string, args ...interface{}) {
	l.log(WARN, format, args...)
}

func (l *Logger) Error(format string, args ...interface{}) {
	l.log(ERROR, format, args...)
}

func (l *Logger) Fatal(format string, args ...interface{}) {
	l.log(FATAL, format, args...)
}

// SetStdLog redirects the standard log package (used by net/http) through this logger.
func (l *Logger) SetStdLog() {
	log.SetOutput(&stdLogWriter{logger: l})
	log.SetFlags(0)
}

// StdLogger returns a *log.Logger suitable for http.Server.ErrorLog.
func (l *Logger) StdLogger() *log.Logger {
	return log.New(&stdLogWriter{logger: l, level: ERROR}, "", 0)
}

type stdLogWriter struct {
	logger *Logger
	level  Level
}

func (w *stdLogWriter) Write(p []byte) (n int, err error) {
	msg := strings.TrimSpace(string(p))
	level := w.level
	if level == DEBUG {
		level = INFO
	}
	w.logger.log(level, "%s", msg)
	return len(p), nil
}
