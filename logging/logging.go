// Package logging provides component loggers for the pipeline. All
// recoverable conditions (broken relation rings, missing ways, invalid
// geometries) are reported here as warnings; fatal conditions terminate
// the process.
package logging

import (
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu    sync.Mutex
	base  *zap.SugaredLogger
	quiet bool
)

// Init configures the process-wide logger. verbose enables debug output.
func Init(verbose bool) {
	mu.Lock()
	defer mu.Unlock()
	base = newBase(verbose)
}

// SetQuiet suppresses transient progress output.
func SetQuiet(q bool) {
	mu.Lock()
	quiet = q
	mu.Unlock()
}

func newBase(verbose bool) *zap.SugaredLogger {
	level := zapcore.InfoLevel
	if verbose {
		level = zapcore.DebugLevel
	}
	encConf := zap.NewDevelopmentEncoderConfig()
	encConf.EncodeTime = zapcore.TimeEncoderOfLayout(time.Stamp)
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encConf),
		zapcore.AddSync(os.Stderr),
		level,
	)
	return zap.New(core).Sugar()
}

func root() *zap.SugaredLogger {
	mu.Lock()
	defer mu.Unlock()
	if base == nil {
		base = newBase(false)
	}
	return base
}

// Logger logs for one pipeline component.
type Logger struct {
	s     *zap.SugaredLogger
	steps sync.Map
}

// NewLogger returns a logger named after a component.
func NewLogger(component string) *Logger {
	return &Logger{s: root().Named(component)}
}

// Discard returns a logger that drops everything. Used for side-effect
// free geometry queries that would otherwise repeat assembly warnings.
func Discard() *Logger {
	return &Logger{s: zap.NewNop().Sugar()}
}

func (l *Logger) Debugf(msg string, args ...interface{}) { l.s.Debugf(msg, args...) }
func (l *Logger) Infof(msg string, args ...interface{})  { l.s.Infof(msg, args...) }
func (l *Logger) Warnf(msg string, args ...interface{})  { l.s.Warnf(msg, args...) }
func (l *Logger) Errorf(msg string, args ...interface{}) { l.s.Errorf(msg, args...) }

// Fatalf logs and terminates the process with a non-zero exit code.
func (l *Logger) Fatalf(msg string, args ...interface{}) { l.s.Fatalf(msg, args...) }

const clearLine = "\x1b[2K"

// Progress prints a transient status line that the next log record or
// progress line overwrites.
func (l *Logger) Progress(msg string) {
	mu.Lock()
	q := quiet
	mu.Unlock()
	if q {
		return
	}
	fmt.Fprint(os.Stderr, clearLine, msg, "\r")
}

// StartStep starts a named, timed step. The returned name is passed to
// StopStep.
func (l *Logger) StartStep(msg string) string {
	l.steps.Store(msg, time.Now())
	l.Progress(msg)
	return msg
}

// StopStep logs the duration of a step started with StartStep.
func (l *Logger) StopStep(msg string) {
	if v, ok := l.steps.LoadAndDelete(msg); ok {
		l.s.Infof("%s took %s", msg, time.Since(v.(time.Time)).Round(time.Millisecond))
	}
}
