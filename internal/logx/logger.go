// Package logx is the internal leveled logger for shmq.
//
// The queue hot path never logs; only configuration and OS-level failures
// are reported here. The default level is Warn and can be lowered through
// the SHMQ_LOG_LEVEL environment variable or SetLogLevel.
package logx

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"
)

const (
	LevelTrace = iota
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
	LevelNoPrint
)

var (
	defaultLogger = &logger{out: os.Stderr, callDepth: 3}
	level         = LevelWarn

	magenta = string([]byte{27, 91, 57, 53, 109})
	green   = string([]byte{27, 91, 57, 50, 109})
	blue    = string([]byte{27, 91, 57, 52, 109})
	yellow  = string([]byte{27, 91, 57, 51, 109})
	red     = string([]byte{27, 91, 57, 49, 109})
	reset   = string([]byte{27, 91, 48, 109})

	colors = []string{magenta, green, blue, yellow, red}

	levelName = []string{"Trace", "Debug", "Info", "Warn", "Error"}
)

func init() {
	if v := os.Getenv("SHMQ_LOG_LEVEL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n <= LevelNoPrint {
			level = n
		}
	}
}

// SetLogLevel changes the internal logger's level. The default is Warn.
// The process env `SHMQ_LOG_LEVEL` can also set the level.
func SetLogLevel(l int) {
	if l <= LevelNoPrint {
		level = l
	}
}

// SetOutput redirects log output, mainly for tests.
func SetOutput(w io.Writer) {
	if w != nil {
		defaultLogger.out = w
	}
}

type logger struct {
	out       io.Writer
	callDepth int
}

func (l *logger) printf(lv int, format string, a ...interface{}) {
	if level > lv {
		return
	}
	_, _ = fmt.Fprintf(l.out, l.prefix(lv)+format+reset+"\n", a...)
}

func (l *logger) prefix(lv int) string {
	var buffer [64]byte
	buf := bytes.NewBuffer(buffer[:0])
	_, _ = buf.WriteString(colors[lv])
	_, _ = buf.WriteString(levelName[lv])
	_ = buf.WriteByte(' ')
	_, _ = buf.WriteString(time.Now().Format("2006-01-02 15:04:05.999999"))
	_ = buf.WriteByte(' ')
	_, _ = buf.WriteString(l.location())
	_ = buf.WriteByte(' ')
	return buf.String()
}

func (l *logger) location() string {
	_, file, line, ok := runtime.Caller(l.callDepth)
	if !ok {
		return "???:0"
	}
	return filepath.Base(file) + ":" + strconv.Itoa(line)
}

// Tracef logs at trace level.
func Tracef(format string, a ...interface{}) { defaultLogger.printf(LevelTrace, format, a...) }

// Debugf logs at debug level.
func Debugf(format string, a ...interface{}) { defaultLogger.printf(LevelDebug, format, a...) }

// Infof logs at info level.
func Infof(format string, a ...interface{}) { defaultLogger.printf(LevelInfo, format, a...) }

// Warnf logs at warn level.
func Warnf(format string, a ...interface{}) { defaultLogger.printf(LevelWarn, format, a...) }

// Errorf logs at error level.
func Errorf(format string, a ...interface{}) { defaultLogger.printf(LevelError, format, a...) }
