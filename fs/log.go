package fs

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"

	"github.com/mattn/go-colorable"
)

// LogLevel is the severity of a log line, ordered so that a numerically
// lower level is more severe.
type LogLevel int

// Log levels, most to least severe.
const (
	LogLevelError LogLevel = iota
	LogLevelInfo
	LogLevelDebug
)

func (l LogLevel) String() string {
	switch l {
	case LogLevelError:
		return "ERROR"
	case LogLevelInfo:
		return "INFO"
	case LogLevelDebug:
		return "DEBUG"
	default:
		return "UNKNOWN"
	}
}

var (
	logMu      sync.Mutex
	logLevel   = LogLevelInfo
	logOut     io.Writer = colorable.NewColorableStdout()
	stdLogger            = log.New(logOut, "", log.LstdFlags)
)

// SetLogLevel changes the minimum severity that reaches the output; calls
// below the current level are dropped cheaply before formatting.
func SetLogLevel(level LogLevel) {
	logMu.Lock()
	defer logMu.Unlock()
	logLevel = level
}

// SetLogOutput redirects log output to w as given; unlike the default
// output, w is not wrapped in a colorable writer. Tests use this to
// capture output without a terminal attached.
func SetLogOutput(w io.Writer) {
	logMu.Lock()
	defer logMu.Unlock()
	logOut = w
	stdLogger = log.New(w, "", log.LstdFlags)
}

// logf is the common formatter behind Errorf/Infof/Debugf. subject is
// typically the component emitting the line (a partition ID, a composer, a
// wire adapter) and is rendered as a prefix so every line names the object
// the message concerns.
func logf(level LogLevel, subject interface{}, format string, args ...interface{}) {
	logMu.Lock()
	cur := logLevel
	logMu.Unlock()
	if level > cur {
		return
	}
	msg := fmt.Sprintf(format, args...)
	stdLogger.Printf("%-5s : %v: %s", level, subject, msg)
}

// Errorf logs a failure. subject is the component the error concerns.
func Errorf(subject interface{}, format string, args ...interface{}) {
	logf(LogLevelError, subject, format, args...)
}

// Infof logs a normal-operation notice: partition marked dead/alive,
// upload/download started, and similar.
func Infof(subject interface{}, format string, args ...interface{}) {
	logf(LogLevelInfo, subject, format, args...)
}

// Debugf logs fine-grained tracing, off by default.
func Debugf(subject interface{}, format string, args ...interface{}) {
	logf(LogLevelDebug, subject, format, args...)
}

// Fatalf logs an error and terminates the process. Used only from cmd/.
func Fatalf(subject interface{}, format string, args ...interface{}) {
	logf(LogLevelError, subject, format, args...)
	os.Exit(1)
}
