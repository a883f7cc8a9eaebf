// Package logger emits structured JSON log lines with subscriber PII
// masked by default. Background workers that predate it still use the
// standard log package with a component prefix.
package logger

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"
)

// Level orders entries by severity.
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

func (l Level) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	}
	return "INFO"
}

// Logger writes one JSON object per entry to stderr.
type Logger struct {
	mu        sync.Mutex
	level     Level
	redactPII bool
}

var std = &Logger{level: INFO, redactPII: true}

// SetLevel sets the minimum severity the default logger emits.
func SetLevel(l Level) { std.level = l }

// SetRedactPII toggles email masking on the default logger.
func SetRedactPII(on bool) { std.redactPII = on }

func Debug(msg string, kv ...interface{}) { std.emit(DEBUG, msg, kv...) }
func Info(msg string, kv ...interface{})  { std.emit(INFO, msg, kv...) }
func Warn(msg string, kv ...interface{})  { std.emit(WARN, msg, kv...) }
func Error(msg string, kv ...interface{}) { std.emit(ERROR, msg, kv...) }

func (l *Logger) emit(level Level, msg string, kv ...interface{}) {
	if level < l.level {
		return
	}

	entry := map[string]interface{}{
		"time":  time.Now().UTC().Format(time.RFC3339),
		"level": level.String(),
		"msg":   msg,
	}
	for i := 0; i+1 < len(kv); i += 2 {
		key := fmt.Sprintf("%v", kv[i])
		val := fmt.Sprintf("%v", kv[i+1])
		if l.redactPII {
			val = mask(key, val)
		}
		entry[key] = val
	}

	line, _ := json.Marshal(entry)
	l.mu.Lock()
	fmt.Fprintln(os.Stderr, string(line))
	l.mu.Unlock()
}

var emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)

// mask redacts values under email-ish keys entirely, and scrubs any
// embedded addresses out of everything else.
func mask(key, val string) string {
	k := strings.ToLower(key)
	if strings.Contains(k, "email") || strings.Contains(k, "subscriber") || strings.Contains(k, "recipient") {
		return RedactEmail(val)
	}
	return emailPattern.ReplaceAllStringFunc(val, RedactEmail)
}

// RedactEmail keeps at most the first two characters of the local part:
// "john.doe@example.com" becomes "jo***@example.com". Anything that does
// not look like an address is masked wholesale.
func RedactEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at < 0 || at == len(email)-1 {
		return "***@***"
	}
	local, domain := email[:at], email[at+1:]
	if len(local) <= 2 {
		return "***@" + domain
	}
	return local[:2] + "***@" + domain
}
