package logsvc

import (
	"sync"

	"github.com/LucadeVeintemilla/emotionTracking/core"
)

// RecordingLogger keeps every entry in memory. It is used in tests and by the admin CLI dry-runs.
type RecordingLogger struct {
	mu      sync.Mutex
	Entries []Entry
}

type Entry struct {
	Level string
	Msg   string
	Args  []interface{}
}

var _ core.Logger = (*RecordingLogger)(nil)

func NewRecordingLogger() *RecordingLogger {
	return &RecordingLogger{}
}

func (l *RecordingLogger) add(level, msg string, args []interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Entries = append(l.Entries, Entry{Level: level, Msg: msg, Args: args})
}

// Count returns the number of entries logged at `level`.
func (l *RecordingLogger) Count(level string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	var n int
	for _, e := range l.Entries {
		if e.Level == level {
			n++
		}
	}
	return n
}

func (l *RecordingLogger) Debug(msg string, args ...interface{}) { l.add("DEBUG", msg, args) }
func (l *RecordingLogger) Info(msg string, args ...interface{})  { l.add("INFO", msg, args) }
func (l *RecordingLogger) Warn(msg string, args ...interface{})  { l.add("WARN", msg, args) }
func (l *RecordingLogger) Error(msg string, args ...interface{}) { l.add("ERROR", msg, args) }
func (l *RecordingLogger) Fatal(msg string, args ...interface{}) { l.add("FATAL", msg, args) }
