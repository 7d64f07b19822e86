package logx

import (
	"github.com/cyclopcam/logs"
)

// PrefixLogger writes to the underlying log, but all messages are prefixed with a string of your choice.
// It can also throttle repeated messages, which matters for code that runs on every model tick.
type PrefixLogger struct {
	Log    logs.Log
	Prefix string

	// Keys of throttled messages that have been emitted, and how many repeats were swallowed
	suppressed map[string]int
}

// Create a new PrefixLogger. A space is added after prefix.
func NewPrefixLogger(log logs.Log, prefix string) *PrefixLogger {
	return &PrefixLogger{
		Log:        log,
		Prefix:     prefix + " ",
		suppressed: map[string]int{},
	}
}

func (l *PrefixLogger) Debugf(format string, a ...any) {
	l.Log.Debugf(l.Prefix+format, a...)
}

func (l *PrefixLogger) Infof(format string, a ...any) {
	l.Log.Infof(l.Prefix+format, a...)
}

func (l *PrefixLogger) Warnf(format string, a ...any) {
	l.Log.Warnf(l.Prefix+format, a...)
}

func (l *PrefixLogger) Errorf(format string, a ...any) {
	l.Log.Errorf(l.Prefix+format, a...)
}

// WarnOncef emits a warning the first time 'key' is seen, and swallows repeats until Clear(key).
// Returns true if the message was written.
func (l *PrefixLogger) WarnOncef(key, format string, a ...any) bool {
	if n, ok := l.suppressed[key]; ok {
		l.suppressed[key] = n + 1
		return false
	}
	l.suppressed[key] = 0
	l.Warnf(format, a...)
	return true
}

// Clear re-arms WarnOncef for 'key'. If any repeats were swallowed, we say how many.
func (l *PrefixLogger) Clear(key string) {
	n, ok := l.suppressed[key]
	if !ok {
		return
	}
	delete(l.suppressed, key)
	if n != 0 {
		l.Infof("'%v' cleared after %v repeats", key, n)
	}
}

// Suppressed returns the number of swallowed repeats of 'key'
func (l *PrefixLogger) Suppressed(key string) int {
	return l.suppressed[key]
}
