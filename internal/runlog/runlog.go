// Package runlog holds the ordered, append-only report log for one run.
// It replaces the usual "global slice of lines" with a value passed by
// reference to every component that emits report-worthy events. Line order
// equals chronological event order; the log is joined and flushed exactly
// once at the end of the run.
package runlog

import (
	"fmt"
	"strings"
	"sync"
)

type Log struct {
	mu    sync.Mutex
	lines []string
}

func New() *Log {
	return &Log{}
}

func (l *Log) Append(line string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, line)
}

func (l *Log) Appendf(format string, args ...interface{}) {
	l.Append(fmt.Sprintf(format, args...))
}

// Lines returns a copy; callers cannot reorder or mutate the log.
func (l *Log) Lines() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.lines))
	copy(out, l.lines)
	return out
}

func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.lines)
}

func (l *Log) String() string {
	return strings.Join(l.Lines(), "\n")
}
