// This file is part of Gopher2600.
//
// Gopher2600 is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Gopher2600 is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Gopher2600.  If not, see <https://www.gnu.org/licenses/>.

// Package logger implements a small ring-buffered logging facility. Entries
// are tagged and gated by a Permission, so a caller can decide at the call
// site whether a particular class of log entry is currently of interest
// without the logger itself knowing anything about verbosity levels.
package logger

import (
	"fmt"
	"io"
	"strings"
	"sync"
)

// Permission gates whether a log entry is recorded at all.
type Permission interface {
	AllowLogging() bool
}

// allowPermission always allows logging. Exported as Allow below.
type allowPermission struct{}

func (allowPermission) AllowLogging() bool {
	return true
}

// Allow is a Permission that is always granted.
var Allow = allowPermission{}

type entry struct {
	tag    string
	detail string
}

func (e entry) String() string {
	return fmt.Sprintf("%s: %s\n", e.tag, e.detail)
}

// Log is a capped ring buffer of log entries.
type Log struct {
	crit     sync.Mutex
	entries  []entry
	capacity int
	start    int
	count    int
}

// NewLogger creates a Log with room for capacity entries. Once full, the
// oldest entry is discarded to make room for a new one.
func NewLogger(capacity int) *Log {
	if capacity < 1 {
		capacity = 1
	}
	return &Log{
		entries:  make([]entry, capacity),
		capacity: capacity,
	}
}

func formatDetail(detail interface{}) string {
	switch v := detail.(type) {
	case error:
		return v.Error()
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}

// Log records detail under tag, provided permission allows it.
func (l *Log) Log(permission Permission, tag string, detail interface{}) {
	if permission == nil || !permission.AllowLogging() {
		return
	}

	l.crit.Lock()
	defer l.crit.Unlock()

	idx := (l.start + l.count) % l.capacity
	l.entries[idx] = entry{tag: tag, detail: formatDetail(detail)}
	if l.count < l.capacity {
		l.count++
	} else {
		l.start = (l.start + 1) % l.capacity
	}
}

// Logf records a formatted detail string under tag, provided permission
// allows it.
func (l *Log) Logf(permission Permission, tag string, format string, args ...interface{}) {
	if permission == nil || !permission.AllowLogging() {
		return
	}
	l.Log(permission, tag, fmt.Sprintf(format, args...))
}

// Write writes every recorded entry, oldest first, to w.
func (l *Log) Write(w io.Writer) {
	l.crit.Lock()
	defer l.crit.Unlock()
	l.writeTail(w, l.count)
}

// Tail writes the most recent n entries, oldest first, to w. Asking for more
// entries than are recorded is not an error; every recorded entry is
// written. Asking for zero writes nothing.
func (l *Log) Tail(w io.Writer, n int) {
	l.crit.Lock()
	defer l.crit.Unlock()
	l.writeTail(w, n)
}

// writeTail does the work of Tail; the caller holds l.crit.
func (l *Log) writeTail(w io.Writer, n int) {
	count := l.count
	if n < count {
		count = n
	}

	s := strings.Builder{}
	for i := l.count - count; i < l.count; i++ {
		idx := (l.start + i) % l.capacity
		s.WriteString(l.entries[idx].String())
	}
	w.Write([]byte(s.String()))
}

// Clear empties the log.
func (l *Log) Clear() {
	l.crit.Lock()
	defer l.crit.Unlock()
	l.start = 0
	l.count = 0
}

// central is the package-level default logger, retained for call sites that
// predate the per-instance Log type.
var central = NewLogger(1000)

// Log records detail under tag on the central logger, always allowed.
func Log(tag string, detail interface{}) {
	central.Log(Allow, tag, detail)
}

// Logf records a formatted detail string under tag on the central logger.
func Logf(tag string, format string, args ...interface{}) {
	central.Logf(Allow, tag, format, args...)
}

// Write writes the central logger's entries to w.
func Write(w io.Writer) {
	central.Write(w)
}

// Tail writes the central logger's most recent n entries to w.
func Tail(w io.Writer, n int) {
	central.Tail(w, n)
}

// Clear empties the central logger.
func Clear() {
	central.Clear()
}
