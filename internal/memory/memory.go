// Package memory keeps a bounded, persisted log of refine feedback. It is
// surfaced as context to the refine stage and never consulted for
// correctness.
package memory

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const logPrefix = "[memory]"

// MaxEntries caps the log; the oldest entries are evicted first.
const MaxEntries = 50

// Entry records one failed evaluation and its refinement.
type Entry struct {
	Timestamp time.Time `json:"timestamp"`
	Category  string    `json:"category"`
	Original  string    `json:"original"`
	Feedback  string    `json:"feedback"`
	Refined   string    `json:"refined"`
	Delta     float64   `json:"delta"`
}

type logFile struct {
	Entries []Entry `json:"entries"`
}

// Log is the append-only feedback log, rewritten to disk after every
// mutation.
type Log struct {
	mu      sync.Mutex
	path    string
	entries []Entry
	max     int
}

// OpenLog loads the log from path, tolerating a missing or corrupt file.
func OpenLog(path string) *Log {
	l := &Log{path: path, max: MaxEntries}

	b, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("%s read %s failed: %v, starting empty", logPrefix, path, err)
		}
		return l
	}
	var f logFile
	if err := json.Unmarshal(b, &f); err != nil {
		log.Printf("%s corrupt log at %s: %v, starting empty", logPrefix, path, err)
		return l
	}
	l.entries = f.Entries
	if len(l.entries) > l.max {
		l.entries = l.entries[len(l.entries)-l.max:]
	}
	return l
}

// Append adds an entry, evicting the oldest past the cap, and persists.
func (l *Log) Append(e Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = append(l.entries, e)
	if len(l.entries) > l.max {
		l.entries = append([]Entry(nil), l.entries[len(l.entries)-l.max:]...)
	}
	if err := l.saveLocked(); err != nil {
		log.Printf("%s persist failed: %v", logPrefix, err)
	}
}

// RecentFeedback returns up to n most recent feedback lines for a category,
// newest last.
func (l *Log) RecentFeedback(category string, n int) []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []string
	for _, e := range l.entries {
		if e.Category == category && e.Feedback != "" {
			out = append(out, e.Feedback)
		}
	}
	if len(out) > n {
		out = out[len(out)-n:]
	}
	return out
}

// Len reports the current entry count.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func (l *Log) saveLocked() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return err
	}
	b, err := json.Marshal(logFile{Entries: l.entries})
	if err != nil {
		return err
	}
	tmp := l.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, l.path)
}
