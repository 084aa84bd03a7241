// Package stats tracks the rolling daily post counter and the
// provider-reported posting quota, persisted between restarts.
package stats

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const logPrefix = "[stats]"

// QuotaUnknown marks the provider quota as not yet observed.
const QuotaUnknown = -1

type statsFile struct {
	PostsToday     int       `json:"posts_today"`
	LastReset      string    `json:"last_reset"` // UTC calendar date, 2006-01-02
	RemainingQuota int       `json:"remaining_quota"`
	QuotaResetAt   time.Time `json:"quota_reset_at,omitempty"`
}

// Store owns the persisted post statistics. All mutations rewrite the file.
type Store struct {
	mu   sync.Mutex
	path string
	data statsFile

	now func() time.Time
}

// Open loads the statistics from path, tolerating a missing or corrupt file.
func Open(path string) *Store {
	s := &Store{
		path: path,
		data: statsFile{RemainingQuota: QuotaUnknown},
		now:  time.Now,
	}

	b, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("%s read %s failed: %v, starting fresh", logPrefix, path, err)
		}
		return s
	}
	var f statsFile
	if err := json.Unmarshal(b, &f); err != nil {
		log.Printf("%s corrupt stats at %s: %v, starting fresh", logPrefix, path, err)
		return s
	}
	if f.RemainingQuota == 0 && f.LastReset == "" {
		f.RemainingQuota = QuotaUnknown
	}
	s.data = f
	return s
}

func (s *Store) dateOf(t time.Time) string { return t.UTC().Format("2006-01-02") }

// rolloverLocked resets the daily counter when the UTC calendar date has
// changed. Returns true when a rollover happened.
func (s *Store) rolloverLocked() bool {
	today := s.dateOf(s.now())
	if s.data.LastReset == today {
		return false
	}
	s.data.PostsToday = 0
	s.data.LastReset = today
	return true
}

// Refresh applies the date rollover and reports whether a new day started.
func (s *Store) Refresh() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	rolled := s.rolloverLocked()
	if rolled {
		if err := s.saveLocked(); err != nil {
			log.Printf("%s persist failed: %v", logPrefix, err)
		}
	}
	return rolled
}

// PostsToday returns today's successful post count.
func (s *Store) PostsToday() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rolloverLocked()
	return s.data.PostsToday
}

// IncrementPosts records one successful post.
func (s *Store) IncrementPosts() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rolloverLocked()
	s.data.PostsToday++
	if err := s.saveLocked(); err != nil {
		log.Printf("%s persist failed: %v", logPrefix, err)
	}
}

// SetQuota records the provider-reported remaining quota from response
// headers.
func (s *Store) SetQuota(remaining int, resetAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.RemainingQuota = remaining
	if !resetAt.IsZero() {
		s.data.QuotaResetAt = resetAt
	}
	if err := s.saveLocked(); err != nil {
		log.Printf("%s persist failed: %v", logPrefix, err)
	}
}

// RemainingQuota returns the last provider-reported quota, or QuotaUnknown.
func (s *Store) RemainingQuota() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.RemainingQuota
}

// QuotaExhausted reports whether the provider said no posts remain. An
// unknown quota is not exhaustion.
func (s *Store) QuotaExhausted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.RemainingQuota == 0
}

func (s *Store) saveLocked() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	b, err := json.Marshal(s.data)
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}
