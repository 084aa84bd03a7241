package memory

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLog_AppendAndRecentFeedback(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memory.json")
	l := OpenLog(path)

	for i := 0; i < 5; i++ {
		l.Append(Entry{
			Timestamp: time.Now(),
			Category:  "tech",
			Feedback:  fmt.Sprintf("feedback-%d", i),
		})
	}
	l.Append(Entry{Timestamp: time.Now(), Category: "sports", Feedback: "other"})

	got := l.RecentFeedback("tech", 3)
	if len(got) != 3 || got[2] != "feedback-4" {
		t.Fatalf("unexpected recent feedback: %v", got)
	}
}

func TestLog_CapEvictsOldest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memory.json")
	l := OpenLog(path)

	for i := 0; i < MaxEntries+10; i++ {
		l.Append(Entry{Category: "tech", Feedback: fmt.Sprintf("f-%d", i)})
	}
	if l.Len() != MaxEntries {
		t.Fatalf("expected cap at %d, got %d", MaxEntries, l.Len())
	}

	recent := l.RecentFeedback("tech", 1)
	if len(recent) != 1 || recent[0] != fmt.Sprintf("f-%d", MaxEntries+9) {
		t.Fatalf("unexpected newest entry: %v", recent)
	}
}

func TestLog_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memory.json")
	l := OpenLog(path)
	l.Append(Entry{Category: "tech", Feedback: "kept"})

	reopened := OpenLog(path)
	got := reopened.RecentFeedback("tech", 1)
	if len(got) != 1 || got[0] != "kept" {
		t.Fatalf("expected entry to survive reopen, got %v", got)
	}
}

func TestLog_CorruptFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memory.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	l := OpenLog(path)
	if l.Len() != 0 {
		t.Fatalf("expected empty log from corrupt file, got %d", l.Len())
	}
}
