package schedule

import (
	"context"
	"testing"
	"time"

	"github.com/imhkr/hourlysignal/internal/ai"
	"github.com/imhkr/hourlysignal/internal/config"
	"github.com/imhkr/hourlysignal/internal/news"
	"github.com/imhkr/hourlysignal/internal/pipeline"
)

type fakeCfg struct{ snap config.Snapshot }

func (f *fakeCfg) Fetch(ctx context.Context) config.Snapshot { return f.snap }

type fakeRunner struct{ runs int }

func (f *fakeRunner) Run(ctx context.Context) (pipeline.RunReport, error) {
	f.runs++
	return pipeline.RunReport{Success: true}, nil
}

type fakeStats struct {
	posts     int
	exhausted bool
	rollover  bool
}

func (f *fakeStats) Refresh() bool {
	r := f.rollover
	f.rollover = false
	return r
}
func (f *fakeStats) PostsToday() int { return f.posts }

func (f *fakeStats) QuotaExhausted() bool { return f.exhausted }

type fakeHeadlines struct {
	headlines []string
	err       error
	samples   int
}

func (f *fakeHeadlines) Sample(ctx context.Context, category news.Category, n int) ([]string, error) {
	f.samples++
	return f.headlines, f.err
}

type fakeUrgency struct{ assessment ai.Assessment }

func (f *fakeUrgency) AssessUrgency(ctx context.Context, headlines []string, configured time.Duration) ai.Assessment {
	return f.assessment
}

type fakeResetter struct{ resets int }

func (f *fakeResetter) ResetCycle() { f.resets++ }

func newTestScheduler(cfg *fakeCfg, r *fakeRunner, st *fakeStats, h HeadlineSource, u UrgencyModel, resets []CycleResetter) *Scheduler {
	s := New(cfg, r, st, h, u, resets)
	s.now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
	return s
}

// runIterations runs the loop for n wake-ups by cancelling via the injected
// sleep, and returns the recorded waits.
func runIterations(t *testing.T, s *Scheduler, n int) []time.Duration {
	t.Helper()
	var waits []time.Duration
	s.sleep = func(ctx context.Context, d time.Duration) bool {
		waits = append(waits, d)
		return len(waits) < n
	}
	if err := s.Run(context.Background()); err != nil {
		// ctx.Err() is nil here; Run returns it verbatim after a refused sleep.
		t.Fatalf("Run returned unexpected error: %v", err)
	}
	return waits
}

func activeSnap(intervalMinutes, maxPosts int) config.Snapshot {
	snap := config.DefaultSnapshot()
	snap.IntervalMinutes = intervalMinutes
	snap.MaxDailyPosts = maxPosts
	return snap
}

func TestScheduler_InactiveRechecksInFiveMinutes(t *testing.T) {
	snap := activeSnap(60, 24)
	snap.Active = false
	r := &fakeRunner{}
	s := newTestScheduler(&fakeCfg{snap: snap}, r, &fakeStats{}, nil, nil, nil)

	waits := runIterations(t, s, 1)
	if waits[0] != InactiveRecheck {
		t.Fatalf("expected %s recheck, got %s", InactiveRecheck, waits[0])
	}
	if r.runs != 0 {
		t.Fatalf("inactive scheduler must not run the pipeline")
	}
}

func TestScheduler_DailyCapWaitsAnHour(t *testing.T) {
	r := &fakeRunner{}
	st := &fakeStats{posts: 24}
	s := newTestScheduler(&fakeCfg{snap: activeSnap(60, 24)}, r, st, nil, nil, nil)

	waits := runIterations(t, s, 1)
	if waits[0] != QuotaRecheck {
		t.Fatalf("expected %s wait at the daily cap, got %s", QuotaRecheck, waits[0])
	}
	if r.runs != 0 {
		t.Fatalf("capped scheduler must not run the pipeline")
	}
}

func TestScheduler_ProviderQuotaExhaustedWaitsAnHour(t *testing.T) {
	r := &fakeRunner{}
	s := newTestScheduler(&fakeCfg{snap: activeSnap(60, 24)}, r, &fakeStats{exhausted: true}, nil, nil, nil)

	waits := runIterations(t, s, 1)
	if waits[0] != QuotaRecheck || r.runs != 0 {
		t.Fatalf("expected quota wait without a run, got wait=%s runs=%d", waits[0], r.runs)
	}
}

func TestScheduler_RunsAndWaitsConfiguredInterval(t *testing.T) {
	r := &fakeRunner{}
	s := newTestScheduler(&fakeCfg{snap: activeSnap(45, 24)}, r, &fakeStats{}, nil, nil, nil)

	waits := runIterations(t, s, 2)
	if r.runs != 2 {
		t.Fatalf("expected 2 runs, got %d", r.runs)
	}
	for _, w := range waits {
		if w != 45*time.Minute {
			t.Fatalf("expected 45m interval, got %s", w)
		}
	}
}

func TestScheduler_UrgencyOnlyShortens(t *testing.T) {
	h := &fakeHeadlines{headlines: []string{"Breaking: final underway"}}

	// Suggested shorter than configured: adopt it.
	u := &fakeUrgency{assessment: ai.Assessment{Tier: ai.UrgencyLive, Interval: 10 * time.Minute}}
	s := newTestScheduler(&fakeCfg{snap: activeSnap(60, 24)}, &fakeRunner{}, &fakeStats{}, h, u, nil)
	if waits := runIterations(t, s, 1); waits[0] != 10*time.Minute {
		t.Fatalf("expected shortened interval, got %s", waits[0])
	}

	// Suggested longer than configured: ignore it.
	u = &fakeUrgency{assessment: ai.Assessment{Tier: ai.UrgencyNormal, Interval: 90 * time.Minute}}
	s = newTestScheduler(&fakeCfg{snap: activeSnap(60, 24)}, &fakeRunner{}, &fakeStats{}, h, u, nil)
	if waits := runIterations(t, s, 1); waits[0] != 60*time.Minute {
		t.Fatalf("urgency must never stretch the interval, got %s", waits[0])
	}
}

func TestScheduler_TopicModeSkipsUrgency(t *testing.T) {
	snap := activeSnap(60, 24)
	snap.Mode = config.ModeTopic
	snap.CustomTopic = "deep sea exploration"

	h := &fakeHeadlines{headlines: []string{"Breaking: final underway"}}
	u := &fakeUrgency{assessment: ai.Assessment{Tier: ai.UrgencyLive, Interval: 10 * time.Minute}}
	s := newTestScheduler(&fakeCfg{snap: snap}, &fakeRunner{}, &fakeStats{}, h, u, nil)

	if waits := runIterations(t, s, 1); waits[0] != 60*time.Minute {
		t.Fatalf("topic mode must keep the configured interval, got %s", waits[0])
	}
	if h.samples != 0 {
		t.Fatalf("topic mode must not sample headlines, got %d samples", h.samples)
	}
}

func TestScheduler_SampleFailureKeepsConfiguredInterval(t *testing.T) {
	h := &fakeHeadlines{err: context.DeadlineExceeded}
	u := &fakeUrgency{assessment: ai.Assessment{Tier: ai.UrgencyLive, Interval: time.Minute}}
	s := newTestScheduler(&fakeCfg{snap: activeSnap(60, 24)}, &fakeRunner{}, &fakeStats{}, h, u, nil)

	if waits := runIterations(t, s, 1); waits[0] != 60*time.Minute {
		t.Fatalf("sample failure must keep the configured interval, got %s", waits[0])
	}
}

func TestScheduler_DayRolloverResetsCredentialCycles(t *testing.T) {
	reset := &fakeResetter{}
	st := &fakeStats{rollover: true}
	s := newTestScheduler(&fakeCfg{snap: activeSnap(60, 24)}, &fakeRunner{}, st, nil, nil, []CycleResetter{reset})

	runIterations(t, s, 2)
	if reset.resets != 1 {
		t.Fatalf("expected exactly one cycle reset, got %d", reset.resets)
	}
}
