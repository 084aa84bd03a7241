// Package schedule drives recurring pipeline runs on a dynamic interval with
// daily-quota enforcement.
package schedule

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/imhkr/hourlysignal/internal/ai"
	"github.com/imhkr/hourlysignal/internal/config"
	"github.com/imhkr/hourlysignal/internal/news"
	"github.com/imhkr/hourlysignal/internal/pipeline"
)

const logPrefix = "[scheduler]"

const (
	// InactiveRecheck is the wait before re-reading remote config while the
	// bot is switched off.
	InactiveRecheck = 5 * time.Minute
	// QuotaRecheck is the wait while the daily cap or the provider quota
	// blocks posting.
	QuotaRecheck = time.Hour
	// urgencySampleSize bounds the headline sample fed to urgency assessment.
	urgencySampleSize = 5
)

// ConfigSource provides the current remote snapshot.
type ConfigSource interface {
	Fetch(ctx context.Context) config.Snapshot
}

// Runner executes one pipeline cycle.
type Runner interface {
	Run(ctx context.Context) (pipeline.RunReport, error)
}

// StatsSource exposes the daily counter and provider quota.
type StatsSource interface {
	Refresh() bool
	PostsToday() int
	QuotaExhausted() bool
}

// HeadlineSource samples current headlines without spending keyed-provider
// quota.
type HeadlineSource interface {
	Sample(ctx context.Context, category news.Category, n int) ([]string, error)
}

// UrgencyModel classifies a headline sample into a suggested interval.
type UrgencyModel interface {
	AssessUrgency(ctx context.Context, headlines []string, configured time.Duration) ai.Assessment
}

// CycleResetter is anything whose per-cycle state resets at the UTC day
// boundary, like exhausted credential pools.
type CycleResetter interface {
	ResetCycle()
}

// Scheduler runs the pipeline on a one-shot timer that is re-armed after
// every wake-up, so interval changes in remote config take effect on the
// next cycle.
type Scheduler struct {
	cfg       ConfigSource
	pipe      Runner
	stats     StatsSource
	headlines HeadlineSource
	urgency   UrgencyModel
	resets    []CycleResetter

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) bool
}

func New(cfg ConfigSource, pipe Runner, stats StatsSource, headlines HeadlineSource, urgency UrgencyModel, resets []CycleResetter) *Scheduler {
	return &Scheduler{
		cfg:       cfg,
		pipe:      pipe,
		stats:     stats,
		headlines: headlines,
		urgency:   urgency,
		resets:    resets,
		now:       time.Now,
		sleep:     sleepWithContext,
	}
}

// Run loops until the context is cancelled: decide whether this wake-up may
// post, run the pipeline if so, then sleep until the next wake-up.
func (s *Scheduler) Run(ctx context.Context) error {
	log.Printf("%s starting", logPrefix)
	for {
		wait, run, reason := s.decide(ctx)
		if run {
			if report, err := s.pipe.Run(ctx); err != nil {
				log.Printf("%s cycle failed: %v", logPrefix, err)
			} else if !report.Success {
				log.Printf("%s cycle skipped: %s", logPrefix, report.Reason)
			}
		} else {
			log.Printf("%s not posting: %s", logPrefix, reason)
		}

		log.Printf("%s next wake-up at %s (in %s)", logPrefix, s.now().Add(wait).Format("15:04:05 MST"), wait)
		if !s.sleep(ctx, wait) {
			log.Printf("%s stopping: %v", logPrefix, ctx.Err())
			return ctx.Err()
		}
	}
}

// RunOnce runs a single cycle immediately, bypassing the timer but not the
// pipeline's own guards.
func (s *Scheduler) RunOnce(ctx context.Context) (pipeline.RunReport, error) {
	return s.pipe.Run(ctx)
}

// decide computes whether this wake-up may run the pipeline and how long to
// sleep afterwards. Urgency can only shorten the configured interval, never
// stretch it.
func (s *Scheduler) decide(ctx context.Context) (time.Duration, bool, string) {
	if s.stats.Refresh() {
		log.Printf("%s new UTC day, resetting credential cycles", logPrefix)
		for _, r := range s.resets {
			r.ResetCycle()
		}
	}

	snap := s.cfg.Fetch(ctx)
	if !snap.Active {
		return InactiveRecheck, false, "bot inactive"
	}
	if s.stats.QuotaExhausted() {
		return QuotaRecheck, false, "provider quota exhausted"
	}
	if s.stats.PostsToday() >= snap.MaxDailyPosts {
		return QuotaRecheck, false, "daily post cap reached"
	}

	interval := time.Duration(snap.IntervalMinutes) * time.Minute
	if suggested, tier, ok := s.assessUrgency(ctx, snap, interval); ok && suggested < interval {
		log.Printf("%s urgency=%s shortens interval %s -> %s", logPrefix, tier, interval, suggested)
		interval = suggested
	}
	return interval, true, ""
}

// assessUrgency samples keyless headlines for the first configured category
// and asks the urgency model for a suggested interval. News mode only: a
// custom-topic post has no reason to speed up for unrelated breaking news.
// Best-effort: any failure keeps the configured interval.
func (s *Scheduler) assessUrgency(ctx context.Context, snap config.Snapshot, configured time.Duration) (time.Duration, string, bool) {
	if snap.Mode == config.ModeTopic && strings.TrimSpace(snap.CustomTopic) != "" {
		return 0, "", false
	}
	if s.headlines == nil || s.urgency == nil || len(snap.Categories) == 0 {
		return 0, "", false
	}

	headlines, err := s.headlines.Sample(ctx, news.ParseCategory(snap.Categories[0]), urgencySampleSize)
	if err != nil || len(headlines) == 0 {
		if err != nil {
			log.Printf("%s headline sample failed: %v", logPrefix, err)
		}
		return 0, "", false
	}

	a := s.urgency.AssessUrgency(ctx, headlines, configured)
	if a.Interval <= 0 {
		return 0, "", false
	}
	return a.Interval, a.Tier, true
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
