package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// Urgency tiers drive the scheduler's interval selection.
const (
	UrgencyNormal = "normal"
	UrgencyHigh   = "high"
	UrgencyLive   = "live"
)

// LiveInterval is the suggested interval for the highest urgency tier.
const LiveInterval = 10 * time.Minute

// Assessment is the urgency verdict for a headline sample.
type Assessment struct {
	Tier     string
	Interval time.Duration
}

// liveKeywords and majorEventKeywords must co-occur in one headline for the
// pure-heuristic short circuit.
var liveKeywords = []string{"live", "breaking", "underway"}
var majorEventKeywords = []string{"final", "world cup", "election", "olympic", "inauguration"}

// KeywordUrgency is the pure heuristic: a headline pairing a live marker
// with a major-event term reports the highest tier without an LLM call.
func KeywordUrgency(headlines []string) bool {
	for _, h := range headlines {
		l := strings.ToLower(h)
		hasLive := false
		for _, k := range liveKeywords {
			if strings.Contains(l, k) {
				hasLive = true
				break
			}
		}
		if !hasLive {
			continue
		}
		for _, k := range majorEventKeywords {
			if strings.Contains(l, k) {
				return true
			}
		}
	}
	return false
}

// AssessUrgency classifies current content into an urgency tier with a
// suggested posting interval. The keyword heuristic short-circuits the LLM.
func (g *Gateway) AssessUrgency(ctx context.Context, headlines []string, configured time.Duration) Assessment {
	if KeywordUrgency(headlines) {
		return Assessment{Tier: UrgencyLive, Interval: LiveInterval}
	}

	prompt := fmt.Sprintf(
		"Assess the urgency of these current headlines for a news account posting every %d minutes. "+
			`Reply with JSON only: {"urgency": "normal|high|live", "interval_minutes": <number>}`+
			"\n\nHeadlines:\n- %s",
		int(configured.Minutes()), strings.Join(headlines, "\n- "),
	)
	raw := g.Generate(ctx, prompt)

	obj := FirstJSONObject(raw)
	if obj == "" || !gjson.Valid(obj) {
		return Assessment{Tier: UrgencyNormal, Interval: configured}
	}

	tier := strings.ToLower(gjson.Get(obj, "urgency").String())
	switch tier {
	case UrgencyHigh, UrgencyLive:
	default:
		tier = UrgencyNormal
	}

	interval := configured
	if m := gjson.Get(obj, "interval_minutes"); m.Exists() && m.Int() > 0 {
		interval = time.Duration(m.Int()) * time.Minute
	}
	return Assessment{Tier: tier, Interval: interval}
}
