package ai

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestCleanResponse(t *testing.T) {
	cases := map[string]string{
		`"Quoted summary text"`:                    "Quoted summary text",
		"Summary: markets rallied today":           "markets rallied today",
		"**Bold** and *starred* words":             "Bold and starred words",
		"Too   many\n\nspaces   here":              "Too many spaces here",
		"Headline - AI wins again":                 "AI wins again",
		"\U0001F525 Markets on fire \U0001F680":    "Markets on fire",
		"```json\n{\"score\": 8}\n```":             `{"score": 8}`,
	}
	for in, want := range cases {
		if got := CleanResponse(in); got != want {
			t.Fatalf("CleanResponse(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFirstJSONObject(t *testing.T) {
	in := `Sure! Here is the result: {"score": 8.5, "feedback": "good {detail}"} hope that helps`
	got := FirstJSONObject(in)
	want := `{"score": 8.5, "feedback": "good {detail}"}`
	if got != want {
		t.Fatalf("FirstJSONObject = %q, want %q", got, want)
	}

	if got := FirstJSONObject("no json here"); got != "" {
		t.Fatalf("expected empty extraction, got %q", got)
	}

	nested := `{"a": {"b": 1}} trailing {"c": 2}`
	if got := FirstJSONObject(nested); got != `{"a": {"b": 1}}` {
		t.Fatalf("expected first balanced object, got %q", got)
	}

	withBraceInString := `{"msg": "uses } inside", "n": 1}`
	if got := FirstJSONObject(withBraceInString); got != withBraceInString {
		t.Fatalf("brace inside string mishandled: %q", got)
	}
}

func TestEvaluate_MalformedOutputYieldsOptimisticDefault(t *testing.T) {
	primary := &fakeProv{name: "p", out: "I think it's pretty good overall!"}
	g := NewGateway(primary, nil)

	res := g.Evaluate(context.Background(), "summary", nil)
	if !res.Passed || res.Score != DefaultEvalScore {
		t.Fatalf("expected optimistic default, got %+v", res)
	}
}

func TestEvaluate_ParsesScore(t *testing.T) {
	primary := &fakeProv{name: "p", out: `{"score": 4, "feedback": "too vague"}`}
	g := NewGateway(primary, nil)

	res := g.Evaluate(context.Background(), "summary", nil)
	if res.Passed || res.Score != 4 || res.Feedback != "too vague" {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestKeywordUrgency(t *testing.T) {
	if !KeywordUrgency([]string{"LIVE: World Cup final underway in extra time"}) {
		t.Fatalf("expected live+major-event co-occurrence to trip")
	}
	if KeywordUrgency([]string{"Breaking news about a local bakery"}) {
		t.Fatalf("live marker without major event must not trip")
	}
	if KeywordUrgency([]string{"Election results certified last month"}) {
		t.Fatalf("major event without live marker must not trip")
	}
}

func TestAssessUrgency_KeywordShortCircuit(t *testing.T) {
	primary := &fakeProv{name: "p", err: errors.New("must not be called")}
	g := NewGateway(primary, nil)

	a := g.AssessUrgency(context.Background(), []string{"Breaking: election night coverage"}, time.Hour)
	if a.Tier != UrgencyLive || a.Interval != LiveInterval {
		t.Fatalf("expected live short-circuit, got %+v", a)
	}
	if primary.calls != 0 {
		t.Fatalf("keyword heuristic must not call the model")
	}
}

func TestAssessUrgency_ParsesModelSuggestion(t *testing.T) {
	primary := &fakeProv{name: "p", out: `{"urgency": "high", "interval_minutes": 20}`}
	g := NewGateway(primary, nil)

	a := g.AssessUrgency(context.Background(), []string{"Quiet afternoon in tech"}, time.Hour)
	if a.Tier != UrgencyHigh || a.Interval != 20*time.Minute {
		t.Fatalf("unexpected assessment: %+v", a)
	}
}
