package ai

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeProv struct {
	name  string
	out   string
	err   error
	calls int
}

func (f *fakeProv) Name() string { return f.name }

func (f *fakeProv) Generate(ctx context.Context, prompt string) (string, error) {
	f.calls++
	return f.out, f.err
}

func TestGateway_PrimaryFirst(t *testing.T) {
	primary := &fakeProv{name: "p", out: "from primary"}
	secondary := &fakeProv{name: "s", out: "from secondary"}
	g := NewGateway(primary, secondary)

	if got := g.Generate(context.Background(), "anything"); got != "from primary" {
		t.Fatalf("unexpected output: %q", got)
	}
	if secondary.calls != 0 {
		t.Fatalf("secondary must not be called when primary succeeds")
	}
}

func TestGateway_FallsBackToSecondary(t *testing.T) {
	primary := &fakeProv{name: "p", err: errors.New("boom")}
	secondary := &fakeProv{name: "s", out: "from secondary"}
	g := NewGateway(primary, secondary)

	if got := g.Generate(context.Background(), "anything"); got != "from secondary" {
		t.Fatalf("unexpected output: %q", got)
	}
}

func TestGateway_RateLimitOpensCircuitForCooldown(t *testing.T) {
	now := time.Now()
	primary := &fakeProv{name: "p", err: errors.New("boom")}
	secondary := &fakeProv{name: "s", err: errors.New("429 too many requests")}
	g := NewGateway(primary, secondary)
	g.circuit.now = func() time.Time { return now }

	g.Generate(context.Background(), "write a headline")
	if secondary.calls != 1 {
		t.Fatalf("expected one secondary attempt, got %d", secondary.calls)
	}

	// Within the cooldown window the secondary is never reached.
	g.Generate(context.Background(), "write a headline")
	if secondary.calls != 1 {
		t.Fatalf("circuit open: secondary must not be called, got %d calls", secondary.calls)
	}

	// After the cooldown the provider is attempted again.
	now = now.Add(rateLimitCooldown + time.Second)
	secondary.err = nil
	secondary.out = "recovered"
	if got := g.Generate(context.Background(), "write a headline"); got != "recovered" {
		t.Fatalf("expected recovery after cooldown, got %q", got)
	}
}

func TestGateway_ConsecutiveFailuresOpenCircuit(t *testing.T) {
	now := time.Now()
	primary := &fakeProv{name: "p", err: errors.New("down")}
	secondary := &fakeProv{name: "s", err: errors.New("internal error")}
	g := NewGateway(primary, secondary)
	g.circuit.now = func() time.Time { return now }

	for i := 0; i < failureThreshold; i++ {
		g.Generate(context.Background(), "x")
	}
	if secondary.calls != failureThreshold {
		t.Fatalf("expected %d attempts before opening, got %d", failureThreshold, secondary.calls)
	}

	g.Generate(context.Background(), "x")
	if secondary.calls != failureThreshold {
		t.Fatalf("circuit should be open after %d failures", failureThreshold)
	}

	now = now.Add(failureCooldown + time.Second)
	g.Generate(context.Background(), "x")
	if secondary.calls != failureThreshold+1 {
		t.Fatalf("expected retry after failure cooldown, got %d", secondary.calls)
	}
}

func TestGateway_StaticFallbackMatchesIntent(t *testing.T) {
	primary := &fakeProv{name: "p", err: errors.New("down")}
	g := NewGateway(primary, nil)

	if got := g.Generate(context.Background(), "Write a punchy headline for these stories"); got != FallbackHeadline {
		t.Fatalf("expected headline fallback, got %q", got)
	}
	if got := g.Generate(context.Background(), "Evaluate this summary and score it 0-10"); got != FallbackScoreJSON {
		t.Fatalf("expected score fallback, got %q", got)
	}
	if got := g.Generate(context.Background(), "Assess the urgency of these headlines"); got != FallbackUrgency {
		t.Fatalf("expected urgency fallback, got %q", got)
	}
}

func TestGateway_SecondaryCircuitOpenAndPrimaryDown_ReturnsIntentDefault(t *testing.T) {
	now := time.Now()
	primary := &fakeProv{name: "p", err: errors.New("down")}
	secondary := &fakeProv{name: "s", err: errors.New("429 too many requests")}
	g := NewGateway(primary, secondary)
	g.circuit.now = func() time.Time { return now }

	// First call opens the secondary's circuit.
	g.Generate(context.Background(), "anything")

	got := g.Generate(context.Background(), "Write a punchy headline please")
	if got != FallbackHeadline {
		t.Fatalf("expected headline default with open circuit, got %q", got)
	}
}
