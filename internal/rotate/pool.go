package rotate

import (
	"errors"
	"sync"
)

// ErrAllKeysExhausted is returned once every credential in the pool has been
// marked exhausted for the current cycle.
var ErrAllKeysExhausted = errors.New("all api keys exhausted")

// Pool is an ordered set of interchangeable API credentials with a
// round-robin cursor and per-cycle exhaustion marks.
type Pool struct {
	mu        sync.Mutex
	keys      []string
	cursor    int
	exhausted map[int]struct{}
}

func NewPool(keys []string) *Pool {
	return &Pool{
		keys:      append([]string(nil), keys...),
		exhausted: make(map[int]struct{}, len(keys)),
	}
}

func (p *Pool) Size() int { return len(p.keys) }

// Remaining reports how many credentials are still usable this cycle.
func (p *Pool) Remaining() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.keys) - len(p.exhausted)
}

// Next returns the current credential, skipping exhausted ones. ok is false
// when the whole pool is exhausted.
func (p *Pool) Next() (key string, idx int, ok bool) {
	return p.NextExcluding(nil)
}

// NextExcluding behaves like Next but also skips the given indexes. The skip
// set is call-scoped state, for keys that are only transiently unusable: it
// never touches the pool's own exhaustion marks.
func (p *Pool) NextExcluding(skip map[int]struct{}) (key string, idx int, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.keys) == 0 || len(p.exhausted) >= len(p.keys) {
		return "", 0, false
	}
	for i := 0; i < len(p.keys); i++ {
		idx := (p.cursor + i) % len(p.keys)
		if _, dead := p.exhausted[idx]; dead {
			continue
		}
		if _, skipped := skip[idx]; skipped {
			continue
		}
		p.cursor = idx
		return p.keys[idx], idx, true
	}
	return "", 0, false
}

// MarkExhausted marks the credential dead for the remainder of the cycle and
// advances the cursor past it.
func (p *Pool) MarkExhausted(idx int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if idx < 0 || idx >= len(p.keys) {
		return
	}
	p.exhausted[idx] = struct{}{}
	if p.cursor == idx {
		p.cursor = (idx + 1) % len(p.keys)
	}
}

// ResetCycle clears all exhaustion marks. Called when the daily stats roll
// over to a new date.
func (p *Pool) ResetCycle() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.exhausted = make(map[int]struct{}, len(p.keys))
}
