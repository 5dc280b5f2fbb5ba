package provider

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// Fake is an in-memory Summarizer used by the scheduler/segmenter/merger
// tests in place of a real network-backed provider.
type Fake struct {
	mu           sync.Mutex
	calls        int64
	FailUntil    int           // fail the first FailUntil calls per text with Err
	Err          error
	SummarizeFn  func(ctx context.Context, text string) (string, error)
	HealthOK     bool
	failCounts   map[string]int
}

// NewFake builds a Fake provider that, by default, echoes a deterministic
// summary of the input.
func NewFake() *Fake {
	return &Fake{HealthOK: true, failCounts: make(map[string]int)}
}

func (f *Fake) Name() string { return "fake" }

func (f *Fake) Calls() int64 { return atomic.LoadInt64(&f.calls) }

func (f *Fake) Summarize(ctx context.Context, text string) (string, error) {
	atomic.AddInt64(&f.calls, 1)

	if f.SummarizeFn != nil {
		return f.SummarizeFn(ctx, text)
	}

	if f.FailUntil > 0 {
		f.mu.Lock()
		n := f.failCounts[text]
		f.failCounts[text] = n + 1
		f.mu.Unlock()
		if n < f.FailUntil {
			if f.Err != nil {
				return "", f.Err
			}
			return "", fmt.Errorf("fake provider: simulated failure")
		}
	}

	if len(text) > 40 {
		return "summary: " + text[:40] + "...", nil
	}
	return "summary: " + text, nil
}

func (f *Fake) Health(ctx context.Context) (bool, error) {
	return f.HealthOK, nil
}
