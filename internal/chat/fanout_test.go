package chat

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/harwoodlabs/kingfisher/tools"
	"github.com/harwoodlabs/kingfisher/tools/images"
)

// fakeTool answers after an optional delay, echoing its params.
type fakeTool struct {
	kind  tools.Kind
	delay time.Duration
	err   error
	calls int32
}

func (f *fakeTool) Kind() tools.Kind { return f.kind }

func (f *fakeTool) Call(ctx context.Context, params map[string]any) (any, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return map[string]any{"echo": params}, nil
}

type fakeFetcher struct{ calls int32 }

func (f *fakeFetcher) Fetch(ctx context.Context, query string) images.Image {
	atomic.AddInt32(&f.calls, 1)
	return images.Image{URL: "https://img.example/" + query, Alt: query, Provider: "stub"}
}

func newTestCoordinator(callTimeout, globalBudget time.Duration, ts ...tools.Tool) (*Coordinator, *fakeFetcher) {
	reg := tools.NewRegistry()
	for _, tl := range ts {
		reg.Register(tl)
	}
	fetcher := &fakeFetcher{}
	return NewCoordinator(reg, fetcher, callTimeout, globalBudget, nil), fetcher
}

func TestExecuteSlowCallDoesNotBlockOthers(t *testing.T) {
	slow := &fakeTool{kind: tools.KindMarine, delay: 500 * time.Millisecond}
	fast := &fakeTool{kind: tools.KindWeather}
	co, _ := newTestCoordinator(50*time.Millisecond, 0, slow, fast)

	plan := Plan{ToolCalls: []ToolCall{{Tool: tools.KindWeather}, {Tool: tools.KindMarine}}}
	start := time.Now()
	results, _ := co.Execute(context.Background(), plan, nil)
	elapsed := time.Since(start)

	if len(results) != 2 {
		t.Fatalf("expected a terminal result per call, got %d", len(results))
	}
	if elapsed > 300*time.Millisecond {
		t.Fatalf("fan-out took %v, slow call should have been cut at its timeout", elapsed)
	}
	marine := results[ToolCall{Tool: tools.KindMarine}.Key()]
	if marine.OK || marine.Err == "" {
		t.Fatalf("slow call should report a timeout failure: %+v", marine)
	}
	weather := results[ToolCall{Tool: tools.KindWeather}.Key()]
	if !weather.OK {
		t.Fatalf("fast call should succeed: %+v", weather)
	}
}

func TestExecuteSameToolDifferentParamsKeptApart(t *testing.T) {
	search := &fakeTool{kind: tools.KindSearch}
	co, _ := newTestCoordinator(time.Second, 0, search)

	plan := Plan{ToolCalls: []ToolCall{
		{Tool: tools.KindSearch, Params: map[string]any{"q": "flathead"}},
		{Tool: tools.KindSearch, Params: map[string]any{"q": "bream"}},
	}}
	results, _ := co.Execute(context.Background(), plan, nil)

	if len(results) != 2 {
		t.Fatalf("expected two keyed results, got %d: %v", len(results), results)
	}
	if atomic.LoadInt32(&search.calls) != 2 {
		t.Fatalf("expected two tool invocations, got %d", search.calls)
	}
	for key, res := range results {
		if res.Key != key {
			t.Fatalf("result key mismatch: map %q vs result %q", key, res.Key)
		}
	}
}

func TestExecuteDuplicateCallsRunOnce(t *testing.T) {
	weather := &fakeTool{kind: tools.KindWeather}
	co, _ := newTestCoordinator(time.Second, 0, weather)

	plan := Plan{ToolCalls: []ToolCall{{Tool: tools.KindWeather}, {Tool: tools.KindWeather}}}
	results, _ := co.Execute(context.Background(), plan, nil)

	if len(results) != 1 {
		t.Fatalf("identical calls must collapse to one, got %d", len(results))
	}
	if atomic.LoadInt32(&weather.calls) != 1 {
		t.Fatalf("expected a single invocation, got %d", weather.calls)
	}
}

func TestExecuteGlobalBudgetBoundsWallClock(t *testing.T) {
	var slows []tools.Tool
	for _, k := range []tools.Kind{tools.KindSearch, tools.KindWeather, tools.KindMarine, tools.KindTides} {
		slows = append(slows, &fakeTool{kind: k, delay: 2 * time.Second})
	}
	co, _ := newTestCoordinator(5*time.Second, 100*time.Millisecond, slows...)

	plan := Plan{ToolCalls: []ToolCall{
		{Tool: tools.KindSearch}, {Tool: tools.KindWeather},
		{Tool: tools.KindMarine}, {Tool: tools.KindTides},
	}}
	start := time.Now()
	results, _ := co.Execute(context.Background(), plan, nil)
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("global budget not enforced, took %v", elapsed)
	}
	if len(results) != 4 {
		t.Fatalf("every call still needs a terminal result, got %d", len(results))
	}
	for key, res := range results {
		if res.OK {
			t.Fatalf("call %s should have failed under the budget: %+v", key, res)
		}
	}
}

func TestExecuteFetchesImagesConcurrently(t *testing.T) {
	co, fetcher := newTestCoordinator(time.Second, 0)
	plan := Plan{ImageQueries: []string{"sunset", "rock wall"}}
	_, imgs := co.Execute(context.Background(), plan, nil)

	if len(imgs) != 2 {
		t.Fatalf("expected one image per query, got %d", len(imgs))
	}
	if imgs[0].Alt != "sunset" || imgs[1].Alt != "rock wall" {
		t.Fatalf("image order must match query order: %+v", imgs)
	}
	if atomic.LoadInt32(&fetcher.calls) != 2 {
		t.Fatalf("expected two fetches, got %d", fetcher.calls)
	}
}

func TestExecuteReportsCompletions(t *testing.T) {
	co, _ := newTestCoordinator(time.Second, 0,
		&fakeTool{kind: tools.KindWeather},
		&fakeTool{kind: tools.KindSearch, err: fmt.Errorf("upstream 500")},
	)
	plan := Plan{ToolCalls: []ToolCall{
		{Tool: tools.KindWeather},
		{Tool: tools.KindSearch, Params: map[string]any{"q": "x"}},
	}}

	seen := map[string]bool{}
	results, _ := co.Execute(context.Background(), plan, func(res ToolResult) {
		seen[string(res.Tool)] = res.OK
	})
	if len(results) != 2 || len(seen) != 2 {
		t.Fatalf("expected completion callback per call: results=%d seen=%v", len(results), seen)
	}
	if !seen["weather"] || seen["search"] {
		t.Fatalf("callback ok flags wrong: %v", seen)
	}
}
