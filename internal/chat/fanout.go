package chat

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/harwoodlabs/kingfisher/internal/telemetry"
	"github.com/harwoodlabs/kingfisher/tools"
	"github.com/harwoodlabs/kingfisher/tools/images"
)

// ImageFetcher resolves one image query to exactly one image.
type ImageFetcher interface {
	Fetch(ctx context.Context, query string) images.Image
}

// Coordinator runs a frozen Plan's tool calls and image queries concurrently,
// isolating failures and timeouts per call. It always returns one terminal
// ToolResult per deduplicated call, keyed by call identity.
type Coordinator struct {
	registry     *tools.Registry
	fetcher      ImageFetcher
	callTimeout  time.Duration
	globalBudget time.Duration
	metrics      *telemetry.Metrics
	logger       *log.Logger
}

// NewCoordinator wires a coordinator. globalBudget of zero disables the
// global cap; when set it must exceed callTimeout (enforced by config
// validation).
func NewCoordinator(registry *tools.Registry, fetcher ImageFetcher, callTimeout, globalBudget time.Duration, metrics *telemetry.Metrics) *Coordinator {
	if callTimeout <= 0 {
		callTimeout = 10 * time.Second
	}
	return &Coordinator{
		registry:     registry,
		fetcher:      fetcher,
		callTimeout:  callTimeout,
		globalBudget: globalBudget,
		metrics:      metrics,
		logger:       log.New(log.Writer(), "[FANOUT] ", log.LstdFlags),
	}
}

// Execute blocks until every launched call reaches a terminal state. onResult
// is invoked once per ToolResult in completion order; the order is not
// deterministic across runs. Returned images are ordered by query position.
func (c *Coordinator) Execute(ctx context.Context, plan Plan, onResult func(ToolResult)) (map[string]ToolResult, []ImageRef) {
	if c.globalBudget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.globalBudget)
		defer cancel()
	}

	calls := dedupeCalls(plan.ToolCalls)
	resultCh := make(chan ToolResult, len(calls))
	var wg sync.WaitGroup

	for _, call := range calls {
		wg.Add(1)
		go func(call ToolCall) {
			defer wg.Done()
			resultCh <- c.runCall(ctx, call)
		}(call)
	}

	imgs := make([]ImageRef, len(plan.ImageQueries))
	var imgWG sync.WaitGroup
	for i, q := range plan.ImageQueries {
		imgWG.Add(1)
		go func(i int, q string) {
			defer imgWG.Done()
			img := c.fetcher.Fetch(ctx, q)
			imgs[i] = ImageRef{URL: img.URL, Alt: img.Alt, Credit: img.Credit, Provider: img.Provider}
		}(i, q)
	}

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	results := make(map[string]ToolResult, len(calls))
	for r := range resultCh {
		results[r.Key] = r
		c.metrics.ObserveToolCall(string(r.Tool), r.Latency)
		if onResult != nil {
			onResult(r)
		}
	}
	imgWG.Wait()
	return results, imgs
}

// runCall executes one tool call under its individual timeout. It always
// produces a terminal result: success, provider error, or timeout.
func (c *Coordinator) runCall(ctx context.Context, call ToolCall) ToolResult {
	start := time.Now()
	callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	type outcome struct {
		payload any
		err     error
	}
	done := make(chan outcome, 1)
	go func() {
		payload, err := c.registry.Lookup(call.Tool).Call(callCtx, call.Params)
		done <- outcome{payload, err}
	}()

	result := ToolResult{Tool: call.Tool, Key: call.Key()}
	select {
	case out := <-done:
		result.Latency = time.Since(start)
		if out.err != nil {
			result.Err = out.err.Error()
			c.logger.Printf("%s failed after %v: %v", call.Tool, result.Latency, out.err)
		} else {
			result.OK = true
			result.Payload = out.payload
		}
	case <-callCtx.Done():
		result.Latency = time.Since(start)
		result.Err = "timeout"
		c.logger.Printf("%s timed out after %v", call.Tool, result.Latency)
	}
	return result
}

func dedupeCalls(calls []ToolCall) []ToolCall {
	seen := make(map[string]bool, len(calls))
	out := make([]ToolCall, 0, len(calls))
	for _, call := range calls {
		key := call.Key()
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, call)
	}
	return out
}
