package chat

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var chatTracer trace.Tracer = otel.Tracer("kingfisher/internal/chat")

// Orchestrator drives the two-pass pipeline: plan, fan out, merge. One
// instance serves all requests; per-request state lives on the stack. The
// shared TTL cache inside the tool adapters is the only cross-request
// mutable resource.
type Orchestrator struct {
	planner     *Planner
	coordinator *Coordinator
	model       string
	logger      *log.Logger
}

// NewOrchestrator assembles the pipeline.
func NewOrchestrator(planner *Planner, coordinator *Coordinator, model string) *Orchestrator {
	return &Orchestrator{
		planner:     planner,
		coordinator: coordinator,
		model:       model,
		logger:      log.New(log.Writer(), "[ORCH] ", log.LstdFlags),
	}
}

// Stream runs the pipeline in the background and returns the ordered event
// stream. The channel closes after the terminal result or error event.
func (o *Orchestrator) Stream(ctx context.Context, query string) <-chan StreamEvent {
	em := NewEmitter(ctx, 16)
	go o.run(ctx, query, em)
	return em.Events()
}

// Answer runs the identical pipeline and returns only the terminal payload.
// No intermediate event is observable through this surface.
func (o *Orchestrator) Answer(ctx context.Context, query string) (Result, error) {
	for ev := range o.Stream(ctx, query) {
		switch ev.Type {
		case EventResult:
			return *ev.Payload, nil
		case EventError:
			return Result{}, errors.New(ev.Message)
		}
	}
	return Result{}, errors.New("stream closed without terminal event")
}

func (o *Orchestrator) run(ctx context.Context, query string, em *Emitter) {
	start := time.Now()
	requestID := uuid.New().String()

	ctx, span := chatTracer.Start(ctx, "chat.run",
		trace.WithAttributes(attribute.String("request.id", requestID)))
	defer span.End()

	if err := em.Planning(); err != nil {
		o.logger.Printf("[%s] emitter: %v", requestID, err)
		return
	}

	// The plan is produced and frozen before any enrichment call is issued.
	plan, outcome, err := o.planner.Plan(ctx, query)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		o.logger.Printf("[%s] planning failed: %v", requestID, err)
		em.Fail(err.Error())
		return
	}
	span.SetAttributes(
		attribute.String("plan.outcome", string(outcome)),
		attribute.Int("plan.cards", len(plan.Cards)),
		attribute.Int("plan.tool_calls", len(plan.ToolCalls)),
	)
	o.logger.Printf("[%s] plan %s: %d cards, %d tool calls, %d image queries",
		requestID, outcome, len(plan.Cards), len(plan.ToolCalls), len(plan.ImageQueries))

	if err := em.Planned(plan.Text, plan.Cards); err != nil {
		o.logger.Printf("[%s] emitter: %v", requestID, err)
		return
	}
	if err := em.Enriching(); err != nil {
		o.logger.Printf("[%s] emitter: %v", requestID, err)
		return
	}

	results, imgs := o.coordinator.Execute(ctx, plan, func(r ToolResult) {
		if err := em.ToolDone(string(r.Tool), r.OK); err != nil {
			o.logger.Printf("[%s] emitter: %v", requestID, err)
		}
	})

	result := Merge(plan, results, imgs)
	result.Model = o.model
	result.TookMs = time.Since(start).Milliseconds()

	if err := em.Done(result); err != nil {
		o.logger.Printf("[%s] emitter: %v", requestID, err)
	}
}
