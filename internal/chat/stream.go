package chat

import (
	"context"
	"fmt"
)

// EventType discriminates stream events.
type EventType string

const (
	EventStatus EventType = "status"
	EventCards  EventType = "cards"
	EventTool   EventType = "tool"
	EventResult EventType = "result"
	EventError  EventType = "error"
)

// StreamEvent is one progress event. Only the fields for its Type are set.
type StreamEvent struct {
	Type    EventType `json:"type"`
	Stage   string    `json:"stage,omitempty"`
	Text    string    `json:"text,omitempty"`
	Cards   []Card    `json:"cards,omitempty"`
	Name    string    `json:"name,omitempty"`
	OK      *bool     `json:"ok,omitempty"`
	Payload *Result   `json:"payload,omitempty"`
	Message string    `json:"message,omitempty"`
}

// Stage is an emitter state.
type Stage int

const (
	StageInit Stage = iota
	StagePlanning
	StagePlanned
	StageEnriching
	StageDone
	StageError
)

func (s Stage) String() string {
	switch s {
	case StageInit:
		return "init"
	case StagePlanning:
		return "planning"
	case StagePlanned:
		return "planned"
	case StageEnriching:
		return "enriching"
	case StageDone:
		return "done"
	case StageError:
		return "error"
	}
	return "unknown"
}

// Emitter is the state machine that taps pipeline stage boundaries and emits
// the ordered progress protocol on its channel. Done and Fail are terminal
// and close the channel. Emitting never alters pipeline semantics; a
// departed consumer only means events are dropped.
type Emitter struct {
	ctx   context.Context
	ch    chan StreamEvent
	stage Stage
}

// NewEmitter creates an emitter writing to a channel with the given buffer.
func NewEmitter(ctx context.Context, buffer int) *Emitter {
	return &Emitter{ctx: ctx, ch: make(chan StreamEvent, buffer), stage: StageInit}
}

// Events is the consumer side of the stream.
func (e *Emitter) Events() <-chan StreamEvent { return e.ch }

func (e *Emitter) transition(from, to Stage) error {
	if e.stage != from {
		return fmt.Errorf("invalid transition %s -> %s (at %s)", from, to, e.stage)
	}
	e.stage = to
	return nil
}

func (e *Emitter) send(ev StreamEvent) {
	select {
	case e.ch <- ev:
	case <-e.ctx.Done():
	}
}

// Planning marks the request accepted and emits the planning status.
func (e *Emitter) Planning() error {
	if err := e.transition(StageInit, StagePlanning); err != nil {
		return err
	}
	e.send(StreamEvent{Type: EventStatus, Stage: "planning"})
	return nil
}

// Planned publishes the pre-enrichment plan.
func (e *Emitter) Planned(text string, cards []Card) error {
	if err := e.transition(StagePlanning, StagePlanned); err != nil {
		return err
	}
	e.send(StreamEvent{Type: EventCards, Text: text, Cards: cards})
	return nil
}

// Enriching marks the start of fan-out. No event is emitted.
func (e *Emitter) Enriching() error {
	return e.transition(StagePlanned, StageEnriching)
}

// ToolDone emits one tool event as a call completes. Completion order is
// not deterministic across runs.
func (e *Emitter) ToolDone(name string, ok bool) error {
	if e.stage != StageEnriching {
		return fmt.Errorf("tool event outside enriching (at %s)", e.stage)
	}
	e.send(StreamEvent{Type: EventTool, Name: name, OK: &ok})
	return nil
}

// Done emits the terminal result and closes the stream.
func (e *Emitter) Done(result Result) error {
	if err := e.transition(StageEnriching, StageDone); err != nil {
		return err
	}
	e.send(StreamEvent{Type: EventResult, Payload: &result})
	close(e.ch)
	return nil
}

// Fail transitions to the terminal error state from anywhere, emits the
// error event and closes the stream.
func (e *Emitter) Fail(message string) {
	if e.stage == StageDone || e.stage == StageError {
		return
	}
	e.stage = StageError
	e.send(StreamEvent{Type: EventError, Message: message})
	close(e.ch)
}
