package converter

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// EventKind identifies the kind of a batch Event.
type EventKind string

const (
	EventStarted  EventKind = "started"
	EventFile     EventKind = "file"
	EventFinished EventKind = "finished"
	EventAborted  EventKind = "aborted"
)

// Event is an immutable value pushed by a running batch. Exactly one of
// EventFinished or EventAborted is the last event of every batch.
type Event struct {
	Kind    EventKind
	BatchID string
	Info    BatchInfo   // EventStarted
	Index   int         // EventFile: position of the input in the request
	Outcome Outcome     // EventFile
	Result  BatchResult // EventFinished
	Err     error       // EventAborted
}

// Text renders the event as a human-readable log line.
func (ev Event) Text() string {
	switch ev.Kind {
	case EventStarted:
		return fmt.Sprintf("Starting conversion of %d files to %s. Destination: %s",
			ev.Info.Total, ev.Info.Format, ev.Info.DestinationDir)
	case EventFile:
		return formatOutcomeLine(ev.Outcome, false)
	case EventFinished:
		return fmt.Sprintf("Finished: %d of %d files converted.", ev.Result.Successful, ev.Result.Total)
	case EventAborted:
		return fmt.Sprintf("Conversion aborted: %v", ev.Err)
	}
	return string(ev.Kind)
}

// Session owns at most one in-flight batch on top of an Engine.
type Session struct {
	engine *Engine
	logger *slog.Logger

	mu     sync.Mutex
	active *Handle
}

// NewSession creates a Session that submits batches to engine.
func NewSession(engine *Engine) *Session {
	return &Session{
		engine: engine,
		logger: slog.New(engine.logger.Handler()).With(slog.String("component", "session")),
	}
}

// Engine returns the engine batches are submitted to.
func (s *Session) Engine() *Engine { return s.engine }

// Busy reports whether a batch is still running.
func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busyLocked()
}

func (s *Session) busyLocked() bool {
	if s.active == nil {
		return false
	}
	select {
	case <-s.active.done:
		return false
	default:
		return true
	}
}

// Submit starts req on a background goroutine and returns immediately. It
// returns ErrBatchInFlight while a previously submitted batch is running, and
// ErrConfigValidation when req fails its preconditions.
func (s *Session) Submit(ctx context.Context, req Request) (*Handle, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busyLocked() {
		s.logger.Debug("Rejecting submission while a batch is in flight", slog.String("activeBatchID", s.active.id))
		return nil, ErrBatchInFlight
	}

	h := &Handle{
		id:     uuid.NewString(),
		events: make(chan Event, eventBufferSize),
		done:   make(chan struct{}),
	}
	s.active = h
	hooks := &channelHooks{events: h.events, next: s.engine.hooks}

	go func() {
		defer close(h.done)
		defer close(h.events)
		result, err := s.engine.run(ctx, req, hooks, h.id)
		if err != nil && !hooks.started {
			h.events <- Event{Kind: EventAborted, BatchID: h.id, Err: err}
		}
		h.result, h.err = result, err
	}()
	return h, nil
}

// Handle tracks one submitted batch. The batch blocks once the event buffer
// is full, so a caller either drains Events or calls Wait.
type Handle struct {
	id     string
	events chan Event
	done   chan struct{}
	result BatchResult
	err    error
}

// ID returns the batch ID.
func (h *Handle) ID() string { return h.id }

// Events returns the event stream. It is closed after the final event.
func (h *Handle) Events() <-chan Event { return h.events }

// Done is closed once the batch has finished and Wait will not block.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Wait blocks until the batch finishes and returns its result. Events not yet
// received from Events are discarded.
func (h *Handle) Wait() (BatchResult, error) {
	for range h.events {
	}
	<-h.done
	return h.result, h.err
}

// channelHooks turns engine callbacks into Events. The engine calls it from
// a single goroutine per batch.
type channelHooks struct {
	events  chan<- Event
	next    Hooks
	started bool
	batchID string
}

func (c *channelHooks) OnBatchStart(info BatchInfo) error {
	c.started = true
	c.batchID = info.BatchID
	err := c.next.OnBatchStart(info)
	c.events <- Event{Kind: EventStarted, BatchID: info.BatchID, Info: info}
	return err
}

func (c *channelHooks) OnFileStatusUpdate(index int, outcome Outcome) error {
	err := c.next.OnFileStatusUpdate(index, outcome)
	c.events <- Event{Kind: EventFile, BatchID: c.batchID, Index: index, Outcome: outcome}
	return err
}

func (c *channelHooks) OnBatchComplete(result BatchResult) error {
	err := c.next.OnBatchComplete(result)
	c.events <- Event{Kind: EventFinished, BatchID: result.BatchID, Result: result}
	return err
}
