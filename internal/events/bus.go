// Package events provides a publish/subscribe event bus for operational
// observability. Events flow from the mission loop and the delegate
// executor to subscribers such as the CLI's debug log drain. The bus is
// nil-safe: calling Publish or Emit on a nil *Bus is a no-op, so
// components do not need guard checks.
package events

import (
	"sync"
	"time"
)

// Source constants identify which component published an event.
const (
	// SourceAgent identifies events from the mission loop.
	SourceAgent = "agent"
	// SourceDelegate identifies events from delegated sub-missions.
	SourceDelegate = "delegate"
)

// Kind constants describe the type of event within a source.
const (
	// KindSessionStart signals a new mission session.
	// Data: session_id, goal_len, max_iterations, budget.
	KindSessionStart = "session_start"
	// KindIterationStart signals the start of one loop iteration.
	// Data: session_id, iter.
	KindIterationStart = "iteration_start"
	// KindLLMCall signals the start of a reasoning call.
	// Data: session_id, iter, msgs.
	KindLLMCall = "llm_call"
	// KindLLMResponse signals completion of a reasoning call.
	// Data: session_id, iter, model, tokens_in, tokens_out, action.
	KindLLMResponse = "llm_response"
	// KindCompaction signals the message view was compressed.
	// Data: session_id, iter, folded, tokens_before, tokens_after.
	KindCompaction = "compaction"
	// KindToolCall signals the start of a tool execution.
	// Data: session_id, tool.
	KindToolCall = "tool_call"
	// KindToolDone signals completion of a tool execution.
	// Data: session_id, tool, ok, duration_ms.
	KindToolDone = "tool_done"
	// KindSessionComplete signals a mission reached a final answer.
	// Data: session_id, iterations, total_tokens.
	KindSessionComplete = "session_complete"
	// KindSessionFailed signals a mission ended in failure.
	// Data: session_id, iterations, total_tokens, reason.
	KindSessionFailed = "session_failed"

	// KindSpawn signals a delegate sub-mission was spawned.
	// Data: delegate_id, parent_session_id, objective_len.
	KindSpawn = "spawn"
	// KindComplete signals a delegate sub-mission finished.
	// Data: delegate_id, session_id, iterations, success, exhausted,
	// exhaust_reason, duration_ms.
	KindComplete = "complete"
)

// Event represents a single operational event published by a component.
type Event struct {
	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"ts"`
	// Source identifies the component that published the event.
	Source string `json:"source"`
	// Kind describes the type of event within the source.
	Kind string `json:"kind"`
	// Data holds event-specific key/value pairs.
	Data map[string]any `json:"data,omitempty"`
}

// Bus is a non-blocking broadcast event bus. Subscribers receive events
// on buffered channels; slow subscribers miss events rather than
// blocking publishers.
type Bus struct {
	mu   sync.RWMutex
	subs map[chan Event]struct{}
	// recvToSend maps the receive-only channel returned by Subscribe
	// back to the bidirectional channel stored in subs, so Unsubscribe
	// can accept the caller's <-chan Event.
	recvToSend map[<-chan Event]chan Event
}

// New creates a new event bus ready for use.
func New() *Bus {
	return &Bus{
		subs:       make(map[chan Event]struct{}),
		recvToSend: make(map[<-chan Event]chan Event),
	}
}

// Publish sends an event to all subscribers. Non-blocking: if a
// subscriber's channel is full, the event is dropped for that
// subscriber. Safe to call on a nil receiver (no-op).
func (b *Bus) Publish(e Event) {
	if b == nil {
		return
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

// Emit stamps and publishes an event. Safe to call on a nil receiver.
func (b *Bus) Emit(source, kind string, data map[string]any) {
	if b == nil {
		return
	}
	b.Publish(Event{
		Timestamp: time.Now(),
		Source:    source,
		Kind:      kind,
		Data:      data,
	})
}

// Subscribe returns a channel that receives published events. The
// caller must eventually call Unsubscribe to avoid resource leaks.
func (b *Bus) Subscribe(bufSize int) <-chan Event {
	ch := make(chan Event, bufSize)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[ch] = struct{}{}
	b.recvToSend[ch] = ch
	return ch
}

// Unsubscribe removes a subscription and closes the channel. Safe to
// call with a channel that is already unsubscribed (no-op).
func (b *Bus) Unsubscribe(ch <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	sendCh, ok := b.recvToSend[ch]
	if !ok {
		return
	}
	delete(b.subs, sendCh)
	delete(b.recvToSend, ch)
	close(sendCh)
}

// SubscriberCount returns the number of active subscribers.
func (b *Bus) SubscriberCount() int {
	if b == nil {
		return 0
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
