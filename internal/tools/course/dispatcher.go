// Package course implements the course-support tool set: knowledge-base
// retrieval, cheat-sheet generation, forum drafting, and form filling.
package course

import (
	"sync"

	"coursenerd/internal/logging"
)

// ComposerForumDraft names the downstream handler that turns queued draft
// requests into finished forum posts.
const ComposerForumDraft = "forum-composer"

// Command is a unit of work addressed to a named downstream handler.
type Command struct {
	Handler string         `json:"handler"`
	Kind    string         `json:"kind"`
	Payload map[string]any `json:"payload"`
}

// Dispatcher accepts commands for downstream handlers.
type Dispatcher interface {
	Enqueue(cmd Command) error
}

// QueueDispatcher is an in-memory Dispatcher. Handlers drain it with
// Pending or Drain between pipeline turns.
type QueueDispatcher struct {
	mu    sync.Mutex
	queue []Command
}

// NewQueueDispatcher returns an empty queue.
func NewQueueDispatcher() *QueueDispatcher {
	return &QueueDispatcher{}
}

// Enqueue appends a command to the queue.
func (d *QueueDispatcher) Enqueue(cmd Command) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.queue = append(d.queue, cmd)
	logging.ToolsDebug("Enqueued command %s for %s (queue depth %d)", cmd.Kind, cmd.Handler, len(d.queue))
	return nil
}

// Pending returns the queued commands for a handler without removing them.
func (d *QueueDispatcher) Pending(handler string) []Command {
	d.mu.Lock()
	defer d.mu.Unlock()

	var out []Command
	for _, cmd := range d.queue {
		if cmd.Handler == handler {
			out = append(out, cmd)
		}
	}
	return out
}

// Drain removes and returns the queued commands for a handler.
func (d *QueueDispatcher) Drain(handler string) []Command {
	d.mu.Lock()
	defer d.mu.Unlock()

	var out []Command
	var keep []Command
	for _, cmd := range d.queue {
		if cmd.Handler == handler {
			out = append(out, cmd)
		} else {
			keep = append(keep, cmd)
		}
	}
	d.queue = keep
	return out
}
