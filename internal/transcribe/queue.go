// Package transcribe runs voice-note transcription as a background
// worker. Enqueuing marks the note pending; the worker's run loop pulls
// jobs off a FIFO queue, invokes the transcriber, and records the
// terminal outcome. Transcription failures never propagate to the write
// that requested them.
package transcribe

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/sitevar/sitevar/internal/record"
	"github.com/sitevar/sitevar/internal/store"
)

// Transcriber converts a voice recording to text.
type Transcriber interface {
	Transcribe(ctx context.Context, localPath string) (string, error)
}

// jobQueue is a thread-safe FIFO of voice-note IDs.
//
// The queue is unbounded so capture paths never block on a slow
// transcriber. A buffered signal channel of size 1 coalesces wakeups and
// lets the run loop wait with context awareness.
type jobQueue struct {
	mu     sync.Mutex
	ids    []string
	closed bool
	signal chan struct{}
}

func newJobQueue() *jobQueue {
	return &jobQueue{
		ids:    make([]string, 0, 16),
		signal: make(chan struct{}, 1),
	}
}

// enqueue adds an ID to the back of the queue. Returns false if closed.
func (q *jobQueue) enqueue(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	q.ids = append(q.ids, id)
	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// tryDequeue pops the front ID without blocking.
func (q *jobQueue) tryDequeue() (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.ids) == 0 {
		return "", false
	}
	id := q.ids[0]
	q.ids[0] = ""
	if len(q.ids) == 1 {
		q.ids = q.ids[:0]
	} else {
		q.ids = q.ids[1:]
	}
	return id, true
}

func (q *jobQueue) wait() <-chan struct{} { return q.signal }

func (q *jobQueue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}

// Worker owns the transcription queue and its run loop.
type Worker struct {
	store       *store.Store
	transcriber Transcriber
	log         *slog.Logger
	queue       *jobQueue
}

// NewWorker creates a worker. Run must be started for jobs to progress.
func NewWorker(st *store.Store, tr Transcriber, log *slog.Logger) *Worker {
	if log == nil {
		log = slog.Default()
	}
	return &Worker{
		store:       st,
		transcriber: tr,
		log:         log,
		queue:       newJobQueue(),
	}
}

// Enqueue requests transcription of a voice note. The note is marked
// pending immediately; the actual work happens on the run loop. Returns
// an error only when the note cannot enter the pending state (unknown ID
// or transcription already attempted).
func (w *Worker) Enqueue(ctx context.Context, voiceNoteID string) error {
	if err := w.store.SetTranscription(ctx, voiceNoteID, record.TranscriptionPending, nil); err != nil {
		return fmt.Errorf("enqueue transcription: %w", err)
	}
	if !w.queue.enqueue(voiceNoteID) {
		return fmt.Errorf("enqueue transcription: worker stopped")
	}
	return nil
}

// Run processes jobs until the context is canceled. Jobs left pending at
// shutdown stay pending in the store and can be re-driven on next start.
func (w *Worker) Run(ctx context.Context) error {
	defer w.queue.close()
	for {
		id, ok := w.queue.tryDequeue()
		if !ok {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-w.queue.wait():
				continue
			}
		}
		w.process(ctx, id)
	}
}

// Drain processes everything currently queued and returns. Short-lived
// callers such as CLI commands use this instead of Run so enqueued notes
// finish before the process exits.
func (w *Worker) Drain(ctx context.Context) {
	for {
		id, ok := w.queue.tryDequeue()
		if !ok || ctx.Err() != nil {
			return
		}
		w.process(ctx, id)
	}
}

// process runs one transcription and records the terminal state. Errors
// are logged, marked failed, and swallowed: a bad recording must not take
// the worker down.
func (w *Worker) process(ctx context.Context, id string) {
	note, err := w.store.GetVoiceNote(ctx, id)
	if err != nil {
		w.log.Error("transcription lookup failed", "voice_note", id, "error", err)
		return
	}

	text, err := w.transcriber.Transcribe(ctx, note.LocalPath)
	if err != nil {
		w.log.Warn("transcription failed", "voice_note", id, "error", err)
		if serr := w.store.SetTranscription(ctx, id, record.TranscriptionFailed, nil); serr != nil {
			w.log.Error("transcription state update failed", "voice_note", id, "error", serr)
		}
		return
	}

	if err := w.store.SetTranscription(ctx, id, record.TranscriptionComplete, &text); err != nil {
		w.log.Error("transcription state update failed", "voice_note", id, "error", err)
		return
	}
	w.log.Info("transcription complete", "voice_note", id, "chars", len(text))
}
