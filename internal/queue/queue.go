package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/readaloud/internal/metrics"
	"github.com/dgnsrekt/readaloud/internal/store"
	"github.com/dgnsrekt/readaloud/tts"
)

// StoreKey is the store key of the persisted queue.
const StoreKey = "speech.queue"

// DefaultLanguage is the language passed to the speaker unless configured.
const DefaultLanguage = "en-US"

const persistTimeout = 5 * time.Second

// Speaker is the speech engine the queue drives.
type Speaker interface {
	Speak(ctx context.Context, text, language string, index, total int) (<-chan tts.Outcome, error)
	Stop()
	Status() tts.Status
	OnStatusChange(fn func(tts.Status))
}

var _ Speaker = (*tts.Engine)(nil)

// Snapshot is a consistent view of the queue and the engine.
type Snapshot struct {
	Items       []Item
	CurrentText string // spoken text of the head item, empty if none
	HasWork     bool   // queue non-empty or engine speaking
	Processing  bool
	Engine      tts.Status
}

// Stats tracks queue activity since construction.
type Stats struct {
	TotalEnqueued  int64
	TotalFinished  int64
	TotalFailed    int64
	TotalCancelled int64
	PersistErrors  int64
	LastEnqueue    time.Time
	LastComplete   time.Time
}

// Queue is the single authority over queue membership. At most one item is
// handed to the speaker at any time.
type Queue struct {
	store    store.Store
	speaker  Speaker
	logger   *log.Logger
	language string

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// State, guarded by mu
	mu         sync.Mutex
	items      []Item
	processing bool
	gen        uint64 // bumped by Stop, Clear and Close
	runLen     int    // queue length when the current run started
	closed     bool
	stats      Stats

	// Subscribers, guarded by subsMu. subsMu is always taken before mu.
	subsMu  sync.Mutex
	subs    map[int]chan Snapshot
	nextSub int
}

// Option configures a Queue.
type Option func(*Queue)

// WithLogger sets the logger.
func WithLogger(logger *log.Logger) Option {
	return func(q *Queue) {
		q.logger = logger
	}
}

// WithLanguage sets the language passed to the speaker.
func WithLanguage(language string) Option {
	return func(q *Queue) {
		if language != "" {
			q.language = language
		}
	}
}

// New creates a queue persisting to s and speaking through speaker.
func New(s store.Store, speaker Speaker, opts ...Option) *Queue {
	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		store:    s,
		speaker:  speaker,
		logger:   log.Default(),
		language: DefaultLanguage,
		ctx:      ctx,
		cancel:   cancel,
		subs:     make(map[int]chan Snapshot),
	}
	for _, opt := range opts {
		opt(q)
	}
	q.logger = q.logger.WithPrefix("queue")

	speaker.OnStatusChange(func(tts.Status) { q.publish() })

	return q
}

// Enqueue appends one item, persists and starts processing if idle.
func (q *Queue) Enqueue(item Item) {
	q.EnqueueBatch([]Item{item})
}

// EnqueueBatch appends items in order, persists once and starts processing
// if idle.
func (q *Queue) EnqueueBatch(items []Item) {
	if len(items) == 0 {
		return
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		q.logger.Warn("enqueue on closed queue", "items", len(items))
		return
	}
	q.items = append(q.items, cloneItems(items)...)
	q.stats.TotalEnqueued += int64(len(items))
	q.stats.LastEnqueue = time.Now()
	metrics.RecordEnqueued(len(items))
	q.persistLocked()
	q.startLocked()
	q.mu.Unlock()

	q.logger.Debug("enqueued", "items", len(items))
	q.publish()
}

// Stop stops the current utterance. Queue contents are left untouched and a
// later Enqueue or Resume starts again from the head.
func (q *Queue) Stop() {
	q.mu.Lock()
	q.gen++
	q.processing = false
	q.runLen = 0
	q.speaker.Stop()
	q.mu.Unlock()

	q.logger.Debug("stopped")
	q.publish()
}

// Clear empties the queue and stops the current utterance.
func (q *Queue) Clear() {
	q.mu.Lock()
	q.gen++
	q.items = nil
	q.processing = false
	q.runLen = 0
	q.speaker.Stop()
	q.persistLocked()
	q.mu.Unlock()

	q.logger.Debug("cleared")
	q.publish()
}

// Resume starts processing whatever is queued, e.g. after Restore.
func (q *Queue) Resume() {
	q.mu.Lock()
	q.startLocked()
	q.mu.Unlock()

	q.publish()
}

// Restore replaces the in-memory queue with the persisted snapshot. A
// corrupt snapshot is deleted, the queue is left empty and
// ErrCorruptSnapshot is returned; the queue remains fully usable.
func (q *Queue) Restore(ctx context.Context) error {
	data, err := q.store.Get(ctx, StoreKey)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("restore queue: %w", err)
	}

	items, decodeErr := Decode(data)
	if decodeErr != nil {
		q.logger.Warn("discarding corrupt queue snapshot", "err", decodeErr, "bytes", len(data))
		if err := q.store.Delete(ctx, StoreKey); err != nil {
			q.logger.Error("failed to delete corrupt queue snapshot", "err", err)
		}
		items = nil
	}

	q.mu.Lock()
	q.items = items
	metrics.SetQueueLength(len(q.items))
	q.mu.Unlock()

	q.logger.Debug("restored", "items", len(items))
	q.publish()

	if decodeErr != nil {
		return decodeErr
	}
	return nil
}

// Len returns the number of queued items, including the one being spoken.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Items returns a copy of the queued items in order.
func (q *Queue) Items() []Item {
	q.mu.Lock()
	defer q.mu.Unlock()
	return cloneItems(q.items)
}

// Stats returns a copy of the queue statistics.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.stats
}

// Snapshot returns a consistent view of the queue and the engine.
func (q *Queue) Snapshot() Snapshot {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.snapshotLocked()
}

func (q *Queue) snapshotLocked() Snapshot {
	status := q.speaker.Status()
	s := Snapshot{
		Items:      cloneItems(q.items),
		HasWork:    len(q.items) > 0 || status.IsSpeaking(),
		Processing: q.processing,
		Engine:     status,
	}
	if len(q.items) > 0 {
		s.CurrentText = q.items[0].SpokenText()
	}
	return s
}

// Subscribe returns a channel receiving a snapshot after every change, and a
// function to unsubscribe. A slow subscriber only sees the latest snapshot.
func (q *Queue) Subscribe() (<-chan Snapshot, func()) {
	q.subsMu.Lock()
	defer q.subsMu.Unlock()

	ch := make(chan Snapshot, 1)
	if q.subs == nil {
		close(ch)
		return ch, func() {}
	}

	id := q.nextSub
	q.nextSub++
	q.subs[id] = ch
	ch <- q.Snapshot()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			q.subsMu.Lock()
			defer q.subsMu.Unlock()
			if c, ok := q.subs[id]; ok {
				delete(q.subs, id)
				close(c)
			}
		})
	}
}

// Close stops processing and the speaker, waits for the worker and closes
// all subscriptions.
func (q *Queue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	q.gen++
	q.processing = false
	q.speaker.Stop()
	q.mu.Unlock()

	q.cancel()
	q.wg.Wait()

	q.subsMu.Lock()
	for id, ch := range q.subs {
		delete(q.subs, id)
		close(ch)
	}
	q.subs = nil
	q.subsMu.Unlock()

	return nil
}

// startLocked launches a worker unless one is running, the queue is closed
// or there is nothing to speak.
func (q *Queue) startLocked() {
	if q.processing || q.closed || len(q.items) == 0 {
		return
	}
	if q.runLen == 0 {
		q.runLen = len(q.items)
	}
	q.processing = true
	q.wg.Add(1)
	go q.process(q.gen)
}

// process speaks the head item until the queue drains or the run is
// superseded by Stop, Clear or Close.
func (q *Queue) process(gen uint64) {
	defer q.wg.Done()

	for {
		q.mu.Lock()
		if q.gen != gen {
			q.mu.Unlock()
			return
		}
		if len(q.items) == 0 {
			q.processing = false
			q.runLen = 0
			q.mu.Unlock()
			q.publish()
			return
		}

		q.processing = true
		q.persistLocked()

		head := q.items[0]
		text := head.SpokenText()
		if text == "" {
			// Nothing to say counts as spoken.
			q.items = q.items[1:]
			q.stats.TotalFinished++
			q.stats.LastComplete = time.Now()
			q.persistLocked()
			q.mu.Unlock()

			q.logger.Warn("skipped item with nothing to speak", "id", head.ID)
			q.publish()
			continue
		}

		index := max(q.runLen-len(q.items), 0)
		total := q.runLen
		done, err := q.speaker.Speak(q.ctx, text, q.language, index, total)
		if err != nil {
			q.processing = false
			q.runLen = 0
			q.mu.Unlock()
			q.logger.Error("failed to start utterance", "id", head.ID, "err", err)
			q.publish()
			return
		}
		q.mu.Unlock()

		q.logger.Debug("speaking", "id", head.ID, "title", head.Title, "index", index, "total", total)
		q.publish()

		var outcome tts.Outcome
		select {
		case outcome = <-done:
		case <-q.ctx.Done():
			return
		}

		if !q.complete(gen, outcome) {
			return
		}
		q.publish()
	}
}

// complete applies the outcome of the head item. It reports whether the run
// continues.
func (q *Queue) complete(gen uint64, outcome tts.Outcome) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.gen != gen {
		return false
	}

	q.stats.LastComplete = time.Now()
	switch outcome {
	case tts.OutcomeFinished, tts.OutcomeFailed:
		if outcome == tts.OutcomeFinished {
			q.stats.TotalFinished++
		} else {
			q.stats.TotalFailed++
		}
		if len(q.items) > 0 {
			q.items = q.items[1:]
		}
	case tts.OutcomeCancelled:
		q.stats.TotalCancelled++
	}

	q.processing = false
	q.persistLocked()

	if outcome == tts.OutcomeCancelled {
		// Stopped behind our back; keep the head and wait for a trigger.
		q.runLen = 0
		return false
	}
	return true
}

// persistLocked writes the current queue to the store. Failures are logged
// and counted; the in-memory state stands.
func (q *Queue) persistLocked() {
	metrics.SetQueueLength(len(q.items))

	data, err := Encode(q.items)
	if err == nil {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		err = q.store.Set(ctx, StoreKey, data)
		cancel()
	}

	metrics.RecordPersist(err)
	if err != nil {
		q.stats.PersistErrors++
		q.logger.Error("failed to persist queue", "items", len(q.items), "err", err)
	}
}

// publish delivers the latest snapshot to every subscriber. It must not be
// called with mu held.
func (q *Queue) publish() {
	q.subsMu.Lock()
	defer q.subsMu.Unlock()

	if len(q.subs) == 0 {
		return
	}

	s := q.Snapshot()
	for _, ch := range q.subs {
		select {
		case <-ch:
		default:
		}
		ch <- s
	}
}
