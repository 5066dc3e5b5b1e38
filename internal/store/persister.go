package store

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/verte-zerg/cubetime/internal/model"
)

// Writer is the write side of a key/value store.
type Writer interface {
	Put(ctx context.Context, key string, value []byte) error
}

// Persister writes documents in the background so callers never block on
// disk. Pending writes to the same key are coalesced; only the latest
// snapshot is written. Write failures are logged and dropped.
type Persister struct {
	w Writer

	mu      sync.Mutex
	pending map[string][]byte
	order   []string
	wake    chan struct{}
	idle    *sync.Cond
	busy    bool
}

// NewPersister returns a Persister writing to w. Call Run to start it.
func NewPersister(w Writer) *Persister {
	p := &Persister{
		w:       w,
		pending: map[string][]byte{},
		wake:    make(chan struct{}, 1),
	}
	p.idle = sync.NewCond(&p.mu)
	return p
}

// Enqueue snapshots v as JSON and schedules it for writing under key.
func (p *Persister) Enqueue(key string, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		slog.Error("persist: encode failed", "key", key, "err", err)
		return
	}
	p.mu.Lock()
	if _, ok := p.pending[key]; !ok {
		p.order = append(p.order, key)
	}
	p.pending[key] = raw
	p.mu.Unlock()
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// Run writes queued documents until ctx is cancelled, then drains the queue.
// Writes never see the cancellation, so nothing queued before it is lost.
func (p *Persister) Run(ctx context.Context) error {
	writeCtx := context.WithoutCancel(ctx)
	for {
		select {
		case <-ctx.Done():
			p.drain(writeCtx)
			return nil
		case <-p.wake:
			p.drain(writeCtx)
		}
	}
}

// Flush blocks until every document queued so far has been handed to the writer.
func (p *Persister) Flush() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for len(p.order) > 0 || p.busy {
		p.idle.Wait()
	}
}

func (p *Persister) drain(ctx context.Context) {
	for {
		p.mu.Lock()
		if len(p.order) == 0 {
			p.busy = false
			p.idle.Broadcast()
			p.mu.Unlock()
			return
		}
		key := p.order[0]
		p.order = p.order[1:]
		raw := p.pending[key]
		delete(p.pending, key)
		p.busy = true
		p.mu.Unlock()

		if err := p.w.Put(ctx, key, raw); err != nil {
			slog.Warn("persist: write dropped", "key", key, "err", err)
		}
	}
}

// SaveSolves queues the solve history.
func (p *Persister) SaveSolves(solves []model.Solve) {
	p.Enqueue(KeySolves, solves)
}

// SaveSessions queues the session list.
func (p *Persister) SaveSessions(sessions []model.Session) {
	p.Enqueue(KeySessions, sessions)
}

// SaveScrambleSettings queues the scramble settings.
func (p *Persister) SaveScrambleSettings(settings model.ScrambleSettings) {
	p.Enqueue(KeyScrambleSettings, settings)
}

// SaveActiveSession queues the selected session id.
func (p *Persister) SaveActiveSession(id string) {
	p.Enqueue(KeyActiveSession, id)
}
