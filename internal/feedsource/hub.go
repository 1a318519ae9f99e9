package feedsource

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/vibeteen/vibe-teen/internal/model"
	"github.com/vibeteen/vibe-teen/internal/repository"
)

// Hub is a Source backed by the actions table.
//
// Every write through the hub is followed by a re-read of the newest entries
// and a broadcast. Run adds a periodic re-read so writes made by another
// process sharing the database also show up.
type Hub struct {
	repo   repository.ActionRepository
	limit  int
	logger *slog.Logger

	// refreshMu serializes read+broadcast so snapshots leave in commit order.
	refreshMu sync.Mutex

	mu     sync.Mutex
	subs   map[uint64]*subscription
	nextID uint64
	last   []model.Action
	loaded bool
	closed bool
	// seq numbers broadcasts so a late initial delivery can never overwrite
	// a newer snapshot already queued for the same subscriber.
	seq uint64
}

var _ Source = (*Hub)(nil)

// NewHub creates a hub. limit <= 0 means FeedLimit.
func NewHub(repo repository.ActionRepository, limit int, logger *slog.Logger) *Hub {
	if limit <= 0 {
		limit = FeedLimit
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		repo:   repo,
		limit:  limit,
		logger: logger,
		subs:   make(map[uint64]*subscription),
	}
}

// Limit is the snapshot size cap.
func (h *Hub) Limit() int { return h.limit }

// Subscribe implements Source. The first callback is the current snapshot:
// the cached one if the hub has loaded before, otherwise a fresh read.
func (h *Hub) Subscribe(onSnapshot func([]model.Action), onError func(error)) func() {
	if onSnapshot == nil {
		onSnapshot = func([]model.Action) {}
	}
	if onError == nil {
		onError = func(error) {}
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		onError(fmt.Errorf("feedsource: hub closed"))
		return func() {}
	}
	h.nextID++
	id := h.nextID
	sub := newSubscription(onSnapshot, onError)
	h.subs[id] = sub
	initial, loaded, seq := h.last, h.loaded, h.seq
	h.mu.Unlock()

	go sub.run()

	if loaded {
		sub.offer(delivery{seq: seq, entries: initial})
	} else {
		sub.offer(delivery{refresh: func() { h.Refresh(context.Background()) }})
	}

	h.logger.Debug("feed subscriber added", slog.Uint64("sub", id))

	return func() {
		if sub.stop() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
			h.logger.Debug("feed subscriber removed", slog.Uint64("sub", id))
		}
	}
}

// Subscribers is the number of live subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Create implements Source.
func (h *Hub) Create(ctx context.Context, na model.NewAction) error {
	a := &model.Action{
		AuthorName:      na.AuthorName,
		AuthorID:        na.AuthorID,
		BeneficiaryName: na.BeneficiaryName,
		Category:        na.Category,
		AuthorColor:     na.AuthorColor,
	}
	if err := h.repo.Create(ctx, a); err != nil {
		return fmt.Errorf("feedsource: creating action: %w", err)
	}
	h.logger.Info("action created",
		slog.String("id", a.ID),
		slog.String("category", string(a.Category)),
	)
	h.Refresh(ctx)
	return nil
}

// Delete implements Source.
func (h *Hub) Delete(ctx context.Context, id string) error {
	if err := h.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("feedsource: deleting action %s: %w", id, err)
	}
	h.logger.Info("action deleted", slog.String("id", id))
	h.Refresh(ctx)
	return nil
}

// Refresh re-reads the newest entries and broadcasts them. A read failure is
// broadcast as an error; the cached snapshot stays as it was.
func (h *Hub) Refresh(ctx context.Context) {
	h.refreshMu.Lock()
	defer h.refreshMu.Unlock()

	entries, err := h.repo.List(ctx, repository.ListOptions{Limit: h.limit})

	h.mu.Lock()
	h.seq++
	seq := h.seq
	if err == nil {
		h.last = entries
		h.loaded = true
	}
	subs := make([]*subscription, 0, len(h.subs))
	for _, s := range h.subs {
		subs = append(subs, s)
	}
	h.mu.Unlock()

	if err != nil {
		h.logger.Warn("feed refresh failed", slog.String("error", err.Error()))
		err = fmt.Errorf("feedsource: reading feed: %w", err)
		for _, s := range subs {
			s.offer(delivery{seq: seq, err: err})
		}
		return
	}
	for _, s := range subs {
		s.offer(delivery{seq: seq, entries: entries})
	}
}

// Run polls the store every interval until ctx is done, then ends every
// subscription. interval <= 0 disables polling but still waits for ctx.
func (h *Hub) Run(ctx context.Context, interval time.Duration) error {
	defer h.Close()

	if interval <= 0 {
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			h.Refresh(ctx)
		}
	}
}

// Close ends every subscription. Later Subscribe calls get an immediate error.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	subs := h.subs
	h.subs = make(map[uint64]*subscription)
	h.mu.Unlock()

	for _, s := range subs {
		s.stop()
	}
}
