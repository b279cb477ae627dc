package events

import (
	"context"
	"log/slog"
	"sync"

	"github.com/JaimeStill/rtoval/pkg/lifecycle"
)

// Hub is an in-process Publisher. Slow subscribers drop events rather than
// block publishers.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]map[chan Event]struct{}
	buffer int
	logger *slog.Logger
}

// NewHub creates a hub whose subscriber channels hold buffer events.
func NewHub(buffer int, logger *slog.Logger) *Hub {
	return &Hub{
		subs:   make(map[string]map[chan Event]struct{}),
		buffer: max(buffer, 1),
		logger: logger,
	}
}

func (h *Hub) Start(lc *lifecycle.Coordinator) error {
	h.logger.Info("starting in-process event hub")
	return nil
}

func (h *Hub) Publish(_ context.Context, e Event) error {
	e = stamp(e)

	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.subs[e.SessionID] {
		select {
		case ch <- e:
		default:
			h.logger.Warn("event dropped for slow subscriber", "session_id", e.SessionID, "type", e.Type)
		}
	}
	return nil
}

func (h *Hub) Subscribe(ctx context.Context, sessionID string) (<-chan Event, error) {
	ch := make(chan Event, h.buffer)

	h.mu.Lock()
	if h.subs[sessionID] == nil {
		h.subs[sessionID] = make(map[chan Event]struct{})
	}
	h.subs[sessionID][ch] = struct{}{}
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.mu.Lock()
		delete(h.subs[sessionID], ch)
		if len(h.subs[sessionID]) == 0 {
			delete(h.subs, sessionID)
		}
		h.mu.Unlock()
		close(ch)
	}()

	return ch, nil
}

// Subscribers returns the number of live subscriptions for sessionID.
func (h *Hub) Subscribers(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[sessionID])
}
