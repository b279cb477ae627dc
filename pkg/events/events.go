// Package events publishes validation session progress so HTTP clients can
// follow a run without polling. Events fan out through Redis pub/sub when
// configured, otherwise through an in-process hub.
package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/JaimeStill/rtoval/pkg/lifecycle"
)

// Event types.
const (
	TypeState    = "session.state"
	TypeProgress = "session.progress"
	TypeResult   = "result.upserted"
)

// Event is one progress notification for a validation session.
type Event struct {
	Type              string    `json:"type"`
	SessionID         string    `json:"session_id"`
	State             string    `json:"state,omitempty"`
	ResultCount       int       `json:"result_count"`
	ResultTotal       int       `json:"result_total"`
	ProgressPercent   float64   `json:"progress_percent"`
	RequirementType   string    `json:"requirement_type,omitempty"`
	RequirementNumber string    `json:"requirement_number,omitempty"`
	Message           string    `json:"message,omitempty"`
	At                time.Time `json:"at"`
}

// Publisher delivers session events to subscribers of the same session.
type Publisher interface {
	// Start registers startup and shutdown hooks with the coordinator.
	Start(lc *lifecycle.Coordinator) error
	// Publish sends e to every current subscriber of e.SessionID.
	Publish(ctx context.Context, e Event) error
	// Subscribe streams events for sessionID until ctx ends, then closes the channel.
	Subscribe(ctx context.Context, sessionID string) (<-chan Event, error)
}

// New returns a Redis publisher when cfg.Enabled, otherwise an in-process hub.
func New(cfg *Config, logger *slog.Logger) Publisher {
	logger = logger.With("system", "events")
	if cfg.Enabled {
		return newRedis(cfg, logger)
	}
	return NewHub(cfg.Buffer, logger)
}

func stamp(e Event) Event {
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	return e
}
