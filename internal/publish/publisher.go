// Package publish emits per-record ingestion events for downstream
// consumers.
package publish

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Publisher pushes one event and returns the broker-assigned message id.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Event is the payload published after a record is ingested or enriched.
type Event struct {
	ID      string    `json:"id"`
	Kind    string    `json:"kind"`
	GameID  int64     `json:"game_id"`
	Name    string    `json:"name"`
	Outcome string    `json:"outcome"`
	At      time.Time `json:"at"`
}

// Event kinds.
const (
	KindIngested = "game.ingested"
	KindEnriched = "game.enriched"
)

// NewEvent stamps an event with a fresh id and the current time.
func NewEvent(kind string, gameID int64, name, outcome string) Event {
	return Event{
		ID:      uuid.NewString(),
		Kind:    kind,
		GameID:  gameID,
		Name:    name,
		Outcome: outcome,
		At:      time.Now().UTC(),
	}
}
