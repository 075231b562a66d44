package publish

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryPublisher_RecordsMessages(t *testing.T) {
	t.Parallel()

	pub := NewMemoryPublisher()
	event := Event{
		Kind:    KindIngested,
		GameID:  620,
		Name:    "Portal 2",
		Outcome: "created",
		At:      time.Now().UTC(),
	}

	id, err := pub.Publish(context.Background(), "catalog-events", event)
	require.NoError(t, err)
	assert.Equal(t, "memory-1", id)

	messages := pub.Messages()
	require.Len(t, messages, 1)
	assert.Equal(t, "catalog-events", messages[0].Topic)
	assert.Equal(t, event, messages[0].Payload)
}

func TestNewEvent_StampsIDAndTime(t *testing.T) {
	t.Parallel()

	event := NewEvent(KindIngested, 620, "Portal 2", "created")
	assert.NotEmpty(t, event.ID)
	assert.Equal(t, KindIngested, event.Kind)
	assert.Equal(t, int64(620), event.GameID)
	assert.False(t, event.At.IsZero())

	other := NewEvent(KindIngested, 620, "Portal 2", "created")
	assert.NotEqual(t, event.ID, other.ID)
}

func TestEvent_JSONShape(t *testing.T) {
	t.Parallel()

	event := Event{
		Kind:    KindEnriched,
		GameID:  892970,
		Name:    "Valheim",
		Outcome: "updated",
		At:      time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC),
	}

	data, err := json.Marshal(event)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "game.enriched", decoded["kind"])
	assert.Equal(t, float64(892970), decoded["game_id"])
	assert.Equal(t, "updated", decoded["outcome"])
}
