package progress

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTracker_Counters(t *testing.T) {
	t.Parallel()

	tracker := NewTracker("populate")
	tracker.MarkProcessed()
	tracker.MarkProcessed()
	tracker.MarkCreated()
	tracker.MarkSkipped()
	tracker.MarkFailed()

	snap := tracker.Snapshot()
	assert.Equal(t, "populate", snap.Phase)
	assert.Equal(t, int64(2), snap.Processed)
	assert.Equal(t, int64(1), snap.Created)
	assert.Equal(t, int64(1), snap.Skipped)
	assert.Equal(t, int64(1), snap.Failed)
	assert.False(t, snap.StartedAt.IsZero())
}

func TestTracker_ConcurrentMarks(t *testing.T) {
	t.Parallel()

	tracker := NewTracker("enrich")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tracker.MarkProcessed()
			tracker.MarkCreated()
		}()
	}
	wg.Wait()

	snap := tracker.Snapshot()
	assert.Equal(t, int64(50), snap.Processed)
	assert.Equal(t, int64(50), snap.Created)
}
