package broker

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wirebus/wirebus/internal/models"
)

func eventFrame(id string) models.ServerFrame {
	return models.ServerFrame{
		Type:    models.FrameEvent,
		Message: &models.Message{ID: id},
	}
}

func frameIDs(frames []models.ServerFrame) []string {
	ids := make([]string, len(frames))
	for i, f := range frames {
		ids[i] = f.Message.ID
	}
	return ids
}

func TestReplayRingBounded(t *testing.T) {
	r := newReplayRing(3)
	for i := 0; i < 10; i++ {
		r.Append(eventFrame(fmt.Sprintf("m%d", i)))
		assert.LessOrEqual(t, r.Len(), 3)
	}
	assert.Equal(t, 3, r.Len())
}

func TestReplayRingKeepsSuffixInOrder(t *testing.T) {
	r := newReplayRing(3)
	for i := 0; i < 5; i++ {
		r.Append(eventFrame(fmt.Sprintf("m%d", i)))
	}

	assert.Equal(t, []string{"m2", "m3", "m4"}, frameIDs(r.LastN(3)))
	assert.Equal(t, []string{"m3", "m4"}, frameIDs(r.LastN(2)))
}

func TestReplayRingLastNClampedToSize(t *testing.T) {
	r := newReplayRing(10)
	r.Append(eventFrame("a"))
	r.Append(eventFrame("b"))

	got := r.LastN(100)
	require.Len(t, got, 2)
	assert.Equal(t, []string{"a", "b"}, frameIDs(got))
}

func TestReplayRingEmptyAndNonPositiveN(t *testing.T) {
	r := newReplayRing(4)
	assert.Nil(t, r.LastN(2))

	r.Append(eventFrame("a"))
	assert.Nil(t, r.LastN(0))
	assert.Nil(t, r.LastN(-1))
}

func TestReplayRingZeroCapacityDisablesReplay(t *testing.T) {
	r := newReplayRing(0)
	r.Append(eventFrame("a"))
	assert.Equal(t, 0, r.Len())
	assert.Nil(t, r.LastN(5))
}
