package room

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEstimatePosition(t *testing.T) {
	anchor := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		last    float64
		playing bool
		now     time.Time
		want    float64
	}{
		{"playing adds elapsed", 10.0, true, anchor.Add(2500 * time.Millisecond), 12.5},
		{"playing at anchor", 10.0, true, anchor, 10.0},
		{"paused ignores elapsed", 10.0, false, anchor.Add(1 * time.Hour), 10.0},
		{"paused at anchor", 7.25, false, anchor, 7.25},
		{"clock behind anchor clamps", 10.0, true, anchor.Add(-3 * time.Second), 10.0},
		{"zero position", 0, true, anchor.Add(90 * time.Second), 90.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EstimatePosition(tt.last, anchor, tt.playing, tt.now)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestRoomPosition(t *testing.T) {
	anchor := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	rm := Room{IsPlaying: true, LastKnownTime: 30, LastKnownTimeUpdatedAt: anchor}
	assert.InDelta(t, 31.5, rm.Position(anchor.Add(1500*time.Millisecond)), 1e-9)

	rm.IsPlaying = false
	assert.Equal(t, 30.0, rm.Position(anchor.Add(10*time.Minute)))
}
