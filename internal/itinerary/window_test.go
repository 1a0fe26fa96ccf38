package itinerary

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInWindowBounds(t *testing.T) {
	it := mustItinerary(t)
	seg, ok := it.Segment("out2")
	require.True(t, ok)

	dep, arr := seg.Departure(), seg.Arrival()

	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"just inside before departure", dep.Add(-(time.Hour + 59*time.Minute)), true},
		{"just outside before departure", dep.Add(-(2*time.Hour + time.Minute)), false},
		{"exact lower bound", dep.Add(-2 * time.Hour), true},
		{"during flight", dep.Add(3 * time.Hour), true},
		{"just inside after arrival", arr.Add(time.Hour + 59*time.Minute), true},
		{"just outside after arrival", arr.Add(2*time.Hour + time.Minute), false},
		{"exact upper bound", arr.Add(2 * time.Hour), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, InWindow(seg, tt.now))
		})
	}
}

func TestInWindowIgnoresCallerZone(t *testing.T) {
	it := mustItinerary(t)
	seg, _ := it.Segment("out2")

	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	now := seg.Departure().Add(-time.Hour).In(ny)
	assert.True(t, InWindow(seg, now))
}

func TestInferStatus(t *testing.T) {
	it := mustItinerary(t)
	seg, _ := it.Segment("out1")

	assert.Equal(t, PhaseScheduled, InferStatus(seg, seg.Departure().Add(-time.Minute)))
	assert.Equal(t, PhaseAirborne, InferStatus(seg, seg.Departure()))
	assert.Equal(t, PhaseAirborne, InferStatus(seg, seg.Arrival()))
	assert.Equal(t, PhaseLanded, InferStatus(seg, seg.Arrival().Add(time.Second)))
}

func TestCountdownTo(t *testing.T) {
	now := time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC)
	target := now.Add(49*time.Hour + 2*time.Minute + 3*time.Second)

	assert.Equal(t, Countdown{Days: 2, Hours: 1, Minutes: 2, Seconds: 3}, CountdownTo(target, now))
	assert.Equal(t, Countdown{}, CountdownTo(now.Add(-time.Hour), now))
}
