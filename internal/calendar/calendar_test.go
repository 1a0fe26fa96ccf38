package calendar

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yegors/flightwatch/internal/itinerary"
)

func TestExport(t *testing.T) {
	it, err := itinerary.New(
		[]itinerary.AirportSpec{
			{Code: "FRA", Name: "Frankfurt", Lat: 50.0379, Lon: 8.5622, TZ: "Europe/Berlin"},
			{Code: "EWR", Name: "Newark", Lat: 40.6895, Lon: -74.1745, TZ: "America/New_York"},
		},
		[]itinerary.SegmentSpec{
			{ID: "out2", Label: "Outbound 2", Flight: "UA 8839", From: "FRA", To: "EWR", Departure: "2025-10-11T13:20", Arrival: "2025-10-11T21:40"},
			{ID: "ret1", Label: "Return 1", Flight: "UA 8838", From: "EWR", To: "FRA", Departure: "2025-10-18T18:00", Arrival: "2025-10-19T07:30"},
		},
		nil,
	)
	require.NoError(t, err)

	out := Export(it, time.Date(2025, 10, 1, 8, 0, 0, 0, time.UTC))

	assert.True(t, strings.HasPrefix(out, "BEGIN:VCALENDAR"))
	assert.Equal(t, 2, strings.Count(out, "BEGIN:VEVENT"))
	for _, want := range []string{
		"UID:out2@flightwatch",
		"DTSTART:20251011T112000Z",
		"DTEND:20251012T014000Z",
		"SUMMARY:UA 8839 FRA->EWR",
		"LOCATION:Frankfurt (FRA)->Newark (EWR)",
		"UID:ret1@flightwatch",
		"DTSTART:20251018T220000Z",
		"DTEND:20251019T053000Z",
		"DTSTAMP:20251001T080000Z",
	} {
		assert.Contains(t, out, want)
	}
	assert.Contains(t, out, "\r\n")
}
