// Package calendar renders the itinerary as an iCalendar document.
package calendar

import (
	"fmt"
	"time"

	ics "github.com/arran4/golang-ical"

	"github.com/yegors/flightwatch/internal/itinerary"
)

const productID = "-//flightwatch//itinerary//EN"

// Export returns one VEVENT per segment with UTC start and end times.
// stamp is written as DTSTAMP on every event.
func Export(it *itinerary.Itinerary, stamp time.Time) string {
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(productID)

	for _, seg := range it.Segments() {
		event := cal.AddEvent(fmt.Sprintf("%s@flightwatch", seg.ID))
		event.SetDtStampTime(stamp)
		event.SetStartAt(seg.Departure())
		event.SetEndAt(seg.Arrival())
		event.SetSummary(fmt.Sprintf("%s %s->%s", seg.Flight, seg.Origin.Code, seg.Destination.Code))
		event.SetLocation(fmt.Sprintf("%s (%s)->%s (%s)",
			seg.Origin.Name, seg.Origin.Code, seg.Destination.Name, seg.Destination.Code))
		if seg.Label != "" {
			event.SetDescription(seg.Label)
		}
	}

	return cal.Serialize()
}
