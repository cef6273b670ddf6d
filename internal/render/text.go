package render

import (
	"fmt"
	"time"
)

func CurrentTemp(temp float64) string {
	return fmt.Sprintf("The Current Temperature is %.1f°F", temp)
}

func RecordTemp(temp float64) string {
	return fmt.Sprintf("%.1f°F", temp)
}

func RecordDate(t time.Time) string {
	return t.Format("January 02, 2006")
}

// SinceDate captions the records section with the first reading's date.
func SinceDate(t time.Time) string {
	return "Collecting Data Since " + RecordDate(t)
}

// AsOf stamps a reading with when it was taken.
func AsOf(t time.Time) string {
	return "as of " + t.Format(hoverDayTime)
}
