package risk

import "time"

// DayPart partitions the day into the bands risk scores are kept for.
// Incident patterns differ enough between, say, a station square at noon and
// the same square at 2am that a single bucket would wash both out.
type DayPart string

const (
	Morning   DayPart = "morning"   // 06:00-12:00
	Afternoon DayPart = "afternoon" // 12:00-18:00
	Evening   DayPart = "evening"   // 18:00-22:00
	Night     DayPart = "night"     // 22:00-06:00
)

// DayParts lists every part of day.
var DayParts = []DayPart{Morning, Afternoon, Evening, Night}

// DayPartAt returns the part of day t falls in, using t's own location.
func DayPartAt(t time.Time) DayPart {
	switch h := t.Hour(); {
	case h >= 6 && h < 12:
		return Morning
	case h >= 12 && h < 18:
		return Afternoon
	case h >= 18 && h < 22:
		return Evening
	default:
		return Night
	}
}
