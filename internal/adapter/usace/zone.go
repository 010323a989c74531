package usace

import "time"

// standardZones are the abbreviations the data query service accepts. It
// reports them as fixed standard-time offsets with no daylight shift.
var standardZones = map[string]int{
	"PST": -8,
	"MST": -7,
	"CST": -6,
	"EST": -5,
}

// ZoneLocation resolves the timezone parameter sent to the service into the
// location its offset-free timestamps are written in. Unknown names fall
// back to UTC.
func ZoneLocation(tz string) *time.Location {
	if hours, ok := standardZones[tz]; ok {
		return time.FixedZone(tz, hours*60*60)
	}
	switch tz {
	case "", "UTC", "GMT":
		return time.UTC
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.UTC
	}
	return loc
}
