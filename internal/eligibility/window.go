package eligibility

import "time"

// Location is the tenants' reference zone. It is a fixed offset; Brazil
// dropped daylight saving in 2019.
var Location = time.FixedZone("BRT", -3*60*60)

const dateLayout = "2006-01-02"

// Window holds the local calendar boundaries every rule is evaluated against.
// All fields are midnight in Location except Now.
type Window struct {
	Now        time.Time
	Today      time.Time
	Yesterday  time.Time
	MonthStart time.Time
	YearStart  time.Time
}

// NewWindow converts now into the reference zone and derives the boundaries.
func NewWindow(now time.Time) Window {
	local := now.In(Location)
	y, m, d := local.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, Location)
	return Window{
		Now:        local,
		Today:      today,
		Yesterday:  today.AddDate(0, 0, -1),
		MonthStart: time.Date(y, m, 1, 0, 0, 0, 0, Location),
		YearStart:  time.Date(y, time.January, 1, 0, 0, 0, 0, Location),
	}
}

// DaysAgo returns local midnight n days before today.
func (w Window) DaysAgo(n int) time.Time {
	return w.Today.AddDate(0, 0, -n)
}

// Day is the local day of month.
func (w Window) Day() int { return w.Today.Day() }

func dateArg(t time.Time) string { return t.Format(dateLayout) }

// ParseLocalDate reads a YYYY-MM-DD date as local midnight.
func ParseLocalDate(s string) (time.Time, error) {
	return time.ParseInLocation(dateLayout, s, Location)
}
