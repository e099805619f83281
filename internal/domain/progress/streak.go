package progress

import (
	"time"

	"github.com/defi-academy/navigator/pkg/timeutil"
)

// Streak tracks consecutive calendar days with at least one activity.
type Streak struct {
	Current        int       `json:"current"`
	Best           int       `json:"best"`
	LastActiveDate time.Time `json:"last_active_date"`
	StartDate      time.Time `json:"start_date"`
}

// Record returns the streak after an activity at the given time.
// Same day: unchanged. Next day: extended. Any gap: restarted at 1.
// An activity dated before the last active day is ignored.
func (s Streak) Record(at time.Time) Streak {
	day := timeutil.StartOfDay(at)

	if s.LastActiveDate.IsZero() {
		s.Current = 1
		s.LastActiveDate = day
		s.StartDate = day
		if s.Best < 1 {
			s.Best = 1
		}
		return s
	}

	switch diff := timeutil.DaysBetween(s.LastActiveDate, day); {
	case diff <= 0:
		return s
	case diff == 1:
		s.Current++
	default:
		s.Current = 1
		s.StartDate = day
	}

	s.LastActiveDate = day
	if s.Current > s.Best {
		s.Best = s.Current
	}
	return s
}

// ActiveDays returns the streak as seen at now: a streak whose last active
// day is before yesterday has lapsed and reports 0.
func (s Streak) ActiveDays(now time.Time) int {
	if s.LastActiveDate.IsZero() {
		return 0
	}
	if timeutil.DaysBetween(s.LastActiveDate, now) > 1 {
		return 0
	}
	return s.Current
}
