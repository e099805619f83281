package progress

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func day(d int) time.Time {
	return time.Date(2026, 1, d, 15, 30, 0, 0, time.UTC)
}

func TestStreak_Record(t *testing.T) {
	var s Streak

	s = s.Record(day(1))
	assert.Equal(t, 1, s.Current)
	assert.Equal(t, 1, s.Best)

	s = s.Record(day(1).Add(3 * time.Hour))
	assert.Equal(t, 1, s.Current, "same day does not extend")

	s = s.Record(day(2))
	s = s.Record(day(3))
	assert.Equal(t, 3, s.Current)
	assert.Equal(t, 3, s.Best)

	s = s.Record(day(6))
	assert.Equal(t, 1, s.Current, "gap restarts the streak")
	assert.Equal(t, 3, s.Best, "best is kept")
	assert.Equal(t, day(6).Truncate(24*time.Hour), s.StartDate)
}

func TestStreak_IgnoresPastDates(t *testing.T) {
	s := Streak{}.Record(day(5)).Record(day(6))
	s = s.Record(day(2))
	assert.Equal(t, 2, s.Current)
	assert.Equal(t, day(6).Truncate(24*time.Hour), s.LastActiveDate)
}

func TestStreak_ActiveDays(t *testing.T) {
	s := Streak{}.Record(day(1)).Record(day(2))

	assert.Equal(t, 2, s.ActiveDays(day(2)))
	assert.Equal(t, 2, s.ActiveDays(day(3)), "yesterday keeps the streak alive")
	assert.Equal(t, 0, s.ActiveDays(day(4)))
	assert.Equal(t, 0, Streak{}.ActiveDays(day(4)))
}
