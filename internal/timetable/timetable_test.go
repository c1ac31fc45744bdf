package timetable

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustSchedule(t *testing.T, days, exceptions map[string][]string, loc *time.Location) *Schedule {
	t.Helper()
	s, err := Parse(days, exceptions, loc)
	require.NoError(t, err)
	return s
}

func TestParseRange(t *testing.T) {
	r, err := ParseRange("09:30-17:00")
	require.NoError(t, err)
	assert.Equal(t, Range{From: 570, To: 1020}, r)

	_, err = ParseRange("9-17")
	assert.Error(t, err)
	_, err = ParseRange("09:00")
	assert.Error(t, err)
	_, err = ParseRange("24:30-25:00")
	assert.Error(t, err)
}

func TestIsOpenAtWeekly(t *testing.T) {
	s := mustSchedule(t, map[string][]string{
		"monday": {"09:00-13:00", "14:00-18:00"},
		"Friday": {"09:00-24:00"},
	}, nil, nil)

	// 2024-05-06 is a Monday
	assert.True(t, s.IsOpenAt(time.Date(2024, 5, 6, 9, 0, 0, 0, time.UTC)))
	assert.False(t, s.IsOpenAt(time.Date(2024, 5, 6, 13, 30, 0, 0, time.UTC)))
	assert.True(t, s.IsOpenAt(time.Date(2024, 5, 6, 17, 59, 0, 0, time.UTC)))
	assert.False(t, s.IsOpenAt(time.Date(2024, 5, 6, 18, 0, 0, 0, time.UTC)))
	assert.False(t, s.IsOpenAt(time.Date(2024, 5, 7, 10, 0, 0, 0, time.UTC)))
	assert.True(t, s.IsOpenAt(time.Date(2024, 5, 10, 23, 59, 0, 0, time.UTC)))
}

func TestOvernightRange(t *testing.T) {
	s := mustSchedule(t, map[string][]string{"saturday": {"22:00-02:00"}}, nil, nil)

	// 2024-05-11 is a Saturday
	assert.True(t, s.IsOpenAt(time.Date(2024, 5, 11, 23, 0, 0, 0, time.UTC)))
	assert.True(t, s.IsOpenAt(time.Date(2024, 5, 12, 1, 30, 0, 0, time.UTC)))
	assert.False(t, s.IsOpenAt(time.Date(2024, 5, 12, 2, 0, 0, 0, time.UTC)))
}

func TestExceptionsOverrideWeekdays(t *testing.T) {
	s := mustSchedule(t,
		map[string][]string{"wednesday": {"09:00-17:00"}, "thursday": {"09:00-17:00"}},
		map[string][]string{"2024-12-25": {}, "2024-12-26": {"10:00-12:00"}},
		nil)

	assert.False(t, s.IsOpenAt(time.Date(2024, 12, 25, 10, 0, 0, 0, time.UTC)))
	assert.True(t, s.IsOpenAt(time.Date(2024, 12, 26, 11, 0, 0, 0, time.UTC)))
	assert.False(t, s.IsOpenAt(time.Date(2024, 12, 26, 15, 0, 0, 0, time.UTC)))
}

func TestTimezone(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*3600)
	s := mustSchedule(t, map[string][]string{"monday": {"09:00-10:00"}}, nil, loc)

	// 07:30 UTC is 09:30 in UTC+2
	assert.True(t, s.IsOpenAt(time.Date(2024, 5, 6, 7, 30, 0, 0, time.UTC)))
	assert.False(t, s.IsOpenAt(time.Date(2024, 5, 6, 9, 30, 0, 0, time.UTC)))
}

func TestParseErrors(t *testing.T) {
	_, err := Parse(map[string][]string{"funday": {"09:00-10:00"}}, nil, nil)
	assert.Error(t, err)
	_, err = Parse(nil, map[string][]string{"25/12/2024": {}}, nil)
	assert.Error(t, err)
}
