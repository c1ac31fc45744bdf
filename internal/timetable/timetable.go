// Package timetable evaluates service hours: weekly opening ranges per day plus
// dated exceptions (holidays or special hours) in a fixed timezone.
package timetable

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// Range is an opening range in minutes since midnight. To may be lower than
// From for ranges that end after midnight.
type Range struct {
	From int
	To   int
}

func (r Range) overnight() bool { return r.To <= r.From }

// ParseRange reads "HH:MM-HH:MM".
func ParseRange(s string) (Range, error) {
	from, to, ok := strings.Cut(strings.TrimSpace(s), "-")
	if !ok {
		return Range{}, fmt.Errorf("invalid time range %q", s)
	}
	f, err := parseClock(from)
	if err != nil {
		return Range{}, err
	}
	t, err := parseClock(to)
	if err != nil {
		return Range{}, err
	}
	return Range{From: f, To: t}, nil
}

func parseClock(s string) (int, error) {
	h, m, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, fmt.Errorf("invalid time %q", s)
	}
	hh, err := strconv.Atoi(h)
	if err != nil || hh < 0 || hh > 24 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	mm, err := strconv.Atoi(m)
	if err != nil || mm < 0 || mm > 59 || (hh == 24 && mm != 0) {
		return 0, fmt.Errorf("invalid minutes in %q", s)
	}
	return hh*60 + mm, nil
}

type Schedule struct {
	Days       map[time.Weekday][]Range
	Exceptions map[string][]Range // keyed by date; an empty list means closed
	Location   *time.Location
}

var dayNames = map[string]time.Weekday{
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
	"sunday":    time.Sunday,
}

// Parse builds a schedule from day names ("monday") to ranges ("09:00-17:00")
// and from dates ("2024-12-25") to ranges. A nil location means UTC.
func Parse(days map[string][]string, exceptions map[string][]string, loc *time.Location) (*Schedule, error) {
	if loc == nil {
		loc = time.UTC
	}
	s := &Schedule{Days: map[time.Weekday][]Range{}, Exceptions: map[string][]Range{}, Location: loc}
	for name, ranges := range days {
		day, ok := dayNames[strings.ToLower(name)]
		if !ok {
			return nil, fmt.Errorf("unknown day %q", name)
		}
		parsed, err := parseRanges(ranges)
		if err != nil {
			return nil, err
		}
		s.Days[day] = parsed
	}
	for date, ranges := range exceptions {
		d, err := time.Parse(dateLayout, date)
		if err != nil {
			return nil, fmt.Errorf("invalid exception date %q: %w", date, err)
		}
		parsed, err := parseRanges(ranges)
		if err != nil {
			return nil, err
		}
		s.Exceptions[d.Format(dateLayout)] = parsed
	}
	return s, nil
}

func parseRanges(in []string) ([]Range, error) {
	out := make([]Range, 0, len(in))
	for _, r := range in {
		parsed, err := ParseRange(r)
		if err != nil {
			return nil, err
		}
		out = append(out, parsed)
	}
	return out, nil
}

// rangesFor returns the ranges of the calendar day of t, exceptions first.
func (s *Schedule) rangesFor(t time.Time) []Range {
	if r, ok := s.Exceptions[t.Format(dateLayout)]; ok {
		return r
	}
	return s.Days[t.Weekday()]
}

// IsOpenAt reports whether t falls in an opening range, including ranges of
// the previous day that run past midnight.
func (s *Schedule) IsOpenAt(t time.Time) bool {
	t = t.In(s.Location)
	minute := t.Hour()*60 + t.Minute()

	for _, r := range s.rangesFor(t) {
		if r.overnight() {
			if minute >= r.From {
				return true
			}
			continue
		}
		if minute >= r.From && minute < r.To {
			return true
		}
	}

	yesterday := t.AddDate(0, 0, -1)
	for _, r := range s.rangesFor(yesterday) {
		if r.overnight() && minute < r.To {
			return true
		}
	}
	return false
}
