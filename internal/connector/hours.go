package connector

import (
	"context"
	"strings"
	"time"

	"github.com/inbenta-integrations/chatbot-api-connector/internal/messenger"
	"github.com/inbenta-integrations/chatbot-api-connector/internal/timetable"
)

var holidayLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"02-01-2006",
}

// checkServiceHours reports whether agents work now. Without an active work
// timetable the service is always open.
func (c *conversation) checkServiceHours(ctx context.Context) (bool, error) {
	chat := c.app.Chat
	if !chat.WorkTimeTableActive {
		return true, nil
	}
	loc := time.UTC
	if chat.TimezoneWorkingHours != "" {
		l, err := time.LoadLocation(chat.TimezoneWorkingHours)
		if err != nil {
			c.log.Warn("unknown working hours timezone, using UTC", "timezone", chat.TimezoneWorkingHours)
		} else {
			loc = l
		}
	}

	days, exceptions := c.serviceTimetable(ctx)
	schedule, err := timetable.Parse(days, exceptions, loc)
	if err != nil {
		return false, err
	}
	return schedule.IsOpenAt(c.now()), nil
}

// serviceTimetable returns the room timetable of the ticketing backend, or
// the configured one when the backend has none.
func (c *conversation) serviceTimetable(ctx context.Context) (map[string][]string, map[string][]string) {
	if c.tickets != nil {
		table, err := c.tickets.WorkTimeTable(ctx)
		if err != nil {
			c.log.Warn("work timetable unavailable, using configuration", "error", err)
		} else if days, exceptions, ok := roomTimetable(table, c.app.Chat.RoomID); ok {
			return days, exceptions
		}
	}
	return c.app.Chat.Timetable.Days, c.app.Chat.Timetable.Exceptions
}

// roomTimetable converts the week and holidays of roomID. Holidays are closed
// all day.
func roomTimetable(table *messenger.WorkTimeTable, roomID string) (map[string][]string, map[string][]string, bool) {
	if table == nil {
		return nil, nil, false
	}
	found := false
	days := map[string][]string{}
	for _, week := range table.Weeks {
		if week.QueueID.String() != roomID {
			continue
		}
		found = true
		days = map[string][]string{}
		for day, intervals := range week.Days {
			name := strings.ToLower(day.String())
			for _, in := range intervals {
				days[name] = append(days[name], in.From+"-"+in.To)
			}
		}
	}

	var exceptions map[string][]string
	for _, holiday := range table.Holidays {
		if holiday.QueueID.String() != roomID {
			continue
		}
		found = true
		exceptions = map[string][]string{}
		for _, value := range holiday.Days {
			if date, ok := holidayDate(value); ok {
				exceptions[date] = []string{}
			}
		}
	}
	return days, exceptions, found
}

func holidayDate(value string) (string, bool) {
	for _, layout := range holidayLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.Format("2006-01-02"), true
		}
	}
	return "", false
}
