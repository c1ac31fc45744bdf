package messenger

import (
	"encoding/json"
	"strings"
	"time"
)

type Interval struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Week is the work timetable of one queue.
type Week struct {
	QueueID json.Number
	Days    map[time.Weekday][]Interval
}

var weekdayNames = map[string]time.Weekday{
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
	"sunday":    time.Sunday,
}

func (w *Week) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	w.Days = map[time.Weekday][]Interval{}
	for key, value := range raw {
		if key == "queueId" {
			if err := json.Unmarshal(value, &w.QueueID); err != nil {
				return err
			}
			continue
		}
		day, ok := weekdayNames[strings.ToLower(key)]
		if !ok {
			continue
		}
		var intervals []Interval
		if err := json.Unmarshal(value, &intervals); err != nil {
			return err
		}
		w.Days[day] = intervals
	}
	return nil
}

type Holiday struct {
	QueueID json.Number `json:"queueId"`
	Days    []string    `json:"days"`
}

type WorkTimeTable struct {
	Weeks    []Week    `json:"weeks"`
	Holidays []Holiday `json:"holidays"`
}

type SurveySetting struct {
	Subtype string          `json:"subtype"`
	Value   json.RawMessage `json:"value"`
}

type SurveyItem struct {
	ID       json.Number    `json:"id"`
	Type     string         `json:"type"`
	Subtype  string         `json:"subtype"`
	Settings map[string]any `json:"settings"`
}

type SurveyPage struct {
	ID    json.Number  `json:"id"`
	Items []SurveyItem `json:"items"`
}

// Survey is a started survey as returned by /v1/surveys/{id}/start.
type Survey struct {
	Token    string          `json:"token"`
	Settings []SurveySetting `json:"settings"`
	Pages    []SurveyPage    `json:"pages"`
}

// TranscriptEntry is a conversation line attached to a ticket.
type TranscriptEntry struct {
	Sender  string
	Message string
	Created int64
}
