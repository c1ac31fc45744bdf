package messenger

import (
	"strings"
	"time"

	"golang.org/x/net/html"
)

// Tags kept in ticket transcripts; everything else is reduced to its text.
var allowedTags = map[string]bool{
	"br": true, "li": true, "ul": true, "ol": true, "p": true, "a": true, "img": true, "iframe": true,
}

// StripTags removes every HTML tag except the ones in allowed, keeping text.
func StripTags(s string, allowed map[string]bool) string {
	z := html.NewTokenizer(strings.NewReader(s))
	var b strings.Builder
	for {
		switch z.Next() {
		case html.ErrorToken:
			return b.String()
		case html.TextToken:
			b.Write(z.Raw())
		case html.StartTagToken, html.EndTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			if allowed[string(name)] {
				b.Write(z.Raw())
			}
		}
	}
}

type transcriptLine struct {
	Message string `json:"message"`
	User    string `json:"user"`
}

// processTranscript cleans each line and suffixes its UTC timestamp. Empty
// lines are dropped.
func processTranscript(history []TranscriptEntry) []transcriptLine {
	lines := make([]transcriptLine, 0, len(history))
	for _, e := range history {
		msg := strings.TrimSpace(StripTags(e.Message, allowedTags))
		if msg == "" {
			continue
		}
		stamp := time.Unix(e.Created, 0).UTC().Format("2006-01-02 15:04:05Z")
		lines = append(lines, transcriptLine{
			Message: msg + " (<small>" + stamp + "</small>)",
			User:    e.Sender,
		})
	}
	return lines
}
