package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	connerrors "github.com/inbenta-integrations/chatbot-api-connector/internal/errors"
)

// App is the application configuration file.
type App struct {
	API          API           `yaml:"api"`
	Conversation Conversation  `yaml:"conversation"`
	Chat         Chat          `yaml:"chat"`
	AI           AI            `yaml:"ai"`
	Environments []Environment `yaml:"environments"`
}

// AI configures the OpenAI bot backend.
type AI struct {
	// Facts are appended to the system prompt as the knowledge base.
	Facts string `yaml:"facts"`
}

type API struct {
	Key     string `yaml:"key"`
	Secret  string `yaml:"secret"`
	AuthURL string `yaml:"authUrl"`
}

type Conversation struct {
	// Default is sent as the configuration of every new bot conversation.
	Default        map[string]any `yaml:"default"`
	UserType       int            `yaml:"user_type"`
	Source         string         `yaml:"source"`
	ContentRatings ContentRatings `yaml:"content_ratings"`
}

// Lang is the conversation language, "en" when unset.
func (c Conversation) Lang() string {
	if lang, ok := c.Default["lang"].(string); ok && lang != "" {
		return lang
	}
	return "en"
}

type ContentRatings struct {
	Enabled bool           `yaml:"enabled"`
	Ratings []RatingOption `yaml:"ratings"`
}

type RatingOption struct {
	ID         int    `yaml:"id"`
	Label      string `yaml:"label"`
	Comment    bool   `yaml:"comment"`
	IsNegative bool   `yaml:"isNegative"`
}

type Chat struct {
	Enabled          bool   `yaml:"enabled"`
	AppID            string `yaml:"appId"`
	Secret           string `yaml:"secret"`
	RegionServer     string `yaml:"regionServer"`
	Server           string `yaml:"server"`
	RoomID           string `yaml:"roomId"`
	Source           string `yaml:"source"`
	Lang             string `yaml:"lang"`
	Queue            Queue  `yaml:"queue"`
	ExitQueueCommand string `yaml:"exitQueueCommand"`

	TriesBeforeEscalation           int `yaml:"triesBeforeEscalation"`
	NegativeRatingsBeforeEscalation int `yaml:"negativeRatingsBeforeEscalation"`

	WorkTimeTableActive  bool      `yaml:"workTimeTableActive"`
	TimezoneWorkingHours string    `yaml:"timezoneWorkingHours"`
	Timetable            Timetable `yaml:"timetable"`

	Survey      Survey `yaml:"survey"`
	TicketQueue string `yaml:"ticketQueue"`
}

type Queue struct {
	Active bool `yaml:"active"`
}

// Timetable is the static weekly schedule used when the ticketing backend has
// none: day names to "HH:MM-HH:MM" ranges, plus dated exceptions.
type Timetable struct {
	Days       map[string][]string `yaml:",inline"`
	Exceptions map[string][]string `yaml:"exceptions"`
}

type Survey struct {
	ID int `yaml:"id"`
}

// Environment is a detection rule: Type is http_host or script_name.
type Environment struct {
	Name  string `yaml:"name"`
	Type  string `yaml:"type"`
	Regex string `yaml:"regex"`
}

// LoadApp reads the YAML file at path and applies the secrets found in env.
func LoadApp(path string, env *Env) (*App, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read app config: %w", err)
	}
	return ParseApp(raw, env)
}

func ParseApp(raw []byte, env *Env) (*App, error) {
	var app App
	if err := yaml.Unmarshal(raw, &app); err != nil {
		return nil, fmt.Errorf("parse app config: %w", err)
	}
	if env != nil {
		app.applyEnv(env)
	}
	if app.API.Key == "" || app.API.Secret == "" {
		return nil, connerrors.Config("empty Chatbot API key or secret")
	}
	return &app, nil
}

func (a *App) applyEnv(env *Env) {
	override(&a.API.Key, env.InbentaKey)
	override(&a.API.Secret, env.InbentaSecret)
	override(&a.Chat.AppID, env.HyperchatAppID)
	override(&a.Chat.Secret, env.HyperchatSecret)
}

func override(dst *string, value string) {
	if value != "" {
		*dst = value
	}
}

// ChatEnabled reports whether live-agent escalation is configured.
func (a *App) ChatEnabled() bool {
	return a.Chat.Enabled && a.Chat.AppID != ""
}

// DetectEnvironment returns the name of the first rule matching host or
// script, "production" when none does.
func (a *App) DetectEnvironment(host, script string) string {
	for _, rule := range a.Environments {
		if rule.Type == "" || rule.Regex == "" {
			continue
		}
		re, err := regexp.Compile(rule.Regex)
		if err != nil {
			continue
		}
		field := script
		if strings.EqualFold(rule.Type, "http_host") {
			field = host
		}
		if re.MatchString(field) {
			return rule.Name
		}
	}
	return "production"
}
