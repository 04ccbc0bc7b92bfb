package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"feedbackbot/internal/entities"

	"github.com/joho/godotenv"
)

// Mode selects what a process invocation does.
type Mode string

const (
	ModeRun       Mode = "run"       // fetch, format and publish once
	ModeIntroduce Mode = "introduce" // publish the self-description once
	ModeServe     Mode = "serve"     // run the inbound events endpoint
)

// FieldMap names the Notion properties the formatter reads.
type FieldMap struct {
	Title     string
	Sentiment string
	Summary   string
}

// Config holds all configuration for the application. It is read once at
// startup and passed by value.
type Config struct {
	NotionToken      string
	NotionDatabaseID string
	NotionAPIBase    string
	NotionVersion    string
	SlackWebhookURL  string
	SigningSecret    string

	Mode     Mode
	Port     string
	Env      string
	LogLevel string

	BotName         string
	Schedule        string
	Fields          FieldMap
	MaxMessageChars int
	PostsPerSecond  float64
	HTTPTimeout     time.Duration
}

// Load reads configuration from environment variables, loading .env first
// when present.
func Load() (Config, error) {
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function and validates it.
func FromEnv(getenv func(string) string) (Config, error) {
	get := func(key, fallback string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return fallback
	}

	cfg := Config{
		NotionToken:      get("NOTION_TOKEN", ""),
		NotionDatabaseID: get("NOTION_DATABASE_ID", get("NOTION_FEEDBACK_DB", "")),
		NotionAPIBase:    strings.TrimRight(get("NOTION_API_BASE", "https://api.notion.com/v1"), "/"),
		NotionVersion:    get("NOTION_VERSION", "2022-06-28"),
		SlackWebhookURL:  get("SLACK_WEBHOOK", get("SLACK_FEEDBACK_WEBHOOK", "")),
		SigningSecret:    get("SLACK_SIGNING_SECRET", ""),
		Mode:             Mode(strings.ToLower(get("BOT_MODE", string(ModeRun)))),
		Port:             get("PORT", "5000"),
		Env:              get("ENV", "development"),
		LogLevel:         get("LOG_LEVEL", "info"),
		BotName:          get("BOT_NAME", "Feedback"),
		Schedule:         get("FEEDBACK_SCHEDULE", "every weekday at 09:00"),
		Fields: FieldMap{
			Title:     get("FEEDBACK_TITLE_PROPERTY", "Name"),
			Sentiment: get("FEEDBACK_SENTIMENT_PROPERTY", "Sentiment"),
			Summary:   get("FEEDBACK_SUMMARY_PROPERTY", "Summary"),
		},
	}

	var reasons []string

	maxChars, err := strconv.Atoi(get("MESSAGE_MAX_CHARS", "3500"))
	if err != nil || maxChars < 100 {
		reasons = append(reasons, "MESSAGE_MAX_CHARS must be an integer >= 100")
	}
	cfg.MaxMessageChars = maxChars

	pps, err := strconv.ParseFloat(get("SLACK_POSTS_PER_SECOND", "1"), 64)
	if err != nil || pps <= 0 {
		reasons = append(reasons, "SLACK_POSTS_PER_SECOND must be a positive number")
	}
	cfg.PostsPerSecond = pps

	timeoutSec, err := strconv.Atoi(get("HTTP_TIMEOUT_SEC", "15"))
	if err != nil || timeoutSec <= 0 {
		reasons = append(reasons, "HTTP_TIMEOUT_SEC must be a positive integer")
	}
	cfg.HTTPTimeout = time.Duration(timeoutSec) * time.Second

	if err := cfg.validate(reasons); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// WithMode returns a copy of cfg running in mode m.
func (c Config) WithMode(m Mode) (Config, error) {
	c.Mode = Mode(strings.ToLower(string(m)))
	if !c.Mode.valid() {
		return Config{}, &entities.ConfigurationError{Reason: fmt.Sprintf("unknown mode %q", m)}
	}
	return c, nil
}

// IsDevelopment returns true if running in development mode.
func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

// VerifiesSignatures reports whether inbound requests are authenticated.
// Without a signing secret every request is accepted, which is only safe
// for local development.
func (c Config) VerifiesSignatures() bool {
	return c.SigningSecret != ""
}

// MaskedDatabaseID returns the first 20 characters of the database id
// followed by an ellipsis. Ids of 20 characters or fewer keep only their
// first half.
func (c Config) MaskedDatabaseID() string {
	keep := 20
	r := []rune(c.NotionDatabaseID)
	if len(r) <= keep {
		keep = len(r) / 2
	}
	return string(r[:keep]) + "..."
}

func (c Config) validate(reasons []string) error {
	var missing []string
	if c.NotionToken == "" {
		missing = append(missing, "NOTION_TOKEN")
	}
	if c.NotionDatabaseID == "" {
		missing = append(missing, "NOTION_DATABASE_ID")
	}
	if c.SlackWebhookURL == "" {
		missing = append(missing, "SLACK_WEBHOOK")
	}
	if !c.Mode.valid() {
		reasons = append(reasons, fmt.Sprintf("BOT_MODE %q is not one of run, introduce, serve", c.Mode))
	}
	if len(missing) == 0 && len(reasons) == 0 {
		return nil
	}
	return &entities.ConfigurationError{Missing: missing, Reason: strings.Join(reasons, "; ")}
}

func (m Mode) valid() bool {
	switch m {
	case ModeRun, ModeIntroduce, ModeServe:
		return true
	}
	return false
}
