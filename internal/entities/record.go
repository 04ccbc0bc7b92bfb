package entities

import (
	"encoding/json"
	"time"
)

// Record is one Notion database page, kept as raw property objects so the
// formatter decides how each field is read.
type Record struct {
	ID             string                     `json:"id"`
	URL            string                     `json:"url"`
	CreatedTime    time.Time                  `json:"created_time"`
	LastEditedTime time.Time                  `json:"last_edited_time"`
	Properties     map[string]json.RawMessage `json:"properties"`

	// DecodeErr is set when the page itself could not be decoded; only ID
	// is trustworthy then.
	DecodeErr error `json:"-"`
}

// Defaults used when a feedback field is absent.
const (
	DefaultTitle     = "Untitled"
	DefaultSentiment = "Unknown"
	DefaultSummary   = "No summary"
)

// FeedbackItem is the human-facing view of a Record.
type FeedbackItem struct {
	Title     string
	Sentiment string
	Summary   string
}
