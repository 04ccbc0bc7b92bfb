package usecases

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"feedbackbot/internal/config"
	"feedbackbot/internal/entities"
)

const (
	maxSummaryChars = 200
	ellipsis        = "..."

	// NoItemsNotice is posted when the database has no records.
	NoItemsNotice = "📭 No items: there is no feedback to report right now."
	// ErrorPlaceholder replaces a record that could not be read.
	ErrorPlaceholder = "[Error processing item]"
)

// DefaultFields are the property names of the feedback database template.
var DefaultFields = config.FieldMap{Title: "Name", Sentiment: "Sentiment", Summary: "Summary"}

// FeedbackFormatter renders records as one chat message.
type FeedbackFormatter struct {
	fields config.FieldMap
}

// NewFeedbackFormatter creates a formatter reading the given properties.
// Empty names fall back to DefaultFields.
func NewFeedbackFormatter(fields config.FieldMap) *FeedbackFormatter {
	if fields.Title == "" {
		fields.Title = DefaultFields.Title
	}
	if fields.Sentiment == "" {
		fields.Sentiment = DefaultFields.Sentiment
	}
	if fields.Summary == "" {
		fields.Summary = DefaultFields.Summary
	}
	return &FeedbackFormatter{fields: fields}
}

// FormatFeedback formats records using DefaultFields.
func FormatFeedback(records []entities.Record) string {
	return NewFeedbackFormatter(DefaultFields).Format(records)
}

// Format returns the no-items notice for an empty slice, otherwise a
// numbered list with one block per record. A record that cannot be read is
// replaced by ErrorPlaceholder and the rest are still rendered.
func (f *FeedbackFormatter) Format(records []entities.Record) string {
	if len(records) == 0 {
		return NoItemsNotice
	}

	var sb strings.Builder
	noun := "items"
	if len(records) == 1 {
		noun = "item"
	}
	sb.WriteString(fmt.Sprintf("💬 *Feedback digest* (%d %s)\n", len(records), noun))

	for i, rec := range records {
		sb.WriteString("\n")
		item, err := f.Extract(rec)
		if err != nil {
			sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, ErrorPlaceholder))
			continue
		}
		sb.WriteString(fmt.Sprintf("%d. 💭 *%s*\n", i+1, item.Title))
		sb.WriteString(fmt.Sprintf("   🧠 Sentiment: %s\n", item.Sentiment))
		sb.WriteString(fmt.Sprintf("   📝 %s\n", truncate(item.Summary, maxSummaryChars)))
	}
	return strings.TrimRight(sb.String(), "\n")
}

// Extract reads the feedback fields of a record. Absent fields take their
// defaults; a property with an unexpected shape is a FormattingError.
func (f *FeedbackFormatter) Extract(rec entities.Record) (entities.FeedbackItem, error) {
	if rec.DecodeErr != nil {
		return entities.FeedbackItem{}, rec.DecodeErr
	}
	item := entities.FeedbackItem{
		Title:     entities.DefaultTitle,
		Sentiment: entities.DefaultSentiment,
		Summary:   entities.DefaultSummary,
	}

	title, err := readProperty(rec, f.fields.Title)
	if err != nil {
		return entities.FeedbackItem{}, err
	}
	if v := title.text(); v != "" {
		item.Title = v
	}

	sentiment, err := readProperty(rec, f.fields.Sentiment)
	if err != nil {
		return entities.FeedbackItem{}, err
	}
	if v := sentiment.option(); v != "" {
		item.Sentiment = v
	}

	summary, err := readProperty(rec, f.fields.Summary)
	if err != nil {
		return entities.FeedbackItem{}, err
	}
	if v := summary.text(); v != "" {
		item.Summary = v
	}
	return item, nil
}

type richText struct {
	PlainText string `json:"plain_text"`
}

type selectOption struct {
	Name string `json:"name"`
}

// property is the subset of a Notion property value the bot understands.
type property struct {
	Type     string        `json:"type"`
	Title    []richText    `json:"title"`
	RichText []richText    `json:"rich_text"`
	Select   *selectOption `json:"select"`
	Status   *selectOption `json:"status"`
}

func readProperty(rec entities.Record, name string) (property, error) {
	raw, ok := rec.Properties[name]
	if !ok || len(bytes.TrimSpace(raw)) == 0 || string(bytes.TrimSpace(raw)) == "null" {
		return property{}, nil
	}
	var p property
	if err := json.Unmarshal(raw, &p); err != nil {
		return property{}, &entities.FormattingError{RecordID: rec.ID, Property: name, Err: err}
	}
	return p, nil
}

func (p property) text() string {
	segments := p.Title
	if p.Type == "rich_text" || len(segments) == 0 {
		segments = p.RichText
	}
	var sb strings.Builder
	for _, s := range segments {
		sb.WriteString(s.PlainText)
	}
	return strings.TrimSpace(sb.String())
}

func (p property) option() string {
	if p.Select != nil {
		return strings.TrimSpace(p.Select.Name)
	}
	if p.Status != nil {
		return strings.TrimSpace(p.Status.Name)
	}
	return ""
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + ellipsis
}
