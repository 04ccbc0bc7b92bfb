package usecases

import "strings"

// Intent is what a chat mention asks the bot to do.
type Intent int

const (
	IntentUnknown Intent = iota
	IntentIntroduce
	IntentListFeedback
)

func (i Intent) String() string {
	switch i {
	case IntentIntroduce:
		return "introduce"
	case IntentListFeedback:
		return "list_feedback"
	}
	return "unknown"
}

var (
	introduceKeywords = []string{"introduce", "intro"}
	feedbackKeywords  = []string{"feedback", "show", "list"}
)

// ClassifyIntent maps free-form mention text to an Intent by
// case-insensitive substring match. Introduction keywords win.
func ClassifyIntent(text string) Intent {
	lower := strings.ToLower(text)
	if containsAny(lower, introduceKeywords) {
		return IntentIntroduce
	}
	if containsAny(lower, feedbackKeywords) {
		return IntentListFeedback
	}
	return IntentUnknown
}

func containsAny(content string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(content, kw) {
			return true
		}
	}
	return false
}
