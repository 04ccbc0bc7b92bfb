package entities

import (
	"fmt"
	"strings"
)

// ConfigurationError reports required settings that are missing or invalid.
// It is fatal: nothing touches the network once it is returned.
type ConfigurationError struct {
	Missing []string
	Reason  string
}

func (e *ConfigurationError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing required settings: "+strings.Join(e.Missing, ", "))
	}
	if e.Reason != "" {
		parts = append(parts, e.Reason)
	}
	if len(parts) == 0 {
		return "configuration error"
	}
	return "configuration error: " + strings.Join(parts, "; ")
}

// UpstreamError is a failed call to Notion or Slack.
type UpstreamError struct {
	Service    string // "notion" or "slack"
	StatusCode int    // 0 when the request never got a response
	Body       string
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s request failed: %v", e.Service, e.Err)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s returned status=%d: %v body=%s", e.Service, e.StatusCode, e.Err, e.Body)
	}
	return fmt.Sprintf("%s returned status=%d body=%s", e.Service, e.StatusCode, e.Body)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// FormattingError marks a record whose properties could not be read.
type FormattingError struct {
	RecordID string
	Property string
	Err      error
}

func (e *FormattingError) Error() string {
	if e.Property == "" {
		return fmt.Sprintf("record %s: %v", e.RecordID, e.Err)
	}
	return fmt.Sprintf("record %s: property %q: %v", e.RecordID, e.Property, e.Err)
}

func (e *FormattingError) Unwrap() error {
	return e.Err
}

// AuthError rejects an inbound request whose signature or timestamp is invalid.
type AuthError struct {
	Reason string
	Err    error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("unauthorized request: %s: %v", e.Reason, e.Err)
	}
	return "unauthorized request: " + e.Reason
}

func (e *AuthError) Unwrap() error {
	return e.Err
}
