package infrastructure

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"unicode/utf8"

	"feedbackbot/internal/config"
	"feedbackbot/internal/entities"
	"feedbackbot/internal/metrics"

	"github.com/rs/zerolog"
	"github.com/slack-go/slack"
	"golang.org/x/time/rate"
)

// SlackPublisher posts messages to a Slack incoming webhook.
type SlackPublisher struct {
	webhookURL string
	username   string
	maxChars   int
	http       *http.Client
	limiter    *rate.Limiter
	logger     zerolog.Logger
}

// NewSlackPublisher creates a publisher from cfg. It fails before any
// network call when the webhook URL is missing.
func NewSlackPublisher(cfg config.Config, logger zerolog.Logger) (*SlackPublisher, error) {
	if cfg.SlackWebhookURL == "" {
		return nil, &entities.ConfigurationError{Missing: []string{"SLACK_WEBHOOK"}}
	}
	maxChars := cfg.MaxMessageChars
	if maxChars <= 0 {
		maxChars = 3500
	}
	limit := rate.Inf
	if cfg.PostsPerSecond > 0 {
		limit = rate.Limit(cfg.PostsPerSecond)
	}
	return &SlackPublisher{
		webhookURL: cfg.SlackWebhookURL,
		username:   cfg.BotName + " Bot",
		maxChars:   maxChars,
		http:       &http.Client{Timeout: cfg.HTTPTimeout},
		limiter:    rate.NewLimiter(limit, 1),
		logger:     logger.With().Str("component", "slack").Logger(),
	}, nil
}

// Publish sends text as one post, or as consecutive "Part i/N" posts when it
// exceeds the per-post budget. Blocks are only attached to an unsplit post.
// The first failed post aborts the rest.
func (p *SlackPublisher) Publish(ctx context.Context, text string, blocks ...slack.Block) error {
	parts := SplitMessage(text, p.maxChars)
	if len(parts) == 1 {
		msg := &slack.WebhookMessage{Username: p.username, Text: parts[0]}
		if len(blocks) > 0 {
			msg.Blocks = &slack.Blocks{BlockSet: blocks}
		}
		return p.post(ctx, msg)
	}

	if len(blocks) > 0 {
		p.logger.Warn().Int("chunks", len(parts)).Msg("message split, dropping blocks")
	}
	p.logger.Info().Int("chunks", len(parts)).Int("chars", utf8.RuneCountInString(text)).Msg("publishing split message")
	for i, part := range parts {
		if err := p.post(ctx, &slack.WebhookMessage{Username: p.username, Text: part}); err != nil {
			return fmt.Errorf("post part %d/%d: %w", i+1, len(parts), err)
		}
	}
	return nil
}

func (p *SlackPublisher) post(ctx context.Context, msg *slack.WebhookMessage) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return &entities.UpstreamError{Service: "slack", Err: err}
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode webhook message: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.webhookURL, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := p.http.Do(req)
	if err != nil {
		metrics.SlackPosts.WithLabelValues("error").Inc()
		return &entities.UpstreamError{Service: "slack", Err: err}
	}
	defer res.Body.Close()
	body, _ := io.ReadAll(res.Body)
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		metrics.SlackPosts.WithLabelValues("error").Inc()
		p.logger.Error().Int("status", res.StatusCode).Str("body", string(body)).Msg("webhook post failed")
		return &entities.UpstreamError{Service: "slack", StatusCode: res.StatusCode, Body: string(body)}
	}
	metrics.SlackPosts.WithLabelValues("ok").Inc()
	return nil
}

// SplitMessage returns text unchanged when it fits in maxChars runes.
// Otherwise it splits on line boundaries into chunks that, with their
// "Part i/N" prefix, each fit in maxChars. Lines are never merged or
// reordered; a single line longer than the available room is cut.
func SplitMessage(text string, maxChars int) []string {
	if utf8.RuneCountInString(text) <= maxChars {
		return []string{text}
	}
	n := 2
	for {
		room := maxChars - utf8.RuneCountInString(partPrefix(n, n))
		if room < 1 {
			room = 1
		}
		chunks := splitLines(text, room)
		if len(chunks) <= n || digits(len(chunks)) <= digits(n) {
			out := make([]string, len(chunks))
			for i, c := range chunks {
				out[i] = partPrefix(i+1, len(chunks)) + c
			}
			return out
		}
		n = len(chunks)
	}
}

// StripPartPrefix removes a leading "Part i/N" marker added by SplitMessage.
func StripPartPrefix(chunk string) string {
	header, rest, ok := strings.Cut(chunk, "\n")
	if !ok {
		return chunk
	}
	var i, n int
	if _, err := fmt.Sscanf(header, "Part %d/%d", &i, &n); err != nil || partPrefix(i, n) != header+"\n" {
		return chunk
	}
	return rest
}

func partPrefix(i, n int) string {
	return fmt.Sprintf("Part %d/%d\n", i, n)
}

func splitLines(text string, room int) []string {
	var (
		chunks []string
		cur    strings.Builder
		curLen int
		empty  = true
	)
	flush := func() {
		chunks = append(chunks, cur.String())
		cur.Reset()
		curLen = 0
		empty = true
	}
	for _, line := range strings.Split(text, "\n") {
		for _, piece := range cutLine(line, room) {
			l := utf8.RuneCountInString(piece)
			if !empty && curLen+1+l > room {
				flush()
			}
			if !empty {
				cur.WriteByte('\n')
				curLen++
			}
			cur.WriteString(piece)
			curLen += l
			empty = false
		}
	}
	if !empty {
		flush()
	}
	return chunks
}

func cutLine(line string, room int) []string {
	r := []rune(line)
	if len(r) <= room {
		return []string{line}
	}
	var pieces []string
	for len(r) > room {
		pieces = append(pieces, string(r[:room]))
		r = r[room:]
	}
	return append(pieces, string(r))
}

func digits(n int) int {
	return len(fmt.Sprint(n))
}
