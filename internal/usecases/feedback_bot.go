package usecases

import (
	"context"
	"fmt"

	"feedbackbot/internal/config"
	"feedbackbot/internal/entities"
	"feedbackbot/internal/interfaces"
	"feedbackbot/internal/metrics"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/slack-go/slack"
)

const maxNoticeErrorChars = 300

// FormatFunc renders fetched records as the text of one chat message.
type FormatFunc func(records []entities.Record) string

// FeedbackBot fetches feedback records, formats them and publishes them.
// It holds no state between invocations; re-running re-sends the same
// content.
type FeedbackBot struct {
	cfg       config.Config
	records   interfaces.RecordSource
	publisher interfaces.Publisher
	format    FormatFunc
	logger    zerolog.Logger
}

// NewFeedbackBot wires a bot. A nil format uses a FeedbackFormatter over
// cfg.Fields.
func NewFeedbackBot(cfg config.Config, records interfaces.RecordSource, publisher interfaces.Publisher, format FormatFunc, logger zerolog.Logger) *FeedbackBot {
	if format == nil {
		format = NewFeedbackFormatter(cfg.Fields).Format
	}
	return &FeedbackBot{
		cfg:       cfg,
		records:   records,
		publisher: publisher,
		format:    format,
		logger:    logger,
	}
}

// Run fetches every record, formats them and publishes one combined message
// (or the no-items notice). On failure it tries to tell the channel before
// returning the original error.
func (b *FeedbackBot) Run(ctx context.Context) error {
	log := b.logger.With().Str("run_id", uuid.NewString()).Str("operation", "run").Logger()

	count, err := b.publishFeedback(ctx)
	if err != nil {
		metrics.Runs.WithLabelValues("run", "error").Inc()
		log.Error().Err(err).Msg("feedback run failed")

		notice := fmt.Sprintf("⚠️ %s bot run failed: %s", b.cfg.BotName, truncate(err.Error(), maxNoticeErrorChars))
		if nerr := b.publisher.Publish(ctx, notice); nerr != nil {
			log.Error().Err(nerr).Msg("could not publish error notice")
		}
		return err
	}

	metrics.Runs.WithLabelValues("run", "ok").Inc()
	log.Info().Int("records", count).Msg("feedback published")
	return nil
}

func (b *FeedbackBot) publishFeedback(ctx context.Context) (int, error) {
	records, err := b.records.FetchAll(ctx, b.cfg.NotionDatabaseID)
	if err != nil {
		return 0, fmt.Errorf("fetch feedback: %w", err)
	}
	if err := b.publisher.Publish(ctx, b.format(records)); err != nil {
		return 0, fmt.Errorf("publish feedback: %w", err)
	}
	return len(records), nil
}

// Introduce publishes the bot's self-description. The database id is
// masked.
func (b *FeedbackBot) Introduce(ctx context.Context) error {
	log := b.logger.With().Str("run_id", uuid.NewString()).Str("operation", "introduce").Logger()

	msg := b.Introduction()
	if err := b.publisher.Publish(ctx, msg.Text, msg.Blocks...); err != nil {
		metrics.Runs.WithLabelValues("introduce", "error").Inc()
		log.Error().Err(err).Msg("introduction failed")
		return fmt.Errorf("publish introduction: %w", err)
	}
	metrics.Runs.WithLabelValues("introduce", "ok").Inc()
	log.Info().Msg("introduction published")
	return nil
}

// Introduction builds the self-description message.
func (b *FeedbackBot) Introduction() entities.Message {
	title := fmt.Sprintf("👋 Hi, I'm the %s bot", b.cfg.BotName)
	body := fmt.Sprintf(
		"I read feedback entries from Notion and post a digest to this channel.\n\n"+
			"*What I can do*\n"+
			"• Mention me with \"feedback\", \"show\" or \"list\" to post every feedback item\n"+
			"• Mention me with \"intro\" to see this message again\n\n"+
			"*Schedule:* %s\n"+
			"*Database:* `%s`",
		b.cfg.Schedule, b.cfg.MaskedDatabaseID())

	return entities.Message{
		Text: title + "\n" + body,
		Blocks: []slack.Block{
			slack.NewHeaderBlock(slack.NewTextBlockObject(slack.PlainTextType, title, true, false)),
			slack.NewSectionBlock(slack.NewTextBlockObject(slack.MarkdownType, body, false, false), nil, nil),
		},
	}
}
