package interfaces

import (
	"context"

	"feedbackbot/internal/entities"

	"github.com/slack-go/slack"
)

// RecordSource reads every record of a database.
type RecordSource interface {
	FetchAll(ctx context.Context, databaseID string) ([]entities.Record, error)
}

// Publisher posts text (and optional blocks) to the chat channel.
type Publisher interface {
	Publish(ctx context.Context, text string, blocks ...slack.Block) error
}

// BotActions are the operations an inbound command can trigger.
type BotActions interface {
	Run(ctx context.Context) error
	Introduce(ctx context.Context) error
}
