package entities

import "github.com/slack-go/slack"

// Message is one outbound chat post. It is built per run and never retained.
type Message struct {
	Text   string
	Blocks []slack.Block // Optional rich layout, only sent with an unsplit post
}

// HasBlocks reports whether the message carries a rich layout.
func (m Message) HasBlocks() bool {
	return len(m.Blocks) > 0
}
