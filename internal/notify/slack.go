package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/slack-go/slack"
)

type slackAPI interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

// SlackNotifier posts notifications to one Slack channel.
type SlackNotifier struct {
	api     slackAPI
	channel string
}

// NewSlackNotifier returns nil without a bot token or channel.
func NewSlackNotifier(token, channel string, opts ...slack.Option) *SlackNotifier {
	token = strings.TrimSpace(token)
	channel = strings.TrimSpace(channel)
	if token == "" || channel == "" {
		return nil
	}
	return &SlackNotifier{api: slack.New(token, opts...), channel: channel}
}

func (s *SlackNotifier) Notify(ctx context.Context, n Notification) error {
	detail := fmt.Sprintf("Appointment #%d", n.AppointmentID)
	if !n.At.IsZero() {
		detail += " · " + n.At.Format("Jan 2, 3:04 PM")
	}
	blocks := []slack.Block{
		slack.NewHeaderBlock(slack.NewTextBlockObject(slack.PlainTextType, n.Title, false, false)),
		slack.NewSectionBlock(slack.NewTextBlockObject(slack.MarkdownType, n.Body, false, false), nil, nil),
		slack.NewContextBlock("", slack.NewTextBlockObject(slack.MarkdownType, detail, false, false)),
	}
	_, _, err := s.api.PostMessageContext(ctx, s.channel,
		slack.MsgOptionText(n.Title+": "+n.Body, false),
		slack.MsgOptionBlocks(blocks...),
	)
	if err != nil {
		return fmt.Errorf("notify: slack post: %w", err)
	}
	return nil
}
