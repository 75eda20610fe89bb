package bootstrap

import (
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"

	appconfig "github.com/wolfman30/appointment-insights/internal/config"
	"github.com/wolfman30/appointment-insights/internal/notify"
	"github.com/wolfman30/appointment-insights/pkg/logging"
)

// BuildEmailNotifier returns the email notification channel, or nil when no
// recipient or provider is configured.
func BuildEmailNotifier(cfg *appconfig.Config, awsCfg *aws.Config, logger *logging.Logger) *notify.EmailNotifier {
	if cfg == nil || strings.TrimSpace(cfg.NotifyEmailTo) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	sender, provider := BuildEmailSender(cfg, awsCfg, logger)
	if sender == nil {
		logger.Warn("email notifications disabled", "provider", cfg.EmailProvider, "reason", "provider not configured")
		return nil
	}
	logger.Info("email notifications enabled", "provider", provider)
	return notify.NewEmailNotifier(sender, cfg.NotifyEmailTo)
}

// BuildSlackNotifier returns the Slack notification channel, or nil when no
// bot token or channel is configured.
func BuildSlackNotifier(cfg *appconfig.Config, logger *logging.Logger) *notify.SlackNotifier {
	if cfg == nil {
		return nil
	}
	n := notify.NewSlackNotifier(cfg.SlackBotToken, cfg.SlackChannelID)
	if n != nil {
		if logger == nil {
			logger = logging.Default()
		}
		logger.Info("slack notifications enabled", "channel", cfg.SlackChannelID)
	}
	return n
}

// BuildEmailSender selects the email provider named by EMAIL_PROVIDER.
func BuildEmailSender(cfg *appconfig.Config, awsCfg *aws.Config, logger *logging.Logger) (notify.EmailSender, string) {
	switch strings.ToLower(strings.TrimSpace(cfg.EmailProvider)) {
	case "ses":
		if awsCfg == nil {
			return nil, "ses"
		}
		from := notify.Mailbox{Name: cfg.SESFromName, Address: cfg.SESFromEmail}
		sender := notify.NewSESSender(sesv2.NewFromConfig(*awsCfg), from, logger)
		if sender == nil {
			return nil, "ses"
		}
		return sender, "ses"
	case "stub", "log":
		return notify.NewStubEmailSender(logger), "stub"
	default:
		from := notify.Mailbox{Name: cfg.SendGridFromName, Address: cfg.SendGridFromEmail}
		sender := notify.NewSendGridSender(cfg.SendGridAPIKey, from, logger)
		if sender == nil {
			return nil, "sendgrid"
		}
		return sender, "sendgrid"
	}
}
