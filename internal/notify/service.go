package notify

import (
	"context"

	"github.com/wolfman30/appointment-insights/internal/appointments"
	"github.com/wolfman30/appointment-insights/internal/observability/metrics"
	"github.com/wolfman30/appointment-insights/internal/settings"
	"github.com/wolfman30/appointment-insights/pkg/logging"
)

// Sender delivers a notification over one channel.
type Sender interface {
	Notify(ctx context.Context, n Notification) error
}

// PreferenceSource supplies the current notification preferences.
type PreferenceSource interface {
	Get() settings.Settings
}

// Channel pairs a sender with the name used in logs and metrics.
type Channel struct {
	Name   string
	Sender Sender
}

// Service turns change events into notifications and fans them out to every
// channel. A failing channel never blocks the others.
type Service struct {
	prefs    PreferenceSource
	channels []Channel
	logger   *logging.Logger
	metrics  *metrics.DashboardMetrics
}

func NewService(prefs PreferenceSource, logger *logging.Logger, m *metrics.DashboardMetrics, channels ...Channel) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	kept := make([]Channel, 0, len(channels))
	for _, ch := range channels {
		if ch.Sender != nil {
			kept = append(kept, ch)
		}
	}
	return &Service{
		prefs:    prefs,
		channels: kept,
		logger:   logger,
		metrics:  m,
	}
}

func (s *Service) AddChannel(ch Channel) {
	if ch.Sender == nil {
		return
	}
	s.channels = append(s.channels, ch)
}

// HandleChange reports whether a notification was produced.
func (s *Service) HandleChange(ctx context.Context, evt appointments.ChangeEvent) (Notification, bool) {
	if s == nil || s.prefs == nil {
		return Notification{}, false
	}
	n, ok := Decide(evt, s.prefs.Get().Notifications)
	if !ok {
		return Notification{}, false
	}

	for _, ch := range s.channels {
		if err := ch.Sender.Notify(ctx, n); err != nil {
			s.metrics.ObserveNotification(string(n.Kind), ch.Name, "failed")
			s.logger.Warn("notification delivery failed", "channel", ch.Name, "kind", n.Kind, "appointment_id", n.AppointmentID, "error", err)
			continue
		}
		s.metrics.ObserveNotification(string(n.Kind), ch.Name, "sent")
	}
	s.logger.Info("notification dispatched", "kind", n.Kind, "appointment_id", n.AppointmentID, "channels", len(s.channels))
	return n, true
}
