package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/appointment-insights/internal/appointments"
	"github.com/wolfman30/appointment-insights/internal/settings"
)

type Kind string

const (
	KindNew       Kind = "new"
	KindCancelled Kind = "cancelled"
)

// Notification is one operator-facing alert about an appointment change.
type Notification struct {
	ID            string    `json:"id"`
	Kind          Kind      `json:"kind"`
	Title         string    `json:"title"`
	Body          string    `json:"body"`
	AppointmentID int64     `json:"appointmentId"`
	At            time.Time `json:"at"`
}

// Decide applies the operator's preferences to a change. Inserts notify
// when OnNew is set; updates notify when OnCancelled is set and the status
// moved into Cancelled from anything else.
func Decide(evt appointments.ChangeEvent, prefs settings.NotificationSettings) (Notification, bool) {
	if !prefs.Enabled || evt.New == nil {
		return Notification{}, false
	}

	at := evt.ReceivedAt
	if at.IsZero() {
		at = time.Now()
	}

	switch evt.Kind {
	case appointments.EventInsert:
		if !prefs.OnNew {
			return Notification{}, false
		}
		return Notification{
			ID:            uuid.NewString(),
			Kind:          KindNew,
			Title:         "New Appointment Scheduled",
			Body:          fmt.Sprintf(`A new "%s" appointment has been added.`, typeLabel(evt.New)),
			AppointmentID: evt.New.ID,
			At:            at,
		}, true
	case appointments.EventUpdate:
		if !prefs.OnCancelled || evt.Old == nil {
			return Notification{}, false
		}
		if evt.New.Status != appointments.StatusCancelled || evt.Old.Status == appointments.StatusCancelled {
			return Notification{}, false
		}
		return Notification{
			ID:            uuid.NewString(),
			Kind:          KindCancelled,
			Title:         "Appointment Cancelled",
			Body:          fmt.Sprintf(`The "%s" appointment has been cancelled.`, typeLabel(evt.New)),
			AppointmentID: evt.New.ID,
			At:            at,
		}, true
	default:
		return Notification{}, false
	}
}

func typeLabel(a *appointments.Appointment) string {
	return strings.TrimSpace(a.Type)
}
