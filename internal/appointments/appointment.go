// Package appointments reads appointment rows from the backend and follows
// the table's change feed. The dashboard never writes appointments.
package appointments

import (
	"strings"
	"time"
)

// StatusCancelled is the status label that triggers cancellation notifications.
const StatusCancelled = "Cancelled"

// Appointment is a read-only snapshot of one backend row. JSON names match the
// table's column names so change-feed payloads decode without mapping.
type Appointment struct {
	ID          int64     `json:"Appt_ID"`
	ScheduledAt time.Time `json:"Appt_DateTime"`
	Status      string    `json:"Status"`
	Type        string    `json:"Appt_type"`
	// CheckInTime is "HH:MM:SS" and nil until the patient checks in.
	CheckInTime *string `json:"Check_in_Time"`
}

// HasCheckIn reports whether a non-blank check-in time is recorded.
func (a Appointment) HasCheckIn() bool {
	return a.CheckInTime != nil && strings.TrimSpace(*a.CheckInTime) != ""
}

// CheckIn returns the check-in time or "" when absent.
func (a Appointment) CheckIn() string {
	if a.CheckInTime == nil {
		return ""
	}
	return *a.CheckInTime
}
