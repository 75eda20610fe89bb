// Package dashboard keeps the current dashboard model and rebuilds it when
// appointment data changes.
package dashboard

import (
	"time"

	"github.com/wolfman30/appointment-insights/internal/analytics"
	"github.com/wolfman30/appointment-insights/internal/appointments"
	"github.com/wolfman30/appointment-insights/internal/insights"
)

// DefaultRecentLimit is the length of the recent appointments list.
const DefaultRecentLimit = 5

// Model is everything the view renders.
type Model struct {
	Appointments    []appointments.Appointment `json:"appointments"`
	StatusChart     []analytics.Count          `json:"statusChart"`
	TypeChart       []analytics.Count          `json:"typeChart"`
	CheckInDay      *analytics.CheckInDay      `json:"checkInDay,omitempty"`
	DayCheckIns     []analytics.HourCount      `json:"dayCheckIns"`
	OverallCheckIns []analytics.HourCount      `json:"overallCheckIns"`
	Recent          []appointments.Appointment `json:"recent"`
	Facts           insights.Facts             `json:"facts"`
	FactsLoading    bool                       `json:"factsLoading"`
	Loading         bool                       `json:"loading"`
	Error           string                     `json:"error,omitempty"`
	Generation      uint64                     `json:"generation"`
	UpdatedAt       time.Time                  `json:"updatedAt"`
}

// DayLabel titles the daily check-in chart.
func (m Model) DayLabel() string {
	if m.CheckInDay == nil {
		return ""
	}
	return m.CheckInDay.Label
}

// HasAppointments reports whether there is anything to generate facts from.
func (m Model) HasAppointments() bool {
	return len(m.Appointments) > 0
}

// Build derives the chart series for records as of now. Facts are left
// empty.
func Build(records []appointments.Appointment, now time.Time, recentLimit int) Model {
	model, _ := build(records, now, recentLimit)
	return model
}

// FactInput returns what fact generation receives for records as of now.
func FactInput(records []appointments.Appointment, now time.Time) insights.Input {
	_, in := build(records, now, 0)
	return in
}

func build(records []appointments.Appointment, now time.Time, recentLimit int) (Model, insights.Input) {
	if records == nil {
		records = []appointments.Appointment{}
	}
	if recentLimit <= 0 {
		recentLimit = DefaultRecentLimit
	}

	allCheckIns := analytics.WithCheckIn(records)
	model := Model{
		Appointments:    records,
		StatusChart:     []analytics.Count(analytics.GroupCount(records, analytics.ByStatus)),
		TypeChart:       []analytics.Count(analytics.GroupCount(records, analytics.ByType)),
		OverallCheckIns: analytics.HourBucket(allCheckIns, analytics.ByCheckInTime),
		Recent:          analytics.Recent(records, recentLimit),
		UpdatedAt:       now,
	}

	var dayCheckIns []appointments.Appointment
	if day, ok := analytics.MostRecentCheckInDay(records, now); ok {
		model.CheckInDay = &day
		dayCheckIns = analytics.OnDay(records, day.Date)
	}
	model.DayCheckIns = analytics.HourBucket(dayCheckIns, analytics.ByCheckInTime)

	return model, insights.Input{
		Appointments: records,
		DayCheckIns:  dayCheckIns,
		DayLabel:     model.DayLabel(),
		AllCheckIns:  allCheckIns,
	}
}
