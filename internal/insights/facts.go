package insights

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/wolfman30/appointment-insights/internal/analytics"
	"github.com/wolfman30/appointment-insights/internal/appointments"
)

const (
	CategoryStatus         = "status"
	CategoryType           = "type"
	CategoryCheckIn        = "check_in"
	CategoryOverallCheckIn = "overall_check_in"
)

const defaultDayDescription = "the most recent day"

// Facts holds the four fact lists shown on the dashboard.
type Facts struct {
	Status         []string `json:"status"`
	Type           []string `json:"type"`
	CheckIn        []string `json:"checkIn"`
	OverallCheckIn []string `json:"overallCheckIn"`
}

// Input is one snapshot's worth of fact inputs.
type Input struct {
	Appointments []appointments.Appointment
	// DayCheckIns are the check-in records of the most recent check-in day.
	DayCheckIns []appointments.Appointment
	DayLabel    string
	AllCheckIns []appointments.Appointment
}

// StatusFacts returns nothing for an empty list.
func (g *Generator) StatusFacts(ctx context.Context, records []appointments.Appointment) []string {
	if len(records) == 0 {
		return []string{}
	}
	summary := analytics.Summarize(records, analytics.ByStatus)
	if len(summary.Counts) == 0 {
		return []string{"No status data available."}
	}
	return g.generate(ctx, CategoryStatus, fmt.Sprintf(`
Analyze the following appointment status data and generate exactly 5 insightful, brief facts for a dashboard.
The data represents the count of each status. Be creative and vary the sentence structure.
Total appointments: %d.
Status counts: %s.
`, summary.Total, mustJSON(summary.Counts)))
}

func (g *Generator) TypeFacts(ctx context.Context, records []appointments.Appointment) []string {
	if len(records) == 0 {
		return []string{}
	}
	summary := analytics.Summarize(records, analytics.ByType)
	if len(summary.Counts) == 0 {
		return []string{"No appointment type data available."}
	}
	return g.generate(ctx, CategoryType, fmt.Sprintf(`
Analyze the following appointment type data and generate exactly 5 insightful, brief facts for a dashboard.
The data shows how many appointments of each type there are. Be creative and vary the sentence structure.
Total appointments: %d.
Type counts: %s.
`, summary.Total, mustJSON(summary.Counts)))
}

// CheckInFacts describes one day's check-ins. An empty dayLabel reads as
// "the most recent day".
func (g *Generator) CheckInFacts(ctx context.Context, checkIns []appointments.Appointment, dayLabel string) []string {
	day := defaultDayDescription
	if label := strings.TrimSpace(dayLabel); label != "" {
		day = strings.ToLower(label)
	}
	if len(checkIns) == 0 {
		return []string{fmt.Sprintf("No check-in data available for %s.", day)}
	}
	summary := analytics.SummarizeCheckIns(checkIns)
	return g.generate(ctx, CategoryCheckIn, fmt.Sprintf(`
Analyze the following appointment check-in time data from %s and generate exactly 5 insightful, brief facts for a dashboard.
The data shows the number of check-ins per hour. Be creative and highlight trends like peak hours, lulls, or patterns for the day's activity.
Total check-ins for the day: %d.
Check-ins per hour: %s.
The busiest hour was %s.
`, day, summary.Total, mustJSON(summary.CountsByHour), summary.PeakHour))
}

func (g *Generator) OverallCheckInFacts(ctx context.Context, checkIns []appointments.Appointment) []string {
	if len(checkIns) == 0 {
		return []string{"No overall check-in data available."}
	}
	summary := analytics.SummarizeCheckIns(checkIns)
	return g.generate(ctx, CategoryOverallCheckIn, fmt.Sprintf(`
Analyze the following overall appointment check-in time data across all time and generate exactly 5 insightful, brief facts for a dashboard.
The data shows the total number of check-ins per hour. Be creative and highlight long-term trends like the most common peak hours, quietest periods, or consistent patterns.
Total check-ins (all time): %d.
Check-ins per hour (all time): %s.
The busiest hour overall is %s.
`, summary.Total, mustJSON(summary.CountsByHour), summary.PeakHour))
}

// GenerateAll runs the four categories concurrently and waits for all of
// them. Each category falls back on its own.
func (g *Generator) GenerateAll(ctx context.Context, in Input) Facts {
	var out Facts
	eg, egCtx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		out.Status = g.StatusFacts(egCtx, in.Appointments)
		return nil
	})
	eg.Go(func() error {
		out.Type = g.TypeFacts(egCtx, in.Appointments)
		return nil
	})
	eg.Go(func() error {
		out.CheckIn = g.CheckInFacts(egCtx, in.DayCheckIns, in.DayLabel)
		return nil
	})
	eg.Go(func() error {
		out.OverallCheckIn = g.OverallCheckInFacts(egCtx, in.AllCheckIns)
		return nil
	})

	_ = eg.Wait()
	return out
}

func mustJSON(v any) string {
	raw, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(raw)
}
