package analytics

import (
	"fmt"
	"sort"
	"time"

	"github.com/wolfman30/appointment-insights/internal/appointments"
)

// HoursPerDay is the fixed bucket count of a check-in histogram.
const HoursPerDay = 24

// PeakHourNone is reported when there are no check-ins to rank.
const PeakHourNone = "N/A"

// HourCount is one point of an hourly line chart.
type HourCount struct {
	Hour  string `json:"hour"`
	Count int    `json:"count"`
}

// HourLabel formats an hour index as "HH:00".
func HourLabel(hour int) string {
	return fmt.Sprintf("%02d:00", hour)
}

// HourOf parses the hour from the first two characters of a time string.
// Both characters must be digits and the hour must be 0-23.
func HourOf(value string) (int, bool) {
	if len(value) < 2 {
		return 0, false
	}
	hi, lo := value[0], value[1]
	if hi < '0' || hi > '9' || lo < '0' || lo > '9' {
		return 0, false
	}
	hour := int(hi-'0')*10 + int(lo-'0')
	if hour >= HoursPerDay {
		return 0, false
	}
	return hour, true
}

// HourBucket returns all 24 hour buckets "00:00".."23:00" in order. Records
// whose selected value has no parseable hour are skipped.
func HourBucket(records []appointments.Appointment, selector Selector) []HourCount {
	out := make([]HourCount, HoursPerDay)
	for hour := range out {
		out[hour] = HourCount{Hour: HourLabel(hour)}
	}
	for _, record := range records {
		if hour, ok := HourOf(selector(record)); ok {
			out[hour].Count++
		}
	}
	return out
}

// CheckInSummary is the check-in shape a prompt embeds. CountsByHour lists
// only hours that saw a check-in, in order of first occurrence.
type CheckInSummary struct {
	Total        int    `json:"total"`
	CountsByHour Counts `json:"countsByHour"`
	PeakHour     string `json:"peakHour"`
}

// SummarizeCheckIns tallies check-ins by hour. Total counts every record
// passed in. On a tie the hour seen later wins the peak.
func SummarizeCheckIns(records []appointments.Appointment) CheckInSummary {
	summary := CheckInSummary{Total: len(records), CountsByHour: Counts{}, PeakHour: PeakHourNone}
	for _, record := range records {
		if hour, ok := HourOf(record.CheckIn()); ok {
			summary.CountsByHour.increment(HourLabel(hour))
		}
	}
	for i, entry := range summary.CountsByHour {
		if i == 0 {
			summary.PeakHour = entry.Label
			continue
		}
		if entry.Value >= summary.CountsByHour.Get(summary.PeakHour) {
			summary.PeakHour = entry.Label
		}
	}
	return summary
}

// WithCheckIn filters to records carrying a check-in time.
func WithCheckIn(records []appointments.Appointment) []appointments.Appointment {
	out := make([]appointments.Appointment, 0, len(records))
	for _, record := range records {
		if record.HasCheckIn() {
			out = append(out, record)
		}
	}
	return out
}

// CheckInDay identifies the calendar day the daily check-in chart covers.
type CheckInDay struct {
	Date  time.Time `json:"date"`
	Label string    `json:"label"`
}

// MostRecentCheckInDay finds the latest scheduled day among records with a
// check-in. Days are compared in now's location. Records without a scheduled
// time are ignored.
func MostRecentCheckInDay(records []appointments.Appointment, now time.Time) (CheckInDay, bool) {
	var latest time.Time
	found := false
	for _, record := range records {
		if !record.HasCheckIn() || record.ScheduledAt.IsZero() {
			continue
		}
		if !found || record.ScheduledAt.After(latest) {
			latest = record.ScheduledAt
			found = true
		}
	}
	if !found {
		return CheckInDay{}, false
	}

	loc := now.Location()
	day := startOfDay(latest.In(loc))
	today := startOfDay(now)
	return CheckInDay{Date: day, Label: dayLabel(day, today)}, true
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func dayLabel(day, today time.Time) string {
	switch {
	case day.Equal(today):
		return "Today"
	case day.Equal(today.AddDate(0, 0, -1)):
		return "Yesterday"
	default:
		return day.Format("Jan 2")
	}
}

// OnDay returns check-in records scheduled on day's calendar date, compared
// in day's location.
func OnDay(records []appointments.Appointment, day time.Time) []appointments.Appointment {
	y, m, d := day.Date()
	out := make([]appointments.Appointment, 0)
	for _, record := range records {
		if !record.HasCheckIn() || record.ScheduledAt.IsZero() {
			continue
		}
		ry, rm, rd := record.ScheduledAt.In(day.Location()).Date()
		if ry == y && rm == m && rd == d {
			out = append(out, record)
		}
	}
	return out
}

// Recent returns up to n records ordered by ID, newest first.
func Recent(records []appointments.Appointment, n int) []appointments.Appointment {
	if n <= 0 {
		return []appointments.Appointment{}
	}
	sorted := make([]appointments.Appointment, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ID > sorted[j].ID
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}
