package dashboard

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/appointment-insights/internal/analytics"
	"github.com/wolfman30/appointment-insights/internal/appointments"
)

func ptr(s string) *string { return &s }

var testNow = time.Date(2025, 3, 10, 15, 0, 0, 0, time.UTC)

func sampleRecords() []appointments.Appointment {
	return []appointments.Appointment{
		{ID: 1, ScheduledAt: testNow.Add(-30 * time.Hour), Status: "Completed", Type: "Checkup", CheckInTime: ptr("08:55:00")},
		{ID: 2, ScheduledAt: testNow.Add(-2 * time.Hour), Status: "Completed", Type: "Checkup", CheckInTime: ptr("13:05:00")},
		{ID: 3, ScheduledAt: testNow.Add(-1 * time.Hour), Status: "Scheduled", Type: "Consult", CheckInTime: ptr("14:10:00")},
		{ID: 4, ScheduledAt: testNow.Add(2 * time.Hour), Status: "Cancelled", Type: "Consult"},
	}
}

func TestBuild(t *testing.T) {
	model := Build(sampleRecords(), testNow, 2)

	require.Len(t, model.Appointments, 4)
	assert.Equal(t, 2, countOf(model.StatusChart, "Completed"))
	assert.Equal(t, 1, countOf(model.StatusChart, "Cancelled"))
	assert.Equal(t, 2, countOf(model.TypeChart, "Consult"))

	require.NotNil(t, model.CheckInDay)
	assert.Equal(t, "Today", model.DayLabel())
	require.Len(t, model.DayCheckIns, 24)
	assert.Equal(t, 1, model.DayCheckIns[13].Count)
	assert.Equal(t, 1, model.DayCheckIns[14].Count)
	assert.Zero(t, model.DayCheckIns[8].Count)

	require.Len(t, model.OverallCheckIns, 24)
	assert.Equal(t, 1, model.OverallCheckIns[8].Count)

	require.Len(t, model.Recent, 2)
	assert.Equal(t, int64(4), model.Recent[0].ID)
	assert.Equal(t, int64(3), model.Recent[1].ID)

	assert.Equal(t, testNow, model.UpdatedAt)
	assert.True(t, model.HasAppointments())
}

func TestBuild_Empty(t *testing.T) {
	model, input := build(nil, testNow, 0)

	assert.NotNil(t, model.Appointments)
	assert.False(t, model.HasAppointments())
	assert.Nil(t, model.CheckInDay)
	assert.Equal(t, "", model.DayLabel())
	assert.Len(t, model.DayCheckIns, 24)
	assert.Empty(t, model.Recent)
	assert.Empty(t, input.DayCheckIns)
	assert.Empty(t, input.AllCheckIns)
}

func TestBuild_NoCheckIns(t *testing.T) {
	records := []appointments.Appointment{
		{ID: 1, ScheduledAt: testNow, Status: "Scheduled", Type: "Consult"},
	}
	model, input := build(records, testNow, DefaultRecentLimit)

	assert.Nil(t, model.CheckInDay)
	for _, hc := range model.DayCheckIns {
		assert.Zero(t, hc.Count)
	}
	assert.Equal(t, "", input.DayLabel)
	assert.Len(t, input.Appointments, 1)
}

func countOf(counts []analytics.Count, label string) int {
	for _, c := range counts {
		if c.Label == label {
			return c.Value
		}
	}
	return 0
}

func TestFactInput(t *testing.T) {
	in := FactInput(sampleRecords(), testNow)

	assert.Len(t, in.Appointments, 4)
	assert.Equal(t, "Today", in.DayLabel)
	assert.Len(t, in.DayCheckIns, 2)
	assert.Len(t, in.AllCheckIns, 3)
}
