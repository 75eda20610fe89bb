package insights

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/appointment-insights/internal/appointments"
	"github.com/wolfman30/appointment-insights/internal/observability/metrics"
)

type stubLLM struct {
	mu      sync.Mutex
	text    string
	err     error
	prompts []string
	reqs    []LLMRequest
	respond func(req LLMRequest) (LLMResponse, error)
}

func (s *stubLLM) Complete(ctx context.Context, req LLMRequest) (LLMResponse, error) {
	s.mu.Lock()
	s.prompts = append(s.prompts, req.Prompt)
	s.reqs = append(s.reqs, req)
	respond := s.respond
	s.mu.Unlock()
	if respond != nil {
		return respond(req)
	}
	if s.err != nil {
		return LLMResponse{}, s.err
	}
	return LLMResponse{Text: s.text}, nil
}

func (s *stubLLM) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.prompts)
}

func ptr(s string) *string { return &s }

func TestGenerateFacts_Outcomes(t *testing.T) {
	cases := []struct {
		name string
		llm  *stubLLM
		want []string
	}{
		{
			name: "success",
			llm:  &stubLLM{text: `{"facts":["a","b","c"]}`},
			want: []string{"a", "b", "c"},
		},
		{
			name: "truncates to five",
			llm:  &stubLLM{text: `{"facts":["1","2","3","4","5","6","7"]}`},
			want: []string{"1", "2", "3", "4", "5"},
		},
		{
			name: "remote failure",
			llm:  &stubLLM{err: errors.New("503 unavailable")},
			want: ErrorFacts,
		},
		{
			name: "malformed json",
			llm:  &stubLLM{text: `{"facts": [`},
			want: ErrorFacts,
		},
		{
			name: "missing facts",
			llm:  &stubLLM{text: `{"insights":["a"]}`},
			want: NoInsightFacts,
		},
		{
			name: "empty facts",
			llm:  &stubLLM{text: `{"facts":[]}`},
			want: NoInsightFacts,
		},
		{
			name: "facts not an array",
			llm:  &stubLLM{text: `{"facts":"a"}`},
			want: NoInsightFacts,
		},
		{
			name: "top level array",
			llm:  &stubLLM{text: `["a","b"]`},
			want: NoInsightFacts,
		},
		{
			name: "blank entries dropped",
			llm:  &stubLLM{text: `{"facts":["  ", "kept", 3]}`},
			want: []string{"kept"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gen := NewGenerator(tc.llm, nil)
			got := gen.GenerateFacts(context.Background(), "prompt")
			assert.Equal(t, tc.want, got)
			assert.NotEmpty(t, got)
			assert.LessOrEqual(t, len(got), MaxFacts)
		})
	}
}

func TestGenerateFacts_RequestShape(t *testing.T) {
	llm := &stubLLM{text: `{"facts":["a"]}`}
	NewGenerator(llm, nil).GenerateFacts(context.Background(), "hello")

	require.Len(t, llm.reqs, 1)
	req := llm.reqs[0]
	assert.Equal(t, "hello", req.Prompt)
	assert.Same(t, FactsSchema, req.ResponseSchema)
	assert.Less(t, req.Temperature, float32(0))
}

func TestGenerateFacts_FallbackListsAreCopies(t *testing.T) {
	gen := NewGenerator(&stubLLM{err: errors.New("down")}, nil)
	got := gen.GenerateFacts(context.Background(), "p")
	got[0] = "mutated"
	assert.Equal(t, "An error occurred while generating insights.", ErrorFacts[0])
}

func TestGenerateFacts_Timeout(t *testing.T) {
	llm := &stubLLM{respond: func(req LLMRequest) (LLMResponse, error) {
		return LLMResponse{}, context.DeadlineExceeded
	}}
	gen := NewGenerator(llm, nil, WithTimeout(10*time.Millisecond))
	assert.Equal(t, ErrorFacts, gen.GenerateFacts(context.Background(), "p"))
}

func TestGenerateFacts_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewDashboardMetrics(reg)
	gen := NewGenerator(&stubLLM{text: `not json`}, nil, WithMetrics(m))
	gen.GenerateFacts(context.Background(), "p")

	count, err := testutil.GatherAndCount(reg, "appointments_dashboard_fact_fallbacks_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestStatusAndTypeFacts(t *testing.T) {
	llm := &stubLLM{text: `{"facts":["fact"]}`}
	gen := NewGenerator(llm, nil)
	ctx := context.Background()

	assert.Empty(t, gen.StatusFacts(ctx, nil))
	assert.Empty(t, gen.TypeFacts(ctx, nil))
	assert.Zero(t, llm.calls())

	blank := []appointments.Appointment{{ID: 1}}
	assert.Equal(t, []string{"No status data available."}, gen.StatusFacts(ctx, blank))
	assert.Equal(t, []string{"No appointment type data available."}, gen.TypeFacts(ctx, blank))
	assert.Zero(t, llm.calls())

	records := []appointments.Appointment{
		{ID: 1, Status: "Completed", Type: "TypeA"},
		{ID: 2, Status: "Scheduled", Type: "TypeA"},
		{ID: 3, Status: "Cancelled", Type: "TypeB"},
	}
	assert.Equal(t, []string{"fact"}, gen.StatusFacts(ctx, records))
	assert.Equal(t, []string{"fact"}, gen.TypeFacts(ctx, records))
	require.Equal(t, 2, llm.calls())
	assert.Contains(t, llm.prompts[0], "Total appointments: 3.")
	assert.Contains(t, llm.prompts[0], `Status counts: {"Completed":1,"Scheduled":1,"Cancelled":1}.`)
	assert.Contains(t, llm.prompts[1], `Type counts: {"TypeA":2,"TypeB":1}.`)
}

func TestCheckInFacts(t *testing.T) {
	llm := &stubLLM{text: `{"facts":["fact"]}`}
	gen := NewGenerator(llm, nil)
	ctx := context.Background()

	assert.Equal(t, []string{"No check-in data available for today."}, gen.CheckInFacts(ctx, nil, "Today"))
	assert.Equal(t, []string{"No check-in data available for the most recent day."}, gen.CheckInFacts(ctx, nil, ""))
	assert.Equal(t, []string{"No overall check-in data available."}, gen.OverallCheckInFacts(ctx, nil))
	assert.Zero(t, llm.calls())

	checkIns := []appointments.Appointment{
		{ID: 1, CheckInTime: ptr("09:10:00")},
		{ID: 2, CheckInTime: ptr("11:00:00")},
		{ID: 3, CheckInTime: ptr("11:45:00")},
	}
	gen.CheckInFacts(ctx, checkIns, "Yesterday")
	gen.OverallCheckInFacts(ctx, checkIns)
	require.Equal(t, 2, llm.calls())

	assert.Contains(t, llm.prompts[0], "check-in time data from yesterday")
	assert.Contains(t, llm.prompts[0], "Total check-ins for the day: 3.")
	assert.Contains(t, llm.prompts[0], `Check-ins per hour: {"09:00":1,"11:00":2}.`)
	assert.Contains(t, llm.prompts[0], "The busiest hour was 11:00.")
	assert.Contains(t, llm.prompts[1], "The busiest hour overall is 11:00.")
}

func TestGenerateAll(t *testing.T) {
	llm := &stubLLM{respond: func(req LLMRequest) (LLMResponse, error) {
		if strings.Contains(req.Prompt, "appointment type data") {
			return LLMResponse{}, errors.New("type call failed")
		}
		return LLMResponse{Text: `{"facts":["ok"]}`}, nil
	}}
	gen := NewGenerator(llm, nil)

	records := []appointments.Appointment{
		{ID: 1, Status: "Completed", Type: "A", CheckInTime: ptr("10:00:00")},
	}
	facts := gen.GenerateAll(context.Background(), Input{
		Appointments: records,
		DayCheckIns:  records,
		DayLabel:     "Today",
		AllCheckIns:  records,
	})

	assert.Equal(t, []string{"ok"}, facts.Status)
	assert.Equal(t, ErrorFacts, facts.Type)
	assert.Equal(t, []string{"ok"}, facts.CheckIn)
	assert.Equal(t, []string{"ok"}, facts.OverallCheckIn)
	assert.Equal(t, 4, llm.calls())
}

func TestGenerateAll_Empty(t *testing.T) {
	llm := &stubLLM{text: `{"facts":["unused"]}`}
	facts := NewGenerator(llm, nil).GenerateAll(context.Background(), Input{})

	assert.Empty(t, facts.Status)
	assert.Empty(t, facts.Type)
	assert.Equal(t, []string{"No check-in data available for the most recent day."}, facts.CheckIn)
	assert.Equal(t, []string{"No overall check-in data available."}, facts.OverallCheckIn)
	assert.Zero(t, llm.calls())
}
