// Package analytics reshapes appointment rows into chart series and the
// summaries embedded in fact prompts.
package analytics

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/wolfman30/appointment-insights/internal/appointments"
)

// Selector picks the field a grouping or bucketing runs over.
type Selector func(appointments.Appointment) string

func ByStatus(a appointments.Appointment) string { return a.Status }

func ByType(a appointments.Appointment) string { return a.Type }

func ByCheckInTime(a appointments.Appointment) string { return a.CheckIn() }

// Count is one label and its tally. JSON names match what the pie charts read.
type Count struct {
	Label string `json:"name"`
	Value int    `json:"value"`
}

// Counts keeps labels in order of first occurrence.
type Counts []Count

// Get returns the count for label, or 0.
func (c Counts) Get(label string) int {
	for _, entry := range c {
		if entry.Label == label {
			return entry.Value
		}
	}
	return 0
}

func (c Counts) Total() int {
	total := 0
	for _, entry := range c {
		total += entry.Value
	}
	return total
}

func (c Counts) Map() map[string]int {
	out := make(map[string]int, len(c))
	for _, entry := range c {
		out[entry.Label] = entry.Value
	}
	return out
}

// MarshalJSON writes an object whose keys keep first-occurrence order, the
// shape embedded in prompts.
func (c Counts) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, entry := range c {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(entry.Label)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		value, err := json.Marshal(entry.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (c *Counts) increment(label string) {
	for i := range *c {
		if (*c)[i].Label == label {
			(*c)[i].Value++
			return
		}
	}
	*c = append(*c, Count{Label: label, Value: 1})
}

// GroupCount counts non-empty selected values in order of first occurrence.
// The literals "null" and "undefined" count as empty.
func GroupCount(records []appointments.Appointment, selector Selector) Counts {
	out := Counts{}
	for _, record := range records {
		value := selector(record)
		if isBlank(value) {
			continue
		}
		out.increment(value)
	}
	return out
}

func isBlank(value string) bool {
	switch strings.TrimSpace(value) {
	case "", "null", "undefined":
		return true
	}
	return false
}

// Summary is the grouping a status or type prompt embeds.
type Summary struct {
	Total  int    `json:"total"`
	Counts Counts `json:"counts"`
}

// Summarize counts selected values. Total is the number of records, including
// those whose value was blank.
func Summarize(records []appointments.Appointment, selector Selector) Summary {
	return Summary{Total: len(records), Counts: GroupCount(records, selector)}
}
