package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"

	"github.com/wolfman30/appointment-insights/internal/app/bootstrap"
	"github.com/wolfman30/appointment-insights/internal/appointments"
	appconfig "github.com/wolfman30/appointment-insights/internal/config"
)

var (
	statuses = []string{"Completed", "Completed", "Completed", "Scheduled", "Cancelled", "No Show"}
	types    = []string{"Checkup", "Consultation", "Follow-up", "Vaccination", "Lab Work"}
)

func main() {
	file := flag.String("file", "", "JSON array of appointments to insert (see testdata/sample-appointments.json)")
	count := flag.Int("n", 50, "number of random appointments to generate when -file is not set")
	days := flag.Int("days", 14, "spread generated appointments over this many past days")
	flag.Parse()

	_ = godotenv.Load()
	cfg := appconfig.Load()

	fmt.Println("Seeding Appointments")
	fmt.Println("====================")
	fmt.Printf("Table: %s\n\n", cfg.AppointmentsTable)

	var records []appointments.Appointment
	if *file != "" {
		data, err := os.ReadFile(*file)
		if err != nil {
			fmt.Printf("Error reading file: %v\n", err)
			os.Exit(1)
		}
		if err := json.Unmarshal(data, &records); err != nil {
			fmt.Printf("Error parsing JSON: %v\n", err)
			os.Exit(1)
		}
	} else {
		records = generate(*count, *days, time.Now())
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	pool, err := bootstrap.BuildPostgresPool(ctx, cfg)
	if err != nil {
		fmt.Printf("Error connecting: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	insert := `INSERT INTO ` + pgx.Identifier{cfg.AppointmentsTable}.Sanitize() +
		` ("Appt_DateTime", "Status", "Appt_type", "Check_in_Time") VALUES ($1, $2, $3, $4::text::time)`
	batch := &pgx.Batch{}
	for _, a := range records {
		batch.Queue(insert, a.ScheduledAt, a.Status, a.Type, a.CheckInTime)
	}
	// Every row fires the notify trigger, so a running dashboard refreshes live.
	if err := pool.SendBatch(ctx, batch).Close(); err != nil {
		fmt.Printf("Error inserting: %v\n", err)
		os.Exit(1)
	}
	inserted := len(records)
	fmt.Printf("Inserted %d appointments\n", inserted)
}

func generate(n, days int, now time.Time) []appointments.Appointment {
	if days < 1 {
		days = 1
	}
	rng := rand.New(rand.NewSource(now.UnixNano()))
	out := make([]appointments.Appointment, 0, n)
	for i := 0; i < n; i++ {
		day := now.AddDate(0, 0, -rng.Intn(days))
		hour := 8 + rng.Intn(10)
		at := time.Date(day.Year(), day.Month(), day.Day(), hour, 15*rng.Intn(4), 0, 0, day.Location())

		a := appointments.Appointment{
			ScheduledAt: at,
			Status:      statuses[rng.Intn(len(statuses))],
			Type:        types[rng.Intn(len(types))],
		}
		if a.Status == "Completed" && !at.After(now) {
			checkIn := at.Add(-time.Duration(rng.Intn(20)) * time.Minute).Format("15:04:05")
			a.CheckInTime = &checkIn
		}
		out = append(out, a)
	}
	return out
}
