package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/joho/godotenv"

	"github.com/wolfman30/appointment-insights/cmd/mainconfig"
	"github.com/wolfman30/appointment-insights/internal/app/bootstrap"
	"github.com/wolfman30/appointment-insights/internal/appointments"
	appconfig "github.com/wolfman30/appointment-insights/internal/config"
	"github.com/wolfman30/appointment-insights/internal/dashboard"
	"github.com/wolfman30/appointment-insights/internal/insights"
	"github.com/wolfman30/appointment-insights/pkg/logging"
)

// factcheck fetches the current appointments once and prints the four fact
// lists the dashboard would show. With -prompt it sends a single ad hoc
// prompt instead.
func main() {
	timeout := flag.Duration("timeout", 90*time.Second, "overall deadline")
	prompt := flag.String("prompt", "", "send this prompt instead of generating dashboard facts")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found, using environment variables")
	}
	cfg := appconfig.Load()
	logger := logging.NewWithOptions(logging.Options{Level: cfg.LogLevel, Format: "text"})

	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "API_KEY is not set; add it to your environment or .env file")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	if err := run(ctx, cfg, logger, *prompt); err != nil {
		fmt.Fprintf(os.Stderr, "factcheck: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, prompt string) error {
	var awsCfg *aws.Config
	if mainconfig.NeedsAWS(cfg) {
		loaded, err := mainconfig.LoadAWSConfig(ctx, cfg)
		if err != nil {
			return fmt.Errorf("load aws config: %w", err)
		}
		awsCfg = &loaded
	}

	llm, closeLLM, err := bootstrap.BuildFactClient(ctx, cfg, awsCfg, logger)
	if err != nil {
		return err
	}
	defer closeLLM()
	generator := insights.NewGenerator(llm, logger, insights.WithTimeout(cfg.FactTimeout))

	if strings.TrimSpace(prompt) != "" {
		start := time.Now()
		facts := generator.GenerateFacts(ctx, prompt)
		printFacts(fmt.Sprintf("Ad hoc prompt (%v)", time.Since(start).Round(time.Millisecond)), facts)
		return nil
	}

	pool, err := bootstrap.BuildPostgresPool(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	records, err := appointments.NewRepository(pool, cfg.AppointmentsTable).FetchAll(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Fetched %d appointments from %s\n", len(records), cfg.AppointmentsTable)
	if len(records) == 0 {
		fmt.Println("No data to generate facts.")
		return nil
	}

	in := dashboard.FactInput(records, time.Now())
	start := time.Now()
	facts := generator.GenerateAll(ctx, in)
	fmt.Printf("Generated facts in %v\n", time.Since(start).Round(time.Millisecond))

	dayLabel := in.DayLabel
	if dayLabel == "" {
		dayLabel = "Recent"
	}
	printFacts("Status Insights", facts.Status)
	printFacts("Type Insights", facts.Type)
	printFacts(fmt.Sprintf("Check-in Insights (%s)", dayLabel), facts.CheckIn)
	printFacts("Overall Check-in Insights", facts.OverallCheckIn)
	return nil
}

func printFacts(title string, facts []string) {
	fmt.Println()
	fmt.Println(title)
	fmt.Println(strings.Repeat("=", len(title)))
	for i, fact := range facts {
		fmt.Printf("%d. %s\n", i+1, fact)
	}
}
