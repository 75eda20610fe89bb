package web

import (
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"strings"
	"time"

	"github.com/wolfman30/appointment-insights/internal/analytics"
	"github.com/wolfman30/appointment-insights/internal/dashboard"
	"github.com/wolfman30/appointment-insights/internal/settings"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// StaticFS serves the page script and stylesheet under /static/.
func StaticFS() fs.FS {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return sub
}

var funcs = template.FuncMap{
	"formatDate":  func(t time.Time) string { return t.Local().Format("1/2/2006") },
	"formatClock": func(t time.Time) string { return t.Local().Format("3:04:05 PM") },
	"delay":       func(i int) string { return fmt.Sprintf("%dms", i*100) },
	"statusClass": statusClass,
}

func statusClass(status string) string {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "completed":
		return "status-completed"
	case "scheduled":
		return "status-scheduled"
	case "cancelled":
		return "status-cancelled"
	default:
		return "status-other"
	}
}

type pages struct {
	dashboard *template.Template
	settings  *template.Template
	setup     *template.Template
}

func parsePages() (*pages, error) {
	parse := func(files ...string) (*template.Template, error) {
		paths := make([]string, 0, len(files))
		for _, f := range files {
			paths = append(paths, "templates/"+f)
		}
		tmpl, err := template.New("").Funcs(funcs).ParseFS(templateFS, paths...)
		if err != nil {
			return nil, fmt.Errorf("web: parse %v: %w", files, err)
		}
		return tmpl, nil
	}

	dash, err := parse("layout.html", "dashboard.html")
	if err != nil {
		return nil, err
	}
	set, err := parse("layout.html", "settings.html")
	if err != nil {
		return nil, err
	}
	setup, err := parse("setup.html")
	if err != nil {
		return nil, err
	}
	return &pages{dashboard: dash, settings: set, setup: setup}, nil
}

// pageData is shared by every page rendered inside the layout.
type pageData struct {
	Title             string
	Active            string
	ThemeClass        string
	AnimationsEnabled bool
	Settings          settings.Settings
}

func newPageData(title, active string, s settings.Settings) pageData {
	return pageData{
		Title:             title,
		Active:            active,
		ThemeClass:        s.ThemeClass(),
		AnimationsEnabled: s.AnimationsEnabled,
		Settings:          s,
	}
}

type factSection struct {
	Loading bool
	HasData bool
	Facts   []string
}

type dashboardPage struct {
	pageData
	Model             dashboard.Model
	DayChartTitle     string
	CheckInFactsTitle string
	DayHasData        bool
	OverallHasData    bool
	StatusFacts       factSection
	TypeFacts         factSection
	CheckInFacts      factSection
	OverallFacts      factSection
}

func newDashboardPage(model dashboard.Model, s settings.Settings) dashboardPage {
	label := model.DayLabel()
	dayTitle := label
	if dayTitle == "" {
		dayTitle = "Most Recent Day"
	}
	factsTitle := label
	if factsTitle == "" {
		factsTitle = "Recent"
	}
	section := func(facts []string) factSection {
		return factSection{Loading: model.FactsLoading, HasData: model.HasAppointments(), Facts: facts}
	}
	return dashboardPage{
		pageData:          newPageData("Dashboard", "dashboard", s),
		Model:             model,
		DayChartTitle:     fmt.Sprintf("Hourly Check-ins (%s)", dayTitle),
		CheckInFactsTitle: fmt.Sprintf("Check-in Insights (%s)", factsTitle),
		DayHasData:        hasCheckIns(model.DayCheckIns),
		OverallHasData:    hasCheckIns(model.OverallCheckIns),
		StatusFacts:       section(model.Facts.Status),
		TypeFacts:         section(model.Facts.Type),
		CheckInFacts:      section(model.Facts.CheckIn),
		OverallFacts:      section(model.Facts.OverallCheckIn),
	}
}

type settingsPage struct {
	pageData
	Saved     bool
	SaveError string
}

func hasCheckIns(series []analytics.HourCount) bool {
	for _, hc := range series {
		if hc.Count > 0 {
			return true
		}
	}
	return false
}
