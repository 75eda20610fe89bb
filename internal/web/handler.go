// Package web is the browser-facing view layer: server-rendered pages, a
// JSON API over the same model and a websocket hub for live updates.
package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"html/template"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/wolfman30/appointment-insights/internal/dashboard"
	"github.com/wolfman30/appointment-insights/internal/settings"
	"github.com/wolfman30/appointment-insights/pkg/logging"
)

const (
	maxSettingsBody = 64 << 10
	refreshTimeout  = 20 * time.Second
)

type DashboardSource interface {
	Snapshot() dashboard.Model
	Refresh(ctx context.Context) error
}

type SettingsStore interface {
	Get() settings.Settings
	Update(ctx context.Context, mutate func(*settings.Settings)) (settings.Settings, error)
	UpdateJSON(ctx context.Context, raw []byte) (settings.Settings, error)
}

// Handler serves the dashboard and settings pages and their JSON API.
type Handler struct {
	dashboard DashboardSource
	settings  SettingsStore
	hub       *Hub
	gatherer  prometheus.Gatherer
	logger    *logging.Logger
	pages     *pages
}

func NewHandler(dash DashboardSource, store SettingsStore, hub *Hub, gatherer prometheus.Gatherer, logger *logging.Logger) (*Handler, error) {
	if dash == nil || store == nil {
		return nil, errors.New("web: dashboard and settings are required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	p, err := parsePages()
	if err != nil {
		return nil, err
	}
	return &Handler{
		dashboard: dash,
		settings:  store,
		hub:       hub,
		gatherer:  gatherer,
		logger:    logger,
		pages:     p,
	}, nil
}

// DashboardPage renders the charts, recent list and fact sections.
// GET /
func (h *Handler) DashboardPage(w http.ResponseWriter, r *http.Request) {
	page := newDashboardPage(h.dashboard.Snapshot(), h.settings.Get())
	h.render(w, h.pages.dashboard, "layout", http.StatusOK, page)
}

// SettingsPage renders the preferences form.
// GET /settings
func (h *Handler) SettingsPage(w http.ResponseWriter, r *http.Request) {
	page := settingsPage{
		pageData: newPageData("Settings", "settings", h.settings.Get()),
		Saved:    r.URL.Query().Get("saved") == "1",
	}
	h.render(w, h.pages.settings, "layout", http.StatusOK, page)
}

// SaveSettings applies the submitted form. Unchecked boxes are absent from
// the form and read as false.
// POST /settings
func (h *Handler) SaveSettings(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	checked := func(name string) bool { return r.PostForm.Get(name) == "on" }

	updated, err := h.settings.Update(r.Context(), func(s *settings.Settings) {
		s.Theme = settings.ThemeLight
		if checked("darkMode") {
			s.Theme = settings.ThemeDark
		}
		s.AnimationsEnabled = checked("animationsEnabled")
		s.Notifications.Enabled = checked("notificationsEnabled")
		s.Notifications.OnNew = checked("notifyOnNew")
		s.Notifications.OnCancelled = checked("notifyOnCancelled")
	})
	if err != nil {
		h.logger.Error("failed to save settings", "error", err)
		page := settingsPage{
			pageData:  newPageData("Settings", "settings", updated),
			SaveError: "Settings are applied but could not be saved.",
		}
		h.render(w, h.pages.settings, "layout", http.StatusInternalServerError, page)
		return
	}
	http.Redirect(w, r, "/settings?saved=1", http.StatusSeeOther)
}

// GetDashboard returns the current model.
// GET /api/dashboard
func (h *Handler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.dashboard.Snapshot())
}

// GetSettings returns the current settings.
// GET /api/settings
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.settings.Get())
}

// PutSettings merges a partial settings document over the current value.
// PUT /api/settings
func (h *Handler) PutSettings(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxSettingsBody))
	if err != nil {
		jsonError(w, "failed to read body", http.StatusBadRequest)
		return
	}
	updated, err := h.settings.UpdateJSON(r.Context(), body)
	switch {
	case errors.Is(err, settings.ErrInvalid):
		jsonError(w, "invalid settings", http.StatusBadRequest)
		return
	case err != nil:
		h.logger.Error("failed to persist settings", "error", err)
		jsonError(w, "failed to persist settings", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// StatusResponse summarizes pipeline health for operators.
type StatusResponse struct {
	Generation   uint64                `json:"generation"`
	UpdatedAt    time.Time             `json:"updated_at"`
	Loading      bool                  `json:"loading"`
	FactsLoading bool                  `json:"facts_loading"`
	Error        string                `json:"error,omitempty"`
	Appointments int                   `json:"appointments"`
	LiveClients  int                   `json:"live_clients"`
	FactLatency  dashboard.FactLatency `json:"fact_latency"`
}

// GetStatus reports the last refresh, live clients and fact latency.
// GET /api/status
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	model := h.dashboard.Snapshot()
	resp := StatusResponse{
		Generation:   model.Generation,
		UpdatedAt:    model.UpdatedAt,
		Loading:      model.Loading,
		FactsLoading: model.FactsLoading,
		Error:        model.Error,
		Appointments: len(model.Appointments),
		FactLatency:  dashboard.FactLatencySnapshot(h.gatherer),
	}
	if h.hub != nil {
		resp.LiveClients = h.hub.Clients()
	}
	writeJSON(w, http.StatusOK, resp)
}

// Refresh re-fetches appointment data on demand.
// POST /api/refresh
// The refresh is detached from the request so a client hanging up does not
// abort the shared rebuild.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), refreshTimeout)
	defer cancel()
	if err := h.dashboard.Refresh(ctx); err != nil {
		jsonError(w, "Failed to load data: "+err.Error(), http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, h.dashboard.Snapshot())
}

func (h *Handler) render(w http.ResponseWriter, tmpl *template.Template, name string, status int, data any) {
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		h.logger.Error("failed to render page", "template", name, "error", err)
		http.Error(w, "failed to render page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func jsonError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}
