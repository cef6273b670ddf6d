package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/lox/housetemps/internal/dashboard"
)

var (
	recordPanels = []string{dashboard.PanelLowTemp, dashboard.PanelHighTemp}
	chartPanels  = []string{
		dashboard.PanelDaily,
		dashboard.PanelHighLow,
		dashboard.PanelWeekly,
		dashboard.PanelHumCluster,
		dashboard.PanelHumiditySplit,
	}
)

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	snap := s.board.Snapshot()
	data := IndexData{
		Site:            s.site,
		Board:           snap,
		RefreshInterval: s.interval,
	}
	byID := make(map[string]dashboard.PanelState, len(snap.Panels))
	for _, p := range snap.Panels {
		byID[p.ID] = p
	}
	view := func(id string) PanelView {
		if p, ok := byID[id]; ok {
			return newPanelView(p)
		}
		return PanelView{ID: id, Status: dashboard.StatusPending}
	}
	data.Current = view(dashboard.PanelCurrentTemp)
	data.Since = view(dashboard.PanelSinceDate)
	for _, id := range recordPanels {
		data.Records = append(data.Records, view(id))
	}
	for _, id := range chartPanels {
		data.Charts = append(data.Charts, view(id))
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.tmpl.ExecuteTemplate(w, "index.html", data); err != nil {
		s.logger.Error("template error", "template", "index.html", "error", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	snap := s.board.Snapshot()
	health := HealthStatus{
		Status: "ok",
		Store:  "ok",
		Tick:   snap.Tick,
		Panels: make(map[dashboard.Status]int),
	}
	for _, p := range snap.Panels {
		health.Panels[p.Status]++
	}

	if err := s.store.Ping(ctx); err != nil {
		health.Store = "error"
		health.Errors = append(health.Errors, "store: "+err.Error())
	}

	if !snap.At.IsZero() {
		at := snap.At
		health.LastTick = &at
		age := s.now().Sub(at)
		health.AgeSeconds = int(age.Seconds())
		// two missed ticks means the scheduler is wedged or gone
		if age > 2*s.interval+time.Minute {
			health.Status = "degraded"
			health.Errors = append(health.Errors, "scheduler: last tick "+age.Truncate(time.Second).String()+" ago")
		}
	}
	if health.Panels[dashboard.StatusStale]+health.Panels[dashboard.StatusUnavailable] > 0 {
		health.Status = "degraded"
	}
	if health.Store != "ok" {
		health.Status = "error"
	}

	w.Header().Set("Content-Type", "application/json")
	if health.Status == "error" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	if err := json.NewEncoder(w).Encode(health); err != nil {
		s.logger.Warn("health: write response", "error", err)
	}
}
