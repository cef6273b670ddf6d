package api

import (
	"time"

	"github.com/lox/housetemps/internal/dashboard"
)

// IndexData is the page model. Figures are not rendered server-side; the page
// fetches them from /api/panels.
type IndexData struct {
	Site            string
	Board           dashboard.Snapshot
	RefreshInterval time.Duration
	Records         []PanelView
	Charts          []PanelView
	Current         PanelView
	Since           PanelView
}

type PanelView struct {
	ID        string
	Title     string
	Status    dashboard.Status
	Text      string
	Detail    string
	Available bool
}

func newPanelView(p dashboard.PanelState) PanelView {
	v := PanelView{ID: p.ID, Title: p.Title, Status: p.Status}
	if p.Output != nil {
		v.Text = p.Output.Text
		v.Detail = p.Output.Detail
		v.Available = true
	}
	return v
}

type HealthStatus struct {
	Status     string                   `json:"status"`
	Store      string                   `json:"store"`
	Tick       uint64                   `json:"tick"`
	LastTick   *time.Time               `json:"last_tick,omitempty"`
	AgeSeconds int                      `json:"age_seconds,omitempty"`
	Panels     map[dashboard.Status]int `json:"panels"`
	Errors     []string                 `json:"errors,omitempty"`
}

// DailyPoint is one row of /api/daily. Missing values serialise as null.
type DailyPoint struct {
	Date      string   `json:"date"`
	Temp      *float64 `json:"temp"`
	MovingAvg *float64 `json:"moving_avg"`
}

type DailyResponse struct {
	Window int          `json:"window"`
	Days   []DailyPoint `json:"days"`
}
