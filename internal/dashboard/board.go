package dashboard

import (
	"errors"
	"sync"
	"time"

	"github.com/lox/housetemps/internal/analysis"
	"github.com/lox/housetemps/internal/store"
)

type Status string

const (
	StatusPending     Status = "pending"     // never refreshed
	StatusOK          Status = "ok"
	StatusEmpty       Status = "empty"       // no readings to show yet
	StatusStale       Status = "stale"       // refresh failed, showing the last good output
	StatusUnavailable Status = "unavailable" // refresh failed, nothing to show
	StatusSkipped     Status = "skipped"     // not enough data for this analysis
)

type PanelState struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Status      Status    `json:"status"`
	Output      *Output   `json:"output,omitempty"`
	Error       string    `json:"error,omitempty"`
	Tick        uint64    `json:"tick"`
	AttemptedAt time.Time `json:"attempted_at"`
	RefreshedAt time.Time `json:"refreshed_at"`
}

type Snapshot struct {
	Tick   uint64       `json:"tick"`
	At     time.Time    `json:"at"`
	Panels []PanelState `json:"panels"`
}

// Board holds the last good output of every panel. The scheduler writes it, HTTP
// handlers read it.
type Board struct {
	mu     sync.RWMutex
	order  []string
	panels map[string]*PanelState
	tick   uint64
	at     time.Time
}

func NewBoard(panels []Panel) *Board {
	b := &Board{panels: make(map[string]*PanelState, len(panels))}
	for _, p := range panels {
		b.order = append(b.order, p.ID)
		b.panels[p.ID] = &PanelState{ID: p.ID, Title: p.Title, Status: StatusPending}
	}
	return b
}

// statusFor classifies a refresh outcome. hasLastGood reports whether an earlier
// output can stand in for a failed one.
func statusFor(err error, hasLastGood bool) Status {
	switch {
	case err == nil:
		return StatusOK
	case errors.Is(err, store.ErrNoData):
		return StatusEmpty
	case errors.Is(err, analysis.ErrInsufficientData):
		return StatusSkipped
	case hasLastGood:
		return StatusStale
	}
	return StatusUnavailable
}

// Record stores the outcome of one panel refresh and returns the resulting status.
// A transient failure keeps the previous output; an empty or skipped result clears
// it, since there is genuinely nothing to show.
func (b *Board) Record(id string, tick uint64, at time.Time, out Output, err error) Status {
	b.mu.Lock()
	defer b.mu.Unlock()

	p, ok := b.panels[id]
	if !ok {
		p = &PanelState{ID: id}
		b.panels[id] = p
		b.order = append(b.order, id)
	}

	status := statusFor(err, p.Output != nil)
	p.Status = status
	p.Tick = tick
	p.AttemptedAt = at

	switch status {
	case StatusOK:
		o := out
		p.Output = &o
		p.Error = ""
		p.RefreshedAt = at
	case StatusEmpty, StatusSkipped:
		p.Output = nil
		p.Error = err.Error()
	default:
		p.Error = err.Error()
	}
	return status
}

func (b *Board) finishTick(tick uint64, at time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tick = tick
	b.at = at
}

func (b *Board) Get(id string) (PanelState, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	p, ok := b.panels[id]
	if !ok {
		return PanelState{}, false
	}
	return *p, true
}

func (b *Board) Snapshot() Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	s := Snapshot{Tick: b.tick, At: b.at, Panels: make([]PanelState, 0, len(b.order))}
	for _, id := range b.order {
		s.Panels = append(s.Panels, *b.panels[id])
	}
	return s
}
