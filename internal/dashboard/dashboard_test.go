package dashboard

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/lox/housetemps/internal/analysis"
	"github.com/lox/housetemps/internal/render"
	"github.com/lox/housetemps/internal/store"
	"github.com/lox/housetemps/internal/store/storetest"
)

var seedStart = storetest.Day(2022, time.June, 1)

// seed writes five days of readings, four a day, all with humidity.
func seed(t *testing.T, s *store.Store, days int) {
	t.Helper()
	for d := 0; d < days; d++ {
		for i, h := range []int{3, 9, 15, 21} {
			temp := 55 + float64(d*3) + float64(i*(d+1))
			hum := 40 + float64(d*10) + float64(i)
			storetest.InsertReadings(t, s, storetest.HumidReading(seedStart.AddDate(0, 0, d).Add(time.Duration(h)*time.Hour), temp, hum))
		}
	}
}

func newScheduler(t *testing.T, exec Executor) (*Scheduler, *Board) {
	t.Helper()
	panels := Panels(DefaultPanelConfig())
	board := NewBoard(panels)
	s := NewScheduler(exec, board, panels, nil)
	s.SetClock(func() time.Time { return seedStart.AddDate(0, 0, 5).Add(12 * time.Hour) })
	return s, board
}

// flakyExecutor fails chosen queries by name and passes the rest through.
type flakyExecutor struct {
	next Executor
	mu   sync.Mutex
	fail map[string]error
}

func (f *flakyExecutor) Execute(ctx context.Context, q store.Query) (*store.Table, error) {
	f.mu.Lock()
	err := f.fail[q.Name]
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return f.next.Execute(ctx, q)
}

func (f *flakyExecutor) setFail(name string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail == nil {
		f.fail = map[string]error{}
	}
	f.fail[name] = err
}

func statuses(snap Snapshot) map[string]Status {
	out := make(map[string]Status, len(snap.Panels))
	for _, p := range snap.Panels {
		out[p.ID] = p.Status
	}
	return out
}

func TestTick_PopulatedStore(t *testing.T) {
	st := storetest.New(t)
	seed(t, st, 5)
	s, board := newScheduler(t, st)

	snap := s.Tick(context.Background())
	if snap.Tick != 1 {
		t.Errorf("Tick = %d, want 1", snap.Tick)
	}
	if len(snap.Panels) != 9 {
		t.Fatalf("len(panels) = %d, want 9", len(snap.Panels))
	}
	for _, p := range snap.Panels {
		if p.Status != StatusOK {
			t.Errorf("%s: status = %s (%s), want ok", p.ID, p.Status, p.Error)
		}
	}

	low, _ := board.Get(PanelLowTemp)
	if low.Output.Text != "55.0°F" || low.Output.Detail != "June 01, 2022" {
		t.Errorf("low-temp = %+v", low.Output)
	}
	if v := low.Output.Value; v == nil || *v != 55 {
		t.Errorf("low-temp value = %v, want 55", v)
	}
	current, _ := board.Get(PanelCurrentTemp)
	if !strings.HasPrefix(current.Output.Text, "The Current Temperature is ") {
		t.Errorf("current-temp = %q", current.Output.Text)
	}
	if v := current.Output.Value; v == nil || current.Output.Text != render.CurrentTemp(*v) {
		t.Errorf("current-temp value = %v, want the reading behind %q", v, current.Output.Text)
	}
	since, _ := board.Get(PanelSinceDate)
	if since.Output.Text != "Collecting Data Since June 01, 2022" {
		t.Errorf("since-date = %q", since.Output.Text)
	}
	daily, _ := board.Get(PanelDaily)
	if daily.Output.Figure == nil || len(daily.Output.Figure.Data[0].Y) != 5 {
		t.Errorf("daily figure = %+v", daily.Output.Figure)
	}
}

func TestTick_EmptyStore(t *testing.T) {
	st := storetest.New(t)
	s, board := newScheduler(t, st)

	snap := s.Tick(context.Background())
	for _, p := range snap.Panels {
		if p.Status != StatusEmpty {
			t.Errorf("%s: status = %s, want empty", p.ID, p.Status)
		}
		if p.Output != nil {
			t.Errorf("%s: output = %+v, want none", p.ID, p.Output)
		}
	}
	if p, _ := board.Get(PanelCurrentTemp); !strings.Contains(p.Error, store.ErrNoData.Error()) {
		t.Errorf("current-temp error = %q", p.Error)
	}
}

func TestTick_TooFewDaysSkipsClustering(t *testing.T) {
	st := storetest.New(t)
	seed(t, st, 2)
	s, _ := newScheduler(t, st)

	got := statuses(s.Tick(context.Background()))
	if got[PanelHumCluster] != StatusSkipped {
		t.Errorf("cluster status = %s, want skipped", got[PanelHumCluster])
	}
	if got[PanelHumiditySplit] != StatusOK {
		t.Errorf("split status = %s, want ok", got[PanelHumiditySplit])
	}
	if got[PanelDaily] != StatusOK {
		t.Errorf("daily status = %s, want ok", got[PanelDaily])
	}
}

func TestTick_FailingPanelDoesNotBlockOthers(t *testing.T) {
	st := storetest.New(t)
	seed(t, st, 5)
	exec := &flakyExecutor{next: st}
	exec.setFail("record_low", &store.QueryFailure{Query: "record_low", Kind: store.ErrTimeout, Err: context.DeadlineExceeded})
	s, _ := newScheduler(t, exec)

	got := statuses(s.Tick(context.Background()))
	if got[PanelLowTemp] != StatusUnavailable {
		t.Errorf("low-temp = %s, want unavailable", got[PanelLowTemp])
	}
	for id, status := range got {
		if id != PanelLowTemp && status != StatusOK {
			t.Errorf("%s = %s, want ok", id, status)
		}
	}
}

func TestTick_KeepsLastGoodOutput(t *testing.T) {
	st := storetest.New(t)
	seed(t, st, 5)
	exec := &flakyExecutor{next: st}
	s, board := newScheduler(t, exec)

	s.Tick(context.Background())
	before, _ := board.Get(PanelHighTemp)

	exec.setFail("record_high", &store.QueryFailure{Query: "record_high", Kind: store.ErrConnection, Err: errors.New("connection refused")})
	s.Tick(context.Background())
	after, _ := board.Get(PanelHighTemp)

	if after.Status != StatusStale {
		t.Errorf("status = %s, want stale", after.Status)
	}
	if after.Output == nil || *after.Output != *before.Output {
		t.Errorf("output = %+v, want last good %+v", after.Output, before.Output)
	}
	if !after.RefreshedAt.Equal(before.RefreshedAt) {
		t.Errorf("RefreshedAt moved from %v to %v on a failed refresh", before.RefreshedAt, after.RefreshedAt)
	}
	if after.Tick != 2 || after.Error == "" {
		t.Errorf("tick/error = %d/%q, want 2 and the failure", after.Tick, after.Error)
	}
}

func TestTick_PanicIsPanelLocal(t *testing.T) {
	st := storetest.New(t)
	seed(t, st, 5)
	panels := Panels(DefaultPanelConfig())
	panels = append(panels, Panel{
		ID:    "broken",
		Query: panels[0].Query,
		Build: func(time.Time, *store.Table) (Output, error) { panic("boom") },
	})
	board := NewBoard(panels)
	s := NewScheduler(st, board, panels, nil)

	got := statuses(s.Tick(context.Background()))
	if got["broken"] != StatusUnavailable {
		t.Errorf("broken = %s, want unavailable", got["broken"])
	}
	if got[PanelCurrentTemp] != StatusOK {
		t.Errorf("current-temp = %s, want ok", got[PanelCurrentTemp])
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		hasLastGood bool
		want        Status
	}{
		{"ok", nil, false, StatusOK},
		{"no data", &store.QueryFailure{Kind: store.ErrNoData}, true, StatusEmpty},
		{"insufficient", analysis.ErrInsufficientData, true, StatusSkipped},
		{"timeout with last good", &store.QueryFailure{Kind: store.ErrTimeout}, true, StatusStale},
		{"timeout without last good", &store.QueryFailure{Kind: store.ErrTimeout}, false, StatusUnavailable},
		{"query error", &store.QueryFailure{Kind: store.ErrQuery}, false, StatusUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := statusFor(tt.err, tt.hasLastGood); got != tt.want {
				t.Errorf("statusFor = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestClampInterval(t *testing.T) {
	tests := []struct {
		in, want time.Duration
	}{
		{0, DefaultInterval},
		{time.Minute, MinInterval},
		{10 * time.Minute, 10 * time.Minute},
		{time.Hour, MaxInterval},
	}
	for _, tt := range tests {
		if got := ClampInterval(tt.in); got != tt.want {
			t.Errorf("ClampInterval(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	st := storetest.New(t)
	s, board := newScheduler(t, st)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	deadline := time.After(5 * time.Second)
	for board.Snapshot().Tick == 0 {
		select {
		case <-deadline:
			t.Fatal("first tick never completed")
		case <-time.After(10 * time.Millisecond):
		}
	}
	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
