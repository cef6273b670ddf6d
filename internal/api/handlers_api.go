package api

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/lox/housetemps/internal/queries"
	"github.com/lox/housetemps/internal/store"
)

const maxDailyWindow = 365

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("write json", "error", err)
	}
}

func (s *Server) handleAPIPanels(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.board.Snapshot())
}

func (s *Server) handleAPIPanel(w http.ResponseWriter, r *http.Request) {
	p, ok := s.board.Get(r.PathValue("id"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	s.writeJSON(w, http.StatusOK, p)
}

// handleAPIDaily serves daily averages with the moving average computed by the
// database, for callers that want the numbers rather than a figure.
func (s *Server) handleAPIDaily(w http.ResponseWriter, r *http.Request) {
	window := queries.DefaultMovingAverageWindow
	if v := r.URL.Query().Get("window"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxDailyWindow {
			http.Error(w, "window must be an integer between 1 and 365", http.StatusBadRequest)
			return
		}
		window = n
	}

	q, err := queries.DailyAveragesWithMovingAverage(window)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	t, err := s.store.Execute(r.Context(), q)
	if err != nil {
		s.logger.Error("daily averages", "window", window, "error", err)
		http.Error(w, http.StatusText(statusForError(err)), statusForError(err))
		return
	}

	resp, err := dailyResponse(t, window)
	if err != nil {
		s.logger.Error("daily averages: decode", "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func dailyResponse(t *store.Table, window int) (DailyResponse, error) {
	resp := DailyResponse{Window: window, Days: []DailyPoint{}}
	if t.Empty() {
		return resp, nil
	}
	days, err := t.Times(queries.ColDate)
	if err != nil {
		return resp, err
	}
	temps, err := t.Floats(queries.ColTemp)
	if err != nil {
		return resp, err
	}
	avgs, err := t.Floats(queries.ColMovingAvg)
	if err != nil {
		return resp, err
	}
	for i, d := range days {
		resp.Days = append(resp.Days, DailyPoint{
			Date:      d.Format("2006-01-02"),
			Temp:      nullable(temps[i]),
			MovingAvg: nullable(avgs[i]),
		})
	}
	return resp, nil
}

func nullable(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, store.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, store.ErrConnection):
		return http.StatusServiceUnavailable
	case errors.Is(err, store.ErrNoData):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}
