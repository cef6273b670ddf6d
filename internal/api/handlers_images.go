package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/lox/housetemps/internal/dashboard"
	"github.com/lox/housetemps/internal/imagegen"
)

// handleChart serves a PNG snapshot of a figure panel for clients without
// JavaScript. Snapshots are cached per panel until the next refresh tick.
func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	id, ok := strings.CutSuffix(r.PathValue("file"), ".png")
	if !ok {
		http.NotFound(w, r)
		return
	}
	p, ok := s.board.Get(id)
	if !ok {
		http.NotFound(w, r)
		return
	}
	if p.Output == nil || p.Output.Figure == nil {
		http.Error(w, "data unavailable", http.StatusNotFound)
		return
	}

	data, ok := s.charts.Get(id, p.Tick)
	if !ok {
		var err error
		data, err = imagegen.RenderFigurePNG(*p.Output.Figure, imagegen.ChartWidth, imagegen.ChartHeight)
		if errors.Is(err, imagegen.ErrEmptyFigure) {
			http.Error(w, "data unavailable", http.StatusNotFound)
			return
		}
		if err != nil {
			s.logger.Error("chart: render", "panel", id, "error", err)
			http.Error(w, "failed to render chart", http.StatusInternalServerError)
			return
		}
		s.charts.Set(id, p.Tick, data)
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d", int(s.interval.Seconds())))
	w.Write(data)
}

// handleOGImage serves the Open Graph card with the current reading and records.
func (s *Server) handleOGImage(w http.ResponseWriter, r *http.Request) {
	if data, ok := s.ogImages.Get(); ok {
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "public, max-age=300")
		w.Write(data)
		return
	}

	ogImage, err := imagegen.GenerateOGImage(s.ogImageData())
	if err != nil {
		s.logger.Error("og-image: generate", "error", err)
		http.Error(w, "failed to generate OG image", http.StatusInternalServerError)
		return
	}
	s.ogImages.Set(ogImage)

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=300")
	w.Write(ogImage)
}

func (s *Server) ogImageData() imagegen.OGImageData {
	data := imagegen.OGImageData{Site: s.site}

	if p, ok := s.board.Get(dashboard.PanelCurrentTemp); ok && p.Output != nil {
		if v := p.Output.Value; v != nil {
			data.Temperature = *v
			data.HasReading = true
		}
	}

	var records []string
	if p, ok := s.board.Get(dashboard.PanelLowTemp); ok && p.Output != nil {
		records = append(records, "Low "+p.Output.Text)
	}
	if p, ok := s.board.Get(dashboard.PanelHighTemp); ok && p.Output != nil {
		records = append(records, "High "+p.Output.Text)
	}
	data.Records = strings.Join(records, " · ")

	if p, ok := s.board.Get(dashboard.PanelSinceDate); ok && p.Output != nil {
		data.Since = p.Output.Text
	}
	return data
}
