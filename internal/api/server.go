package api

import (
	"context"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lox/housetemps/internal/dashboard"
	"github.com/lox/housetemps/internal/imagegen"
	"github.com/lox/housetemps/internal/store"
)

// Store is the part of the data access layer the server reads from directly.
type Store interface {
	Execute(ctx context.Context, q store.Query) (*store.Table, error)
	Ping(ctx context.Context) error
}

type Server struct {
	store    Store
	board    *dashboard.Board
	addr     string
	site     string
	interval time.Duration
	logger   *slog.Logger
	now      func() time.Time
	tmpl     *template.Template
	charts   *imagegen.ChartCache
	ogImages *imagegen.OGImageCache
}

func NewServer(st Store, board *dashboard.Board, addr string) *Server {
	return &Server{
		store:    st,
		board:    board,
		addr:     addr,
		site:     "housetemps",
		interval: dashboard.DefaultInterval,
		logger:   slog.Default().With("component", "api"),
		now:      time.Now,
		tmpl:     newTemplates(),
		charts:   imagegen.NewChartCache(),
		ogImages: imagegen.NewOGImageCache(5 * time.Minute),
	}
}

func (s *Server) SetLogger(l *slog.Logger) {
	s.logger = l.With("component", "api")
}

// SetRefreshInterval tells the page how often to poll for new panel output.
func (s *Server) SetRefreshInterval(d time.Duration) {
	s.interval = dashboard.ClampInterval(d)
}

// SetClock overrides the clock health checks measure scheduler lag against.
func (s *Server) SetClock(now func() time.Time) {
	s.now = now
}

func (s *Server) SetSiteName(name string) {
	if name != "" {
		s.site = name
	}
}

// OGImageCache returns the share-card cache so the scheduler can drop it after a
// refresh.
func (s *Server) OGImageCache() *imagegen.OGImageCache {
	return s.ogImages
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /api/panels", s.handleAPIPanels)
	mux.HandleFunc("GET /api/panels/{id}", s.handleAPIPanel)
	mux.HandleFunc("GET /api/daily", s.handleAPIDaily)
	mux.HandleFunc("GET /charts/{file}", s.handleChart)
	mux.HandleFunc("GET /og-image.png", s.handleOGImage)
	return mux
}

func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("shutdown", "error", err)
		}
	}()

	s.logger.Info("listening", "addr", s.addr)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}
