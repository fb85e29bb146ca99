// Package preview serves rendered report bodies over HTTP so a run can be
// checked before anything is mailed.
package preview

import (
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"time"

	"github.com/eddiefleurent/portfolio_digest/internal/metrics"
	"github.com/eddiefleurent/portfolio_digest/internal/models"
	"github.com/eddiefleurent/portfolio_digest/internal/report"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html>
<head><title>Report preview</title></head>
<body>
<h1>Report preview</h1>
<p>Rendered {{.Rendered.Format "2006-01-02 15:04:05 MST"}}</p>
{{range .Groups}}
<h2><a href="/groups/{{.Name}}">{{.Name}}</a>: {{.Subject}}</h2>
<p>To: {{range $i, $a := .To}}{{if $i}}, {{end}}{{$a}}{{end}}</p>
<pre>{{.Body}}</pre>
{{else}}
<p>No recipient groups configured.</p>
{{end}}
</body>
</html>
`))

// InputFunc builds the data for one preview render. It is called per request
// so each page reflects the files on disk at that moment.
type InputFunc func(ctx context.Context) report.Input

// Config holds the listener settings.
type Config struct {
	Port      int
	AuthToken string
}

// Server exposes the rendered body of every recipient group.
type Server struct {
	router    *chi.Mux
	server    *http.Server
	groups    []models.RecipientGroup
	renderer  *report.Renderer
	input     InputFunc
	metrics   *metrics.Recorder
	logger    logrus.FieldLogger
	port      int
	authToken string
	now       func() time.Time
}

// GroupView is one group's rendered message.
type GroupView struct {
	Name    string   `json:"name"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Include []string `json:"include"`
	Body    string   `json:"body"`
}

type indexData struct {
	Groups   []GroupView
	Rendered time.Time
}

// NewServer creates a preview server. rec may be nil, in which case /metrics
// answers 404.
func NewServer(cfg Config, groups []models.RecipientGroup, renderer *report.Renderer, input InputFunc, rec *metrics.Recorder, logger logrus.FieldLogger) *Server {
	if logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		logger = l
	}
	if renderer == nil {
		renderer = report.NewRenderer(logger)
	}
	s := &Server{
		router:    chi.NewRouter(),
		groups:    groups,
		renderer:  renderer,
		input:     input,
		metrics:   rec,
		logger:    logger,
		port:      cfg.Port,
		authToken: cfg.AuthToken,
		now:       time.Now,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(60 * time.Second))

	if s.authToken != "" {
		s.router.Use(s.authMiddleware)
	}

	s.router.Get("/", s.handleIndex)
	s.router.Get("/groups/{name}", s.handleGroup)
	s.router.Get("/api/groups", s.handleAPIGroups)
	s.router.Get("/health", s.handleHealth)
	s.router.Method(http.MethodGet, "/metrics", s.metrics.Handler())
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		token := r.Header.Get("X-Auth-Token")
		if token == "" {
			token = r.URL.Query().Get("token")
		}

		if token != s.authToken {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens on the configured port and blocks until the server stops.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Infof("Starting preview server on port %d", s.port)
	return s.server.ListenAndServe()
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// views renders every group against one shared input.
func (s *Server) views(ctx context.Context) []GroupView {
	bodies := s.renderer.Bodies(ctx, s.groups, s.input(ctx))
	views := make([]GroupView, 0, len(s.groups))
	for _, g := range s.groups {
		views = append(views, GroupView{
			Name:    g.DisplayName(),
			To:      g.To,
			Subject: g.Subject,
			Include: g.Include,
			Body:    bodies[g.DisplayName()],
		})
	}
	return views
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	data := indexData{Groups: s.views(r.Context()), Rendered: s.now()}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTemplate.Execute(w, data); err != nil {
		s.logger.WithError(err).Error("Failed to execute index template")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

func (s *Server) handleGroup(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var group *models.RecipientGroup
	for i := range s.groups {
		if s.groups[i].DisplayName() == name {
			group = &s.groups[i]
		}
	}
	if group == nil {
		s.logger.WithField("group", name).Debug("preview requested for unknown group")
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}

	bodies := s.renderer.Bodies(r.Context(), []models.RecipientGroup{*group}, s.input(r.Context()))
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if _, err := io.WriteString(w, bodies[name]); err != nil {
		s.logger.WithError(err).Error("Failed to write group body")
	}
}

func (s *Server) handleAPIGroups(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.views(r.Context())); err != nil {
		s.logger.WithError(err).Error("Failed to encode groups")
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	health := map[string]interface{}{
		"status":    "healthy",
		"groups":    len(s.groups),
		"timestamp": s.now().Unix(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(health); err != nil {
		s.logger.WithError(err).Error("Failed to encode health response")
	}
}
