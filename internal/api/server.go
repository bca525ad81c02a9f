// Package api exposes songs and the presentation session over HTTP, SSE and
// WebSocket.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/satindergrewal/cueline/internal/capture"
	"github.com/satindergrewal/cueline/internal/session"
	"github.com/satindergrewal/cueline/internal/song"
)

// SongStore is the song persistence the API needs.
type SongStore interface {
	Create(ctx context.Context, s song.Song) (song.Song, error)
	Get(ctx context.Context, id string) (song.Song, error)
	List(ctx context.Context) ([]song.Song, error)
	Update(ctx context.Context, s song.Song) (song.Song, error)
	Delete(ctx context.Context, id string) error
}

// Options configures a Server.
type Options struct {
	Loop  *session.Loop
	Songs SongStore
	// Browser is set when capture comes from the presenter's browser.
	Browser *capture.WebRTC
	// Defaults fills presentation settings a new song leaves empty.
	Defaults song.Song
	// EventRate caps loudness and progress events per second per subscriber.
	EventRate float64
	Logger    *slog.Logger
}

// Server routes HTTP requests to the session loop and song store.
type Server struct {
	loop      *session.Loop
	songs     SongStore
	browser   *capture.WebRTC
	defaults  song.Song
	eventRate float64
	heartbeat time.Duration
	router    *chi.Mux
	logger    *slog.Logger
}

// NewServer creates a server with all routes configured.
func NewServer(opts Options) *Server {
	if opts.EventRate <= 0 {
		opts.EventRate = 15
	}
	s := &Server{
		loop:      opts.Loop,
		songs:     opts.Songs,
		browser:   opts.Browser,
		defaults:  opts.Defaults,
		eventRate: opts.EventRate,
		heartbeat: 15 * time.Second,
		router:    chi.NewRouter(),
		logger:    opts.Logger.With("component", "api"),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.requestLogger)
	s.router.Use(middleware.Recoverer)
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Route("/songs", func(r chi.Router) {
			r.Get("/", s.handleListSongs)
			r.Post("/", s.handleCreateSong)
			r.Get("/{id}", s.handleGetSong)
			r.Put("/{id}", s.handleUpdateSong)
			r.Delete("/{id}", s.handleDeleteSong)
		})

		r.Route("/session", func(r chi.Router) {
			r.Get("/status", s.sessionCommand(cmdStatus))
			r.Put("/config", s.sessionCommand(cmdConfigure))
			for _, name := range []string{
				cmdLoad, cmdArm, cmdDisarm, cmdStart, cmdPause,
				cmdReset, cmdExit, cmdScroll, cmdViewport,
			} {
				r.Post("/"+name, s.sessionCommand(name))
			}
		})

		r.Get("/events", s.handleEvents)
		r.Get("/remote", s.handleRemote)

		if s.browser != nil {
			r.Route("/capture", func(r chi.Router) {
				r.Post("/offer", s.handleCaptureOffer)
				r.Post("/error", s.handleCaptureError)
			})
		}
	})
}

// requestLogger logs each request at debug level, except long-lived streams
// which are logged when they open.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

type healthResponse struct {
	Status      string `json:"status"`
	Subscribers int    `json:"subscribers"`
	Browser     *bool  `json:"browser_connected,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := healthResponse{
		Status:      "ok",
		Subscribers: s.loop.Session().Events().ListenerCount(),
	}
	if s.browser != nil {
		c := s.browser.Connected()
		resp.Browser = &c
	}
	writeJSON(w, http.StatusOK, resp)
}
