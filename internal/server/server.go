package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/lazypower/nudge/internal/engine"
	"github.com/lazypower/nudge/internal/store"
)

// Server is the nudge HTTP API server: the in-app reminder API plus the
// provider webhook surface.
type Server struct {
	db      *store.DB
	engine  *engine.Engine
	router  chi.Router
	version string
	started time.Time
}

// New creates a new Server.
func New(db *store.DB, eng *engine.Engine, version string) *Server {
	s := &Server{
		db:      db,
		engine:  eng,
		version: version,
		started: time.Now(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Post("/items/{itemID}/schedule", s.handleScheduleReminder)
		r.Post("/reminders/{reminderID}/reply", s.handleReply)

		r.Get("/users/{userID}/settings", s.handleGetSettings)
		r.Put("/users/{userID}/settings", s.handlePutSettings)
		r.Post("/users/{userID}/push-subscriptions", s.handleAddSubscription)

		r.Route("/webhooks/twilio", func(r chi.Router) {
			r.Post("/sms", s.handleTwilioSMS)
			r.Post("/voice/twiml", s.handleVoiceTwiML)
			r.Post("/voice/status", s.handleVoiceStatus)
			r.Post("/voice/recorded", s.handleVoiceRecorded)
			r.Post("/voice/transcription", s.handleVoiceTranscription)
		})
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	dbOK := true
	if err := s.db.Ping(); err != nil {
		dbOK = false
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":  "ok",
		"version": s.version,
		"uptime":  time.Since(s.started).Seconds(),
		"db":      dbOK,
		"db_path": s.db.Path,
	})
}
