package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/intermernet/bowlpickem/internal/appmeta"
	"github.com/intermernet/bowlpickem/internal/auth"
	"github.com/intermernet/bowlpickem/internal/config"
	"github.com/intermernet/bowlpickem/internal/database"
	"github.com/intermernet/bowlpickem/internal/email"
	"github.com/intermernet/bowlpickem/internal/events"
	"github.com/intermernet/bowlpickem/internal/metrics"
	"github.com/intermernet/bowlpickem/internal/picks"
	"github.com/intermernet/bowlpickem/internal/pools"
	"github.com/intermernet/bowlpickem/internal/realtime"
	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
)

// Server is the main struct for the API. It holds all dependencies required
// by the HTTP handlers.
type Server struct {
	config  *config.Config
	db      *database.Service
	broker  *realtime.Broker
	email   email.Sender
	metrics *metrics.Metrics
	logger  log.FieldLogger

	picks       *picks.Service
	pools       *pools.Directory
	leaderboard *pools.LeaderboardBuilder
	meta        *appmeta.Service
	magicLinks  *auth.MagicLinks

	// googleOAuth is nil when Google sign-in is not configured.
	googleOAuth *oauth2.Config
}

// NewServer wires the domain services on top of db and returns the API.
func NewServer(cfg *config.Config, db *database.Service, broker *realtime.Broker, mailer email.Sender, publisher events.Publisher, m *metrics.Metrics) *Server {
	logger := log.StandardLogger()
	s := &Server{
		config:  cfg,
		db:      db,
		broker:  broker,
		email:   mailer,
		metrics: m,
		logger:  logger,

		picks:       picks.NewService(db, picks.NewLockPolicy(cfg.LockTime), publisher, m, logger),
		pools:       pools.NewDirectory(db, publisher, m, logger),
		leaderboard: pools.NewLeaderboardBuilder(db, m, logger),
		meta:        appmeta.NewService(db),
		magicLinks:  auth.NewMagicLinks(db, cfg.JwtSecret, cfg.SignInTTL),
	}
	if cfg.GoogleEnabled() {
		s.initOAuthConfig()
	}
	return s
}

// envelope is the top-level shape of every JSON response body.
type envelope map[string]interface{}

// writeJSON marshals data and writes it with the given status and any extra
// headers.
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}, headers ...http.Header) {
	js, err := json.Marshal(data)
	if err != nil {
		// The JSON error format itself might not marshal, so fall back to text.
		http.Error(w, "Internal Server Error: Failed to marshal JSON", http.StatusInternalServerError)
		return
	}

	if len(headers) > 0 {
		for key, value := range headers[0] {
			w.Header()[key] = value
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(js)
}

// errorJSON writes {"error": message}. The status defaults to 500.
func (s *Server) errorJSON(w http.ResponseWriter, err error, status ...int) {
	statusCode := http.StatusInternalServerError
	if len(status) > 0 {
		statusCode = status[0]
	}
	s.writeJSON(w, statusCode, envelope{"error": err.Error()})
}

// serverError logs err with the request and answers with a generic 500 so
// storage details never reach the client.
func (s *Server) serverError(w http.ResponseWriter, r *http.Request, err error) {
	s.requestLogger(r).WithError(err).Error("Request failed")
	s.errorJSON(w, errors.New("internal server error"), http.StatusInternalServerError)
}

// domainError answers with the status matching err's sentinel, or a 500.
func (s *Server) domainError(w http.ResponseWriter, r *http.Request, err error) {
	status, ok := statusFor(err)
	if !ok {
		s.serverError(w, r, err)
		return
	}
	s.errorJSON(w, err, status)
}

func statusFor(err error) (int, bool) {
	switch {
	case errors.Is(err, pools.ErrPoolNotFound),
		errors.Is(err, picks.ErrGameNotFound),
		errors.Is(err, picks.ErrProfileNotFound),
		errors.Is(err, database.ErrNotFound):
		return http.StatusNotFound, true
	case errors.Is(err, pools.ErrInvalidPoolName),
		errors.Is(err, picks.ErrInvalidSide),
		errors.Is(err, auth.ErrInvalidEmail):
		return http.StatusBadRequest, true
	case errors.Is(err, picks.ErrPicksLocked):
		return http.StatusLocked, true
	case errors.Is(err, pools.ErrNotMember):
		return http.StatusForbidden, true
	case errors.Is(err, database.ErrConflict):
		return http.StatusConflict, true
	case errors.Is(err, auth.ErrInvalidSignInToken):
		return http.StatusUnauthorized, true
	}
	return 0, false
}
