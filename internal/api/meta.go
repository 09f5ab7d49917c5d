package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/intermernet/bowlpickem/internal/appmeta"
	"github.com/intermernet/bowlpickem/internal/teamlogo"
)

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if err := s.db.GetMainDB().PingContext(r.Context()); err != nil {
		s.requestLogger(r).WithError(err).Error("Health check failed")
		s.errorJSON(w, errors.New("database unavailable"), http.StatusServiceUnavailable)
		return
	}
	s.writeJSON(w, http.StatusOK, envelope{"status": "ok"})
}

func (s *Server) handleGetLock(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, toLockResponse(s.picks.Lock()))
}

func (s *Server) handleGetTeamLogo(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.URL.Query().Get("name"))
	if name == "" {
		s.errorJSON(w, errors.New("name is required"), http.StatusBadRequest)
		return
	}
	light, ok := teamlogo.URL(name)
	if !ok {
		s.errorJSON(w, errors.New("no logo for team"), http.StatusNotFound)
		return
	}
	dark, _ := teamlogo.DarkURL(name)
	s.writeJSON(w, http.StatusOK, envelope{
		"name":        name,
		"logoUrl":     light,
		"darkLogoUrl": dark,
	})
}

// handleGetScoresFreshness reports when results were last recorded.
func (s *Server) handleGetScoresFreshness(w http.ResponseWriter, r *http.Request) {
	last, ok, err := s.meta.LastScoresUpdate(r.Context())
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	if !ok {
		s.writeJSON(w, http.StatusOK, envelope{"lastScoresUpdate": nil, "formatted": nil})
		return
	}
	s.writeJSON(w, http.StatusOK, envelope{
		"lastScoresUpdate": last,
		"formatted":        appmeta.FormatRelative(last, time.Now()),
	})
}
