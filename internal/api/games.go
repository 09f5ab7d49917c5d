package api

import (
	"net/http"

	"github.com/intermernet/bowlpickem/internal/picks"
)

// handleGetGames returns the schedule and the lock state. The schedule is a
// background read for the home view, so a storage failure still answers 200
// with an empty schedule and an error message the UI can show.
func (s *Server) handleGetGames(w http.ResponseWriter, r *http.Request) {
	lock := toLockResponse(s.picks.Lock())

	games, err := s.picks.ListGames(r.Context())
	if err != nil {
		s.requestLogger(r).WithError(err).Error("Failed to load schedule")
		s.writeJSON(w, http.StatusOK, envelope{
			"games": []GameResponse{},
			"dates": []DateGroupResponse{},
			"lock":  lock,
			"error": "could not load games",
		})
		return
	}

	s.writeJSON(w, http.StatusOK, envelope{
		"games": toGameResponseList(games),
		"dates": toDateGroupResponseList(picks.GroupByDate(games)),
		"lock":  lock,
	})
}
