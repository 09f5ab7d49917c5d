package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/intermernet/bowlpickem/internal/database"
)

type makePickPayload struct {
	PickedTeam database.Side `json:"pickedTeam"`
}

// handleGetMyPicks returns the caller's picks with their score and progress.
func (s *Server) handleGetMyPicks(w http.ResponseWriter, r *http.Request) {
	userID, err := s.getUserIDFromContext(r)
	if err != nil {
		s.errorJSON(w, err, http.StatusInternalServerError)
		return
	}

	summary, err := s.picks.Summary(r.Context(), userID)
	if err != nil {
		s.serverError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, envelope{
		"picks":      summary.Picks,
		"score":      summary.Score,
		"picksCount": summary.PicksCount,
		"totalGames": summary.TotalGames,
		"lock": LockResponse{
			Locked:      summary.Locked,
			LockTime:    s.picks.Lock().Cutoff,
			MsUntilLock: summary.TimeUntilLock.Milliseconds(),
		},
	})
}

// handleMakePick creates or changes the caller's pick for one game.
func (s *Server) handleMakePick(w http.ResponseWriter, r *http.Request) {
	userID, err := s.getUserIDFromContext(r)
	if err != nil {
		s.errorJSON(w, err, http.StatusInternalServerError)
		return
	}
	gameID := chi.URLParam(r, "gameID")

	var payload makePickPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.errorJSON(w, errors.New("bad request: could not decode JSON"), http.StatusBadRequest)
		return
	}

	pick, created, err := s.picks.MakePick(r.Context(), userID, gameID, payload.PickedTeam)
	if err != nil {
		s.domainError(w, r, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	s.writeJSON(w, status, envelope{"pick": pick})
}
