package api

import (
	"net/http"
)

// handleGetMyProfile returns the signed-in user's profile.
func (s *Server) handleGetMyProfile(w http.ResponseWriter, r *http.Request) {
	userID, err := s.getUserIDFromContext(r)
	if err != nil {
		s.errorJSON(w, err, http.StatusInternalServerError)
		return
	}

	profile, err := s.db.GetProfile(r.Context(), userID)
	if err != nil {
		// A valid token for a profile that no longer exists.
		s.domainError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, envelope{"user": toProfileResponse(profile)})
}
