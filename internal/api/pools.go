package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/intermernet/bowlpickem/internal/auth"
	"github.com/intermernet/bowlpickem/internal/database"
	"github.com/intermernet/bowlpickem/internal/pools"
	"github.com/intermernet/bowlpickem/internal/realtime"
)

// --- Structs for JSON Payloads ---

type createPoolPayload struct {
	Name string `json:"name"`
}

type joinPoolPayload struct {
	Code string `json:"code"`
}

type invitePayload struct {
	Email string `json:"email"`
}

// --- HTTP Handlers ---

// handleGetMyPools lists the caller's pools, newest first, with member counts.
func (s *Server) handleGetMyPools(w http.ResponseWriter, r *http.Request) {
	userID, err := s.getUserIDFromContext(r)
	if err != nil {
		s.errorJSON(w, err, http.StatusInternalServerError)
		return
	}

	list, err := s.pools.ListForUser(r.Context(), userID)
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, envelope{"pools": s.toPoolResponseList(list)})
}

// handleCreatePool creates a pool with the caller as owner and first member.
func (s *Server) handleCreatePool(w http.ResponseWriter, r *http.Request) {
	userID, err := s.getUserIDFromContext(r)
	if err != nil {
		s.errorJSON(w, err, http.StatusInternalServerError)
		return
	}

	var payload createPoolPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.errorJSON(w, errors.New("bad request: could not decode JSON"), http.StatusBadRequest)
		return
	}

	pool, err := s.pools.Create(r.Context(), payload.Name, userID)
	if err != nil {
		s.domainError(w, r, err)
		return
	}

	one := 1
	s.writeJSON(w, http.StatusCreated, envelope{"pool": s.toPoolResponse(pool, &one)})
}

// handleJoinPool joins the pool carrying the submitted invite code. Joining a
// pool twice succeeds and reports alreadyMember.
func (s *Server) handleJoinPool(w http.ResponseWriter, r *http.Request) {
	userID, err := s.getUserIDFromContext(r)
	if err != nil {
		s.errorJSON(w, err, http.StatusInternalServerError)
		return
	}

	var payload joinPoolPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.errorJSON(w, errors.New("bad request: could not decode JSON"), http.StatusBadRequest)
		return
	}

	result, err := s.pools.JoinByCode(r.Context(), payload.Code, userID)
	if err != nil {
		s.domainError(w, r, err)
		return
	}

	if !result.AlreadyMember {
		s.notifyPoolMembers(r, &result.Pool, userID)
	}

	s.writeJSON(w, http.StatusOK, envelope{
		"pool":          s.toPoolResponse(&result.Pool, nil),
		"alreadyMember": result.AlreadyMember,
	})
}

// notifyPoolMembers tells the other members of pool, over SSE, that joinerID
// joined. Failures only cost the live update, so they are logged.
func (s *Server) notifyPoolMembers(r *http.Request, pool *database.Pool, joinerID string) {
	members, err := s.pools.Members(r.Context(), pool.ID)
	if err != nil {
		s.requestLogger(r).WithError(err).Warn("Could not load members for join notification")
		return
	}
	recipients := make([]string, 0, len(members))
	for _, m := range members {
		if m.UserID != joinerID {
			recipients = append(recipients, m.UserID)
		}
	}
	s.broker.NotifyUsers(recipients, realtime.Message{
		Type: realtime.MessagePoolMemberJoined,
		Payload: map[string]string{
			"poolId":   pool.ID,
			"poolName": pool.Name,
			"userId":   joinerID,
		},
	})
}

// handlePreviewPool lets the join view show which pool an invite code
// belongs to before the visitor signs in.
func (s *Server) handlePreviewPool(w http.ResponseWriter, r *http.Request) {
	pool, err := s.pools.FindByCode(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		s.domainError(w, r, err)
		return
	}
	withMembers, err := s.pools.GetWithMembers(r.Context(), pool.ID)
	if err != nil {
		s.domainError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, envelope{"pool": envelope{
		"name":        withMembers.Name,
		"inviteCode":  withMembers.InviteCode,
		"memberCount": withMembers.MemberCount,
	}})
}

// memberPool resolves {poolID} and checks the caller belongs to it.
func (s *Server) memberPool(w http.ResponseWriter, r *http.Request) (*database.Pool, string, bool) {
	userID, err := s.getUserIDFromContext(r)
	if err != nil {
		s.errorJSON(w, err, http.StatusInternalServerError)
		return nil, "", false
	}
	pool, err := s.pools.RequireMember(r.Context(), chi.URLParam(r, "poolID"), userID)
	if err != nil {
		s.domainError(w, r, err)
		return nil, "", false
	}
	return pool, userID, true
}

func (s *Server) handleGetPool(w http.ResponseWriter, r *http.Request) {
	pool, _, ok := s.memberPool(w, r)
	if !ok {
		return
	}
	withMembers, err := s.pools.GetWithMembers(r.Context(), pool.ID)
	if err != nil {
		s.domainError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, envelope{"pool": s.toPoolResponse(&withMembers.Pool, &withMembers.MemberCount)})
}

// handleLeavePool removes the caller from a pool. Leaving a pool one is not
// in succeeds.
func (s *Server) handleLeavePool(w http.ResponseWriter, r *http.Request) {
	userID, err := s.getUserIDFromContext(r)
	if err != nil {
		s.errorJSON(w, err, http.StatusInternalServerError)
		return
	}
	if err := s.pools.Leave(r.Context(), chi.URLParam(r, "poolID"), userID); err != nil {
		s.serverError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetInviteLink(w http.ResponseWriter, r *http.Request) {
	pool, _, ok := s.memberPool(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, envelope{
		"inviteCode": pool.InviteCode,
		"inviteLink": pools.InviteLink(s.config.FrontendURL, pool),
	})
}

func (s *Server) handleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	pool, _, ok := s.memberPool(w, r)
	if !ok {
		return
	}
	entries, err := s.leaderboard.Build(r.Context(), pool.ID)
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, envelope{"leaderboard": entries})
}

// handleGetMemberPicks is the read-only view of another member's picks. Both
// the caller and the viewed user must belong to the pool.
func (s *Server) handleGetMemberPicks(w http.ResponseWriter, r *http.Request) {
	pool, _, ok := s.memberPool(w, r)
	if !ok {
		return
	}
	memberID := chi.URLParam(r, "userID")
	isMember, err := s.pools.IsMember(r.Context(), pool.ID, memberID)
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	if !isMember {
		s.errorJSON(w, errors.New("user is not a member of this pool"), http.StatusNotFound)
		return
	}

	view, err := s.picks.UserPicks(r.Context(), memberID)
	if err != nil {
		s.domainError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, envelope{
		"user":       toProfileResponse(&view.Profile),
		"picks":      view.Picks,
		"dates":      toDateGroupResponseList(view.Dates),
		"score":      view.Score,
		"picksCount": view.PicksCount,
		"totalGames": len(view.Games),
	})
}

// handleInviteToPool emails the pool's invite link. If the invitee already
// has an open session they also get a live notification.
func (s *Server) handleInviteToPool(w http.ResponseWriter, r *http.Request) {
	pool, inviterID, ok := s.memberPool(w, r)
	if !ok {
		return
	}

	var payload invitePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.errorJSON(w, errors.New("bad request: could not decode JSON"), http.StatusBadRequest)
		return
	}
	invitee, err := auth.NormalizeEmail(payload.Email)
	if err != nil {
		s.errorJSON(w, err, http.StatusBadRequest)
		return
	}

	inviter, err := s.db.GetProfile(r.Context(), inviterID)
	if err != nil {
		s.domainError(w, r, err)
		return
	}

	link := pools.InviteLink(s.config.FrontendURL, pool)
	if err := s.email.SendPoolInvite(invitee, pools.DisplayName(inviter), pool.Name, link); err != nil {
		s.serverError(w, r, fmt.Errorf("send pool invite: %w", err))
		return
	}

	if existing, err := s.db.GetProfileByEmail(r.Context(), invitee); err == nil {
		s.broker.NotifyUser(existing.ID, realtime.Message{
			Type: realtime.MessagePoolInvite,
			Payload: map[string]string{
				"poolName":   pool.Name,
				"inviteCode": pool.InviteCode,
				"inviteLink": link,
			},
		})
	}

	s.writeJSON(w, http.StatusAccepted, envelope{"message": "invitation sent"})
}
