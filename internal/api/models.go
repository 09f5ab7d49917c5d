package api

import (
	"database/sql"
	"time"

	"github.com/intermernet/bowlpickem/internal/database"
	"github.com/intermernet/bowlpickem/internal/picks"
	"github.com/intermernet/bowlpickem/internal/pools"
	"github.com/intermernet/bowlpickem/internal/teamlogo"
)

// ProfileResponse is the DTO for a profile. Name is what the UI should show:
// the display name, or the email's local part when none is set.
type ProfileResponse struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName *string   `json:"displayName"`
	Name        string    `json:"name"`
	CreatedAt   time.Time `json:"createdAt"`
}

func toProfileResponse(p *database.Profile) ProfileResponse {
	return ProfileResponse{
		ID:          p.ID,
		Email:       p.Email,
		DisplayName: nullString(p.DisplayName),
		Name:        pools.DisplayName(p),
		CreatedAt:   p.CreatedAt,
	}
}

// GameResponse is the DTO for a game. Nullable columns become JSON null, and
// team logos are resolved when known.
type GameResponse struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Team1        string    `json:"team1"`
	Team2        string    `json:"team2"`
	Team1LogoURL *string   `json:"team1LogoUrl"`
	Team2LogoURL *string   `json:"team2LogoUrl"`
	GameTime     time.Time `json:"gameTime"`
	Location     *string   `json:"location"`
	TVChannel    *string   `json:"tvChannel"`
	Winner       *string   `json:"winner"`
	Team1Score   *int64    `json:"team1Score"`
	Team2Score   *int64    `json:"team2Score"`
	IsFinal      bool      `json:"isFinal"`
}

func toGameResponse(g *database.Game) GameResponse {
	return GameResponse{
		ID:           g.ID,
		Name:         g.Name,
		Team1:        g.Team1,
		Team2:        g.Team2,
		Team1LogoURL: logoURL(g.Team1),
		Team2LogoURL: logoURL(g.Team2),
		GameTime:     g.GameTime,
		Location:     nullString(g.Location),
		TVChannel:    nullString(g.TVChannel),
		Winner:       nullString(g.Winner),
		Team1Score:   nullInt(g.Team1Score),
		Team2Score:   nullInt(g.Team2Score),
		IsFinal:      g.IsFinal,
	}
}

func toGameResponseList(games []database.Game) []GameResponse {
	responseList := make([]GameResponse, len(games))
	for i := range games {
		responseList[i] = toGameResponse(&games[i])
	}
	return responseList
}

// DateGroupResponse is one day of the schedule.
type DateGroupResponse struct {
	Date  string         `json:"date"`
	Games []GameResponse `json:"games"`
}

func toDateGroupResponseList(groups []picks.DateGroup) []DateGroupResponse {
	responseList := make([]DateGroupResponse, len(groups))
	for i, g := range groups {
		responseList[i] = DateGroupResponse{Date: g.Label, Games: toGameResponseList(g.Games)}
	}
	return responseList
}

// LockResponse describes the pick deadline.
type LockResponse struct {
	Locked      bool      `json:"locked"`
	LockTime    time.Time `json:"lockTime"`
	MsUntilLock int64     `json:"msUntilLock"`
}

func toLockResponse(policy picks.LockPolicy) LockResponse {
	remaining, open := policy.TimeUntilLock()
	return LockResponse{
		Locked:      !open,
		LockTime:    policy.Cutoff,
		MsUntilLock: remaining.Milliseconds(),
	}
}

// PoolResponse is the DTO for a pool. MemberCount is omitted where it was
// not loaded.
type PoolResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	InviteCode  string    `json:"inviteCode"`
	InviteLink  string    `json:"inviteLink"`
	CreatedBy   string    `json:"createdBy"`
	CreatedAt   time.Time `json:"createdAt"`
	MemberCount *int      `json:"memberCount,omitempty"`
}

func (s *Server) toPoolResponse(p *database.Pool, memberCount *int) PoolResponse {
	return PoolResponse{
		ID:          p.ID,
		Name:        p.Name,
		InviteCode:  p.InviteCode,
		InviteLink:  pools.InviteLink(s.config.FrontendURL, p),
		CreatedBy:   p.CreatedBy,
		CreatedAt:   p.CreatedAt,
		MemberCount: memberCount,
	}
}

func (s *Server) toPoolResponseList(list []pools.PoolWithMembers) []PoolResponse {
	responseList := make([]PoolResponse, len(list))
	for i := range list {
		count := list[i].MemberCount
		responseList[i] = s.toPoolResponse(&list[i].Pool, &count)
	}
	return responseList
}

func nullString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func nullInt(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}

func logoURL(team string) *string {
	url, ok := teamlogo.URL(team)
	if !ok {
		return nil
	}
	return &url
}
