package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/intermernet/bowlpickem/internal/auth"
	"github.com/intermernet/bowlpickem/internal/config"
	"github.com/intermernet/bowlpickem/internal/database"
	"github.com/intermernet/bowlpickem/internal/events"
	"github.com/intermernet/bowlpickem/internal/metrics"
	"github.com/intermernet/bowlpickem/internal/realtime"
	googleOauth2 "google.golang.org/api/oauth2/v2"
)

const testSecret = "test-jwt-secret"

type sentMail struct {
	To   string
	Link string
}

// captureSender records outgoing mail instead of sending it.
type captureSender struct {
	mu      sync.Mutex
	links   []sentMail
	invites []sentMail
}

func (c *captureSender) SendMagicLink(recipient, link string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.links = append(c.links, sentMail{To: recipient, Link: link})
	return nil
}

func (c *captureSender) SendPoolInvite(recipient, inviterName, poolName, link string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invites = append(c.invites, sentMail{To: recipient, Link: link})
	return nil
}

type testApp struct {
	server *Server
	router *chi.Mux
	db     *database.Service
	mail   *captureSender
}

func newTestApp(t *testing.T, lockTime time.Time) *testApp {
	t.Helper()

	db, err := database.NewService(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(db.Close)
	require.NoError(t, db.InitMainDB(context.Background()))

	frontend, err := url.Parse("http://localhost:5173")
	require.NoError(t, err)
	cfg := &config.Config{
		FrontendURL:        frontend.String(),
		ParsedFrontendURL:  frontend,
		RequestTimeout:     5 * time.Second,
		LockTime:           lockTime,
		JwtSecret:          testSecret,
		SessionTTL:         time.Hour,
		SignInTTL:          time.Hour,
		RateLimitPerMinute: 1000,
	}

	mail := &captureSender{}
	server := NewServer(cfg, db, realtime.NewBroker(), mail, events.Noop{}, metrics.New())
	router := chi.NewRouter()
	server.RegisterRoutes(router)
	return &testApp{server: server, router: router, db: db, mail: mail}
}

func openApp(t *testing.T) *testApp {
	return newTestApp(t, time.Now().Add(time.Hour))
}

// signIn creates a profile directly and returns its id and a session token.
func (a *testApp) signIn(t *testing.T, email string) (string, string) {
	t.Helper()
	profile := &database.Profile{ID: uuid.NewString(), Email: email, CreatedAt: time.Now()}
	require.NoError(t, a.db.CreateProfile(context.Background(), profile))
	token, err := auth.GenerateJWT(profile.ID, profile.Email, testSecret, time.Hour)
	require.NoError(t, err)
	return profile.ID, token
}

func (a *testApp) addGame(t *testing.T, name string) *database.Game {
	t.Helper()
	g := &database.Game{
		ID:        uuid.NewString(),
		Name:      name,
		Team1:     "Navy",
		Team2:     "Army",
		GameTime:  time.Date(2025, 12, 27, 20, 0, 0, 0, time.UTC),
		CreatedAt: time.Now(),
	}
	require.NoError(t, a.db.UpsertGame(context.Background(), g))
	return g
}

func (a *testApp) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func (a *testApp) createPool(t *testing.T, token, name string) PoolResponse {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/api/v1/pools", token, map[string]string{"name": name})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var body struct {
		Pool PoolResponse `json:"pool"`
	}
	decode(t, rec, &body)
	return body.Pool
}

func TestMagicLinkSignIn(t *testing.T) {
	app := openApp(t)

	rec := app.do(t, http.MethodPost, "/api/v1/auth/magic-link", "", map[string]string{"email": "  Ann@Example.com "})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	require.Len(t, app.mail.links, 1)
	assert.Equal(t, "ann@example.com", app.mail.links[0].To)

	link, err := url.Parse(app.mail.links[0].Link)
	require.NoError(t, err)
	assert.Equal(t, "/auth/callback", link.Path)
	signInToken := link.Query().Get("token")
	require.NotEmpty(t, signInToken)

	rec = app.do(t, http.MethodPost, "/api/v1/auth/verify", "", map[string]string{"token": signInToken})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var verified struct {
		Token string          `json:"token"`
		User  ProfileResponse `json:"user"`
	}
	decode(t, rec, &verified)
	assert.Equal(t, "ann@example.com", verified.User.Email)
	assert.Equal(t, "ann", verified.User.Name)

	rec = app.do(t, http.MethodGet, "/api/v1/users/me", verified.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var me struct {
		User ProfileResponse `json:"user"`
	}
	decode(t, rec, &me)
	assert.Equal(t, verified.User.ID, me.User.ID)

	// Sign-in links work once.
	rec = app.do(t, http.MethodPost, "/api/v1/auth/verify", "", map[string]string{"token": signInToken})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMagicLinkRejectsBadEmail(t *testing.T) {
	app := openApp(t)
	rec := app.do(t, http.MethodPost, "/api/v1/auth/magic-link", "", map[string]string{"email": "not-an-email"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, app.mail.links)
}

func TestAuthenticatedRoutesRequireToken(t *testing.T) {
	app := openApp(t)

	rec := app.do(t, http.MethodGet, "/api/v1/picks", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = app.do(t, http.MethodGet, "/api/v1/picks", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMakePickCreatesThenUpdates(t *testing.T) {
	app := openApp(t)
	_, token := app.signIn(t, "ann@example.com")
	game := app.addGame(t, "Rose Bowl")

	rec := app.do(t, http.MethodPut, "/api/v1/picks/"+game.ID, token, map[string]string{"pickedTeam": "team1"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = app.do(t, http.MethodPut, "/api/v1/picks/"+game.ID, token, map[string]string{"pickedTeam": "team2"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = app.do(t, http.MethodGet, "/api/v1/picks", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Picks      []database.Pick `json:"picks"`
		PicksCount int             `json:"picksCount"`
		TotalGames int             `json:"totalGames"`
		Lock       LockResponse    `json:"lock"`
	}
	decode(t, rec, &body)
	require.Len(t, body.Picks, 1)
	assert.Equal(t, database.SideTeam2, body.Picks[0].PickedTeam)
	assert.Equal(t, 1, body.PicksCount)
	assert.Equal(t, 1, body.TotalGames)
	assert.False(t, body.Lock.Locked)
}

func TestMakePickRejections(t *testing.T) {
	app := openApp(t)
	_, token := app.signIn(t, "ann@example.com")
	game := app.addGame(t, "Rose Bowl")

	tests := []struct {
		name   string
		gameID string
		side   string
		want   int
	}{
		{"invalid side", game.ID, "team3", http.StatusBadRequest},
		{"team name instead of side", game.ID, "Navy", http.StatusBadRequest},
		{"unknown game", uuid.NewString(), "team1", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := app.do(t, http.MethodPut, "/api/v1/picks/"+tt.gameID, token, map[string]string{"pickedTeam": tt.side})
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}

func TestMakePickAfterLock(t *testing.T) {
	app := newTestApp(t, time.Now().Add(-time.Minute))
	_, token := app.signIn(t, "ann@example.com")
	game := app.addGame(t, "Rose Bowl")

	rec := app.do(t, http.MethodPut, "/api/v1/picks/"+game.ID, token, map[string]string{"pickedTeam": "team1"})
	assert.Equal(t, http.StatusLocked, rec.Code)

	rec = app.do(t, http.MethodGet, "/api/v1/lock", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var lock LockResponse
	decode(t, rec, &lock)
	assert.True(t, lock.Locked)
	assert.Zero(t, lock.MsUntilLock)
}

func TestGetGamesGroupsByDate(t *testing.T) {
	app := openApp(t)
	_, token := app.signIn(t, "ann@example.com")
	app.addGame(t, "Rose Bowl")
	app.addGame(t, "Sugar Bowl")

	rec := app.do(t, http.MethodGet, "/api/v1/games", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Games []GameResponse      `json:"games"`
		Dates []DateGroupResponse `json:"dates"`
		Error *string             `json:"error"`
	}
	decode(t, rec, &body)
	assert.Len(t, body.Games, 2)
	require.Len(t, body.Dates, 1)
	assert.Len(t, body.Dates[0].Games, 2)
	assert.Nil(t, body.Error)
	require.NotNil(t, body.Games[0].Team1LogoURL)
}

func TestGetGamesDegradesWhenStorageFails(t *testing.T) {
	app := openApp(t)
	_, token := app.signIn(t, "ann@example.com")
	app.db.Close()

	rec := app.do(t, http.MethodGet, "/api/v1/games", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Games []GameResponse `json:"games"`
		Error string         `json:"error"`
		Lock  LockResponse   `json:"lock"`
	}
	decode(t, rec, &body)
	assert.Empty(t, body.Games)
	assert.NotEmpty(t, body.Error)
	assert.False(t, body.Lock.Locked)
}

func TestPoolLifecycle(t *testing.T) {
	app := openApp(t)
	annID, annToken := app.signIn(t, "ann@example.com")
	bobID, bobToken := app.signIn(t, "bob@example.com")
	_, carolToken := app.signIn(t, "carol@example.com")
	game := app.addGame(t, "Rose Bowl")

	pool := app.createPool(t, annToken, "Family")
	require.NotNil(t, pool.MemberCount)
	assert.Equal(t, 1, *pool.MemberCount)
	assert.Equal(t, annID, pool.CreatedBy)
	assert.Contains(t, pool.InviteLink, pool.InviteCode)

	// Anyone with the code can preview the pool.
	rec := app.do(t, http.MethodGet, "/api/v1/join/"+strings.ToLower(pool.InviteCode), "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	joinBody := map[string]string{"code": pool.InviteCode}
	rec = app.do(t, http.MethodPost, "/api/v1/pools/join", bobToken, joinBody)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var joined struct {
		AlreadyMember bool `json:"alreadyMember"`
	}
	decode(t, rec, &joined)
	assert.False(t, joined.AlreadyMember)

	rec = app.do(t, http.MethodPost, "/api/v1/pools/join", bobToken, joinBody)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &joined)
	assert.True(t, joined.AlreadyMember)

	rec = app.do(t, http.MethodPut, "/api/v1/picks/"+game.ID, annToken, map[string]string{"pickedTeam": "team1"})
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = app.do(t, http.MethodPut, "/api/v1/picks/"+game.ID, bobToken, map[string]string{"pickedTeam": "team2"})
	require.Equal(t, http.StatusCreated, rec.Code)
	require.NoError(t, app.db.FinalizeGame(context.Background(), game.ID, database.SideTeam1, nil, nil, time.Now()))

	leaderboardPath := "/api/v1/pools/" + pool.ID + "/leaderboard"
	rec = app.do(t, http.MethodGet, leaderboardPath, bobToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var board struct {
		Leaderboard []struct {
			UserID     string `json:"userId"`
			Score      int    `json:"score"`
			PicksCount int    `json:"picksCount"`
		} `json:"leaderboard"`
	}
	decode(t, rec, &board)
	require.Len(t, board.Leaderboard, 2)
	assert.Equal(t, annID, board.Leaderboard[0].UserID)
	assert.Equal(t, 1, board.Leaderboard[0].Score)
	assert.Equal(t, bobID, board.Leaderboard[1].UserID)
	assert.Equal(t, 0, board.Leaderboard[1].Score)

	// Carol is not a member yet.
	rec = app.do(t, http.MethodGet, leaderboardPath, carolToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = app.do(t, http.MethodGet, "/api/v1/pools/"+pool.ID+"/members/"+bobID+"/picks", annToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var memberPicks struct {
		Picks []database.Pick `json:"picks"`
		Score int             `json:"score"`
	}
	decode(t, rec, &memberPicks)
	require.Len(t, memberPicks.Picks, 1)
	assert.Equal(t, 0, memberPicks.Score)

	rec = app.do(t, http.MethodGet, "/api/v1/pools", bobToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var mine struct {
		Pools []PoolResponse `json:"pools"`
	}
	decode(t, rec, &mine)
	require.Len(t, mine.Pools, 1)
	require.NotNil(t, mine.Pools[0].MemberCount)
	assert.Equal(t, 2, *mine.Pools[0].MemberCount)

	rec = app.do(t, http.MethodDelete, "/api/v1/pools/"+pool.ID+"/membership", bobToken, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = app.do(t, http.MethodGet, leaderboardPath, bobToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestMemberPicksRequiresViewedUserInPool(t *testing.T) {
	app := openApp(t)
	_, annToken := app.signIn(t, "ann@example.com")
	carolID, _ := app.signIn(t, "carol@example.com")
	pool := app.createPool(t, annToken, "Office")

	rec := app.do(t, http.MethodGet, "/api/v1/pools/"+pool.ID+"/members/"+carolID+"/picks", annToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestJoinUnknownCode(t *testing.T) {
	app := openApp(t)
	_, token := app.signIn(t, "ann@example.com")

	rec := app.do(t, http.MethodPost, "/api/v1/pools/join", token, map[string]string{"code": "ZZZZZZ"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreatePoolRequiresName(t *testing.T) {
	app := openApp(t)
	_, token := app.signIn(t, "ann@example.com")

	rec := app.do(t, http.MethodPost, "/api/v1/pools", token, map[string]string{"name": "   "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestInviteToPool(t *testing.T) {
	app := openApp(t)
	_, annToken := app.signIn(t, "ann@example.com")
	pool := app.createPool(t, annToken, "Family")

	rec := app.do(t, http.MethodPost, "/api/v1/pools/"+pool.ID+"/invite", annToken, map[string]string{"email": "Dan@Example.com"})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	require.Len(t, app.mail.invites, 1)
	assert.Equal(t, "dan@example.com", app.mail.invites[0].To)
	assert.Contains(t, app.mail.invites[0].Link, pool.InviteCode)
}

func TestScoresFreshness(t *testing.T) {
	app := openApp(t)

	rec := app.do(t, http.MethodGet, "/api/v1/scores/freshness", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var before struct {
		LastScoresUpdate *time.Time `json:"lastScoresUpdate"`
	}
	decode(t, rec, &before)
	assert.Nil(t, before.LastScoresUpdate)

	game := app.addGame(t, "Rose Bowl")
	require.NoError(t, app.db.FinalizeGame(context.Background(), game.ID, database.SideTeam2, nil, nil, time.Now()))

	rec = app.do(t, http.MethodGet, "/api/v1/scores/freshness", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var after struct {
		LastScoresUpdate *time.Time `json:"lastScoresUpdate"`
		Formatted        string     `json:"formatted"`
	}
	decode(t, rec, &after)
	require.NotNil(t, after.LastScoresUpdate)
	assert.NotEmpty(t, after.Formatted)
}

func TestTeamLogo(t *testing.T) {
	app := openApp(t)

	rec := app.do(t, http.MethodGet, "/api/v1/teams/logo?name=Navy", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = app.do(t, http.MethodGet, "/api/v1/teams/logo?name=Nowhere+State", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = app.do(t, http.MethodGet, "/api/v1/teams/logo", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthzAndMetrics(t *testing.T) {
	app := openApp(t)

	rec := app.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = app.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "bowlpickem_http_requests_total")
}

func TestHandleResultRecordedBroadcasts(t *testing.T) {
	app := openApp(t)
	ch := app.server.broker.AddClient("user-1")
	defer app.server.broker.RemoveClient("user-1", ch)

	app.server.HandleResultRecorded(events.ResultRecorded{GameID: "g1", Winner: "team1", At: time.Now()})

	select {
	case data := <-ch:
		var msg struct {
			Type string `json:"type"`
		}
		require.NoError(t, json.Unmarshal(data, &msg))
		assert.Equal(t, realtime.MessageScoresUpdated, msg.Type)
	case <-time.After(time.Second):
		t.Fatal("no message delivered")
	}
}

func TestProfileIsReadOnly(t *testing.T) {
	app := openApp(t)
	_, token := app.signIn(t, "bob@example.com")

	rec := app.do(t, http.MethodPatch, "/api/v1/users/me", token, map[string]string{"displayName": "Bobby"})
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = app.do(t, http.MethodGet, "/api/v1/users/me", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var me struct {
		User ProfileResponse `json:"user"`
	}
	decode(t, rec, &me)
	assert.Nil(t, me.User.DisplayName)
	assert.Equal(t, "bob", me.User.Name)
}

func TestMyPicksReportsLockAfterCutoff(t *testing.T) {
	cutoff := time.Now().Add(-time.Minute)
	app := newTestApp(t, cutoff)
	_, token := app.signIn(t, "ann@example.com")

	rec := app.do(t, http.MethodGet, "/api/v1/picks", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Lock LockResponse `json:"lock"`
	}
	decode(t, rec, &body)
	assert.True(t, body.Lock.Locked)
	assert.Zero(t, body.Lock.MsUntilLock)
	assert.True(t, cutoff.Equal(body.Lock.LockTime))
}

func TestUnknownPathsShareOneMetricSeries(t *testing.T) {
	app := openApp(t)

	for i := 0; i < 50; i++ {
		rec := app.do(t, http.MethodGet, fmt.Sprintf("/nope/%d", i), "", nil)
		require.Equal(t, http.StatusNotFound, rec.Code)
	}

	families, err := app.server.metrics.Registry().Gather()
	require.NoError(t, err)
	var series int
	for _, f := range families {
		if f.GetName() != "bowlpickem_http_requests_total" {
			continue
		}
		series = len(f.GetMetric())
		for _, m := range f.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "route" {
					assert.Equal(t, unmatchedRoute, l.GetValue())
				}
			}
			assert.Equal(t, 50.0, m.GetCounter().GetValue())
		}
	}
	assert.Equal(t, 1, series)
}

func TestGoogleEmailRequiresVerifiedAddress(t *testing.T) {
	verified, unverified := true, false
	tests := []struct {
		name    string
		info    googleOauth2.Userinfo
		want    string
		wantErr error
	}{
		{"verified", googleOauth2.Userinfo{Email: "Ann@Example.com", VerifiedEmail: &verified}, "ann@example.com", nil},
		{"unverified", googleOauth2.Userinfo{Email: "ann@example.com", VerifiedEmail: &unverified}, "", errUnverifiedEmail},
		{"flag missing", googleOauth2.Userinfo{Email: "ann@example.com"}, "", errUnverifiedEmail},
		{"malformed", googleOauth2.Userinfo{Email: "nope", VerifiedEmail: &verified}, "", auth.ErrInvalidEmail},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := googleEmail(&tt.info)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
