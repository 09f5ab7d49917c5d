package api

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/intermernet/bowlpickem/internal/auth"
	"github.com/intermernet/bowlpickem/internal/database"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	googleOauth2 "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"
)

// --- Structs for JSON Payloads ---

type magicLinkPayload struct {
	Email string `json:"email"`
}

type verifyPayload struct {
	Token string `json:"token"`
}

// --- MAGIC LINK SIGN-IN ---

// handleRequestMagicLink emails a single-use sign-in link. The response is the
// same whether or not the address already has a profile.
func (s *Server) handleRequestMagicLink(w http.ResponseWriter, r *http.Request) {
	var payload magicLinkPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.errorJSON(w, errors.New("bad request: could not decode JSON"), http.StatusBadRequest)
		return
	}

	emailAddr, err := auth.NormalizeEmail(payload.Email)
	if err != nil {
		s.errorJSON(w, err, http.StatusBadRequest)
		return
	}

	token, err := s.magicLinks.Issue(r.Context(), emailAddr)
	if err != nil {
		s.serverError(w, r, err)
		return
	}

	link := strings.TrimRight(s.config.FrontendURL, "/") + "/auth/callback?token=" + url.QueryEscape(token)
	if err := s.email.SendMagicLink(emailAddr, link); err != nil {
		s.serverError(w, r, fmt.Errorf("send sign-in link: %w", err))
		return
	}
	s.metrics.SignInLinkSent()

	s.writeJSON(w, http.StatusAccepted, envelope{"message": "check your email for a sign-in link"})
}

// handleVerifyMagicLink redeems a sign-in token, provisions the profile on
// first sign-in and returns a session token.
func (s *Server) handleVerifyMagicLink(w http.ResponseWriter, r *http.Request) {
	var payload verifyPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.errorJSON(w, errors.New("bad request: could not decode JSON"), http.StatusBadRequest)
		return
	}

	emailAddr, err := s.magicLinks.Redeem(r.Context(), payload.Token)
	if err != nil {
		s.domainError(w, r, err)
		return
	}

	profile, err := s.provisionProfile(r, emailAddr, "")
	if err != nil {
		s.serverError(w, r, err)
		return
	}

	session, err := auth.GenerateJWT(profile.ID, profile.Email, s.config.JwtSecret, s.config.SessionTTL)
	if err != nil {
		s.serverError(w, r, fmt.Errorf("generate session: %w", err))
		return
	}

	s.writeJSON(w, http.StatusOK, envelope{
		"token": session,
		"user":  toProfileResponse(profile),
	})
}

// handleSignOut exists so clients have one place to end a session. Sessions
// are stateless; the client drops its token.
func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

// provisionProfile returns the profile for emailAddr, creating it on first
// sign-in.
func (s *Server) provisionProfile(r *http.Request, emailAddr, displayName string) (*database.Profile, error) {
	candidate := &database.Profile{
		ID:        uuid.NewString(),
		Email:     emailAddr,
		CreatedAt: time.Now().UTC(),
	}
	if displayName = strings.TrimSpace(displayName); displayName != "" {
		candidate.DisplayName.String, candidate.DisplayName.Valid = displayName, true
	}

	profile, created, err := s.db.EnsureProfile(r.Context(), candidate)
	if err != nil {
		return nil, fmt.Errorf("provision profile: %w", err)
	}
	if created {
		s.requestLogger(r).WithField("profile_id", profile.ID).Info("Profile created")
	}
	return profile, nil
}

// --- OAUTH LOGIC ---

// initOAuthConfig builds the Google OAuth client from configuration.
func (s *Server) initOAuthConfig() {
	s.googleOAuth = &oauth2.Config{
		ClientID:     s.config.GoogleOauthClientID,
		ClientSecret: s.config.GoogleOauthClientSecret,
		RedirectURL:  s.config.GoogleOauthRedirectURL,
		Scopes:       []string{"https://www.googleapis.com/auth/userinfo.email", "https://www.googleapis.com/auth/userinfo.profile"},
		Endpoint:     google.Endpoint,
	}
}

// generateStateOauthCookie creates a random state string and sets it as an HttpOnly cookie
// to prevent Cross-Site Request Forgery (CSRF) attacks during the OAuth flow.
func generateStateOauthCookie(w http.ResponseWriter) (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	state := hex.EncodeToString(b)
	http.SetCookie(w, &http.Cookie{
		Name:     "oauthstate",
		Value:    state,
		Expires:  time.Now().Add(10 * time.Minute),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return state, nil
}

var errUnverifiedEmail = errors.New("google account email is not verified")

// googleEmail returns the normalised address of a Google account. Profiles
// are keyed by email, so only addresses Google has verified are accepted.
func googleEmail(info *googleOauth2.Userinfo) (string, error) {
	if info.VerifiedEmail == nil || !*info.VerifiedEmail {
		return "", errUnverifiedEmail
	}
	return auth.NormalizeEmail(info.Email)
}

// handleGoogleLogin redirects the user to Google's consent page.
func (s *Server) handleGoogleLogin(w http.ResponseWriter, r *http.Request) {
	state, err := generateStateOauthCookie(w)
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	http.Redirect(w, r, s.googleOAuth.AuthCodeURL(state), http.StatusTemporaryRedirect)
}

// handleGoogleCallback is where Google redirects the user back after they grant consent.
func (s *Server) handleGoogleCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// 1. Validate the state cookie to ensure the request is legitimate.
	oauthState, err := r.Cookie("oauthstate")
	if err != nil || r.FormValue("state") != oauthState.Value {
		s.errorJSON(w, errors.New("invalid oauth state"), http.StatusUnauthorized)
		return
	}

	// 2. Exchange the authorization code from Google for an access token.
	token, err := s.googleOAuth.Exchange(ctx, r.FormValue("code"))
	if err != nil {
		s.errorJSON(w, fmt.Errorf("failed to exchange code for token: %w", err), http.StatusUnauthorized)
		return
	}

	// 3. Use the access token to get the user's profile info from Google's API.
	oauth2Service, err := googleOauth2.NewService(ctx, option.WithTokenSource(s.googleOAuth.TokenSource(ctx, token)))
	if err != nil {
		s.serverError(w, r, fmt.Errorf("create oauth service: %w", err))
		return
	}
	userInfo, err := oauth2Service.Userinfo.Get().Do()
	if err != nil {
		s.serverError(w, r, fmt.Errorf("get user info: %w", err))
		return
	}
	emailAddr, err := googleEmail(userInfo)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, errUnverifiedEmail) {
			status = http.StatusForbidden
		}
		s.errorJSON(w, err, status)
		return
	}

	// 4. Find or create the profile for this email.
	profile, err := s.provisionProfile(r, emailAddr, userInfo.Name)
	if err != nil {
		s.serverError(w, r, err)
		return
	}

	// 5. Issue our own session token.
	session, err := auth.GenerateJWT(profile.ID, profile.Email, s.config.JwtSecret, s.config.SessionTTL)
	if err != nil {
		s.serverError(w, r, fmt.Errorf("generate session: %w", err))
		return
	}

	// 6. Hand the session to the frontend's callback view.
	redirectURL := fmt.Sprintf("%s/auth/callback?session=%s", strings.TrimRight(s.config.FrontendURL, "/"), url.QueryEscape(session))
	http.Redirect(w, r, redirectURL, http.StatusTemporaryRedirect)
}
