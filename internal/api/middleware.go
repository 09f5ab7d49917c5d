package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/intermernet/bowlpickem/internal/auth"
	log "github.com/sirupsen/logrus"
)

// contextKey is a custom type used for keys in context.Context. Using a custom
// type prevents collisions between context keys defined in different packages.
type contextKey string

// userContextKey is the specific key used to store the authenticated user's ID
// in the request context after successful authentication.
const userContextKey = contextKey("userID")

// authMiddleware requires a valid session token, read from the Authorization
// header or, for EventSource connections that cannot set headers, from the
// 'token' query parameter. The profile id is stored in the request context.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString := ""

		authHeader := r.Header.Get("Authorization")
		headerParts := strings.Split(authHeader, " ")
		if len(headerParts) == 2 && strings.ToLower(headerParts[0]) == "bearer" {
			tokenString = headerParts[1]
		}
		if tokenString == "" {
			tokenString = r.URL.Query().Get("token")
		}

		if tokenString == "" {
			s.errorJSON(w, errors.New("authorization token is required"), http.StatusUnauthorized)
			return
		}

		claims, err := auth.ValidateJWT(tokenString, s.config.JwtSecret)
		if err != nil {
			s.errorJSON(w, errors.New("invalid or expired token"), http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), userContextKey, claims.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// getUserIDFromContext returns the profile id stored by authMiddleware.
func (s *Server) getUserIDFromContext(r *http.Request) (string, error) {
	userID, ok := r.Context().Value(userContextKey).(string)
	if !ok || userID == "" {
		return "", errors.New("could not retrieve user ID from context")
	}
	return userID, nil
}

// requestLogger returns a logger tagged with the request id and, when known,
// the caller.
func (s *Server) requestLogger(r *http.Request) log.FieldLogger {
	fields := log.Fields{"request_id": middleware.GetReqID(r.Context())}
	if userID, ok := r.Context().Value(userContextKey).(string); ok {
		fields["user_id"] = userID
	}
	return s.logger.WithFields(fields)
}

// unmatchedRoute labels requests no route matched. Raw paths are never used
// as labels, so unknown URLs cannot add metric series.
const unmatchedRoute = "unmatched"

// logRequests logs one line per request and counts it by route pattern.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			route := unmatchedRoute
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			s.metrics.HTTPRequest(r.Method, route, status)

			entry := s.logger.WithFields(log.Fields{
				"request_id": middleware.GetReqID(r.Context()),
				"method":     r.Method,
				"path":       r.URL.Path,
				"remote":     r.RemoteAddr,
				"status":     status,
				"bytes":      ww.BytesWritten(),
				"duration":   time.Since(start).String(),
			})
			if status >= http.StatusInternalServerError {
				entry.Warn("Request served")
			} else {
				entry.Info("Request served")
			}
		}()

		next.ServeHTTP(ww, r)
	})
}
