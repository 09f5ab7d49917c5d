package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/intermernet/bowlpickem/internal/events"
	"github.com/intermernet/bowlpickem/internal/realtime"
)

const sseKeepAlive = 25 * time.Second

// handleSSE streams notifications to the signed-in user until they disconnect.
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	// 1. Get the authenticated user's ID from the context (via the auth middleware).
	userID, err := s.getUserIDFromContext(r)
	if err != nil {
		s.errorJSON(w, err, http.StatusUnauthorized)
		return
	}

	// 2. Flusher is needed to send data to the client as it becomes available.
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.errorJSON(w, fmt.Errorf("streaming unsupported"), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", s.config.ParsedFrontendURL.Scheme+"://"+s.config.ParsedFrontendURL.Host)
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// 3. Register this connection, and drop it when the client goes away.
	clientChan := s.broker.AddClient(userID)
	defer s.broker.RemoveClient(userID, clientChan)

	keepAlive := time.NewTicker(sseKeepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case message, open := <-clientChan:
			if !open {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", message)
			flusher.Flush()
		case <-keepAlive.C:
			// Comment lines keep idle proxies from closing the stream.
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

// HandleResultRecorded pushes a scores_updated message to every open stream
// so leaderboards refresh without a reload.
func (s *Server) HandleResultRecorded(evt events.ResultRecorded) {
	s.logger.WithField("game_id", evt.GameID).Info("Result recorded, notifying clients")
	s.broker.Broadcast(realtime.Message{Type: realtime.MessageScoresUpdated, Payload: evt})
}
