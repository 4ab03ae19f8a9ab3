// internal/handlers/http.go
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/jason-s-yu/hiddencargo/internal/auth"
	"github.com/jason-s-yu/hiddencargo/internal/game"
	"github.com/jason-s-yu/hiddencargo/internal/middleware"
)

// Routes returns the full HTTP surface wrapped in the logging middleware.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.HealthHandler)
	mux.HandleFunc("POST /session", s.SessionHandler)
	mux.HandleFunc("GET /games/{lobby}", s.GameHandler)
	mux.HandleFunc("GET /ws", s.WSHandler())
	return middleware.LogMiddleware(s.Logger)(mux)
}

type healthResponse struct {
	Status      string `json:"status"`
	Games       int    `json:"games"`
	Connections int    `json:"connections"`
	Players     int    `json:"players"`
}

func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:      "ok",
		Games:       s.Coordinator.ActiveGames(),
		Connections: s.Hub.Len(),
		Players:     s.Registry.Len(),
	})
}

type sessionRequest struct {
	Nickname string `json:"nickname"`
}

type sessionResponse struct {
	Token    string `json:"token"`
	Nickname string `json:"nickname"`
}

// SessionHandler issues a token for a nickname.
//
// Request payload:
//
//	{
//	  "nickname": "ana"
//	}
//
// The token is returned in the body and also set as the auth_token cookie.
func (s *Server) SessionHandler(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request payload", http.StatusBadRequest)
		return
	}
	nickname := strings.TrimSpace(req.Nickname)
	if nickname == "" {
		http.Error(w, "nickname is required", http.StatusBadRequest)
		return
	}

	token, err := auth.CreateJWT(nickname)
	if err != nil {
		s.Logger.Errorf("failed to create token: %v", err)
		http.Error(w, "failed to create token", http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     authCookie,
		Value:    token,
		HttpOnly: true,
		Path:     "/",
		MaxAge:   int(auth.TokenTTL().Seconds()),
	})
	writeJSON(w, http.StatusOK, sessionResponse{Token: token, Nickname: nickname})
}

// GameHandler returns the snapshot of the game running in a lobby.
func (s *Server) GameHandler(w http.ResponseWriter, r *http.Request) {
	snap, err := s.Coordinator.Snapshot(r.PathValue("lobby"))
	if errors.Is(err, game.ErrGameNotFound) {
		writeJSON(w, http.StatusNotFound, ackPayload{Error: game.ReasonGameNotFound, Message: err.Error()})
		return
	}
	if err != nil {
		http.Error(w, "failed to read game", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}
