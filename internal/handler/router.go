package handler

import (
	"net/http"

	"github.com/freeeve/dicewars/internal/auth"
)

// Router mounts the HTTP API. Global middleware is applied by the caller.
type Router struct {
	JWT     *auth.JWTManager
	Auth    *AuthHandler
	Users   *UserHandler
	Matches *MatchHandler
	Agents  *AgentHandler
	WS      *WSHandler
}

// Handler builds the route table.
func (rt Router) Handler() http.Handler {
	mux := http.NewServeMux()
	authMw := auth.Middleware(rt.JWT)

	// Health
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"ok"}`))
	})

	// Auth (public)
	mux.HandleFunc("POST /auth/dev", rt.Auth.DevLogin)
	mux.HandleFunc("POST /auth/refresh", rt.Auth.RefreshToken)

	// Protected API routes
	api := http.NewServeMux()
	api.HandleFunc("GET /users/me", rt.Users.GetMe)
	api.HandleFunc("GET /users/{id}", rt.Users.GetUser)
	api.HandleFunc("POST /matches", rt.Matches.CreateMatch)
	api.HandleFunc("GET /matches", rt.Matches.ListMatches)
	api.HandleFunc("GET /matches/{id}", rt.Matches.GetMatch)
	api.HandleFunc("POST /matches/{id}/attack", rt.Matches.Attack)
	api.HandleFunc("POST /matches/{id}/end-turn", rt.Matches.EndTurn)
	api.HandleFunc("GET /matches/{id}/battles", rt.Matches.Battles)
	api.HandleFunc("POST /agents", rt.Agents.CreateAgent)
	api.HandleFunc("GET /agents", rt.Agents.ListAgents)
	api.HandleFunc("GET /agents/{id}", rt.Agents.GetAgent)
	api.HandleFunc("PUT /agents/{id}", rt.Agents.UpdateAgent)
	api.HandleFunc("DELETE /agents/{id}", rt.Agents.DeleteAgent)
	api.HandleFunc("GET /probability", Probability)

	mux.Handle("/api/v1/", http.StripPrefix("/api/v1", authMw(api)))

	// WebSocket (auth via query param, not middleware)
	mux.HandleFunc("GET /api/v1/ws", rt.WS.ServeWS)
	return mux
}
