package api

import (
	"context"
	"net/http"
	"time"
)

type healthResponse struct {
	Status    string         `json:"status"`
	Timestamp string         `json:"timestamp"`
	Markets   []string       `json:"markets"`
	Services  healthServices `json:"services"`
}

type healthServices struct {
	Database string `json:"database"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	dbStatus := "unknown"
	if s.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		dbStatus = "connected"
		if err := s.db.Ping(ctx); err != nil {
			dbStatus = "disconnected"
		}
	}

	var markets []string
	for _, p := range s.markets.All() {
		markets = append(markets, p.Code)
	}

	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Markets:   markets,
		Services:  healthServices{Database: dbStatus},
	})
}
