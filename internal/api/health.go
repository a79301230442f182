package api

import (
	"net/http"
	"time"
)

type healthResponse struct {
	Status    string         `json:"status"`
	Timestamp string         `json:"timestamp"`
	Services  healthServices `json:"services"`
}

type healthServices struct {
	Feed      string `json:"feed"`
	Dashboard string `json:"dashboard"`
	Cache     string `json:"cache"`
	Database  string `json:"database,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	services := healthServices{Feed: s.source}

	if s.dash != nil {
		v := s.dash.View()
		services.Dashboard = string(v.State)
		services.Cache = "stale"
		if v.CacheValid {
			services.Cache = "valid"
		}
	}

	if s.db != nil {
		services.Database = "connected"
		if err := s.db.Ping(r.Context()); err != nil {
			services.Database = "disconnected"
		}
	}

	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Services:  services,
	})
}
