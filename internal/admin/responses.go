package admin

import "time"

// DashboardResponse is the HTTP response DTO for the dashboard.
type DashboardResponse struct {
	Profiles       CountsResponse `json:"profiles"`
	Collaborations CountsResponse `json:"collaborations"`
	Verifications  PendingCount   `json:"verifications"`
	Reports        OpenCount      `json:"reports"`
	GeneratedAt    time.Time      `json:"generated_at"`
}

type CountsResponse struct {
	Total    int            `json:"total"`
	ByStatus map[string]int `json:"by_status"`
}

type PendingCount struct {
	Pending int `json:"pending"`
}

type OpenCount struct {
	Open int `json:"open"`
}

func toDashboardResponse(s *Stats) DashboardResponse {
	return DashboardResponse{
		Profiles:       CountsResponse{Total: s.TotalProfiles, ByStatus: s.ProfilesByStatus},
		Collaborations: CountsResponse{Total: s.TotalCollaborations, ByStatus: s.CollaborationsByStatus},
		Verifications:  PendingCount{Pending: s.PendingVerifications},
		Reports:        OpenCount{Open: s.OpenReports},
		GeneratedAt:    s.GeneratedAt,
	}
}
