package gateway

import "net/http"

type rootResponse struct {
	Name   string `json:"name"`
	Status string `json:"status"`
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, rootResponse{Name: "copperhead-server", Status: "ok"})
}

type statusResponse struct {
	Name        string              `json:"name"`
	Status      string              `json:"status"`
	Arenas      int                 `json:"arenas"`
	PointsToWin int                 `json:"points_to_win"`
	Rooms       []roomActiveSummary `json:"rooms"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, statusResponse{
		Name:        "copperhead-server",
		Status:      "ok",
		Arenas:      s.cfg.Arenas,
		PointsToWin: s.cfg.PointsToWin,
		Rooms:       s.roomSummaries(),
	})
}

func (s *Server) handleCompetition(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.competition.Snapshot())
}

type historyResponse struct {
	Championships []championshipEntry `json:"championships"`
}

type championshipEntry struct {
	Champion  string `json:"champion"`
	Players   int    `json:"players"`
	Timestamp int64  `json:"timestamp"`
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	hist := s.competition.History()
	entries := make([]championshipEntry, len(hist))
	for i, h := range hist {
		entries[i] = championshipEntry{Champion: h.Champion, Players: h.Players, Timestamp: h.Timestamp.Unix()}
	}
	writeJSON(w, historyResponse{Championships: entries})
}

type roomActiveSummary struct {
	RoomID int      `json:"room_id"`
	Names  [2]string `json:"names"`
	Wins   [2]int    `json:"wins"`
}

func (s *Server) roomSummaries() []roomActiveSummary {
	rooms := s.rooms.All()
	out := make([]roomActiveSummary, len(rooms))
	for i, r := range rooms {
		summary := r.Summary()
		out[i] = roomActiveSummary{
			RoomID: summary.RoomID,
			Names:  [2]string{summary.Names.P1, summary.Names.P2},
			Wins:   [2]int{summary.Wins.P1, summary.Wins.P2},
		}
	}
	return out
}

type roomsActiveResponse struct {
	Rooms []roomActiveSummary `json:"rooms"`
}

func (s *Server) handleRoomsActive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, roomsActiveResponse{Rooms: s.roomSummaries()})
}

type addBotResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// handleAddBot acknowledges a POST without spawning or recording
// anything: process-level bot spawning is out of scope (spec.md §1). The
// reply tells the caller to connect a bot client to /ws/compete.
func (s *Server) handleAddBot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, addBotResponse{Success: true, Message: "bot spawn requests are not handled by this server; connect a bot client to /ws/compete"})
}
