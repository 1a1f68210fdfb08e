package gateway

import (
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/revodavid/copperhead-server/internal/competition"
	"github.com/revodavid/copperhead-server/internal/config"
	"github.com/revodavid/copperhead-server/internal/room"
	"github.com/revodavid/copperhead-server/internal/wire"
)

const writeWait = 5 * time.Second

func timeNowPlusWriteWait() time.Time { return time.Now().Add(writeWait) }

const (
	pathJoin    = "/ws/join"
	pathObserve = "/ws/observe"
	pathCompete = "/ws/compete"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:    1024,
	WriteBufferSize:   4096,
	EnableCompression: true,
}

// Server wires together Competition, the Room registry, and the HTTP/WS
// endpoints spec.md §6 documents. Grounded on
// rswebdev-schlangen/engine/server.go's Server{Game, httpServer,
// listener}/setupMux/ListenAndServe shape.
type Server struct {
	cfg         config.Config
	rooms       *room.Manager
	competition *competition.Competition

	httpServer *http.Server
}

// NewServer builds the Competition and RoomManager from cfg and wires
// the HTTP mux.
func NewServer(cfg config.Config) *Server {
	s := &Server{cfg: cfg, rooms: room.NewManager()}
	gridCfg := s.gridConfig()
	tickRate := s.tickRate()
	s.competition = competition.New(cfg.Arenas, cfg.PointsToWin, time.Duration(cfg.ResetDelay*float64(time.Second)), gridCfg, tickRate, s.rooms)
	return s
}

func (s *Server) setupMux() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/", s.handleRoot)
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/competition", s.handleCompetition)
	mux.HandleFunc("/history", s.handleHistory)
	mux.HandleFunc("/rooms/active", s.handleRoomsActive)
	mux.HandleFunc("/add_bot", s.handleAddBot)

	mux.HandleFunc(pathJoin, s.handleJoin)
	mux.HandleFunc(pathObserve, s.handleObserve)
	mux.HandleFunc(pathCompete, s.handleCompete)
	mux.HandleFunc("/ws/1", s.handleLegacySlot(1))
	mux.HandleFunc("/ws/2", s.handleLegacySlot(2))

	return mux
}

// ListenAndServe blocks serving HTTP + WebSocket traffic on cfg.Host:cfg.Port.
func (s *Server) ListenAndServe() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	s.httpServer = &http.Server{Addr: addr, Handler: s.setupMux()}
	log.Printf("copperhead-server listening on %s (arenas=%d, points_to_win=%d, grid=%dx%d)",
		addr, s.cfg.Arenas, s.cfg.PointsToWin, s.cfg.GridWidth, s.cfg.GridHeight)
	return s.httpServer.ListenAndServe()
}

func clientIP(r *http.Request) string {
	ip := r.Header.Get("X-Forwarded-For")
	if ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func sendErrorAndClose(conn *Conn, code int, msg string) {
	_ = conn.Send(wire.ErrorMsg{Type: wire.TypeError, Message: msg})
	_ = conn.CloseWithCode(code, msg)
}
