package gateway

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/revodavid/copperhead-server/internal/engine"
	"github.com/revodavid/copperhead-server/internal/wire"
)

func (s *Server) upgrade(w http.ResponseWriter, r *http.Request) *Conn {
	ip := clientIP(r)
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("gateway: upgrade error from %s: %v", ip, err)
		return nil
	}
	ws.EnableWriteCompression(true)
	return NewConn(ws)
}

func (s *Server) tickRate() time.Duration {
	return time.Duration(s.cfg.Speed * float64(time.Second))
}

func (s *Server) gridConfig() engine.Config {
	gridCfg := engine.NewConfig()
	gridCfg.Width, gridCfg.Height = s.cfg.GridWidth, s.cfg.GridHeight
	gridCfg.MaxFruits = s.cfg.MaxFruits
	gridCfg.FruitInterval = s.cfg.FruitInterval
	gridCfg.FruitWarningAt = s.cfg.FruitWarning
	gridCfg.Fruits = make(map[engine.FruitType]engine.FruitSpec, len(s.cfg.Fruits))
	for name, spec := range s.cfg.Fruits {
		lifetime := spec.Lifetime
		if lifetime == 0 {
			lifetime = engine.InfiniteLifetime
		}
		gridCfg.Fruits[engine.FruitType(name)] = engine.FruitSpec{Propensity: spec.Propensity, Lifetime: lifetime}
	}
	return gridCfg
}

// handleJoin implements /ws/join: anonymous auto-matchmaking into the
// lowest-id room with an open slot, independent of the tournament
// bracket. These rooms always permit a game to start once both slots are
// ready (spec.md §4.5's "legacy"/direct-play endpoints don't gate on
// Competition state the way bracket-assigned rooms do).
func (s *Server) handleJoin(w http.ResponseWriter, r *http.Request) {
	conn := s.upgrade(w, r)
	if conn == nil {
		return
	}
	name := r.URL.Query().Get("name")
	if name == "" {
		name = "Player"
	}

	rm, slot, ok := s.rooms.FindOrCreateRoom(s.gridConfig(), s.cfg.PointsToWin, s.tickRate(), conn.ID, name, conn)
	if !ok {
		sendErrorAndClose(conn, wire.CloseServerFull, "server full")
		return
	}
	if rm.IsCompetitionInProgress == nil {
		rm.IsCompetitionInProgress = func() bool { return true }
	}
	_ = conn.Send(wire.JoinedMsg{Type: wire.TypeJoined, RoomID: rm.ID, PlayerID: int(slot)})

	s.readLoop(conn, rm, slot)
}

// handleObserve implements /ws/observe: a read-only subscriber to
// whichever room is currently active.
func (s *Server) handleObserve(w http.ResponseWriter, r *http.Request) {
	conn := s.upgrade(w, r)
	if conn == nil {
		return
	}
	s.rooms.ConnectObserverAuto(conn)

	for {
		env, _, err := conn.ReadEnvelope()
		if err != nil {
			return
		}
		if env.Action == wire.ActionGetRooms {
			list := s.rooms.RoomListFor(conn, 0, 0, "")
			_ = conn.Send(list)
		}
	}
}

// handleCompete implements /ws/compete: the client's first frame must be
// {name}; registration then proceeds through Competition, and subsequent
// move/ready actions are routed to whatever room Competition has
// assigned this player to.
func (s *Server) handleCompete(w http.ResponseWriter, r *http.Request) {
	conn := s.upgrade(w, r)
	if conn == nil {
		return
	}

	_, raw, err := conn.ReadEnvelope()
	if err != nil {
		return
	}
	var join wire.CompeteJoinEnvelope
	if jsonErr := json.Unmarshal(raw, &join); jsonErr != nil || join.Name == "" {
		sendErrorAndClose(conn, wire.CloseNameMessageExpected, "expected a name message first")
		return
	}

	uid, err := s.competition.Register(join.Name, conn, false)
	if err != nil {
		sendErrorAndClose(conn, wire.CloseCompetitionUnavailable, "competition unavailable")
		return
	}
	_ = conn.Send(wire.RegisteredMsg{Type: wire.TypeRegistered, UID: uid, Name: join.Name, CompetitionStatus: s.competition.Snapshot().State})

	for {
		env, _, err := conn.ReadEnvelope()
		if err != nil {
			s.competition.Unregister(uid)
			if rm, slot, ok := s.competition.RoomFor(uid); ok {
				rm.Disconnect(slot)
			}
			return
		}
		rm, slot, ok := s.competition.RoomFor(uid)
		if !ok {
			continue
		}
		rm.HandleMessage(slot, env.Action, env.Direction)
	}
}

// handleLegacySlot implements /ws/{id}: a fixed single arena outside the
// bracket, for direct 1-vs-1 play (id must be 1 or 2).
func (s *Server) handleLegacySlot(id int) http.HandlerFunc {
	slot := engine.Slot(id)
	return func(w http.ResponseWriter, r *http.Request) {
		conn := s.upgrade(w, r)
		if conn == nil {
			return
		}
		rm := s.rooms.GetOrCreateDefault(s.gridConfig(), s.cfg.PointsToWin, s.tickRate())
		if rm.IsCompetitionInProgress == nil {
			rm.IsCompetitionInProgress = func() bool { return true }
		}
		if rm.ConnectionCount() >= 2 {
			sendErrorAndClose(conn, wire.CloseInvalidPlayerID, "slot occupied")
			return
		}
		name := r.URL.Query().Get("name")
		if name == "" {
			name = "Player"
		}
		rm.Connect(slot, conn.ID, name, conn)

		s.readLoop(conn, rm, slot)
	}
}

// readLoop forwards move/ready actions from conn to rm until the client
// disconnects, at which point rm.Disconnect applies forfeit rules.
func (s *Server) readLoop(conn *Conn, rm roomHandler, slot engine.Slot) {
	for {
		env, _, err := conn.ReadEnvelope()
		if err != nil {
			rm.Disconnect(slot)
			return
		}
		rm.HandleMessage(slot, env.Action, env.Direction)
	}
}

// roomHandler is the subset of *room.Room the read loops need; declared
// here only to keep handleJoin/handleLegacySlot's shared loop from
// importing room.Room's full surface.
type roomHandler interface {
	HandleMessage(slot engine.Slot, action, direction string)
	Disconnect(slot engine.Slot)
}
