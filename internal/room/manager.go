package room

import (
	"sort"
	"sync"
	"time"

	"github.com/revodavid/copperhead-server/internal/engine"
	"github.com/revodavid/copperhead-server/internal/wire"
)

// MaxRooms bounds concurrent arenas, per spec.md §5.
const MaxRooms = 10

// Manager is the keyed registry of Rooms (spec.md §4.3): matchmaking,
// lookup, and observer broadcast of the room list, plus round-boundary
// lifetime coordination. Grounded on
// sonpython-slether/server/connection.go's ConnManager (map + RWMutex +
// Snapshot) generalized to int-keyed rooms with a dedicated matchmaking
// mutex (spec.md §5).
type Manager struct {
	mu    sync.RWMutex
	rooms map[int]*Room

	matchmakeMu sync.Mutex

	lobbyMu  sync.Mutex
	lobby    []wire.Sender // observers with no active room
	observed map[wire.Sender]int // observer -> room id, for switch_room
}

// NewManager creates an empty registry.
func NewManager() *Manager {
	return &Manager{
		rooms:    make(map[int]*Room),
		observed: make(map[wire.Sender]int),
	}
}

// Get returns the room for id, if any.
func (m *Manager) Get(id int) (*Room, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rooms[id]
	return r, ok
}

// All returns every room, sorted by id, for broadcast snapshots.
func (m *Manager) All() []*Room {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// CreateRoom allocates a room at the lowest free id for an already-paired
// bracket match (used by Competition when building a round's matches, as
// opposed to FindOrCreateRoom's open-matchmaking path). Returns nil if at
// capacity.
func (m *Manager) CreateRoom(cfg engine.Config, pointsToWin int, tickRate time.Duration, round, totalRounds int) *Room {
	m.mu.Lock()
	if len(m.rooms) >= MaxRooms {
		m.mu.Unlock()
		return nil
	}
	id := lowestFreeID(m.rooms)
	r := NewRoom(id, cfg, pointsToWin, tickRate, round, totalRounds)
	m.rooms[id] = r
	m.mu.Unlock()

	m.promoteLobbyObservers()
	return r
}

// FindOrCreateRoom implements spec.md §4.3's matchmaking contract: connect
// uid/name/conn to the lowest-id existing room that isWaitingForPlayer(),
// else allocate a new room at the lowest free id and connect as slot one.
// The whole find-or-create-and-connect sequence runs under matchmakeMu so
// two simultaneous joiners can never both land in the same empty slot or
// each spin up their own room.
func (m *Manager) FindOrCreateRoom(cfg engine.Config, pointsToWin int, tickRate time.Duration, uid, name string, conn wire.Sender) (*Room, engine.Slot, bool) {
	m.matchmakeMu.Lock()
	defer m.matchmakeMu.Unlock()

	for _, r := range m.All() {
		if r.IsWaitingForPlayer() {
			r.Connect(engine.Slot2, uid, name, conn)
			return r, engine.Slot2, true
		}
	}

	m.mu.Lock()
	if len(m.rooms) >= MaxRooms {
		m.mu.Unlock()
		return nil, 0, false
	}
	id := lowestFreeID(m.rooms)
	r := NewRoom(id, cfg, pointsToWin, tickRate, 1, 1)
	m.rooms[id] = r
	m.mu.Unlock()

	r.Connect(engine.Slot1, uid, name, conn)
	m.promoteLobbyObservers()
	return r, engine.Slot1, true
}

// lowestFreeID returns the smallest positive id not present in rooms
// (room ids start at 1).
func lowestFreeID(rooms map[int]*Room) int {
	for id := 1; id <= MaxRooms; id++ {
		if _, ok := rooms[id]; !ok {
			return id
		}
	}
	return len(rooms) + 1
}

// AddLobbyObserver registers an observer with no active room yet.
func (m *Manager) AddLobbyObserver(conn wire.Sender) {
	m.lobbyMu.Lock()
	m.lobby = append(m.lobby, conn)
	m.lobbyMu.Unlock()
}

// ConnectObserverAuto attaches conn to the lowest-id active room if one
// exists, otherwise parks it in the lobby list to be migrated in once a
// room appears (spec.md §4.3).
func (m *Manager) ConnectObserverAuto(conn wire.Sender) {
	rooms := m.All()
	if len(rooms) == 0 {
		m.AddLobbyObserver(conn)
		return
	}
	rooms[0].ConnectObserver(conn)
	m.lobbyMu.Lock()
	m.observed[conn] = rooms[0].ID
	m.lobbyMu.Unlock()
}

// GetOrCreateDefault returns room id 1, creating it if absent. Used by
// the legacy /ws/{id} endpoint, which plays a single fixed arena outside
// the competition bracket.
func (m *Manager) GetOrCreateDefault(cfg engine.Config, pointsToWin int, tickRate time.Duration) *Room {
	if r, ok := m.Get(1); ok {
		return r
	}
	m.mu.Lock()
	if r, ok := m.rooms[1]; ok {
		m.mu.Unlock()
		return r
	}
	r := NewRoom(1, cfg, pointsToWin, tickRate, 1, 1)
	m.rooms[1] = r
	m.mu.Unlock()
	return r
}

// promoteLobbyObservers migrates lobby-only observers into the first
// active room once one exists, emitting observer_joined (spec.md §4.3).
func (m *Manager) promoteLobbyObservers() {
	m.lobbyMu.Lock()
	pending := m.lobby
	m.lobby = nil
	m.lobbyMu.Unlock()

	if len(pending) == 0 {
		return
	}
	rooms := m.All()
	if len(rooms) == 0 {
		m.lobbyMu.Lock()
		m.lobby = pending
		m.lobbyMu.Unlock()
		return
	}
	target := rooms[0]
	for _, o := range pending {
		target.ConnectObserver(o)
		m.lobbyMu.Lock()
		m.observed[o] = target.ID
		m.lobbyMu.Unlock()
	}
}

// ClearAllRooms drains all observers back into the lobby list and deletes
// every room (spec.md §4.3 round reset). It does not cancel a room's
// in-flight match-reporting call chain: each Room clears its own tick
// handle before invoking Competition (spec.md §5).
func (m *Manager) ClearAllRooms() {
	m.mu.Lock()
	rooms := m.rooms
	m.rooms = make(map[int]*Room)
	m.mu.Unlock()

	m.lobbyMu.Lock()
	for o := range m.observed {
		m.lobby = append(m.lobby, o)
	}
	m.observed = make(map[wire.Sender]int)
	m.lobbyMu.Unlock()

	for _, r := range rooms {
		r.mu.Lock()
		if r.cancelTick != nil {
			r.cancelTick()
			r.cancelTick = nil
		}
		r.mu.Unlock()
	}
}

// RoomList builds the room_list broadcast payload (spec.md §4.3/§6).
// CurrentRoom is left nil; callers that know which observer they're
// replying to should use RoomListFor instead.
func (m *Manager) RoomList(round, totalRounds int, byePlayer string) wire.RoomListMsg {
	rooms := m.All()
	summaries := make([]wire.RoomSummary, len(rooms))
	for i, r := range rooms {
		summaries[i] = r.Summary()
	}
	return wire.RoomListMsg{
		Type:        wire.TypeRoomList,
		Rooms:       summaries,
		Round:       round,
		TotalRounds: totalRounds,
		ByePlayer:   byePlayer,
	}
}

// RoomListFor builds the same payload as RoomList but fills CurrentRoom
// with the room conn is currently attached to as an observer, if any.
func (m *Manager) RoomListFor(conn wire.Sender, round, totalRounds int, byePlayer string) wire.RoomListMsg {
	msg := m.RoomList(round, totalRounds, byePlayer)
	m.lobbyMu.Lock()
	roomID, ok := m.observed[conn]
	m.lobbyMu.Unlock()
	if ok {
		msg.CurrentRoom = &roomID
	}
	return msg
}

// BroadcastRoomList fans the current room list out to every observer
// (lobby and in-room), matching spec.md §4.3's "after any lifecycle
// event" rule.
func (m *Manager) BroadcastRoomList(round, totalRounds int, byePlayer string) {
	msg := m.RoomList(round, totalRounds, byePlayer)

	m.lobbyMu.Lock()
	lobby := make([]wire.Sender, len(m.lobby))
	copy(lobby, m.lobby)
	m.lobbyMu.Unlock()
	for _, o := range lobby {
		_ = o.Send(msg)
	}

	for _, r := range m.All() {
		r.mu.Lock()
		obs := make([]wire.Sender, len(r.observers))
		copy(obs, r.observers)
		r.mu.Unlock()
		for _, o := range obs {
			_ = o.Send(msg)
		}
	}
}
