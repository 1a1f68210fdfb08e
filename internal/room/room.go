// Package room implements the Room and RoomManager components of
// spec.md §4.2/§4.3: one Room owns one engine.Game and drives its tick
// loop; RoomManager is the keyed registry used for matchmaking and
// lifetime coordination between bracket rounds.
//
// Grounded on sonpython-slether/server/game_loop.go's fixed-timestep
// ticker loop and connection.go's ConnManager registry pattern.
package room

import (
	"log"
	"sync"
	"time"

	"github.com/revodavid/copperhead-server/internal/engine"
	"github.com/revodavid/copperhead-server/internal/wire"
)

// State is the duplicate-start guard spec.md §9 calls for: a Room has at
// most one active tick task at any time.
type State int

const (
	Idle State = iota
	Running
	Completed
)

// MatchReport is what a Room hands to its owning Competition when a match
// finishes, matching Competition.reportMatchComplete's parameters.
type MatchReport struct {
	P1UID, P2UID, WinnerUID string
	P1Points, P2Points       int
}

// Room owns one Game and multiplexes the two player connections plus any
// number of observers.
type Room struct {
	mu sync.Mutex

	ID          int
	Game        *engine.Game
	cfg         engine.Config
	pointsToWin int
	tickRate    time.Duration
	Round       int
	TotalRounds int

	connections map[engine.Slot]wire.Sender
	observers   []wire.Sender
	ready       map[engine.Slot]bool
	wins        map[engine.Slot]int
	names       map[engine.Slot]string
	playerUIDs  map[engine.Slot]string

	state         State
	matchReported bool
	matchComplete bool
	cancelTick    func()
	pausedUntil   time.Time

	// IsCompetitionInProgress reports whether the owning Competition is in
	// its InProgress state; games only start while this is true (spec.md
	// §4.2 ready gating, §9 "was_game_running or competition_active").
	IsCompetitionInProgress func() bool
	// ReportMatchComplete notifies the owning Competition that this room's
	// match has ended.
	ReportMatchComplete func(MatchReport)
}

// NewRoom constructs an idle room. cfg is the per-arena grid/fruit
// configuration; the caller wires IsCompetitionInProgress and
// ReportMatchComplete before the room accepts connections.
func NewRoom(id int, cfg engine.Config, pointsToWin int, tickRate time.Duration, round, totalRounds int) *Room {
	return &Room{
		ID:          id,
		Game:        engine.NewGame(cfg),
		cfg:         cfg,
		pointsToWin: pointsToWin,
		tickRate:    tickRate,
		Round:       round,
		TotalRounds: totalRounds,
		connections: make(map[engine.Slot]wire.Sender),
		ready:       make(map[engine.Slot]bool),
		wins:        make(map[engine.Slot]int),
		names:       make(map[engine.Slot]string),
		playerUIDs:  make(map[engine.Slot]string),
	}
}

// IsWaitingForPlayer reports whether the room has exactly one connection
// and no running game — the matchmaking eligibility test from spec.md
// §4.3.
func (r *Room) IsWaitingForPlayer() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.connections) == 1 && !r.Game.Running
}

// ConnectionCount returns the number of attached player connections.
func (r *Room) ConnectionCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.connections)
}

// Connect attaches a player connection to slot and sets their display
// name and uid, then broadcasts current state to them.
func (r *Room) Connect(slot engine.Slot, uid, name string, conn wire.Sender) {
	r.mu.Lock()
	r.connections[slot] = conn
	r.playerUIDs[slot] = uid
	r.names[slot] = name
	snap := r.stateMsgLocked()
	r.mu.Unlock()

	_ = conn.Send(snap)
}

// ConnectObserver attaches a read-only subscriber and sends it the
// current full state as an observer_joined message.
func (r *Room) ConnectObserver(conn wire.Sender) {
	r.mu.Lock()
	r.observers = append(r.observers, conn)
	msg := wire.ObserverJoinedMsg{
		Type:   wire.TypeObserverJoined,
		RoomID: r.ID,
		Game:   r.Game.ToDTO(r.cfg.FruitWarningAt),
		Wins:   r.winsLocked(),
		Names:  r.namesLocked(),
	}
	r.mu.Unlock()
	_ = conn.Send(msg)
}

// HandleMessage dispatches a move/ready action from slot.
func (r *Room) HandleMessage(slot engine.Slot, action, direction string) {
	switch action {
	case wire.ActionMove:
		r.handleMove(slot, direction)
	case wire.ActionReady:
		r.handleReady(slot)
	}
}

func (r *Room) handleMove(slot engine.Slot, direction string) {
	d, ok := engine.ParseDirection(direction)
	if !ok {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.Game.Snakes[slot]
	if !ok || !r.Game.Running {
		return
	}
	s.QueueDirection(d)
}

func (r *Room) handleReady(slot engine.Slot) {
	r.mu.Lock()
	r.ready[slot] = true
	r.mu.Unlock()
	r.TryStart()
}

// TryStart attempts the Idle -> Running transition: both slots ready,
// Competition InProgress, and no tick task already live. Returns whether
// it actually started a game.
func (r *Room) TryStart() bool {
	r.mu.Lock()
	if r.state != Idle {
		r.mu.Unlock()
		return false
	}
	if !r.ready[engine.Slot1] || !r.ready[engine.Slot2] {
		r.mu.Unlock()
		return false
	}
	if r.IsCompetitionInProgress == nil || !r.IsCompetitionInProgress() {
		r.mu.Unlock()
		return false
	}
	if r.Game.Running {
		r.mu.Unlock()
		return false
	}
	if time.Now().Before(r.pausedUntil) {
		r.mu.Unlock()
		return false
	}

	r.Game.Reset()
	r.Game.Start()
	r.state = Running
	stopCh := make(chan struct{})
	r.cancelTick = func() {
		select {
		case <-stopCh:
		default:
			close(stopCh)
		}
	}
	startMsg := wire.StartMsg{
		Type:        wire.TypeStart,
		Mode:        "match",
		RoomID:      r.ID,
		Wins:        &wire.Wins{P1: r.wins[engine.Slot1], P2: r.wins[engine.Slot2]},
		PointsToWin: r.pointsToWin,
	}
	r.mu.Unlock()

	r.broadcast(startMsg)
	go r.runTickLoop(stopCh)
	return true
}

// runTickLoop drives Step at tickRate until the game ends, then performs
// terminal handling (spec.md §4.2).
func (r *Room) runTickLoop(stop <-chan struct{}) {
	ticker := time.NewTicker(r.tickRate)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			r.mu.Lock()
			r.Game.Step()
			done := !r.Game.Running
			snap := r.stateMsgLocked()
			r.mu.Unlock()

			r.broadcast(snap)

			if done {
				r.handleGameOver()
				return
			}
		}
	}
}

// handleGameOver runs once per finished game: updates wins, emits
// gameover, then either reports the match (pointsToWin reached) or resets
// for the next game of the same match (spec.md §4.2).
func (r *Room) handleGameOver() {
	r.mu.Lock()
	winner := r.Game.Winner
	if winner != nil {
		r.wins[*winner]++
	}
	gameOver := wire.GameOverMsg{
		Type:        wire.TypeGameOver,
		Winner:      slotPtrToInt(winner),
		Wins:        r.winsLocked(),
		Names:       r.namesLocked(),
		RoomID:      r.ID,
		PointsToWin: r.pointsToWin,
	}

	matchOver := r.wins[engine.Slot1] >= r.pointsToWin || r.wins[engine.Slot2] >= r.pointsToWin
	// Clear the tick handle before any Competition call so that a
	// concurrent clearAllRooms doesn't cancel this in-flight call chain
	// (spec.md §5).
	r.cancelTick = nil
	r.mu.Unlock()

	r.broadcast(gameOver)

	if matchOver {
		r.completeMatch()
		return
	}

	r.mu.Lock()
	r.ready = make(map[engine.Slot]bool)
	r.state = Idle
	r.pausedUntil = time.Now().Add(3 * time.Second)
	r.mu.Unlock()

	time.AfterFunc(3*time.Second, func() {
		r.TryStart()
	})
}

// completeMatch finalizes the room's match once a slot reaches
// pointsToWin, idempotently (matchReported guards re-entry).
func (r *Room) completeMatch() {
	r.mu.Lock()
	if r.matchReported {
		r.mu.Unlock()
		return
	}
	r.matchReported = true
	r.matchComplete = true
	r.state = Completed

	winnerSlot := engine.Slot1
	if r.wins[engine.Slot2] > r.wins[engine.Slot1] {
		winnerSlot = engine.Slot2
	}
	msg := wire.MatchCompleteMsg{
		Type:             wire.TypeMatchComplete,
		Winner:           wire.MatchWinner{PlayerID: int(winnerSlot), Name: r.names[winnerSlot]},
		FinalScore:       r.winsLocked(),
		RoomID:           r.ID,
		RemainingMatches: 0,
		CurrentRound:     r.Round,
		TotalRounds:      r.TotalRounds,
	}
	report := MatchReport{
		P1UID:     r.playerUIDs[engine.Slot1],
		P2UID:     r.playerUIDs[engine.Slot2],
		P1Points:  r.wins[engine.Slot1],
		P2Points:  r.wins[engine.Slot2],
		WinnerUID: r.playerUIDs[winnerSlot],
	}
	reportFn := r.ReportMatchComplete
	r.mu.Unlock()

	r.broadcast(msg)
	if reportFn != nil {
		reportFn(report)
	}
}

// Disconnect handles a player leaving slot. If the competition is active
// (or pre-game, per spec.md §9's preserved "was_game_running or
// competition_active" rule) and the opponent is still connected and the
// match hasn't been reported, the opponent wins by forfeit.
func (r *Room) Disconnect(slot engine.Slot) {
	r.mu.Lock()
	delete(r.connections, slot)
	wasRunning := r.Game.Running
	competitionActive := r.IsCompetitionInProgress != nil && r.IsCompetitionInProgress()
	opponent := otherSlot(slot)
	_, opponentConnected := r.connections[opponent]
	alreadyReported := r.matchReported

	if r.cancelTick != nil {
		r.cancelTick()
		r.cancelTick = nil
	}

	shouldForfeit := (wasRunning || competitionActive) && opponentConnected && !alreadyReported
	if !shouldForfeit {
		r.mu.Unlock()
		return
	}

	r.Game.Running = false
	r.wins[opponent] = r.pointsToWin
	r.matchReported = true
	r.matchComplete = true
	r.state = Completed

	msg := wire.MatchCompleteMsg{
		Type:             wire.TypeMatchComplete,
		Winner:           wire.MatchWinner{PlayerID: int(opponent), Name: r.names[opponent]},
		FinalScore:       r.winsLocked(),
		RoomID:           r.ID,
		RemainingMatches: 0,
		CurrentRound:     r.Round,
		TotalRounds:      r.TotalRounds,
		Forfeit:          true,
	}
	report := MatchReport{
		P1UID:     r.playerUIDs[engine.Slot1],
		P2UID:     r.playerUIDs[engine.Slot2],
		P1Points:  r.wins[engine.Slot1],
		P2Points:  r.wins[engine.Slot2],
		WinnerUID: r.playerUIDs[opponent],
	}
	reportFn := r.ReportMatchComplete
	r.mu.Unlock()

	log.Printf("room %d: forfeit, player %d disconnected", r.ID, slot)
	r.broadcast(msg)
	if reportFn != nil {
		reportFn(report)
	}
}

// broadcast fans msg out to both player connections and all observers,
// pruning any observer whose send fails (spec.md §4.2 observer broadcast).
// A failed send to a player connection is ignored.
func (r *Room) broadcast(msg any) {
	r.mu.Lock()
	conns := make([]wire.Sender, 0, len(r.connections))
	for _, c := range r.connections {
		conns = append(conns, c)
	}
	obs := make([]wire.Sender, len(r.observers))
	copy(obs, r.observers)
	r.mu.Unlock()

	for _, c := range conns {
		_ = c.Send(msg)
	}

	var alive []wire.Sender
	for _, o := range obs {
		if err := o.Send(msg); err == nil {
			alive = append(alive, o)
		}
	}
	r.mu.Lock()
	r.observers = alive
	r.mu.Unlock()
}

func (r *Room) stateMsgLocked() wire.StateMsg {
	return wire.StateMsg{
		Type:   wire.TypeState,
		Game:   r.Game.ToDTO(r.cfg.FruitWarningAt),
		Wins:   r.winsLocked(),
		Names:  r.namesLocked(),
		RoomID: r.ID,
	}
}

func (r *Room) winsLocked() wire.Wins {
	return wire.Wins{P1: r.wins[engine.Slot1], P2: r.wins[engine.Slot2]}
}

func (r *Room) namesLocked() wire.Names {
	return wire.Names{P1: r.names[engine.Slot1], P2: r.names[engine.Slot2]}
}

// Summary returns the room_list entry for this room (spec.md §4.3).
func (r *Room) Summary() wire.RoomSummary {
	r.mu.Lock()
	defer r.mu.Unlock()
	return wire.RoomSummary{
		RoomID:        r.ID,
		Names:         r.namesLocked(),
		Wins:          r.winsLocked(),
		MatchComplete: r.matchComplete,
	}
}

// MatchComplete reports whether this room's match has finished.
func (r *Room) MatchComplete() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.matchComplete
}

func otherSlot(slot engine.Slot) engine.Slot {
	if slot == engine.Slot1 {
		return engine.Slot2
	}
	return engine.Slot1
}

func slotPtrToInt(s *engine.Slot) *int {
	if s == nil {
		return nil
	}
	v := int(*s)
	return &v
}
