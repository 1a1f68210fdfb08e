// Package competition implements the bracket described in spec.md §4.4:
// registration, round pairing with Bye handling, match reporting, round
// advancement, champion declaration, and reset. It sits above
// internal/room in the dependency order (spec.md §2): it drives rooms
// through room.Manager and room.Room, and rooms reach back up only through
// the callbacks wired into each room.Room (IsCompetitionInProgress,
// ReportMatchComplete); internal/room never imports this package.
// PlayerInfo holds a room id rather than a *room.Room, avoiding the
// PlayerInfo/Room ownership cycle spec.md §9 calls out.
//
// Grounded on original_source/tests/test_tournament.py for the bracket
// invariants (total_rounds formula, Bye-must-appear, pairing sizes) since
// no teacher file implements single-elimination bracket logic; uid
// minting and registration bookkeeping are grounded on
// sonpython-slether/server/connection.go's ConnManager registration
// pattern, generalized from websocket connections to tournament players.
package competition

import (
	"fmt"
	"log"
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/revodavid/copperhead-server/internal/engine"
	"github.com/revodavid/copperhead-server/internal/room"
	"github.com/revodavid/copperhead-server/internal/wire"
)

// State is the Competition lifecycle spec.md §4.4 names.
type State int

const (
	WaitingForPlayers State = iota
	InProgress
	Complete
	Resetting
)

func (s State) String() string {
	switch s {
	case WaitingForPlayers:
		return "waiting_for_players"
	case InProgress:
		return "in_progress"
	case Complete:
		return "complete"
	case Resetting:
		return "resetting"
	default:
		return "unknown"
	}
}

// PlayerInfo is a registered competitor, keyed by its stable uid
// (spec.md §3's PlayerInfo). CurrentRoomID is a weak back-reference,
// resolved through the RoomManager on use rather than held as a pointer,
// per spec.md §9.
type PlayerInfo struct {
	UID    string
	Name   string
	Conn   wire.Sender
	IsBot  bool

	MatchWins      int
	GamePoints     int
	OpponentPoints int
	Eliminated     bool

	CurrentRoomID   *int
	CurrentPlayerID *int

	LastMatchFinishTime time.Time
}

// MatchResult mirrors spec.md §3: a Bye is a self-pairing with 0/0
// points.
type MatchResult struct {
	P1UID, P2UID, WinnerUID string
	P1Points, P2Points       int
}

func (m MatchResult) isBye() bool { return m.P1UID == m.P2UID && m.P2UID == m.WinnerUID }

// ChampionshipRecord is one immortal entry of championshipHistory
// (spec.md §3), surviving resets.
type ChampionshipRecord struct {
	Champion  string
	Players   int
	Timestamp time.Time
}

type pairing struct {
	P1UID, P2UID string
	RoomID       int
}

// Competition owns the bracket: players, round pairings, results, and the
// champion/reset lifecycle.
type Competition struct {
	mu sync.Mutex

	arenas      int
	pointsToWin int
	resetDelay  time.Duration
	gridCfg     engine.Config
	tickRate    time.Duration
	rooms       *room.Manager

	state State

	players  map[string]*PlayerInfo
	order    []string // registration order; round 1 is drawn from it
	nextSeq  int

	roundPairs   [][]pairing
	matchResults [][]MatchResult
	totalRounds  int
	currentRound int // 1-indexed

	championUID   string
	currentByeUID string
	resetAt       time.Time

	championshipHistory []ChampionshipRecord

	rng *rand.Rand
}

// New constructs a Competition in WaitingForPlayers state. gridCfg and
// tickRate are passed straight through to every Room it creates.
func New(arenas, pointsToWin int, resetDelay time.Duration, gridCfg engine.Config, tickRate time.Duration, rooms *room.Manager) *Competition {
	return &Competition{
		arenas:      arenas,
		pointsToWin: pointsToWin,
		resetDelay:  resetDelay,
		gridCfg:     gridCfg,
		tickRate:    tickRate,
		rooms:       rooms,
		state:       WaitingForPlayers,
		players:     make(map[string]*PlayerInfo),
		rng:         rand.New(rand.NewSource(1)),
	}
}

// Required is the player count that triggers InProgress: 2*arenas.
func (c *Competition) Required() int { return 2 * c.arenas }

// IsInProgress is the callback every Room's IsCompetitionInProgress field
// is wired to (spec.md §4.2 ready gating).
func (c *Competition) IsInProgress() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == InProgress
}

var errCompetitionUnavailable = fmt.Errorf("competition: registration unavailable")
var errCompetitionFull = fmt.Errorf("competition: already full")

// Register assigns the next sequential uid ("P1", "P2", …) per spec.md
// §4.4 and stores a PlayerInfo. Returns the assigned uid. Only valid
// while WaitingForPlayers.
func (c *Competition) Register(name string, conn wire.Sender, isBot bool) (string, error) {
	c.mu.Lock()
	if c.state != WaitingForPlayers {
		c.mu.Unlock()
		return "", errCompetitionUnavailable
	}
	if len(c.players) >= c.Required() {
		c.mu.Unlock()
		return "", errCompetitionFull
	}

	c.nextSeq++
	uid := fmt.Sprintf("P%d", c.nextSeq)
	c.players[uid] = &PlayerInfo{UID: uid, Name: name, Conn: conn, IsBot: isBot}
	c.order = append(c.order, uid)

	ready := len(c.players) == c.Required()
	c.mu.Unlock()

	c.broadcastLobbyStatus()
	if ready {
		c.startCompetition()
	}
	return uid, nil
}

// Unregister removes a player who disconnects before the bracket starts.
// Once InProgress, disconnects are handled by Room.Disconnect's forfeit
// path instead.
func (c *Competition) Unregister(uid string) {
	c.mu.Lock()
	if c.state != WaitingForPlayers {
		c.mu.Unlock()
		return
	}
	delete(c.players, uid)
	for i, u := range c.order {
		if u == uid {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	c.mu.Unlock()
	c.broadcastLobbyStatus()
}

func (c *Competition) broadcastLobbyStatus() {
	c.mu.Lock()
	msg := wire.LobbyStatusMsg{Type: wire.TypeLobbyStatus, Players: len(c.players), Required: c.Required()}
	conns := c.connSnapshotLocked()
	c.mu.Unlock()
	for _, conn := range conns {
		_ = conn.Send(msg)
	}
}

func (c *Competition) connSnapshotLocked() []wire.Sender {
	out := make([]wire.Sender, 0, len(c.players))
	for _, p := range c.players {
		if p.Conn != nil {
			out = append(out, p.Conn)
		}
	}
	return out
}

// totalRoundsFor implements spec.md §4.4's "max(1, ceil(log2(2*arenas)))".
func totalRoundsFor(required int) int {
	if required <= 1 {
		return 1
	}
	return int(math.Ceil(math.Log2(float64(required))))
}

func (c *Competition) startCompetition() {
	c.mu.Lock()
	c.state = InProgress
	c.totalRounds = totalRoundsFor(c.Required())
	uids := make([]string, 0, len(c.order))
	uids = append(uids, c.order...)
	c.mu.Unlock()

	c.buildRound(1, uids)
}

// shuffle returns a fresh shuffled copy of uids.
func (c *Competition) shuffle(uids []string) []string {
	out := make([]string, len(uids))
	copy(out, uids)
	c.rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

// selectByeLocked implements spec.md §4.4's Bye sort key: highest gamePoints,
// then earliest lastMatchFinishTime, then uniform random among ties.
// Must be called with c.mu held.
func (c *Competition) selectByeLocked(uids []string) string {
	candidates := make([]string, len(uids))
	copy(candidates, uids)
	sort.Slice(candidates, func(i, j int) bool {
		pi, pj := c.players[candidates[i]], c.players[candidates[j]]
		if pi.GamePoints != pj.GamePoints {
			return pi.GamePoints > pj.GamePoints
		}
		if !pi.LastMatchFinishTime.Equal(pj.LastMatchFinishTime) {
			return pi.LastMatchFinishTime.Before(pj.LastMatchFinishTime)
		}
		return false
	})
	// Collect every candidate tied with the best key, then break the tie
	// uniformly at random, per spec.md §4.4.
	best := candidates[0]
	bestPlayer := c.players[best]
	var tied []string
	for _, u := range candidates {
		p := c.players[u]
		if p.GamePoints == bestPlayer.GamePoints && p.LastMatchFinishTime.Equal(bestPlayer.LastMatchFinishTime) {
			tied = append(tied, u)
		}
	}
	return tied[c.rng.Intn(len(tied))]
}

// buildRound pairs uids for roundNum, handling an odd count via Bye,
// allocates a room per pairing, and connects both already-registered
// players' connections into their assigned room/slot.
func (c *Competition) buildRound(roundNum int, uids []string) {
	c.mu.Lock()
	remaining := make([]string, len(uids))
	copy(remaining, uids)

	var byeResult *MatchResult
	if len(remaining)%2 == 1 {
		bye := c.selectByeLocked(remaining)
		for i, u := range remaining {
			if u == bye {
				remaining = append(remaining[:i], remaining[i+1:]...)
				break
			}
		}
		c.currentByeUID = bye
		now := time.Now()
		c.players[bye].LastMatchFinishTime = now
		byeResult = &MatchResult{P1UID: bye, P2UID: bye, WinnerUID: bye}
	}

	shuffled := c.shuffle(remaining)
	var pairs []pairing
	for i := 0; i+1 < len(shuffled); i += 2 {
		pairs = append(pairs, pairing{P1UID: shuffled[i], P2UID: shuffled[i+1]})
	}

	c.currentRound = roundNum
	for len(c.roundPairs) < roundNum {
		c.roundPairs = append(c.roundPairs, nil)
		c.matchResults = append(c.matchResults, nil)
	}

	results := make([]MatchResult, 0, len(pairs)+1)
	if byeResult != nil {
		results = append(results, *byeResult)
	}
	c.matchResults[roundNum-1] = results

	byePlayerName := ""
	if c.currentByeUID != "" {
		byePlayerName = c.players[c.currentByeUID].Name
	}
	statusMsg := wire.CompetitionStatusMsg{
		Type:        wire.TypeCompetitionStatus,
		Round:       roundNum,
		TotalRounds: c.totalRounds,
		ByePlayer:   byePlayerName,
	}
	conns := c.connSnapshotLocked()
	c.mu.Unlock()

	for _, conn := range conns {
		_ = conn.Send(statusMsg)
	}

	for i := range pairs {
		c.assignRoom(roundNum, &pairs[i])
	}

	c.mu.Lock()
	c.roundPairs[roundNum-1] = pairs
	// A round with zero matches (every remaining player was the lone Bye,
	// i.e. only one player total) completes immediately.
	noMatches := len(pairs) == 0
	c.mu.Unlock()

	if noMatches {
		c.checkRoundComplete(roundNum)
	}
}

// assignRoom allocates a Room for one pairing, wires its callbacks, and
// connects both players' existing connections into their slots.
func (c *Competition) assignRoom(roundNum int, p *pairing) {
	r := c.rooms.CreateRoom(c.gridCfg, c.pointsToWin, c.tickRate, roundNum, c.totalRoundsSnapshot())
	if r == nil {
		log.Printf("competition: round %d: no room capacity for pairing %s/%s", roundNum, p.P1UID, p.P2UID)
		return
	}
	p.RoomID = r.ID
	r.IsCompetitionInProgress = c.IsInProgress
	r.ReportMatchComplete = func(rep room.MatchReport) {
		c.reportMatchComplete(rep)
	}

	c.mu.Lock()
	p1, p2 := c.players[p.P1UID], c.players[p.P2UID]
	roomID := r.ID
	slot1, slot2 := 1, 2
	p1.CurrentRoomID, p1.CurrentPlayerID = &roomID, &slot1
	p2.CurrentRoomID, p2.CurrentPlayerID = &roomID, &slot2
	p1Conn, p2Conn := p1.Conn, p2.Conn
	p1Name, p2Name := p1.Name, p2.Name
	pointsToWin := c.pointsToWin
	c.mu.Unlock()

	r.Connect(engine.Slot1, p.P1UID, p1Name, p1Conn)
	r.Connect(engine.Slot2, p.P2UID, p2Name, p2Conn)

	if p1Conn != nil {
		_ = p1Conn.Send(wire.MatchAssignedMsg{Type: wire.TypeMatchAssigned, RoomID: roomID, PlayerID: 1, Opponent: p2Name, PointsToWin: pointsToWin})
	}
	if p2Conn != nil {
		_ = p2Conn.Send(wire.MatchAssignedMsg{Type: wire.TypeMatchAssigned, RoomID: roomID, PlayerID: 2, Opponent: p1Name, PointsToWin: pointsToWin})
	}
}

func (c *Competition) totalRoundsSnapshot() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.totalRounds
}

// reportMatchComplete is the ReportMatchComplete callback every Room in
// the current round is wired to.
func (c *Competition) reportMatchComplete(rep room.MatchReport) {
	c.mu.Lock()
	if c.state != InProgress {
		c.mu.Unlock()
		return
	}
	roundIdx := c.currentRound - 1
	if roundIdx < 0 || roundIdx >= len(c.matchResults) {
		c.mu.Unlock()
		log.Printf("competition: match report for unknown round, ignoring")
		return
	}

	winner, winnerOK := c.players[rep.WinnerUID]
	if !winnerOK {
		c.mu.Unlock()
		log.Printf("competition: reportMatchComplete: winner uid %q not registered, dropping round-advance safety", rep.WinnerUID)
		return
	}
	loserUID := rep.P1UID
	if rep.WinnerUID == rep.P1UID {
		loserUID = rep.P2UID
	}
	loser := c.players[loserUID]

	now := time.Now()
	winner.MatchWins++
	winner.LastMatchFinishTime = now
	winner.CurrentRoomID, winner.CurrentPlayerID = nil, nil
	if winner.UID == rep.P1UID {
		winner.GamePoints += rep.P1Points
		winner.OpponentPoints += rep.P2Points
	} else {
		winner.GamePoints += rep.P2Points
		winner.OpponentPoints += rep.P1Points
	}

	if loser != nil {
		loser.Eliminated = true
		loser.CurrentRoomID, loser.CurrentPlayerID = nil, nil
		loser.LastMatchFinishTime = now
		if loser.UID == rep.P1UID {
			loser.GamePoints += rep.P1Points
			loser.OpponentPoints += rep.P2Points
		} else {
			loser.GamePoints += rep.P2Points
			loser.OpponentPoints += rep.P1Points
		}
	}

	c.matchResults[roundIdx] = append(c.matchResults[roundIdx], MatchResult{
		P1UID: rep.P1UID, P2UID: rep.P2UID, WinnerUID: rep.WinnerUID,
		P1Points: rep.P1Points, P2Points: rep.P2Points,
	})

	roundNum := c.currentRound
	expected := len(c.roundPairs[roundIdx])
	if c.currentByeUID != "" {
		expected++
	}
	done := len(c.matchResults[roundIdx]) >= expected
	c.mu.Unlock()

	if done {
		c.checkRoundComplete(roundNum)
	}
}

// checkRoundComplete runs advance() once every pairing (and the Bye, if
// any) for roundNum has a recorded result.
func (c *Competition) checkRoundComplete(roundNum int) {
	c.mu.Lock()
	if c.state != InProgress || roundNum != c.currentRound {
		c.mu.Unlock()
		return
	}
	roundIdx := roundNum - 1
	expected := len(c.roundPairs[roundIdx])
	if c.currentByeUID != "" {
		expected++
	}
	if len(c.matchResults[roundIdx]) < expected {
		c.mu.Unlock()
		return
	}
	winners := make([]string, 0, expected)
	for _, res := range c.matchResults[roundIdx] {
		winners = append(winners, res.WinnerUID)
	}
	c.mu.Unlock()

	c.advance(winners)
}

// advance implements spec.md §4.4's Advance step.
func (c *Competition) advance(winners []string) {
	c.rooms.ClearAllRooms()

	c.mu.Lock()
	c.currentByeUID = ""

	if len(winners) == 1 {
		champion := c.players[winners[0]]
		championName := ""
		if champion != nil {
			championName = champion.Name
		}
		c.championUID = winners[0]
		c.state = Complete
		playerCount := len(c.players)
		c.championshipHistory = append(c.championshipHistory, ChampionshipRecord{
			Champion: championName, Players: playerCount, Timestamp: time.Now(),
		})
		resetIn := c.resetDelay
		conns := c.connSnapshotLocked()
		c.resetAt = time.Now().Add(resetIn)
		c.mu.Unlock()

		msg := wire.CompetitionCompleteMsg{Type: wire.TypeCompetitionComplete, Champion: championName, ResetIn: resetIn.Seconds()}
		for _, conn := range conns {
			_ = conn.Send(msg)
		}
		time.AfterFunc(resetIn, c.reset)
		return
	}

	nextRound := c.currentRound + 1
	c.mu.Unlock()

	// Give observers ~5s to read the round's final state before the next
	// round's rooms appear (spec.md §4.4).
	time.AfterFunc(5*time.Second, func() {
		c.buildRound(nextRound, winners)
	})
}

// reset implements spec.md §4.4's post-Complete reset; championshipHistory
// survives.
func (c *Competition) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = WaitingForPlayers
	c.players = make(map[string]*PlayerInfo)
	c.order = nil
	c.nextSeq = 0
	c.roundPairs = nil
	c.matchResults = nil
	c.totalRounds = 0
	c.currentRound = 0
	c.championUID = ""
	c.currentByeUID = ""
}

// Snapshot is the /competition HTTP endpoint payload (spec.md §6).
type Snapshot struct {
	State       string `json:"state"`
	Round       int    `json:"round"`
	TotalRounds int     `json:"total_rounds"`
	Players     int     `json:"players"`
	Required    int     `json:"required"`
	Champion    string  `json:"champion,omitempty"`
	PointsToWin int     `json:"points_to_win"`
	ByePlayer   string  `json:"bye_player,omitempty"`
	ResetIn     float64 `json:"reset_in,omitempty"`
}

func (c *Competition) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	championName := ""
	if c.championUID != "" {
		if p, ok := c.players[c.championUID]; ok {
			championName = p.Name
		}
	}
	byeName := ""
	if c.currentByeUID != "" {
		if p, ok := c.players[c.currentByeUID]; ok {
			byeName = p.Name
		}
	}
	var resetIn float64
	if c.state == Complete {
		if d := time.Until(c.resetAt); d > 0 {
			resetIn = d.Seconds()
		}
	}
	return Snapshot{
		State:       c.state.String(),
		Round:       c.currentRound,
		TotalRounds: c.totalRounds,
		Players:     len(c.players),
		Required:    c.Required(),
		Champion:    championName,
		PointsToWin: c.pointsToWin,
		ByePlayer:   byeName,
		ResetIn:     resetIn,
	}
}

// RoomFor resolves a registered player's current (room, slot), per
// spec.md §9's weak-reference model: PlayerInfo holds only the room id,
// re-resolved through the RoomManager on every use.
func (c *Competition) RoomFor(uid string) (*room.Room, engine.Slot, bool) {
	c.mu.Lock()
	p, ok := c.players[uid]
	if !ok || p.CurrentRoomID == nil || p.CurrentPlayerID == nil {
		c.mu.Unlock()
		return nil, 0, false
	}
	roomID := *p.CurrentRoomID
	slot := engine.Slot(*p.CurrentPlayerID)
	c.mu.Unlock()

	r, ok := c.rooms.Get(roomID)
	if !ok {
		return nil, 0, false
	}
	return r, slot, true
}

// History returns the immortal championship log (spec.md §3/§6).
func (c *Competition) History() []ChampionshipRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]ChampionshipRecord, len(c.championshipHistory))
	copy(out, c.championshipHistory)
	return out
}
