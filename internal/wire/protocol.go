// Package wire defines the CopperHead message envelopes documented in
// spec.md §6, "to the bit": every server->client message type and every
// client->server action, plus the Sender interface gateway connections
// implement so that internal/room and internal/competition can notify
// players without importing gorilla/websocket directly — the same
// separation rswebdev-schlangen draws between its engine and network
// packages.
package wire

import "github.com/revodavid/copperhead-server/internal/engine"

// Sender is what internal/room and internal/competition need from a
// connection: serialize-and-send one message, or close with a documented
// code (spec.md §6: 4000-4003).
type Sender interface {
	Send(msg any) error
	CloseWithCode(code int, reason string) error
}

// Client -> server action identifiers.
const (
	ActionReady      = "ready"
	ActionMove       = "move"
	ActionSwitchRoom = "switch_room"
	ActionGetRooms   = "get_rooms"
)

// ClientEnvelope is the generic inbound frame; unknown fields for a given
// action are simply ignored per spec.md §7.
type ClientEnvelope struct {
	Action    string `json:"action"`
	Name      string `json:"name,omitempty"`
	Mode      string `json:"mode,omitempty"`
	Direction string `json:"direction,omitempty"`
	RoomID    int    `json:"room_id,omitempty"`
}

// CompeteJoinEnvelope is the mandatory first message on /ws/compete.
type CompeteJoinEnvelope struct {
	Name string `json:"name"`
}

// Server -> client message type identifiers.
const (
	TypeLobbyStatus         = "lobby_status"
	TypeCompetitionStatus   = "competition_status"
	TypeCompetitionComplete = "competition_complete"
	TypeJoined              = "joined"
	TypeMatchAssigned       = "match_assigned"
	TypeStart               = "start"
	TypeState               = "state"
	TypeGameOver            = "gameover"
	TypeMatchComplete       = "match_complete"
	TypeObserverJoined      = "observer_joined"
	TypeRoomList            = "room_list"
	TypeWaiting             = "waiting"
	TypeError               = "error"
	TypeRegistered          = "registered"
)

// Close codes from spec.md §6.
const (
	CloseInvalidPlayerID        = 4000
	CloseNameMessageExpected    = 4001
	CloseServerFull             = 4002
	CloseCompetitionUnavailable = 4003
)

type LobbyStatusMsg struct {
	Type     string `json:"type"`
	Players  int    `json:"players"`
	Required int    `json:"required"`
}

type CompetitionStatusMsg struct {
	Type        string `json:"type"`
	Round       int    `json:"round"`
	TotalRounds int    `json:"total_rounds"`
	ByePlayer   string `json:"bye_player,omitempty"`
}

type CompetitionCompleteMsg struct {
	Type     string  `json:"type"`
	Champion string  `json:"champion"`
	ResetIn  float64 `json:"reset_in"`
}

type JoinedMsg struct {
	Type     string `json:"type"`
	RoomID   int    `json:"room_id"`
	PlayerID int    `json:"player_id"`
}

type MatchAssignedMsg struct {
	Type        string `json:"type"`
	RoomID      int    `json:"room_id"`
	PlayerID    int    `json:"player_id"`
	Opponent    string `json:"opponent"`
	PointsToWin int    `json:"points_to_win"`
}

type StartMsg struct {
	Type        string `json:"type"`
	Mode        string `json:"mode"`
	RoomID      int    `json:"room_id"`
	Wins        *Wins  `json:"wins,omitempty"`
	PointsToWin int    `json:"points_to_win,omitempty"`
}

type Wins struct {
	P1 int `json:"1"`
	P2 int `json:"2"`
}

type StateMsg struct {
	Type   string         `json:"type"`
	Game   engine.GameDTO `json:"game"`
	Wins   Wins           `json:"wins"`
	Names  Names          `json:"names"`
	RoomID int            `json:"room_id"`
}

type Names struct {
	P1 string `json:"1"`
	P2 string `json:"2"`
}

type GameOverMsg struct {
	Type        string `json:"type"`
	Winner      *int   `json:"winner"`
	Wins        Wins   `json:"wins"`
	Names       Names  `json:"names"`
	RoomID      int    `json:"room_id"`
	PointsToWin int    `json:"points_to_win"`
}

type MatchWinner struct {
	PlayerID int    `json:"player_id"`
	Name     string `json:"name"`
}

type MatchCompleteMsg struct {
	Type             string      `json:"type"`
	Winner           MatchWinner `json:"winner"`
	FinalScore       Wins        `json:"final_score"`
	RoomID           int         `json:"room_id"`
	RemainingMatches int         `json:"remaining_matches"`
	CurrentRound     int         `json:"current_round"`
	TotalRounds      int         `json:"total_rounds"`
	Forfeit          bool        `json:"forfeit,omitempty"`
}

type ObserverJoinedMsg struct {
	Type   string         `json:"type"`
	RoomID int            `json:"room_id"`
	Game   engine.GameDTO `json:"game"`
	Wins   Wins           `json:"wins"`
	Names  Names          `json:"names"`
}

type RoomSummary struct {
	RoomID        int    `json:"room_id"`
	Names         Names  `json:"names"`
	Wins          Wins   `json:"wins"`
	MatchComplete bool   `json:"match_complete"`
}

type RoomListMsg struct {
	Type        string        `json:"type"`
	Rooms       []RoomSummary `json:"rooms"`
	CurrentRoom *int          `json:"current_room"`
	Round       int           `json:"round"`
	TotalRounds int           `json:"total_rounds"`
	ByePlayer   string        `json:"bye_player,omitempty"`
}

type WaitingMsg struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type ErrorMsg struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type RegisteredMsg struct {
	Type              string `json:"type"`
	UID               string `json:"uid"`
	Name              string `json:"name"`
	CompetitionStatus string `json:"competition_status"`
}
