package competition

import (
	"testing"
	"time"

	"github.com/revodavid/copperhead-server/internal/engine"
	"github.com/revodavid/copperhead-server/internal/room"
)

type fakeSender struct {
	sent []any
}

func (f *fakeSender) Send(msg any) error {
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeSender) CloseWithCode(code int, reason string) error { return nil }

func testGridConfig() engine.Config {
	cfg := engine.NewConfig()
	cfg.Width, cfg.Height = 10, 10
	return cfg
}

func TestTotalRoundsFormula(t *testing.T) {
	cases := map[int]int{1: 1, 2: 1, 3: 2, 4: 2, 5: 3, 10: 4, 16: 4, 17: 5}
	for required, want := range cases {
		if got := totalRoundsFor(required); got != want {
			t.Errorf("totalRoundsFor(%d) = %d, want %d", required, got, want)
		}
	}
}

func TestRegisterStartsCompetitionWhenFull(t *testing.T) {
	mgr := room.NewManager()
	c := New(1, 3, 10*time.Second, testGridConfig(), time.Millisecond, mgr)

	uid1, err := c.Register("Alice", &fakeSender{}, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if uid1 != "P1" {
		t.Fatalf("expected sequential uid P1, got %q", uid1)
	}
	if c.IsInProgress() {
		t.Fatalf("expected still waiting with only one registrant")
	}

	uid2, err := c.Register("Bob", &fakeSender{}, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if uid2 != "P2" {
		t.Fatalf("expected sequential uid P2, got %q", uid2)
	}
	if !c.IsInProgress() {
		t.Fatalf("expected competition in progress once required players registered")
	}

	snap := c.Snapshot()
	if snap.Round != 1 || snap.TotalRounds != 1 {
		t.Fatalf("expected a single-round bracket for 2 players, got round=%d total=%d", snap.Round, snap.TotalRounds)
	}
}

func TestRegisterRejectsBeyondCapacity(t *testing.T) {
	mgr := room.NewManager()
	c := New(1, 3, 10*time.Second, testGridConfig(), time.Millisecond, mgr)
	c.Register("Alice", &fakeSender{}, false)
	c.Register("Bob", &fakeSender{}, false)

	if _, err := c.Register("Carol", &fakeSender{}, false); err == nil {
		t.Fatalf("expected registration to fail once the bracket is in progress")
	}
}

func TestReportMatchCompleteAdvancesToChampion(t *testing.T) {
	mgr := room.NewManager()
	c := New(1, 1, 10*time.Second, testGridConfig(), time.Millisecond, mgr)
	c.Register("Alice", &fakeSender{}, false)
	c.Register("Bob", &fakeSender{}, false)

	if len(mgr.All()) != 1 {
		t.Fatalf("expected one room created for the single-pairing round, got %d", len(mgr.All()))
	}

	c.reportMatchComplete(room.MatchReport{P1UID: "P1", P2UID: "P2", WinnerUID: "P1", P1Points: 1, P2Points: 0})

	// advance() runs synchronously for the champion path.
	snap := c.Snapshot()
	if snap.State != "complete" {
		t.Fatalf("expected complete state with one winner, got %q", snap.State)
	}
	if snap.Champion != "Alice" {
		t.Fatalf("expected Alice to be champion, got %q", snap.Champion)
	}

	hist := c.History()
	if len(hist) != 1 || hist[0].Champion != "Alice" {
		t.Fatalf("expected championship history to record Alice, got %+v", hist)
	}
}

func TestByeSelectionPrefersHigherGamePoints(t *testing.T) {
	mgr := room.NewManager()
	c := New(2, 1, 10*time.Second, testGridConfig(), time.Millisecond, mgr)
	c.players = map[string]*PlayerInfo{
		"P1": {UID: "P1", Name: "Alice", GamePoints: 5},
		"P2": {UID: "P2", Name: "Bob", GamePoints: 2},
		"P3": {UID: "P3", Name: "Carol", GamePoints: 2, LastMatchFinishTime: time.Now()},
	}

	bye := c.selectByeLocked([]string{"P1", "P2", "P3"})
	if bye != "P1" {
		t.Fatalf("expected highest gamePoints (P1) to get the bye, got %q", bye)
	}
}

func TestByeSelectionBreaksTieByEarlierFinish(t *testing.T) {
	mgr := room.NewManager()
	c := New(2, 1, 10*time.Second, testGridConfig(), time.Millisecond, mgr)
	earlier := time.Now().Add(-time.Minute)
	later := time.Now()
	c.players = map[string]*PlayerInfo{
		"P1": {UID: "P1", Name: "Alice", GamePoints: 2, LastMatchFinishTime: later},
		"P2": {UID: "P2", Name: "Bob", GamePoints: 2, LastMatchFinishTime: earlier},
	}

	bye := c.selectByeLocked([]string{"P1", "P2"})
	if bye != "P2" {
		t.Fatalf("expected earlier-finishing player (P2) to get the bye, got %q", bye)
	}
}

func TestUnregisterOnlyAppliesWhileWaiting(t *testing.T) {
	mgr := room.NewManager()
	c := New(1, 3, 10*time.Second, testGridConfig(), time.Millisecond, mgr)
	uid, _ := c.Register("Alice", &fakeSender{}, false)

	c.Unregister(uid)
	if len(c.players) != 0 {
		t.Fatalf("expected Unregister to remove the player while WaitingForPlayers")
	}

	aliceUID, _ := c.Register("Alice", &fakeSender{}, false)
	c.Register("Bob", &fakeSender{}, false)
	if !c.IsInProgress() {
		t.Fatalf("expected competition to be in progress")
	}
	// Unregister is a no-op once InProgress; forfeit goes through Room.
	c.Unregister(aliceUID)
	if _, ok := c.players[aliceUID]; !ok {
		t.Fatalf("expected Unregister to be a no-op once InProgress")
	}
}
