package engine

import "testing"

func newTestGame(w, h int) *Game {
	cfg := NewConfig()
	cfg.Width = w
	cfg.Height = h
	cfg.MaxFruits = 0 // keep tests deterministic unless a test wants fruit
	g := NewGame(cfg)
	g.Start()
	return g
}

func TestHeadOnCollisionBothDie(t *testing.T) {
	g := newTestGame(10, 10)
	g.Snakes[Slot1] = NewSnake(Point{4, 5}, Right)
	g.Snakes[Slot2] = NewSnake(Point{5, 5}, Left)

	g.Step()

	if g.Running {
		t.Fatalf("expected game to end after head-on collision")
	}
	if g.Winner != nil {
		t.Fatalf("expected a draw (nil winner), got %v", *g.Winner)
	}
	if g.Snakes[Slot1].Alive || g.Snakes[Slot2].Alive {
		t.Fatalf("expected both snakes dead")
	}
}

func TestHeadOnSwappedPositions(t *testing.T) {
	g := newTestGame(10, 10)
	// Two-segment snakes facing each other one cell apart: heads will swap.
	g.Snakes[Slot1] = &Snake{Body: []Point{{4, 5}, {3, 5}}, Direction: Right, NextDirection: Right, Alive: true}
	g.Snakes[Slot2] = &Snake{Body: []Point{{5, 5}, {6, 5}}, Direction: Left, NextDirection: Left, Alive: true}

	g.Step()

	if g.Running {
		t.Fatalf("expected game to end after swapped-position collision")
	}
	if g.Snakes[Slot1].Alive || g.Snakes[Slot2].Alive {
		t.Fatalf("expected both snakes dead on swap")
	}
}

func TestReversalRejected(t *testing.T) {
	g := newTestGame(20, 20)
	g.Snakes[Slot1] = NewSnake(Point{5, 10}, Right)

	s := g.Snakes[Slot1]
	s.QueueDirection(Left)
	s.QueueDirection(Left)
	s.QueueDirection(Left)

	if len(s.inputQueue) != 0 {
		t.Fatalf("expected inputQueue to stay empty, got %d entries", len(s.inputQueue))
	}

	g.Step()

	if g.Snakes[Slot1].Direction != Right {
		t.Fatalf("expected direction to remain right, got %s", g.Snakes[Slot1].Direction)
	}
}

func TestQueueDropsOldestWhenFull(t *testing.T) {
	g := newTestGame(20, 20)
	s := NewSnake(Point{5, 10}, Right)
	g.Snakes[Slot1] = s

	s.QueueDirection(Up)
	s.QueueDirection(Down) // rejected: opposite of last-queued (Up)
	s.QueueDirection(Left)
	s.QueueDirection(Right) // rejected: opposite of last-queued (Left)
	s.QueueDirection(Up)    // accepted: last-queued is Left; queue is now full [Up Left Up]
	s.QueueDirection(Right) // accepted: drops the oldest Up -> [Left Up Right]

	if len(s.inputQueue) == 0 {
		t.Fatalf("expected some queued directions")
	}
	if len(s.inputQueue) > maxQueuedInputs {
		t.Fatalf("queue exceeded max length: %d", len(s.inputQueue))
	}
	if len(s.inputQueue) != 3 || s.inputQueue[0] != Left || s.inputQueue[2] != Right {
		t.Fatalf("expected oldest entry dropped leaving [left up right], got %v", s.inputQueue)
	}
}

func TestAppleGrowsSnake(t *testing.T) {
	g := newTestGame(30, 20)
	// A spawn must actually happen this tick for TicksSinceLastFruit to
	// reset (spec.md §4.1: the counter only resets on spawn, not on eat).
	g.cfg.MaxFruits = 1
	g.Snakes[Slot1] = &Snake{Body: []Point{{9, 10}, {8, 10}, {7, 10}}, Direction: Right, NextDirection: Right, Alive: true}
	g.Snakes[Slot2] = NewSnake(Point{25, 15}, Left)
	g.Foods = []*Fruit{{X: 10, Y: 10, Type: Apple, Lifetime: InfiniteLifetime}}

	g.Step()

	s1 := g.Snakes[Slot1]
	if s1.Head() != (Point{10, 10}) {
		t.Fatalf("expected head at (10,10), got %v", s1.Head())
	}
	if s1.Len() != 4 {
		t.Fatalf("expected body length 4 after apple, got %d", s1.Len())
	}
	for _, f := range g.Foods {
		if f.X == 10 && f.Y == 10 {
			t.Fatalf("expected eaten apple to be removed")
		}
	}
	if g.TicksSinceLastFruit != 0 {
		t.Fatalf("expected ticksSinceLastFruit reset to 0, got %d", g.TicksSinceLastFruit)
	}
}

func TestGrapesGrowAndShrinkOpponent(t *testing.T) {
	g := newTestGame(30, 20)
	g.Snakes[Slot1] = &Snake{Body: []Point{{9, 10}, {8, 10}, {7, 10}}, Direction: Right, NextDirection: Right, Alive: true}
	g.Snakes[Slot2] = &Snake{Body: []Point{{20, 15}, {21, 15}, {22, 15}, {23, 15}, {24, 15}}, Direction: Left, NextDirection: Left, Alive: true}
	g.Foods = []*Fruit{{X: 10, Y: 10, Type: Grapes, Lifetime: 100}}

	g.Step()

	if got := g.Snakes[Slot1].Len(); got != 4 {
		t.Fatalf("expected eater length 4, got %d", got)
	}
	if got := g.Snakes[Slot2].Len(); got != 4 {
		t.Fatalf("expected opponent shrunk to length 4, got %d", got)
	}
}

func TestGrapesDoesNotShrinkBelowOne(t *testing.T) {
	g := newTestGame(30, 20)
	g.Snakes[Slot1] = &Snake{Body: []Point{{9, 10}}, Direction: Right, NextDirection: Right, Alive: true}
	g.Snakes[Slot2] = &Snake{Body: []Point{{20, 15}}, Direction: Left, NextDirection: Left, Alive: true}
	g.Foods = []*Fruit{{X: 10, Y: 10, Type: Grapes, Lifetime: 100}}

	g.Step()

	if got := g.Snakes[Slot2].Len(); got != 1 {
		t.Fatalf("expected single-segment opponent to stay at length 1, got %d", got)
	}
}

func TestTiebreakByLength(t *testing.T) {
	g := newTestGame(10, 10)
	long := make([]Point, 6)
	for i := range long {
		long[i] = Point{X: 4 - i, Y: 5}
	}
	short := make([]Point, 5)
	for i := range short {
		short[i] = Point{X: 5 + i, Y: 5}
	}
	g.Snakes[Slot1] = &Snake{Body: long, Direction: Right, NextDirection: Right, Alive: true}
	g.Snakes[Slot2] = &Snake{Body: short, Direction: Left, NextDirection: Left, Alive: true}

	// Force a simultaneous death via wall collision by pointing both off-grid.
	g.Snakes[Slot1].Body[0] = Point{X: -1, Y: 5}
	g.Snakes[Slot2].Body[0] = Point{X: 10, Y: 5}
	g.detectCollisions(map[Slot]Point{})
	g.resolveTermination()

	if g.Winner == nil || *g.Winner != Slot1 {
		t.Fatalf("expected Slot1 (longer) to win tiebreak, got %v", g.Winner)
	}
}

func TestTiebreakByRecentTurn(t *testing.T) {
	g := newTestGame(10, 10)
	g.Snakes[Slot1] = &Snake{Body: []Point{{-1, 5}, {0, 5}, {1, 5}}, Direction: Right, Alive: true, ChangedDirectionLastMove: true}
	g.Snakes[Slot2] = &Snake{Body: []Point{{10, 5}, {9, 5}, {8, 5}}, Direction: Left, Alive: true, ChangedDirectionLastMove: false}

	g.detectCollisions(map[Slot]Point{})
	g.resolveTermination()

	if g.Winner == nil || *g.Winner != Slot2 {
		t.Fatalf("expected Slot2 (held line) to win tiebreak, got %v", g.Winner)
	}
}

func TestTiebreakDrawWhenEqual(t *testing.T) {
	g := newTestGame(10, 10)
	g.Snakes[Slot1] = &Snake{Body: []Point{{-1, 5}, {0, 5}, {1, 5}}, Direction: Right, Alive: true, ChangedDirectionLastMove: false}
	g.Snakes[Slot2] = &Snake{Body: []Point{{10, 5}, {9, 5}, {8, 5}}, Direction: Left, Alive: true, ChangedDirectionLastMove: false}

	g.detectCollisions(map[Slot]Point{})
	g.resolveTermination()

	if g.Winner != nil {
		t.Fatalf("expected draw, got winner %v", *g.Winner)
	}
}

func TestStepOnFinishedGameOnlyTicksFruit(t *testing.T) {
	g := newTestGame(10, 10)
	g.Running = false
	before := g.TicksSinceLastFruit
	g.Step()
	if g.TicksSinceLastFruit != before+1 {
		t.Fatalf("expected fruit lifecycle to still tick on a finished game")
	}
}

func TestWallCollisionKills(t *testing.T) {
	g := newTestGame(10, 10)
	g.Snakes[Slot1] = NewSnake(Point{9, 5}, Right)
	g.Snakes[Slot2] = NewSnake(Point{0, 8}, Right)

	g.Step()

	if g.Snakes[Slot1].Alive {
		t.Fatalf("expected Slot1 to die from wall collision")
	}
	if g.Winner == nil || *g.Winner != Slot2 {
		t.Fatalf("expected Slot2 to win, got %v", g.Winner)
	}
}

func TestSelfCollisionKills(t *testing.T) {
	g := newTestGame(20, 20)
	// A 2x2 loop plus one trailing cell: moving Down from (5,5) lands on
	// (5,6), which is still part of the body after the tail (4,6) is popped.
	s := &Snake{
		Body:          []Point{{5, 5}, {6, 5}, {6, 6}, {5, 6}, {4, 6}},
		Direction:     Right,
		NextDirection: Down,
		Alive:         true,
	}
	g.Snakes[Slot1] = s
	g.Snakes[Slot2] = NewSnake(Point{15, 15}, Left)

	g.Step()

	if s.Alive {
		t.Fatalf("expected self-collision to kill Slot1")
	}
	if g.Winner == nil || *g.Winner != Slot2 {
		t.Fatalf("expected Slot2 to win by default, got %v", g.Winner)
	}
}
