package engine

import (
	"math/rand"
)

// Slot identifies a player position within a Game. Exactly two exist.
type Slot int

const (
	Slot1 Slot = 1
	Slot2 Slot = 2
)

// Config bundles the knobs Step and spawning depend on. Zero values are
// not valid — use NewConfig to apply the spec.md §6 defaults.
type Config struct {
	Width, Height   int
	MaxFruits       int
	FruitInterval   int // ticks between spawn attempts
	FruitWarningAt  int // lifetime threshold at or below which the wire value is numeric, not null
	Fruits          map[FruitType]FruitSpec
}

// NewConfig returns the spec.md §6 default configuration (30x20 grid).
func NewConfig() Config {
	return Config{
		Width:          30,
		Height:         20,
		MaxFruits:      1,
		FruitInterval:  1,
		FruitWarningAt: 20,
		Fruits:         defaultFruitTable(),
	}
}

// Game is one arena's mutable play state. Step is the only operation that
// advances it; everything else is accessors and construction.
type Game struct {
	cfg Config

	Snakes map[Slot]*Snake
	Foods  []*Fruit

	Running             bool
	Winner              *Slot // nil means no winner yet, or a draw once Running is false
	TicksSinceLastFruit int

	rng *rand.Rand
}

// NewGame builds a fresh Game at the spec.md §3 initial layout: Slot1 at
// (5, H/2) facing right, Slot2 at (W-6, H/2+1) facing left, asymmetric rows
// preventing a first-tick head-on.
func NewGame(cfg Config) *Game {
	g := &Game{
		cfg:     cfg,
		Snakes:  make(map[Slot]*Snake),
		Running: false,
		rng:     rand.New(rand.NewSource(rand.Int63())),
	}
	g.reset()
	return g
}

// reset restores initial snake placement and clears fruit/winner state.
func (g *Game) reset() {
	h := g.cfg.Height / 2
	g.Snakes[Slot1] = NewSnake(Point{X: 5, Y: h}, Right)
	g.Snakes[Slot2] = NewSnake(Point{X: g.cfg.Width - 6, Y: h + 1}, Left)
	g.Foods = nil
	g.Winner = nil
	g.TicksSinceLastFruit = 0
}

// Reset re-initializes the game for a fresh match game, leaving Running
// false until the caller starts it.
func (g *Game) Reset() {
	g.reset()
}

// Start marks the game as running.
func (g *Game) Start() {
	g.Running = true
}

// otherSlot returns the opponent of slot in a 2-player game.
func otherSlot(slot Slot) Slot {
	if slot == Slot1 {
		return Slot2
	}
	return Slot1
}

// fruitAt returns the fruit occupying p, if any.
func (g *Game) fruitAt(p Point) (*Fruit, int) {
	for i, f := range g.Foods {
		if f.X == p.X && f.Y == p.Y {
			return f, i
		}
	}
	return nil, -1
}

func (g *Game) removeFoodAt(idx int) {
	g.Foods = append(g.Foods[:idx], g.Foods[idx+1:]...)
}

// Step advances the game exactly one tick per spec.md §4.1. It is a total
// function over any valid Game state, including one that is already
// terminal (fruit lifecycle still ticks; nothing else changes).
func (g *Game) Step() {
	if !g.Running {
		g.tickFruitLifecycle()
		return
	}

	// 1. Input commit.
	for _, s := range g.Snakes {
		if s.Alive {
			s.commitInput()
		}
	}

	// 2. Predicted heads.
	predicted := make(map[Slot]Point, len(g.Snakes))
	oldHeads := make(map[Slot]Point, len(g.Snakes))
	for slot, s := range g.Snakes {
		if s.Alive {
			oldHeads[slot] = s.Head()
			predicted[slot] = s.predictedHead()
		}
	}

	// 3. Fruit effects & movement.
	for slot, s := range g.Snakes {
		if !s.Alive {
			continue
		}
		newHead := predicted[slot]
		if f, idx := g.fruitAt(newHead); idx >= 0 {
			g.applyFruitEffect(slot, f)
			g.removeFoodAt(idx)
		}
		s.advance(newHead)
	}

	// 4. Collision detection.
	g.detectCollisions(oldHeads)

	// 5. Termination & tiebreak.
	g.resolveTermination()

	// 6. Fruit lifecycle (every tick, even terminal).
	g.tickFruitLifecycle()
}

// applyFruitEffect applies F's effect to the eating snake before it moves,
// per spec.md §4.1 step 3: apple grows by 1; grapes grows the eater by 1
// and shrinks every opponent's tail by 1 (floor length 1).
func (g *Game) applyFruitEffect(eater Slot, f *Fruit) {
	switch f.Type {
	case Apple:
		g.Snakes[eater].grow(1)
	case Grapes:
		g.Snakes[eater].grow(1)
		for slot, s := range g.Snakes {
			if slot == eater {
				continue
			}
			if s.Len() > 1 {
				s.shrinkTail(1)
			}
		}
	}
}

// detectCollisions applies wall, self, cross-body, and head-on rules
// (spec.md §4.1 step 4). All snakes have already moved this tick; oldHeads
// holds each snake's head position before that move, needed to catch a
// swap (two single-segment snakes crossing through each other).
func (g *Game) detectCollisions(oldHeads map[Slot]Point) {
	dead := map[Slot]bool{}

	for slot, s := range g.Snakes {
		if !s.Alive {
			continue
		}
		head := s.Head()
		if head.X < 0 || head.X >= g.cfg.Width || head.Y < 0 || head.Y >= g.cfg.Height {
			dead[slot] = true
			continue
		}
		if s.containsTail(head) {
			dead[slot] = true
			continue
		}
		for otherS, other := range g.Snakes {
			if otherS == slot || !other.Alive {
				continue
			}
			if other.contains(head) {
				dead[slot] = true
			}
		}
	}

	// Head-on: both alive, same head, or swapped positions.
	if s1, s2 := g.Snakes[Slot1], g.Snakes[Slot2]; s1.Alive && s2.Alive {
		h1, h2 := s1.Head(), s2.Head()
		if h1 == h2 {
			dead[Slot1] = true
			dead[Slot2] = true
		}
		if oldH1, ok1 := oldHeads[Slot1]; ok1 {
			if oldH2, ok2 := oldHeads[Slot2]; ok2 {
				if h1 == oldH2 && h2 == oldH1 {
					dead[Slot1] = true
					dead[Slot2] = true
				}
			}
		}
	}

	for slot := range dead {
		g.Snakes[slot].Alive = false
	}
}

// resolveTermination counts survivors and, on a tie, applies the
// length-then-recency tiebreak from spec.md §4.1 step 5.
func (g *Game) resolveTermination() {
	var alive []Slot
	for slot, s := range g.Snakes {
		if s.Alive {
			alive = append(alive, slot)
		}
	}

	switch len(alive) {
	case 2:
		return // still running
	case 1:
		w := alive[0]
		g.Winner = &w
	case 0:
		g.Winner = g.tiebreak()
	}
	g.Running = false
}

// tiebreak implements spec.md §4.1 step 5 / §8 "Fingerprint of a tiebreak":
// longer body wins; else the snake that did NOT change direction last move
// wins; else a draw (nil).
func (g *Game) tiebreak() *Slot {
	s1, s2 := g.Snakes[Slot1], g.Snakes[Slot2]
	if len(s1.Body) != len(s2.Body) {
		w := Slot1
		if len(s2.Body) > len(s1.Body) {
			w = Slot2
		}
		return &w
	}
	if s1.ChangedDirectionLastMove != s2.ChangedDirectionLastMove {
		w := Slot1
		if s1.ChangedDirectionLastMove {
			w = Slot2
		}
		return &w
	}
	return nil
}

// tickFruitLifecycle decrements finite lifetimes, removes expired fruit,
// and spawns a new one if the interval and capacity gates allow it
// (spec.md §4.1 step 6). Runs every tick, including terminal ones.
func (g *Game) tickFruitLifecycle() {
	g.TicksSinceLastFruit++

	kept := g.Foods[:0]
	for _, f := range g.Foods {
		if f.Lifetime != InfiniteLifetime {
			f.Lifetime--
			if f.Lifetime <= 0 {
				continue
			}
		}
		kept = append(kept, f)
	}
	g.Foods = kept

	if len(g.Foods) >= g.cfg.MaxFruits {
		return
	}
	if g.TicksSinceLastFruit < g.cfg.FruitInterval {
		return
	}

	ft, ok := g.weightedFruitType()
	if !ok {
		return
	}
	p, ok := g.randomUnoccupiedCell()
	if !ok {
		return
	}
	spec := g.cfg.Fruits[ft]
	g.Foods = append(g.Foods, &Fruit{X: p.X, Y: p.Y, Type: ft, Lifetime: spec.Lifetime})
	g.TicksSinceLastFruit = 0
}

// weightedFruitType samples a fruit type proportional to its configured
// propensity. ok is false if every type has propensity 0.
func (g *Game) weightedFruitType() (FruitType, bool) {
	var total float64
	for _, t := range AllFruitTypes {
		total += g.cfg.Fruits[t].Propensity
	}
	if total <= 0 {
		return "", false
	}
	r := g.rng.Float64() * total
	for _, t := range AllFruitTypes {
		w := g.cfg.Fruits[t].Propensity
		if r < w {
			return t, true
		}
		r -= w
	}
	return AllFruitTypes[len(AllFruitTypes)-1], true
}

// randomUnoccupiedCell picks a uniformly random cell free of any snake
// body or existing fruit. ok is false if the grid is fully occupied.
func (g *Game) randomUnoccupiedCell() (Point, bool) {
	occupied := map[Point]bool{}
	for _, s := range g.Snakes {
		for _, c := range s.Body {
			occupied[c] = true
		}
	}
	for _, f := range g.Foods {
		occupied[Point{X: f.X, Y: f.Y}] = true
	}

	free := make([]Point, 0, g.cfg.Width*g.cfg.Height)
	for x := 0; x < g.cfg.Width; x++ {
		for y := 0; y < g.cfg.Height; y++ {
			p := Point{X: x, Y: y}
			if !occupied[p] {
				free = append(free, p)
			}
		}
	}
	if len(free) == 0 {
		return Point{}, false
	}
	return free[g.rng.Intn(len(free))], true
}
