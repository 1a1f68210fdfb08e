package engine

// GridDTO mirrors the wire `grid` object inside a `game` snapshot.
type GridDTO struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// SnakeDTO mirrors the wire snake object inside a `game` snapshot.
// Buff is carried unused per spec.md §9's open question — always "default".
type SnakeDTO struct {
	PlayerID  int      `json:"player_id"`
	Body      [][2]int `json:"body"`
	Direction string   `json:"direction"`
	Alive     bool     `json:"alive"`
	Buff      string   `json:"buff"`
}

// FoodDTO mirrors one entry of the wire `foods` array. Lifetime is only
// numeric when within the configured fruit_warning window; nil otherwise.
type FoodDTO struct {
	X        int    `json:"x"`
	Y        int    `json:"y"`
	Type     string `json:"type"`
	Lifetime *int   `json:"lifetime"`
}

// GameDTO is the wire `game` snapshot. It carries no `mode` field, and
// neither does the `state` message that wraps it.
type GameDTO struct {
	Grid    GridDTO             `json:"grid"`
	Snakes  map[string]SnakeDTO `json:"snakes"`
	Foods   []FoodDTO           `json:"foods"`
	Running bool                `json:"running"`
	Winner  *int                `json:"winner"`
}

// ToDTO snapshots the game for the wire. warningAt is the fruit_warning
// threshold (ticks remaining) at or below which Lifetime is sent numerically.
func (g *Game) ToDTO(warningAt int) GameDTO {
	snakes := make(map[string]SnakeDTO, len(g.Snakes))
	for slot, s := range g.Snakes {
		body := make([][2]int, len(s.Body))
		for i, c := range s.Body {
			body[i] = [2]int{c.X, c.Y}
		}
		snakes[slotKey(slot)] = SnakeDTO{
			PlayerID:  int(slot),
			Body:      body,
			Direction: s.Direction.String(),
			Alive:     s.Alive,
			Buff:      "default",
		}
	}

	foods := make([]FoodDTO, len(g.Foods))
	for i, f := range g.Foods {
		dto := FoodDTO{X: f.X, Y: f.Y, Type: string(f.Type)}
		if f.Lifetime != InfiniteLifetime && f.Lifetime <= warningAt {
			v := f.Lifetime
			dto.Lifetime = &v
		}
		foods[i] = dto
	}

	var winner *int
	if g.Winner != nil {
		v := int(*g.Winner)
		winner = &v
	}

	return GameDTO{
		Grid:    GridDTO{Width: g.cfg.Width, Height: g.cfg.Height},
		Snakes:  snakes,
		Foods:   foods,
		Running: g.Running,
		Winner:  winner,
	}
}

func slotKey(slot Slot) string {
	if slot == Slot1 {
		return "1"
	}
	return "2"
}
