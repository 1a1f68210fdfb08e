// Command copperhead-server runs the CopperHead tournament server:
// flags and an optional JSON spec_file build a config.Config, which
// wires a gateway.Server and blocks on ListenAndServe.
//
// Grounded on rswebdev-schlangen/server/main.go's flag-parsing/config
// layering shape (defaults -> file -> explicitly set flag overrides) and
// sonpython-slether/server/main.go's startup log line style.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/revodavid/copperhead-server/internal/config"
	"github.com/revodavid/copperhead-server/internal/gateway"
)

func main() {
	arenas := flag.Int("arenas", 0, "number of parallel arenas (default 1)")
	pointsToWin := flag.Int("points-to-win", 0, "games to win a match (default 5)")
	resetDelay := flag.Float64("reset-delay", -1, "seconds to pause after a champion before resetting (default 10)")
	gridSize := flag.String("grid-size", "", "grid dimensions WxH (default 30x20)")
	speed := flag.Float64("speed", 0, "seconds per tick (default 0.15)")
	bots := flag.Int("bots", -1, "bot count to record for an external spawner (default 0)")
	host := flag.String("host", "", "listen host")
	port := flag.Int("port", 0, "listen port (default 8765)")
	flag.Parse()

	log.SetFlags(log.Ldate | log.Ltime)

	cfg := config.Default()

	specFile := flag.Arg(0)
	if specFile == "" {
		if _, err := os.Stat(config.DefaultServerSettingsFile); err == nil {
			specFile = config.DefaultServerSettingsFile
		}
	}
	if specFile != "" {
		loaded, err := config.LoadFile(cfg, specFile)
		if err != nil {
			log.Printf("config: %v; continuing with defaults", err)
		} else {
			cfg = loaded
			log.Printf("loaded config from %s", specFile)
		}
	}

	if *arenas > 0 {
		cfg.Arenas = *arenas
	}
	if *pointsToWin > 0 {
		cfg.PointsToWin = *pointsToWin
	}
	if *resetDelay >= 0 {
		cfg.ResetDelay = *resetDelay
	}
	if *gridSize != "" {
		w, h, err := parseGridSize(*gridSize)
		if err != nil {
			log.Fatalf("config: --grid-size: %v", err)
		}
		cfg.GridWidth, cfg.GridHeight = w, h
	}
	if *speed > 0 {
		cfg.Speed = *speed
	}
	if *bots >= 0 {
		cfg.Bots = *bots
	}
	if *host != "" {
		cfg.Host = *host
	}
	if *port > 0 {
		cfg.Port = *port
	}

	if err := config.Validate(cfg); err != nil {
		log.Fatalf("config: %v", err)
	}

	log.Printf("config: arenas=%d points_to_win=%d grid=%dx%d speed=%.3f bots=%d",
		cfg.Arenas, cfg.PointsToWin, cfg.GridWidth, cfg.GridHeight, cfg.Speed, cfg.Bots)

	srv := gateway.NewServer(cfg)
	log.Fatal(srv.ListenAndServe())
}

func parseGridSize(s string) (int, int, error) {
	var w, h int
	if _, err := fmt.Sscanf(s, "%dx%d", &w, &h); err != nil {
		return 0, 0, fmt.Errorf("expected WxH, got %q", s)
	}
	return w, h, nil
}
