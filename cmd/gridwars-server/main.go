// Command gridwars-server is the authoritative game server entrypoint:
// it loads configuration, decodes the default board, wires the actor
// engine and HTTP/WebSocket listener, and serves until interrupted.
package main

import (
	"flag"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nullterm/gridwars/actor"
	"github.com/nullterm/gridwars/board"
	"github.com/nullterm/gridwars/broadcast"
	"github.com/nullterm/gridwars/config"
	"github.com/nullterm/gridwars/connection"
	"github.com/nullterm/gridwars/gamestate"
	"github.com/nullterm/gridwars/spawn"
	"github.com/nullterm/gridwars/world"
	"github.com/nullterm/gridwars/wsserver"
)

// defaultMap is the board shipped when no -board flag is given: a
// bordered arena with two spawn points in opposite corners.
const defaultMap = `
##########
#S.......#
#........#
#........#
#...##...#
#...##...#
#........#
#........#
#.......S#
##########
`

func main() {
	configPath := flag.String("config", "", "path to a gridwars config file (yaml/json/toml)")
	boardPath := flag.String("board", "", "path to an ASCII board file ('#' wall, 'S' spawn, '.' floor)")
	flag.Parse()

	logrus.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.Load(*configPath)
	if err != nil {
		logrus.WithError(err).Fatal("load config")
	}

	mapSource := defaultMap
	if *boardPath != "" {
		raw, err := os.ReadFile(*boardPath)
		if err != nil {
			logrus.WithError(err).Fatal("read board file")
		}
		mapSource = string(raw)
	}
	b := decodeBoard(mapSource)
	logrus.WithFields(logrus.Fields{
		"width":  b.Width(),
		"height": b.Height(),
	}).Info("board decoded")

	state := gamestate.New(b)
	spawner := spawn.New(b, cfg.SpawnMaxCount, cfg.SpawnClearRadius)
	conns := connection.New(64)

	engine := actor.NewEngine()
	logrus.Info("actor engine created")

	worldPID := engine.Spawn(world.NewProducer(engine, state, spawner, conns, cfg.WaitMessage, cfg.GraceMs))
	if worldPID == nil {
		logrus.Fatal("failed to spawn world actor")
	}
	time.Sleep(50 * time.Millisecond) // let Started run before traffic arrives

	broadcastPID := engine.Spawn(broadcast.NewProducer(engine, state, conns, cfg.UpdateInterval))
	if broadcastPID == nil {
		logrus.Fatal("failed to spawn broadcaster")
	}

	livenessPID := engine.Spawn(wsserver.NewLivenessProducer(engine, conns, cfg.PingInterval, cfg.PongTimeout))
	if livenessPID == nil {
		logrus.Fatal("failed to spawn liveness sweeper")
	}

	askTimeout := 5 * time.Second
	srv := wsserver.New(engine, worldPID, conns, askTimeout)

	http.HandleFunc("/", wsserver.HandleHealthCheck())
	http.HandleFunc("/health-check/", wsserver.HandleHealthCheck())
	http.HandleFunc("/status/", srv.HandleGetStatus())
	http.Handle("/subscribe", srv.HandleSubscribe())

	addr := cfg.Host + ":" + portOrDefault(cfg.Port)
	logrus.WithField("addr", addr).Info("server starting")

	if err := http.ListenAndServe(addr, nil); err != nil {
		logrus.WithError(err).Warn("server stopped")
		logrus.Info("shutting down engine")
		engine.Shutdown(5 * time.Second)
		logrus.Info("engine shutdown complete")
	}
}

func portOrDefault(p int) string {
	if p <= 0 {
		return "8080"
	}
	return strconv.Itoa(p)
}

// decodeBoard parses a newline-delimited ASCII map: '#' is wall, 'S'
// is a spawn point (also floor), anything else is floor. Leading/
// trailing blank lines are trimmed so a Go raw string literal can
// indent the map cleanly.
func decodeBoard(src string) *board.Board {
	lines := strings.Split(src, "\n")
	for len(lines) > 0 && isBlank(lines[0]) {
		lines = lines[1:]
	}
	for len(lines) > 0 && isBlank(lines[len(lines)-1]) {
		lines = lines[:len(lines)-1]
	}

	height := len(lines)
	width := 0
	for _, l := range lines {
		if len(l) > width {
			width = len(l)
		}
	}

	grid := make([][]rune, height)
	var spawns []board.Point
	for y, l := range lines {
		row := make([]rune, width)
		runes := []rune(l)
		for x := 0; x < width; x++ {
			if x >= len(runes) {
				row[x] = ' '
				continue
			}
			c := runes[x]
			switch c {
			case '#':
				row[x] = '#'
			case 'S':
				row[x] = ' '
				spawns = append(spawns, board.Point{X: x, Y: y})
			default:
				row[x] = ' '
			}
		}
		grid[y] = row
	}

	return board.New(width, height, grid, spawns)
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
