// Command gridwars-client is a terminal client: raw-mode WASD input,
// an ASCII renderer, and the prediction/reconciliation/interpolation
// pipeline wired through clientloop.Loop.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"github.com/nullterm/gridwars/clientloop"
	"github.com/nullterm/gridwars/config"
	"github.com/nullterm/gridwars/netclient"
	"github.com/nullterm/gridwars/protocol"
)

func main() {
	url := flag.String("url", "ws://localhost:8080/subscribe", "server websocket URL")
	origin := flag.String("origin", "http://localhost/", "websocket origin header")
	name := flag.String("name", "", "player display name")
	configPath := flag.String("config", "", "path to a gridwars config file (yaml/json/toml)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Println("load config:", err)
		os.Exit(1)
	}

	input := newTerminalInput()
	saved, err := setRawMode(os.Stdin.Fd())
	if err != nil {
		fmt.Println("set raw mode:", err)
		os.Exit(1)
	}
	defer restoreMode(os.Stdin.Fd(), saved)

	interrupts := make(chan os.Signal, 1)
	signal.Notify(interrupts, os.Interrupt)
	go func() {
		<-interrupts
		restoreMode(os.Stdin.Fd(), saved)
		os.Exit(0)
	}()

	rend := &terminalRenderer{}

	var loop *clientloop.Loop
	client := netclient.New(netclient.Options{
		URL:                *url,
		Origin:             *origin,
		PlayerName:         *name,
		ReconnectEnabled:   cfg.ReconnectEnabled,
		MaxAttempts:        cfg.MaxAttempts,
		RetryDelay:         cfg.RetryDelay,
		ExponentialBackoff: cfg.ExponentialBackoff,
		MaxRetryDelay:      cfg.MaxRetryDelay,
	}, netclient.Callbacks{
		OnMessage: func(msg protocol.Message) {
			loop.HandleMessage(msg)
		},
		OnDisconnect: func(err error) {
			fmt.Println("\r\ndisconnected:", err)
		},
		OnReconnecting: func(attempt int, delay time.Duration) {
			fmt.Printf("\r\nreconnecting (attempt %d) in %s...\n", attempt, delay)
		},
	})

	loop = clientloop.New(client, input, rend, clientloop.Options{
		RemoteBufferMax:     cfg.RemoteBufferMax,
		InterpolationDelay:  cfg.InterpolationDelay,
		ExtrapolationMaxMs:  cfg.ExtrapolationMaxMs,
		ReconciliationEvery: cfg.ReconciliationInterval,
	})

	go func() {
		if err := client.Run(); err != nil {
			fmt.Println("\r\nconnection ended:", err)
			restoreMode(os.Stdin.Fd(), saved)
			os.Exit(1)
		}
	}()

	ticker := time.NewTicker(cfg.InterpolationTick)
	defer ticker.Stop()
	for range ticker.C {
		if err := loop.Tick(time.Now()); err != nil {
			fmt.Println("render:", err)
		}
	}
}

func setRawMode(fd uintptr) (*unix.Termios, error) {
	settings, err := unix.IoctlGetTermios(int(fd), unix.TCGETS)
	if err != nil {
		return nil, err
	}
	saved := *settings
	settings.Iflag &^= unix.BRKINT | unix.ICRNL | unix.INPCK | unix.ISTRIP | unix.IXON
	settings.Oflag &^= unix.OPOST
	settings.Lflag &^= unix.ECHO | unix.ICANON | unix.IEXTEN | unix.ISIG
	settings.Cflag &^= unix.CSIZE | unix.PARENB
	settings.Cflag |= unix.CS8

	if err := unix.IoctlSetTermios(int(fd), unix.TCSETS, settings); err != nil {
		return nil, err
	}
	return &saved, nil
}

func restoreMode(fd uintptr, saved *unix.Termios) {
	if saved != nil {
		_ = unix.IoctlSetTermios(int(fd), unix.TCSETS, saved)
	}
}

// terminalInput reads single keystrokes off stdin on its own
// goroutine and exposes the oldest queued direction via Poll, the
// non-blocking shape clientloop.Loop.Tick needs.
type terminalInput struct {
	moves chan struct{ dx, dy int }
}

func newTerminalInput() *terminalInput {
	in := &terminalInput{moves: make(chan struct{ dx, dy int }, 8)}
	go in.readStdin()
	return in
}

func (in *terminalInput) readStdin() {
	buf := make([]byte, 1)
	for {
		if _, err := os.Stdin.Read(buf); err != nil {
			return
		}
		var dx, dy int
		switch buf[0] {
		case 'w', 'W':
			dy = -1
		case 's', 'S':
			dy = 1
		case 'a', 'A':
			dx = -1
		case 'd', 'D':
			dx = 1
		case 'q', 'Q', 3:
			os.Exit(0)
		default:
			continue
		}
		select {
		case in.moves <- struct{ dx, dy int }{dx, dy}:
		default:
		}
	}
}

func (in *terminalInput) Poll() (dx, dy int, ok bool) {
	select {
	case m := <-in.moves:
		return m.dx, m.dy, true
	default:
		return 0, 0, false
	}
}

// terminalRenderer draws the board, overlaying the local player as
// '@' and remotes as their name's first letter, clearing the screen
// each frame the way the teacher's render.ClearScreen does.
type terminalRenderer struct{}

func (r *terminalRenderer) Render(state clientloop.RenderState) error {
	clearScreen()
	if state.Board == nil {
		fmt.Println("waiting for game state...")
		if state.WaitMessage != "" {
			fmt.Println(state.WaitMessage)
		}
		return nil
	}

	width, height := state.Board.Width(), state.Board.Height()
	cells := make([][]byte, height)
	for y := 0; y < height; y++ {
		row := make([]byte, width)
		for x := 0; x < width; x++ {
			if state.Board.IsWall(x, y) {
				row[x] = '#'
			} else {
				row[x] = '.'
			}
		}
		cells[y] = row
	}

	for _, rv := range state.Remotes {
		x, y := int(rv.X+0.5), int(rv.Y+0.5)
		if y >= 0 && y < height && x >= 0 && x < width {
			glyph := byte('*')
			if rv.PlayerName != "" {
				glyph = strings.ToUpper(rv.PlayerName)[0]
			}
			cells[y][x] = glyph
		}
	}
	if state.LocalHasPos {
		x, y := int(state.LocalX+0.5), int(state.LocalY+0.5)
		if y >= 0 && y < height && x >= 0 && x < width {
			cells[y][x] = '@'
		}
	}

	var b strings.Builder
	for _, row := range cells {
		b.Write(row)
		b.WriteByte('\n')
	}
	fmt.Printf("score: %d\n", state.Score)
	fmt.Print(b.String())
	return nil
}

func clearScreen() {
	fmt.Print("\x1b[H\x1b[2J")
}
