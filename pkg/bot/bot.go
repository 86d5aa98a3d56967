// Package bot implements an automated GridClash player that walks to the
// nearest unclaimed cell and claims its way there.
package bot

import (
	"log"
	"time"

	"github.com/gridclash/gridclash-node/pkg/client"
	"github.com/gridclash/gridclash-node/pkg/protocol"
)

// Config holds bot configuration
type Config struct {
	// MoveInterval paces the claim attempts.
	MoveInterval time.Duration

	// AutoRestart requests a new round after GAME_OVER.
	AutoRestart bool
}

// DefaultConfig returns default bot configuration
func DefaultConfig() *Config {
	return &Config{
		MoveInterval: 150 * time.Millisecond,
	}
}

type cell struct {
	Row, Col uint8
}

// Bot drives one client toward unclaimed territory. It replans whenever the
// queued path runs out or a claim along it fails.
type Bot struct {
	c   *client.GridClient
	cfg *Config

	path          []cell
	lastRestart   time.Time
	restartPeriod time.Duration
}

func New(c *client.GridClient, cfg *Config) *Bot {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Bot{c: c, cfg: cfg, restartPeriod: 2 * time.Second}
}

// Run joins and plays until the stop channel closes. The loop owns the
// client: it polls the socket, keeps the heartbeat alive and paces moves.
func (b *Bot) Run(stop <-chan struct{}) {
	b.c.Join()

	ticker := time.NewTicker(b.cfg.MoveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		b.c.Poll()
		b.c.SendHeartbeatIfDue(time.Now())
		if b.c.ServerFull() {
			log.Printf("[BOT] server full, giving up")
			return
		}
		if !b.c.Joined() {
			b.c.Join()
			continue
		}
		b.Step(time.Now())
	}
}

// Step performs at most one claim attempt. Exposed so an embedding process
// (the play command) can pace several bots off one loop.
func (b *Bot) Step(now time.Time) {
	if len(b.c.FailedClaims()) > 0 {
		// Somebody took a cell on our route; the plan is stale.
		b.path = nil
	}

	if over, _, _ := b.c.GameOver(); over {
		if b.cfg.AutoRestart && now.Sub(b.lastRestart) >= b.restartPeriod {
			b.lastRestart = now
			b.c.RequestNewGame()
		}
		return
	}

	if len(b.path) == 0 {
		x, y := b.c.Position()
		path, ok := planPath(b.c.GridCopy(), b.c.PlayerID(), cell{Row: uint8(y), Col: uint8(x)})
		if !ok {
			return
		}
		b.path = path
	}

	next := b.path[0]
	b.path = b.path[1:]
	b.c.RequestClaim(next.Row, next.Col)
}

// planPath runs a breadth-first search from start to the nearest unclaimed
// cell. Own and unclaimed cells are walkable, everything owned by an
// opponent is an obstacle. The returned path excludes the start cell.
func planPath(grid []uint8, self uint8, start cell) ([]cell, bool) {
	owner := func(c cell) uint8 {
		return grid[int(c.Row)*protocol.GridWidth+int(c.Col)]
	}
	walkable := func(c cell) bool {
		o := owner(c)
		return o == protocol.UnclaimedID || o == self
	}

	if !walkable(start) {
		return nil, false
	}
	if owner(start) == protocol.UnclaimedID {
		// Standing on free territory; claim it before moving anywhere.
		return []cell{start}, true
	}

	visited := make(map[cell]bool, protocol.GridCells)
	parent := make(map[cell]cell)
	queue := []cell{start}
	visited[start] = true

	var goal cell
	found := false
	for len(queue) > 0 && !found {
		cur := queue[0]
		queue = queue[1:]

		if owner(cur) == protocol.UnclaimedID {
			goal = cur
			found = true
			break
		}

		for _, n := range neighbors(cur) {
			if visited[n] || !walkable(n) {
				continue
			}
			visited[n] = true
			parent[n] = cur
			queue = append(queue, n)
		}
	}
	if !found {
		return nil, false
	}

	var path []cell
	for at := goal; at != start; at = parent[at] {
		path = append(path, at)
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path, true
}

func neighbors(c cell) []cell {
	var out []cell
	if c.Row > 0 {
		out = append(out, cell{Row: c.Row - 1, Col: c.Col})
	}
	if int(c.Row) < protocol.GridHeight-1 {
		out = append(out, cell{Row: c.Row + 1, Col: c.Col})
	}
	if c.Col > 0 {
		out = append(out, cell{Row: c.Row, Col: c.Col - 1})
	}
	if int(c.Col) < protocol.GridWidth-1 {
		out = append(out, cell{Row: c.Row, Col: c.Col + 1})
	}
	return out
}
