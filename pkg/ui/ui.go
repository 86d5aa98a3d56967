// Package ui renders a GridClash client in the terminal with termbox and
// turns arrow keys into cell claims.
package ui

import (
	"fmt"
	"time"

	termbox "github.com/nsf/termbox-go"

	"github.com/gridclash/gridclash-node/pkg/client"
	"github.com/gridclash/gridclash-node/pkg/protocol"
)

const cellWidth = 2 // terminal columns per grid cell

var playerColors = [protocol.MaxPlayers]termbox.Attribute{
	termbox.ColorRed,
	termbox.ColorBlue,
	termbox.ColorGreen,
	termbox.ColorYellow,
}

// UI owns the terminal for the lifetime of Run.
type UI struct {
	c *client.GridClient
}

func New(c *client.GridClient) *UI {
	return &UI{c: c}
}

// Run draws frames and handles input until the player quits. It drives the
// client's socket poll and heartbeat from the frame loop.
func (u *UI) Run() error {
	if err := termbox.Init(); err != nil {
		return fmt.Errorf("failed to init terminal: %v", err)
	}
	defer termbox.Close()

	events := make(chan termbox.Event, 8)
	go func() {
		for {
			ev := termbox.PollEvent()
			events <- ev
			if ev.Type == termbox.EventInterrupt {
				return
			}
		}
	}()

	u.c.Join()

	frame := time.NewTicker(33 * time.Millisecond)
	defer frame.Stop()
	last := time.Now()

	for {
		select {
		case ev := <-events:
			if ev.Type == termbox.EventKey && !u.handleKey(ev) {
				termbox.Interrupt()
				return nil
			}
		case now := <-frame.C:
			u.c.Poll()
			u.c.SendHeartbeatIfDue(now)
			u.c.UpdateVisuals(now.Sub(last).Seconds())
			last = now
			u.draw()
		}
	}
}

// handleKey returns false when the player quits.
func (u *UI) handleKey(ev termbox.Event) bool {
	x, y := u.c.Position()

	switch {
	case ev.Key == termbox.KeyEsc, ev.Ch == 'q':
		return false
	case ev.Key == termbox.KeyArrowUp:
		u.claim(y-1, x)
	case ev.Key == termbox.KeyArrowDown:
		u.claim(y+1, x)
	case ev.Key == termbox.KeyArrowLeft:
		u.claim(y, x-1)
	case ev.Key == termbox.KeyArrowRight:
		u.claim(y, x+1)
	case ev.Ch == 'n':
		u.c.RequestNewGame()
	}
	return true
}

func (u *UI) claim(row, col int32) {
	if row < 0 || col < 0 || row >= protocol.GridHeight || col >= protocol.GridWidth {
		return
	}
	u.c.RequestClaim(uint8(row), uint8(col))
}

func (u *UI) draw() {
	termbox.Clear(termbox.ColorDefault, termbox.ColorDefault)

	grid := u.c.GridCopy()
	for row := 0; row < protocol.GridHeight; row++ {
		for col := 0; col < protocol.GridWidth; col++ {
			owner := grid[row*protocol.GridWidth+col]
			bg := termbox.ColorDefault
			ch := '·'
			if owner != protocol.UnclaimedID {
				bg = playerColors[owner%protocol.MaxPlayers]
				ch = ' '
			}
			for i := 0; i < cellWidth; i++ {
				termbox.SetCell(col*cellWidth+i, row+1, ch, termbox.ColorWhite, bg)
			}
		}
	}

	// Smoothed player markers over the grid.
	self := u.c.PlayerID()
	for id, v := range u.c.VisualPositions() {
		ch := 'o'
		if id == self {
			ch = '@'
		}
		x := int(v.X*cellWidth + 0.5)
		y := int(v.Y+0.5) + 1
		termbox.SetCell(x, y, ch, termbox.ColorWhite|termbox.AttrBold, playerColors[id%protocol.MaxPlayers])
	}

	u.drawText(0, 0, u.scoreLine())

	if u.c.ServerFull() {
		u.drawText(0, protocol.GridHeight+2, "server full. q to quit")
	} else if over, winner, score := u.c.GameOver(); over {
		u.drawText(0, protocol.GridHeight+2, fmt.Sprintf("game over! player %d wins with %d cells. n for new game, q to quit", winner, score))
	} else {
		u.drawText(0, protocol.GridHeight+2, "arrows to claim, n for new game, q to quit")
	}

	termbox.Flush()
}

func (u *UI) scoreLine() string {
	line := fmt.Sprintf("you are player %d |", u.c.PlayerID())
	scores := u.c.Scores()
	for id := uint8(0); id < protocol.MaxPlayers; id++ {
		if s, ok := scores[id]; ok {
			line += fmt.Sprintf(" p%d:%d", id, s)
		}
	}
	return line
}

func (u *UI) drawText(x, y int, s string) {
	for i, ch := range s {
		termbox.SetCell(x+i, y, ch, termbox.ColorWhite, termbox.ColorDefault)
	}
}
