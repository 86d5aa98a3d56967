package server

import "github.com/gridclash/gridclash-node/pkg/protocol"

// Grid owns cell ownership, per-player scores and the claimed-cell counter.
// Ordinary play never un-claims a cell; only Reset clears ownership.
type Grid struct {
	cells   []uint8
	scores  [protocol.MaxPlayers]uint16
	claimed int
}

func NewGrid() *Grid {
	g := &Grid{cells: make([]uint8, protocol.GridCells)}
	for i := range g.cells {
		g.cells[i] = protocol.UnclaimedID
	}
	return g
}

// InBounds reports whether (row, col) addresses a cell.
func (g *Grid) InBounds(row, col uint8) bool {
	return int(row) < protocol.GridHeight && int(col) < protocol.GridWidth
}

// Owner returns the owner id of a cell, protocol.UnclaimedID if free.
func (g *Grid) Owner(row, col uint8) uint8 {
	return g.cells[int(row)*protocol.GridWidth+int(col)]
}

// Claim arbitrates one cell-claim attempt, first come first served:
// an unclaimed cell is assigned to the requester, a cell already owned by
// the requester is a success without mutation, a cell owned by anyone else
// fails. Callers must bounds-check first.
func (g *Grid) Claim(row, col uint8, id uint8) bool {
	idx := int(row)*protocol.GridWidth + int(col)
	switch g.cells[idx] {
	case protocol.UnclaimedID:
		g.cells[idx] = id
		g.scores[id]++
		g.claimed++
		return true
	case id:
		return true
	default:
		return false
	}
}

// Score returns one player's claimed-cell count.
func (g *Grid) Score(id uint8) uint16 {
	return g.scores[id]
}

// Claimed returns the total number of claimed cells.
func (g *Grid) Claimed() int {
	return g.claimed
}

// Capacity returns the total cell count.
func (g *Grid) Capacity() int {
	return protocol.GridCells
}

// WinReached reports whether the round is decided: the grid is full or any
// player holds at least half its capacity.
func (g *Grid) WinReached() bool {
	if g.claimed >= g.Capacity() {
		return true
	}
	for _, score := range g.scores {
		if int(score) >= g.Capacity()/2 {
			return true
		}
	}
	return false
}

// Winner returns the highest-scoring player. Candidates are evaluated in
// ascending id order and only a strictly greater score displaces the
// current best, so ties resolve to the lowest id.
func (g *Grid) Winner() (id uint8, score uint16) {
	for i, s := range g.scores {
		if s > score {
			id, score = uint8(i), s
		}
	}
	return
}

// Bytes returns the flat owner array. The slice is the live backing store;
// snapshot building copies it into the payload, never retains it.
func (g *Grid) Bytes() []byte {
	return g.cells
}

// Reset clears all ownership, scores and the claim counter.
func (g *Grid) Reset() {
	for i := range g.cells {
		g.cells[i] = protocol.UnclaimedID
	}
	g.scores = [protocol.MaxPlayers]uint16{}
	g.claimed = 0
}
