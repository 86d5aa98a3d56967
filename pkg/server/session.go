package server

import (
	"net"
	"time"

	"github.com/gridclash/gridclash-node/pkg/protocol"
)

// Session is the per-peer connection state. All fields are owned by the
// authority's single goroutine; nothing outside the registry aliases them.
type Session struct {
	PlayerID uint8
	Addr     *net.UDPAddr

	// SeqNum is this connection's outbound broadcast counter.
	SeqNum uint32

	LastHeartbeat time.Time

	// Current cursor cell and the position sent in the previous broadcast
	// (the delta-encoding reference).
	X, Y         int32
	PrevX, PrevY int32

	SpawnX, SpawnY int32

	// processed maps an inbound request sequence number to the outcome it
	// was answered with, so a retransmitted duplicate is re-acked without
	// reapplying the mutation.
	processed map[uint32]bool
}

// Outcome returns the cached ACK/NACK result for a request sequence number.
func (s *Session) Outcome(seq uint32) (success, seen bool) {
	success, seen = s.processed[seq]
	return
}

// MarkProcessed caches the outcome computed for a request sequence number.
func (s *Session) MarkProcessed(seq uint32, success bool) {
	s.processed[seq] = success
}

// Registry holds the live sessions, keyed by peer address. It is owned
// exclusively by the GridServer loop.
type Registry struct {
	byAddr map[string]*Session
	byID   [protocol.MaxPlayers]*Session
}

func NewRegistry() *Registry {
	return &Registry{byAddr: make(map[string]*Session)}
}

// Lookup returns the session bound to a peer address.
func (r *Registry) Lookup(addr *net.UDPAddr) (*Session, bool) {
	s, ok := r.byAddr[addr.String()]
	return s, ok
}

// ByID returns the live session holding a player id.
func (r *Registry) ByID(id uint8) (*Session, bool) {
	if int(id) >= len(r.byID) || r.byID[id] == nil {
		return nil, false
	}
	return r.byID[id], true
}

// Add creates a session for addr with the lowest unused player id.
// Returns nil when every slot is taken.
func (r *Registry) Add(addr *net.UDPAddr, now time.Time) *Session {
	for id := range r.byID {
		if r.byID[id] != nil {
			continue
		}
		s := &Session{
			PlayerID:      uint8(id),
			Addr:          addr,
			LastHeartbeat: now,
			processed:     make(map[uint32]bool),
		}
		r.byID[id] = s
		r.byAddr[addr.String()] = s
		return s
	}
	return nil
}

// Evict removes a session and frees its id for reuse by a future join.
func (r *Registry) Evict(s *Session) {
	delete(r.byAddr, s.Addr.String())
	r.byID[s.PlayerID] = nil
}

// Count returns the number of live sessions.
func (r *Registry) Count() int {
	return len(r.byAddr)
}

// All returns the live sessions in ascending player-id order, which keeps
// broadcast payloads and winner evaluation deterministic.
func (r *Registry) All() []*Session {
	out := make([]*Session, 0, len(r.byAddr))
	for _, s := range r.byID {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

// Expired returns sessions whose last heartbeat is older than timeout.
func (r *Registry) Expired(now time.Time, timeout time.Duration) []*Session {
	var out []*Session
	for _, s := range r.byID {
		if s != nil && now.Sub(s.LastHeartbeat) > timeout {
			out = append(out, s)
		}
	}
	return out
}

// Rearm resets a session for a new round while keeping its address-to-id
// binding and returning the cursor to the original spawn cell.
func (s *Session) Rearm(now time.Time) {
	s.SeqNum = 0
	s.LastHeartbeat = now
	s.X, s.Y = s.SpawnX, s.SpawnY
	s.PrevX, s.PrevY = s.SpawnX, s.SpawnY
	s.processed = make(map[uint32]bool)
}
