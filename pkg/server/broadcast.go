package server

import (
	"net"
	"time"

	"github.com/gridclash/gridclash-node/pkg/protocol"
)

// buildSnapshotPayload assembles the full-state snapshot: the whole owner
// grid plus every connected player's score, position and since-last-broadcast
// delta. When advance is true the delta reference is moved forward, which
// must happen exactly once per broadcast tick.
func (s *GridServer) buildSnapshotPayload(sessions []*Session, advance bool) []byte {
	snap := protocol.Snapshot{
		Grid:    s.grid.Bytes(),
		Players: make([]protocol.SnapshotPlayer, 0, len(sessions)),
	}
	for _, sess := range sessions {
		snap.Players = append(snap.Players, protocol.SnapshotPlayer{
			ID:    sess.PlayerID,
			Score: s.grid.Score(sess.PlayerID),
			X:     sess.X,
			Y:     sess.Y,
			DX:    sess.X - sess.PrevX,
			DY:    sess.Y - sess.PrevY,
		})
		if advance {
			sess.PrevX, sess.PrevY = sess.X, sess.Y
		}
	}
	return snap.Encode()
}

// broadcast sends the current state to every connected session. The
// snapshot id is shared across recipients; the sequence number is
// per-connection. With no sessions the tick is skipped entirely so the
// snapshot id only advances when somebody can observe it.
func (s *GridServer) broadcast(now time.Time) {
	sessions := s.registry.All()
	if len(sessions) == 0 {
		return
	}

	s.snapshotID++
	payload := s.buildSnapshotPayload(sessions, true)
	ts := uint64(now.UnixMilli())

	for _, sess := range sessions {
		sess.SeqNum++
		data := protocol.Pack(protocol.MsgTypeSnapshot, s.snapshotID, sess.SeqNum, ts, payload)
		s.out.WriteToUDP(data, sess.Addr)
	}
	s.metrics.BroadcastsSent.Inc()
	s.updateStatus()
}

// sendStateTo sends the current snapshot to a peer without a session, so a
// late joiner can render the final board. Deltas are not advanced and no
// per-connection sequence exists; seq 0 is used.
func (s *GridServer) sendStateTo(addr *net.UDPAddr, now time.Time) {
	payload := s.buildSnapshotPayload(s.registry.All(), false)
	data := protocol.Pack(protocol.MsgTypeSnapshot, s.snapshotID, 0, uint64(now.UnixMilli()), payload)
	s.out.WriteToUDP(data, addr)
}
