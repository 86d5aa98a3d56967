package server

import (
	"net"
	"testing"
	"time"

	"github.com/gridclash/gridclash-node/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureWriter records every outbound packet instead of hitting the socket.
type captureWriter struct {
	sent []capturedPacket
}

type capturedPacket struct {
	addr *net.UDPAddr
	pkt  *protocol.Packet
}

func (w *captureWriter) WriteToUDP(b []byte, addr *net.UDPAddr) (int, error) {
	pkt, err := protocol.Unpack(b)
	if err != nil {
		return 0, err
	}
	w.sent = append(w.sent, capturedPacket{addr: addr, pkt: pkt})
	return len(b), nil
}

// ofType returns captured packets of one message type, in send order.
func (w *captureWriter) ofType(kind protocol.MsgType) []capturedPacket {
	var out []capturedPacket
	for _, c := range w.sent {
		if c.pkt.Header.Type == kind {
			out = append(out, c)
		}
	}
	return out
}

func newTestServer(t *testing.T) (*GridServer, *captureWriter) {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Port = 0
	cfg.Seed = 1

	s, err := NewGridServer(cfg, nil)
	require.NoError(t, err)
	t.Cleanup(s.Stop)

	w := &captureWriter{}
	s.out = w
	return s, w
}

func join(t *testing.T, s *GridServer, port int) *Session {
	t.Helper()
	addr := testAddr(port)
	s.handleClientInit(addr, time.Now())
	sess, ok := s.registry.Lookup(addr)
	require.True(t, ok, "join from %s should create a session", addr)
	return sess
}

func acquire(s *GridServer, sess *Session, seq uint32, row, col uint8) {
	pkt := &protocol.Packet{
		Header: protocol.Header{
			Magic:   protocol.ProtocolMagic,
			Version: protocol.ProtocolVersion,
			Type:    protocol.MsgTypeAcquireRequest,
			SeqNum:  seq,
		},
		Payload: (&protocol.AcquireRequest{Row: row, Col: col, ClientTimestamp: protocol.NowUnixMilli()}).Encode(),
	}
	s.handleAcquire(pkt, sess.Addr, time.Now())
}

func TestJoinClaimsSpawnCell(t *testing.T) {
	s, w := newTestServer(t)

	sess := join(t, s, 6000)
	assert.Equal(t, uint8(0), sess.PlayerID)

	resps := w.ofType(protocol.MsgTypeServerInitResponse)
	require.Len(t, resps, 1)
	var resp protocol.ServerInitResponse
	require.NoError(t, resp.Decode(resps[0].pkt.Payload))
	assert.Equal(t, uint8(0), resp.PlayerID)
	assert.Equal(t, sess.SpawnX, resp.SpawnX)
	assert.Equal(t, sess.SpawnY, resp.SpawnY)

	// The spawn cell is claimed on join, so the player starts at score 1.
	assert.Equal(t, uint8(0), s.grid.Owner(uint8(resp.SpawnY), uint8(resp.SpawnX)))
	assert.Equal(t, uint16(1), s.grid.Score(0))
	assert.Equal(t, 1, s.grid.Claimed())
}

func TestJoinDuplicateAddressIgnored(t *testing.T) {
	s, w := newTestServer(t)

	join(t, s, 6000)
	before := len(w.sent)
	s.handleClientInit(testAddr(6000), time.Now())

	assert.Equal(t, 1, s.registry.Count())
	assert.Equal(t, before, len(w.sent), "duplicate join must not be answered")
}

func TestFifthJoinGetsServerFull(t *testing.T) {
	s, w := newTestServer(t)

	for i := 0; i < protocol.MaxPlayers; i++ {
		join(t, s, 6000+i)
	}
	s.handleClientInit(testAddr(6004), time.Now())

	assert.Equal(t, protocol.MaxPlayers, s.registry.Count())
	full := w.ofType(protocol.MsgTypeServerFull)
	require.Len(t, full, 1)
	assert.Equal(t, testAddr(6004).String(), full[0].addr.String())
}

func TestAcquireUnclaimedCellAcked(t *testing.T) {
	s, w := newTestServer(t)
	sess := join(t, s, 6000)

	// Spawns sit well inside the corner regions, so (0,1) is always free.
	acquire(s, sess, 1, 0, 1)

	acks := w.ofType(protocol.MsgTypeAck)
	require.Len(t, acks, 1)
	var ack protocol.AckPayload
	require.NoError(t, ack.Decode(acks[0].pkt.Payload))
	assert.Equal(t, uint32(1), ack.Seq)
	assert.True(t, ack.Success)

	assert.Equal(t, uint8(0), s.grid.Owner(0, 1))
	assert.Equal(t, uint16(2), s.grid.Score(0), "spawn plus one claim")
	assert.Equal(t, int32(1), sess.X)
	assert.Equal(t, int32(0), sess.Y)
}

func TestAcquireOwnCellSucceedsWithoutScoring(t *testing.T) {
	s, w := newTestServer(t)
	sess := join(t, s, 6000)

	acquire(s, sess, 1, 0, 1)
	acquire(s, sess, 2, 0, 1)

	acks := w.ofType(protocol.MsgTypeAck)
	require.Len(t, acks, 2)
	var ack protocol.AckPayload
	require.NoError(t, ack.Decode(acks[1].pkt.Payload))
	assert.True(t, ack.Success)
	assert.Equal(t, uint16(2), s.grid.Score(0))
}

func TestAcquireDuplicateSeqReacksWithoutReapplying(t *testing.T) {
	s, w := newTestServer(t)
	sess := join(t, s, 6000)

	acquire(s, sess, 1, 0, 1)
	score := s.grid.Score(0)

	// Retransmission of the same request sequence number.
	acquire(s, sess, 1, 0, 1)

	acks := w.ofType(protocol.MsgTypeAck)
	require.Len(t, acks, 2)
	for _, c := range acks {
		var ack protocol.AckPayload
		require.NoError(t, ack.Decode(c.pkt.Payload))
		assert.Equal(t, uint32(1), ack.Seq)
		assert.True(t, ack.Success)
	}
	assert.Equal(t, score, s.grid.Score(0), "duplicate must not re-score")
}

func TestAcquireContestedCellNacked(t *testing.T) {
	s, w := newTestServer(t)
	a := join(t, s, 6000)
	b := join(t, s, 6001)

	acquire(s, a, 1, 0, 1)
	acquire(s, b, 1, 0, 1)

	nacks := w.ofType(protocol.MsgTypeNack)
	require.Len(t, nacks, 1)
	assert.Equal(t, b.Addr.String(), nacks[0].addr.String())
	var nack protocol.AckPayload
	require.NoError(t, nack.Decode(nacks[0].pkt.Payload))
	assert.Equal(t, uint32(1), nack.Seq)
	assert.False(t, nack.Success)

	assert.Equal(t, uint8(0), s.grid.Owner(0, 1), "first claimant keeps the cell")
	// The loser's position still follows its reported cursor.
	assert.Equal(t, int32(1), b.X)
	assert.Equal(t, int32(0), b.Y)
}

func TestAcquireOutOfBoundsIgnored(t *testing.T) {
	s, w := newTestServer(t)
	sess := join(t, s, 6000)
	before := len(w.sent)

	acquire(s, sess, 1, protocol.GridHeight, 0)

	assert.Equal(t, before, len(w.sent), "out-of-bounds request gets no reply")
	_, seen := sess.Outcome(1)
	assert.False(t, seen)
}

// driveToWin claims unclaimed cells for sess until one more successful claim
// would decide the round, then returns a still-unclaimed cell.
func driveToWin(t *testing.T, s *GridServer, sess *Session) (row, col uint8) {
	t.Helper()
	target := s.grid.Capacity()/2 - 1
	for r := 0; r < protocol.GridHeight; r++ {
		for c := 0; c < protocol.GridWidth; c++ {
			if int(s.grid.Score(sess.PlayerID)) >= target {
				if s.grid.Owner(uint8(r), uint8(c)) == protocol.UnclaimedID {
					return uint8(r), uint8(c)
				}
				continue
			}
			s.grid.Claim(uint8(r), uint8(c), sess.PlayerID)
		}
	}
	t.Fatal("no unclaimed cell left to win with")
	return 0, 0
}

func TestWinBroadcastsGameOverOnceAndFreezesClaims(t *testing.T) {
	s, w := newTestServer(t)
	a := join(t, s, 6000)
	b := join(t, s, 6001)

	row, col := driveToWin(t, s, a)
	acquire(s, a, 1, row, col)

	require.False(t, s.roundActive)
	overs := w.ofType(protocol.MsgTypeGameOver)
	require.Len(t, overs, 2, "one GAME_OVER per connected session")
	var over protocol.GameOver
	require.NoError(t, over.Decode(overs[0].pkt.Payload))
	assert.Equal(t, a.PlayerID, over.WinnerID)
	assert.Equal(t, s.grid.Score(a.PlayerID), over.WinnerScore)

	// Further claims are frozen and unanswered.
	before := len(w.sent)
	acquire(s, b, 5, row, col)
	assert.Equal(t, before, len(w.sent))
}

func TestLateJoinAfterGameOverGetsStateAndResult(t *testing.T) {
	s, w := newTestServer(t)
	a := join(t, s, 6000)

	row, col := driveToWin(t, s, a)
	acquire(s, a, 1, row, col)
	require.False(t, s.roundActive)

	before := len(w.sent)
	s.handleClientInit(testAddr(6009), time.Now())

	assert.Equal(t, 1, s.registry.Count(), "no session for a post-round join")
	require.Equal(t, before+2, len(w.sent))
	assert.Equal(t, protocol.MsgTypeSnapshot, w.sent[before].pkt.Header.Type)
	assert.Equal(t, protocol.MsgTypeGameOver, w.sent[before+1].pkt.Header.Type)
}

func TestSweepEvictsStaleSessionAndFreesID(t *testing.T) {
	s, _ := newTestServer(t)
	a := join(t, s, 6000)
	join(t, s, 6001)

	a.LastHeartbeat = time.Now().Add(-s.cfg.HeartbeatTimeout - time.Second)
	s.sweep(time.Now())

	assert.Equal(t, 1, s.registry.Count())
	_, ok := s.registry.Lookup(testAddr(6000))
	assert.False(t, ok)

	replacement := join(t, s, 6002)
	assert.Equal(t, uint8(0), replacement.PlayerID, "freed id is reused")
}

func TestHeartbeatRefreshesLiveness(t *testing.T) {
	s, _ := newTestServer(t)
	sess := join(t, s, 6000)
	sess.LastHeartbeat = time.Now().Add(-s.cfg.HeartbeatTimeout + time.Second)

	now := time.Now()
	s.handleHeartbeat(sess.Addr, now)
	assert.Equal(t, now, sess.LastHeartbeat)

	s.sweep(now)
	assert.Equal(t, 1, s.registry.Count())
}

func TestNewGameResetsRound(t *testing.T) {
	s, w := newTestServer(t)
	a := join(t, s, 6000)
	b := join(t, s, 6001)

	row, col := driveToWin(t, s, a)
	acquire(s, a, 1, row, col)
	require.False(t, s.roundActive)

	w.sent = nil
	s.handleNewGame(time.Now())

	assert.True(t, s.roundActive)
	assert.Equal(t, 0, s.grid.Claimed(), "new round starts with a clean board")
	assert.Equal(t, uint16(0), s.grid.Score(a.PlayerID))

	resps := w.ofType(protocol.MsgTypeServerInitResponse)
	require.Len(t, resps, 2, "every session is re-confirmed")
	var resp protocol.ServerInitResponse
	require.NoError(t, resp.Decode(resps[0].pkt.Payload))
	assert.Equal(t, a.SpawnX, resp.SpawnX)
	assert.Equal(t, a.SpawnY, resp.SpawnY)

	snaps := w.ofType(protocol.MsgTypeSnapshot)
	require.Len(t, snaps, 2, "clean state is broadcast immediately")
	assert.Equal(t, uint32(1), snaps[0].pkt.Header.SnapshotID, "snapshot ids restart")
	assert.Equal(t, int32(b.SpawnX), b.X, "cursor back at the original spawn")
}

func TestNewGameIgnoredWhileRoundActive(t *testing.T) {
	s, w := newTestServer(t)
	join(t, s, 6000)
	before := len(w.sent)

	s.handleNewGame(time.Now())

	assert.True(t, s.roundActive)
	assert.Equal(t, before, len(w.sent))
}

func TestBroadcastSkippedWithoutSessions(t *testing.T) {
	s, w := newTestServer(t)

	s.broadcast(time.Now())

	assert.Empty(t, w.sent)
	assert.Equal(t, uint32(0), s.snapshotID, "snapshot id only advances with recipients")
}

func TestBroadcastCarriesPositionDeltas(t *testing.T) {
	s, w := newTestServer(t)
	sess := join(t, s, 6000)

	s.broadcast(time.Now())

	// Move one cell right of the spawn.
	acquire(s, sess, 1, uint8(sess.SpawnY), uint8(sess.SpawnX+1))
	s.broadcast(time.Now())
	s.broadcast(time.Now())

	snaps := w.ofType(protocol.MsgTypeSnapshot)
	require.Len(t, snaps, 3)

	decode := func(c capturedPacket) protocol.Snapshot {
		var snap protocol.Snapshot
		require.NoError(t, snap.Decode(c.pkt.Payload))
		return snap
	}

	first := decode(snaps[0])
	require.Len(t, first.Players, 1)
	assert.Equal(t, int32(0), first.Players[0].DX)
	assert.Equal(t, int32(0), first.Players[0].DY)

	second := decode(snaps[1])
	assert.Equal(t, int32(1), second.Players[0].DX)
	assert.Equal(t, int32(0), second.Players[0].DY)
	assert.Equal(t, sess.X, second.Players[0].X)

	third := decode(snaps[2])
	assert.Equal(t, int32(0), third.Players[0].DX, "delta reference advances each tick")

	// Shared snapshot id, per-connection sequence both increase monotonically.
	assert.Equal(t, uint32(1), snaps[0].pkt.Header.SnapshotID)
	assert.Equal(t, uint32(2), snaps[1].pkt.Header.SnapshotID)
	assert.Equal(t, uint32(3), snaps[2].pkt.Header.SnapshotID)
	assert.Equal(t, uint32(1), snaps[0].pkt.Header.SeqNum)
	assert.Equal(t, uint32(2), snaps[1].pkt.Header.SeqNum)
}

func TestStatusView(t *testing.T) {
	s, _ := newTestServer(t)
	a := join(t, s, 6000)

	st := s.Status()
	assert.True(t, st.RoundActive)
	assert.Equal(t, 1, st.Sessions)
	require.Len(t, st.Players, 1)
	assert.Equal(t, uint16(1), st.Players[0].Score)
	assert.Nil(t, st.Winner)

	row, col := driveToWin(t, s, a)
	acquire(s, a, 1, row, col)

	st = s.Status()
	assert.False(t, st.RoundActive)
	require.NotNil(t, st.Winner)
	assert.Equal(t, a.PlayerID, st.Winner.ID)
}
