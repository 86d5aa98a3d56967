// Package server implements the authoritative GridClash process: the UDP
// event loop, connection lifecycle, cell-ownership arbitration and the
// periodic snapshot broadcast.
package server

import (
	"fmt"
	"log"
	"math/rand"
	"net"
	"sync"
	"time"

	"github.com/gridclash/gridclash-node/pkg/metrics"
	"github.com/gridclash/gridclash-node/pkg/protocol"
)

// Config holds server configuration
type Config struct {
	Port             int
	BroadcastHz      int
	HeartbeatTimeout time.Duration
	SweepInterval    time.Duration

	// ReadBudget bounds how many datagrams one loop iteration may dispatch
	// before the broadcast/sweep checks run again.
	ReadBudget int

	// PollInterval is the read deadline of the non-blocking receive; it is
	// also the loop's idle yield.
	PollInterval time.Duration

	// Seed drives spawn-position placement inside each id's corner region.
	Seed int64
}

// DefaultConfig returns default server configuration
func DefaultConfig() *Config {
	return &Config{
		Port:             12000,
		BroadcastHz:      20,
		HeartbeatTimeout: 10 * time.Second,
		SweepInterval:    time.Second,
		ReadBudget:       64,
		PollInterval:     time.Millisecond,
		Seed:             time.Now().UnixNano(),
	}
}

// packetWriter is the outbound half of the socket. *net.UDPConn satisfies
// it; tests substitute a capture.
type packetWriter interface {
	WriteToUDP(b []byte, addr *net.UDPAddr) (int, error)
}

type spawn struct {
	X, Y int32
}

// PlayerStatus is one player's row in the status view.
type PlayerStatus struct {
	ID    uint8  `json:"id"`
	Score uint16 `json:"score"`
	X     int32  `json:"x"`
	Y     int32  `json:"y"`
}

// WinnerStatus is the stored terminal result of a finished round.
type WinnerStatus struct {
	ID    uint8  `json:"id"`
	Score uint16 `json:"score"`
}

// GameStatus is a read-only view of the game state for the HTTP API.
type GameStatus struct {
	RoundActive  bool           `json:"round_active"`
	SnapshotID   uint32         `json:"snapshot_id"`
	Sessions     int            `json:"sessions"`
	ClaimedCells int            `json:"claimed_cells"`
	Players      []PlayerStatus `json:"players"`
	Winner       *WinnerStatus  `json:"winner,omitempty"`
}

// GridServer owns the shared game state. All mutation happens on the Run
// goroutine; the loop's own sequencing (receive, then maybe broadcast, then
// maybe sweep) is the only ordering, so grid/session/score state needs no
// locks. Only the status view handed to the HTTP API is mutex-guarded.
type GridServer struct {
	cfg  *Config
	conn *net.UDPConn
	out  packetWriter

	registry *Registry
	grid     *Grid
	spawns   [protocol.MaxPlayers]spawn

	snapshotID  uint32
	roundActive bool
	winnerID    uint8
	winnerScore uint16

	metrics *metrics.ServerMetrics
	readBuf []byte
	quit    chan struct{}

	statusMu sync.RWMutex
	status   GameStatus
}

// NewGridServer binds the UDP socket and prepares a fresh round. A bind
// failure is the only fatal startup condition.
func NewGridServer(cfg *Config, m *metrics.ServerMetrics) (*GridServer, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if m == nil {
		m = metrics.NewServerMetrics(nil)
	}

	conn, err := net.ListenUDP("udp", &net.UDPAddr{Port: cfg.Port})
	if err != nil {
		return nil, fmt.Errorf("failed to bind UDP port %d: %v", cfg.Port, err)
	}

	s := &GridServer{
		cfg:         cfg,
		conn:        conn,
		out:         conn,
		registry:    NewRegistry(),
		grid:        NewGrid(),
		roundActive: true,
		metrics:     m,
		readBuf:     make([]byte, protocol.MaxPacketSize),
		quit:        make(chan struct{}),
	}
	s.seedSpawns(rand.New(rand.NewSource(cfg.Seed)))
	s.updateStatus()

	log.Printf("[SERVER] grid %dx%d, listening on %s", protocol.GridWidth, protocol.GridHeight, conn.LocalAddr())
	return s, nil
}

// seedSpawns places each id's spawn inside its own corner region, two cells
// in from the edges. The positions are stable for the whole process run so
// NEW_GAME re-arms sessions at their original spawn.
func (s *GridServer) seedSpawns(rng *rand.Rand) {
	region := func(lo int) int32 { return int32(lo + rng.Intn(7)) }
	s.spawns[0] = spawn{X: region(2), Y: region(2)}
	s.spawns[1] = spawn{X: region(protocol.GridWidth - 8), Y: region(2)}
	s.spawns[2] = spawn{X: region(2), Y: region(protocol.GridHeight - 8)}
	s.spawns[3] = spawn{X: region(protocol.GridWidth - 8), Y: region(protocol.GridHeight - 8)}
}

// Addr returns the bound UDP address.
func (s *GridServer) Addr() net.Addr {
	return s.conn.LocalAddr()
}

// Run drives the single-threaded event loop until Stop: a bounded
// non-blocking receive, then the broadcast cadence check, then the timeout
// sweep check. The broadcast cadence is wall-clock-driven, independent of
// how many packets arrived that tick.
func (s *GridServer) Run() {
	broadcastInterval := time.Second / time.Duration(s.cfg.BroadcastHz)
	lastBroadcast := time.Now()
	lastSweep := time.Now()

	for {
		select {
		case <-s.quit:
			return
		default:
		}

		s.receive()

		now := time.Now()
		if now.Sub(lastBroadcast) >= broadcastInterval {
			s.broadcast(now)
			lastBroadcast = lastBroadcast.Add(broadcastInterval)
			if now.Sub(lastBroadcast) > broadcastInterval {
				// Fell behind more than a full tick; don't burst to catch up.
				lastBroadcast = now
			}
		}
		if now.Sub(lastSweep) >= s.cfg.SweepInterval {
			s.sweep(now)
			lastSweep = now
		}
	}
}

// Stop ends the loop and closes the socket. The transport is
// connectionless; no shutdown handshake is needed.
func (s *GridServer) Stop() {
	close(s.quit)
	s.conn.Close()
}

// receive drains up to ReadBudget datagrams. Absence of data is not an
// error; anything failing codec validation is dropped before it can reach
// game logic.
func (s *GridServer) receive() {
	s.conn.SetReadDeadline(time.Now().Add(s.cfg.PollInterval))

	for i := 0; i < s.cfg.ReadBudget; i++ {
		n, addr, err := s.conn.ReadFromUDP(s.readBuf)
		if err != nil {
			return
		}

		pkt, err := protocol.Unpack(s.readBuf[:n])
		if err != nil {
			s.metrics.PacketsDropped.Inc()
			continue
		}
		s.metrics.PacketsReceived.Inc()
		s.dispatch(pkt, addr, time.Now())
	}
}

func (s *GridServer) dispatch(pkt *protocol.Packet, addr *net.UDPAddr, now time.Time) {
	switch pkt.Header.Type {
	case protocol.MsgTypeClientInit:
		s.handleClientInit(addr, now)
	case protocol.MsgTypeHeartbeat:
		s.handleHeartbeat(addr, now)
	case protocol.MsgTypeAcquireRequest:
		s.handleAcquire(pkt, addr, now)
	case protocol.MsgTypeNewGame:
		s.handleNewGame(now)
	default:
		log.Printf("[SERVER] ignoring %v from %s", pkt.Header.Type, addr)
	}
}

// handleClientInit runs the join handshake. While a round is over, no
// session is created; the peer gets the last-known state and the stored
// result instead, so a late or reconnecting peer can observe the outcome.
func (s *GridServer) handleClientInit(addr *net.UDPAddr, now time.Time) {
	if !s.roundActive {
		log.Printf("[SERVER] game over, declining join from %s", addr)
		s.sendStateTo(addr, now)
		payload := (&protocol.GameOver{WinnerID: s.winnerID, WinnerScore: s.winnerScore}).Encode()
		s.send(protocol.MsgTypeGameOver, s.snapshotID, 0, payload, addr)
		return
	}

	if _, ok := s.registry.Lookup(addr); ok {
		log.Printf("[SERVER] %s already connected", addr)
		return
	}

	if s.registry.Count() >= protocol.MaxPlayers {
		log.Printf("[SERVER] server full, declining join from %s", addr)
		s.send(protocol.MsgTypeServerFull, 0, 0, (&protocol.ServerFull{}).Encode(), addr)
		return
	}

	sess := s.registry.Add(addr, now)
	sp := s.spawns[sess.PlayerID]
	sess.SpawnX, sess.SpawnY = sp.X, sp.Y
	sess.X, sess.Y = sp.X, sp.Y
	sess.PrevX, sess.PrevY = sp.X, sp.Y

	// The spawn cell belongs to the new player from the first broadcast.
	s.grid.Claim(uint8(sp.Y), uint8(sp.X), sess.PlayerID)

	payload := (&protocol.ServerInitResponse{
		PlayerID: sess.PlayerID,
		SpawnX:   sp.X,
		SpawnY:   sp.Y,
	}).Encode()
	s.send(protocol.MsgTypeServerInitResponse, 0, 0, payload, addr)

	s.metrics.SessionsLive.Set(float64(s.registry.Count()))
	s.updateStatus()
	log.Printf("[SERVER] %s connected as player %d, spawn (%d,%d)", addr, sess.PlayerID, sp.X, sp.Y)
}

func (s *GridServer) handleHeartbeat(addr *net.UDPAddr, now time.Time) {
	if sess, ok := s.registry.Lookup(addr); ok {
		sess.LastHeartbeat = now
	}
}

// handleAcquire arbitrates one cell-claim attempt. A sequence number seen
// before is answered with the cached outcome and never reapplied, so a
// retransmission racing a delayed ACK cannot double-claim or double-score.
func (s *GridServer) handleAcquire(pkt *protocol.Packet, addr *net.UDPAddr, now time.Time) {
	if !s.roundActive {
		return
	}
	sess, ok := s.registry.Lookup(addr)
	if !ok {
		return
	}

	seq := pkt.Header.SeqNum
	if success, seen := sess.Outcome(seq); seen {
		s.sendAckNack(sess, seq, success)
		return
	}

	var req protocol.AcquireRequest
	if err := req.Decode(pkt.Payload); err != nil {
		log.Printf("[SERVER] bad acquire payload from player %d: %v", sess.PlayerID, err)
		return
	}
	if !s.grid.InBounds(req.Row, req.Col) {
		log.Printf("[SERVER] player %d requested out-of-bounds cell (%d,%d)", sess.PlayerID, req.Row, req.Col)
		return
	}

	success := s.grid.Claim(req.Row, req.Col, sess.PlayerID)

	// The client is trusted for its own cursor location; the authority
	// only arbitrates ownership.
	sess.X, sess.Y = int32(req.Col), int32(req.Row)

	sess.MarkProcessed(seq, success)
	s.sendAckNack(sess, seq, success)

	if success {
		s.metrics.ClaimsGranted.Inc()
		if s.grid.WinReached() {
			s.finishRound(now)
		}
	} else {
		s.metrics.ClaimsRejected.Inc()
	}
	s.updateStatus()
}

func (s *GridServer) sendAckNack(sess *Session, seq uint32, success bool) {
	kind := protocol.MsgTypeAck
	if !success {
		kind = protocol.MsgTypeNack
	}
	payload := (&protocol.AckPayload{Seq: seq, Success: success}).Encode()
	s.send(kind, s.snapshotID, 0, payload, sess.Addr)
}

// finishRound freezes further claims, stores the winner and broadcasts
// GAME_OVER to every connected session exactly once.
func (s *GridServer) finishRound(now time.Time) {
	s.roundActive = false
	s.winnerID, s.winnerScore = s.grid.Winner()
	log.Printf("[SERVER] game over, winner player %d with score %d", s.winnerID, s.winnerScore)

	payload := (&protocol.GameOver{WinnerID: s.winnerID, WinnerScore: s.winnerScore}).Encode()
	ts := uint64(now.UnixMilli())
	for _, sess := range s.registry.All() {
		sess.SeqNum++
		data := protocol.Pack(protocol.MsgTypeGameOver, s.snapshotID, sess.SeqNum, ts, payload)
		s.out.WriteToUDP(data, sess.Addr)
	}
}

// handleNewGame re-arms every connected session at its original spawn,
// clears the grid and scores, confirms each peer with a fresh
// SERVER_INIT_RESPONSE and immediately broadcasts the clean state.
func (s *GridServer) handleNewGame(now time.Time) {
	if s.roundActive {
		log.Printf("[SERVER] game still active, ignoring NEW_GAME")
		return
	}
	log.Printf("[SERVER] starting new game")

	for _, sess := range s.registry.All() {
		sess.Rearm(now)
		payload := (&protocol.ServerInitResponse{
			PlayerID: sess.PlayerID,
			SpawnX:   sess.SpawnX,
			SpawnY:   sess.SpawnY,
		}).Encode()
		s.send(protocol.MsgTypeServerInitResponse, 0, 0, payload, sess.Addr)
	}

	s.grid.Reset()
	s.snapshotID = 0
	s.roundActive = true
	s.winnerID, s.winnerScore = 0, 0

	s.broadcast(now)
}

// sweep evicts sessions whose heartbeat has gone stale, freeing their ids
// for reuse. Liveness failure never propagates to other sessions.
func (s *GridServer) sweep(now time.Time) {
	for _, sess := range s.registry.Expired(now, s.cfg.HeartbeatTimeout) {
		log.Printf("[SERVER] player %d (%s) timed out", sess.PlayerID, sess.Addr)
		s.registry.Evict(sess)
	}
	s.metrics.SessionsLive.Set(float64(s.registry.Count()))
	s.updateStatus()
}

func (s *GridServer) send(kind protocol.MsgType, snapshotID, seq uint32, payload []byte, addr *net.UDPAddr) {
	data := protocol.Pack(kind, snapshotID, seq, protocol.NowUnixMilli(), payload)
	if _, err := s.out.WriteToUDP(data, addr); err != nil {
		log.Printf("[SERVER] send %v to %s failed: %v", kind, addr, err)
	}
}

// Status returns the mutex-guarded read-only view for the HTTP API.
func (s *GridServer) Status() GameStatus {
	s.statusMu.RLock()
	defer s.statusMu.RUnlock()
	return s.status
}

func (s *GridServer) updateStatus() {
	sessions := s.registry.All()
	st := GameStatus{
		RoundActive:  s.roundActive,
		SnapshotID:   s.snapshotID,
		Sessions:     len(sessions),
		ClaimedCells: s.grid.Claimed(),
		Players:      make([]PlayerStatus, 0, len(sessions)),
	}
	for _, sess := range sessions {
		st.Players = append(st.Players, PlayerStatus{
			ID:    sess.PlayerID,
			Score: s.grid.Score(sess.PlayerID),
			X:     sess.X,
			Y:     sess.Y,
		})
	}
	if !s.roundActive {
		st.Winner = &WinnerStatus{ID: s.winnerID, Score: s.winnerScore}
	}

	s.statusMu.Lock()
	s.status = st
	s.statusMu.Unlock()
}
