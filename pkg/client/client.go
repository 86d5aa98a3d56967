// Package client implements the GridClash peer: join handshake, snapshot
// reconciliation, optimistic cursor prediction, reliable cell-claim requests
// and the render-side position smoothing.
package client

import (
	"fmt"
	"io"
	"log"
	"net"
	"sync"
	"time"

	"github.com/gridclash/gridclash-node/pkg/metrics"
	"github.com/gridclash/gridclash-node/pkg/protocol"
)

// Config holds client configuration
type Config struct {
	ServerAddr        string
	HeartbeatInterval time.Duration

	// PollInterval is the socket read deadline of one Poll call.
	PollInterval time.Duration

	// ReadBudget bounds how many datagrams one Poll call may dispatch.
	ReadBudget int
}

// DefaultConfig returns default client configuration
func DefaultConfig() *Config {
	return &Config{
		ServerAddr:        "127.0.0.1:12000",
		HeartbeatInterval: 2 * time.Second,
		PollInterval:      time.Millisecond,
		ReadBudget:        32,
	}
}

// Vec2 is a smoothed position in grid-cell units.
type Vec2 struct {
	X, Y float64
}

// GridClient mirrors the authoritative state locally and keeps it coherent
// under loss, reordering and duplication. All state is guarded by one mutex
// so the poll loop and a UI goroutine can share it.
type GridClient struct {
	cfg  *Config
	conn *net.UDPConn
	out  io.Writer
	rt   *retransmitter

	recorder *metrics.Recorder

	mu       sync.Mutex
	playerID uint8
	joined   bool

	grid   []uint8
	scores map[uint8]uint16

	// targets holds each player's interpolation waypoints: usually the
	// latest broadcast position, plus a reconstructed intermediate after a
	// single-loss gap. visuals is the smoothed render position.
	targets map[uint8][]Vec2
	visuals map[uint8]Vec2

	lastSnapshotID int64
	lastSeqNum     int64

	// Predicted own cursor, moved optimistically on legal claims and
	// reconciled from every accepted snapshot.
	posX, posY int32

	gameOver    bool
	winnerID    uint8
	winnerScore uint16
	serverFull  bool

	nextSeq       uint32
	lastHeartbeat time.Time

	// failed collects claim sequence numbers abandoned by the reliability
	// layer, for the UI or bot to observe and drain.
	failed []uint32
}

// newCore builds the state shared by the real constructor and tests.
func newCore(cfg *Config, out io.Writer) *GridClient {
	c := &GridClient{
		cfg:            cfg,
		out:            out,
		grid:           make([]uint8, protocol.GridCells),
		scores:         make(map[uint8]uint16),
		targets:        make(map[uint8][]Vec2),
		visuals:        make(map[uint8]Vec2),
		lastSnapshotID: -1,
		lastSeqNum:     -1,
	}
	for i := range c.grid {
		c.grid[i] = protocol.UnclaimedID
	}
	c.rt = newRetransmitter(out, c.onClaimFailed)
	return c
}

// NewGridClient connects the UDP socket to the server. The recorder is
// optional; when set, every accepted snapshot is measured and persisted.
func NewGridClient(cfg *Config, recorder *metrics.Recorder) (*GridClient, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	raddr, err := net.ResolveUDPAddr("udp", cfg.ServerAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve server address: %v", err)
	}
	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %v", err)
	}

	c := newCore(cfg, conn)
	c.conn = conn
	c.recorder = recorder
	return c, nil
}

// AttachRecorder starts measuring accepted snapshots. Attach after the
// handshake so the records carry the assigned player id.
func (c *GridClient) AttachRecorder(r *metrics.Recorder) {
	c.mu.Lock()
	c.recorder = r
	c.mu.Unlock()
}

func (c *GridClient) onClaimFailed(seq uint32) {
	c.mu.Lock()
	c.failed = append(c.failed, seq)
	c.mu.Unlock()
	log.Printf("[CLIENT] claim seq %d failed", seq)
}

func (c *GridClient) send(kind protocol.MsgType, seq uint32, payload []byte) {
	data := protocol.Pack(kind, 0, seq, protocol.NowUnixMilli(), payload)
	if _, err := c.out.Write(data); err != nil {
		log.Printf("[CLIENT] send %v failed: %v", kind, err)
	}
}

// Join sends the connection request. The server assigns the real id; the
// hint carries no meaning beyond the wire format.
func (c *GridClient) Join() {
	c.send(protocol.MsgTypeClientInit, 0, (&protocol.ClientInit{}).Encode())
}

// Poll drains and dispatches pending datagrams, blocking at most the
// configured poll interval. Callers drive it from their frame loop.
func (c *GridClient) Poll() {
	buf := make([]byte, protocol.MaxPacketSize)
	c.conn.SetReadDeadline(time.Now().Add(c.cfg.PollInterval))

	for i := 0; i < c.cfg.ReadBudget; i++ {
		n, err := c.conn.Read(buf)
		if err != nil {
			return
		}
		c.handleDatagram(buf[:n], time.Now())
	}
}

// handleDatagram validates and dispatches one raw packet. Anything failing
// codec validation is dropped silently; UDP noise is not an error.
func (c *GridClient) handleDatagram(data []byte, now time.Time) {
	pkt, err := protocol.Unpack(data)
	if err != nil {
		return
	}

	switch pkt.Header.Type {
	case protocol.MsgTypeServerInitResponse:
		c.handleInitResponse(pkt)
	case protocol.MsgTypeSnapshot:
		c.handleSnapshot(pkt, now)
	case protocol.MsgTypeAck:
		c.handleAckNack(pkt, true)
	case protocol.MsgTypeNack:
		c.handleAckNack(pkt, false)
	case protocol.MsgTypeGameOver:
		c.handleGameOver(pkt)
	case protocol.MsgTypeServerFull:
		c.mu.Lock()
		c.serverFull = true
		c.mu.Unlock()
		log.Printf("[CLIENT] server full")
	}
}

// handleInitResponse accepts the assigned identity and resets local state,
// both on first join and when the server re-confirms for a new round.
func (c *GridClient) handleInitResponse(pkt *protocol.Packet) {
	var resp protocol.ServerInitResponse
	if err := resp.Decode(pkt.Payload); err != nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.playerID = resp.PlayerID
	c.joined = true
	c.gameOver = false
	c.serverFull = false
	c.lastSnapshotID = -1
	c.lastSeqNum = -1
	c.posX, c.posY = resp.SpawnX, resp.SpawnY

	for i := range c.grid {
		c.grid[i] = protocol.UnclaimedID
	}
	c.scores = make(map[uint8]uint16)
	c.targets = map[uint8][]Vec2{resp.PlayerID: {{X: float64(resp.SpawnX), Y: float64(resp.SpawnY)}}}
	c.visuals = map[uint8]Vec2{resp.PlayerID: {X: float64(resp.SpawnX), Y: float64(resp.SpawnY)}}

	log.Printf("[CLIENT] joined as player %d, spawn (%d,%d)", resp.PlayerID, resp.SpawnX, resp.SpawnY)
}

// handleSnapshot reconciles one authoritative state broadcast. Ordering is
// enforced by snapshot id first and per-connection sequence second: anything
// older than the freshest applied state is dropped. A sequence gap of
// exactly one lost broadcast is repaired by reconstructing the missed
// position from the embedded movement delta.
func (c *GridClient) handleSnapshot(pkt *protocol.Packet, now time.Time) {
	var snap protocol.Snapshot
	if err := snap.Decode(pkt.Payload); err != nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	sid := int64(pkt.Header.SnapshotID)
	seq := int64(pkt.Header.SeqNum)
	if sid < c.lastSnapshotID {
		return
	}
	if sid == c.lastSnapshotID && seq <= c.lastSeqNum {
		return
	}
	gapOfOne := c.lastSeqNum >= 0 && seq == c.lastSeqNum+2
	c.lastSnapshotID = sid
	c.lastSeqNum = seq

	copy(c.grid, snap.Grid)

	present := make(map[uint8]bool, len(snap.Players))
	for _, p := range snap.Players {
		present[p.ID] = true
		c.scores[p.ID] = p.Score

		cur := Vec2{X: float64(p.X), Y: float64(p.Y)}
		if gapOfOne && (p.DX != 0 || p.DY != 0) {
			missed := Vec2{X: float64(p.X - p.DX), Y: float64(p.Y - p.DY)}
			c.targets[p.ID] = []Vec2{missed, cur}
		} else {
			c.targets[p.ID] = []Vec2{cur}
		}
		if _, ok := c.visuals[p.ID]; !ok {
			c.visuals[p.ID] = cur
		}

		if p.ID == c.playerID {
			c.posX, c.posY = p.X, p.Y
		}
	}

	// Players the authority no longer reports are gone.
	for id := range c.scores {
		if !present[id] {
			delete(c.scores, id)
			delete(c.targets, id)
			delete(c.visuals, id)
		}
	}

	if c.recorder != nil {
		size := protocol.HeaderSize + len(pkt.Payload)
		if _, err := c.recorder.RecordSnapshot(pkt.Header.SnapshotID, pkt.Header.SeqNum,
			pkt.Header.Timestamp, uint64(now.UnixMilli()), size); err != nil {
			log.Printf("[CLIENT] metrics record failed: %v", err)
		}
	}
}

func (c *GridClient) handleAckNack(pkt *protocol.Packet, ack bool) {
	var payload protocol.AckPayload
	if err := payload.Decode(pkt.Payload); err != nil {
		return
	}
	if ack {
		c.rt.ack(payload.Seq)
	} else {
		c.rt.nack(payload.Seq)
	}
}

func (c *GridClient) handleGameOver(pkt *protocol.Packet) {
	var over protocol.GameOver
	if err := over.Decode(pkt.Payload); err != nil {
		return
	}

	c.mu.Lock()
	c.gameOver = true
	c.winnerID = over.WinnerID
	c.winnerScore = over.WinnerScore
	c.mu.Unlock()

	log.Printf("[CLIENT] game over, winner player %d with score %d", over.WinnerID, over.WinnerScore)
}

// RequestClaim sends a reliable claim for the cell at (row, col) and returns
// its sequence number. The cursor moves optimistically only when the claim
// looks legal locally: the cell is unclaimed or already ours, one axis-step
// away. The request is sent either way; the authority decides.
func (c *GridClient) RequestClaim(row, col uint8) uint32 {
	c.mu.Lock()

	if c.claimLooksLegal(row, col) {
		c.posX, c.posY = int32(col), int32(row)
		c.targets[c.playerID] = []Vec2{{X: float64(col), Y: float64(row)}}
	}

	c.nextSeq++
	seq := c.nextSeq
	req := &protocol.AcquireRequest{Row: row, Col: col, ClientTimestamp: protocol.NowUnixMilli()}
	data := protocol.Pack(protocol.MsgTypeAcquireRequest, 0, seq, protocol.NowUnixMilli(), req.Encode())
	c.mu.Unlock()

	c.rt.track(seq, data)
	return seq
}

// claimLooksLegal gates prediction only. Callers hold c.mu.
func (c *GridClient) claimLooksLegal(row, col uint8) bool {
	if int(row) >= protocol.GridHeight || int(col) >= protocol.GridWidth {
		return false
	}
	owner := c.grid[int(row)*protocol.GridWidth+int(col)]
	if owner != protocol.UnclaimedID && owner != c.playerID {
		return false
	}
	dx := int32(col) - c.posX
	dy := int32(row) - c.posY
	if dx < 0 {
		dx = -dx
	}
	if dy < 0 {
		dy = -dy
	}
	return dx+dy == 1
}

// RequestNewGame asks the authority to start a new round. Fire and forget;
// the SERVER_INIT_RESPONSE and clean snapshot are the confirmation.
func (c *GridClient) RequestNewGame() {
	c.mu.Lock()
	id := c.playerID
	c.mu.Unlock()
	c.send(protocol.MsgTypeNewGame, 0, (&protocol.NewGame{PlayerID: id}).Encode())
}

// SendHeartbeatIfDue emits a liveness heartbeat at the configured interval.
func (c *GridClient) SendHeartbeatIfDue(now time.Time) {
	c.mu.Lock()
	if !c.joined || now.Sub(c.lastHeartbeat) < c.cfg.HeartbeatInterval {
		c.mu.Unlock()
		return
	}
	c.lastHeartbeat = now
	id := c.playerID
	c.mu.Unlock()

	c.send(protocol.MsgTypeHeartbeat, 0, (&protocol.Heartbeat{PlayerID: id}).Encode())
}

// Close stops retry timers and closes the socket.
func (c *GridClient) Close() {
	c.rt.close()
	if c.conn != nil {
		c.conn.Close()
	}
}

// PlayerID returns the server-assigned id.
func (c *GridClient) PlayerID() uint8 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playerID
}

// Joined reports whether the handshake completed.
func (c *GridClient) Joined() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.joined
}

// ServerFull reports whether the join was declined for capacity.
func (c *GridClient) ServerFull() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.serverFull
}

// Position returns the predicted own cursor cell (x, y).
func (c *GridClient) Position() (int32, int32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.posX, c.posY
}

// GridCopy returns a copy of the local owner grid.
func (c *GridClient) GridCopy() []uint8 {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]uint8, len(c.grid))
	copy(out, c.grid)
	return out
}

// Scores returns a copy of the known per-player scores.
func (c *GridClient) Scores() map[uint8]uint16 {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[uint8]uint16, len(c.scores))
	for id, s := range c.scores {
		out[id] = s
	}
	return out
}

// GameOver returns the terminal result, valid once the bool is true.
func (c *GridClient) GameOver() (over bool, winnerID uint8, winnerScore uint16) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gameOver, c.winnerID, c.winnerScore
}

// FailedClaims drains the sequence numbers of abandoned claims.
func (c *GridClient) FailedClaims() []uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.failed
	c.failed = nil
	return out
}
