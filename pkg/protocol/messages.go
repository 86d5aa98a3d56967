package protocol

import (
	"encoding/binary"
	"errors"
)

// ErrShortPayload is returned when a payload is too small for its
// declared message kind.
var ErrShortPayload = errors.New("payload too short for message kind")

// ===== CLIENT_INIT =====

// ClientInit is the join request. The id hint is informational only; the
// server assigns the real id.
type ClientInit struct {
	IDHint uint8
}

func (m *ClientInit) Encode() []byte {
	return []byte{m.IDHint}
}

func (m *ClientInit) Decode(buf []byte) error {
	if len(buf) < 1 {
		return ErrShortPayload
	}
	m.IDHint = buf[0]
	return nil
}

// ===== HEARTBEAT =====

// Heartbeat is the liveness message; it carries the sender's id.
type Heartbeat struct {
	PlayerID uint8
}

func (m *Heartbeat) Encode() []byte {
	return []byte{m.PlayerID}
}

func (m *Heartbeat) Decode(buf []byte) error {
	if len(buf) < 1 {
		return ErrShortPayload
	}
	m.PlayerID = buf[0]
	return nil
}

// ===== SERVER_INIT_RESPONSE =====

// ServerInitResponse confirms a join with the assigned id and spawn cell.
type ServerInitResponse struct {
	PlayerID uint8
	SpawnX   int32
	SpawnY   int32
}

func (m *ServerInitResponse) Encode() []byte {
	buf := make([]byte, 9)
	buf[0] = m.PlayerID
	binary.BigEndian.PutUint32(buf[1:5], uint32(m.SpawnX))
	binary.BigEndian.PutUint32(buf[5:9], uint32(m.SpawnY))
	return buf
}

func (m *ServerInitResponse) Decode(buf []byte) error {
	if len(buf) < 9 {
		return ErrShortPayload
	}
	m.PlayerID = buf[0]
	m.SpawnX = int32(binary.BigEndian.Uint32(buf[1:5]))
	m.SpawnY = int32(binary.BigEndian.Uint32(buf[5:9]))
	return nil
}

// ===== SERVER_FULL =====

// ServerFull rejects a join when the player cap is reached.
type ServerFull struct {
	Reserved uint8
}

func (m *ServerFull) Encode() []byte {
	return []byte{m.Reserved}
}

func (m *ServerFull) Decode(buf []byte) error {
	if len(buf) < 1 {
		return ErrShortPayload
	}
	m.Reserved = buf[0]
	return nil
}

// ===== ACQUIRE_REQUEST =====

// AcquireRequest is a reliable cell-claim attempt. ClientTimestamp is the
// original send time; retransmissions carry it unchanged.
type AcquireRequest struct {
	Row             uint8
	Col             uint8
	ClientTimestamp uint64
}

func (m *AcquireRequest) Encode() []byte {
	buf := make([]byte, 10)
	buf[0] = m.Row
	buf[1] = m.Col
	binary.BigEndian.PutUint64(buf[2:10], m.ClientTimestamp)
	return buf
}

func (m *AcquireRequest) Decode(buf []byte) error {
	if len(buf) < 10 {
		return ErrShortPayload
	}
	m.Row = buf[0]
	m.Col = buf[1]
	m.ClientTimestamp = binary.BigEndian.Uint64(buf[2:10])
	return nil
}

// ===== ACK / NACK =====

// AckPayload acknowledges one reliable request by its sequence number.
// It is carried by both MsgTypeAck and MsgTypeNack.
type AckPayload struct {
	Seq     uint32
	Success bool
}

func (m *AckPayload) Encode() []byte {
	buf := make([]byte, 5)
	binary.BigEndian.PutUint32(buf[0:4], m.Seq)
	if m.Success {
		buf[4] = 1
	}
	return buf
}

func (m *AckPayload) Decode(buf []byte) error {
	if len(buf) < 5 {
		return ErrShortPayload
	}
	m.Seq = binary.BigEndian.Uint32(buf[0:4])
	m.Success = buf[4] != 0
	return nil
}

// ===== SNAPSHOT =====

// SnapshotPlayer is one player's summary inside a snapshot. DX/DY are the
// position delta relative to that player's previous broadcast, carried so a
// receiver can reconstruct one missed frame.
type SnapshotPlayer struct {
	ID    uint8
	Score uint16
	X     int32
	Y     int32
	DX    int32
	DY    int32
}

const snapshotPlayerSize = 19

// Snapshot is the full authoritative state: the entire grid byte array
// followed by a player count and per-player summaries.
type Snapshot struct {
	Grid    []byte // GridCells bytes, one owner id per cell
	Players []SnapshotPlayer
}

func (m *Snapshot) Encode() []byte {
	buf := make([]byte, GridCells+1+len(m.Players)*snapshotPlayerSize)
	copy(buf, m.Grid)
	buf[GridCells] = uint8(len(m.Players))

	offset := GridCells + 1
	for _, p := range m.Players {
		buf[offset] = p.ID
		binary.BigEndian.PutUint16(buf[offset+1:], p.Score)
		binary.BigEndian.PutUint32(buf[offset+3:], uint32(p.X))
		binary.BigEndian.PutUint32(buf[offset+7:], uint32(p.Y))
		binary.BigEndian.PutUint32(buf[offset+11:], uint32(p.DX))
		binary.BigEndian.PutUint32(buf[offset+15:], uint32(p.DY))
		offset += snapshotPlayerSize
	}

	return buf
}

func (m *Snapshot) Decode(buf []byte) error {
	if len(buf) < GridCells+1 {
		return ErrShortPayload
	}

	m.Grid = make([]byte, GridCells)
	copy(m.Grid, buf[:GridCells])

	count := int(buf[GridCells])
	if len(buf) < GridCells+1+count*snapshotPlayerSize {
		return ErrShortPayload
	}

	m.Players = make([]SnapshotPlayer, count)
	offset := GridCells + 1
	for i := range m.Players {
		m.Players[i] = SnapshotPlayer{
			ID:    buf[offset],
			Score: binary.BigEndian.Uint16(buf[offset+1:]),
			X:     int32(binary.BigEndian.Uint32(buf[offset+3:])),
			Y:     int32(binary.BigEndian.Uint32(buf[offset+7:])),
			DX:    int32(binary.BigEndian.Uint32(buf[offset+11:])),
			DY:    int32(binary.BigEndian.Uint32(buf[offset+15:])),
		}
		offset += snapshotPlayerSize
	}

	return nil
}

// ===== GAME_OVER =====

// GameOver carries the terminal result.
type GameOver struct {
	WinnerID    uint8
	WinnerScore uint16
}

func (m *GameOver) Encode() []byte {
	buf := make([]byte, 3)
	buf[0] = m.WinnerID
	binary.BigEndian.PutUint16(buf[1:3], m.WinnerScore)
	return buf
}

func (m *GameOver) Decode(buf []byte) error {
	if len(buf) < 3 {
		return ErrShortPayload
	}
	m.WinnerID = buf[0]
	m.WinnerScore = binary.BigEndian.Uint16(buf[1:3])
	return nil
}

// ===== NEW_GAME =====

// NewGame asks the server to reset a finished round.
type NewGame struct {
	PlayerID uint8
}

func (m *NewGame) Encode() []byte {
	return []byte{m.PlayerID}
}

func (m *NewGame) Decode(buf []byte) error {
	if len(buf) < 1 {
		return ErrShortPayload
	}
	m.PlayerID = buf[0]
	return nil
}
