package protocol

import "time"

// Protocol constants
const (
	// Magic number for the GridClash UDP protocol ('GCUP')
	ProtocolMagic = 0x47435550

	// Protocol version
	ProtocolVersion uint8 = 1

	// Header size
	HeaderSize = 28

	// MaxPacketSize is the datagram ceiling: header plus payload never
	// exceed this many bytes.
	MaxPacketSize = 1200

	// MaxPayloadSize is the largest payload a single packet may carry.
	MaxPayloadSize = MaxPacketSize - HeaderSize
)

// MsgType identifies the kind of a packet.
type MsgType uint8

// Message types
const (
	MsgTypeSnapshot           MsgType = 0 // Server → Client (periodic full state)
	MsgTypeHeartbeat          MsgType = 1 // Client → Server (keep-alive)
	MsgTypeClientInit         MsgType = 2 // Client → Server (join request)
	MsgTypeServerInitResponse MsgType = 3 // Server → Client (join confirmation)
	MsgTypeAcquireRequest     MsgType = 4 // Client → Server (cell-claim attempt)
	MsgTypeAck                MsgType = 5 // Server → Client (claim granted)
	MsgTypeNack               MsgType = 6 // Server → Client (claim rejected)
	MsgTypeGameOver           MsgType = 7 // Server → Client (terminal result)
	MsgTypeServerFull         MsgType = 8 // Server → Client (join rejected)
	MsgTypeNewGame            MsgType = 9 // Client → Server (reset request)
)

// String returns a short name for logging.
func (t MsgType) String() string {
	switch t {
	case MsgTypeSnapshot:
		return "SNAPSHOT"
	case MsgTypeHeartbeat:
		return "HEARTBEAT"
	case MsgTypeClientInit:
		return "CLIENT_INIT"
	case MsgTypeServerInitResponse:
		return "SERVER_INIT_RESPONSE"
	case MsgTypeAcquireRequest:
		return "ACQUIRE_REQUEST"
	case MsgTypeAck:
		return "ACK"
	case MsgTypeNack:
		return "NACK"
	case MsgTypeGameOver:
		return "GAME_OVER"
	case MsgTypeServerFull:
		return "SERVER_FULL"
	case MsgTypeNewGame:
		return "NEW_GAME"
	}
	return "UNKNOWN"
}

// Game constants fixed by the protocol's field widths.
const (
	GridWidth  = 20
	GridHeight = 20
	GridCells  = GridWidth * GridHeight

	// UnclaimedID marks a cell nobody owns.
	UnclaimedID uint8 = 255

	// MaxPlayers is the session cap.
	MaxPlayers = 4
)

// NowUnixMilli returns current time in Unix milliseconds.
func NowUnixMilli() uint64 {
	return uint64(time.Now().UnixMilli())
}
