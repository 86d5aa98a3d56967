package protocol

import (
	"encoding/binary"
	"errors"
)

var (
	ErrTruncated      = errors.New("packet shorter than header")
	ErrLengthMismatch = errors.New("payload length mismatch")
	ErrBadMagic       = errors.New("invalid protocol magic")
	ErrBadVersion     = errors.New("unsupported protocol version")
	ErrChecksum       = errors.New("checksum mismatch")
)

// Header represents the fixed 28-byte packet header
type Header struct {
	Magic      uint32  // Magic number (0x47435550)
	Version    uint8   // Protocol version
	Type       MsgType // Message type
	SnapshotID uint32  // Monotonic per broadcast tick
	SeqNum     uint32  // Per-sender-connection (broadcasts) or per-request (reliable)
	Timestamp  uint64  // Sender timestamp, Unix milliseconds
	PayloadLen uint16  // Trailing payload byte count
	Checksum   uint32  // CRC-32 over zero-checksum header + payload
}

// Encode encodes the header to bytes
func (h *Header) Encode() []byte {
	buf := make([]byte, HeaderSize)

	binary.BigEndian.PutUint32(buf[0:4], h.Magic)
	buf[4] = h.Version
	buf[5] = uint8(h.Type)
	binary.BigEndian.PutUint32(buf[6:10], h.SnapshotID)
	binary.BigEndian.PutUint32(buf[10:14], h.SeqNum)
	binary.BigEndian.PutUint64(buf[14:22], h.Timestamp)
	binary.BigEndian.PutUint16(buf[22:24], h.PayloadLen)
	binary.BigEndian.PutUint32(buf[24:28], h.Checksum)

	return buf
}

// Decode decodes the header from bytes
func (h *Header) Decode(buf []byte) error {
	if len(buf) < HeaderSize {
		return ErrTruncated
	}

	h.Magic = binary.BigEndian.Uint32(buf[0:4])
	h.Version = buf[4]
	h.Type = MsgType(buf[5])
	h.SnapshotID = binary.BigEndian.Uint32(buf[6:10])
	h.SeqNum = binary.BigEndian.Uint32(buf[10:14])
	h.Timestamp = binary.BigEndian.Uint64(buf[14:22])
	h.PayloadLen = binary.BigEndian.Uint16(buf[22:24])
	h.Checksum = binary.BigEndian.Uint32(buf[24:28])

	return nil
}

// Validate checks the magic and version fields
func (h *Header) Validate() error {
	if h.Magic != ProtocolMagic {
		return ErrBadMagic
	}

	if h.Version != ProtocolVersion {
		return ErrBadVersion
	}

	return nil
}
