package protocol

import "hash/crc32"

// Packet is a decoded header plus its payload bytes.
type Packet struct {
	Header  Header
	Payload []byte
}

// Pack builds one wire-ready datagram: the header is encoded twice, first
// with a zero checksum to compute the CRC-32 over header+payload, then with
// the final value.
func Pack(msgType MsgType, snapshotID, seqNum uint32, timestampMS uint64, payload []byte) []byte {
	h := Header{
		Magic:      ProtocolMagic,
		Version:    ProtocolVersion,
		Type:       msgType,
		SnapshotID: snapshotID,
		SeqNum:     seqNum,
		Timestamp:  timestampMS,
		PayloadLen: uint16(len(payload)),
	}

	temp := h.Encode()
	h.Checksum = crc32.ChecksumIEEE(append(temp, payload...))

	return append(h.Encode(), payload...)
}

// Unpack validates raw bytes and returns the decoded packet. Content is
// never trusted until all checks pass: minimum length, declared payload
// length, magic, version, and checksum, in that order. Each failure is a
// distinct sentinel error so callers can drop malformed input silently and
// tests can exercise every check independently.
func Unpack(data []byte) (*Packet, error) {
	if len(data) < HeaderSize {
		return nil, ErrTruncated
	}

	var h Header
	if err := h.Decode(data[:HeaderSize]); err != nil {
		return nil, err
	}
	payload := data[HeaderSize:]

	if len(payload) != int(h.PayloadLen) {
		return nil, ErrLengthMismatch
	}

	if err := h.Validate(); err != nil {
		return nil, err
	}

	// Recompute the CRC with the checksum field zeroed.
	temp := h
	temp.Checksum = 0
	if crc32.ChecksumIEEE(append(temp.Encode(), payload...)) != h.Checksum {
		return nil, ErrChecksum
	}

	return &Packet{Header: h, Payload: payload}, nil
}
