// Package protocol implements the GridClash wire protocol.
//
// GridClash is a real-time grid-claiming game played over UDP. One
// authoritative server owns the shared state; up to four peers move a
// cursor and race to claim cells. Every datagram starts with a fixed
// 28-byte big-endian header followed by a typed payload.
//
// # Header Format
//
//   - Magic (4 bytes): protocol identifier (0x47435550 = "GCUP")
//   - Version (1 byte): protocol version
//   - Type (1 byte): message type
//   - SnapshotID (4 bytes): monotonic per broadcast tick
//   - SeqNum (4 bytes): per-connection for broadcasts, per-request for
//     reliable messages
//   - Timestamp (8 bytes): sender time in Unix milliseconds
//   - PayloadLen (2 bytes): trailing payload byte count
//   - Checksum (4 bytes): CRC-32 over the zero-checksum header plus payload
//
// # Message Types
//
// Server to client:
//   - Snapshot: periodic full state (grid bytes plus player summaries with
//     a one-frame position delta for loss recovery)
//   - ServerInitResponse: join confirmation with assigned id and spawn cell
//   - Ack/Nack: outcome of a reliable cell-claim request
//   - GameOver: terminal result
//   - ServerFull: join rejection
//
// Client to server:
//   - ClientInit: join request
//   - Heartbeat: liveness, resets the session timeout clock
//   - AcquireRequest: reliable cell-claim attempt
//   - NewGame: reset request after a finished round
//
// # Validation
//
// Unpack never trusts content until the length, declared payload length,
// magic, version, and checksum checks all pass; each failure is a distinct
// sentinel error. Anything that fails is not a packet and is dropped at
// the boundary before it can reach game logic.
package protocol
