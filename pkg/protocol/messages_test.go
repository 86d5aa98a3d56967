package protocol

import (
	"bytes"
	"testing"
)

func TestServerInitResponseLayout(t *testing.T) {
	m := &ServerInitResponse{PlayerID: 2, SpawnX: 14, SpawnY: 5}
	encoded := m.Encode()

	if len(encoded) != 9 {
		t.Fatalf("Encode() length = %d, want 9", len(encoded))
	}

	decoded := &ServerInitResponse{}
	if err := decoded.Decode(encoded); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if *decoded != *m {
		t.Errorf("Decode() = %+v, want %+v", decoded, m)
	}
}

func TestServerInitResponseNegativeCoords(t *testing.T) {
	// Spawn coordinates are signed on the wire.
	m := &ServerInitResponse{PlayerID: 0, SpawnX: -1, SpawnY: -20}

	decoded := &ServerInitResponse{}
	if err := decoded.Decode(m.Encode()); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if decoded.SpawnX != -1 || decoded.SpawnY != -20 {
		t.Errorf("Decode() = (%d,%d), want (-1,-20)", decoded.SpawnX, decoded.SpawnY)
	}
}

func TestAcquireRequestRoundTrip(t *testing.T) {
	m := &AcquireRequest{Row: 19, Col: 0, ClientTimestamp: 1700000000123}

	decoded := &AcquireRequest{}
	if err := decoded.Decode(m.Encode()); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if *decoded != *m {
		t.Errorf("Decode() = %+v, want %+v", decoded, m)
	}
}

func TestAckPayloadSuccessFlag(t *testing.T) {
	for _, success := range []bool{true, false} {
		m := &AckPayload{Seq: 7, Success: success}
		encoded := m.Encode()

		if len(encoded) != 5 {
			t.Fatalf("Encode() length = %d, want 5", len(encoded))
		}

		decoded := &AckPayload{}
		if err := decoded.Decode(encoded); err != nil {
			t.Fatalf("Decode() error = %v", err)
		}
		if decoded.Seq != 7 || decoded.Success != success {
			t.Errorf("Decode() = %+v, want seq=7 success=%v", decoded, success)
		}
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	grid := make([]byte, GridCells)
	for i := range grid {
		grid[i] = UnclaimedID
	}
	grid[0] = 0
	grid[GridWidth+1] = 2

	m := &Snapshot{
		Grid: grid,
		Players: []SnapshotPlayer{
			{ID: 0, Score: 12, X: 3, Y: 4, DX: 1, DY: 0},
			{ID: 2, Score: 200, X: 19, Y: 19, DX: -1, DY: -1},
		},
	}

	encoded := m.Encode()
	wantLen := GridCells + 1 + 2*snapshotPlayerSize
	if len(encoded) != wantLen {
		t.Fatalf("Encode() length = %d, want %d", len(encoded), wantLen)
	}

	decoded := &Snapshot{}
	if err := decoded.Decode(encoded); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if !bytes.Equal(decoded.Grid, grid) {
		t.Error("grid bytes do not round-trip")
	}
	if len(decoded.Players) != 2 {
		t.Fatalf("Players = %d, want 2", len(decoded.Players))
	}
	for i := range m.Players {
		if decoded.Players[i] != m.Players[i] {
			t.Errorf("player %d = %+v, want %+v", i, decoded.Players[i], m.Players[i])
		}
	}
}

func TestSnapshotFitsInPacket(t *testing.T) {
	// A full snapshot with the maximum player count must stay under the
	// packet-size ceiling.
	m := &Snapshot{
		Grid:    make([]byte, GridCells),
		Players: make([]SnapshotPlayer, MaxPlayers),
	}
	if got := len(m.Encode()); got > MaxPayloadSize {
		t.Errorf("snapshot payload = %d bytes, exceeds %d", got, MaxPayloadSize)
	}
}

func TestSnapshotDecodeTruncated(t *testing.T) {
	m := &Snapshot{
		Grid:    make([]byte, GridCells),
		Players: []SnapshotPlayer{{ID: 1}},
	}
	encoded := m.Encode()

	tests := []struct {
		name string
		buf  []byte
	}{
		{"empty", nil},
		{"grid only, no count", encoded[:GridCells]},
		{"player truncated", encoded[:len(encoded)-1]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decoded := &Snapshot{}
			if err := decoded.Decode(tt.buf); err != ErrShortPayload {
				t.Errorf("Decode() error = %v, want %v", err, ErrShortPayload)
			}
		})
	}
}

func TestGameOverRoundTrip(t *testing.T) {
	m := &GameOver{WinnerID: 3, WinnerScore: 201}

	decoded := &GameOver{}
	if err := decoded.Decode(m.Encode()); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if *decoded != *m {
		t.Errorf("Decode() = %+v, want %+v", decoded, m)
	}
}

func TestSingleByteMessagesTooShort(t *testing.T) {
	if err := (&ClientInit{}).Decode(nil); err != ErrShortPayload {
		t.Errorf("ClientInit.Decode(nil) = %v, want %v", err, ErrShortPayload)
	}
	if err := (&Heartbeat{}).Decode(nil); err != ErrShortPayload {
		t.Errorf("Heartbeat.Decode(nil) = %v, want %v", err, ErrShortPayload)
	}
	if err := (&NewGame{}).Decode(nil); err != ErrShortPayload {
		t.Errorf("NewGame.Decode(nil) = %v, want %v", err, ErrShortPayload)
	}
}
