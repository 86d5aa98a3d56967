package metrics

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SnapshotRecord is one received snapshot's measurement row.
type SnapshotRecord struct {
	PlayerID   uint8
	SnapshotID uint32
	SeqNum     uint32
	ServerTS   uint64 // broadcast timestamp, Unix ms
	RecvTS     uint64 // local receive timestamp, Unix ms
	LatencyMS  int64
	JitterMS   float64
	Bytes      int
}

// Recorder persists per-snapshot packet records to a sqlite database so the
// offline plotting tooling can read them after the run. It also maintains
// the EWMA jitter estimate across records (7/8 previous + 1/8 new sample).
type Recorder struct {
	db       *sql.DB
	playerID uint8

	lastRecvTS   uint64
	lastServerTS uint64
	jitter       float64
}

// NewRecorder opens (or creates) the metrics database at dbPath.
func NewRecorder(dbPath string, playerID uint8) (*Recorder, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open metrics database: %v", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL: %v", err)
	}

	r := &Recorder{db: db, playerID: playerID}
	if err := r.initSchema(); err != nil {
		return nil, err
	}

	return r, nil
}

func (r *Recorder) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS snapshot_records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		player_id INTEGER NOT NULL,
		snapshot_id INTEGER NOT NULL,
		seq_num INTEGER NOT NULL,
		server_ts_ms INTEGER NOT NULL,
		recv_ts_ms INTEGER NOT NULL,
		latency_ms INTEGER NOT NULL,
		jitter_ms REAL NOT NULL,
		bytes INTEGER NOT NULL,
		created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	);

	-- Index for per-run extraction ordered by broadcast time
	CREATE INDEX IF NOT EXISTS idx_server_ts ON snapshot_records(server_ts_ms);
	`

	if _, err := r.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %v", err)
	}

	return nil
}

// RecordSnapshot derives latency and jitter for one received snapshot and
// inserts the row. Safe to call at broadcast rate; sqlite in WAL mode keeps
// up comfortably at 20 Hz.
func (r *Recorder) RecordSnapshot(snapshotID, seqNum uint32, serverTS, recvTS uint64, bytes int) (SnapshotRecord, error) {
	latency := int64(recvTS) - int64(serverTS)

	if r.lastRecvTS > 0 {
		deltaRecv := int64(recvTS) - int64(r.lastRecvTS)
		deltaServer := int64(serverTS) - int64(r.lastServerTS)
		instJitter := deltaRecv - deltaServer
		if instJitter < 0 {
			instJitter = -instJitter
		}
		r.jitter = 0.875*r.jitter + 0.125*float64(instJitter)
	}
	r.lastRecvTS = recvTS
	r.lastServerTS = serverTS

	rec := SnapshotRecord{
		PlayerID:   r.playerID,
		SnapshotID: snapshotID,
		SeqNum:     seqNum,
		ServerTS:   serverTS,
		RecvTS:     recvTS,
		LatencyMS:  latency,
		JitterMS:   r.jitter,
		Bytes:      bytes,
	}

	query := `
		INSERT INTO snapshot_records (player_id, snapshot_id, seq_num, server_ts_ms, recv_ts_ms, latency_ms, jitter_ms, bytes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.Exec(query,
		rec.PlayerID, rec.SnapshotID, rec.SeqNum,
		rec.ServerTS, rec.RecvTS, rec.LatencyMS, rec.JitterMS, rec.Bytes)
	if err != nil {
		return rec, fmt.Errorf("failed to record snapshot: %v", err)
	}

	return rec, nil
}

// Count returns the number of stored records.
func (r *Recorder) Count() (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM snapshot_records`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count records: %v", err)
	}
	return count, nil
}

// AverageLatency returns the mean latency over all stored records.
func (r *Recorder) AverageLatency() (time.Duration, error) {
	var avg sql.NullFloat64
	err := r.db.QueryRow(`SELECT AVG(latency_ms) FROM snapshot_records`).Scan(&avg)
	if err != nil {
		return 0, fmt.Errorf("failed to average latency: %v", err)
	}
	if !avg.Valid {
		return 0, nil // no records
	}
	return time.Duration(avg.Float64 * float64(time.Millisecond)), nil
}

// Close closes the database connection.
func (r *Recorder) Close() error {
	return r.db.Close()
}
