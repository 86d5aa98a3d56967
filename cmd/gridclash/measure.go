package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/gridclash/gridclash-node/pkg/client"
	"github.com/gridclash/gridclash-node/pkg/metrics"
)

func measureCmd() *cobra.Command {
	var (
		serverAddr string
		dbPath     string
		durationS  int
	)

	cmd := &cobra.Command{
		Use:   "measure",
		Short: "Run a headless client that records snapshot metrics",
		Long: `Join a server without a display and record every received
snapshot (latency, jitter, size) to a sqlite database for offline
analysis.

Examples:
  gridclash measure --db=run1.db
  gridclash measure --server=10.0.0.5:12000 --duration=60`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMeasure(serverAddr, dbPath, durationS)
		},
	}

	cmd.Flags().StringVarP(&serverAddr, "server", "s", "127.0.0.1:12000", "Server address")
	cmd.Flags().StringVar(&dbPath, "db", "gridclash-metrics.db", "Path of the sqlite output database")
	cmd.Flags().IntVarP(&durationS, "duration", "d", 0, "Seconds to run, 0 for until interrupted")

	return cmd
}

func runMeasure(serverAddr, dbPath string, durationS int) error {
	cfg := client.DefaultConfig()
	cfg.ServerAddr = serverAddr

	c, err := client.NewGridClient(cfg, nil)
	if err != nil {
		return fmt.Errorf("failed to connect: %v", err)
	}
	defer c.Close()

	c.Join()

	// Wait for the handshake so the recorder is tagged with the real id.
	deadline := time.Now().Add(3 * time.Second)
	for !c.Joined() && !c.ServerFull() && time.Now().Before(deadline) {
		c.Poll()
	}
	if c.ServerFull() {
		return fmt.Errorf("server full")
	}
	if !c.Joined() {
		return fmt.Errorf("no response from %s", serverAddr)
	}

	rec, err := metrics.NewRecorder(dbPath, c.PlayerID())
	if err != nil {
		return err
	}
	defer rec.Close()
	c.AttachRecorder(rec)

	log.Printf("✓ Recording as player %d into %s", c.PlayerID(), dbPath)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	var timeout <-chan time.Time
	if durationS > 0 {
		timeout = time.After(time.Duration(durationS) * time.Second)
	}

	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()
loop:
	for {
		select {
		case <-sig:
			break loop
		case <-timeout:
			break loop
		case now := <-ticker.C:
			c.Poll()
			c.SendHeartbeatIfDue(now)
		}
	}

	count, err := rec.Count()
	if err != nil {
		return err
	}
	avg, err := rec.AverageLatency()
	if err != nil {
		return err
	}
	log.Printf("✓ Recorded %d snapshots, average latency %v", count, avg)
	return nil
}
