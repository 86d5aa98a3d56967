package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/gridclash/gridclash-node/pkg/api"
	"github.com/gridclash/gridclash-node/pkg/metrics"
	"github.com/gridclash/gridclash-node/pkg/server"
)

func serveCmd() *cobra.Command {
	var (
		port        int
		apiAddr     string
		broadcastHz int
		timeoutSec  int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the authoritative game server",
		Long: `Run the authoritative GridClash server.

The server owns the grid, arbitrates cell claims first come first
served and broadcasts state snapshots to every connected player.
An HTTP endpoint exposes game status and prometheus metrics.

Examples:
  gridclash serve
  gridclash serve --port=12000 --api=:8080
  gridclash serve --broadcast-hz=30`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(port, apiAddr, broadcastHz, timeoutSec)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 12000, "UDP port to listen on")
	cmd.Flags().StringVar(&apiAddr, "api", ":8080", "HTTP listen address for status and metrics")
	cmd.Flags().IntVar(&broadcastHz, "broadcast-hz", 20, "Snapshot broadcast rate")
	cmd.Flags().IntVar(&timeoutSec, "timeout", 10, "Heartbeat timeout in seconds")

	return cmd
}

func runServe(port int, apiAddr string, broadcastHz, timeoutSec int) error {
	printBanner()

	cfg := server.DefaultConfig()
	cfg.Port = port
	cfg.BroadcastHz = broadcastHz
	cfg.HeartbeatTimeout = time.Duration(timeoutSec) * time.Second

	registry := prometheus.NewRegistry()
	m := metrics.NewServerMetrics(registry)

	srv, err := server.NewGridServer(cfg, m)
	if err != nil {
		return fmt.Errorf("failed to start server: %v", err)
	}
	go srv.Run()

	apiCfg := api.DefaultConfig()
	apiCfg.ListenAddr = apiAddr
	apiSrv := api.NewServer(apiCfg, srv, registry)
	go func() {
		if err := apiSrv.Start(); err != nil {
			log.Printf("[API] %v", err)
		}
	}()

	log.Printf("✓ Server ready on %s, API on %s", srv.Addr(), apiAddr)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Println("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiSrv.Shutdown(ctx); err != nil {
		log.Printf("[API] shutdown: %v", err)
	}
	srv.Stop()
	return nil
}
