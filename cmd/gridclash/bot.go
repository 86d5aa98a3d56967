package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/gridclash/gridclash-node/pkg/bot"
	"github.com/gridclash/gridclash-node/pkg/client"
)

func botCmd() *cobra.Command {
	var (
		serverAddr string
		count      int
		intervalMS int
		restart    bool
	)

	cmd := &cobra.Command{
		Use:   "bot",
		Short: "Run automated players",
		Long: `Run one or more automated players against a server.

Each bot walks to the nearest unclaimed cell and claims its way there,
replanning when an opponent takes a cell on its route.

Examples:
  gridclash bot
  gridclash bot --count=3 --server=127.0.0.1:12000
  gridclash bot --restart`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBots(serverAddr, count, intervalMS, restart)
		},
	}

	cmd.Flags().StringVarP(&serverAddr, "server", "s", "127.0.0.1:12000", "Server address")
	cmd.Flags().IntVarP(&count, "count", "c", 1, "Number of bots")
	cmd.Flags().IntVar(&intervalMS, "interval", 150, "Move interval in milliseconds")
	cmd.Flags().BoolVar(&restart, "restart", false, "Request a new game after each round")

	return cmd
}

func runBots(serverAddr string, count, intervalMS int, restart bool) error {
	stop := make(chan struct{})
	var wg sync.WaitGroup

	for i := 0; i < count; i++ {
		cliCfg := client.DefaultConfig()
		cliCfg.ServerAddr = serverAddr
		c, err := client.NewGridClient(cliCfg, nil)
		if err != nil {
			close(stop)
			return fmt.Errorf("failed to create bot %d: %v", i, err)
		}
		defer c.Close()

		botCfg := bot.DefaultConfig()
		botCfg.MoveInterval = time.Duration(intervalMS) * time.Millisecond
		botCfg.AutoRestart = restart

		wg.Add(1)
		go func(b *bot.Bot) {
			defer wg.Done()
			b.Run(stop)
		}(bot.New(c, botCfg))
	}
	log.Printf("✓ %d bot(s) playing against %s", count, serverAddr)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	close(stop)
	wg.Wait()
	return nil
}
