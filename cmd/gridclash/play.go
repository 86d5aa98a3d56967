package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/gridclash/gridclash-node/pkg/bot"
	"github.com/gridclash/gridclash-node/pkg/client"
	"github.com/gridclash/gridclash-node/pkg/server"
	"github.com/gridclash/gridclash-node/pkg/ui"
)

func playCmd() *cobra.Command {
	var (
		serverAddr string
		local      bool
		bots       int
	)

	cmd := &cobra.Command{
		Use:   "play",
		Short: "Play in the terminal",
		Long: `Join a server and play with the arrow keys.

With --local an in-process server is started first, optionally
populated with bot opponents, so a single command gives a full game.

Examples:
  gridclash play --server=10.0.0.5:12000
  gridclash play --local --bots=3`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlay(serverAddr, local, bots)
		},
	}

	cmd.Flags().StringVarP(&serverAddr, "server", "s", "127.0.0.1:12000", "Server address")
	cmd.Flags().BoolVarP(&local, "local", "l", false, "Start an in-process server")
	cmd.Flags().IntVarP(&bots, "bots", "b", 0, "Bot opponents to add (with --local)")

	return cmd
}

func runPlay(serverAddr string, local bool, bots int) error {
	stop := make(chan struct{})
	defer close(stop)

	if local {
		srv, err := server.NewGridServer(server.DefaultConfig(), nil)
		if err != nil {
			return fmt.Errorf("failed to start local server: %v", err)
		}
		go srv.Run()
		defer srv.Stop()
		serverAddr = srv.Addr().String()

		for i := 0; i < bots; i++ {
			if err := startBot(serverAddr, stop); err != nil {
				return err
			}
		}
		// Let the bots join before the human takes the last slot.
		time.Sleep(100 * time.Millisecond)
	}

	cfg := client.DefaultConfig()
	cfg.ServerAddr = serverAddr
	c, err := client.NewGridClient(cfg, nil)
	if err != nil {
		return fmt.Errorf("failed to connect: %v", err)
	}
	defer c.Close()

	return ui.New(c).Run()
}

func startBot(serverAddr string, stop <-chan struct{}) error {
	cfg := client.DefaultConfig()
	cfg.ServerAddr = serverAddr
	c, err := client.NewGridClient(cfg, nil)
	if err != nil {
		return fmt.Errorf("failed to create bot: %v", err)
	}

	botCfg := bot.DefaultConfig()
	botCfg.AutoRestart = false
	go func() {
		defer c.Close()
		bot.New(c, botCfg).Run(stop)
	}()
	return nil
}
