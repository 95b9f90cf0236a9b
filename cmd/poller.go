package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/glagolgames/wordchain/internal/broker"
	"github.com/glagolgames/wordchain/internal/config"
	"github.com/glagolgames/wordchain/internal/poller"
	"github.com/glagolgames/wordchain/internal/telegram"
)

func pollerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "poller",
		Short: "Run the Telegram long-poll process",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := setupLogger()
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(),
				os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
			defer stop()

			bot, err := telegram.NewBot(cfg.Telegram.Token)
			if err != nil {
				return err
			}
			mq := broker.NewClient(cfg.RabbitMQ.URL(), log)
			defer mq.Close()

			p := poller.New(bot, mq, cfg.Telegram.PollTimeout, log)
			if err := p.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			log.Info("poller stopped")
			return nil
		},
	}
}
