package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/glagolgames/wordchain/internal/broker"
	"github.com/glagolgames/wordchain/internal/config"
	"github.com/glagolgames/wordchain/internal/sender"
	"github.com/glagolgames/wordchain/internal/telegram"
)

func senderCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sender",
		Short: "Run the outbound Telegram executor process",
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

			s := sender.New(bot, mq, log)

			log.Info("sender started",
				"consumers", cfg.Worker.SenderConcurrency,
				"queue", broker.QueueSender)

			g, ctx := errgroup.WithContext(ctx)
			for i := 0; i < cfg.Worker.SenderConcurrency; i++ {
				g.Go(func() error {
					return mq.Consume(ctx, broker.QueueSender, s.Handle)
				})
			}
			if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			log.Info("sender stopped")
			return nil
		},
	}
}
