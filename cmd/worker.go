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
	"github.com/glagolgames/wordchain/internal/dictionary"
	"github.com/glagolgames/wordchain/internal/store/pg"
	"github.com/glagolgames/wordchain/internal/worker"
)

func workerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run the game state machine process",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := setupLogger()
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(),
				os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
			defer stop()

			db, err := pg.OpenDB(cfg.Postgres.DSN())
			if err != nil {
				return err
			}
			defer db.Close()
			st := pg.NewStore(db)

			settings, err := st.Settings.Get(ctx)
			if err != nil {
				return err
			}

			mq := broker.NewClient(cfg.RabbitMQ.URL(), log)
			defer mq.Close()

			dict := dictionary.New(cfg.Dict.Token, cfg.Dict.Lang, log)
			w := worker.New(st, mq, dict, settings, log)

			log.Info("worker started",
				"consumers", cfg.Worker.WorkerConcurrency,
				"queue", broker.QueueWorker)

			g, ctx := errgroup.WithContext(ctx)
			for i := 0; i < cfg.Worker.WorkerConcurrency; i++ {
				g.Go(func() error {
					return mq.Consume(ctx, broker.QueueWorker, w.Handle)
				})
			}
			if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			log.Info("worker stopped")
			return nil
		},
	}
}
