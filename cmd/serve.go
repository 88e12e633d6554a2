package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"terrasync/internal/activity"
	"terrasync/internal/db"
	"terrasync/internal/executor"
	"terrasync/internal/logger"
	"terrasync/internal/schedule"
	"terrasync/internal/scheduler"
	"terrasync/internal/server"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the sync daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		defer logger.Sync()

		if err := db.Init(cfg.DBPath); err != nil {
			return err
		}

		recorder := activity.NewRecorder()
		manager := schedule.NewManager()
		exec := executor.New(manager, recorder, cfg)
		loop := scheduler.New(exec, cfg)
		srv := server.New(manager, exec, recorder, cfg.Port)

		cfg.Watch(loop.Reload)

		loop.Start()
		srv.Start()

		logger.Log.Info("terrasync ready",
			zap.Int("port", cfg.Port),
			zap.String("db", cfg.DBPath))

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

		select {
		case <-sigCh:
		case <-srv.StopCh():
		}

		loop.Stop()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Stop(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
