package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/talx-hub/gopher-billpay/internal/config"
	"github.com/talx-hub/gopher-billpay/internal/utils/logger"
)

var (
	envFiles []string
	cfg      *config.Config
	log      *slog.Logger
	rootCmd  = &cobra.Command{
		Use:   "billpay",
		Short: "Bill payment automation for the agent portal",
		Long: `billpay drives the agent portal in a browser to look up and pay bills,
writes the results back to the order store and exports every batch to Excel.`,
		SilenceUsage:      true,
		PersistentPreRunE: initConfig,
	}
)

func init() {
	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", []string{".env"}, "dotenv files to load")
	config.RegisterFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(pendingCmd())
	rootCmd.AddCommand(enqueueCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(tokenCmd())
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func initConfig(cmd *cobra.Command, _ []string) error {
	bootLog := logger.New(slog.LevelInfo)
	cfg = config.NewBuilder(bootLog).
		FromDotEnv(envFiles...).
		FromEnv().
		FromFlags(cmd.Flags()).
		GetConfig()

	log = logger.New(cfg.SlogLevel())
	slog.SetDefault(log)
	cmd.SetContext(logger.WithContext(cmd.Context(), log))
	return nil
}
