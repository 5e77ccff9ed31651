package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/talx-hub/gopher-billpay/internal/utils/auth"
)

func tokenCmd() *cobra.Command {
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token <operator>",
		Short: "Issue a bearer token for the control API",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.SecretKey == "" {
				return errors.New("SECRET_KEY is not set")
			}
			token, err := auth.BuildToken(args[0], []byte(cfg.SecretKey), ttl)
			if err != nil {
				return fmt.Errorf("failed to build token: %w", err)
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", auth.TokenExpire, "Token lifetime")
	return cmd
}
