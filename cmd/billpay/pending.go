package main

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/talx-hub/gopher-billpay/internal/model"
	"github.com/talx-hub/gopher-billpay/internal/model/order"
)

func pendingCmd() *cobra.Command {
	var (
		limit int
		lines bool
	)
	cmd := &cobra.Command{
		Use:   "pending <service>",
		Short: "List codes waiting for processing",
		Long: `List the oldest pending codes of a service from the order database.

With --lines the output is ready to be piped into "billpay run".`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, err := order.ParseServiceType(args[0])
			if err != nil {
				return err
			}
			if cfg.DatabaseURI == "" {
				return errNoDatabase
			}
			if limit <= 0 {
				limit = cfg.PendingLimit
			}

			st, err := openStores(ctx, cfg)
			if err != nil {
				return err
			}
			defer st.close()

			codes, err := st.orders.FetchPendingCodes(ctx, svc, limit)
			if err != nil {
				return fmt.Errorf("failed to fetch pending codes: %w", err)
			}

			out := cmd.OutOrStdout()
			if lines {
				for _, c := range codes {
					_, _ = fmt.Fprintln(out, c.Line())
				}
				return nil
			}

			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(tw, "CREATED\tCODE\tORDER")
			for _, c := range codes {
				_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\n",
					c.CreatedAt.Format("2006-01-02 15:04:05"), c.Code, c.OrderID)
			}
			return tw.Flush() //nolint: wrapcheck // terminal output
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of codes (default PENDING_LIMIT)")
	cmd.Flags().BoolVar(&lines, "lines", false, "Print batch input lines only")
	return cmd
}

func enqueueCmd() *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "enqueue <service> [file]",
		Short: "Create pending orders for codes from a file or stdin",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, err := order.ParseServiceType(args[0])
			if err != nil {
				return err
			}
			if cfg.DatabaseURI == "" {
				return errNoDatabase
			}
			if userID == "" {
				return errors.New("--user is required")
			}

			lines, err := readLines(cmd.InOrStdin(), args[1:])
			if err != nil {
				return err
			}
			codes := make([]string, 0, len(lines))
			for _, l := range lines {
				if item, ok := model.ParseItem(l); ok {
					codes = append(codes, transactionCode(item))
				}
			}

			st, err := openStores(ctx, cfg)
			if err != nil {
				return err
			}
			defer st.close()

			n, err := st.orders.InsertOrders(ctx, svc, userID, codes)
			if err != nil {
				return fmt.Errorf("failed to enqueue codes: %w", err)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "enqueued %d codes for %s\n", n, svc.Label())
			return nil
		},
	}
	cmd.Flags().StringVarP(&userID, "user", "u", "", "Owner user id of the new orders")
	return cmd
}

// transactionCode keeps the top-up amount next to the phone number the
// way the order store records it.
func transactionCode(item model.Item) string {
	if item.Amount == "" {
		return item.Code
	}
	return item.Code + "|" + item.Amount
}
