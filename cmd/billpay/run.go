package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/talx-hub/gopher-billpay/internal/automation/flows"
	"github.com/talx-hub/gopher-billpay/internal/batch"
	"github.com/talx-hub/gopher-billpay/internal/export"
	"github.com/talx-hub/gopher-billpay/internal/model"
	"github.com/talx-hub/gopher-billpay/internal/model/order"
	"github.com/talx-hub/gopher-billpay/internal/model/outcome"
)

type runOptions struct {
	amount      string
	noReconcile bool
	quiet       bool
}

func runCmd() *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run <service> [file]",
		Short: "Process codes from a file or stdin in the foreground",
		Long: `Process one code per line for the given service and export the results.

Lines may carry extras separated by '|': "code|orderID" for lookups and
"phone|amount|orderID" for top-ups. Interrupting the run finishes the code in
flight, skips the rest and still writes the export.

Services: tra_cuu_ftth, gach_dien_evn, nap_tien_da_mang, nap_tien_viettel,
thanh_toan_tv_internet, tra_cuu_no_tra_sau.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd, args, opts)
		},
	}
	cmd.Flags().StringVar(&opts.amount, "amount", "", "Top-up amount for lines without one")
	cmd.Flags().BoolVar(&opts.noReconcile, "no-reconcile", false, "Do not write results to the order store")
	cmd.Flags().BoolVarP(&opts.quiet, "quiet", "q", false, "Hide the progress bar")
	return cmd
}

func runBatch(cmd *cobra.Command, args []string, opts *runOptions) error {
	ctx := cmd.Context()

	svc, err := order.ParseServiceType(args[0])
	if err != nil {
		return err
	}
	lines, err := readLines(cmd.InOrStdin(), args[1:])
	if err != nil {
		return err
	}

	var rec batch.Reconciler
	if !opts.noReconcile {
		if err = cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
		var st *stores
		if st, err = openStores(ctx, cfg); err != nil {
			return err
		}
		defer st.close()
		rec = st.reconciler()
	}

	fo := flowOptions()
	if opts.amount != "" {
		fo.Amount = opts.amount
	}
	flow, err := flows.New(svc, fo)
	if err != nil {
		return fmt.Errorf("failed to build flow: %w", err)
	}

	browser, err := launchBrowser(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := browser.Close(); err != nil {
			log.LogAttrs(ctx, slog.LevelError, "failed to close browser",
				slog.Any(model.KeyLoggerError, err))
		}
	}()

	stop := batch.NewStopToken()
	go func() {
		<-ctx.Done()
		stop.Stop()
	}()

	progress := newBarProgress(countCodes(lines), cmd.ErrOrStderr(), opts.quiet)
	driver := batch.NewDriver(flow, rec, export.New(cfg.ResultDir), batch.DefaultConfig())
	res, err := driver.Run(context.WithoutCancel(ctx), batch.RunContext{
		Stop:     stop,
		Session:  browser,
		Progress: progress,
	}, lines)
	if err != nil {
		return fmt.Errorf("batch failed: %w", err)
	}

	return printRows(cmd.OutOrStdout(), res)
}

// readLines reads the file named in args, or in when there is none.
func readLines(in io.Reader, args []string) ([]string, error) {
	var (
		data []byte
		err  error
	)
	if len(args) == 0 || args[0] == "-" {
		data, err = io.ReadAll(in)
	} else {
		data, err = os.ReadFile(args[0])
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}
	return model.SplitLines(string(data)), nil
}

func countCodes(lines []string) int {
	n := 0
	for _, l := range lines {
		if _, ok := model.ParseItem(l); ok {
			n++
		}
	}
	return n
}

// barProgress renders processed codes on a terminal progress bar.
type barProgress struct {
	bar *progressbar.ProgressBar
}

func newBarProgress(total int, w io.Writer, quiet bool) *barProgress {
	if quiet {
		w = io.Discard
	}
	return &barProgress{
		bar: progressbar.NewOptions(total,
			progressbar.OptionSetWriter(w),
			progressbar.OptionEnableColorCodes(true),
			progressbar.OptionShowCount(),
			progressbar.OptionShowElapsedTimeOnFinish(),
			progressbar.OptionSetWidth(40),
			progressbar.OptionSetDescription("[cyan]Processing...[reset]"),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "[green]=[reset]",
				SaucerHead:    "[green]>[reset]",
				SaucerPadding: " ",
				BarStart:      "[",
				BarEnd:        "]",
			}),
			progressbar.OptionOnCompletion(func() {
				_, _ = fmt.Fprintln(w)
			}),
		),
	}
}

func (p *barProgress) Processed(item model.Item, o outcome.Outcome) {
	p.bar.Describe(fmt.Sprintf("[cyan]%s[reset] %s", item.Code, o.Kind))
	if err := p.bar.Add(1); err != nil {
		slog.Warn("failed to update progress bar", slog.Any(model.KeyLoggerError, err))
	}
}

func printRows(w io.Writer, res batch.Result) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "#\tCODE\tAMOUNT\tSTATUS\tNOTES")
	for i, r := range res.Rows {
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", i+1, r.Code, r.Amount, r.Status, r.Notes)
	}
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("failed to print rows: %w", err)
	}

	if res.Stopped {
		_, _ = fmt.Fprintln(w, "stopped before the end of the input")
	}
	if res.ExportPath != "" {
		_, _ = fmt.Fprintf(w, "exported to %s\n", res.ExportPath)
	}
	return nil
}
