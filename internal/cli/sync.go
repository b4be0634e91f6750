package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sitevar/sitevar/internal/connectivity"
	"github.com/sitevar/sitevar/internal/reconcile"
)

// SyncOptions holds flags for the sync command.
type SyncOptions struct {
	*RootOptions
	Offline bool
}

// NewSyncCommand creates the sync command.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SyncOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Reconcile local records with the remote backend",
		Long: `Run one reconciliation pass: push pending local records (uploading
artifact binaries first), then pull remote changes. Records that fail to
push are marked for retry and never block the rest of the pass.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(opts, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Offline, "offline", false, "treat the device as offline (skip the pass)")
	return cmd
}

func runSync(opts *SyncOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	st, cfg, err := openStore(opts.RootOptions)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := cmd.Context()
	monitor := connectivity.New(false, nil)
	rec, err := newReconciler(ctx, cfg, st, monitor.Online)
	if err != nil {
		formatter.Error(ErrCodeSync, err.Error(), nil)
		return err
	}

	// The pass is driven by the connectivity transition: going online
	// fires the bound reconciler. Staying offline fires nothing and the
	// skip result is reported directly.
	var (
		res     reconcile.SyncResult
		passErr error
		fired   bool
	)
	stop := rec.BindMonitor(ctx, monitor, func(r reconcile.SyncResult, err error) {
		res, passErr, fired = r, err, true
	})
	defer stop()
	monitor.SetOnline(!opts.Offline)
	if !fired {
		res = reconcile.SyncResult{Reason: "no connectivity"}
	}

	if err := passErr; err != nil {
		formatter.Error(ErrCodeSync, err.Error(), nil)
		return WrapExitError(ExitCommandError, "sync failed", err)
	}
	if !res.Success {
		formatter.Error(ErrCodeSync, res.Reason,
			map[string]int{"pushed": res.Pushed, "pulled": res.Pulled})
		return NewExitError(ExitFailure, res.Reason)
	}
	return formatter.SuccessText(
		fmt.Sprintf("Synced: %d pushed, %d pulled", res.Pushed, res.Pulled),
		res,
	)
}

// NewPendingCommand creates the pending command.
func NewPendingCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "pending",
		Short:         "Show how many records await sync",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(rootOpts, cmd)
			st, _, err := openStore(rootOpts)
			if err != nil {
				return err
			}
			defer st.Close()

			n, err := st.PendingCount(cmd.Context())
			if err != nil {
				formatter.Error(ErrCodeStore, err.Error(), nil)
				return WrapExitError(ExitCommandError, "counting pending records", err)
			}
			return formatter.SuccessText(
				fmt.Sprintf("%d record(s) pending sync", n),
				map[string]int{"pending": n},
			)
		},
	}
}
