package cli

import (
	"context"
	"os"
	"path/filepath"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/spf13/cobra"

	"github.com/sitevar/sitevar/internal/reconcile"
	"github.com/sitevar/sitevar/internal/remote"
	"github.com/sitevar/sitevar/internal/store"
)

// newFormatter builds the formatter for one command invocation.
func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}

// openStore loads config and opens the local database.
func openStore(opts *RootOptions) (*store.Store, Config, error) {
	cfg, err := LoadConfig(opts.ConfigPath)
	if err != nil {
		return nil, Config{}, WrapExitError(ExitCommandError, "loading config", err)
	}
	if opts.DBPath != "" {
		cfg.DBPath = opts.DBPath
	}
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return nil, Config{}, WrapExitError(ExitCommandError, "creating data directory", err)
	}
	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, Config{}, WrapExitError(ExitCommandError, "opening database", err)
	}
	return st, cfg, nil
}

// newReconciler builds the reconciler against the configured AWS
// resources. online reports connectivity at reconcile time.
func newReconciler(ctx context.Context, cfg Config, st *store.Store, online func() bool) (*reconcile.Reconciler, error) {
	if err := cfg.requireRemote(); err != nil {
		return nil, WrapExitError(ExitCommandError, "sync is not configured", err)
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "loading AWS config", err)
	}
	backend := remote.NewDynamo(dynamodb.NewFromConfig(awsCfg), cfg.AWS.Table)
	blobs := remote.NewS3BlobStore(s3.NewFromConfig(awsCfg), cfg.AWS.Bucket)
	return reconcile.New(st, backend, blobs, cfg.Owner, online, nil), nil
}
