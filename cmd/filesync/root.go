package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/studio1767/filesync/internal/config"
	"github.com/studio1767/filesync/internal/manifest"
	"github.com/studio1767/filesync/internal/remote"
	"github.com/studio1767/filesync/internal/remote/openai"
	"github.com/studio1767/filesync/internal/remote/s3store"
	"github.com/studio1767/filesync/internal/syncer"
)

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:           "filesync",
		Short:         "Incrementally sync a directory tree into a remote file store",
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return bindConfig(v, cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig(v)
			if err := cfg.Validate(); err != nil {
				return err
			}
			cmd.SilenceUsage = true

			return runSync(cmd.Context(), cfg, stdout, newLogger(stderr, cfg.Verbose))
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	flags := cmd.Flags()
	flags.SortFlags = false
	flags.Bool("dry-run", false, "print the plan without uploading, deleting or writing the manifest")
	flags.Bool("delete-files-api", false, "delete remote objects of removed files and superseded versions")
	flags.String("vector-store-id", "", "upload into this vector store instead of the files store")
	flags.Int("max-workers", config.DefaultMaxWorkers, "parallel uploads")
	flags.Int("max-size-mb", config.DefaultMaxSizeMB, "skip files larger than this many MiB")
	flags.String("job", "", "yaml job file with ignore and filter rules")
	flags.String("store", config.StoreOpenAI, "remote store: openai or s3")
	flags.String("bucket", "", "s3 bucket")
	flags.String("prefix", "filesync", "s3 key prefix")
	flags.String("profile", "", "aws profile for credentials and configuration")
	flags.String("recipients", "", "age recipients file; encrypts s3 uploads when set")

	pflags := cmd.PersistentFlags()
	pflags.String("root", config.DefaultRoot, "directory to sync")
	pflags.String("manifest", "", "manifest path (default: next to the root)")
	pflags.BoolP("verbose", "v", false, "verbose reporting")

	cmd.AddCommand(newListCmd(v, stdout))

	return cmd
}

// bindConfig layers flags over FILESYNC_* environment variables.
func bindConfig(v *viper.Viper, cmd *cobra.Command) error {
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return err
	}
	v.SetEnvPrefix("FILESYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	// the credential keeps its conventional name
	if err := v.BindEnv("openai-api-key", "OPENAI_API_KEY"); err != nil {
		return err
	}
	return v.BindEnv("openai-base-url", "OPENAI_BASE_URL")
}

func loadConfig(v *viper.Viper) *config.Config {
	return &config.Config{
		Root:          v.GetString("root"),
		DryRun:        v.GetBool("dry-run"),
		Cleanup:       v.GetBool("delete-files-api"),
		VectorStoreID: v.GetString("vector-store-id"),
		MaxWorkers:    v.GetInt("max-workers"),
		MaxSizeMB:     v.GetInt("max-size-mb"),
		JobFile:       v.GetString("job"),
		ManifestPath:  v.GetString("manifest"),
		Verbose:       v.GetBool("verbose"),
		Store:         v.GetString("store"),
		APIKey:        v.GetString("openai-api-key"),
		BaseURL:       v.GetString("openai-base-url"),
		Bucket:        v.GetString("bucket"),
		Prefix:        v.GetString("prefix"),
		Profile:       v.GetString("profile"),
		Recipients:    v.GetString("recipients"),
	}
}

func newStore(ctx context.Context, cfg *config.Config) (remote.Store, error) {
	if cfg.Store == config.StoreS3 {
		return s3store.NewFromProfile(ctx, cfg.Profile, cfg.Bucket, cfg.Prefix, cfg.Recipients)
	}

	client, err := openai.NewClient(cfg.BaseURL, cfg.APIKey)
	if err != nil {
		return nil, err
	}
	if cfg.VectorStoreID != "" {
		return openai.NewVectorStore(client, cfg.VectorStoreID), nil
	}
	return openai.NewFilesStore(client), nil
}

func runSync(ctx context.Context, cfg *config.Config, stdout io.Writer, log *slog.Logger) error {
	j, err := cfg.Job()
	if err != nil {
		return err
	}

	store, err := newStore(ctx, cfg)
	if err != nil {
		return &setupError{err: err}
	}

	// a real run reads the manifest only once it holds the lock
	m := manifest.New(cfg.ManifestPath)
	if !cfg.DryRun {
		if err := m.Lock(); err != nil {
			return &setupError{err: err}
		}
		defer func() {
			if err := m.Unlock(); err != nil {
				log.Warn("failed to release manifest lock", "error", err)
			}
		}()
	}

	err = m.Reload()
	var corrupt *manifest.ManifestCorruptError
	if errors.As(err, &corrupt) {
		log.Warn("manifest was corrupt, starting from an empty one", "path", corrupt.Path, "backup", corrupt.Backup, "error", corrupt.Err)
	} else if err != nil {
		return &setupError{err: err}
	}

	dest := cfg.Destination()
	log.Info("starting sync", "root", cfg.Root, "destination", dest.String(), "store", cfg.Store, "dry_run", cfg.DryRun)

	s := syncer.New(syncer.Options{
		Root:        cfg.Root,
		Job:         j,
		Destination: dest,
		MaxWorkers:  cfg.MaxWorkers,
		MaxBytes:    cfg.MaxBytes(),
		DryRun:      cfg.DryRun,
		Cleanup:     cfg.Cleanup,
	}, store, m, log)

	plan, summary, err := s.Run(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "Root: %s\n", cfg.Root)
	syncer.PrintPlan(stdout, plan, cfg.Verbose)

	if summary == nil {
		fmt.Fprintf(stdout, "Dry run: nothing was uploaded, deleted or recorded\n")
		return nil
	}

	syncer.PrintSummary(stdout, summary)
	fmt.Fprintf(stdout, "Manifest: %s\n", m.Path())

	if !summary.OK() {
		return errSyncFailed
	}
	return nil
}
