package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Chapsvision-dev/repo-backup-provisioner/internal/backup"
	"github.com/Chapsvision-dev/repo-backup-provisioner/internal/restore"
	"github.com/Chapsvision-dev/repo-backup-provisioner/internal/retention"
)

func newKeysCommand(d *deps) *cobra.Command {
	var at string

	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Print the backup keys for a capture instant",
		Long: `Print the daily key, and the weekly key on the weekly day, for the
given instant (default: now). Keys are computed in UTC.

Examples:
  backupctl keys
  backupctl keys --at 2024-06-09T00:00:00Z`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := d.loadConfig()
			if err != nil {
				return err
			}
			namer, err := cfg.Namer()
			if err != nil {
				return err
			}
			t, err := captureTime(d, at)
			if err != nil {
				return err
			}
			for _, k := range namer.Keys(t).All() {
				fmt.Fprintln(cmd.OutOrStdout(), k.String())
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&at, "at", "", "Capture instant (RFC3339)")
	return cmd
}

func newUploadCommand(d *deps) *cobra.Command {
	var at string

	cmd := &cobra.Command{
		Use:   "upload <archive>",
		Short: "Upload an archive under its daily (and weekly) key",
		Long: `Upload a backup archive to BACKUP_BUCKET with STORAGE_CLASS. Each object
carries its sha256 as metadata and is verified after upload.

Examples:
  backupctl upload repo.tar.gz
  backupctl upload repo.tar.gz --at 2024-06-09T00:00:00Z`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := d.loadConfig()
			if err != nil {
				return err
			}
			namer, err := cfg.Namer()
			if err != nil {
				return err
			}
			t, err := captureTime(d, at)
			if err != nil {
				return err
			}
			p, err := d.newProvider(cfg.Provider, cfg)
			if err != nil {
				return fmt.Errorf("provider %q: %w", cfg.Provider, err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			res, err := backup.Upload(ctx, p, namer, backup.Options{
				Archive:      args[0],
				Bucket:       cfg.Backup.Bucket,
				At:           t,
				StorageClass: cfg.Backup.StorageClass,
			})
			if err != nil {
				return err
			}
			for _, uri := range res.URIs {
				fmt.Fprintln(cmd.OutOrStdout(), uri)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&at, "at", "", "Capture instant (RFC3339, default now)")
	return cmd
}

func newRestoreCommand(d *deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "restore <key> [local]",
		Short: "Download a backup object",
		Long: `Download a backup object from BACKUP_BUCKET. The local path defaults to
the key's file name.

Examples:
  backupctl restore weekly/2024/06/09/20240609000000.tar.gz
  backupctl restore daily/2024/06/10/20240610000000.tar.gz /tmp/repo.tar.gz`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := d.loadConfig()
			if err != nil {
				return err
			}
			p, err := d.newProvider(cfg.Provider, cfg)
			if err != nil {
				return fmt.Errorf("provider %q: %w", cfg.Provider, err)
			}
			opts := restore.Options{Bucket: cfg.Backup.Bucket, RemoteKey: args[0]}
			if len(args) == 2 {
				opts.LocalPath = args[1]
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			local, err := restore.Run(ctx, p, opts)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), local)
			return nil
		},
	}
	return cmd
}

func newRetentionCommand(d *deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "retention",
		Short: "Show or apply the lifecycle rules that expire backups",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Render the lifecycle rules as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := d.loadConfig()
			if err != nil {
				return err
			}
			doc, err := retention.Render(cfg.Backup.Bucket, cfg.RetentionPolicies())
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(doc); err != nil {
				return err
			}
			return enc.Close()
		},
	}

	apply := &cobra.Command{
		Use:   "apply",
		Short: "Install the lifecycle rules on BACKUP_BUCKET (S3 only)",
		Long: `Install one expiration rule per cadence on BACKUP_BUCKET. Rules with other
IDs already on the bucket are kept.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := d.loadConfig()
			if err != nil {
				return err
			}
			if cfg.Provider != "s3" {
				return fmt.Errorf("retention apply supports the s3 provider only (got %q)", cfg.Provider)
			}
			if cfg.Backup.Bucket == "" {
				return fmt.Errorf("BACKUP_BUCKET is required")
			}
			ctx := cmd.Context()
			api, err := d.newLifecycle(ctx, cfg.AWS)
			if err != nil {
				return err
			}
			if err := retention.Apply(ctx, api, cfg.Backup.Bucket, cfg.RetentionPolicies()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "lifecycle rules applied to %s\n", cfg.Backup.Bucket)
			return nil
		},
	}

	cmd.AddCommand(show, apply)
	return cmd
}
