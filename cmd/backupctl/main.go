package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/Chapsvision-dev/repo-backup-provisioner/internal/config"
	"github.com/Chapsvision-dev/repo-backup-provisioner/internal/logx"
	"github.com/Chapsvision-dev/repo-backup-provisioner/internal/provider"
	s3provider "github.com/Chapsvision-dev/repo-backup-provisioner/internal/provider/s3"
	"github.com/Chapsvision-dev/repo-backup-provisioner/internal/retention"
	"github.com/Chapsvision-dev/repo-backup-provisioner/internal/version"

	_ "github.com/Chapsvision-dev/repo-backup-provisioner/internal/provider/azure"
)

// deps are the collaborators commands reach for; tests replace them.
type deps struct {
	loadConfig   func() (config.Config, error)
	newProvider  func(name string, cfg any) (provider.Provider, error)
	newLifecycle func(context.Context, config.AWSConfig) (retention.LifecycleAPI, error)
	now          func() time.Time
}

func defaultDeps() *deps {
	return &deps{
		loadConfig:  config.Load,
		newProvider: provider.New,
		newLifecycle: func(ctx context.Context, c config.AWSConfig) (retention.LifecycleAPI, error) {
			return s3provider.NewClient(ctx, c)
		},
		now: time.Now,
	}
}

func main() {
	_ = godotenv.Load() // best-effort
	logx.InitFromEnvTo(os.Stderr)

	if err := newRootCommand(defaultDeps()).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand(d *deps) *cobra.Command {
	root := &cobra.Command{
		Use:   "backupctl",
		Short: "Write, fetch and expire repository backups",
		Long: `backupctl is run by the scheduled backup job. It names backups after
their capture instant (daily/YYYY/MM/DD/<timestamp>.<ext>, plus weekly/... on
the weekly day), uploads archives under those keys and manages the lifecycle
rules that expire them.

Configuration comes from the environment (or a .env file): BACKUP_BUCKET,
BACKUP_EXTENSION, WEEKLY_SCHEDULE, DAILY_RETENTION_DAYS, WEEKLY_RETENTION_DAYS,
STORAGE_CLASS and STORAGE_PROVIDER.`,
		Version:       version.Info(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newKeysCommand(d),
		newUploadCommand(d),
		newRestoreCommand(d),
		newRetentionCommand(d),
	)
	return root
}

// captureTime parses --at, defaulting to now.
func captureTime(d *deps, at string) (time.Time, error) {
	if at == "" {
		return d.now(), nil
	}
	t, err := time.Parse(time.RFC3339, at)
	if err != nil {
		return time.Time{}, fmt.Errorf("--at must be RFC3339 (e.g. 2024-06-09T00:00:00Z): %w", err)
	}
	return t, nil
}
