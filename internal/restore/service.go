package restore

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Chapsvision-dev/repo-backup-provisioner/internal/partition"
	"github.com/Chapsvision-dev/repo-backup-provisioner/internal/provider"
)

// Options controls the restore workflow.
type Options struct {
	// Bucket holding the backups.
	Bucket string
	// RemoteKey is the object key (e.g., "daily/2024/06/09/20240609000000.tar.gz").
	RemoteKey string
	// LocalPath is where the object is written. Defaults to the key's base name.
	LocalPath string
}

// Run downloads a backup object to a local file and returns the local path.
func Run(ctx context.Context, p provider.Provider, opt Options) (string, error) {
	remote := strings.TrimSpace(opt.RemoteKey)
	if remote == "" {
		return "", fmt.Errorf("restore: remote key is empty")
	}
	if strings.TrimSpace(opt.Bucket) == "" {
		return "", fmt.Errorf("restore: bucket is empty (set BACKUP_BUCKET)")
	}
	remote = provider.NormalizeKey(remote)

	if _, err := partition.ParseKey(remote); err != nil {
		// Objects outside the partition layout can still be fetched.
		log.Warn().
			Err(err).
			Str("action", "download").
			Str("remote", remote).
			Msg("key does not follow the backup layout")
	}

	local := strings.TrimSpace(opt.LocalPath)
	if local == "" {
		local = path.Base(remote)
	}
	local = filepath.Clean(local)

	dlStart := time.Now()
	log.Info().
		Str("action", "download").
		Str("provider", p.Name()).
		Str("remote", remote).
		Str("local", local).
		Msg("starting download")
	if err := p.Restore(ctx, opt.Bucket, remote, local); err != nil {
		log.Error().
			Err(err).
			Str("action", "download").
			Str("provider", p.Name()).
			Str("remote", remote).
			Str("local", local).
			Dur("elapsed_ms", time.Since(dlStart)).
			Msg("download failed")
		return "", fmt.Errorf("download from provider: %w", err)
	}
	log.Info().
		Str("action", "download").
		Str("provider", p.Name()).
		Str("remote", remote).
		Str("local", local).
		Dur("elapsed_ms", time.Since(dlStart)).
		Msg("download OK")

	return local, nil
}
