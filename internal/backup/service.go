// Package backup uploads a repository archive under its partition keys: the
// daily key always, the weekly key as well on the weekly day.
package backup

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Chapsvision-dev/repo-backup-provisioner/internal/metrics"
	"github.com/Chapsvision-dev/repo-backup-provisioner/internal/partition"
	"github.com/Chapsvision-dev/repo-backup-provisioner/internal/provider"
	"github.com/Chapsvision-dev/repo-backup-provisioner/internal/retention"
)

// Options controls one backup upload.
type Options struct {
	// Archive is the local file to upload.
	Archive string
	// Bucket is the destination bucket or container.
	Bucket string
	// At is the capture instant; zero means now.
	At time.Time
	// StorageClass applied to every uploaded object.
	StorageClass retention.StorageClass
	// ContentType of the archive (default application/gzip).
	ContentType string
}

// Result lists what was written.
type Result struct {
	Keys partition.Keys
	URIs []string
}

var now = time.Now

// Upload writes opt.Archive under the keys the namer derives for opt.At.
// The daily object is written first, so a weekly object never exists without
// its daily twin.
func Upload(ctx context.Context, p provider.Provider, namer *partition.Namer, opt Options) (Result, error) {
	var res Result

	archive := strings.TrimSpace(opt.Archive)
	if archive == "" {
		return res, fmt.Errorf("backup: archive path is empty")
	}
	if st, err := os.Stat(archive); err != nil {
		return res, fmt.Errorf("stat %q: %w", archive, err)
	} else if st.IsDir() {
		return res, fmt.Errorf("%q is a directory", archive)
	}
	if strings.TrimSpace(opt.Bucket) == "" {
		return res, fmt.Errorf("backup: bucket is empty (set BACKUP_BUCKET)")
	}

	at := opt.At
	if at.IsZero() {
		at = now()
	}
	contentType := opt.ContentType
	if contentType == "" {
		contentType = "application/gzip"
	}
	res.Keys = namer.Keys(at)

	log.Info().
		Str("action", "backup").
		Str("provider", p.Name()).
		Str("archive", archive).
		Time("captured_at", at.UTC()).
		Bool("weekly", res.Keys.Weekly != nil).
		Msg("starting backup")

	for _, key := range res.Keys.All() {
		start := time.Now()
		uri, err := p.Backup(ctx, archive, opt.Bucket, key.String(), provider.UploadOptions{
			ContentType:  contentType,
			StorageClass: opt.StorageClass,
		})
		metrics.ObserveUpload(string(key.Cadence), err == nil)
		if err != nil {
			log.Error().
				Err(err).
				Str("action", "backup").
				Str("cadence", string(key.Cadence)).
				Str("key", key.String()).
				Dur("elapsed_ms", time.Since(start)).
				Msg("upload failed")
			return res, fmt.Errorf("upload %s: %w", key.Cadence, err)
		}
		log.Info().
			Str("action", "backup").
			Str("cadence", string(key.Cadence)).
			Str("uri", uri).
			Dur("elapsed_ms", time.Since(start)).
			Msg("upload OK")
		res.URIs = append(res.URIs, uri)
	}
	return res, nil
}
