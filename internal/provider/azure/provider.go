package azure

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"

	"github.com/Chapsvision-dev/repo-backup-provisioner/internal/provider"
	"github.com/Chapsvision-dev/repo-backup-provisioner/internal/retention"
	"github.com/Chapsvision-dev/repo-backup-provisioner/internal/retry"
	"github.com/Chapsvision-dev/repo-backup-provisioner/internal/util"
)

const scheme = "azure"

type AzureProvider struct {
	client  *azblob.Client
	account string
	ro      retry.Options
}

func (p *AzureProvider) Name() string { return "azure" }

// Put uploads obj as a block blob in one call, replacing any existing blob.
func (p *AzureProvider) Put(ctx context.Context, obj provider.Object) (string, error) {
	key := provider.NormalizeKey(obj.Key)
	opts := &azblob.UploadBufferOptions{
		Metadata:   toMetadata(obj.Metadata),
		AccessTier: accessTier(obj.StorageClass),
	}
	if obj.ContentType != "" {
		opts.HTTPHeaders = &blob.HTTPHeaders{BlobContentType: to.Ptr(obj.ContentType)}
	}

	start := time.Now()
	if _, err := p.client.UploadBuffer(ctx, obj.Bucket, key, obj.Body, opts); err != nil {
		log.Debug().Err(err).Str("action", "azure_put").Str("container", obj.Bucket).Str("key", key).Msg("put failed")
		return "", err
	}
	log.Info().Str("action", "azure_put").Str("container", obj.Bucket).Str("key", key).
		Int("bytes", len(obj.Body)).Dur("elapsed_ms", time.Since(start)).Msg("put OK")
	return provider.URI(scheme, obj.Bucket, key), nil
}

// Backup uploads file and validates it against the blob properties.
func (p *AzureProvider) Backup(ctx context.Context, source, container, target string, opts provider.UploadOptions) (string, error) {
	if err := p.ensureContainer(ctx, container); err != nil {
		return "", fmt.Errorf("ensure container: %w", err)
	}
	key := provider.NormalizeKey(target)

	sum, size, err := util.SHA256File(source)
	if err != nil {
		return "", fmt.Errorf("checksum: %w", err)
	}

	upStart := time.Now()
	upAttempt := 0
	uploadOnce := func(ctx context.Context) error {
		upAttempt++
		log.Debug().
			Str("action", "azure_upload").
			Str("container", container).
			Str("key", key).
			Int("attempt", upAttempt).
			Msg("starting attempt")

		f, err := os.Open(source)
		if err != nil {
			return err
		}
		defer func() {
			if cerr := f.Close(); cerr != nil {
				log.Warn().
					Err(cerr).
					Str("file", source).
					Msg("failed to close source file after upload")
			}
		}()
		uo := &azblob.UploadFileOptions{
			Metadata:   map[string]*string{util.ChecksumMetadataKey: to.Ptr(sum)},
			AccessTier: accessTier(opts.StorageClass),
		}
		if opts.ContentType != "" {
			uo.HTTPHeaders = &blob.HTTPHeaders{BlobContentType: to.Ptr(opts.ContentType)}
		}
		if _, err := p.client.UploadFile(ctx, container, key, f, uo); err != nil {
			log.Debug().Err(err).Str("action", "azure_upload").Str("container", container).Str("key", key).
				Int("attempt", upAttempt).Msg("attempt failed")
			return err
		}
		return nil
	}
	if err := retry.Do(ctx, p.ro, isAzRetryable, uploadOnce); err != nil {
		return "", fmt.Errorf("upload: %w", err)
	}
	log.Info().Str("action", "azure_upload").Str("container", container).Str("key", key).
		Int("attempts", upAttempt).Dur("elapsed_ms", time.Since(upStart)).Msg("upload OK")

	propsStart := time.Now()
	propsAttempt := 0
	validateOnce := func(ctx context.Context) error {
		propsAttempt++
		remoteSize, remoteSHA, err := p.sizeAndSHA(ctx, container, key)
		if err != nil {
			log.Debug().Err(err).Str("action", "azure_validate").Str("container", container).Str("key", key).
				Int("attempt", propsAttempt).Msg("attempt failed")
			return err
		}
		if remoteSize != size {
			return fmt.Errorf("size mismatch: local=%d, remote=%d", size, remoteSize)
		}
		if remoteSHA == "" {
			return fmt.Errorf("missing metadata: sha256")
		}
		if remoteSHA != sum {
			return fmt.Errorf("sha256 mismatch: local=%s, remote=%s", sum, remoteSHA)
		}
		return nil
	}
	if err := retry.Do(ctx, p.ro, isAzRetryable, validateOnce); err != nil {
		return "", fmt.Errorf("validate: %w", err)
	}
	log.Info().Str("action", "azure_validate").Str("container", container).Str("key", key).
		Int("attempts", propsAttempt).Dur("elapsed_ms", time.Since(propsStart)).
		Msg("validation OK (sha256 & size)")

	return provider.URI(scheme, container, key), nil
}

// Restore downloads a blob to a local path with retries.
func (p *AzureProvider) Restore(ctx context.Context, container, source, target string) error {
	key := provider.NormalizeKey(source)

	dlStart := time.Now()
	dlAttempt := 0
	downloadOnce := func(ctx context.Context) error {
		dlAttempt++
		log.Debug().Str("action", "azure_download").Str("container", container).Str("key", key).
			Str("local", target).Int("attempt", dlAttempt).Msg("starting attempt")

		out, err := os.Create(target)
		if err != nil {
			return err
		}
		defer func() {
			if cerr := out.Close(); cerr != nil {
				log.Warn().
					Err(cerr).
					Str("file", target).
					Msg("failed to close local file after download")
			}
		}()
		if _, err := p.client.DownloadFile(ctx, container, key, out, nil); err != nil {
			log.Debug().Err(err).Str("action", "azure_download").Str("container", container).Str("key", key).
				Int("attempt", dlAttempt).Msg("attempt failed")
			return err
		}
		return nil
	}
	if err := retry.Do(ctx, p.ro, isAzRetryable, downloadOnce); err != nil {
		return err
	}
	log.Info().Str("action", "azure_download").Str("container", container).Str("key", key).
		Str("local", target).Int("attempts", dlAttempt).Dur("elapsed_ms", time.Since(dlStart)).Msg("download OK")
	return nil
}

// accessTier maps S3 storage classes onto the closest blob tier.
func accessTier(c retention.StorageClass) *blob.AccessTier {
	switch c {
	case "":
		return nil
	case retention.Standard:
		return to.Ptr(blob.AccessTierHot)
	case retention.IntelligentTiering, retention.StandardIA, retention.OneZoneIA:
		return to.Ptr(blob.AccessTierCool)
	case retention.GlacierIR:
		return to.Ptr(blob.AccessTierCold)
	default:
		return to.Ptr(blob.AccessTierArchive)
	}
}

func toMetadata(m map[string]string) map[string]*string {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]*string, len(m))
	for k, v := range m {
		out[k] = to.Ptr(v)
	}
	return out
}
