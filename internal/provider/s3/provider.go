// Package s3 stores artifacts and backups in Amazon S3 (or any S3-compatible
// endpoint).
package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog/log"

	"github.com/Chapsvision-dev/repo-backup-provisioner/internal/provider"
	"github.com/Chapsvision-dev/repo-backup-provisioner/internal/retry"
	"github.com/Chapsvision-dev/repo-backup-provisioner/internal/util"
)

const (
	scheme      = "s3"
	checksumKey = util.ChecksumMetadataKey
)

type S3Provider struct {
	client API
	ro     retry.Options
}

// New wraps an S3 client.
func New(client API, ro retry.Options) *S3Provider {
	return &S3Provider{client: client, ro: ro}
}

func (p *S3Provider) Name() string { return "s3" }

// Put writes obj in one PutObject call; the object at the key is replaced.
func (p *S3Provider) Put(ctx context.Context, obj provider.Object) (string, error) {
	key := provider.NormalizeKey(obj.Key)
	in := &awss3.PutObjectInput{
		Bucket:        aws.String(obj.Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(obj.Body),
		ContentLength: aws.Int64(int64(len(obj.Body))),
		Metadata:      obj.Metadata,
	}
	if obj.ContentType != "" {
		in.ContentType = aws.String(obj.ContentType)
	}
	if obj.StorageClass != "" {
		in.StorageClass = types.StorageClass(obj.StorageClass)
	}

	start := time.Now()
	if _, err := p.client.PutObject(ctx, in); err != nil {
		log.Debug().Err(err).Str("action", "s3_put").Str("bucket", obj.Bucket).Str("key", key).Msg("put failed")
		return "", err
	}
	log.Info().Str("action", "s3_put").Str("bucket", obj.Bucket).Str("key", key).
		Int("bytes", len(obj.Body)).Dur("elapsed_ms", time.Since(start)).Msg("put OK")
	return provider.URI(scheme, obj.Bucket, key), nil
}

// Backup uploads the file and validates it with HeadObject (size & sha256 metadata).
func (p *S3Provider) Backup(ctx context.Context, source, bucket, key string, opts provider.UploadOptions) (string, error) {
	key = provider.NormalizeKey(key)

	sum, size, err := util.SHA256File(source)
	if err != nil {
		return "", fmt.Errorf("checksum: %w", err)
	}

	upStart := time.Now()
	upAttempt := 0
	uploadOnce := func(ctx context.Context) error {
		upAttempt++
		log.Debug().
			Str("action", "s3_upload").
			Str("bucket", bucket).
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
		in := &awss3.PutObjectInput{
			Bucket:        aws.String(bucket),
			Key:           aws.String(key),
			Body:          f,
			ContentLength: aws.Int64(size),
			Metadata:      map[string]string{checksumKey: sum},
		}
		if opts.ContentType != "" {
			in.ContentType = aws.String(opts.ContentType)
		}
		if opts.StorageClass != "" {
			in.StorageClass = types.StorageClass(opts.StorageClass)
		}
		if _, err := p.client.PutObject(ctx, in); err != nil {
			log.Debug().Err(err).Str("action", "s3_upload").Str("bucket", bucket).Str("key", key).
				Int("attempt", upAttempt).Msg("attempt failed")
			return err
		}
		return nil
	}
	if err := retry.Do(ctx, p.ro, isS3Retryable, uploadOnce); err != nil {
		return "", fmt.Errorf("upload: %w", err)
	}
	log.Info().Str("action", "s3_upload").Str("bucket", bucket).Str("key", key).
		Str("storage_class", string(opts.StorageClass)).
		Int("attempts", upAttempt).Dur("elapsed_ms", time.Since(upStart)).Msg("upload OK")

	headStart := time.Now()
	headAttempt := 0
	headOnce := func(ctx context.Context) error {
		headAttempt++
		out, err := p.client.HeadObject(ctx, &awss3.HeadObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			log.Debug().Err(err).Str("action", "s3_head").Str("bucket", bucket).Str("key", key).
				Int("attempt", headAttempt).Msg("attempt failed")
			return err
		}
		if remote := aws.ToInt64(out.ContentLength); remote != size {
			return fmt.Errorf("size mismatch: local=%d, remote=%d", size, remote)
		}
		remoteSHA := out.Metadata[checksumKey]
		if remoteSHA == "" {
			return fmt.Errorf("missing metadata: %s", checksumKey)
		}
		if remoteSHA != sum {
			return fmt.Errorf("sha256 mismatch: local=%s, remote=%s", sum, remoteSHA)
		}
		return nil
	}
	if err := retry.Do(ctx, p.ro, isS3Retryable, headOnce); err != nil {
		return "", fmt.Errorf("validate (head): %w", err)
	}
	log.Info().Str("action", "s3_head").Str("bucket", bucket).Str("key", key).
		Int("attempts", headAttempt).Dur("elapsed_ms", time.Since(headStart)).
		Msg("validation OK (sha256 & size)")

	return provider.URI(scheme, bucket, key), nil
}

// Restore downloads an object to a local path with retries.
func (p *S3Provider) Restore(ctx context.Context, bucket, key, target string) error {
	key = provider.NormalizeKey(key)

	dlStart := time.Now()
	dlAttempt := 0
	downloadOnce := func(ctx context.Context) error {
		dlAttempt++
		log.Debug().Str("action", "s3_download").Str("bucket", bucket).Str("key", key).
			Str("local", target).Int("attempt", dlAttempt).Msg("starting attempt")

		out, err := p.client.GetObject(ctx, &awss3.GetObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			return err
		}
		defer func() { _ = out.Body.Close() }()

		f, err := os.Create(target)
		if err != nil {
			return err
		}
		defer func() {
			if cerr := f.Close(); cerr != nil {
				log.Warn().
					Err(cerr).
					Str("file", target).
					Msg("failed to close local file after download")
			}
		}()
		if _, err := io.Copy(f, out.Body); err != nil {
			log.Debug().Err(err).Str("action", "s3_download").Str("bucket", bucket).Str("key", key).
				Int("attempt", dlAttempt).Msg("attempt failed")
			return err
		}
		return nil
	}
	if err := retry.Do(ctx, p.ro, isS3Retryable, downloadOnce); err != nil {
		return err
	}
	log.Info().Str("action", "s3_download").Str("bucket", bucket).Str("key", key).
		Str("local", target).Int("attempts", dlAttempt).Dur("elapsed_ms", time.Since(dlStart)).Msg("download OK")
	return nil
}
