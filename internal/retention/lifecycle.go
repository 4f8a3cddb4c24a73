package retention

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/rs/zerolog/log"
)

// abortMultipartDays cleans up uploads interrupted mid-way.
const abortMultipartDays = 1

// LifecycleAPI is the subset of the S3 client used to manage lifecycle rules.
type LifecycleAPI interface {
	GetBucketLifecycleConfiguration(ctx context.Context, params *s3.GetBucketLifecycleConfigurationInput, optFns ...func(*s3.Options)) (*s3.GetBucketLifecycleConfigurationOutput, error)
	PutBucketLifecycleConfiguration(ctx context.Context, params *s3.PutBucketLifecycleConfigurationInput, optFns ...func(*s3.Options)) (*s3.PutBucketLifecycleConfigurationOutput, error)
}

// Rule is the storage-neutral form of a lifecycle rule.
type Rule struct {
	ID                      string       `yaml:"id"`
	Prefix                  string       `yaml:"prefix"`
	ExpirationDays          int          `yaml:"expirationDays"`
	UploadStorageClass      StorageClass `yaml:"uploadStorageClass"`
	AbortIncompleteUploadAt int          `yaml:"abortIncompleteMultipartUploadDays"`
}

// Document is the rendered retention configuration of a bucket.
type Document struct {
	Bucket string `yaml:"bucket,omitempty"`
	Rules  []Rule `yaml:"rules"`
}

// Render validates policies and renders them as a Document.
func Render(bucket string, policies []Policy) (Document, error) {
	doc := Document{Bucket: bucket}
	seen := map[string]bool{}
	for _, p := range policies {
		if err := p.Validate(); err != nil {
			return Document{}, err
		}
		if seen[p.RuleID()] {
			return Document{}, fmt.Errorf("retention: duplicate policy for cadence %s", p.Cadence)
		}
		seen[p.RuleID()] = true
		doc.Rules = append(doc.Rules, Rule{
			ID:                      p.RuleID(),
			Prefix:                  p.Prefix(),
			ExpirationDays:          p.RetentionDays,
			UploadStorageClass:      p.StorageClass,
			AbortIncompleteUploadAt: abortMultipartDays,
		})
	}
	return doc, nil
}

// S3Rules converts a Document into S3 lifecycle rules. The storage class is
// applied at upload time, so rules only carry expiration.
func (d Document) S3Rules() []types.LifecycleRule {
	out := make([]types.LifecycleRule, 0, len(d.Rules))
	for _, r := range d.Rules {
		out = append(out, types.LifecycleRule{
			ID:     aws.String(r.ID),
			Status: types.ExpirationStatusEnabled,
			Filter: &types.LifecycleRuleFilter{Prefix: aws.String(r.Prefix)},
			Expiration: &types.LifecycleExpiration{
				Days: aws.Int32(int32(r.ExpirationDays)),
			},
			AbortIncompleteMultipartUpload: &types.AbortIncompleteMultipartUpload{
				DaysAfterInitiation: aws.Int32(int32(r.AbortIncompleteUploadAt)),
			},
		})
	}
	return out
}

// Apply installs the policies on bucket. Rules owned by other tooling are kept;
// rules with the same IDs as ours are replaced.
func Apply(ctx context.Context, api LifecycleAPI, bucket string, policies []Policy) error {
	doc, err := Render(bucket, policies)
	if err != nil {
		return err
	}
	start := time.Now()

	existing, err := api.GetBucketLifecycleConfiguration(ctx, &s3.GetBucketLifecycleConfigurationInput{
		Bucket: aws.String(bucket),
	})
	var kept []types.LifecycleRule
	switch {
	case err == nil:
		ours := map[string]bool{}
		for _, r := range doc.Rules {
			ours[r.ID] = true
		}
		for _, r := range existing.Rules {
			if r.ID != nil && ours[*r.ID] {
				continue
			}
			kept = append(kept, r)
		}
	case isNoLifecycle(err):
	default:
		return fmt.Errorf("retention: read lifecycle of %s: %w", bucket, err)
	}

	rules := append(kept, doc.S3Rules()...)
	if _, err := api.PutBucketLifecycleConfiguration(ctx, &s3.PutBucketLifecycleConfigurationInput{
		Bucket:                 aws.String(bucket),
		LifecycleConfiguration: &types.BucketLifecycleConfiguration{Rules: rules},
	}); err != nil {
		return fmt.Errorf("retention: put lifecycle of %s: %w", bucket, err)
	}

	log.Info().
		Str("action", "retention_apply").
		Str("bucket", bucket).
		Int("rules", len(rules)).
		Int("kept", len(kept)).
		Dur("elapsed_ms", time.Since(start)).
		Msg("lifecycle configuration applied")
	return nil
}

func isNoLifecycle(err error) bool {
	var ae smithy.APIError
	return errors.As(err, &ae) && ae.ErrorCode() == "NoSuchLifecycleConfiguration"
}
