package s3

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"github.com/Chapsvision-dev/repo-backup-provisioner/internal/awsx"
	"github.com/Chapsvision-dev/repo-backup-provisioner/internal/config"
	"github.com/Chapsvision-dev/repo-backup-provisioner/internal/provider"
)

// API is the subset of the S3 client the provider uses.
type API interface {
	PutObject(ctx context.Context, params *awss3.PutObjectInput, optFns ...func(*awss3.Options)) (*awss3.PutObjectOutput, error)
	HeadObject(ctx context.Context, params *awss3.HeadObjectInput, optFns ...func(*awss3.Options)) (*awss3.HeadObjectOutput, error)
	GetObject(ctx context.Context, params *awss3.GetObjectInput, optFns ...func(*awss3.Options)) (*awss3.GetObjectOutput, error)
}

// NewClient builds an S3 client honoring the endpoint override and
// path-style addressing used against LocalStack.
func NewClient(ctx context.Context, c config.AWSConfig) (*awss3.Client, error) {
	cfg, err := awsx.LoadConfig(ctx, c)
	if err != nil {
		return nil, err
	}

	var clientOpts []func(*awss3.Options)
	if c.S3Endpoint != "" {
		endpoint := c.S3Endpoint
		clientOpts = append(clientOpts, func(o *awss3.Options) {
			o.BaseEndpoint = &endpoint
		})
	}
	if c.S3PathStyle {
		clientOpts = append(clientOpts, func(o *awss3.Options) {
			o.UsePathStyle = true
		})
	}
	return awss3.NewFromConfig(cfg, clientOpts...), nil
}

func init() {
	provider.Register("s3", func(cfg any) (provider.Provider, error) {
		c, ok := cfg.(config.Config)
		if !ok {
			return nil, fmt.Errorf("s3: invalid config type")
		}
		client, err := NewClient(context.Background(), c.AWS)
		if err != nil {
			return nil, err
		}
		return New(client, c.RetryOptions()), nil
	})
}

// isS3Retryable: retry rules for S3 (timeout, 5xx, 429, 408, SlowDown).
func isS3Retryable(err error) bool {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	var ae smithy.APIError
	if errors.As(err, &ae) {
		switch ae.ErrorCode() {
		case "SlowDown", "RequestTimeout", "InternalError", "ServiceUnavailable":
			return true
		}
	}
	var re interface{ HTTPStatusCode() int }
	if errors.As(err, &re) {
		code := re.HTTPStatusCode()
		return code == http.StatusTooManyRequests ||
			code == http.StatusRequestTimeout ||
			(code >= 500 && code <= 599)
	}
	return false
}
