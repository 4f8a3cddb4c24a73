package identity

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/iam"

	"github.com/Chapsvision-dev/repo-backup-provisioner/internal/awsx"
	"github.com/Chapsvision-dev/repo-backup-provisioner/internal/config"
)

// IAMAPI is the subset of the IAM client the reconciler uses.
type IAMAPI interface {
	ListOpenIDConnectProviders(ctx context.Context, params *iam.ListOpenIDConnectProvidersInput, optFns ...func(*iam.Options)) (*iam.ListOpenIDConnectProvidersOutput, error)
	GetOpenIDConnectProvider(ctx context.Context, params *iam.GetOpenIDConnectProviderInput, optFns ...func(*iam.Options)) (*iam.GetOpenIDConnectProviderOutput, error)
	CreateOpenIDConnectProvider(ctx context.Context, params *iam.CreateOpenIDConnectProviderInput, optFns ...func(*iam.Options)) (*iam.CreateOpenIDConnectProviderOutput, error)
}

// NewIAMClient builds the process-wide IAM client.
func NewIAMClient(ctx context.Context, c config.AWSConfig) (*iam.Client, error) {
	cfg, err := awsx.LoadConfig(ctx, c)
	if err != nil {
		return nil, err
	}

	var clientOpts []func(*iam.Options)
	if c.IAMEndpoint != "" {
		endpoint := c.IAMEndpoint
		clientOpts = append(clientOpts, func(o *iam.Options) {
			o.BaseEndpoint = &endpoint
		})
	}
	return iam.NewFromConfig(cfg, clientOpts...), nil
}
