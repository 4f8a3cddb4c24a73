package identity

import (
	"context"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/rs/zerolog"

	"github.com/Chapsvision-dev/repo-backup-provisioner/internal/metrics"
)

// Matcher finds an existing OIDC provider by issuer URL.
type Matcher struct {
	client IAMAPI
}

func NewMatcher(client IAMAPI) *Matcher {
	return &Matcher{client: client}
}

// Find returns the ARN of the first provider whose stored URL matches target,
// or "" when there is none. Discovery errors are logged and absorbed: a failed
// listing means "not found" and a candidate whose detail cannot be read is
// skipped.
//
// IAM returns every provider of the account in a single unpaginated response,
// so one list call is a full scan.
func (m *Matcher) Find(ctx context.Context, target string) string {
	logger := zerolog.Ctx(ctx)
	want := NormalizeURL(target)

	out, err := m.client.ListOpenIDConnectProviders(ctx, &iam.ListOpenIDConnectProvidersInput{})
	if err != nil {
		metrics.DiscoveryError("list")
		logger.Warn().Err(err).
			Str("action", "discover_provider").
			Msg("listing identity providers failed; assuming none exists")
		return ""
	}

	for _, entry := range out.OpenIDConnectProviderList {
		candidate := aws.ToString(entry.Arn)
		if candidate == "" {
			continue
		}
		detail, err := m.client.GetOpenIDConnectProvider(ctx, &iam.GetOpenIDConnectProviderInput{
			OpenIDConnectProviderArn: aws.String(candidate),
		})
		if err != nil {
			metrics.DiscoveryError("get")
			logger.Warn().Err(err).
				Str("action", "discover_provider").
				Str("candidate", candidate).
				Msg("reading identity provider failed; skipping candidate")
			continue
		}
		if NormalizeURL(aws.ToString(detail.Url)) == want {
			logger.Debug().
				Str("action", "discover_provider").
				Str("arn", candidate).
				Msg("existing identity provider matched")
			return candidate
		}
	}
	return ""
}

// NormalizeURL strips a leading scheme and trailing slashes so that
// "https://token.example.com/" and "token.example.com" compare equal.
func NormalizeURL(u string) string {
	u = strings.TrimSpace(u)
	if i := strings.Index(u, "://"); i >= 0 {
		u = u[i+3:]
	}
	return strings.TrimRight(u, "/")
}
