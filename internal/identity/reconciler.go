// Package identity reconciles the OIDC identity provider that lets the backup
// workflow exchange its tokens for AWS credentials. An existing provider with
// the same issuer is adopted; otherwise exactly one is created. Providers are
// never deleted.
package identity

import (
	"context"
	"errors"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/rs/zerolog"

	"github.com/Chapsvision-dev/repo-backup-provisioner/internal/reconcile"
)

// Resource type aliases routed to the provider reconciler.
var ResourceTypes = []string{"Custom::OIDCProvider", "oidc-provider"}

const schema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["Url", "ClientIdList", "ThumbprintList"],
  "properties": {
    "Url": {"type": "string", "minLength": 1},
    "ClientIdList": {"type": "array", "items": {"type": "string", "minLength": 1}},
    "ThumbprintList": {"type": "array", "items": {"type": "string", "pattern": "^[0-9A-Fa-f]{40}$"}}
  }
}`

// Provider is a discovered or created OIDC provider.
type Provider struct {
	URL         string
	ClientIDs   []string
	Thumbprints []string
	ARN         string
}

// Reconciler implements discover-or-create for the OIDC provider.
type Reconciler struct {
	client  IAMAPI
	matcher *Matcher
}

func NewReconciler(client IAMAPI) *Reconciler {
	return &Reconciler{client: client, matcher: NewMatcher(client)}
}

func (r *Reconciler) Schema() string { return schema }

// Reconcile adopts or creates the provider described by req and reports its ARN.
func (r *Reconciler) Reconcile(ctx context.Context, req reconcile.Request) (reconcile.Outcome, error) {
	props := req.ResourceProperties
	url, err := props.String("Url")
	if err != nil {
		return reconcile.Outcome{}, err
	}
	clientIDs, err := props.Strings("ClientIdList")
	if err != nil {
		return reconcile.Outcome{}, err
	}
	thumbprints, err := props.Strings("ThumbprintList")
	if err != nil {
		return reconcile.Outcome{}, err
	}

	p, err := r.Ensure(ctx, Provider{URL: url, ClientIDs: clientIDs, Thumbprints: thumbprints})
	if err != nil {
		return reconcile.Outcome{}, err
	}

	parsed, err := ParseProviderARN(p.ARN)
	if err != nil {
		return reconcile.Outcome{}, reconcile.E(reconcile.KindInternal, "derive outputs", err)
	}
	return reconcile.Outcome{
		PhysicalResourceID: p.ARN,
		Data: map[string]any{
			"Arn":          p.ARN,
			"Url":          p.URL,
			"ProviderName": parsed.ProviderName,
			"AccountId":    parsed.AccountID,
		},
	}, nil
}

// Ensure returns want with its ARN set, creating the provider when no
// existing one matches. It issues at most one create call.
func (r *Reconciler) Ensure(ctx context.Context, want Provider) (Provider, error) {
	logger := zerolog.Ctx(ctx)

	if existing := r.matcher.Find(ctx, want.URL); existing != "" {
		logger.Info().
			Str("action", "ensure_provider").
			Str("arn", existing).
			Msg("adopting existing identity provider")
		want.ARN = existing
		return want, nil
	}

	createURL := strings.TrimSpace(want.URL)
	if !strings.Contains(createURL, "://") {
		// IAM requires the scheme on create.
		createURL = "https://" + createURL
	}
	out, err := r.client.CreateOpenIDConnectProvider(ctx, &iam.CreateOpenIDConnectProviderInput{
		Url:            aws.String(createURL),
		ClientIDList:   want.ClientIDs,
		ThumbprintList: want.Thumbprints,
	})
	if err != nil {
		return Provider{}, reconcile.E(reconcile.KindCreate, "create identity provider", err)
	}
	created := aws.ToString(out.OpenIDConnectProviderArn)
	if created == "" {
		return Provider{}, reconcile.E(reconcile.KindCreate, "create identity provider", errors.New("no ARN returned"))
	}

	logger.Info().
		Str("action", "ensure_provider").
		Str("arn", created).
		Int("client_ids", len(want.ClientIDs)).
		Int("thumbprints", len(want.Thumbprints)).
		Msg("identity provider created")
	want.ARN = created
	return want, nil
}
