package identity

import (
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws/arn"
)

const providerResourcePrefix = "oidc-provider/"

// ProviderARN is the structured form of an OIDC provider ARN.
type ProviderARN struct {
	ARN          string
	Partition    string
	AccountID    string
	ProviderName string
}

// ParseProviderARN splits arn:<partition>:iam::<account>:oidc-provider/<name>.
// The name keeps any path the issuer URL carries.
func ParseProviderARN(s string) (ProviderARN, error) {
	a, err := arn.Parse(s)
	if err != nil {
		return ProviderARN{}, fmt.Errorf("parse provider arn: %w", err)
	}
	if a.Service != "iam" {
		return ProviderARN{}, fmt.Errorf("parse provider arn: service %q is not iam", a.Service)
	}
	if !strings.HasPrefix(a.Resource, providerResourcePrefix) {
		return ProviderARN{}, fmt.Errorf("parse provider arn: resource %q is not an oidc-provider", a.Resource)
	}
	name := strings.TrimPrefix(a.Resource, providerResourcePrefix)
	if name == "" || a.AccountID == "" {
		return ProviderARN{}, fmt.Errorf("parse provider arn: incomplete arn %q", s)
	}
	return ProviderARN{
		ARN:          s,
		Partition:    a.Partition,
		AccountID:    a.AccountID,
		ProviderName: name,
	}, nil
}
