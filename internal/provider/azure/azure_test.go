package azure

import (
	"errors"
	"fmt"
	"testing"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Chapsvision-dev/repo-backup-provisioner/internal/config"
	"github.com/Chapsvision-dev/repo-backup-provisioner/internal/provider"
	"github.com/Chapsvision-dev/repo-backup-provisioner/internal/retention"
)

func TestAccessTier(t *testing.T) {
	assert.Nil(t, accessTier(""))
	cases := map[retention.StorageClass]blob.AccessTier{
		retention.Standard:           blob.AccessTierHot,
		retention.StandardIA:         blob.AccessTierCool,
		retention.OneZoneIA:          blob.AccessTierCool,
		retention.IntelligentTiering: blob.AccessTierCool,
		retention.GlacierIR:          blob.AccessTierCold,
		retention.Glacier:            blob.AccessTierArchive,
		retention.DeepArchive:        blob.AccessTierArchive,
	}
	for class, want := range cases {
		got := accessTier(class)
		require.NotNil(t, got, class)
		assert.Equal(t, want, *got, class)
	}
}

func TestIsAzRetryable(t *testing.T) {
	assert.True(t, isAzRetryable(&azcore.ResponseError{StatusCode: 503}))
	assert.True(t, isAzRetryable(fmt.Errorf("wrapped: %w", &azcore.ResponseError{StatusCode: 429})))
	assert.True(t, isAzRetryable(&azcore.ResponseError{StatusCode: 400, ErrorCode: string(bloberror.ServerBusy)}))
	assert.False(t, isAzRetryable(&azcore.ResponseError{StatusCode: 403}))
	assert.False(t, isAzRetryable(errors.New("plain")))
}

func TestToMetadata(t *testing.T) {
	assert.Nil(t, toMetadata(nil))
	m := toMetadata(map[string]string{"repository": "acme/api"})
	require.Contains(t, m, "repository")
	assert.Equal(t, "acme/api", *m["repository"])
}

func TestFactoryRegistered(t *testing.T) {
	assert.Contains(t, provider.Names(), "azure")

	_, err := provider.New("azure", "not a config")
	assert.Error(t, err)

	p, err := provider.New("azure", config.Config{Azure: config.AzureConfig{Account: "acct", SASToken: "?sv=2024&sig=x"}})
	require.NoError(t, err)
	assert.Equal(t, "azure", p.Name())
}
