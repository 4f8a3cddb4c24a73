package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/Chapsvision-dev/repo-backup-provisioner/internal/config"
	"github.com/Chapsvision-dev/repo-backup-provisioner/internal/provider"
	"github.com/Chapsvision-dev/repo-backup-provisioner/internal/retention"
)

type recordingProvider struct {
	backups  []string
	restored []string
}

func (p *recordingProvider) Name() string { return "rec" }

func (p *recordingProvider) Put(context.Context, provider.Object) (string, error) {
	return "", errors.New("not used")
}

func (p *recordingProvider) Backup(_ context.Context, _, bucket, key string, _ provider.UploadOptions) (string, error) {
	p.backups = append(p.backups, key)
	return provider.URI("s3", bucket, key), nil
}

func (p *recordingProvider) Restore(_ context.Context, bucket, key, target string) error {
	p.restored = append(p.restored, bucket+"/"+key)
	return os.WriteFile(target, []byte("x"), 0o600)
}

type fakeLifecycle struct {
	put *s3.PutBucketLifecycleConfigurationInput
}

func (f *fakeLifecycle) GetBucketLifecycleConfiguration(context.Context, *s3.GetBucketLifecycleConfigurationInput, ...func(*s3.Options)) (*s3.GetBucketLifecycleConfigurationOutput, error) {
	return nil, &smithy.GenericAPIError{Code: "NoSuchLifecycleConfiguration"}
}

func (f *fakeLifecycle) PutBucketLifecycleConfiguration(_ context.Context, in *s3.PutBucketLifecycleConfigurationInput, _ ...func(*s3.Options)) (*s3.PutBucketLifecycleConfigurationOutput, error) {
	f.put = in
	return &s3.PutBucketLifecycleConfigurationOutput{}, nil
}

func testConfig() config.Config {
	return config.Config{
		Provider: "s3",
		Backup: config.BackupConfig{
			Bucket:              "acme-backups",
			Extension:           "tar.gz",
			WeeklySchedule:      "0 0 * * 0",
			DailyRetentionDays:  30,
			WeeklyRetentionDays: 365,
			StorageClass:        retention.GlacierIR,
		},
	}
}

func testDeps(p *recordingProvider, lc *fakeLifecycle) *deps {
	return &deps{
		loadConfig:  func() (config.Config, error) { return testConfig(), nil },
		newProvider: func(string, any) (provider.Provider, error) { return p, nil },
		newLifecycle: func(context.Context, config.AWSConfig) (retention.LifecycleAPI, error) {
			return lc, nil
		},
		now: func() time.Time { return time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC) },
	}
}

func run(t *testing.T, d *deps, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand(d)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestKeys_WeeklyDay(t *testing.T) {
	out, err := run(t, testDeps(&recordingProvider{}, nil), "keys", "--at", "2024-06-09T00:00:00Z")
	require.NoError(t, err)
	assert.Equal(t, "daily/2024/06/09/20240609000000.tar.gz\nweekly/2024/06/09/20240609000000.tar.gz\n", out)
}

func TestKeys_DefaultsToNow(t *testing.T) {
	out, err := run(t, testDeps(&recordingProvider{}, nil), "keys")
	require.NoError(t, err)
	assert.Equal(t, "daily/2024/06/10/20240610120000.tar.gz\n", out)
}

func TestKeys_BadInstant(t *testing.T) {
	_, err := run(t, testDeps(&recordingProvider{}, nil), "keys", "--at", "yesterday")
	assert.ErrorContains(t, err, "RFC3339")
}

func TestUpload(t *testing.T) {
	archive := filepath.Join(t.TempDir(), "repo.tar.gz")
	require.NoError(t, os.WriteFile(archive, []byte("data"), 0o600))
	p := &recordingProvider{}

	out, err := run(t, testDeps(p, nil), "upload", archive, "--at", "2024-06-09T00:00:00Z")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"daily/2024/06/09/20240609000000.tar.gz",
		"weekly/2024/06/09/20240609000000.tar.gz",
	}, p.backups)
	assert.Contains(t, out, "s3://acme-backups/weekly/2024/06/09/20240609000000.tar.gz")
}

func TestUpload_RequiresArchive(t *testing.T) {
	_, err := run(t, testDeps(&recordingProvider{}, nil), "upload")
	assert.Error(t, err)
}

func TestRestore(t *testing.T) {
	p := &recordingProvider{}
	target := filepath.Join(t.TempDir(), "repo.tar.gz")

	out, err := run(t, testDeps(p, nil), "restore", "daily/2024/06/10/20240610000000.tar.gz", target)
	require.NoError(t, err)
	assert.Equal(t, []string{"acme-backups/daily/2024/06/10/20240610000000.tar.gz"}, p.restored)
	assert.Equal(t, target, strings.TrimSpace(out))
}

func TestRetentionShow(t *testing.T) {
	out, err := run(t, testDeps(&recordingProvider{}, nil), "retention", "show")
	require.NoError(t, err)

	var doc retention.Document
	require.NoError(t, yaml.Unmarshal([]byte(out), &doc))
	assert.Equal(t, "acme-backups", doc.Bucket)
	require.Len(t, doc.Rules, 2)
	assert.Equal(t, "daily/", doc.Rules[0].Prefix)
	assert.Equal(t, 30, doc.Rules[0].ExpirationDays)
	assert.Equal(t, "weekly/", doc.Rules[1].Prefix)
	assert.Equal(t, 365, doc.Rules[1].ExpirationDays)
	assert.Equal(t, retention.GlacierIR, doc.Rules[1].UploadStorageClass)
}

func TestRetentionApply(t *testing.T) {
	lc := &fakeLifecycle{}
	out, err := run(t, testDeps(&recordingProvider{}, lc), "retention", "apply")
	require.NoError(t, err)
	assert.Contains(t, out, "acme-backups")

	require.NotNil(t, lc.put)
	rules := lc.put.LifecycleConfiguration.Rules
	require.Len(t, rules, 2)
	assert.Equal(t, types.ExpirationStatusEnabled, rules[0].Status)
}

func TestRetentionApply_AzureRejected(t *testing.T) {
	d := testDeps(&recordingProvider{}, &fakeLifecycle{})
	d.loadConfig = func() (config.Config, error) {
		c := testConfig()
		c.Provider = "azure"
		return c, nil
	}
	_, err := run(t, d, "retention", "apply")
	assert.ErrorContains(t, err, "s3 provider only")
}

func TestConfigErrorSurfaces(t *testing.T) {
	d := testDeps(&recordingProvider{}, nil)
	d.loadConfig = func() (config.Config, error) { return config.Config{}, errors.New("DAILY_RETENTION_DAYS: invalid") }
	_, err := run(t, d, "retention", "show")
	assert.ErrorContains(t, err, "DAILY_RETENTION_DAYS")
}
