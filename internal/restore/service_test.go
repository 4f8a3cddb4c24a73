package restore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Chapsvision-dev/repo-backup-provisioner/internal/provider"
)

type fakeProvider struct {
	bucket, key, target string
	err                 error
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Put(context.Context, provider.Object) (string, error) {
	return "", errors.New("not used")
}

func (f *fakeProvider) Backup(context.Context, string, string, string, provider.UploadOptions) (string, error) {
	return "", errors.New("not used")
}

func (f *fakeProvider) Restore(_ context.Context, bucket, key, target string) error {
	f.bucket, f.key, f.target = bucket, key, target
	if f.err != nil {
		return f.err
	}
	return os.WriteFile(target, []byte("restored"), 0o600)
}

func TestRun_DownloadsToGivenPath(t *testing.T) {
	p := &fakeProvider{}
	target := filepath.Join(t.TempDir(), "out.tar.gz")

	local, err := Run(context.Background(), p, Options{
		Bucket:    "backups",
		RemoteKey: "/weekly/2024/06/09/20240609000000.tar.gz",
		LocalPath: target,
	})
	require.NoError(t, err)
	assert.Equal(t, target, local)
	assert.Equal(t, "backups", p.bucket)
	assert.Equal(t, "weekly/2024/06/09/20240609000000.tar.gz", p.key)

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "restored", string(data))
}

func TestRun_DefaultLocalPathIsBaseName(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	defer func() { _ = os.Chdir(wd) }()

	p := &fakeProvider{}
	local, err := Run(context.Background(), p, Options{Bucket: "b", RemoteKey: "daily/2024/06/10/20240610000000.tar.gz"})
	require.NoError(t, err)
	assert.Equal(t, "20240610000000.tar.gz", local)
}

func TestRun_Errors(t *testing.T) {
	_, err := Run(context.Background(), &fakeProvider{}, Options{Bucket: "b"})
	assert.Error(t, err)

	_, err = Run(context.Background(), &fakeProvider{}, Options{RemoteKey: "k"})
	assert.Error(t, err)

	p := &fakeProvider{err: errors.New("NoSuchKey")}
	_, err = Run(context.Background(), p, Options{Bucket: "b", RemoteKey: "misc/object.bin", LocalPath: filepath.Join(t.TempDir(), "x")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NoSuchKey")
}
