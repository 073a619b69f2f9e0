package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".jarl")
	require.NoError(t, os.WriteFile(path, []byte(`
[extract]
dir = /tmp/out

[s3://my-bucket]
aws-profile = deploy
expected-bucket-owner = 123456789012
`), 0644))

	l := &Loader{}
	require.NoError(t, l.LoadFile(path))

	assert.Equal(t, "/tmp/out", l.ForExtract().Dir)

	c := l.ForBucket("my-bucket")
	assert.Equal(t, "deploy", c.AWSProfile)
	require.NotNil(t, c.ExpectedBucketOwner)
	assert.Equal(t, "123456789012", *c.ExpectedBucketOwner)
}

func TestForBucket_Unconfigured(t *testing.T) {
	l := &Loader{}
	// a missing file errors but still leaves an empty config behind.
	require.Error(t, l.LoadFile(filepath.Join(t.TempDir(), "missing")))

	c := l.ForBucket("other-bucket")
	assert.Equal(t, "other-bucket", c.Bucket)
	assert.Empty(t, c.AWSProfile)
	assert.Nil(t, c.ExpectedBucketOwner)
}
