package state

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewS3BackendRequiresBucket(t *testing.T) {
	_, err := newS3Backend(context.Background(), Config{Backend: "s3"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bucket")
}

func TestNewS3BackendDefaults(t *testing.T) {
	b, err := newS3Backend(context.Background(), Config{Backend: "s3", Bucket: "my-bucket"})
	// May fail on AWS config load in CI without credentials, which is expected
	if err != nil {
		t.Skipf("Skipping S3 backend test (no AWS credentials): %v", err)
	}
	assert.Equal(t, "my-bucket", b.bucket)
	assert.Equal(t, "shellform/state.json", b.key)
	assert.Equal(t, "us-east-1", b.region)
	assert.Nil(t, b.lock)
	assert.False(t, b.encrypt)
}

func TestNewS3BackendCustomConfig(t *testing.T) {
	cfg := Config{
		Backend:       "s3",
		Bucket:        "custom-bucket",
		Key:           "custom/path/state.json",
		Region:        "eu-west-1",
		DynamoDBTable: "shellform-locks",
		Profile:       "staging",
		Encrypt:       true,
	}
	b, err := newS3Backend(context.Background(), cfg)
	if err != nil {
		t.Skipf("Skipping S3 backend test (no AWS credentials): %v", err)
	}
	assert.Equal(t, "custom-bucket", b.bucket)
	assert.Equal(t, "custom/path/state.json", b.key)
	assert.Equal(t, "eu-west-1", b.region)
	require.NotNil(t, b.lock)
	assert.Equal(t, "custom-bucket/custom/path/state.json", b.lock.lockID)
	assert.True(t, b.encrypt)
}

func TestNewBackendDefaultsToLocal(t *testing.T) {
	b, err := NewBackend(context.Background(), Config{})
	require.NoError(t, err)
	lb, ok := b.(*LocalBackend)
	require.True(t, ok)
	assert.Equal(t, DefaultLocalPath, lb.path)
}

func TestNewBackendCustomLocalPath(t *testing.T) {
	b, err := NewBackend(context.Background(), Config{Backend: "local", Path: "deploy/state.json"})
	require.NoError(t, err)
	lb, ok := b.(*LocalBackend)
	require.True(t, ok)
	assert.Equal(t, "deploy/state.json", lb.path)
}

func TestNewBackendRejectsUnknownType(t *testing.T) {
	_, err := NewBackend(context.Background(), Config{Backend: "redis"})
	require.Error(t, err)
	assert.EqualError(t, err, "unknown state backend 'redis'")
}
