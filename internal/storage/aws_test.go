package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAWSConfigStaticCredentialsAndEndpoint(t *testing.T) {
	cfg, err := LoadAWSConfig(context.Background(), AWSOptions{
		Region:          "sa-east-1",
		AccessKeyID:     "local",
		SecretAccessKey: "local-secret",
		Endpoint:        "http://localhost:8000",
	})
	require.NoError(t, err)

	assert.Equal(t, "sa-east-1", cfg.Region)
	require.NotNil(t, cfg.BaseEndpoint)
	assert.Equal(t, "http://localhost:8000", *cfg.BaseEndpoint)

	creds, err := cfg.Credentials.Retrieve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "local", creds.AccessKeyID)
	assert.Equal(t, "local-secret", creds.SecretAccessKey)
}

func TestLoadAWSConfigWithoutEndpoint(t *testing.T) {
	cfg, err := LoadAWSConfig(context.Background(), AWSOptions{
		Region:          "us-east-1",
		AccessKeyID:     "a",
		SecretAccessKey: "b",
	})
	require.NoError(t, err)
	assert.Nil(t, cfg.BaseEndpoint)
}
