package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestURLWithCustomEndpoint(t *testing.T) {
	s, err := NewS3Storage(context.Background(), Options{
		Endpoint:  "http://localhost:9000/",
		Region:    "us-east-1",
		Bucket:    "proofs",
		AccessKey: "minio",
		SecretKey: "minio123",
	})
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:9000/proofs/challenges/a/b.png", s.URL("/challenges/a/b.png"))
}

func TestURLWithPublicBase(t *testing.T) {
	s, err := NewS3Storage(context.Background(), Options{
		Region:        "eu-central-1",
		Bucket:        "repcir-media",
		AccessKey:     "key",
		SecretKey:     "secret",
		PublicBaseURL: "https://cdn.repcir.com/",
	})
	require.NoError(t, err)

	assert.Equal(t, "https://cdn.repcir.com/x.jpg", s.URL("x.jpg"))
}

func TestURLDefaultsToVirtualHostedStyle(t *testing.T) {
	s, err := NewS3Storage(context.Background(), Options{
		Region:    "eu-central-1",
		Bucket:    "repcir-media",
		AccessKey: "key",
		SecretKey: "secret",
	})
	require.NoError(t, err)

	assert.Equal(t, "https://repcir-media.s3.eu-central-1.amazonaws.com/x.jpg", s.URL("x.jpg"))
}
