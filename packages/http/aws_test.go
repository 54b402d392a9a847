package http

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAWSSigner_AuthHeaders(t *testing.T) {
	signer := &AWSSigner{
		AccessKey: "AKIDEXAMPLE",
		SecretKey: "secret",
		Region:    "us-east-1",
		Service:   "execute-api",
		now: func() time.Time {
			return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
		},
	}

	headers, err := signer.AuthHeaders(&AuthRequest{
		Method: "GET",
		URL:    "https://api.example.com/items?b=2&a=1",
	})
	require.NoError(t, err)

	assert.Equal(t, "20240102T030405Z", headers["X-Amz-Date"])
	assert.Equal(t, sha256Hash(nil), headers["X-Amz-Content-Sha256"])
	assert.True(t, strings.HasPrefix(headers["Authorization"],
		"AWS4-HMAC-SHA256 Credential=AKIDEXAMPLE/20240102/us-east-1/execute-api/aws4_request"))

	again, err := signer.AuthHeaders(&AuthRequest{
		Method: "GET",
		URL:    "https://api.example.com/items?a=1&b=2",
	})
	require.NoError(t, err)
	assert.Equal(t, headers["Authorization"], again["Authorization"], "query order must not change the signature")
}

func TestAWSSigner_MissingCredentials(t *testing.T) {
	_, err := (&AWSSigner{}).AuthHeaders(&AuthRequest{Method: "GET", URL: "https://example.com"})
	assert.Error(t, err)
}
