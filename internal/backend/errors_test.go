package backend

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyConnectivity(t *testing.T) {
	cases := []struct {
		name string
		err  error
	}{
		{"dns failure", &net.DNSError{Err: "no such host", Name: "minio"}},
		{"connection refused", &net.OpError{Op: "dial", Err: os.ErrDeadlineExceeded}},
		{"wrapped url error", &url.Error{Op: "Get", URL: "http://host/x", Err: errors.New("connection reset")}},
		{"deadline exceeded", context.DeadlineExceeded},
		{"canceled", context.Canceled},
		{"wrapped deadline", fmt.Errorf("put: %w", context.DeadlineExceeded)},
		{"minio slowdown", minio.ErrorResponse{Code: "SlowDown", Message: "busy"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, ClassConnectivity, Classify(tc.err))
		})
	}
}

func TestClassifySemantic(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want Class
	}{
		{"no such key", minio.ErrorResponse{Code: "NoSuchKey"}, ClassNotFound},
		{"no such bucket", minio.ErrorResponse{Code: "NoSuchBucket"}, ClassNotFound},
		{"access denied", minio.ErrorResponse{Code: "AccessDenied"}, ClassAccessDenied},
		{"bad credentials", minio.ErrorResponse{Code: "InvalidAccessKeyId"}, ClassAccessDenied},
		{"other backend code", minio.ErrorResponse{Code: "EntityTooLarge"}, ClassUnexpected},
		{"plain error", errors.New("boom"), ClassUnexpected},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Classify(tc.err))
		})
	}
}

func TestClassifyPreservesExistingClassification(t *testing.T) {
	inner := NewInputError("upload", "", "missing key")
	wrapped := fmt.Errorf("handler: %w", inner)

	assert.Equal(t, ClassInputValidation, Classify(wrapped))
	assert.Equal(t, ClassInputValidation, ClassOf(wrapped))
}

func TestWrapErrorContext(t *testing.T) {
	err := WrapError("download", "a.txt", 3, &net.DNSError{Err: "no such host", Name: "minio"})
	err.RetriesExhausted = true

	assert.Equal(t, ClassConnectivity, err.Class)
	assert.Contains(t, err.Error(), "download")
	assert.Contains(t, err.Error(), "a.txt")
	assert.Contains(t, err.Error(), "3 attempts")
	assert.Contains(t, err.Error(), "retries exhausted")
}

func TestMessageDoesNotLeakBackendDetail(t *testing.T) {
	cause := &net.OpError{
		Op:   "dial",
		Net:  "tcp",
		Addr: &net.TCPAddr{IP: net.ParseIP("10.0.3.7"), Port: 9000},
		Err:  errors.New("connection refused"),
	}
	err := WrapError("download", "a.txt", 5, cause)

	require.Contains(t, cause.Error(), "10.0.3.7", "fixture must carry the address")
	assert.Equal(t, ClassConnectivity, err.Class)
	assert.NotContains(t, err.Message(), "10.0.3.7")
	assert.Equal(t, "backend unreachable", err.Message())

	err.RetriesExhausted = true
	assert.Equal(t, "backend unreachable, retries exhausted", err.Message())
}

func TestInputErrorMessagePassesThrough(t *testing.T) {
	err := NewInputError("upload", "", "missing key")
	assert.Equal(t, "missing key", err.Message())
}
