// Package s3 implements blobstore.Store against an S3-compatible
// object store, an alternate backend to pkg/blobstore/fs. Transient
// failures of OpenStream are retried with exponential backoff; Put and
// Remove make a single attempt. Missing objects map to
// blobstore.ErrBlobNotFound.
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/niooii/ocloud/pkg/blobstore"
)

// RetryConfig bounds the backoff schedule for transient S3 errors.
type RetryConfig struct {
	MaxRetries        int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
}

// DefaultRetryConfig is a conservative schedule for transient S3
// failures: three retries, 100ms initial backoff, doubling to 2s.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:        3,
		InitialBackoff:    100 * time.Millisecond,
		MaxBackoff:        2 * time.Second,
		BackoffMultiplier: 2,
	}
}

// Store is an S3-backed blobstore.Store. Objects are keyed by the
// same sharded-path convention as the fs backend, so a deployment can
// switch backends without reshaping the key space.
type Store struct {
	client *s3.Client
	bucket string
	retry  RetryConfig
	logger *slog.Logger
}

var _ blobstore.Store = (*Store)(nil)

// New constructs a Store against an already-configured *s3.Client.
func New(client *s3.Client, bucket string, retry RetryConfig, logger *slog.Logger) *Store {
	return &Store{client: client, bucket: bucket, retry: retry, logger: logger}
}

func objectKey(hash string) string {
	if len(hash) < 4 {
		return hash
	}
	return hash[0:2] + "/" + hash[2:4] + "/" + hash[4:]
}

func (s *Store) calculateBackoff(attempt int) time.Duration {
	backoff := float64(s.retry.InitialBackoff)
	for i := 0; i < attempt; i++ {
		backoff *= s.retry.BackoffMultiplier
	}
	if backoff > float64(s.retry.MaxBackoff) {
		backoff = float64(s.retry.MaxBackoff)
	}
	return time.Duration(backoff)
}

func isNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	if errors.As(err, &noSuchKey) || errors.As(err, &notFound) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		if code == "NoSuchKey" || code == "NotFound" || code == "404" {
			return true
		}
	}
	return strings.Contains(err.Error(), "NoSuchKey") || strings.Contains(err.Error(), "NotFound")
}

func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "Throttling", "ThrottlingException", "RequestThrottled", "SlowDown",
			"ProvisionedThroughputExceededException",
			"InternalError", "ServiceUnavailable", "ServiceException", "InternalServiceException":
			return true
		case "NoSuchKey", "NotFound", "AccessDenied", "Forbidden", "InvalidRange", "InvalidRequest":
			return false
		}
	}
	errStr := err.Error()
	return strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "i/o timeout") ||
		strings.Contains(errStr, "503") ||
		strings.Contains(errStr, "500")
}

// Put uploads the file at tempPath under hash's object key, then
// removes the temp file. S3 has no atomic local rename, so the
// "atomic" guarantee here is S3's own single-PUT object replacement
// semantics: readers never see a partial object.
func (s *Store) Put(ctx context.Context, tempPath string, hash string) error {
	f, err := os.Open(tempPath)
	if err != nil {
		return err
	}
	defer f.Close()

	key := objectKey(hash)
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   f,
	})
	if err != nil {
		return fmt.Errorf("blobstore/s3: put %s: %w", key, err)
	}
	return os.Remove(tempPath)
}

// OpenStream downloads hash's object, retrying transient failures
// with exponential backoff.
func (s *Store) OpenStream(ctx context.Context, hash string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key := objectKey(hash)

	var result *s3.GetObjectOutput
	var lastErr error

	for attempt := 0; attempt <= s.retry.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := s.calculateBackoff(attempt - 1)
			if s.logger != nil {
				s.logger.Debug("blobstore/s3: retrying get", "attempt", attempt, "backoff", backoff, "key", key)
			}
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		result, lastErr = s.client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
		})
		if lastErr == nil {
			return result.Body, nil
		}
		if isNotFoundError(lastErr) {
			return nil, blobstore.ErrBlobNotFound
		}
		if !isRetryableError(lastErr) {
			break
		}
	}

	return nil, fmt.Errorf("blobstore/s3: get %s after %d attempts: %w", key, s.retry.MaxRetries+1, lastErr)
}

// Remove deletes hash's object. S3's DeleteObject is idempotent, so a
// missing object is not treated as an error.
func (s *Store) Remove(ctx context.Context, hash string) error {
	key := objectKey(hash)
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil && !isNotFoundError(err) {
		if s.logger != nil {
			s.logger.Warn("blobstore/s3: failed to remove blob", "hash", hash, "error", err)
		}
		return nil
	}
	return nil
}
