package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/hirewise/api/internal/config"
)

var ErrObjectNotFound = errors.New("object not found")

// PresignedUpload is a PUT the caller sends straight to the bucket.
// Headers must be sent exactly as given or the signature fails.
type PresignedUpload struct {
	URL       string
	Method    string
	Headers   map[string]string
	ExpiresAt time.Time
}

// StorageClient is the object storage used for large payloads and upload intents.
type StorageClient interface {
	Upload(ctx context.Context, key string, body io.Reader, contentType string) (string, error)
	Download(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	PresignUpload(ctx context.Context, key, contentType string, size int64, expiry time.Duration) (*PresignedUpload, error)
}

// R2Client talks to a Cloudflare R2 bucket through the S3 API.
type R2Client struct {
	s3        *s3.Client
	presigner *s3.PresignClient
	bucket    string
	baseURL   string
}

func NewR2Client(cfg *config.R2Config) (*R2Client, error) {
	switch {
	case cfg.AccountID == "":
		return nil, errors.New("r2 account id is required")
	case cfg.AccessKeyID == "" || cfg.SecretAccessKey == "":
		return nil, errors.New("r2 credentials are required")
	case cfg.BucketName == "":
		return nil, errors.New("r2 bucket name is required")
	}

	endpoint := "https://" + cfg.AccountID + ".r2.cloudflarestorage.com"

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion("auto"),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load r2 config: %w", err)
	}

	s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true
	})

	baseURL := strings.TrimRight(cfg.PublicURL, "/")
	if baseURL == "" {
		baseURL = endpoint + "/" + cfg.BucketName
	}

	return &R2Client{
		s3:        s3Client,
		presigner: s3.NewPresignClient(s3Client),
		bucket:    cfg.BucketName,
		baseURL:   baseURL,
	}, nil
}

// Upload stores the object and returns its URL under the public base.
func (c *R2Client) Upload(ctx context.Context, key string, body io.Reader, contentType string) (string, error) {
	_, err := c.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to put %s: %w", key, err)
	}
	return c.objectURL(key), nil
}

func (c *R2Client) Download(ctx context.Context, key string) ([]byte, error) {
	out, err := c.s3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("failed to get %s: %w", key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return data, nil
}

// Delete is idempotent; a missing key is not an error.
func (c *R2Client) Delete(ctx context.Context, key string) error {
	_, err := c.s3.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// PresignUpload signs a PUT bound to the declared content type and length,
// so the bucket rejects a body that differs from what intake validated.
func (c *R2Client) PresignUpload(ctx context.Context, key, contentType string, size int64, expiry time.Duration) (*PresignedUpload, error) {
	signed, err := c.presigner.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(c.bucket),
		Key:           aws.String(key),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(size),
	}, s3.WithPresignExpires(expiry))
	if err != nil {
		return nil, fmt.Errorf("failed to presign %s: %w", key, err)
	}

	return &PresignedUpload{
		URL:       signed.URL,
		Method:    signed.Method,
		Headers:   clientHeaders(signed.SignedHeader),
		ExpiresAt: time.Now().Add(expiry),
	}, nil
}

// HealthCheck confirms the bucket exists and the credentials can see it.
func (c *R2Client) HealthCheck(ctx context.Context) error {
	if _, err := c.s3.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(c.bucket)}); err != nil {
		return fmt.Errorf("bucket %s unreachable: %w", c.bucket, err)
	}
	return nil
}

func (c *R2Client) objectURL(key string) string {
	return c.baseURL + "/" + key
}

// clientHeaders drops the headers an HTTP client sets on its own.
func clientHeaders(signed http.Header) map[string]string {
	out := make(map[string]string, len(signed))
	for name, values := range signed {
		if len(values) == 0 || strings.EqualFold(name, "Host") || strings.EqualFold(name, "Content-Length") {
			continue
		}
		out[name] = values[0]
	}
	return out
}

func isNotFound(err error) bool {
	var noKey *types.NoSuchKey
	var notFound *types.NotFound
	return errors.As(err, &noKey) || errors.As(err, &notFound)
}
