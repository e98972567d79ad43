package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	pkglogger "github.com/damoang/angple-messenger/pkg/logger"
)

// S3Config holds S3-compatible storage configuration
type S3Config struct {
	Endpoint        string // e.g. https://xxx.r2.cloudflarestorage.com
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	PublicURL       string // optional CDN base URL
	BasePath        string // prefix for all objects (e.g. "messenger/")
	ForcePathStyle  bool   // true for MinIO/R2
}

// ObjectAPI subset of the S3 client used here
type ObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Client wraps the AWS S3 client for S3/R2/MinIO compatible storage
type S3Client struct {
	api       ObjectAPI
	bucket    string
	endpoint  string
	region    string
	pathStyle bool
	publicURL string
	basePath  string
}

// NewS3Client creates a new S3-compatible storage client
func NewS3Client(cfg S3Config) *S3Client {
	client := s3.New(s3.Options{}, func(o *s3.Options) {
		o.Region = cfg.Region
		o.Credentials = credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.ForcePathStyle
	})

	pkglogger.GetLogger().Info().
		Str("bucket", cfg.Bucket).
		Str("endpoint", cfg.Endpoint).
		Msg("S3 storage client initialized")

	return NewS3ClientWithAPI(client, cfg)
}

// NewS3ClientWithAPI builds a client over an existing object API (tests, custom transports)
func NewS3ClientWithAPI(api ObjectAPI, cfg S3Config) *S3Client {
	basePath := strings.Trim(cfg.BasePath, "/")
	if basePath != "" {
		basePath += "/"
	}
	return &S3Client{
		api:       api,
		bucket:    cfg.Bucket,
		endpoint:  strings.TrimRight(cfg.Endpoint, "/"),
		region:    cfg.Region,
		pathStyle: cfg.ForcePathStyle,
		publicURL: strings.TrimRight(cfg.PublicURL, "/"),
		basePath:  basePath,
	}
}

// Upload stores body under key and returns its public URL.
// body should be seekable so the SDK can sign the payload.
func (c *S3Client) Upload(ctx context.Context, key string, body io.Reader, contentType string) (string, error) {
	fullKey := c.basePath + key
	_, err := c.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(fullKey),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("s3 upload failed: %w", err)
	}
	return c.URL(fullKey), nil
}

// Delete removes an object previously stored with Upload
func (c *S3Client) Delete(ctx context.Context, key string) error {
	_, err := c.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(c.basePath + key),
	})
	if err != nil {
		return fmt.Errorf("s3 delete failed: %w", err)
	}
	return nil
}

// URL public URL of a full object key: CDN, then custom endpoint, then AWS virtual-host style
func (c *S3Client) URL(fullKey string) string {
	escaped := escapeKey(fullKey)
	switch {
	case c.publicURL != "":
		return c.publicURL + "/" + escaped
	case c.endpoint != "" && c.pathStyle:
		return c.endpoint + "/" + c.bucket + "/" + escaped
	case c.endpoint != "":
		u, err := url.Parse(c.endpoint)
		if err != nil || u.Host == "" {
			return c.endpoint + "/" + escaped
		}
		return u.Scheme + "://" + c.bucket + "." + u.Host + "/" + escaped
	default:
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", c.bucket, c.region, escaped)
	}
}

func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
