// Package storage hands out presigned S3 URLs for event documents so file
// bytes go straight between the client and the bucket.
package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

var ErrDisabled = errors.New("document storage is not configured")

// Options configure an S3 (or MinIO) bucket.
type Options struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	PathStyle bool
	Expiry    time.Duration
}

// S3 presigns object uploads and downloads.
type S3 struct {
	bucket  string
	expiry  time.Duration
	presign *s3.PresignClient
	Now     func() time.Time
}

// NewS3 builds a presign client with static credentials.
func NewS3(ctx context.Context, opts Options) (*S3, error) {
	if opts.Bucket == "" || opts.AccessKey == "" || opts.SecretKey == "" {
		return nil, ErrDisabled
	}
	if opts.Region == "" {
		opts.Region = "us-east-1"
	}
	if opts.Expiry <= 0 {
		opts.Expiry = 15 * time.Minute
	}
	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(opts.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
		o.UsePathStyle = opts.PathStyle
	})
	return &S3{bucket: opts.Bucket, expiry: opts.Expiry, presign: s3.NewPresignClient(client)}, nil
}

// NewKey returns a fresh object key under the event's prefix.
func (s *S3) NewKey(eventID, filename string) string {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	d := now().UTC()
	name := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if name == "." || name == "/" {
		name = "file"
	}
	return fmt.Sprintf("events/%s/%d/%02d/%s-%s", eventID, d.Year(), d.Month(), uuid.NewString(), name)
}

// PresignPut returns a URL the client uploads the object to.
func (s *S3) PresignPut(ctx context.Context, key, contentType string) (string, error) {
	in := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}
	if contentType != "" {
		in.ContentType = aws.String(contentType)
	}
	req, err := s.presign.PresignPutObject(ctx, in, s3.WithPresignExpires(s.expiry))
	if err != nil {
		return "", fmt.Errorf("presign put: %w", err)
	}
	return req.URL, nil
}

// PresignGet returns a download URL for the object.
func (s *S3) PresignGet(ctx context.Context, key, filename string) (string, error) {
	in := &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}
	if filename != "" {
		in.ResponseContentDisposition = aws.String(fmt.Sprintf("attachment; filename=%q", filename))
	}
	req, err := s.presign.PresignGetObject(ctx, in, s3.WithPresignExpires(s.expiry))
	if err != nil {
		return "", fmt.Errorf("presign get: %w", err)
	}
	return req.URL, nil
}

func (s *S3) Expiry() time.Duration { return s.expiry }
