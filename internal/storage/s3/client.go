package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"picturehub/internal/storage"
)

const defaultTimeout = 30 * time.Second

// Error is the error class for S3 failures.
var Error = errs.Class("s3")

type api interface {
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, opts ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Client stores objects in an S3-compatible bucket.
type Client struct {
	log     *zap.Logger
	client  api
	bucket  string
	baseURL string
}

func NewClient(log *zap.Logger, conf *Config) (*Client, error) {
	if conf == nil {
		return nil, Error.New("configuration is required")
	}
	if err := conf.Validate(); err != nil {
		return nil, Error.Wrap(err)
	}

	creds := aws.NewCredentialsCache(credentials.NewStaticCredentialsProvider(
		conf.AccessKeyID,
		conf.SecretAccessKey,
		"",
	))

	region := conf.Region
	if region == "" {
		region = "us-east-1"
	}

	client := s3.New(s3.Options{
		BaseEndpoint:     aws.String(conf.Endpoint),
		Region:           region,
		Credentials:      creds,
		UsePathStyle:     conf.PathStyle,
		RetryMode:        aws.RetryModeAdaptive,
		RetryMaxAttempts: 3,
	})

	c := newClient(log, client, conf)

	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	_, err := c.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(conf.Bucket),
	})
	if err != nil {
		return nil, Error.New("unable to access bucket %s: %w", conf.Bucket, err)
	}

	return c, nil
}

func newClient(log *zap.Logger, client api, conf *Config) *Client {
	baseURL := strings.TrimRight(conf.PublicHost, "/")
	if baseURL == "" {
		baseURL = strings.TrimRight(conf.Endpoint, "/") + "/" + conf.Bucket
	}
	return &Client{
		log:     log,
		client:  client,
		bucket:  conf.Bucket,
		baseURL: baseURL,
	}
}

func (c *Client) PutObject(ctx context.Context, key string, data io.Reader, size int64, contentType string) (*storage.ObjectInfo, error) {
	if key == "" || data == nil {
		return nil, Error.New("key and data are required")
	}

	input := &s3.PutObjectInput{
		Bucket:        aws.String(c.bucket),
		Key:           aws.String(key),
		Body:          data,
		ContentLength: aws.Int64(size),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	if _, err := c.client.PutObject(ctx, input); err != nil {
		return nil, Error.New("failed to upload %s: %w", key, err)
	}

	c.log.Debug("object stored", zap.String("key", key), zap.Int64("size", size))

	return &storage.ObjectInfo{
		Key:         key,
		URL:         c.baseURL + "/" + key,
		Size:        size,
		ContentType: contentType,
	}, nil
}

func (c *Client) GetObject(ctx context.Context, key string) (io.ReadCloser, error) {
	result, err := c.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, Error.Wrap(fmt.Errorf("%s: %w", key, storage.ErrNotFound))
		}
		return nil, Error.New("failed to get object %s: %w", key, err)
	}
	return result.Body, nil
}

func (c *Client) DeleteObject(ctx context.Context, key string) error {
	if key == "" {
		return Error.New("key is required")
	}

	_, err := c.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil
		}
		return Error.New("failed to delete object %s: %w", key, err)
	}
	return nil
}

func (c *Client) Type() string { return "s3" }
