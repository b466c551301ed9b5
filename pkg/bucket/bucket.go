package bucket

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hsmeta/pkg/config"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/klauspost/compress/gzip"
	"golang.org/x/time/rate"
)

var ErrNotFound = errors.New("object not found")

// Subset of the S3 client used by the bucket.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Client of one bucket, reading and writing gzipped JSON documents.
type Client struct {
	api     S3API
	bucket  string
	limiter *rate.Limiter
}

// Create the S3 client for the given bucket, with static credentials.
func NewClient(cfg config.BucketConfig, bucketName string) *Client {
	awsConfig := aws.Config{
		Region: cfg.Region,
		Credentials: aws.NewCredentialsCache(
			credentials.NewStaticCredentialsProvider(
				cfg.AccessKey,
				cfg.AccessSecret,
				"",
			),
		),
	}

	api := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return NewWithAPI(api, bucketName, newLimiter(cfg.RequestsPerSecond))
}

func NewWithAPI(api S3API, bucketName string, limiter *rate.Limiter) *Client {
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Inf, 1)
	}
	return &Client{
		api:     api,
		bucket:  bucketName,
		limiter: limiter,
	}
}

func newLimiter(requestsPerSecond float64) *rate.Limiter {
	if requestsPerSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Limit(requestsPerSecond), max(1, int(requestsPerSecond)))
}

func (c *Client) Bucket() string {
	return c.bucket
}

// Read the object, decompressing it if gzipped.
func (c *Client) Get(ctx context.Context, key string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	out, err := c.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, fmt.Errorf("%s: %w", key, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get %s: %w", key, err)
	}
	defer out.Body.Close()

	content, err := decompress(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return content, nil
}

// Read and decode a JSON document.
func (c *Client) GetJSON(ctx context.Context, key string, out any) error {
	content, err := c.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(content, out); err != nil {
		return fmt.Errorf("failed to parse %s: %w", key, err)
	}
	return nil
}

// Encode the value as gzipped JSON and write it.
func (c *Client) PutJSON(ctx context.Context, key string, value any) error {
	content, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}

	compressed, err := compress(content)
	if err != nil {
		return fmt.Errorf("failed to compress %s: %w", key, err)
	}

	return c.put(ctx, &s3.PutObjectInput{
		Bucket:          aws.String(c.bucket),
		Key:             aws.String(key),
		Body:            bytes.NewReader(compressed),
		ContentType:     aws.String("application/json"),
		ContentEncoding: aws.String("gzip"),
	})
}

// Write a raw private object.
func (c *Client) PutObject(ctx context.Context, key string, body io.Reader, contentType string) error {
	return c.put(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
		ACL:         types.ObjectCannedACLPrivate,
	})
}

func (c *Client) put(ctx context.Context, input *s3.PutObjectInput) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	if _, err := c.api.PutObject(ctx, input); err != nil {
		return fmt.Errorf("failed to put %s: %w", aws.ToString(input.Key), err)
	}
	return nil
}

func compress(content []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(content); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Gunzip the body when it starts with the gzip magic number, return it as is otherwise.
func decompress(body io.Reader) ([]byte, error) {
	reader := bufio.NewReader(body)
	magic, err := reader.Peek(2)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	if len(magic) < 2 || magic[0] != 0x1f || magic[1] != 0x8b {
		return io.ReadAll(reader)
	}

	gz, err := gzip.NewReader(reader)
	if err != nil {
		return nil, err
	}
	defer gz.Close()
	return io.ReadAll(gz)
}
