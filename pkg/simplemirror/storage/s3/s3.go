package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsmiddleware "github.com/aws/aws-sdk-go-v2/aws/middleware"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	smithyhttp "github.com/aws/smithy-go/transport/http"
	"github.com/tendant/simple-mirror/pkg/simplemirror"
	"github.com/tendant/simple-mirror/pkg/simplemirror/urlstrategy"
)

// DefaultMultipartThreshold is the payload size from which Put switches to
// the multipart upload manager.
const DefaultMultipartThreshold = 16 * 1024 * 1024

// Config options for the S3 backend
type Config struct {
	Region          string // e.g. "sgp1"
	Bucket          string // bucket name, also the first host label of public URLs
	AccessKeyID     string
	SecretAccessKey string
	Endpoint        string // defaults to https://{region}.digitaloceanspaces.com
	UsePathStyle    bool   // path-style addressing, for MinIO and tests

	PublicDomain  string // host suffix of public URLs (default digitaloceanspaces.com)
	PublicBaseURL string // optional CDN base URL; overrides the virtual-host URL

	MultipartThreshold int64 // default DefaultMultipartThreshold
	MaxSDKAttempts     int   // SDK level retries per call; 0 keeps the SDK default
}

// DefaultEndpoint returns the Spaces endpoint for region.
func DefaultEndpoint(region string) string {
	return fmt.Sprintf("https://%s.%s", region, urlstrategy.DefaultPublicDomain)
}

// Validate checks the required fields
func (c Config) Validate() error {
	if c.Bucket == "" {
		return errors.New("bucket name is required")
	}
	if c.Region == "" {
		return errors.New("region is required")
	}
	return nil
}

// Backend is an S3-compatible implementation of simplemirror.BlobStore.
// Objects are written with a public-read ACL.
type Backend struct {
	client    *s3.Client
	uploader  *manager.Uploader
	bucket    string
	threshold int64
	urls      urlstrategy.URLStrategy
}

var _ simplemirror.BlobStore = (*Backend)(nil)

// New creates a new S3-compatible storage backend. The client is safe for
// concurrent use and should be shared.
func New(config Config) (*Backend, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.Endpoint == "" {
		config.Endpoint = DefaultEndpoint(config.Region)
	}
	if config.MultipartThreshold <= 0 {
		config.MultipartThreshold = DefaultMultipartThreshold
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(config.Region),
	}
	if config.AccessKeyID != "" && config.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(config.AccessKeyID, config.SecretAccessKey, ""),
		))
	}
	if config.MaxSDKAttempts > 0 {
		loadOpts = append(loadOpts, awsconfig.WithRetryMaxAttempts(config.MaxSDKAttempts))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(config.Endpoint)
		o.UsePathStyle = config.UsePathStyle
	})

	var urls urlstrategy.URLStrategy
	if config.PublicBaseURL != "" {
		urls = urlstrategy.NewCDNStrategy(config.PublicBaseURL)
	} else {
		urls = urlstrategy.NewVirtualHostStrategy(config.Bucket, config.Region, config.PublicDomain)
	}

	return &Backend{
		client:    client,
		uploader:  manager.NewUploader(client),
		bucket:    config.Bucket,
		threshold: config.MultipartThreshold,
		urls:      urls,
	}, nil
}

// Put writes data with a public-read ACL and returns the HTTP status the
// store answered with.
func (b *Backend) Put(ctx context.Context, objectKey string, data []byte, contentType string) (int, error) {
	if int64(len(data)) >= b.threshold {
		return b.putMultipart(ctx, objectKey, data, contentType)
	}

	out, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(b.bucket),
		Key:           aws.String(objectKey),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType),
		ACL:           types.ObjectCannedACLPublicRead,
	})
	if err != nil {
		return responseStatus(err), fmt.Errorf("failed to put object: %w", err)
	}

	if raw, ok := awsmiddleware.GetRawResponse(out.ResultMetadata).(*smithyhttp.Response); ok {
		return raw.StatusCode, nil
	}
	return http.StatusOK, nil
}

// putMultipart has no single response to read a status from; a nil error
// from the manager means every part was accepted.
func (b *Backend) putMultipart(ctx context.Context, objectKey string, data []byte, contentType string) (int, error) {
	_, err := b.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(b.bucket),
		Key:         aws.String(objectKey),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
		ACL:         types.ObjectCannedACLPublicRead,
	})
	if err != nil {
		return responseStatus(err), fmt.Errorf("failed to upload object: %w", err)
	}
	return http.StatusOK, nil
}

// PublicURL returns the escaped public URL of objectKey. No I/O.
func (b *Backend) PublicURL(objectKey string) string {
	return b.urls.PublicURL(objectKey)
}

// Delete removes an object
func (b *Backend) Delete(ctx context.Context, objectKey string) error {
	_, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

func responseStatus(err error) int {
	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) {
		return respErr.HTTPStatusCode()
	}
	return 0
}
