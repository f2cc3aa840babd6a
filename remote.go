package tasmania

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"google.golang.org/api/option"
)

// URI schemes with built-in fetchers.
const (
	SchemeGCS = "gs"
	SchemeS3  = "s3"
)

// ObjectFetcher downloads one object of a bucket into w.
// A missing bucket or object must be reported as ErrSourceNotFound.
type ObjectFetcher interface {
	Fetch(ctx context.Context, bucket, key string, w io.Writer) error
}

// sourceURI is a parsed source location. Local paths have an empty scheme.
type sourceURI struct {
	scheme string
	bucket string
	key    string
	path   string
}

// parseSourceURI splits gs://bucket/key and s3://bucket/key. Anything
// without a scheme, and file:// URIs, are local paths.
func parseSourceURI(raw string) (sourceURI, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return sourceURI{}, fmt.Errorf("%w: empty path", ErrSourceNotFound)
	}
	if !strings.Contains(raw, "://") {
		return sourceURI{path: raw}, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return sourceURI{}, fmt.Errorf("invalid source URI %q: %w", raw, err)
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme == "file" {
		return sourceURI{path: u.Path}, nil
	}

	key := strings.TrimPrefix(u.Path, "/")
	if u.Host == "" || key == "" {
		return sourceURI{}, fmt.Errorf("invalid source URI %q: bucket and object are required", raw)
	}
	return sourceURI{scheme: scheme, bucket: u.Host, key: key}, nil
}

// isRemote reports whether the source must be downloaded first.
func (u sourceURI) isRemote() bool {
	return u.scheme != ""
}

// name returns the object key or local path, used for extension detection.
func (u sourceURI) name() string {
	if u.isRemote() {
		return u.key
	}
	return u.path
}

// String returns the URI in its original form.
func (u sourceURI) String() string {
	if u.isRemote() {
		return u.scheme + "://" + u.bucket + "/" + u.key
	}
	return u.path
}

// GCSFetcher downloads objects from Google Cloud Storage.
type GCSFetcher struct {
	client *storage.Client
}

// NewGCSFetcher creates a GCS client. An empty credentialsFile falls back to
// application default credentials.
func NewGCSFetcher(ctx context.Context, credentialsFile string) (*GCSFetcher, error) {
	var opts []option.ClientOption

	// Add credentials if provided
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}
	return &GCSFetcher{client: client}, nil
}

// Fetch implements ObjectFetcher.
func (f *GCSFetcher) Fetch(ctx context.Context, bucket, key string, w io.Writer) error {
	reader, err := f.client.Bucket(bucket).Object(key).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) || errors.Is(err, storage.ErrBucketNotExist) {
			return fmt.Errorf("%w: gs://%s/%s", ErrSourceNotFound, bucket, key)
		}
		return fmt.Errorf("failed to open gs://%s/%s: %w", bucket, key, err)
	}
	defer reader.Close()

	if _, err := io.Copy(w, reader); err != nil {
		return fmt.Errorf("failed to download gs://%s/%s: %w", bucket, key, err)
	}
	return nil
}

// Close releases the GCS client.
func (f *GCSFetcher) Close() error {
	return f.client.Close()
}

// S3GetObjectAPI is the part of the S3 client S3Fetcher needs.
type S3GetObjectAPI interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Fetcher downloads objects from Amazon S3.
type S3Fetcher struct {
	client S3GetObjectAPI
}

// NewS3Fetcher loads the default AWS configuration. An empty region keeps
// whatever the environment or shared config sets.
func NewS3Fetcher(ctx context.Context, region string) (*S3Fetcher, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return NewS3FetcherFromClient(s3.NewFromConfig(cfg)), nil
}

// NewS3FetcherFromClient wraps an existing S3 client.
func NewS3FetcherFromClient(client S3GetObjectAPI) *S3Fetcher {
	return &S3Fetcher{client: client}
}

// Fetch implements ObjectFetcher.
func (f *S3Fetcher) Fetch(ctx context.Context, bucket, key string, w io.Writer) error {
	out, err := f.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		var noBucket *types.NoSuchBucket
		if errors.As(err, &noKey) || errors.As(err, &noBucket) {
			return fmt.Errorf("%w: s3://%s/%s", ErrSourceNotFound, bucket, key)
		}
		return fmt.Errorf("failed to get s3://%s/%s: %w", bucket, key, err)
	}
	defer out.Body.Close()

	if _, err := io.Copy(w, out.Body); err != nil {
		return fmt.Errorf("failed to download s3://%s/%s: %w", bucket, key, err)
	}
	return nil
}
