// Package objectstore resolves subject references to artifact bytes. Subject
// references are s3://bucket/key locators pointing at images in object storage.
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ErrInvalidReference is returned when a subject reference is not a valid
// s3://bucket/key locator.
var ErrInvalidReference = errors.New("invalid subject reference")

// ObjectGetter is the narrow slice of the S3 API the resolver needs.
type ObjectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Resolver fetches subject artifacts from S3-compatible object storage.
type S3Resolver struct {
	client ObjectGetter
}

// ResolverOptions configures NewS3Resolver.
type ResolverOptions struct {
	Region string
	// Endpoint overrides the S3 endpoint, for minio in local dev.
	Endpoint string
}

// NewS3Resolver builds a resolver with a client from the ambient AWS config.
func NewS3Resolver(ctx context.Context, opts ResolverOptions) (*S3Resolver, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(opts.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Resolver{client: client}, nil
}

// NewS3ResolverWithClient builds a resolver around an existing client.
func NewS3ResolverWithClient(client ObjectGetter) *S3Resolver {
	return &S3Resolver{client: client}
}

// Resolve fetches the artifact bytes behind a subject reference.
func (r *S3Resolver) Resolve(ctx context.Context, subjectReference string) ([]byte, error) {
	bucket, key, err := ParseReference(subjectReference)
	if err != nil {
		return nil, err
	}

	out, err := r.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("get object %s: %w", subjectReference, err)
	}
	defer func() {
		if cerr := out.Body.Close(); cerr != nil {
			_ = cerr
		}
	}()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read object %s: %w", subjectReference, err)
	}
	return data, nil
}

// ParseReference splits an s3://bucket/key locator into bucket and key.
func ParseReference(subjectReference string) (bucket, key string, err error) {
	u, err := url.Parse(subjectReference)
	if err != nil {
		return "", "", fmt.Errorf("%w: %s", ErrInvalidReference, subjectReference)
	}
	if u.Scheme != "s3" || u.Host == "" {
		return "", "", fmt.Errorf("%w: %s", ErrInvalidReference, subjectReference)
	}
	key = strings.TrimPrefix(u.Path, "/")
	if key == "" {
		return "", "", fmt.Errorf("%w: missing object key in %s", ErrInvalidReference, subjectReference)
	}
	return u.Host, key, nil
}
