package transfer

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/jin-gizmo/docma/internal/content"
	derrors "github.com/jin-gizmo/docma/internal/errors"
)

// S3API is the part of the S3 client used for transfers.
type S3API interface {
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

var (
	s3Mu     sync.Mutex
	s3Client S3API
)

// S3Client returns the shared S3 client, creating it from the default AWS
// configuration chain on first use.
func S3Client(ctx context.Context) (S3API, error) {
	s3Mu.Lock()
	defer s3Mu.Unlock()
	if s3Client != nil {
		return s3Client, nil
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("cannot load AWS configuration: %w", err)
	}
	s3Client = s3.NewFromConfig(cfg)

	return s3Client, nil
}

// SetS3Client replaces the shared S3 client. Passing nil makes the next
// S3Client call build a fresh one.
func SetS3Client(c S3API) S3API {
	s3Mu.Lock()
	defer s3Mu.Unlock()
	prev := s3Client
	s3Client = c

	return prev
}

// SplitS3URL extracts bucket and key from s3://bucket/key.
func SplitS3URL(u *url.URL) (bucket, key string, err error) {
	bucket = u.Host
	key = strings.TrimPrefix(u.Path, "/")
	if bucket == "" || key == "" {
		return "", "", fmt.Errorf("bad S3 URL %q: expected s3://bucket/key", u.String())
	}

	return bucket, key, nil
}

// S3 downloads s3://bucket/key. With Probe set a HEAD request checks the
// declared size first.
func S3(ctx context.Context, u *url.URL, opts Options) (Result, error) {
	location := u.String()
	bucket, key, err := SplitS3URL(u)
	if err != nil {
		return Result{}, opts.fail(derrors.CodeInvalid, location, "%s", err.Error())
	}

	ctx, cancel := opts.context(ctx)
	defer cancel()

	client, err := S3Client(ctx)
	if err != nil {
		return Result{}, opts.fail(derrors.CodeTransport, location, "No S3 client").WithCause(err)
	}

	if opts.Probe {
		head, err := client.HeadObject(ctx, &s3.HeadObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			return Result{}, s3Failure(opts, location, err)
		}
		if size := aws.ToInt64(head.ContentLength); opts.Exceeds(size) {
			return Result{}, opts.TooLarge(location, size)
		}
	}

	out, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return Result{}, s3Failure(opts, location, err)
	}
	defer out.Body.Close()

	if size := aws.ToInt64(out.ContentLength); opts.Exceeds(size) {
		return Result{}, opts.TooLarge(location, size)
	}
	data, err := opts.ReadAll(location, out.Body)
	if err != nil {
		return Result{}, err
	}

	return Result{Data: data, ContentType: content.Normalize(aws.ToString(out.ContentType))}, nil
}

func s3Failure(opts Options, location string, err error) error {
	var nsk *types.NoSuchKey
	var nf *types.NotFound
	var nsb *types.NoSuchBucket
	if errors.As(err, &nsk) || errors.As(err, &nf) || errors.As(err, &nsb) {
		return opts.NotFound(location)
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && (apiErr.ErrorCode() == "NotFound" || apiErr.ErrorCode() == "NoSuchKey") {
		return opts.NotFound(location)
	}

	return opts.fail(derrors.CodeTransport, location, "Transfer failed").WithCause(err)
}
