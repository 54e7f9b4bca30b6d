package blobstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"go.uber.org/zap"
)

// S3Store maps a container onto a key prefix inside one bucket.
type S3Store struct {
	client *s3.Client
	bucket string
	prefix string
	region string
	logger *zap.Logger
}

func NewS3Store(client *s3.Client, bucket, prefix, region string, logger *zap.Logger) *S3Store {
	return &S3Store{
		client: client,
		bucket: bucket,
		prefix: prefix,
		region: region,
		logger: logger,
	}
}

func (s *S3Store) objectKey(key string) *string {
	return aws.String(s.prefix + key)
}

// CreateContainerIfNotExists creates the bucket when HeadBucket reports it missing.
func (s *S3Store) CreateContainerIfNotExists(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	if err == nil {
		return nil
	}
	if !hasErrorCode(err, "NotFound", "NoSuchBucket") {
		return fmt.Errorf("failed to check bucket %s: %w", s.bucket, err)
	}

	input := &s3.CreateBucketInput{Bucket: aws.String(s.bucket)}
	if s.region != "" && s.region != "us-east-1" {
		input.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(s.region),
		}
	}
	if _, err := s.client.CreateBucket(ctx, input); err != nil {
		if hasErrorCode(err, "BucketAlreadyOwnedByYou") {
			return nil
		}
		return fmt.Errorf("failed to create bucket %s: %w", s.bucket, err)
	}

	s.logger.Info("Created storage bucket", zap.String("bucket", s.bucket))
	return nil
}

func (s *S3Store) Put(ctx context.Context, key string, data []byte) error {
	_, err := s.client.PutObject(ctx, s.putInput(key, data))
	if err != nil {
		return fmt.Errorf("failed to put object %s: %w", key, err)
	}
	return nil
}

// PutIfAbsent uses S3 conditional writes (If-None-Match: *).
func (s *S3Store) PutIfAbsent(ctx context.Context, key string, data []byte) (bool, error) {
	input := s.putInput(key, data)
	input.IfNoneMatch = aws.String("*")

	if _, err := s.client.PutObject(ctx, input); err != nil {
		if hasErrorCode(err, "PreconditionFailed", "ConditionalRequestConflict") {
			return false, nil
		}
		return false, fmt.Errorf("failed to put object %s: %w", key, err)
	}
	return true, nil
}

func (s *S3Store) putInput(key string, data []byte) *s3.PutObjectInput {
	return &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           s.objectKey(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(http.DetectContentType(data)),
		ACL:           types.ObjectCannedACLPrivate,
	}
}

func (s *S3Store) Get(ctx context.Context, key string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    s.objectKey(key),
	})
	if err != nil {
		if hasErrorCode(err, "NoSuchKey", "NotFound") {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get object %s: %w", key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read object %s: %w", key, err)
	}
	return data, nil
}

func (s *S3Store) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    s.objectKey(key),
	})
	if err != nil {
		if hasErrorCode(err, "NotFound", "NoSuchKey") {
			return false, nil
		}
		return false, fmt.Errorf("failed to head object %s: %w", key, err)
	}
	return true, nil
}

func (s *S3Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    s.objectKey(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object %s: %w", key, err)
	}
	return nil
}

func (s *S3Store) ListKeys(ctx context.Context) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
			Bucket: aws.String(s.bucket),
			Prefix: aws.String(s.prefix),
		})
		for paginator.HasMorePages() {
			page, err := paginator.NextPage(ctx)
			if err != nil {
				yield("", fmt.Errorf("failed to list objects: %w", err))
				return
			}
			for _, obj := range page.Contents {
				if !yield(strings.TrimPrefix(aws.ToString(obj.Key), s.prefix), nil) {
					return
				}
			}
		}
	}
}

func hasErrorCode(err error, codes ...string) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	for _, code := range codes {
		if apiErr.ErrorCode() == code {
			return true
		}
	}
	return false
}
