package s3store

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
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/kirillkom/submission-vault/internal/core/domain"
	"github.com/kirillkom/submission-vault/internal/infrastructure/resilience"
)

// API is the subset of the S3 client the storage needs.
type API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	CopyObject(ctx context.Context, params *s3.CopyObjectInput, optFns ...func(*s3.Options)) (*s3.CopyObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

type Config struct {
	Bucket       string
	Region       string
	Endpoint     string
	UsePathStyle bool
}

// Storage keeps objects in a single bucket. S3 has no rename, so Move is copy then delete.
type Storage struct {
	client   API
	bucket   string
	executor *resilience.Executor
}

// Open builds an S3 client from the default AWS credential chain.
func Open(ctx context.Context, cfg Config, executor *resilience.Executor) (*Storage, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, domain.WrapError(domain.ErrConfiguration, "open s3 storage", errors.New("bucket is required"))
	}
	opts := make([]func(*awsconfig.LoadOptions) error, 0, 1)
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})
	return New(client, cfg.Bucket, executor), nil
}

func New(client API, bucket string, executor *resilience.Executor) *Storage {
	return &Storage{client: client, bucket: bucket, executor: executor}
}

func (s *Storage) Save(ctx context.Context, objectID string, data io.Reader, size int64, contentType string) error {
	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectID),
		Body:   data,
	}
	if size > 0 {
		input.ContentLength = aws.Int64(size)
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	// The body is a one-shot stream, so uploads are not retried.
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return resilience.WrapTemporary("s3 put", fmt.Errorf("s3 put %s: %w", objectID, err), classifyS3Error)
	}
	return nil
}

func (s *Storage) Open(ctx context.Context, objectID string) (io.ReadCloser, error) {
	var out *s3.GetObjectOutput
	err := s.run(ctx, "s3.get", func(callCtx context.Context) error {
		var err error
		out, err = s.client.GetObject(callCtx, &s3.GetObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(objectID),
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("s3 get %s: %w", objectID, err)
	}
	return out.Body, nil
}

func (s *Storage) Move(ctx context.Context, objectID, targetID string) (string, error) {
	err := s.run(ctx, "s3.copy", func(callCtx context.Context) error {
		_, err := s.client.CopyObject(callCtx, &s3.CopyObjectInput{
			Bucket:     aws.String(s.bucket),
			Key:        aws.String(targetID),
			CopySource: aws.String(copySource(s.bucket, objectID)),
		})
		return err
	})
	if err != nil {
		return "", fmt.Errorf("s3 copy %s to %s: %w", objectID, targetID, err)
	}
	if err := s.Delete(ctx, objectID); err != nil {
		// The copy at targetID stays; callers find it under that key.
		return "", fmt.Errorf("s3 remove %s after copy to %s: %w", objectID, targetID, err)
	}
	return targetID, nil
}

func (s *Storage) Delete(ctx context.Context, objectID string) error {
	err := s.run(ctx, "s3.delete", func(callCtx context.Context) error {
		_, err := s.client.DeleteObject(callCtx, &s3.DeleteObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(objectID),
		})
		if isNotFound(err) {
			return nil
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("s3 delete %s: %w", objectID, err)
	}
	return nil
}

// EnsureContainer writes a zero-byte folder marker so the path shows up in bucket browsers.
func (s *Storage) EnsureContainer(ctx context.Context, container string) (string, error) {
	marker := strings.TrimSuffix(container, "/") + "/"
	exists, err := s.Exists(ctx, marker)
	if err != nil {
		return "", err
	}
	if !exists {
		err = s.run(ctx, "s3.put_marker", func(callCtx context.Context) error {
			_, err := s.client.PutObject(callCtx, &s3.PutObjectInput{
				Bucket:        aws.String(s.bucket),
				Key:           aws.String(marker),
				Body:          strings.NewReader(""),
				ContentLength: aws.Int64(0),
			})
			return err
		})
		if err != nil {
			return "", fmt.Errorf("s3 create container %s: %w", container, err)
		}
	}
	return container, nil
}

func (s *Storage) Exists(ctx context.Context, objectID string) (bool, error) {
	found := true
	err := s.run(ctx, "s3.head", func(callCtx context.Context) error {
		_, err := s.client.HeadObject(callCtx, &s3.HeadObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(objectID),
		})
		if isNotFound(err) {
			found = false
			return nil
		}
		return err
	})
	if err != nil {
		return false, fmt.Errorf("s3 head %s: %w", objectID, err)
	}
	return found, nil
}

func (s *Storage) run(ctx context.Context, operation string, fn func(context.Context) error) error {
	var err error
	if s.executor != nil {
		err = s.executor.Execute(ctx, operation, fn, classifyS3Error)
	} else {
		err = fn(ctx)
	}
	return resilience.WrapTemporary(operation, err, classifyS3Error)
}

func copySource(bucket, key string) string {
	segments := strings.Split(key, "/")
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}
	return bucket + "/" + strings.Join(segments, "/")
}

func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return true
	}
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return true
		}
	}
	return false
}
