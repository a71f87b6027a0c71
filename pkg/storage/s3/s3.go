package s3

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	cfg "github.com/feichai0017/filter-reader/config"
	"github.com/feichai0017/filter-reader/pkg/logger"
)

// API is the subset of the S3 client used by S3Storage.
type API interface {
	s3.ListObjectsV2APIClient
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

type S3Storage struct {
	client     API
	bucketName string
	logger     logger.Logger
}

// New wraps an existing client.
func New(client API, bucket string, log logger.Logger) *S3Storage {
	return &S3Storage{client: client, bucketName: bucket, logger: log}
}

// Store 实现 Storage 接口的 Store 方法
func (s *S3Storage) Store(ctx context.Context, reader io.Reader, key string) (string, error) {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(key),
		Body:   reader,
	})
	if err != nil {
		s.logger.Error("Failed to store file to S3",
			logger.String("bucket", s.bucketName),
			logger.String("key", key),
			logger.Error(err),
		)
		return "", fmt.Errorf("failed to store file: %w", err)
	}
	return key, nil
}

// Get 实现 Storage 接口的 Get 方法
func (s *S3Storage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		s.logger.Error("Failed to get file from S3",
			logger.String("bucket", s.bucketName),
			logger.String("key", key),
			logger.Error(err),
		)
		return nil, fmt.Errorf("failed to get file: %w", err)
	}
	return result.Body, nil
}

// Delete 实现 Storage 接口的 Delete 方法
func (s *S3Storage) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		s.logger.Error("Failed to delete file from S3",
			logger.String("bucket", s.bucketName),
			logger.String("key", key),
			logger.Error(err),
		)
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// CleanupBefore 实现 Storage 接口的 CleanupBefore 方法
func (s *S3Storage) CleanupBefore(ctx context.Context, threshold time.Time) error {
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucketName),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			s.logger.Error("Failed to list objects",
				logger.String("bucket", s.bucketName),
				logger.Error(err),
			)
			return fmt.Errorf("failed to list objects: %w", err)
		}

		for _, obj := range page.Contents {
			if obj.Key == nil || obj.LastModified == nil || !obj.LastModified.Before(threshold) {
				continue
			}
			if err := s.Delete(ctx, *obj.Key); err != nil {
				continue
			}
			s.logger.Info("Deleted expired object",
				logger.String("key", *obj.Key),
				logger.Time("lastModified", *obj.LastModified),
			)
		}
	}
	return nil
}

// NewS3Storage builds a client from the AWS environment configuration and
// checks that the bucket exists.
func NewS3Storage(ctx context.Context, log logger.Logger) (*S3Storage, error) {
	s3Config := cfg.GetS3Config()

	log.Info("S3 Configuration",
		logger.String("bucket", s3Config.BucketName),
		logger.String("region", s3Config.Region),
		logger.String("endpoint", s3Config.Endpoint),
	)

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(s3Config.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			s3Config.AccessKey,
			s3Config.SecretKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if s3Config.Endpoint != "" {
			o.BaseEndpoint = aws.String(s3Config.Endpoint)
			o.UsePathStyle = true
		}
	})

	// 验证 bucket 是否存在
	if _, err := client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s3Config.BucketName)}); err != nil {
		return nil, fmt.Errorf("failed to verify bucket existence: %w", err)
	}

	return New(client, s3Config.BucketName, log), nil
}
