package services

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/solecare/solecare-api/config"
)

// PhotoBucket is the object store behind S3ImageService. Put returns the
// public URL saved on the line item.
type PhotoBucket interface {
	Put(ctx context.Context, key string, body io.Reader, contentType string) (string, error)
}

// S3PhotoBucket keeps photos in a single S3 bucket.
type S3PhotoBucket struct {
	client *s3.Client
	bucket string
	region string
}

// NewS3PhotoBucket builds a bucket client from cfg. Static keys are used when
// set, otherwise the default AWS credential chain applies.
func NewS3PhotoBucket(ctx context.Context, cfg *config.Config) (*S3PhotoBucket, error) {
	if cfg.AWSS3Bucket == "" {
		return nil, fmt.Errorf("no photo bucket configured")
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.AWSRegion)}
	if cfg.AWSAccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AWSAccessKeyID, cfg.AWSSecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return &S3PhotoBucket{
		client: s3.NewFromConfig(awsCfg),
		bucket: cfg.AWSS3Bucket,
		region: cfg.AWSRegion,
	}, nil
}

func (b *S3PhotoBucket) Put(ctx context.Context, key string, body io.Reader, contentType string) (string, error) {
	input := &s3.PutObjectInput{
		Bucket:       aws.String(b.bucket),
		Key:          aws.String(key),
		Body:         body,
		ContentType:  aws.String(contentType),
		CacheControl: aws.String("public, max-age=86400"),
	}
	if _, err := b.client.PutObject(ctx, input); err != nil {
		return "", fmt.Errorf("put %s: %w", key, err)
	}
	return photoObjectURL(b.bucket, b.region, key), nil
}

func photoObjectURL(bucket, region, key string) string {
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", bucket, region, key)
}
