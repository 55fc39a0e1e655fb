package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/pharmakg/sentinel/internal/util"
	"github.com/pharmakg/sentinel/pkg/react"
)

// NewS3Client builds an S3 client from environment configuration, or nil
// when no endpoint/region is configured (trace archiving is optional).
func NewS3Client(ctx context.Context) *s3.Client {
	region := util.GetEnv("AWS_REGION")
	endpoint := util.GetEnv("AWS_ENDPOINT")
	accessKey := util.GetEnv("AWS_ACCESS_KEY")
	secretKey := util.GetEnv("AWS_SECRET_KEY")
	if region == "" && endpoint == "" {
		return nil
	}

	cfg, err := awsconfig.LoadDefaultConfig(
		ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithBaseEndpoint(endpoint),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			accessKey,
			secretKey,
			"",
		)),
	)
	if err != nil {
		return nil
	}

	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = true
	})
}

// ArchiveQueryResult writes the full query result, including the tool trace,
// to the audit bucket as JSON. A nil client is a no-op.
func ArchiveQueryResult(ctx context.Context, client *s3.Client, result *react.Result) error {
	if client == nil {
		return nil
	}
	bucket := util.GetEnv("AWS_BUCKET")
	if bucket == "" {
		return fmt.Errorf("AWS_BUCKET is not configured")
	}

	body, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize query result: %w", err)
	}

	key := fmt.Sprintf("traces/%s.json", result.QueryID)
	_, err = client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to archive query trace: %w", err)
	}
	return nil
}
