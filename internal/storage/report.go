package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/ignite/campaign-targeting/internal/domain"
)

// S3API is the subset of the S3 client the reporter uses.
type S3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, opts ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// Reporter archives tenant run results as JSON objects.
type Reporter struct {
	client S3API
	bucket string
	prefix string
}

// NewReporter creates a reporter writing under s3://bucket/prefix.
func NewReporter(client S3API, bucket, prefix string) *Reporter {
	return &Reporter{client: client, bucket: bucket, prefix: prefix}
}

// NewReporterFromConfig builds a Reporter on a real S3 client.
func NewReporterFromConfig(cfg aws.Config, bucket, prefix string) *Reporter {
	return NewReporter(s3.NewFromConfig(cfg), bucket, prefix)
}

// ReportKey is <prefix>/<yyyy>/<mm>/<dd>/<accountId>/<runId>.json, dated by
// the run start in UTC.
func (r *Reporter) ReportKey(res domain.TenantResult) string {
	return path.Join(r.prefix, res.StartedAt.UTC().Format("2006/01/02"), res.AccountID, res.RunID+".json")
}

// Save writes one tenant run result.
func (r *Reporter) Save(ctx context.Context, res domain.TenantResult) error {
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling run report: %w", err)
	}
	_, err = r.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(r.bucket),
		Key:         aws.String(r.ReportKey(res)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("putting run report to S3: %w", err)
	}
	return nil
}

// Load reads a run result back by key.
func (r *Reporter) Load(ctx context.Context, key string) (domain.TenantResult, error) {
	var res domain.TenantResult
	out, err := r.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return res, fmt.Errorf("getting run report from S3: %w", err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return res, fmt.Errorf("reading run report: %w", err)
	}
	if err := json.Unmarshal(data, &res); err != nil {
		return res, fmt.Errorf("decoding run report: %w", err)
	}
	return res, nil
}

// Ping checks the bucket is reachable.
func (r *Reporter) Ping(ctx context.Context) error {
	_, err := r.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(r.bucket)})
	return err
}
