package persistent

import (
	"bytes"
	"context"
	"fmt"

	"github.com/andreyxaxa/Event-Pseudonymizer/pkg/s3client"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type ObjectRepo struct {
	*s3client.S3Client
	bucket string
}

func NewObjectRepo(s3c *s3client.S3Client, bucket string) *ObjectRepo {
	return &ObjectRepo{s3c, bucket}
}

func (r *ObjectRepo) UploadBytes(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := r.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(r.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return fmt.Errorf("ObjectRepo - UploadBytes - r.Client.PutObject: %w", err)
	}

	return nil
}
