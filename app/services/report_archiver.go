package services

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
)

const XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ReportArchiver keeps a copy of every exported report
type ReportArchiver interface {
	Archive(ctx context.Context, fileName, contentType string, data []byte) (string, error)
}

// S3ArchiverConfig holds the bucket coordinates for an S3-compatible store
type S3ArchiverConfig struct {
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
	Prefix    string
}

// S3ReportArchiver uploads reports under <prefix>/<yyyy>/<mm>/<file>
type S3ReportArchiver struct {
	uploader *s3manager.Uploader
	bucket   string
	prefix   string
}

func NewS3ReportArchiver(cfg S3ArchiverConfig) (*S3ReportArchiver, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}

	awsCfg := &aws.Config{
		Region: aws.String(cfg.Region),
	}
	if cfg.Endpoint != "" {
		awsCfg.Endpoint = aws.String(cfg.Endpoint)
		awsCfg.S3ForcePathStyle = aws.Bool(true)
	}
	if cfg.AccessKey != "" {
		awsCfg.Credentials = credentials.NewStaticCredentials(cfg.AccessKey, cfg.SecretKey, "")
	}

	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create s3 session: %w", err)
	}

	return &S3ReportArchiver{
		uploader: s3manager.NewUploader(sess),
		bucket:   cfg.Bucket,
		prefix:   cfg.Prefix,
	}, nil
}

// Archive uploads data and returns the object location
func (a *S3ReportArchiver) Archive(ctx context.Context, fileName, contentType string, data []byte) (string, error) {
	now := time.Now().UTC()
	key := path.Join(a.prefix, now.Format("2006"), now.Format("01"), fileName)

	out, err := a.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("unable to upload %s to s3: %w", fileName, err)
	}

	return out.Location, nil
}
