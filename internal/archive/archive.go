// Package archive mirrors fetched raw files to an S3 bucket, so a pipeline
// host can be rebuilt without re-downloading from the upstream mirror.
package archive

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/pkg/errors"

	"github.com/Janardhan-Guntaka/taxi-estimation/internal/config"
	"github.com/Janardhan-Guntaka/taxi-estimation/internal/window"
)

// Uploader copies local files into a bucket under a key prefix.
type Uploader struct {
	client *s3.Client
	bucket string
	prefix string
}

// New builds an uploader from the pipeline config. Static credentials and a
// custom endpoint support S3-compatible stores like MinIO; otherwise the
// default AWS credential chain applies.
func New(ctx context.Context, cfg config.Config) (*Uploader, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.S3Region),
	}
	if cfg.S3AccessKey != "" && cfg.S3SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3AccessKey, cfg.S3SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "archive: load AWS config")
	}

	var s3Opts []func(*s3.Options)
	if cfg.S3Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
			o.UsePathStyle = true
		})
	}

	return &Uploader{
		client: s3.NewFromConfig(awsCfg, s3Opts...),
		bucket: cfg.S3Bucket,
		prefix: strings.Trim(cfg.S3Prefix, "/"),
	}, nil
}

// Key is the object key a month's raw file maps to. Objects group by
// dataset and year under the prefix, e.g. raw/yellow/2025/<file>.
func (u *Uploader) Key(dataset string, m window.Month, localPath string) string {
	return path.Join(u.prefix, dataset, fmt.Sprintf("%04d", m.Year), filepath.Base(localPath))
}

func (u *Uploader) exists(ctx context.Context, key string) (bool, error) {
	_, err := u.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if strings.Contains(err.Error(), "NotFound") || strings.Contains(err.Error(), "404") {
			return false, nil
		}
		return false, errors.Wrap(err, "archive: head object")
	}
	return true, nil
}

// Upload copies a month's file to the bucket unless it is already there.
// Returns the object key.
func (u *Uploader) Upload(ctx context.Context, dataset string, m window.Month, localPath string) (string, error) {
	key := u.Key(dataset, m, localPath)

	ok, err := u.exists(ctx, key)
	if err != nil {
		return "", err
	}
	if ok {
		return key, nil
	}

	f, err := os.Open(localPath)
	if err != nil {
		return "", errors.Wrap(err, "archive: open file")
	}
	defer f.Close()

	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(key),
		Body:   f,
	})
	if err != nil {
		return "", errors.Wrapf(err, "archive: put s3://%s/%s", u.bucket, key)
	}
	return key, nil
}
