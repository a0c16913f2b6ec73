// Package publish uploads rendered artifacts to S3.
package publish

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ObjectPutter is the subset of the S3 client used for uploads.
type ObjectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Config selects the destination bucket.
type Config struct {
	Bucket string
	Prefix string
	Region string
}

// Publisher uploads files under a bucket prefix.
type Publisher struct {
	client ObjectPutter
	cfg    Config
}

// New creates a Publisher using client.
func New(client ObjectPutter, cfg Config) *Publisher {
	return &Publisher{client: client, cfg: cfg}
}

// NewS3 creates a Publisher backed by the default AWS credential chain.
func NewS3(ctx context.Context, cfg Config) (*Publisher, error) {
	if cfg.Bucket == "" {
		return nil, eris.New("publish: bucket is required")
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, eris.Wrap(err, "publish: load aws config")
	}
	return New(s3.NewFromConfig(awsCfg), cfg), nil
}

// Key returns the object key for a local file.
func (p *Publisher) Key(file string) string {
	prefix := strings.Trim(p.cfg.Prefix, "/")
	if prefix == "" {
		return filepath.Base(file)
	}
	return path.Join(prefix, filepath.Base(file))
}

// URL returns the public URL of key.
func (p *Publisher) URL(key string) string {
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", p.cfg.Bucket, p.cfg.Region, key)
}

// Upload puts each file and returns the object URLs in the same order.
// Empty paths are skipped.
func (p *Publisher) Upload(ctx context.Context, files ...string) ([]string, error) {
	var urls []string
	for _, f := range files {
		if f == "" {
			continue
		}
		u, err := p.uploadOne(ctx, f)
		if err != nil {
			return urls, err
		}
		urls = append(urls, u)
	}
	return urls, nil
}

func (p *Publisher) uploadOne(ctx context.Context, file string) (string, error) {
	fh, err := os.Open(file) //nolint:gosec // artifact paths come from config
	if err != nil {
		return "", eris.Wrapf(err, "publish: open %s", file)
	}
	defer fh.Close() //nolint:errcheck

	key := p.Key(file)
	contentType := mime.TypeByExtension(filepath.Ext(file))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err = p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.cfg.Bucket),
		Key:         aws.String(key),
		Body:        fh,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", eris.Wrapf(err, "publish: put s3://%s/%s", p.cfg.Bucket, key)
	}

	u := p.URL(key)
	zap.L().Info("publish: uploaded", zap.String("file", file), zap.String("url", u))
	return u, nil
}
