package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"userstats/internal/etlerr"
)

// S3Config holds construction parameters for the S3 opener. Credentials come
// from the default AWS chain (env, shared config, instance role).
type S3Config struct {
	Region    string
	Endpoint  string // optional; set for MinIO or other S3-compatible stores
	PathStyle bool
}

type getObjectAPI interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3 opens inputs with GetObject. A root "s3://bucket/prefix" and name "a.csv"
// resolve to key "prefix/a.csv" in bucket.
type S3 struct {
	client getObjectAPI
}

// NewS3 creates an S3 opener from cfg.
func NewS3(ctx context.Context, cfg S3Config) (*S3, error) {
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.PathStyle {
			o.UsePathStyle = true
		}
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return &S3{client: client}, nil
}

func (s *S3) Open(ctx context.Context, root, name string) (io.ReadCloser, error) {
	bucket, key, err := ObjectKey(root, name)
	if err != nil {
		return nil, etlerr.Config("open "+root, err)
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: &bucket, Key: &key})
	if err != nil {
		return nil, etlerr.MissingInput(fmt.Sprintf("get s3://%s/%s", bucket, key), err)
	}
	return out.Body, nil
}

// ObjectKey splits an s3:// root and a file name into bucket and object key.
func ObjectKey(root, name string) (bucket, key string, err error) {
	if !IsS3(root) {
		return "", "", fmt.Errorf("not an s3 root: %q", root)
	}
	rest := root[len("s3://"):]
	bucket, prefix, _ := strings.Cut(rest, "/")
	if bucket == "" {
		return "", "", errors.New("s3 root has no bucket")
	}
	key = path.Join(prefix, name)
	key = strings.TrimPrefix(key, "/")
	if key == "" || key == "." {
		return "", "", errors.New("s3 object key is empty")
	}
	return bucket, key, nil
}
