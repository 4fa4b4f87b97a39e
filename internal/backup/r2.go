package backup

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/oshikatsu-collection/oshidata/internal/config"
	"github.com/oshikatsu-collection/oshidata/internal/logger"
)

// ObjectAPI is the part of *s3.Client the uploader needs.
type ObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

var _ ObjectAPI = (*s3.Client)(nil)

type RemoteFile struct {
	Key          string `json:"key"`
	Size         int64  `json:"size"`
	LastModified string `json:"last_modified"`
}

// Remote stores snapshot files in an R2 bucket under a key prefix.
type Remote struct {
	client ObjectAPI
	bucket string
	prefix string
}

func NewRemote(client ObjectAPI, bucket, prefix string) *Remote {
	return &Remote{client: client, bucket: bucket, prefix: prefix}
}

// NewR2 builds a Remote against Cloudflare R2.
// Endpoint format: https://<accountid>.r2.cloudflarestorage.com
func NewR2(ctx context.Context, c config.R2Config) (*Remote, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("R2 configuration is incomplete")
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(c.AccessKey, c.SecretKey, "")),
		awsconfig.WithRegion("us-east-1"), // R2 accepts us-east-1 as "auto"
	)
	if err != nil {
		return nil, err
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(c.Endpoint)
		o.UsePathStyle = true
	})
	return NewRemote(client, c.Bucket, c.Prefix), nil
}

// Upload puts the local file under prefix + base name and returns the key.
func (r *Remote) Upload(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	key := r.prefix + filepath.Base(path)
	logger.L().Infof("Backup: uploading %s to %s/%s", path, r.bucket, key)
	_, err = r.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(key),
		Body:   f,
	})
	if err != nil {
		return "", fmt.Errorf("upload to R2: %w", err)
	}
	return key, nil
}

// List returns the snapshots under the prefix, newest first.
func (r *Remote) List(ctx context.Context) ([]RemoteFile, error) {
	var files []RemoteFile
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(r.bucket),
		Prefix: aws.String(r.prefix + filePrefix),
	}
	for {
		out, err := r.client.ListObjectsV2(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("list backups: %w", err)
		}
		for _, obj := range out.Contents {
			f := RemoteFile{Key: aws.ToString(obj.Key), Size: aws.ToInt64(obj.Size)}
			if obj.LastModified != nil {
				f.LastModified = obj.LastModified.Format("2006-01-02 15:04:05")
			}
			files = append(files, f)
		}
		if !aws.ToBool(out.IsTruncated) || out.NextContinuationToken == nil {
			break
		}
		input.ContinuationToken = out.NextContinuationToken
	}
	// 文件名带时间戳，按 key 倒序即按时间倒序
	sort.Slice(files, func(i, j int) bool { return files[i].Key > files[j].Key })
	return files, nil
}

// Download fetches key into dir and returns the local path.
func (r *Remote) Download(ctx context.Context, key, dir string) (string, error) {
	if !strings.HasPrefix(key, r.prefix) {
		key = r.prefix + key
	}
	resp, err := r.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return "", fmt.Errorf("download %s: %w", key, err)
	}
	defer resp.Body.Close()

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, filepath.Base(key))
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("download %s: %w", key, err)
	}
	return path, f.Close()
}
