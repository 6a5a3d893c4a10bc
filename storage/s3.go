// Package storage は、添付ファイルをオブジェクトストレージに保存する機能を提供します。
package storage

import (
	"context"
	"fmt"
	"io"
	"log"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
)

// S3Config はS3への接続設定です。
type S3Config struct {
	Bucket   string
	Region   string
	Endpoint string
	// PublicBaseURL は返却するファイルURLの先頭部分です。空の場合はEndpointを使用します。
	PublicBaseURL   string
	UsePathStyle    bool
	AccessKeyID     string
	SecretAccessKey string
}

// S3Storage はS3互換のオブジェクトストレージにファイルをアップロードします。
type S3Storage struct {
	client   *s3.Client
	uploader *manager.Uploader
	bucket   string
	baseURL  string
	now      func() time.Time
}

// NewS3Storage は設定からS3クライアントを構築し、新しいS3Storageを作成します。
func NewS3Storage(ctx context.Context, cfg S3Config) (*S3Storage, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is not configured")
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	// 静的な認証情報が指定されていればそれを使い、なければ既定の認証チェーンに任せる
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return NewS3StorageWithClient(client, cfg.Bucket, publicBaseURL(cfg)), nil
}

// NewS3StorageWithClient は構築済みのS3クライアントからS3Storageを作成します。
func NewS3StorageWithClient(client *s3.Client, bucket, baseURL string) *S3Storage {
	return &S3Storage{
		client:   client,
		uploader: manager.NewUploader(client),
		bucket:   bucket,
		baseURL:  strings.TrimRight(baseURL, "/"),
		now:      time.Now,
	}
}

func publicBaseURL(cfg S3Config) string {
	switch {
	case cfg.PublicBaseURL != "":
		return cfg.PublicBaseURL
	case cfg.Endpoint != "":
		return cfg.Endpoint
	}
	return fmt.Sprintf("https://s3.%s.amazonaws.com", cfg.Region)
}

// Upload はファイルをアップロードし、公開URLを返します。
// オブジェクトキーは yyyy/MM/dd/<uuid><拡張子> の形式です。
func (s *S3Storage) Upload(ctx context.Context, body io.Reader, fileName, contentType string) (string, error) {
	s.ensureBucket(ctx)

	key := s.objectKey(fileName)
	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
		ACL:         types.ObjectCannedACLPublicRead,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s to s3: %w", fileName, err)
	}

	fileURL := fmt.Sprintf("%s/%s/%s", s.baseURL, s.bucket, key)
	log.Printf("File uploaded to S3: %s", fileURL)
	return fileURL, nil
}

func (s *S3Storage) objectKey(fileName string) string {
	return fmt.Sprintf("%s/%s%s", s.now().UTC().Format("2006/01/02"), uuid.New().String(), path.Ext(fileName))
}

// ensureBucket はバケットがなければ作成します。失敗してもアップロードは続行します。
func (s *S3Storage) ensureBucket(ctx context.Context) {
	if _, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)}); err == nil {
		return
	}
	input := &s3.CreateBucketInput{Bucket: aws.String(s.bucket)}
	// us-east-1 以外ではリージョンの明示が必要
	if region := s.client.Options().Region; region != "" && region != "us-east-1" {
		input.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(region),
		}
	}
	if _, err := s.client.CreateBucket(ctx, input); err != nil {
		log.Printf("Warning: could not ensure S3 bucket %s exists, it may already exist: %v", s.bucket, err)
	}
}
