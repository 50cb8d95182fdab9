package minio

import (
	"context"
	"fmt"
	log "log/slog"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"Parley/internal/api/config"
)

// Uploader 附件存储，桶对外只读，便于直接以 URL 展示
type Uploader struct {
	client         *minio.Client
	bucket         string
	publicEndpoint string
	publicSSL      bool
}

// Init 初始化 MinIO 客户端并确保桶存在
func Init(cfg config.MinIOConfig) (*Uploader, error) {
	var endpoint string
	var useSSL bool
	if cfg.InternalEndpoint != "" {
		endpoint = cfg.InternalEndpoint
		useSSL = cfg.InternalUseSSL
	} else {
		endpoint = cfg.ExternalEndpoint
		useSSL = true
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize minio client: %w", err)
	}

	public := cfg.ExternalEndpoint
	publicSSL := true
	if public == "" {
		public = endpoint
		publicSSL = useSSL
	}
	u := &Uploader{client: client, bucket: cfg.Bucket, publicEndpoint: public, publicSSL: publicSSL}
	if err := u.ensureBucket(context.Background()); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Uploader) ensureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to connect to minio server: %w", err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("failed to create bucket: %w", err)
	}

	readOnly := fmt.Sprintf(`{"Version":"2012-10-17","Statement":[{"Effect":"Allow","Principal":{"AWS":["*"]},"Action":["%s"],"Resource":["arn:aws:s3:::%s/*"]}]}`,
		"s3:GetObject", s.bucket)
	if err := s.client.SetBucketPolicy(ctx, s.bucket, readOnly); err != nil {
		return fmt.Errorf("failed to set bucket policy: %w", err)
	}
	log.Info("MinIO bucket created", "bucket", s.bucket)
	return nil
}
