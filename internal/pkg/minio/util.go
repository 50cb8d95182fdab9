package minio

import (
	"context"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
)

// ObjectName 按日期分目录，保留原始扩展名
func ObjectName(chatID, fileName string, now time.Time) string {
	return fmt.Sprintf("chats/%s/%s/%s%s", chatID, now.Format("20060102"), uuid.NewString(), path.Ext(fileName))
}

// UploadFile 上传文件到MinIO，返回可公开访问的 URL
func (s *Uploader) UploadFile(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) (string, error) {
	uploadInfo, err := s.client.PutObject(ctx, s.bucket, objectName, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload file: %w", err)
	}
	return s.PublicURL(uploadInfo.Key), nil
}

// DeleteFile 删除MinIO中的文件
func (s *Uploader) DeleteFile(ctx context.Context, objectName string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, objectName, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// PublicURL 获取文件的公共访问URL
func (s *Uploader) PublicURL(objectName string) string {
	protocol := "http"
	if s.publicSSL {
		protocol = "https"
	}
	return fmt.Sprintf("%s://%s/%s/%s", protocol, s.publicEndpoint, s.bucket, objectName)
}
