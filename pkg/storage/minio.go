// Package storage 提供了与对象存储服务（如 MinIO）交互的功能。
package storage

import (
	"bytes"
	"context"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"medisecure-go/internal/config"
	"medisecure-go/pkg/log"
)

// Client 封装 MinIO 客户端和语料所在的存储桶。
type Client struct {
	minioClient *minio.Client
	bucket      string
}

// NewClient 初始化 MinIO 客户端并确保语料存储桶存在。
func NewClient(cfg config.MinIOConfig) (*Client, error) {
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, err
	}

	log.Info("MinIO 客户端初始化成功")

	// 检查存储桶是否存在，不存在则创建
	ctx := context.Background()
	exists, err := mc.BucketExists(ctx, cfg.BucketName)
	if err != nil {
		return nil, err
	}
	if !exists {
		log.Infof("存储桶 '%s' 不存在，正在创建...", cfg.BucketName)
		if err := mc.MakeBucket(ctx, cfg.BucketName, minio.MakeBucketOptions{}); err != nil {
			return nil, err
		}
		log.Infof("存储桶 '%s' 创建成功", cfg.BucketName)
	} else {
		log.Infof("存储桶 '%s' 已存在", cfg.BucketName)
	}

	return &Client{minioClient: mc, bucket: cfg.BucketName}, nil
}

// GetObject 读取对象的完整内容。
func (c *Client) GetObject(ctx context.Context, objectName string) ([]byte, error) {
	obj, err := c.minioClient.GetObject(ctx, c.bucket, objectName, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer obj.Close()
	return io.ReadAll(obj)
}

// PutObject 上传对象。
func (c *Client) PutObject(ctx context.Context, objectName string, data []byte, contentType string) error {
	_, err := c.minioClient.PutObject(ctx, c.bucket, objectName, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	return err
}

// StatObject 返回对象元数据，对象不存在时返回错误。
func (c *Client) StatObject(ctx context.Context, objectName string) (minio.ObjectInfo, error) {
	return c.minioClient.StatObject(ctx, c.bucket, objectName, minio.StatObjectOptions{})
}

// ListObjects 列出桶内全部对象名。
func (c *Client) ListObjects(ctx context.Context) ([]string, error) {
	var names []string
	for info := range c.minioClient.ListObjects(ctx, c.bucket, minio.ListObjectsOptions{Recursive: true}) {
		if info.Err != nil {
			return nil, info.Err
		}
		names = append(names, info.Key)
	}
	return names, nil
}
