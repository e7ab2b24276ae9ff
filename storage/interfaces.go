package storage

import (
	"context"
	"time"
)

type CompletedPart struct {
	PartNumber int32  `json:"part_number"`
	ETag       string `json:"etag"`
}

type CompleteResult struct {
	Key     string
	Version string
}

type ObjectVersion struct {
	Key     string
	Version string
}

// ObjectStorage 是对象存储分片上传协议的抽象。
// 所有调用都由请求方传入超时上下文，这里不做重试。
type ObjectStorage interface {
	CreateMultipartUpload(ctx context.Context, key string) (string, error)
	CompleteMultipartUpload(ctx context.Context, key string, uploadID string, parts []CompletedPart) (CompleteResult, error)
	AbortMultipartUpload(ctx context.Context, key string, uploadID string) error
	PresignUploadPart(ctx context.Context, key string, uploadID string, partNumber int32, expire time.Duration) (string, error)
	PresignGetObject(ctx context.Context, key string, version string, expire time.Duration) (string, error)
	DeleteObjects(ctx context.Context, objects []ObjectVersion) error
}
