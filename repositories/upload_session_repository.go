package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisUploadSessionRepository 跟踪进行中的分片上传会话，
// 过期未完成的会话由对象存储侧的生命周期策略回收。
type RedisUploadSessionRepository struct {
	redis *redis.Client
}

func NewRedisUploadSessionRepository(redisClient *redis.Client) *RedisUploadSessionRepository {
	return &RedisUploadSessionRepository{redis: redisClient}
}

func uploadSessionKey(uploadID string) string {
	return fmt.Sprintf("upload:%s:session", uploadID)
}

func (r *RedisUploadSessionRepository) Register(ctx context.Context, uploadID string, fileID string, name string, expireSeconds int) error {
	key := uploadSessionKey(uploadID)
	if err := r.redis.HSet(ctx, key, "file_id", fileID, "name", name).Err(); err != nil {
		return err
	}
	if expireSeconds > 0 {
		return r.redis.Expire(ctx, key, time.Duration(expireSeconds)*time.Second).Err()
	}
	return nil
}

func (r *RedisUploadSessionRepository) Exists(ctx context.Context, uploadID string) (bool, error) {
	n, err := r.redis.Exists(ctx, uploadSessionKey(uploadID)).Result()
	return n > 0, err
}

func (r *RedisUploadSessionRepository) Clear(ctx context.Context, uploadID string) error {
	return r.redis.Del(ctx, uploadSessionKey(uploadID)).Err()
}
