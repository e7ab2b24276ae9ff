package services

import (
	"net/http"
)

type ChunkPlan struct {
	NumberOfParts int32 `json:"number_of_parts"`
	ChunkSize     int64 `json:"chunk_size"`
}

// planChunks 对给定字节数计算分片方案：从 1 开始搜索分片数，
// 取第一个满足 ceil(size/n) <= maxChunkSize 的 n。同样的入参永远得到同样的方案。
// minChunkSize 是对象存储的建议下限，小文件天然只有一个分片，不在这里约束。
func planChunks(size int64, maxChunkSize int64, maxPartCount int) (ChunkPlan, error) {
	if size <= 0 {
		return ChunkPlan{}, newAppError(http.StatusBadRequest, "文件大小必须为正数", nil)
	}
	if maxChunkSize <= 0 || maxPartCount <= 0 {
		return ChunkPlan{}, newAppError(http.StatusUnprocessableEntity, "分片规划配置无效", nil)
	}

	for n := int64(1); n <= int64(maxPartCount); n++ {
		// size 接近 int64 上限，向上取整不能用 size+n-1
		chunkSize := size / n
		if size%n != 0 {
			chunkSize++
		}
		if chunkSize <= maxChunkSize {
			return ChunkPlan{NumberOfParts: int32(n), ChunkSize: chunkSize}, nil
		}
	}

	return ChunkPlan{}, newAppErrorWithData(http.StatusUnprocessableEntity, "文件超过分片规划上限", map[string]interface{}{
		"max_chunk_size": maxChunkSize,
		"max_part_count": maxPartCount,
	}, nil)
}
