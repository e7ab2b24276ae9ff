package services

import (
	"math"
	"net/http"
	"testing"
)

func TestPlanChunksSingePart(t *testing.T) {
	plan, err := planChunks(1024, 100<<20, 10000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if plan.NumberOfParts != 1 || plan.ChunkSize != 1024 {
		t.Fatalf("got %+v, want 1 part of 1024 bytes", plan)
	}
}

func TestPlanChunksSplitsLargeFiles(t *testing.T) {
	maxChunk := int64(100 << 20)
	size := maxChunk*3 + 1
	plan, err := planChunks(size, maxChunk, 10000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if plan.NumberOfParts != 4 {
		t.Fatalf("got %d parts, want 4", plan.NumberOfParts)
	}
	if plan.ChunkSize > maxChunk {
		t.Fatalf("chunk size %d exceeds limit %d", plan.ChunkSize, maxChunk)
	}
	if int64(plan.NumberOfParts)*plan.ChunkSize < size {
		t.Fatalf("parts do not cover file: %d * %d < %d", plan.NumberOfParts, plan.ChunkSize, size)
	}
}

func TestPlanChunksDeterministic(t *testing.T) {
	first, err := planChunks(123456789, 5<<20, 10000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := planChunks(123456789, 5<<20, 10000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first != second {
		t.Fatalf("same input produced different plans: %+v vs %+v", first, second)
	}
}

func TestPlanChunksRejectsNonPositiveSize(t *testing.T) {
	for _, size := range []int64{0, -1} {
		_, err := planChunks(size, 100<<20, 10000)
		appErr, ok := err.(*AppError)
		if !ok || appErr.HTTPCode != http.StatusBadRequest {
			t.Fatalf("size %d: got %v, want 400", size, err)
		}
	}
}

func TestPlanChunksUnplannable(t *testing.T) {
	// 2 个分片上限 x 10 字节分片容量，放不下 100 字节
	_, err := planChunks(100, 10, 2)
	appErr, ok := err.(*AppError)
	if !ok || appErr.HTTPCode != http.StatusUnprocessableEntity {
		t.Fatalf("got %v, want 422", err)
	}
	if appErr.Data == nil {
		t.Fatalf("got nil data, want planning limits")
	}
}

func TestPlanChunksMaxSize(t *testing.T) {
	// int64 上限附近不允许溢出成负的分片大小
	_, err := planChunks(math.MaxInt64, 100<<20, 10000)
	appErr, ok := err.(*AppError)
	if !ok || appErr.HTTPCode != http.StatusUnprocessableEntity {
		t.Fatalf("got %v, want 422", err)
	}

	plan, err := planChunks(math.MaxInt64, 1<<62, 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if plan.NumberOfParts != 2 || plan.ChunkSize != 1<<62 {
		t.Fatalf("got %+v, want 2 parts of 2^62 bytes", plan)
	}
	if plan.ChunkSize < 0 {
		t.Fatalf("chunk size overflowed: %+v", plan)
	}
}

func TestPlanChunksBoundary(t *testing.T) {
	// 恰好整除时不应该多出一个分片
	plan, err := planChunks(200, 100, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if plan.NumberOfParts != 2 || plan.ChunkSize != 100 {
		t.Fatalf("got %+v, want 2 parts of 100 bytes", plan)
	}
}
