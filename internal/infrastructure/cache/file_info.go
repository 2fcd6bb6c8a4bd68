package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"

	"file-manager-api/internal/domain/file_info"
)

// FileInfoRepository keeps single-record lookups in a per-instance LRU.
// List queries always go to the wrapped store.
type FileInfoRepository struct {
	next     file_info.Repository
	cache    *expirable.LRU[file_info.ID, file_info.FileInfo]
	mCounter *prometheus.CounterVec
}

func NewFileInfoRepository(
	next file_info.Repository,
	size int,
	ttl time.Duration,
	mCounter *prometheus.CounterVec,
) file_info.Repository {
	return &FileInfoRepository{
		next:     next,
		cache:    expirable.NewLRU[file_info.ID, file_info.FileInfo](size, nil, ttl),
		mCounter: mCounter,
	}
}

func (r *FileInfoRepository) CreateFileInfo(ctx context.Context, req *file_info.FileInfo) (*file_info.FileInfo, error) {
	return r.next.CreateFileInfo(ctx, req)
}

// FetchFileInfo hands out copies so callers can't mutate cached entries.
func (r *FileInfoRepository) FetchFileInfo(ctx context.Context, id file_info.ID) (*file_info.FileInfo, error) {
	if fi, ok := r.cache.Get(id); ok {
		r.count("file_info_cache_hits_total")
		return &fi, nil
	}
	r.count("file_info_cache_misses_total")

	fi, err := r.next.FetchFileInfo(ctx, id)
	if err != nil {
		return nil, err
	}
	r.cache.Add(id, *fi)

	return fi, nil
}

func (r *FileInfoRepository) FetchFileInfos(ctx context.Context, key file_info.Key, status file_info.Status) (file_info.FileInfos, error) {
	return r.next.FetchFileInfos(ctx, key, status)
}

func (r *FileInfoRepository) FetchStaleTemp(ctx context.Context, before time.Time) (file_info.FileInfos, error) {
	return r.next.FetchStaleTemp(ctx, before)
}

func (r *FileInfoRepository) CommitFileInfos(ctx context.Context, key file_info.Key) ([]file_info.ID, error) {
	ids, err := r.next.CommitFileInfos(ctx, key)
	for _, id := range ids {
		r.cache.Remove(id)
	}

	return ids, err
}

func (r *FileInfoRepository) DeleteFileInfo(ctx context.Context, id file_info.ID) error {
	r.cache.Remove(id)
	return r.next.DeleteFileInfo(ctx, id)
}

func (r *FileInfoRepository) count(result string) {
	if r.mCounter != nil {
		r.mCounter.WithLabelValues(result).Inc()
	}
}
