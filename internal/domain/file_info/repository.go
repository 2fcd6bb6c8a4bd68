package file_info

import (
	"context"
	"time"
)

// Repository is the metadata store. Location in a Key is a wildcard when empty.
type Repository interface {
	CreateFileInfo(ctx context.Context, req *FileInfo) (*FileInfo, error)
	FetchFileInfo(ctx context.Context, id ID) (*FileInfo, error)
	FetchFileInfos(ctx context.Context, key Key, status Status) (FileInfos, error)
	FetchStaleTemp(ctx context.Context, before time.Time) (FileInfos, error)
	CommitFileInfos(ctx context.Context, key Key) ([]ID, error)
	DeleteFileInfo(ctx context.Context, id ID) error
}
