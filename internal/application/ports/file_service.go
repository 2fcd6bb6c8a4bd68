package ports

import (
	"context"
	"io"
	"time"

	"file-manager-api/internal/domain/file_info"
)

type (
	UploadFile struct {
		Name   string
		Reader io.Reader
	}
	UploadRequest struct {
		Key    file_info.Key
		Files  []UploadFile
		// Single takes exactly one file and deletes every record matching Key
		// first. An empty Key.Location matches all locations of the group,
		// so the whole group is replaced.
		Single bool
		// Done commits the key right after the files are stored.
		Done   bool
	}

	Download struct {
		Reader       io.ReadSeekCloser
		ContentType  string
		OriginalName string
		Size         int64
		ModTime      time.Time
	}

	// ThumbnailRequest names exactly one source: ID, Key (first committed file
	// of the group) or URL.
	ThumbnailRequest struct {
		ID     file_info.ID
		Key    file_info.Key
		URL    string
		Width  int
		Height int
		Mode   string
	}
)

type UploadService interface {
	Upload(ctx context.Context, req UploadRequest) (file_info.FileInfos, error)
}

type DeleteService interface {
	Delete(ctx context.Context, id file_info.ID) (*file_info.FileInfo, error)
	DeleteGroup(ctx context.Context, key file_info.Key) (file_info.FileInfos, error)
}

type DoneService interface {
	Commit(ctx context.Context, key file_info.Key) error
}

type InfoService interface {
	Get(ctx context.Context, id file_info.ID) (*file_info.FileInfo, error)
	List(ctx context.Context, key file_info.Key, status file_info.Status) (file_info.FileInfos, error)
}

type DownloadService interface {
	Download(ctx context.Context, id file_info.ID) (*Download, error)
}

type ThumbnailService interface {
	Thumbnail(ctx context.Context, req ThumbnailRequest) (string, error)
}

type SweepService interface {
	Sweep(ctx context.Context, olderThan time.Duration) (int, error)
	Run(ctx context.Context, interval, olderThan time.Duration)
}
