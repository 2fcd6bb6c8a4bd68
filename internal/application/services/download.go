package services

import (
	"context"
	"fmt"
	"io"

	"github.com/gabriel-vasile/mimetype"

	"file-manager-api/internal/application/ports"
	domain "file-manager-api/internal/domain/file_info"
)

type DownloadService struct {
	storage        ports.FileStorage
	fileRepository domain.Repository
}

func NewDownloadService(storage ports.FileStorage, fileRepository domain.Repository) ports.DownloadService {
	return &DownloadService{
		storage:        storage,
		fileRepository: fileRepository,
	}
}

// Download opens the backing file of id. A record whose file is gone is a
// read failure, not a missing record. The caller closes Reader.
func (ds *DownloadService) Download(ctx context.Context, id domain.ID) (*ports.Download, error) {
	fi, err := ds.fileRepository.FetchFileInfo(ctx, id)
	if err != nil {
		return nil, err
	}

	f, err := ds.storage.Open(fi.RelativePath)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", domain.ErrStorageRead, fi.RelativePath, err)
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: stat %s: %w", domain.ErrStorageRead, fi.RelativePath, err)
	}

	mt, err := mimetype.DetectReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: probe %s: %w", domain.ErrStorageRead, fi.RelativePath, err)
	}
	if _, err = f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: rewind %s: %w", domain.ErrStorageRead, fi.RelativePath, err)
	}

	return &ports.Download{
		Reader:       f,
		ContentType:  mt.String(),
		OriginalName: fi.OriginalName,
		Size:         st.Size(),
		ModTime:      st.ModTime(),
	}, nil
}
