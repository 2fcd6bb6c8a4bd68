package services

import (
	"context"

	"file-manager-api/internal/application/ports"
	domain "file-manager-api/internal/domain/file_info"
)

type InfoService struct {
	storage        ports.FileStorage
	fileRepository domain.Repository
}

func NewInfoService(storage ports.FileStorage, fileRepository domain.Repository) ports.InfoService {
	return &InfoService{
		storage:        storage,
		fileRepository: fileRepository,
	}
}

func (is *InfoService) Get(ctx context.Context, id domain.ID) (*domain.FileInfo, error) {
	fi, err := is.fileRepository.FetchFileInfo(ctx, id)
	if err != nil {
		return nil, err
	}
	fi.URL = is.storage.GetPublicURL(fi.RelativePath)

	return fi, nil
}

// List defaults to committed records; an empty location matches the whole group.
func (is *InfoService) List(ctx context.Context, key domain.Key, status domain.Status) (domain.FileInfos, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	if status == "" {
		status = domain.StatusDone
	}

	fis, err := is.fileRepository.FetchFileInfos(ctx, key, status)
	if err != nil {
		return nil, err
	}
	for _, fi := range fis {
		fi.URL = is.storage.GetPublicURL(fi.RelativePath)
	}

	return fis, nil
}
