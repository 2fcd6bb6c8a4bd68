package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"file-manager-api/internal/application/ports"
	domain "file-manager-api/internal/domain/file_info"
	"file-manager-api/internal/infrastructure/mq"
	"file-manager-api/internal/interface/api/rest/dto/file_info"
)

type DeleteService struct {
	storage        ports.FileStorage
	fileRepository domain.Repository
	mq             ports.EventPublisher
	logger         *zap.Logger
	mCounter       *prometheus.CounterVec
}

func NewDeleteService(
	storage ports.FileStorage,
	fileRepository domain.Repository,
	mq ports.EventPublisher,
	logger *zap.Logger,
	mCounter *prometheus.CounterVec,
) ports.DeleteService {
	return &DeleteService{
		storage:        storage,
		fileRepository: fileRepository,
		mq:             mq,
		logger:         logger,
		mCounter:       mCounter,
	}
}

func (ds *DeleteService) Delete(ctx context.Context, id domain.ID) (*domain.FileInfo, error) {
	fi, err := ds.fileRepository.FetchFileInfo(ctx, id)
	if err != nil {
		return nil, err
	}

	if err = ds.remove(ctx, fi); err != nil {
		return nil, err
	}

	return fi, nil
}

// DeleteGroup removes TEMP and DONE records alike. It stops at the first
// failure and returns what was already removed alongside the error.
func (ds *DeleteService) DeleteGroup(ctx context.Context, key domain.Key) (domain.FileInfos, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}

	fis, err := ds.fileRepository.FetchFileInfos(ctx, key, domain.StatusAll)
	if err != nil {
		return nil, err
	}

	deleted := make(domain.FileInfos, 0, len(fis))
	for _, fi := range fis {
		err = ds.remove(ctx, fi)
		if errors.Is(err, domain.ErrNotFound) {
			// a concurrent delete got there first
			continue
		}
		if err != nil {
			return deleted, err
		}
		deleted = append(deleted, fi)
	}

	return deleted, nil
}

// remove deletes the physical file before the row. A file that is already
// gone counts as removed; any other failure keeps the row.
func (ds *DeleteService) remove(ctx context.Context, fi *domain.FileInfo) error {
	if err := ds.storage.Remove(fi.RelativePath); err != nil {
		ds.mCounter.WithLabelValues("file_deletes_failed_total").Inc()
		return fmt.Errorf("%w: remove %s: %w", domain.ErrStorageWrite, fi.RelativePath, err)
	}
	if err := ds.storage.PurgeThumbs(fi.ID); err != nil {
		ds.logger.Warn("purge thumbnails", zap.Int64("id", int64(fi.ID)), zap.Error(err))
	}

	if err := ds.fileRepository.DeleteFileInfo(ctx, fi.ID); err != nil {
		return err
	}

	payload := file_info.ToResponseFileInfo(*fi, "")
	ds.mq.Publish(mq.NewEvent(mq.ActionDeleted, int64(fi.ID), fi.GroupID, fi.Location, &payload))
	ds.mCounter.WithLabelValues("files_deleted_total").Inc()

	return nil
}
