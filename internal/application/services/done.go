package services

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"file-manager-api/internal/application/ports"
	domain "file-manager-api/internal/domain/file_info"
	"file-manager-api/internal/infrastructure/mq"
)

type DoneService struct {
	fileRepository domain.Repository
	mq             ports.EventPublisher
	logger         *zap.Logger
	mCounter       *prometheus.CounterVec
}

func NewDoneService(
	fileRepository domain.Repository,
	mq ports.EventPublisher,
	logger *zap.Logger,
	mCounter *prometheus.CounterVec,
) ports.DoneService {
	return &DoneService{
		fileRepository: fileRepository,
		mq:             mq,
		logger:         logger,
		mCounter:       mCounter,
	}
}

// Commit flips every TEMP record of key to DONE in one statement. A key
// without TEMP records is a no-op.
func (ds *DoneService) Commit(ctx context.Context, key domain.Key) error {
	if err := key.Validate(); err != nil {
		return err
	}

	ids, err := ds.fileRepository.CommitFileInfos(ctx, key)
	if err != nil {
		return err
	}

	for _, id := range ids {
		ds.mq.Publish(mq.NewEvent(mq.ActionCommitted, int64(id), key.GroupID, key.Location, nil))
	}
	if len(ids) > 0 {
		ds.logger.Debug("group committed",
			zap.String("gid", key.GroupID),
			zap.String("location", key.Location),
			zap.Int("files", len(ids)),
		)
	}

	ds.mCounter.WithLabelValues("files_committed_total").Add(float64(len(ids)))

	return nil
}
