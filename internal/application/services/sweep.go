package services

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"file-manager-api/internal/application/ports"
	domain "file-manager-api/internal/domain/file_info"
)

// SweepService reaps TEMP records that were never committed nor deleted.
type SweepService struct {
	fileRepository domain.Repository
	deleteService  ports.DeleteService
	logger         *zap.Logger
	mCounter       *prometheus.CounterVec
}

func NewSweepService(
	fileRepository domain.Repository,
	deleteService ports.DeleteService,
	logger *zap.Logger,
	mCounter *prometheus.CounterVec,
) ports.SweepService {
	return &SweepService{
		fileRepository: fileRepository,
		deleteService:  deleteService,
		logger:         logger,
		mCounter:       mCounter,
	}
}

// Sweep deletes TEMP records created more than olderThan ago and returns how
// many went away. Records removed concurrently are skipped.
func (ss *SweepService) Sweep(ctx context.Context, olderThan time.Duration) (int, error) {
	stale, err := ss.fileRepository.FetchStaleTemp(ctx, time.Now().Add(-olderThan))
	if err != nil {
		return 0, err
	}

	swept := 0
	for _, fi := range stale {
		if err = ctx.Err(); err != nil {
			return swept, err
		}
		if _, err = ss.deleteService.Delete(ctx, fi.ID); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			return swept, err
		}
		swept++
	}

	ss.mCounter.WithLabelValues("temp_files_swept_total").Add(float64(swept))

	return swept, nil
}

// Run sweeps every interval until ctx is done.
func (ss *SweepService) Run(ctx context.Context, interval, olderThan time.Duration) {
	ss.logger.Info("starting temp sweeper",
		zap.Duration("interval", interval),
		zap.Duration("older_than", olderThan),
	)

	defer func() {
		ss.logger.Info("temp sweeper gracefully stopped")
	}()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			n, err := ss.Sweep(ctx, olderThan)
			if err != nil && !errors.Is(err, context.Canceled) {
				ss.logger.Error("temp sweep error", zap.Int("swept", n), zap.Error(err))
				continue
			}
			if n > 0 {
				ss.logger.Info("temp files swept", zap.Int("swept", n))
			}
		case <-ctx.Done():
			return
		}
	}
}
