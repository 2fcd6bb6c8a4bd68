package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"file-manager-api/internal/application/ports"
	domain "file-manager-api/internal/domain/file_info"
	"file-manager-api/internal/infrastructure/mq"
	"file-manager-api/internal/interface/api/rest/dto/file_info"
	"file-manager-api/pkg/filename"
)

// enough for every signature mimetype knows about
const sniffLen = 3072

// decodable by imaging; anything else is stored as a plain file
var rasterMimes = map[string]struct{}{
	"image/jpeg": {},
	"image/png":  {},
	"image/gif":  {},
	"image/bmp":  {},
	"image/tiff": {},
}

type UploadService struct {
	storage        ports.FileStorage
	fileRepository domain.Repository
	deleteService  ports.DeleteService
	doneService    ports.DoneService
	mq             ports.EventPublisher
	logger         *zap.Logger
	mCounter       *prometheus.CounterVec
}

func NewUploadService(
	storage ports.FileStorage,
	fileRepository domain.Repository,
	deleteService ports.DeleteService,
	doneService ports.DoneService,
	mq ports.EventPublisher,
	logger *zap.Logger,
	mCounter *prometheus.CounterVec,
) ports.UploadService {
	return &UploadService{
		storage:        storage,
		fileRepository: fileRepository,
		deleteService:  deleteService,
		doneService:    doneService,
		mq:             mq,
		logger:         logger,
		mCounter:       mCounter,
	}
}

type pendingFile struct {
	name string
	head []byte
	rest io.Reader
	mime *mimetype.MIME
}

func (us *UploadService) Upload(ctx context.Context, req ports.UploadRequest) (domain.FileInfos, error) {
	if err := req.Key.Validate(); err != nil {
		return nil, err
	}
	if len(req.Files) == 0 {
		return nil, fmt.Errorf("%w: at least one file is required", domain.ErrInvalidInput)
	}
	// a single group holds one file per key, so replacing it with several is refused
	if req.Single && len(req.Files) > 1 {
		return nil, fmt.Errorf("%w: single upload takes exactly one file, got %d", domain.ErrInvalidInput, len(req.Files))
	}

	// every stream is checked before anything is deleted or written
	pending := make([]pendingFile, 0, len(req.Files))
	for _, f := range req.Files {
		p, err := sniff(f)
		if err != nil {
			return nil, err
		}
		pending = append(pending, p)
	}

	if req.Single {
		if _, err := us.deleteService.DeleteGroup(ctx, req.Key); err != nil {
			return nil, err
		}
	}

	created := make(domain.FileInfos, 0, len(pending))
	for i, p := range pending {
		fi, err := us.store(ctx, req.Key, i, p)
		if err != nil {
			us.rollback(created)
			us.mCounter.WithLabelValues("file_uploads_failed_total").Inc()
			return nil, err
		}
		created = append(created, fi)
	}

	if req.Done {
		if err := us.doneService.Commit(ctx, req.Key); err != nil {
			us.rollback(created)
			us.mCounter.WithLabelValues("file_uploads_failed_total").Inc()
			return nil, err
		}
		for _, fi := range created {
			fi.Status = domain.StatusDone
		}
	}

	for _, fi := range created {
		fi.URL = us.storage.GetPublicURL(fi.RelativePath)
		payload := file_info.ToResponseFileInfo(*fi, "")
		us.mq.Publish(mq.NewEvent(mq.ActionUploaded, int64(fi.ID), fi.GroupID, fi.Location, &payload))
	}

	us.mCounter.WithLabelValues("files_uploaded_total").Add(float64(len(created)))

	return created, nil
}

// sniff reads the head of the stream to reject empty uploads and detect the
// content type without trusting the client.
func sniff(f ports.UploadFile) (pendingFile, error) {
	if f.Reader == nil {
		return pendingFile{}, fmt.Errorf("%w: %s: no content", domain.ErrInvalidInput, f.Name)
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(f.Reader, head)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return pendingFile{}, fmt.Errorf("%w: read %s: %w", domain.ErrStorageWrite, f.Name, err)
	}
	if n == 0 {
		return pendingFile{}, fmt.Errorf("%w: %s is empty", domain.ErrInvalidInput, f.Name)
	}
	head = head[:n]

	return pendingFile{
		name: f.Name,
		head: head,
		rest: f.Reader,
		mime: mimetype.Detect(head),
	}, nil
}

func (us *UploadService) store(ctx context.Context, key domain.Key, order int, p pendingFile) (*domain.FileInfo, error) {
	ext := filename.Ext(p.name)
	if ext == "" {
		ext = p.mime.Extension()
	}
	storedName := us.storage.NewStoredName(ext)
	relPath := us.storage.RelativePath(storedName)

	// bytes on disk first, metadata second
	size, err := us.storage.Save(relPath, io.MultiReader(bytes.NewReader(p.head), p.rest))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrStorageWrite, err)
	}

	mimeType := p.mime.String()
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = mimeType[:i]
	}
	_, isImage := rasterMimes[mimeType]

	fi, err := us.fileRepository.CreateFileInfo(ctx, &domain.FileInfo{
		GroupID:      key.GroupID,
		Location:     key.Location,
		Order:        order,
		OriginalName: filename.Clean(p.name),
		StoredName:   storedName,
		RelativePath: relPath,
		Extension:    ext,
		MimeType:     mimeType,
		IsImage:      isImage,
		SizeBytes:    size,
	})
	if err != nil {
		if rmErr := us.storage.Remove(relPath); rmErr != nil {
			us.logger.Error("remove orphaned upload", zap.String("path", relPath), zap.Error(rmErr))
		}
		if errors.Is(err, domain.ErrInvalidInput) {
			return nil, fmt.Errorf("create record for %s: %w", p.name, err)
		}
		return nil, fmt.Errorf("%w: create record for %s: %w", domain.ErrStorageWrite, p.name, err)
	}

	return fi, nil
}

// rollback is best effort: it runs on a fresh context so a cancelled
// request still gets its partial writes removed.
func (us *UploadService) rollback(created domain.FileInfos) {
	ctx := context.Background()
	for _, fi := range created {
		if err := us.storage.Remove(fi.RelativePath); err != nil {
			us.logger.Error("rollback: remove file", zap.Int64("id", int64(fi.ID)), zap.Error(err))
			continue
		}
		if err := us.fileRepository.DeleteFileInfo(ctx, fi.ID); err != nil && !errors.Is(err, domain.ErrNotFound) {
			us.logger.Error("rollback: delete record", zap.Int64("id", int64(fi.ID)), zap.Error(err))
		}
	}
}
