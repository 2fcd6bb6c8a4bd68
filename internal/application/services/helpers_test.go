package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/color"
	"io/fs"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"file-manager-api/config"
	"file-manager-api/internal/application/ports"
	domain "file-manager-api/internal/domain/file_info"
	"file-manager-api/internal/infrastructure/disk"
	"file-manager-api/internal/infrastructure/mq"
)

// memRepository mirrors the postgres repository semantics in memory.
type memRepository struct {
	mu            sync.Mutex
	nextID        domain.ID
	records       map[domain.ID]*domain.FileInfo
	creates       int
	failCreateAt  int
	failCreateErr error
}

func newMemRepository() *memRepository {
	return &memRepository{records: map[domain.ID]*domain.FileInfo{}}
}

func (m *memRepository) CreateFileInfo(_ context.Context, req *domain.FileInfo) (*domain.FileInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.creates++
	if m.failCreateAt > 0 && m.creates == m.failCreateAt {
		if m.failCreateErr != nil {
			return nil, m.failCreateErr
		}
		return nil, errors.New("db is down")
	}

	m.nextID++
	fi := *req
	fi.ID = m.nextID
	fi.Status = domain.StatusTemp
	fi.CreatedAt = time.Now()
	fi.UpdatedAt = fi.CreatedAt
	m.records[fi.ID] = &fi

	out := fi
	return &out, nil
}

func (m *memRepository) FetchFileInfo(_ context.Context, id domain.ID) (*domain.FileInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	fi, ok := m.records[id]
	if !ok {
		return nil, fmt.Errorf("file info %d: %w", id, domain.ErrNotFound)
	}
	out := *fi
	return &out, nil
}

func (m *memRepository) FetchFileInfos(_ context.Context, key domain.Key, status domain.Status) (domain.FileInfos, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out domain.FileInfos
	for _, fi := range m.records {
		if fi.GroupID != key.GroupID {
			continue
		}
		if key.Location != "" && fi.Location != key.Location {
			continue
		}
		if !status.Matches(fi.Status) {
			continue
		}
		cp := *fi
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Order != out[j].Order {
			return out[i].Order < out[j].Order
		}
		return out[i].ID < out[j].ID
	})

	return out, nil
}

func (m *memRepository) FetchStaleTemp(_ context.Context, before time.Time) (domain.FileInfos, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out domain.FileInfos
	for _, fi := range m.records {
		if fi.Status == domain.StatusTemp && fi.CreatedAt.Before(before) {
			cp := *fi
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memRepository) CommitFileInfos(_ context.Context, key domain.Key) ([]domain.ID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var ids []domain.ID
	for id, fi := range m.records {
		if fi.GroupID != key.GroupID || (key.Location != "" && fi.Location != key.Location) {
			continue
		}
		if fi.Status == domain.StatusTemp {
			fi.Status = domain.StatusDone
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	return ids, nil
}

func (m *memRepository) DeleteFileInfo(_ context.Context, id domain.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.records[id]; !ok {
		return fmt.Errorf("file info %d: %w", id, domain.ErrNotFound)
	}
	delete(m.records, id)
	return nil
}

func (m *memRepository) age(id domain.ID, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[id].CreatedAt = m.records[id].CreatedAt.Add(-d)
}

type fakePublisher struct {
	mu     sync.Mutex
	events []mq.Event
}

func (p *fakePublisher) Publish(e mq.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func (p *fakePublisher) count(action string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e.Action == action {
			n++
		}
	}
	return n
}

type testEnv struct {
	root     string
	storage  *disk.Client
	repo     *memRepository
	pub      *fakePublisher
	mCounter *prometheus.CounterVec

	upload   ports.UploadService
	del      ports.DeleteService
	done     ports.DoneService
	info     ports.InfoService
	download ports.DownloadService
	thumb    ports.ThumbnailService
	sweep    ports.SweepService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	root := t.TempDir()
	cfg := config.FILE{
		UploadPath:   root,
		UploadURL:    "/uploads/",
		ThumbMaxDim:  500,
		FetchTimeout: 5 * time.Second,
	}
	logger := zap.NewNop()

	storage, err := disk.New(logger, cfg)
	require.NoError(t, err)

	repo := newMemRepository()
	pub := &fakePublisher{}
	mCounter := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "test_counters"}, []string{"result"})

	del := NewDeleteService(storage, repo, pub, logger, mCounter)
	done := NewDoneService(repo, pub, logger, mCounter)

	return &testEnv{
		root:     root,
		storage:  storage,
		repo:     repo,
		pub:      pub,
		mCounter: mCounter,
		upload:   NewUploadService(storage, repo, del, done, pub, logger, mCounter),
		del:      del,
		done:     done,
		info:     NewInfoService(storage, repo),
		download: NewDownloadService(storage, repo),
		thumb:    NewThumbnailService(storage, repo, cfg, logger, mCounter),
		sweep:    NewSweepService(repo, del, logger, mCounter),
	}
}

// urlThumbs builds a thumbnail service over the same storage with its own
// remote source settings.
func (e *testEnv) urlThumbs(cfg config.FILE) ports.ThumbnailService {
	cfg.ThumbMaxDim = 500
	cfg.FetchTimeout = 5 * time.Second
	return NewThumbnailService(e.storage, e.repo, cfg, zap.NewNop(), e.mCounter)
}

type namedBytes struct {
	name string
	data []byte
}

func (e *testEnv) mustUpload(t *testing.T, key domain.Key, single, done bool, files ...namedBytes) domain.FileInfos {
	t.Helper()

	req := ports.UploadRequest{Key: key, Single: single, Done: done}
	for _, f := range files {
		req.Files = append(req.Files, ports.UploadFile{Name: f.name, Reader: bytes.NewReader(f.data)})
	}
	fis, err := e.upload.Upload(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, fis, len(files))

	return fis
}

// storedFiles counts regular files under root, thumbnails excluded.
func (e *testEnv) storedFiles(t *testing.T) int {
	t.Helper()

	n := 0
	err := filepath.WalkDir(e.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() && d.Name() == "thumbs" {
			return filepath.SkipDir
		}
		if !d.IsDir() {
			n++
		}
		return nil
	})
	require.NoError(t, err)

	return n
}

func pngBytes(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, imaging.New(w, h, c), imaging.PNG))
	return buf.Bytes()
}
