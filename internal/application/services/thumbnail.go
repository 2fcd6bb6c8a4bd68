package services

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"file-manager-api/config"
	"file-manager-api/internal/application/ports"
	domain "file-manager-api/internal/domain/file_info"
)

const (
	ThumbModeFit     = "fit"
	ThumbModeCrop    = "crop"
	ThumbModeStretch = "stretch"

	defaultThumbExt = ".png"
	// remote sources larger than this fail to decode
	maxFetchBytes = 32 << 20
)

type ThumbnailService struct {
	storage        ports.FileStorage
	fileRepository domain.Repository
	client         *http.Client
	urlHosts       []string
	allowPrivate   bool
	maxDim         int
	logger         *zap.Logger
	mCounter       *prometheus.CounterVec
}

func NewThumbnailService(
	storage ports.FileStorage,
	fileRepository domain.Repository,
	cfg config.FILE,
	logger *zap.Logger,
	mCounter *prometheus.CounterVec,
) ports.ThumbnailService {
	return &ThumbnailService{
		storage:        storage,
		fileRepository: fileRepository,
		client:         newFetchClient(cfg.FetchTimeout, cfg.ThumbURLAllowPrivate),
		urlHosts:       cfg.ThumbURLHosts,
		allowPrivate:   cfg.ThumbURLAllowPrivate,
		maxDim:         cfg.ThumbMaxDim,
		logger:         logger,
		mCounter:       mCounter,
	}
}

// Thumbnail returns the path of a rendered derivative, or "" when the source
// is not an image or the group holds no committed file.
func (ts *ThumbnailService) Thumbnail(ctx context.Context, req ports.ThumbnailRequest) (string, error) {
	mode, err := ts.validate(req)
	if err != nil {
		return "", err
	}

	if req.URL != "" {
		return ts.fromURL(ctx, req.URL, req.Width, req.Height, mode)
	}

	fi, err := ts.source(ctx, req)
	if err != nil || fi == nil {
		return "", err
	}
	if !fi.IsImage {
		return "", nil
	}

	src, err := ts.storage.Stat(fi.RelativePath)
	if err != nil {
		return "", fmt.Errorf("%w: stat %s: %w", domain.ErrStorageRead, fi.RelativePath, err)
	}

	dst := ts.storage.ThumbPath(fi.ID, req.Width, req.Height, mode, thumbExt(fi.Extension))
	if fresh(dst, src.ModTime()) {
		ts.mCounter.WithLabelValues("thumbnail_cache_hits_total").Inc()
		return dst, nil
	}

	f, err := ts.storage.Open(fi.RelativePath)
	if err != nil {
		return "", fmt.Errorf("%w: open %s: %w", domain.ErrStorageRead, fi.RelativePath, err)
	}
	defer f.Close()

	if err = ts.render(f, dst, req.Width, req.Height, mode); err != nil {
		return "", err
	}

	return dst, nil
}

func (ts *ThumbnailService) validate(req ports.ThumbnailRequest) (string, error) {
	sources := 0
	if req.ID > 0 {
		sources++
	}
	if req.URL != "" {
		sources++
	}
	if req.Key.GroupID != "" {
		sources++
	}
	if sources != 1 {
		return "", fmt.Errorf("%w: exactly one of id, gid or url is required", domain.ErrInvalidInput)
	}

	if req.Width < 1 || req.Width > ts.maxDim || req.Height < 1 || req.Height > ts.maxDim {
		return "", fmt.Errorf("%w: width and height must be within 1..%d", domain.ErrInvalidInput, ts.maxDim)
	}

	switch mode := strings.ToLower(req.Mode); mode {
	case "":
		return ThumbModeFit, nil
	case ThumbModeFit, ThumbModeCrop, ThumbModeStretch:
		return mode, nil
	default:
		return "", fmt.Errorf("%w: unknown mode %q", domain.ErrInvalidInput, req.Mode)
	}
}

// source resolves the record behind req; a group resolves to its first
// committed file, and an empty group to nil.
func (ts *ThumbnailService) source(ctx context.Context, req ports.ThumbnailRequest) (*domain.FileInfo, error) {
	if req.ID > 0 {
		return ts.fileRepository.FetchFileInfo(ctx, req.ID)
	}

	fis, err := ts.fileRepository.FetchFileInfos(ctx, req.Key, domain.StatusDone)
	if err != nil {
		return nil, err
	}
	if len(fis) == 0 {
		return nil, nil
	}

	return fis[0], nil
}

func (ts *ThumbnailService) fromURL(ctx context.Context, rawURL string, width, height int, mode string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("%w: url must be absolute http(s)", domain.ErrInvalidInput)
	}
	if err = checkSourceURL(u, ts.urlHosts, ts.allowPrivate); err != nil {
		return "", err
	}

	dst := ts.storage.URLThumbPath(rawURL, width, height, mode, thumbExt(strings.ToLower(path.Ext(u.Path))))
	// remote sources carry no mtime; an existing derivative is always reused
	if _, err = os.Stat(dst); err == nil {
		ts.mCounter.WithLabelValues("thumbnail_cache_hits_total").Inc()
		return dst, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}
	resp, err := ts.client.Do(req)
	if errors.Is(err, errForbiddenAddr) {
		return "", fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}
	if err != nil {
		return "", fmt.Errorf("%w: fetch %s: %w", domain.ErrStorageRead, rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: fetch %s: status %d", domain.ErrStorageRead, rawURL, resp.StatusCode)
	}

	if err = ts.render(io.LimitReader(resp.Body, maxFetchBytes), dst, width, height, mode); err != nil {
		return "", err
	}

	return dst, nil
}

// render decodes src and writes the derivative through a temp file, so a
// concurrent reader of dst never sees a partial image.
func (ts *ThumbnailService) render(src io.Reader, dst string, width, height int, mode string) error {
	img, err := imaging.Decode(src, imaging.AutoOrientation(true))
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrDecode, err)
	}

	out := resize(img, width, height, mode)

	format, err := imaging.FormatFromFilename(dst)
	if err != nil {
		format = imaging.PNG
	}
	if err = ts.storage.WriteAtomic(dst, func(w io.Writer) error {
		return imaging.Encode(w, out, format)
	}); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrStorageWrite, err)
	}

	ts.mCounter.WithLabelValues("thumbnail_renders_total").Inc()
	ts.logger.Debug("thumbnail rendered", zap.String("path", dst))

	return nil
}

func resize(img image.Image, width, height int, mode string) image.Image {
	switch mode {
	case ThumbModeCrop:
		return imaging.Fill(img, width, height, imaging.Center, imaging.Lanczos)
	case ThumbModeStretch:
		return imaging.Resize(img, width, height, imaging.Lanczos)
	default:
		return imaging.Fit(img, width, height, imaging.Lanczos)
	}
}

// thumbExt keeps the source format when imaging can encode it.
func thumbExt(ext string) string {
	if _, err := imaging.FormatFromExtension(ext); err != nil {
		return defaultThumbExt
	}
	return ext
}

// fresh reports whether the derivative at p exists and is not older than the
// source. Equal mtimes count as fresh: stored files are never rewritten under
// the same name, and on filesystems with second granularity a derivative
// rendered right after upload shares its source's mtime.
func fresh(p string, srcMod time.Time) bool {
	st, err := os.Stat(p)
	if err != nil {
		return false
	}
	return !st.ModTime().Before(srcMod)
}
