package services

import (
	"bytes"
	"context"
	"image/color"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"file-manager-api/config"
	"file-manager-api/internal/application/ports"
	domain "file-manager-api/internal/domain/file_info"
)

func TestThumbnailService_Modes(t *testing.T) {
	env := newTestEnv(t)
	fis := env.mustUpload(t, domain.Key{GroupID: "img"}, false, true, namedBytes{"wide.png", pngBytes(t, 40, 20, color.White)})

	tests := []struct {
		mode  string
		wantW int
		wantH int
	}{
		{"", 10, 5},
		{"fit", 10, 5},
		{"crop", 10, 10},
		{"stretch", 10, 10},
		{"CROP", 10, 10},
	}

	for _, tt := range tests {
		tt := tt
		t.Run("mode "+tt.mode, func(t *testing.T) {
			p, err := env.thumb.Thumbnail(context.Background(), ports.ThumbnailRequest{
				ID: fis[0].ID, Width: 10, Height: 10, Mode: tt.mode,
			})
			require.NoError(t, err)

			img, err := imaging.Open(p)
			require.NoError(t, err)
			assert.Equal(t, tt.wantW, img.Bounds().Dx())
			assert.Equal(t, tt.wantH, img.Bounds().Dy())
		})
	}
}

func TestThumbnailService_CacheHitAndInvalidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	fis := env.mustUpload(t, domain.Key{GroupID: "img"}, false, true, namedBytes{"a.png", pngBytes(t, 30, 30, color.White)})
	req := ports.ThumbnailRequest{ID: fis[0].ID, Width: 16, Height: 16, Mode: ThumbModeFit}

	first, err := env.thumb.Thumbnail(ctx, req)
	require.NoError(t, err)
	firstBytes, err := os.ReadFile(first)
	require.NoError(t, err)

	second, err := env.thumb.Thumbnail(ctx, req)
	require.NoError(t, err)
	secondBytes, err := os.ReadFile(second)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, firstBytes, secondBytes)
	assert.Equal(t, float64(1), testutil.ToFloat64(env.mCounter.WithLabelValues("thumbnail_renders_total")))
	assert.Equal(t, float64(1), testutil.ToFloat64(env.mCounter.WithLabelValues("thumbnail_cache_hits_total")))

	// replace the source and make it strictly newer than the derivative
	_, err = env.storage.Save(fis[0].RelativePath, bytes.NewReader(pngBytes(t, 30, 30, color.Black)))
	require.NoError(t, err)
	future := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(env.storage.FullPath(fis[0].RelativePath), future, future))

	third, err := env.thumb.Thumbnail(ctx, req)
	require.NoError(t, err)
	thirdBytes, err := os.ReadFile(third)
	require.NoError(t, err)

	assert.Equal(t, first, third)
	assert.NotEqual(t, firstBytes, thirdBytes)
	assert.Equal(t, float64(2), testutil.ToFloat64(env.mCounter.WithLabelValues("thumbnail_renders_total")))
}

func Test_fresh(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "16_16_fit.png")
	require.NoError(t, os.WriteFile(p, []byte("x"), 0o600))
	mod := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, os.Chtimes(p, mod, mod))

	tests := []struct {
		name   string
		path   string
		srcMod time.Time
		want   bool
	}{
		{"derivative newer", p, mod.Add(-time.Second), true},
		{"same second", p, mod, true},
		{"source newer", p, mod.Add(time.Second), false},
		{"no derivative", filepath.Join(dir, "missing.png"), mod, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, fresh(tt.path, tt.srcMod))
		})
	}
}

func TestThumbnailService_ConcurrentSameKey(t *testing.T) {
	env := newTestEnv(t)
	fis := env.mustUpload(t, domain.Key{GroupID: "img"}, false, true, namedBytes{"a.png", pngBytes(t, 200, 120, color.White)})
	req := ports.ThumbnailRequest{ID: fis[0].ID, Width: 64, Height: 64, Mode: ThumbModeCrop}

	var g errgroup.Group
	for range 16 {
		g.Go(func() error {
			p, err := env.thumb.Thumbnail(context.Background(), req)
			if err != nil {
				return err
			}
			// every observed file decodes completely
			_, err = imaging.Open(p)
			return err
		})
	}
	require.NoError(t, g.Wait())
}

func TestThumbnailService_Absent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	doc := env.mustUpload(t, domain.Key{GroupID: "docs"}, false, true, namedBytes{"a.txt", []byte("text")})

	p, err := env.thumb.Thumbnail(ctx, ports.ThumbnailRequest{ID: doc[0].ID, Width: 10, Height: 10})
	require.NoError(t, err)
	assert.Empty(t, p, "non images have no thumbnail")

	p, err = env.thumb.Thumbnail(ctx, ports.ThumbnailRequest{Key: domain.Key{GroupID: "empty"}, Width: 10, Height: 10})
	require.NoError(t, err)
	assert.Empty(t, p)

	_, err = env.thumb.Thumbnail(ctx, ports.ThumbnailRequest{ID: 999, Width: 10, Height: 10})
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestThumbnailService_GroupSource(t *testing.T) {
	env := newTestEnv(t)
	key := domain.Key{GroupID: "gallery", Location: "cover"}
	fis := env.mustUpload(t, key, false, true,
		namedBytes{"first.png", pngBytes(t, 20, 20, color.White)},
		namedBytes{"second.png", pngBytes(t, 20, 20, color.Black)},
	)

	p, err := env.thumb.Thumbnail(context.Background(), ports.ThumbnailRequest{Key: key, Width: 8, Height: 8})
	require.NoError(t, err)
	assert.Equal(t, env.storage.ThumbPath(fis[0].ID, 8, 8, ThumbModeFit, ".png"), p)
}

func TestThumbnailService_InvalidInput(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		req  ports.ThumbnailRequest
	}{
		{"no source", ports.ThumbnailRequest{Width: 10, Height: 10}},
		{"two sources", ports.ThumbnailRequest{ID: 1, URL: "http://example.com/a.png", Width: 10, Height: 10}},
		{"zero width", ports.ThumbnailRequest{ID: 1, Width: 0, Height: 10}},
		{"negative height", ports.ThumbnailRequest{ID: 1, Width: 10, Height: -1}},
		{"too large", ports.ThumbnailRequest{ID: 1, Width: 501, Height: 10}},
		{"unknown mode", ports.ThumbnailRequest{ID: 1, Width: 10, Height: 10, Mode: "blur"}},
		{"relative url", ports.ThumbnailRequest{URL: "/a.png", Width: 10, Height: 10}},
		{"file url", ports.ThumbnailRequest{URL: "file:///etc/passwd", Width: 10, Height: 10}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.thumb.Thumbnail(context.Background(), tt.req)
			require.ErrorIs(t, err, domain.ErrInvalidInput)
		})
	}
}

func TestThumbnailService_DecodeAndReadFailures(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	fis := env.mustUpload(t, domain.Key{GroupID: "img"}, false, true, namedBytes{"a.png", pngBytes(t, 10, 10, color.White)})

	// corrupt the bytes behind an image record
	_, err := env.storage.Save(fis[0].RelativePath, bytes.NewReader([]byte("\x89PNG\r\n\x1a\nnot really")))
	require.NoError(t, err)

	_, err = env.thumb.Thumbnail(ctx, ports.ThumbnailRequest{ID: fis[0].ID, Width: 5, Height: 5})
	require.ErrorIs(t, err, domain.ErrDecode)

	require.NoError(t, env.storage.Remove(fis[0].RelativePath))
	_, err = env.thumb.Thumbnail(ctx, ports.ThumbnailRequest{ID: fis[0].ID, Width: 5, Height: 5})
	require.ErrorIs(t, err, domain.ErrStorageRead)
}

func TestThumbnailService_URLSource(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	img := pngBytes(t, 50, 50, color.White)

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path != "/a.png" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(img)
	}))
	defer srv.Close()

	thumb := env.urlThumbs(config.FILE{ThumbURLAllowPrivate: true})

	req := ports.ThumbnailRequest{URL: srv.URL + "/a.png", Width: 20, Height: 20}
	p1, err := thumb.Thumbnail(ctx, req)
	require.NoError(t, err)
	p2, err := thumb.Thumbnail(ctx, req)
	require.NoError(t, err)

	assert.Equal(t, p1, p2)
	assert.Equal(t, int32(1), hits.Load(), "second request is served from the derivative cache")

	out, err := imaging.Open(p1)
	require.NoError(t, err)
	assert.Equal(t, 20, out.Bounds().Dx())

	_, err = thumb.Thumbnail(ctx, ports.ThumbnailRequest{URL: srv.URL + "/missing.png", Width: 20, Height: 20})
	require.ErrorIs(t, err, domain.ErrStorageRead)
}

func TestThumbnailService_URLSourceRestricted(t *testing.T) {
	env := newTestEnv(t)
	img := pngBytes(t, 50, 50, color.White)

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write(img)
	}))
	defer srv.Close()
	_, port, _ := strings.Cut(srv.Listener.Addr().String(), ":")

	tests := []struct {
		name string
		cfg  config.FILE
		url  string
	}{
		{"loopback literal", config.FILE{}, srv.URL + "/internal/admin.png"},
		{"loopback by name", config.FILE{}, "http://localhost:" + port + "/a.png"},
		{"metadata endpoint", config.FILE{}, "http://169.254.169.254/latest/meta-data"},
		{"ipv6 loopback", config.FILE{}, "http://[::1]:" + port + "/a.png"},
		{"host not listed", config.FILE{ThumbURLHosts: []string{"images.example.com"}, ThumbURLAllowPrivate: true}, srv.URL + "/a.png"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.urlThumbs(tt.cfg).Thumbnail(context.Background(), ports.ThumbnailRequest{URL: tt.url, Width: 20, Height: 20})
			require.ErrorIs(t, err, domain.ErrInvalidInput)
		})
	}

	assert.Equal(t, int32(0), hits.Load(), "no request reaches a refused destination")
	assert.NoDirExists(t, filepath.Join(env.root, "thumbs", "urls"))
}

func TestThumbnailService_URLSourceListedHost(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(pngBytes(t, 30, 30, color.Black))
	}))
	defer srv.Close()

	thumb := env.urlThumbs(config.FILE{ThumbURLHosts: []string{"127.0.0.1"}, ThumbURLAllowPrivate: true})
	p, err := thumb.Thumbnail(context.Background(), ports.ThumbnailRequest{URL: srv.URL + "/a.png", Width: 10, Height: 10})
	require.NoError(t, err)
	assert.FileExists(t, p)
}

func Test_isPublic(t *testing.T) {
	tests := []struct {
		addr string
		want bool
	}{
		{"8.8.8.8", true},
		{"2606:4700:4700::1111", true},
		{"127.0.0.1", false},
		{"::1", false},
		{"10.1.2.3", false},
		{"172.16.0.1", false},
		{"192.168.1.1", false},
		{"169.254.169.254", false},
		{"fe80::1", false},
		{"fd00::1", false},
		{"0.0.0.0", false},
		{"::ffff:127.0.0.1", false},
	}

	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			assert.Equal(t, tt.want, isPublic(netip.MustParseAddr(tt.addr)))
		})
	}
}

func TestThumbnailService_PurgedOnDelete(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	fis := env.mustUpload(t, domain.Key{GroupID: "img"}, false, true, namedBytes{"a.png", pngBytes(t, 10, 10, color.White)})

	p, err := env.thumb.Thumbnail(ctx, ports.ThumbnailRequest{ID: fis[0].ID, Width: 5, Height: 5})
	require.NoError(t, err)

	_, err = env.del.Delete(ctx, fis[0].ID)
	require.NoError(t, err)

	_, err = os.Stat(p)
	assert.True(t, os.IsNotExist(err))
}
