package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"file-manager-api/config"
	"file-manager-api/internal/application/ports"
	domain "file-manager-api/internal/domain/file_info"
	jwtSvc "file-manager-api/internal/infrastructure/jwt"
)

const testSecret = "test-secret"

type FakeUploadService struct {
	UploadFunc func(ctx context.Context, req ports.UploadRequest) (domain.FileInfos, error)
}

func (f *FakeUploadService) Upload(ctx context.Context, req ports.UploadRequest) (domain.FileInfos, error) {
	if f.UploadFunc == nil {
		return nil, errors.New("not used")
	}
	return f.UploadFunc(ctx, req)
}

type FakeDeleteService struct {
	DeleteFunc      func(ctx context.Context, id domain.ID) (*domain.FileInfo, error)
	DeleteGroupFunc func(ctx context.Context, key domain.Key) (domain.FileInfos, error)
}

func (f *FakeDeleteService) Delete(ctx context.Context, id domain.ID) (*domain.FileInfo, error) {
	if f.DeleteFunc == nil {
		return nil, errors.New("not used")
	}
	return f.DeleteFunc(ctx, id)
}

func (f *FakeDeleteService) DeleteGroup(ctx context.Context, key domain.Key) (domain.FileInfos, error) {
	if f.DeleteGroupFunc == nil {
		return nil, errors.New("not used")
	}
	return f.DeleteGroupFunc(ctx, key)
}

type FakeDoneService struct {
	CommitFunc func(ctx context.Context, key domain.Key) error
}

func (f *FakeDoneService) Commit(ctx context.Context, key domain.Key) error {
	if f.CommitFunc == nil {
		return errors.New("not used")
	}
	return f.CommitFunc(ctx, key)
}

type FakeInfoService struct {
	GetFunc  func(ctx context.Context, id domain.ID) (*domain.FileInfo, error)
	ListFunc func(ctx context.Context, key domain.Key, status domain.Status) (domain.FileInfos, error)
}

func (f *FakeInfoService) Get(ctx context.Context, id domain.ID) (*domain.FileInfo, error) {
	if f.GetFunc == nil {
		return nil, errors.New("not used")
	}
	return f.GetFunc(ctx, id)
}

func (f *FakeInfoService) List(ctx context.Context, key domain.Key, status domain.Status) (domain.FileInfos, error) {
	if f.ListFunc == nil {
		return nil, errors.New("not used")
	}
	return f.ListFunc(ctx, key, status)
}

type FakeDownloadService struct {
	DownloadFunc func(ctx context.Context, id domain.ID) (*ports.Download, error)
}

func (f *FakeDownloadService) Download(ctx context.Context, id domain.ID) (*ports.Download, error) {
	if f.DownloadFunc == nil {
		return nil, errors.New("not used")
	}
	return f.DownloadFunc(ctx, id)
}

type FakeThumbnailService struct {
	ThumbnailFunc func(ctx context.Context, req ports.ThumbnailRequest) (string, error)
}

func (f *FakeThumbnailService) Thumbnail(ctx context.Context, req ports.ThumbnailRequest) (string, error) {
	if f.ThumbnailFunc == nil {
		return "", errors.New("not used")
	}
	return f.ThumbnailFunc(ctx, req)
}

type FakeSweepService struct {
	SweepFunc func(ctx context.Context, olderThan time.Duration) (int, error)
}

func (f *FakeSweepService) Sweep(ctx context.Context, olderThan time.Duration) (int, error) {
	if f.SweepFunc == nil {
		return 0, errors.New("not used")
	}
	return f.SweepFunc(ctx, olderThan)
}

func (f *FakeSweepService) Run(context.Context, time.Duration, time.Duration) {}

// fakeServices fills every slot the test left empty with an unused fake.
func fakeServices(s FileServices) FileServices {
	if s.Upload == nil {
		s.Upload = &FakeUploadService{}
	}
	if s.Delete == nil {
		s.Delete = &FakeDeleteService{}
	}
	if s.Done == nil {
		s.Done = &FakeDoneService{}
	}
	if s.Info == nil {
		s.Info = &FakeInfoService{}
	}
	if s.Download == nil {
		s.Download = &FakeDownloadService{}
	}
	if s.Thumbnail == nil {
		s.Thumbnail = &FakeThumbnailService{}
	}
	if s.Sweep == nil {
		s.Sweep = &FakeSweepService{}
	}
	return s
}

func setupRouterFC(t *testing.T, s FileServices) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	r := gin.New()
	cfg := config.FILE{MaxUploadBytes: 1 << 20, SweepTTL: 24 * time.Hour}
	NewFileController(r, fakeServices(s), cfg, zap.NewNop(), jwtSvc.New(testSecret))

	return r
}

func SignJWT(secret, clientID, scope string, exp time.Duration) (string, error) {
	type Claims struct {
		ClientID string `json:"client_id"`
		Scope    string `json:"scope"`
		jwtv5.RegisteredClaims
	}
	claims := Claims{
		ClientID: clientID,
		Scope:    scope,
		RegisteredClaims: jwtv5.RegisteredClaims{
			ExpiresAt: jwtv5.NewNumericDate(time.Now().Add(exp)),
		},
	}
	token := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func authHeader(t *testing.T, secret, scope string) map[string]string {
	t.Helper()
	tok, err := SignJWT(secret, "cms", scope, time.Hour)
	require.NoError(t, err)
	return map[string]string{"Authorization": "Bearer " + tok}
}

func doReq(t *testing.T, r *gin.Engine, method, path string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	req, err := http.NewRequest(method, path, nil)
	require.NoError(t, err)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

type formFile struct {
	name    string
	content []byte
}

func doMultipartReq(t *testing.T, r *gin.Engine, path string, fields map[string]string, files []formFile, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var b bytes.Buffer
	w := multipart.NewWriter(&b)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	for _, f := range files {
		fw, err := w.CreateFormFile("file", f.name)
		require.NoError(t, err)
		_, _ = fw.Write(f.content)
	}
	require.NoError(t, w.Close())

	req, err := http.NewRequest(http.MethodPost, path, &b)
	require.NoError(t, err)
	req.Header.Set("Content-Type", w.FormDataContentType())
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp
}

type nopReadSeekCloser struct {
	io.ReadSeeker
}

func (nopReadSeekCloser) Close() error { return nil }
