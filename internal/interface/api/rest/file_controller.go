package rest

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"file-manager-api/config"
	"file-manager-api/internal/application/ports"
	domain "file-manager-api/internal/domain/file_info"
	"file-manager-api/internal/infrastructure/disk"
	"file-manager-api/internal/infrastructure/jwt"
	"file-manager-api/internal/interface/api/rest/dto/file_info"
	"file-manager-api/internal/interface/api/rest/middleware"
	"file-manager-api/internal/interface/api/rest/validator"
	"file-manager-api/pkg/filename"
)

type FileServices struct {
	Upload    ports.UploadService
	Delete    ports.DeleteService
	Done      ports.DoneService
	Info      ports.InfoService
	Download  ports.DownloadService
	Thumbnail ports.ThumbnailService
	Sweep     ports.SweepService
}

type FileController struct {
	services FileServices
	cfg      config.FILE
	logger   *zap.Logger
}

func NewFileController(
	r *gin.Engine,
	services FileServices,
	cfg config.FILE,
	logger *zap.Logger,
	jwtService *jwt.Service,
) *FileController {
	fc := &FileController{
		services: services,
		cfg:      cfg,
		logger:   logger,
	}

	auth := middleware.AuthMiddleware(jwtService, jwt.ScopeWrite)

	r.GET(RouteDownload, fc.DownloadHandler)
	r.GET(RouteInfo, fc.InfoHandler)
	r.GET(RouteList, fc.ListHandler)
	r.GET(RouteListLocation, fc.ListHandler)
	r.GET(RouteThumb, remoteSourceAuth(auth), fc.ThumbnailHandler)

	r.POST(RouteUpload, auth, fc.UploadHandler)
	r.DELETE(RouteDelete, auth, fc.DeleteHandler)
	r.DELETE(RouteDeleteGroup, auth, fc.DeleteGroupHandler)
	r.DELETE(RouteDeleteGroupLocate, auth, fc.DeleteGroupHandler)
	r.POST(RouteDone, auth, fc.DoneHandler)
	r.POST(RouteDoneLocation, auth, fc.DoneHandler)
	r.POST(RouteSweep, auth, fc.SweepHandler)

	// an absolute FILE_UPLOAD_URL is served by someone else
	if prefix, ok := localPrefix(cfg.UploadURL); ok {
		r.GET(prefix+"/*filepath", fc.PublicFileHandler)
		r.HEAD(prefix+"/*filepath", fc.PublicFileHandler)
	}

	return fc
}

// remoteSourceAuth guards thumbnails of remote URLs, which fetch and store
// content on the server. Stored-file thumbnails stay public.
func remoteSourceAuth(auth gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Query("url") == "" {
			c.Next()
			return
		}
		auth(c)
	}
}

func localPrefix(uploadURL string) (string, bool) {
	if !strings.HasPrefix(uploadURL, "/") || strings.HasPrefix(uploadURL, "//") {
		return "", false
	}
	prefix := strings.TrimSuffix(uploadURL, "/")
	return prefix, prefix != ""
}

// PublicFileHandler serves stored files at their public url. Thumbnail
// derivatives, dotfiles and directories are not exposed.
func (fc *FileController) PublicFileHandler(c *gin.Context) {
	rel := strings.TrimPrefix(path.Clean("/"+c.Param("filepath")), "/")
	first, _, _ := strings.Cut(rel, "/")
	if rel == "" || first == disk.ThumbsDir || strings.HasPrefix(rel, ".") || strings.Contains(rel, "/.") {
		c.JSON(http.StatusNotFound, gin.H{"error": "file not found"})
		return
	}

	full := filepath.Join(fc.cfg.UploadPath, filepath.FromSlash(rel))
	st, err := os.Stat(full)
	if err != nil || !st.Mode().IsRegular() {
		c.JSON(http.StatusNotFound, gin.H{"error": "file not found"})
		return
	}

	c.Header("X-Content-Type-Options", "nosniff")
	c.File(full)
}

func (fc *FileController) UploadHandler(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, fc.cfg.MaxUploadBytes)

	form, err := c.MultipartForm()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(
				http.StatusRequestEntityTooLarge,
				gin.H{"error": fmt.Sprintf("request exceeds %d bytes", fc.cfg.MaxUploadBytes)},
			)
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "multipart form is required"})
		return
	}
	defer form.RemoveAll()

	fhs := form.File["file"]
	if len(fhs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}

	files, closeAll, err := openAll(fhs)
	defer closeAll()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read uploaded file"})
		fc.logger.Error("open multipart file error", zap.Error(err))
		return
	}

	fis, err := fc.services.Upload.Upload(c.Request.Context(), ports.UploadRequest{
		Key: domain.Key{
			GroupID:  strings.TrimSpace(c.PostForm("gid")),
			Location: strings.TrimSpace(c.PostForm("location")),
		},
		Files:  files,
		Single: validator.ParseBool(c.PostForm("single")),
		Done:   validator.ParseBool(c.PostForm("done")),
	})
	if err != nil {
		fc.writeError(c, err, "Upload", "failed to upload files")
		return
	}

	c.JSON(http.StatusCreated, file_info.ResponseData{
		Data: file_info.ToResponseFileInfos(fis, RouteThumb),
	})
}

func openAll(fhs []*multipart.FileHeader) ([]ports.UploadFile, func(), error) {
	opened := make([]multipart.File, 0, len(fhs))
	closeAll := func() {
		for _, f := range opened {
			f.Close()
		}
	}

	files := make([]ports.UploadFile, 0, len(fhs))
	for _, fh := range fhs {
		f, err := fh.Open()
		if err != nil {
			return nil, closeAll, err
		}
		opened = append(opened, f)
		files = append(files, ports.UploadFile{Name: fh.Filename, Reader: f})
	}

	return files, closeAll, nil
}

func (fc *FileController) DownloadHandler(c *gin.Context) {
	id, err := validator.ParseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	dl, err := fc.services.Download.Download(c.Request.Context(), id)
	if err != nil {
		fc.writeError(c, err, "Download", "failed to download file")
		return
	}
	defer dl.Reader.Close()

	disposition := "attachment"
	if validator.ParseBool(c.Query("inline")) {
		disposition = "inline"
	}
	c.Header("Content-Type", dl.ContentType)
	c.Header("Content-Disposition", contentDisposition(disposition, dl.OriginalName))
	c.Header("X-Content-Type-Options", "nosniff")

	http.ServeContent(c.Writer, c.Request, dl.OriginalName, dl.ModTime, dl.Reader)
}

// contentDisposition carries an ASCII fallback plus the exact UTF-8 name.
func contentDisposition(disposition, name string) string {
	return fmt.Sprintf(`%s; filename="%s"; filename*=UTF-8''%s`,
		disposition,
		filename.Sanitize(name),
		strings.ReplaceAll(url.QueryEscape(name), "+", "%20"),
	)
}

func (fc *FileController) InfoHandler(c *gin.Context) {
	id, err := validator.ParseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	fi, err := fc.services.Info.Get(c.Request.Context(), id)
	if err != nil {
		fc.writeError(c, err, "Get", "failed to get file info")
		return
	}

	c.JSON(http.StatusOK, file_info.ToResponseFileInfo(*fi, RouteThumb))
}

func (fc *FileController) ListHandler(c *gin.Context) {
	status, err := validator.ParseStatus(c.Query("status"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	fis, err := fc.services.Info.List(c.Request.Context(), keyFromPath(c), status)
	if err != nil {
		fc.writeError(c, err, "List", "failed to list files")
		return
	}

	c.JSON(http.StatusOK, file_info.ResponseData{
		Data: file_info.ToResponseFileInfos(fis, RouteThumb),
	})
}

func (fc *FileController) DeleteHandler(c *gin.Context) {
	id, err := validator.ParseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	fi, err := fc.services.Delete.Delete(c.Request.Context(), id)
	if err != nil {
		fc.writeError(c, err, "Delete", "failed to delete file")
		return
	}

	c.JSON(http.StatusOK, file_info.ToResponseFileInfo(*fi, ""))
}

func (fc *FileController) DeleteGroupHandler(c *gin.Context) {
	fis, err := fc.services.Delete.DeleteGroup(c.Request.Context(), keyFromPath(c))
	if err != nil {
		fc.writeError(c, err, "DeleteGroup", "failed to delete files")
		return
	}

	c.JSON(http.StatusOK, file_info.ResponseData{
		Data: file_info.ToResponseFileInfos(fis, ""),
	})
}

func (fc *FileController) DoneHandler(c *gin.Context) {
	if err := fc.services.Done.Commit(c.Request.Context(), keyFromPath(c)); err != nil {
		fc.writeError(c, err, "Commit", "failed to commit files")
		return
	}

	c.Status(http.StatusNoContent)
}

func (fc *FileController) ThumbnailHandler(c *gin.Context) {
	id, err := validator.ParseOptionalID(c.Query("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	width, err := validator.ParseDim("width", c.Query("width"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	height, err := validator.ParseDim("height", c.Query("height"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	p, err := fc.services.Thumbnail.Thumbnail(c.Request.Context(), ports.ThumbnailRequest{
		ID:     id,
		Key:    domain.Key{GroupID: c.Query("gid"), Location: c.Query("location")},
		URL:    c.Query("url"),
		Width:  width,
		Height: height,
		Mode:   c.Query("mode"),
	})
	if err != nil {
		fc.writeError(c, err, "Thumbnail", "failed to create thumbnail")
		return
	}
	if p == "" {
		c.Status(http.StatusNoContent)
		return
	}

	c.Header("Cache-Control", "public, max-age=86400")
	c.File(p)
}

func (fc *FileController) SweepHandler(c *gin.Context) {
	olderThan, err := validator.ParseDuration(c.Query("older_than"), fc.cfg.SweepTTL)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	n, err := fc.services.Sweep.Sweep(c.Request.Context(), olderThan)
	if err != nil {
		fc.writeError(c, err, "Sweep", "failed to sweep temp files")
		return
	}

	c.JSON(http.StatusOK, gin.H{"swept": n})
}

func keyFromPath(c *gin.Context) domain.Key {
	return domain.Key{
		GroupID:  strings.TrimSpace(c.Param("gid")),
		Location: strings.TrimSpace(c.Param("location")),
	}
}

// writeError maps domain errors to status codes; only unexpected ones are logged as errors.
func (fc *FileController) writeError(c *gin.Context, err error, op, failMsg string) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "file not found"})
	case errors.Is(err, domain.ErrStorageRead):
		c.JSON(http.StatusGone, gin.H{"error": "backing file missing"})
		fc.logger.Warn(op+"() storage drift", zap.Error(err))
	case errors.Is(err, domain.ErrDecode):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "source is not a valid image"})
	default:
		c.JSON(
			http.StatusInternalServerError,
			gin.H{"error": failMsg},
		)
		fc.logger.Error(op+"() error", zap.Error(err))
	}
}
