package disk

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"file-manager-api/config"
	"file-manager-api/internal/domain/file_info"
)

// ThumbsDir holds every derivative under the storage root.
const ThumbsDir = "thumbs"

const (
	urlThumbsDir  = "urls"
	thumbFolders  = 10
	dirPerm       = 0o750
	shardNameSize = 2
)

// Client resolves storage paths and public URLs and owns every write under root.
type Client struct {
	root    string
	baseURL string
}

func New(logger *zap.Logger, cfg config.FILE) (*Client, error) {
	root, err := filepath.Abs(cfg.UploadPath)
	if err != nil {
		return nil, fmt.Errorf("resolve upload path: %w", err)
	}
	if err = os.MkdirAll(root, dirPerm); err != nil {
		return nil, fmt.Errorf("create upload path %s: %w", root, err)
	}

	baseURL := cfg.UploadURL
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}

	logger.Info("file storage ready", zap.String("root", root), zap.String("base_url", baseURL))

	return &Client{
		root:    root,
		baseURL: baseURL,
	}, nil
}

// NewStoredName returns a globally unique on-disk name keeping ext.
func (c *Client) NewStoredName(ext string) string {
	return strings.ReplaceAll(uuid.NewString(), "-", "") + ext
}

// RelativePath shards stored names into 256 directories by their first two hex chars.
func (c *Client) RelativePath(storedName string) string {
	if len(storedName) <= shardNameSize {
		return storedName
	}
	return path.Join(storedName[:shardNameSize], storedName)
}

func (c *Client) GetPublicURL(relativePath string) string {
	return c.baseURL + relativePath
}

// FullPath never escapes root, whatever relativePath contains.
func (c *Client) FullPath(relativePath string) string {
	return filepath.Join(c.root, filepath.FromSlash(path.Clean("/"+relativePath)))
}

// Save streams r into relativePath through a temp file and renames it into
// place. A failing reader leaves nothing behind.
func (c *Client) Save(relativePath string, r io.Reader) (int64, error) {
	var size int64
	err := c.WriteAtomic(c.FullPath(relativePath), func(w io.Writer) error {
		var err error
		size, err = io.Copy(w, r)
		return err
	})
	if err != nil {
		return 0, err
	}

	return size, nil
}

// WriteAtomic lets write fill a temp file next to fullPath, then renames it
// over fullPath. Readers see either the previous file or the complete new one.
func (c *Client) WriteAtomic(fullPath string, write func(w io.Writer) error) error {
	dir := filepath.Dir(fullPath)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return fmt.Errorf("create dir %s: %w", dir, err)
	}

	f, err := os.CreateTemp(dir, "."+filepath.Base(fullPath)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := f.Name()

	if err = write(f); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write %s: %w", fullPath, err)
	}
	if err = f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("fsync %s: %w", fullPath, err)
	}
	if err = f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close %s: %w", fullPath, err)
	}
	if err = os.Rename(tmpPath, fullPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename %s: %w", fullPath, err)
	}

	return nil
}

func (c *Client) Open(relativePath string) (*os.File, error) {
	return os.Open(c.FullPath(relativePath))
}

func (c *Client) Stat(relativePath string) (fs.FileInfo, error) {
	return os.Stat(c.FullPath(relativePath))
}

// Remove treats an already absent file as removed.
func (c *Client) Remove(relativePath string) error {
	err := os.Remove(c.FullPath(relativePath))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (c *Client) thumbDir(id file_info.ID) string {
	folder := strconv.FormatInt(int64(id)%thumbFolders, 10)
	return filepath.Join(c.root, ThumbsDir, folder, strconv.FormatInt(int64(id), 10))
}

// ThumbPath is the derivative cache path for a stored file.
func (c *Client) ThumbPath(id file_info.ID, width, height int, mode, ext string) string {
	return filepath.Join(c.thumbDir(id), thumbName(width, height, mode, ext))
}

// URLThumbPath is the derivative cache path for a remote image.
func (c *Client) URLThumbPath(rawURL string, width, height int, mode, ext string) string {
	sum := sha256.Sum256([]byte(rawURL))
	return filepath.Join(c.root, ThumbsDir, urlThumbsDir, hex.EncodeToString(sum[:]), thumbName(width, height, mode, ext))
}

// PurgeThumbs drops every cached derivative of id.
func (c *Client) PurgeThumbs(id file_info.ID) error {
	return os.RemoveAll(c.thumbDir(id))
}

func thumbName(width, height int, mode, ext string) string {
	return fmt.Sprintf("%d_%d_%s%s", width, height, mode, ext)
}
