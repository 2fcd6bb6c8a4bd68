package ports

import (
	"io"
	"io/fs"
	"os"

	"file-manager-api/internal/domain/file_info"
)

type FileStorage interface {
	NewStoredName(ext string) string
	RelativePath(storedName string) string
	GetPublicURL(relativePath string) string
	FullPath(relativePath string) string
	Save(relativePath string, r io.Reader) (int64, error)
	WriteAtomic(fullPath string, write func(w io.Writer) error) error
	Open(relativePath string) (*os.File, error)
	Stat(relativePath string) (fs.FileInfo, error)
	Remove(relativePath string) error
	ThumbPath(id file_info.ID, width, height int, mode, ext string) string
	URLThumbPath(rawURL string, width, height int, mode, ext string) string
	PurgeThumbs(id file_info.ID) error
}
