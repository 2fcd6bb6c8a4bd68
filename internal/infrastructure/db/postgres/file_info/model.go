package file_info

import (
	"time"
)

type (
	FileInfo struct {
		ID        int64
		GroupID   string
		Location  string
		SortOrder int

		OriginalName string
		StoredName   string
		RelativePath string
		Extension    string
		MimeType     string
		IsImage      bool
		SizeBytes    int64

		Status string

		CreatedAt time.Time
		UpdatedAt time.Time
	}
	FileInfos []*FileInfo
)
