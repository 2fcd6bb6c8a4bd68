package file_info

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// MaxKeyLen bounds gid and location, matching the file_infos columns.
const MaxKeyLen = 65

const (
	StatusTemp Status = "TEMP"
	StatusDone Status = "DONE"
	// StatusAll is only valid as a query filter.
	StatusAll Status = "ALL"
)

type (
	ID     int64
	Status string
	Key    struct {
		GroupID  string
		Location string
	}
	FileInfo struct {
		ID ID

		GroupID  string
		Location string
		Order    int

		OriginalName string
		StoredName   string
		RelativePath string
		Extension    string
		MimeType     string
		IsImage      bool
		SizeBytes    int64

		Status Status

		CreatedAt time.Time
		UpdatedAt time.Time

		// derived from RelativePath, never persisted
		URL string
	}
	FileInfos []*FileInfo
)

func ParseStatus(s string) (Status, bool) {
	switch Status(s) {
	case "":
		return StatusDone, true
	case StatusTemp, StatusDone, StatusAll:
		return Status(s), true
	}
	return "", false
}

func (s Status) Matches(other Status) bool {
	return s == StatusAll || s == other
}

// Validate requires a gid and keeps both parts within MaxKeyLen characters.
func (k Key) Validate() error {
	if strings.TrimSpace(k.GroupID) == "" {
		return fmt.Errorf("%w: gid is required", ErrInvalidInput)
	}
	if utf8.RuneCountInString(k.GroupID) > MaxKeyLen {
		return fmt.Errorf("%w: gid exceeds %d characters", ErrInvalidInput, MaxKeyLen)
	}
	if utf8.RuneCountInString(k.Location) > MaxKeyLen {
		return fmt.Errorf("%w: location exceeds %d characters", ErrInvalidInput, MaxKeyLen)
	}
	return nil
}

func (f *FileInfo) IsDone() bool { return f.Status == StatusDone }

func (f *FileInfo) Key() Key { return Key{GroupID: f.GroupID, Location: f.Location} }
